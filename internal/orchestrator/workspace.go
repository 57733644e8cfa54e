package orchestrator

// OnWorkspaceFilesChanged is wired to project.WorkspaceWatcher.OnChanged:
// the Graph has already applied putProjectFile/deleteProjectFile/
// updateAssetsJson for the batch by the time this runs, so all that
// remains is invalidating every currently open file per spec.md §4.5.
func (o *Orchestrator) OnWorkspaceFilesChanged(changedFiles []string) {
	for _, f := range o.docs.OpenFiles() {
		o.Invalidate(f)
	}
}
