package lspserver

import (
	"context"
	"log"
	"os"
	"strings"
	"time"

	"github.com/standardbeagle/fsharp-ls/internal/document"
	"github.com/standardbeagle/fsharp-ls/internal/transport"
)

func (s *Server) onDidOpen(ctx context.Context, msg transport.Message) {
	p, ok := decodeParams[didOpenParams](msg.Params)
	if !ok {
		return
	}
	path := uriToPath(p.TextDocument.URI)
	s.docs.Open(path, p.TextDocument.Text, p.TextDocument.Version)

	if _, err := s.graph.Find(path); err != nil && strings.HasSuffix(path, ".fsx") {
		if _, scriptErr := s.graph.AddScriptFile(path, p.TextDocument.Text, fileModTime(path)); scriptErr != nil {
			log.Printf("lspserver: AddScriptFile(%s): %v", path, scriptErr)
		}
	}

	s.orch.OnOpen(ctx, path)
}

func (s *Server) onDidChange(ctx context.Context, msg transport.Message) {
	p, ok := decodeParams[didChangeParams](msg.Params)
	if !ok {
		return
	}
	path := uriToPath(p.TextDocument.URI)

	edits := make([]document.Edit, 0, len(p.ContentChanges))
	for _, c := range p.ContentChanges {
		if c.Range == nil {
			edits = append(edits, document.Edit{NewText: c.Text})
			continue
		}
		edits = append(edits, document.Edit{
			Range: &document.Range{
				Start: c.Range.Start.toDocument(),
				End:   c.Range.End.toDocument(),
			},
			NewText: c.Text,
		})
	}

	if err := s.docs.Change(path, p.TextDocument.Version, edits); err != nil {
		log.Printf("lspserver: Change(%s): %v", path, err)
		return
	}
	s.orch.Invalidate(path)
}

func (s *Server) onDidClose(msg transport.Message) {
	p, ok := decodeParams[didCloseParams](msg.Params)
	if !ok {
		return
	}
	path := uriToPath(p.TextDocument.URI)
	s.docs.Close(path)
	s.orch.NotifyClosed(path)
}

func (s *Server) onDidSave(ctx context.Context, msg transport.Message) {
	p, ok := decodeParams[didSaveParams](msg.Params)
	if !ok {
		return
	}
	s.orch.OnSave(ctx, uriToPath(p.TextDocument.URI))
}

func (s *Server) onDidChangeWatchedFiles(msg transport.Message) {
	p, ok := decodeParams[didChangeWatchedFilesParams](msg.Params)
	if !ok {
		return
	}
	var changed []string
	for _, ev := range p.Changes {
		path := uriToPath(ev.URI)
		changed = append(changed, path)
		switch {
		case strings.HasSuffix(path, "project.assets.json"):
			if err := s.graph.UpdateAssetsJson(path); err != nil {
				log.Printf("lspserver: UpdateAssetsJson(%s): %v", path, err)
			}
		case strings.HasSuffix(path, ".fsx"):
			// Scripts derive options from live buffer text, not a
			// manifest; surfacing the change below is enough to
			// invalidate any open document.
		case ev.Type == 3: // deleted
			s.graph.DeleteProjectFile(path)
		default:
			if err := s.graph.PutProjectFile(path); err != nil {
				log.Printf("lspserver: PutProjectFile(%s): %v", path, err)
			}
		}
	}
	if len(changed) > 0 {
		s.orch.OnWorkspaceFilesChanged(changed)
	}
}

func fileModTime(path string) time.Time {
	if info, err := os.Stat(path); err == nil {
		return info.ModTime()
	}
	return time.Now()
}
