package lspserver

import (
	"net/url"
	"strings"

	"github.com/standardbeagle/fsharp-ls/internal/dispatcher"
	"github.com/standardbeagle/fsharp-ls/internal/document"
	"github.com/standardbeagle/fsharp-ls/internal/project"
)

// uriToPath converts a file:// URI (spec.md §6) to an absolute
// filesystem path. Non-file URIs are returned unchanged.
func uriToPath(uri string) string {
	if !strings.HasPrefix(uri, "file://") {
		return uri
	}
	u, err := url.Parse(uri)
	if err != nil {
		return strings.TrimPrefix(uri, "file://")
	}
	return u.Path
}

// pathToURI converts an absolute filesystem path back to a file:// URI.
func pathToURI(path string) string {
	if strings.HasPrefix(path, "file://") {
		return path
	}
	return "file://" + path
}

type positionWire struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

func (p positionWire) toDocument() document.Position {
	return document.Position{Line: p.Line, Character: p.Character}
}

type rangeWire struct {
	Start positionWire `json:"start"`
	End   positionWire `json:"end"`
}

func toRangeWire(r document.Range) rangeWire {
	return rangeWire{
		Start: positionWire{Line: r.Start.Line, Character: r.Start.Character},
		End:   positionWire{Line: r.End.Line, Character: r.End.Character},
	}
}

type textDocumentIdentifier struct {
	URI string `json:"uri"`
}

type textDocumentItem struct {
	URI     string `json:"uri"`
	Version int    `json:"version"`
	Text    string `json:"text"`
}

type versionedTextDocumentIdentifier struct {
	URI     string `json:"uri"`
	Version int    `json:"version"`
}

type textDocumentPositionParams struct {
	TextDocument textDocumentIdentifier `json:"textDocument"`
	Position     positionWire           `json:"position"`
}

type didOpenParams struct {
	TextDocument textDocumentItem `json:"textDocument"`
}

type contentChangeEvent struct {
	Range       *rangeWire `json:"range,omitempty"`
	RangeLength *int       `json:"rangeLength,omitempty"`
	Text        string     `json:"text"`
}

type didChangeParams struct {
	TextDocument   versionedTextDocumentIdentifier `json:"textDocument"`
	ContentChanges []contentChangeEvent            `json:"contentChanges"`
}

type didCloseParams struct {
	TextDocument textDocumentIdentifier `json:"textDocument"`
}

type didSaveParams struct {
	TextDocument textDocumentIdentifier `json:"textDocument"`
}

type fileEvent struct {
	URI  string `json:"uri"`
	Type int    `json:"type"` // 1 created, 2 changed, 3 deleted
}

type didChangeWatchedFilesParams struct {
	Changes []fileEvent `json:"changes"`
}

type diagnosticWire struct {
	Range    rangeWire `json:"range"`
	Severity int       `json:"severity"`
	Message  string    `json:"message"`
	Code     string    `json:"code,omitempty"`
}

func toDiagnosticWire(d project.Diagnostic) diagnosticWire {
	return diagnosticWire{
		Range:    toRangeWire(d.Range),
		Severity: int(d.Severity),
		Message:  d.Message,
		Code:     d.Code,
	}
}

type publishDiagnosticsParams struct {
	URI         string           `json:"uri"`
	Diagnostics []diagnosticWire `json:"diagnostics"`
}

type showMessageParams struct {
	Type    int    `json:"type"`
	Message string `json:"message"`
}

type startProgressParams struct {
	Title  string `json:"title"`
	NFiles int    `json:"nFiles"`
}

type hoverResult struct {
	Contents []string   `json:"contents"`
	Range    *rangeWire `json:"range,omitempty"`
}

func toHoverResult(h *dispatcher.Hover) *hoverResult {
	if h == nil {
		return nil
	}
	out := &hoverResult{Contents: h.Contents}
	if h.Range != nil {
		rw := toRangeWire(*h.Range)
		out.Range = &rw
	}
	return out
}

type locationWire struct {
	URI   string    `json:"uri"`
	Range rangeWire `json:"range"`
}

func toLocationWire(l dispatcher.Location) locationWire {
	return locationWire{URI: pathToURI(l.URI), Range: toRangeWire(l.Range)}
}

type completionItemDataWire struct {
	FullName string `json:"fullName"`
}

type completionItemWire struct {
	Label         string                  `json:"label"`
	Kind          *int                    `json:"kind,omitempty"`
	Detail        string                  `json:"detail,omitempty"`
	Documentation string                  `json:"documentation,omitempty"`
	Data          completionItemDataWire  `json:"data"`
}

func toCompletionItemWire(it dispatcher.CompletionItem) completionItemWire {
	var kind *int
	if it.Kind != nil {
		v := int(*it.Kind)
		kind = &v
	}
	return completionItemWire{
		Label:         it.Label,
		Kind:          kind,
		Detail:        it.Detail,
		Documentation: it.Documentation,
		Data:          completionItemDataWire{FullName: it.Data.FullName},
	}
}

func fromCompletionItemWire(w completionItemWire) dispatcher.CompletionItem {
	var kind *dispatcher.CompletionItemKind
	if w.Kind != nil {
		v := dispatcher.CompletionItemKind(*w.Kind)
		kind = &v
	}
	return dispatcher.CompletionItem{
		Label:         w.Label,
		Kind:          kind,
		Detail:        w.Detail,
		Documentation: w.Documentation,
		Data:          dispatcher.CompletionItemData{FullName: w.Data.FullName},
	}
}

type completionListWire struct {
	IsIncomplete bool                 `json:"isIncomplete"`
	Items        []completionItemWire `json:"items"`
}

type parameterInformationWire struct {
	Label string `json:"label"`
}

type signatureInformationWire struct {
	Label         string                     `json:"label"`
	Documentation string                     `json:"documentation,omitempty"`
	Parameters    []parameterInformationWire `json:"parameters"`
}

type signatureHelpWire struct {
	Signatures      []signatureInformationWire `json:"signatures"`
	ActiveSignature *int                       `json:"activeSignature,omitempty"`
	ActiveParameter int                        `json:"activeParameter"`
}

func toSignatureHelpWire(sh *dispatcher.SignatureHelp) *signatureHelpWire {
	if sh == nil {
		return nil
	}
	sigs := make([]signatureInformationWire, 0, len(sh.Signatures))
	for _, s := range sh.Signatures {
		params := make([]parameterInformationWire, 0, len(s.Parameters))
		for _, p := range s.Parameters {
			params = append(params, parameterInformationWire{Label: p.Label})
		}
		sigs = append(sigs, signatureInformationWire{Label: s.Label, Documentation: s.Documentation, Parameters: params})
	}
	return &signatureHelpWire{Signatures: sigs, ActiveSignature: sh.ActiveSignature, ActiveParameter: sh.ActiveParameter}
}

type symbolInformationWire struct {
	Name          string       `json:"name"`
	Kind          int          `json:"kind"`
	Location      locationWire `json:"location"`
	ContainerName string       `json:"containerName,omitempty"`
}

func toSymbolInformationWire(si dispatcher.SymbolInformation) symbolInformationWire {
	return symbolInformationWire{
		Name:          si.Name,
		Kind:          int(si.Kind),
		Location:      locationWire{URI: pathToURI(si.Location.URI), Range: toRangeWire(si.Location.Range)},
		ContainerName: si.ContainerName,
	}
}

type renameParams struct {
	TextDocument textDocumentIdentifier `json:"textDocument"`
	Position     positionWire           `json:"position"`
	NewName      string                 `json:"newName"`
}

type textEditWire struct {
	Range   rangeWire `json:"range"`
	NewText string    `json:"newText"`
}

type textDocumentEditWire struct {
	TextDocument versionedTextDocumentIdentifier `json:"textDocument"`
	Edits        []textEditWire                  `json:"edits"`
}

type workspaceEditWire struct {
	DocumentChanges []textDocumentEditWire `json:"documentChanges"`
}

func toWorkspaceEditWire(we *dispatcher.WorkspaceEdit) *workspaceEditWire {
	if we == nil {
		return nil
	}
	changes := make([]textDocumentEditWire, 0, len(we.DocumentChanges))
	for _, c := range we.DocumentChanges {
		edits := make([]textEditWire, 0, len(c.Edits))
		for _, e := range c.Edits {
			edits = append(edits, textEditWire{Range: toRangeWire(e.Range), NewText: e.NewText})
		}
		changes = append(changes, textDocumentEditWire{
			TextDocument: versionedTextDocumentIdentifier{URI: pathToURI(c.URI), Version: c.Version},
			Edits:        edits,
		})
	}
	return &workspaceEditWire{DocumentChanges: changes}
}

type workspaceSymbolParams struct {
	Query string `json:"query"`
}
