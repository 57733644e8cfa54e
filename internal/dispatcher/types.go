// Package dispatcher implements the FeatureDispatcher: the translation
// of a cursor position plus recent parse/check results into each LSP
// feature response. Grounded on the teacher's mcp/handlers.go
// (request -> internal-call -> response-shaping dispatch style) and
// mcp/response.go (typed response construction), generalized from MCP
// tool results to LSP feature responses.
package dispatcher

import "github.com/standardbeagle/fsharp-ls/internal/document"

// Position/Range are LSP wire shapes; reusing document's UTF-16-aware
// types keeps cursor math in one place.
type Position = document.Position
type Range = document.Range

// Location is a range within a specific file.
type Location struct {
	URI   string `json:"uri"`
	Range Range  `json:"range"`
}

// Hover is the LSP Hover response.
type Hover struct {
	Contents []string `json:"contents"`
	Range    *Range   `json:"range,omitempty"`
}

// CompletionItemKind mirrors LSP's CompletionItemKind enum.
type CompletionItemKind int

const (
	CIKMethod    CompletionItemKind = 2
	CIKField     CompletionItemKind = 5
	CIKVariable  CompletionItemKind = 6
	CIKClass     CompletionItemKind = 7
	CIKInterface CompletionItemKind = 8
	CIKModule    CompletionItemKind = 9
	CIKProperty  CompletionItemKind = 10
)

// SymbolKind mirrors LSP's SymbolKind enum.
type SymbolKind int

const (
	SKModule    SymbolKind = 2
	SKNamespace SymbolKind = 3
	SKClass     SymbolKind = 5
	SKMethod    SymbolKind = 6
	SKProperty  SymbolKind = 7
	SKField     SymbolKind = 8
	SKInterface SymbolKind = 11
	SKVariable  SymbolKind = 13
)

// CompletionItemData is carried in CompletionItem.Data and echoed back
// by ResolveCompletionItem to look up the originating Declaration.
type CompletionItemData struct {
	FullName string `json:"fullName"`
}

// CompletionItem is one LSP completion candidate.
type CompletionItem struct {
	Label         string              `json:"label"`
	Kind          *CompletionItemKind `json:"kind,omitempty"`
	Detail        string              `json:"detail,omitempty"`
	Documentation string              `json:"documentation,omitempty"`
	Data          CompletionItemData  `json:"data"`
}

// CompletionList is the LSP Completion response.
type CompletionList struct {
	IsIncomplete bool             `json:"isIncomplete"`
	Items        []CompletionItem `json:"items"`
}

// ParameterInformation is one SignatureInformation parameter.
type ParameterInformation struct {
	Label string `json:"label"`
}

// SignatureInformation is one method overload rendered for
// SignatureHelp.
type SignatureInformation struct {
	Label         string                 `json:"label"`
	Documentation string                 `json:"documentation,omitempty"`
	Parameters    []ParameterInformation `json:"parameters"`
}

// SignatureHelp is the LSP SignatureHelp response.
type SignatureHelp struct {
	Signatures      []SignatureInformation `json:"signatures"`
	ActiveSignature *int                   `json:"activeSignature,omitempty"`
	ActiveParameter int                    `json:"activeParameter"`
}

// SymbolInformation is one entry of a DocumentSymbols/WorkspaceSymbols
// response.
type SymbolInformation struct {
	Name          string     `json:"name"`
	Kind          SymbolKind `json:"kind"`
	Location      Location   `json:"location"`
	ContainerName string     `json:"containerName,omitempty"`
}

// TextEdit is one LSP text replacement.
type TextEdit struct {
	Range   Range  `json:"range"`
	NewText string `json:"newText"`
}

// VersionedTextDocumentEdit groups TextEdits for one file in a rename.
type VersionedTextDocumentEdit struct {
	URI     string     `json:"uri"`
	Version int        `json:"version"`
	Edits   []TextEdit `json:"edits"`
}

// WorkspaceEdit is the LSP Rename response.
type WorkspaceEdit struct {
	DocumentChanges []VersionedTextDocumentEdit `json:"documentChanges"`
}
