package lspserver

import "encoding/json"

// capabilities advertises exactly the §6 surface: hover, completion
// (with resolve, triggered on '.'), signature help (triggered on '('
// and ','), document/workspace symbols, definition, references,
// rename, and incremental open/change/close/save sync.
type serverCapabilities struct {
	TextDocumentSync   textDocumentSyncOptions `json:"textDocumentSync"`
	HoverProvider      bool                    `json:"hoverProvider"`
	CompletionProvider completionOptions       `json:"completionProvider"`
	SignatureHelpProvider signatureHelpOptions `json:"signatureHelpProvider"`
	DefinitionProvider bool                    `json:"definitionProvider"`
	ReferencesProvider bool                    `json:"referencesProvider"`
	DocumentSymbolProvider  bool               `json:"documentSymbolProvider"`
	WorkspaceSymbolProvider bool               `json:"workspaceSymbolProvider"`
	RenameProvider     bool                    `json:"renameProvider"`
}

type textDocumentSyncOptions struct {
	OpenClose bool            `json:"openClose"`
	Change    int             `json:"change"` // 2 = Incremental
	Save      saveOptions     `json:"save"`
}

type saveOptions struct {
	IncludeText bool `json:"includeText"`
}

type completionOptions struct {
	ResolveProvider   bool     `json:"resolveProvider"`
	TriggerCharacters []string `json:"triggerCharacters"`
}

type signatureHelpOptions struct {
	TriggerCharacters []string `json:"triggerCharacters"`
}

type initializeResult struct {
	Capabilities serverCapabilities `json:"capabilities"`
}

func (s *Server) replyInitialize(id json.RawMessage) {
	result := initializeResult{Capabilities: serverCapabilities{
		TextDocumentSync: textDocumentSyncOptions{
			OpenClose: true,
			Change:    2,
			Save:      saveOptions{IncludeText: false},
		},
		HoverProvider: true,
		CompletionProvider: completionOptions{
			ResolveProvider:   true,
			TriggerCharacters: []string{"."},
		},
		SignatureHelpProvider: signatureHelpOptions{
			TriggerCharacters: []string{"(", ","},
		},
		DefinitionProvider:      true,
		ReferencesProvider:      true,
		DocumentSymbolProvider:  true,
		WorkspaceSymbolProvider: true,
		RenameProvider:          true,
	}}
	_ = s.writer.Respond(id, result)
}
