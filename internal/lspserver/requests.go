package lspserver

import (
	"context"

	"github.com/standardbeagle/fsharp-ls/internal/transport"
)

func (s *Server) replyHover(ctx context.Context, msg transport.Message) {
	p, ok := decodeParams[textDocumentPositionParams](msg.Params)
	if !ok {
		_ = s.writer.RespondError(msg.ID, transport.ErrInvalidParams, "invalid hover params")
		return
	}
	h := s.disp.Hover(ctx, uriToPath(p.TextDocument.URI), p.Position.toDocument())
	_ = s.writer.Respond(msg.ID, toHoverResult(h))
}

func (s *Server) replyCompletion(ctx context.Context, msg transport.Message) {
	p, ok := decodeParams[textDocumentPositionParams](msg.Params)
	if !ok {
		_ = s.writer.RespondError(msg.ID, transport.ErrInvalidParams, "invalid completion params")
		return
	}
	list := s.disp.Completion(ctx, uriToPath(p.TextDocument.URI), p.Position.toDocument())
	if list == nil {
		_ = s.writer.Respond(msg.ID, completionListWire{IsIncomplete: false})
		return
	}
	items := make([]completionItemWire, 0, len(list.Items))
	for _, it := range list.Items {
		items = append(items, toCompletionItemWire(it))
	}
	_ = s.writer.Respond(msg.ID, completionListWire{IsIncomplete: list.IsIncomplete, Items: items})
}

func (s *Server) replyResolveCompletion(msg transport.Message) {
	w, ok := decodeParams[completionItemWire](msg.Params)
	if !ok {
		_ = s.writer.RespondError(msg.ID, transport.ErrInvalidParams, "invalid completion item")
		return
	}
	resolved := s.disp.ResolveCompletionItem(fromCompletionItemWire(w))
	_ = s.writer.Respond(msg.ID, toCompletionItemWire(resolved))
}

func (s *Server) replySignatureHelp(ctx context.Context, msg transport.Message) {
	p, ok := decodeParams[textDocumentPositionParams](msg.Params)
	if !ok {
		_ = s.writer.RespondError(msg.ID, transport.ErrInvalidParams, "invalid signature help params")
		return
	}
	sh := s.disp.SignatureHelp(ctx, uriToPath(p.TextDocument.URI), p.Position.toDocument())
	_ = s.writer.Respond(msg.ID, toSignatureHelpWire(sh))
}

func (s *Server) replyDefinition(ctx context.Context, msg transport.Message) {
	p, ok := decodeParams[textDocumentPositionParams](msg.Params)
	if !ok {
		_ = s.writer.RespondError(msg.ID, transport.ErrInvalidParams, "invalid definition params")
		return
	}
	locs := s.disp.GotoDefinition(ctx, uriToPath(p.TextDocument.URI), p.Position.toDocument())
	out := make([]locationWire, 0, len(locs))
	for _, l := range locs {
		out = append(out, toLocationWire(l))
	}
	_ = s.writer.Respond(msg.ID, out)
}

func (s *Server) replyReferences(ctx context.Context, msg transport.Message) {
	p, ok := decodeParams[textDocumentPositionParams](msg.Params)
	if !ok {
		_ = s.writer.RespondError(msg.ID, transport.ErrInvalidParams, "invalid references params")
		return
	}
	locs := s.disp.FindReferences(ctx, uriToPath(p.TextDocument.URI), p.Position.toDocument())
	out := make([]locationWire, 0, len(locs))
	for _, l := range locs {
		out = append(out, toLocationWire(l))
	}
	_ = s.writer.Respond(msg.ID, out)
}

func (s *Server) replyDocumentSymbol(ctx context.Context, msg transport.Message) {
	p, ok := decodeParams[textDocumentIdentifier](msg.Params)
	if !ok {
		_ = s.writer.RespondError(msg.ID, transport.ErrInvalidParams, "invalid documentSymbol params")
		return
	}
	syms := s.disp.DocumentSymbols(ctx, uriToPath(p.URI))
	out := make([]symbolInformationWire, 0, len(syms))
	for _, sym := range syms {
		out = append(out, toSymbolInformationWire(sym))
	}
	_ = s.writer.Respond(msg.ID, out)
}

func (s *Server) replyWorkspaceSymbol(ctx context.Context, msg transport.Message) {
	p, ok := decodeParams[workspaceSymbolParams](msg.Params)
	if !ok {
		_ = s.writer.RespondError(msg.ID, transport.ErrInvalidParams, "invalid workspace/symbol params")
		return
	}
	syms := s.disp.WorkspaceSymbols(ctx, p.Query)
	out := make([]symbolInformationWire, 0, len(syms))
	for _, sym := range syms {
		out = append(out, toSymbolInformationWire(sym))
	}
	_ = s.writer.Respond(msg.ID, out)
}

func (s *Server) replyRename(ctx context.Context, msg transport.Message) {
	p, ok := decodeParams[renameParams](msg.Params)
	if !ok {
		_ = s.writer.RespondError(msg.ID, transport.ErrInvalidParams, "invalid rename params")
		return
	}
	we := s.disp.Rename(ctx, uriToPath(p.TextDocument.URI), p.Position.toDocument(), p.NewName)
	_ = s.writer.Respond(msg.ID, toWorkspaceEditWire(we))
}
