package dispatcher

import "github.com/standardbeagle/fsharp-ls/internal/analyzer"

// completionKindOf maps a completion Declaration's compiler kind to an
// LSP CompletionItemKind, per spec.md §4.6's kind-mapping table.
// Namespace, Event and Other are omitted entirely (nil kind).
func completionKindOf(k analyzer.DeclKind) *CompletionItemKind {
	var v CompletionItemKind
	switch k {
	case analyzer.DeclModule, analyzer.DeclModuleFile:
		v = CIKModule
	case analyzer.DeclType:
		v = CIKInterface
	case analyzer.DeclException:
		v = CIKClass
	case analyzer.DeclField:
		v = CIKField
	case analyzer.DeclProperty:
		v = CIKProperty
	case analyzer.DeclMethod:
		v = CIKMethod
	case analyzer.DeclArgument:
		v = CIKVariable
	default:
		return nil
	}
	return &v
}

// symbolKindOf maps a NavDeclaration's compiler kind to an LSP
// SymbolKind, per spec.md §4.6's kind-mapping table.
func symbolKindOf(k analyzer.DeclKind) SymbolKind {
	switch k {
	case analyzer.DeclNamespace:
		return SKNamespace
	case analyzer.DeclModule, analyzer.DeclModuleFile:
		return SKModule
	case analyzer.DeclType:
		return SKInterface
	case analyzer.DeclException:
		return SKClass
	case analyzer.DeclMethod:
		return SKMethod
	case analyzer.DeclProperty:
		return SKProperty
	case analyzer.DeclField:
		return SKField
	default:
		return SKVariable
	}
}
