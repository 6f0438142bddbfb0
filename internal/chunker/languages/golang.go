package languages

import (
	"lore/internal/chunker"

	"github.com/smacker/go-tree-sitter/golang"
)

func RegisterGo(r *chunker.Registry) {
	r.Register("go", &chunker.LanguageSpec{
		Language: golang.GetLanguage(),
		Query: `
			(function_declaration name: (identifier) @name) @chunk
			(method_declaration name: (field_identifier) @name) @chunk
			(type_declaration (type_spec name: (type_identifier) @name)) @chunk
		`,
		Extensions:    []string{"go"},
		CommentPrefix: "//",
		Kinds: map[string]chunker.ChunkKind{
			"function_declaration": chunker.KindFunction,
			"method_declaration":   chunker.KindFunction,
			"type_declaration":     chunker.KindClass,
		},
	})
}
