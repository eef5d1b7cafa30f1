package prompt

import (
	"log/slog"
	"strings"
)

var languageNames = map[string]string{
	"de": "German",
	"en": "English",
	"es": "Spanish",
	"fr": "French",
	"it": "Italian",
	"pt": "Portuguese",
}

// LanguageName returns the English name of a two-letter code, or the code
// itself when unknown.
func LanguageName(code string) string {
	if name, ok := languageNames[strings.ToLower(code)]; ok {
		return name
	}
	return code
}

type languageVars struct {
	Language     string
	LanguageName string
}

type ragVars struct {
	Context string
}

// Compose returns base followed by the language directive and, when
// ragContext is not empty, the retrieved-context block. It never modifies
// its inputs, so repeated calls yield the same text.
func (r *Registry) Compose(base, language, ragContext string) string {
	parts := []string{base}

	if language != "" {
		directive, err := r.Render(Language, languageVars{
			Language:     language,
			LanguageName: LanguageName(language),
		})
		if err != nil {
			slog.Warn("failed to render language directive", "language", language, "error", err)
		} else {
			parts = append(parts, directive)
		}
	}

	if strings.TrimSpace(ragContext) != "" {
		block, err := r.Render(RAGContext, ragVars{Context: ragContext})
		if err != nil {
			slog.Warn("failed to render rag context", "error", err)
		} else {
			parts = append(parts, block)
		}
	}

	return strings.Join(parts, "\n\n")
}
