package extract

import (
	"strings"

	"github.com/genieiq/genieiq/internal/domain/payload"
)

// Vocabularies for the generic walk. Keys match by substring.
var (
	questionVocab = []string{"sample", "question", "starter", "suggest", "recommend"}
	tableVocab    = []string{"table", "identifier", "full_name"}
	ownerVocab    = []string{"owner", "creator", "email"}
)

// GenericSampleQuestions walks the payload for question-like strings. It is
// a last resort for payload shapes without a structured list.
func GenericSampleQuestions(v payload.Value) []string {
	out := payload.CollectStrings(v, questionVocab, payload.DefaultLimits, func(s string) bool {
		return !looksLikeSQL(s) && !strings.Contains(s, "\n")
	})
	if out == nil {
		return []string{}
	}
	return out
}

// GenericTables walks the payload for identifier-like strings.
func GenericTables(v payload.Value) []string {
	out := payload.CollectStrings(v, tableVocab, payload.DefaultLimits, func(s string) bool {
		return ValidTableID(s) && !strings.ContainsAny(s, " \t\n")
	})
	if out == nil {
		return []string{}
	}
	return out
}

// GenericOwner walks the payload for an email under an owner-like key.
func GenericOwner(v payload.Value) *string {
	found := payload.CollectStrings(v, ownerVocab, payload.DefaultLimits, func(s string) bool {
		return strings.Contains(s, "@") && !strings.ContainsAny(s, " \t\n")
	})
	if len(found) == 0 {
		return nil
	}
	return &found[0]
}

func looksLikeSQL(s string) bool {
	u := strings.ToUpper(strings.TrimSpace(s))
	return strings.HasPrefix(u, "SELECT ") || strings.HasPrefix(u, "WITH ")
}
