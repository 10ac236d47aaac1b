// Package extract wraps the external natural-language-understanding service
// that mines structured profile fields out of free-form text.
package extract

import (
	"context"
	"strings"

	"github.com/aurasense/companion/internal/schema"
)

// Result is one utterance's worth of candidate field values. Values are not
// validated here; the accumulator decides acceptance. Degraded means the
// upstream call failed or timed out and the turn carries no new information.
type Result struct {
	Fields   map[string]any
	Degraded bool
}

// Empty returns true if the extraction produced no candidate values.
func (r Result) Empty() bool {
	return len(r.Fields) == 0
}

// Extractor derives candidate field values from text. Implementations must
// never return an error for well-formed text: upstream failures surface as
// an empty, degraded Result so the dialogue can re-prompt.
type Extractor interface {
	Extract(ctx context.Context, text string, fields []schema.Field) Result
}

// blankText reports whether text carries nothing to extract from.
func blankText(text string) bool {
	return strings.TrimSpace(text) == ""
}
