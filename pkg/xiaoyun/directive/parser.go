// parser.go implements the JSON wire form: the LLM is instructed to answer
// with a JSON array of typed objects, optionally wrapped in a Markdown code
// fence. Decode failure is total — the caller degrades to a canned reply
// instead of guessing at partial content.
package directive

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ErrNotDirectiveJSON marks raw output that is not a JSON directive array at
// all (decode failure or non-array top level). No partial recovery is
// attempted for this class.
var ErrNotDirectiveJSON = errors.New("output is not a JSON directive array")

// MaxDirectives caps how many directives a single parse yields. The same
// bound is enforced again at dispatch; enforcing it during parsing bounds
// resolver work for pathological outputs.
const MaxDirectives = 5

// Parser converts raw LLM output into an ordered directive list.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a parser. A nil logger falls back to slog.Default.
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger.With("component", "directive")}
}

// ParseJSON parses the JSON wire form. Individual malformed elements are
// skipped with a warning; a malformed document fails with
// ErrNotDirectiveJSON.
func (p *Parser) ParseJSON(raw string) ([]Directive, error) {
	stripped := StripCodeFence(raw)

	var elements []json.RawMessage
	if err := json.Unmarshal([]byte(stripped), &elements); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotDirectiveJSON, err)
	}

	directives := make([]Directive, 0, len(elements))
	for i, element := range elements {
		if len(directives) >= MaxDirectives {
			p.logger.Warn("directive cap reached during parse, discarding remainder",
				"cap", MaxDirectives,
				"discarded", len(elements)-i,
			)
			break
		}

		var d Directive
		if err := json.Unmarshal(element, &d); err != nil {
			p.logger.Warn("skipping malformed directive element", "index", i, "error", err)
			continue
		}
		if err := d.normalize(); err != nil {
			p.logger.Warn("skipping invalid directive element", "index", i, "error", err)
			continue
		}
		directives = append(directives, d)
	}

	return directives, nil
}

// StripCodeFence removes a Markdown code fence wrapping (```json ... ``` or
// plain ``` ... ```) the model sometimes adds around its JSON answer.
func StripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```")
	// Drop the info string ("json" etc.) on the opening fence line.
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		first := strings.TrimSpace(s[:idx])
		if first == "" || !strings.ContainsAny(first, "[{") {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
