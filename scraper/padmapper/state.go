package padmapper

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"padmapper-scraper/utils"
)

// stateMarker is the global the rendering framework assigns the page's
// authoritative data to inside a script block.
const stateMarker = "window.__PRELOADED_STATE__"

// StateExtractor isolates the embedded JSON state object from rendered
// markup.
type StateExtractor struct {
	logger *utils.Logger
}

// NewStateExtractor returns an extractor logging through logger.
func NewStateExtractor(logger *utils.Logger) *StateExtractor {
	return &StateExtractor{logger: logger}
}

// Extract scans the script blocks of content for the preloaded state
// assignment and returns the raw JSON of the object literal. Absence or a
// malformed payload returns ok=false; it never fails past this boundary.
func (e *StateExtractor) Extract(content string) (json.RawMessage, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		e.logger.Warn("[state] parse markup: %v", err)
		return nil, false
	}

	var raw json.RawMessage
	doc.Find("script").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := sel.Text()
		if !strings.Contains(text, stateMarker) {
			return true
		}

		literal, ok := isolateObjectLiteral(text)
		if !ok {
			e.logger.Warn("[state] found state marker but could not isolate object literal")
			return true
		}

		if !json.Valid([]byte(literal)) {
			e.logger.Warn("[state] embedded state is not valid JSON")
			return true
		}

		raw = json.RawMessage(literal)
		return false
	})

	if raw == nil {
		e.logger.Debug("[state] no preloaded state found in page")
		return nil, false
	}
	e.logger.Info("[state] successfully extracted preloaded state")
	return raw, true
}

// isolateObjectLiteral cuts the object literal assigned to the state global
// out of script text, from its opening brace to the matching closing brace.
// String literals and escapes are respected so braces inside values do not
// end the scan early.
func isolateObjectLiteral(script string) (string, bool) {
	i := strings.Index(script, stateMarker)
	if i < 0 {
		return "", false
	}
	rest := script[i+len(stateMarker):]

	eq := strings.IndexByte(rest, '=')
	if eq < 0 {
		return "", false
	}
	rest = strings.TrimLeft(rest[eq+1:], " \t\r\n")
	if rest == "" || rest[0] != '{' {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for idx := 0; idx < len(rest); idx++ {
		c := rest[idx]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case inString:
			if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
		case c == '"':
			inString = true
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return rest[:idx+1], true
			}
		}
	}
	return "", false
}
