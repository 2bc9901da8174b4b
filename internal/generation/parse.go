package generation

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// trailingComma matches a comma directly before a closing brace or bracket.
var trailingComma = regexp.MustCompile(`,\s*([}\]])`)

// RepairJSON applies cheap mechanical fixes to a model response before
// parsing: markdown fences are stripped, surrounding prose is cut away by
// extracting the outermost JSON value, and trailing commas are removed.
// Repair never invents content; a response that stays broken afterwards is
// reported as malformed.
func RepairJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(text, "```")
		text = strings.TrimSpace(text)
	}

	if extracted := extractJSONValue(text); extracted != "" {
		text = extracted
	}

	return trailingComma.ReplaceAllString(text, "$1")
}

// extractJSONValue returns the first balanced top-level JSON object or array
// in text, or empty when none is found. Braces inside strings are skipped.
func extractJSONValue(text string) string {
	start := -1
	var open, close byte
	for i := 0; i < len(text); i++ {
		if text[i] == '{' {
			start, open, close = i, '{', '}'
			break
		}
		if text[i] == '[' {
			start, open, close = i, '[', ']'
			break
		}
	}
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == open:
			depth++
		case c == close:
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

// CheckSyntax parses the document and, on failure, reports the error with
// line and column derived from the byte offset so corrective retries can
// point the model at the exact problem.
func CheckSyntax(document string) error {
	var probe any
	err := json.Unmarshal([]byte(document), &probe)
	if err == nil {
		return nil
	}

	if serr, ok := err.(*json.SyntaxError); ok {
		line, col := offsetToLineCol(document, serr.Offset)
		return fmt.Errorf("invalid JSON at line %d, column %d: %s", line, col, serr.Error())
	}
	return fmt.Errorf("invalid JSON: %w", err)
}

func offsetToLineCol(document string, offset int64) (int, int) {
	if offset < 1 {
		offset = 1
	}
	if offset > int64(len(document)) {
		offset = int64(len(document))
	}
	line, col := 1, 1
	for _, c := range document[:offset-1] {
		if c == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return line, col
}
