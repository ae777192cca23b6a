package analyzer

import (
	"encoding/json"
	"fmt"
	"strings"
)

// reply is the JSON shape requested from the model. Fields the model may add
// (its own accuracy estimate, alignment counts) are ignored.
type reply struct {
	Analysis
	Error string `json:"error"`
}

// parseResponse extracts the outermost JSON object from content and decodes
// it. Replies without an object, with invalid JSON, with an error field or
// without overall feedback are unusable.
func parseResponse(content string) (*Analysis, error) {
	raw, ok := extractObject(stripMarkdown(content))
	if !ok {
		return nil, fmt.Errorf("%w: no JSON object", ErrUnusableResponse)
	}

	var r reply
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnusableResponse, err)
	}
	if r.Error != "" {
		return nil, fmt.Errorf("%w: model reported %q", ErrUnusableResponse, r.Error)
	}
	if strings.TrimSpace(r.OverallFeedback) == "" {
		return nil, fmt.Errorf("%w: missing overall_feedback", ErrUnusableResponse)
	}

	a := r.Analysis
	a.Error = ""
	return &a, nil
}

// extractObject returns the text between the first '{' and the last '}'.
func extractObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return "", false
	}
	return s[start : end+1], true
}

// stripMarkdown removes optional markdown code fences (```json ... ```) that
// some models wrap around JSON output.
func stripMarkdown(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"```json", "```"} {
		if after, ok := strings.CutPrefix(s, prefix); ok {
			s = after
			break
		}
	}
	if before, ok := strings.CutSuffix(s, "```"); ok {
		s = before
	}
	return strings.TrimSpace(s)
}
