package repair

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/raphaelgruber/rafeeq/internal/models"
)

var (
	// ErrEmptyResponse indicates the provider returned no text at all.
	ErrEmptyResponse = errors.New("empty response")

	// ErrNotJSON indicates the provider text contains no parseable JSON object.
	ErrNotJSON = errors.New("response is not a JSON object")
)

var (
	openingFence = regexp.MustCompile("^```[a-zA-Z]*\\s*\\n?")
	closingFence = regexp.MustCompile("\\n?\\s*```\\s*$")
)

// StripCodeFences removes a surrounding markdown code block, if any.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = openingFence.ReplaceAllString(s, "")
	s = closingFence.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// ParseJSON extracts the JSON object from provider text and repairs it.
// Prose before or after the outermost braces is ignored.
func ParseJSON(body string) (models.AnalysisRecord, error) {
	s := StripCodeFences(body)
	if s == "" {
		return models.AnalysisRecord{}, ErrEmptyResponse
	}

	if !strings.HasPrefix(s, "{") {
		start := strings.Index(s, "{")
		end := strings.LastIndex(s, "}")
		if start < 0 || end <= start {
			return models.AnalysisRecord{}, ErrNotJSON
		}
		s = s[start : end+1]
	}

	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return models.AnalysisRecord{}, fmt.Errorf("%w: %v", ErrNotJSON, err)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return models.AnalysisRecord{}, ErrNotJSON
	}
	return Repair(m), nil
}
