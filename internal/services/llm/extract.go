package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNoContent is returned when a response holds no JSON object to parse.
var ErrNoContent = errors.New("no JSON content in response")

// ParseError wraps the syntax error of a JSON block that could not be decoded.
type ParseError struct {
	Candidate string
	Err       error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse JSON block: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// fencedBlockRegex matches the language tag and interior of each ``` fence
var fencedBlockRegex = regexp.MustCompile("(?s)```([A-Za-z0-9_+-]*)[ \\t]*\\r?\\n?(.*?)```")

// ExtractJSONBlock pulls the JSON object out of a free-text model response.
// A fenced block wins over the surrounding prose; within the candidate the
// slice from the first '{' to the last '}' is decoded. No schema checks are
// made here.
func ExtractJSONBlock(text string) (map[string]any, error) {
	candidate, err := jsonCandidate(text)
	if err != nil {
		return nil, err
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(candidate), &out); err != nil {
		return nil, &ParseError{Candidate: candidate, Err: err}
	}
	return out, nil
}

func jsonCandidate(text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrNoContent
	}

	candidate := text
	if block, ok := fencedBlock(text); ok {
		candidate = block
	}

	start := strings.Index(candidate, "{")
	end := strings.LastIndex(candidate, "}")
	if start == -1 || end == -1 || end < start {
		return "", ErrNoContent
	}
	return candidate[start : end+1], nil
}

// fencedBlock returns the first json-tagged fence, else the first fence of
// any language.
func fencedBlock(text string) (string, bool) {
	matches := fencedBlockRegex.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return "", false
	}
	for _, m := range matches {
		if strings.EqualFold(m[1], "json") {
			return m[2], true
		}
	}
	return matches[0][2], true
}

// LeadingProse returns the explanation a model wrote before its JSON, trimmed.
// When the response opens with JSON the whole response is returned.
func LeadingProse(text string) string {
	cut := len(text)
	if i := strings.Index(text, "```"); i >= 0 && i < cut {
		cut = i
	}
	if i := strings.Index(text, "{"); i >= 0 && i < cut {
		cut = i
	}
	prose := strings.TrimSpace(text[:cut])
	if prose == "" {
		return strings.TrimSpace(text)
	}
	return prose
}
