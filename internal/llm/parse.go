package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Parsed is the tagged result of decoding model output: either a value or a parse error.
type Parsed[T any] struct {
	Value T
	Err   error
	Raw   string // cleaned text that was decoded
}

// OK reports whether decoding succeeded.
func (p Parsed[T]) OK() bool { return p.Err == nil }

// CleanJSON strips markdown code fences and any prose around the outermost JSON object.
func CleanJSON(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```JSON")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		content = content[start : end+1]
	}
	return content
}

// ParseJSON cleans raw model output and decodes it into T.
func ParseJSON[T any](raw string) Parsed[T] {
	cleaned := CleanJSON(raw)
	var p Parsed[T]
	p.Raw = cleaned
	if cleaned == "" {
		p.Err = fmt.Errorf("empty model output")
		return p
	}
	if err := json.Unmarshal([]byte(cleaned), &p.Value); err != nil {
		p.Err = fmt.Errorf("failed to parse model output: %w", err)
	}
	return p
}
