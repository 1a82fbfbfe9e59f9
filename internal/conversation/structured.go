package conversation

import (
	"encoding/json"
	"fmt"
	"strings"
)

// decodeStructured pulls the first JSON object out of a model reply and
// unmarshals it into dst. Models frequently wrap JSON in prose or markdown
// fences, so we slice between the outermost braces rather than trusting the
// whole payload.
func decodeStructured(raw string, dst any) error {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return fmt.Errorf("conversation: no JSON object in model output")
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), dst); err != nil {
		return fmt.Errorf("conversation: decode structured output: %w", err)
	}
	return nil
}
