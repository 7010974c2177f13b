package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoJSON is returned when a reply contains no JSON object or array
var ErrNoJSON = errors.New("no JSON found in response")

// ExtractJSON returns the JSON object or array embedded in a model reply,
// dropping markdown code fences and any prose around it. Every '{' and '['
// is tried as the start of a value; brackets in the prose are skipped and
// the longest complete value wins.
func ExtractJSON(text string) (string, error) {
	var (
		best     string
		firstErr error
		found    bool
	)
	for i := 0; i < len(text); i++ {
		if text[i] != '{' && text[i] != '[' {
			continue
		}
		found = true

		dec := json.NewDecoder(strings.NewReader(text[i:]))
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		end := i + int(dec.InputOffset())
		if end-i > len(best) {
			best = text[i:end]
		}
		// Values nested in this one are shorter
		i = end - 1
	}

	if best != "" {
		return best, nil
	}
	if !found {
		return "", ErrNoJSON
	}
	return "", fmt.Errorf("malformed JSON in response: %w", firstErr)
}

// FlexString decodes a JSON string, number or null into a string. Models are
// inconsistent about quoting quantities and servings.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*f = FlexString(strings.TrimSpace(v))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", s)
	}
	*f = FlexString(n.String())
	return nil
}
