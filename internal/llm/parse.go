package llm

import (
	"encoding/json"
	"errors"
	"strings"
)

type Outcome int

const (
	Structured Outcome = iota
	Fallback
)

func (o Outcome) String() string {
	if o == Structured {
		return "structured"
	}
	return "fallback"
}

// Parsed is the result of decoding model output as T. When Outcome is
// Fallback, Value is the zero value and Raw holds the text as received.
type Parsed[T any] struct {
	Value   T
	Raw     string
	Outcome Outcome
	Err     error
}

func (p Parsed[T]) OK() bool {
	return p.Outcome == Structured
}

// ParseJSON decodes raw model output into T, tolerating a surrounding
// markdown code fence. It never fails; decode errors yield Fallback.
func ParseJSON[T any](raw string) Parsed[T] {
	var out T
	body := StripCodeFence(raw)
	if body == "" {
		return Parsed[T]{Raw: raw, Outcome: Fallback, Err: errEmpty}
	}
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		return Parsed[T]{Raw: raw, Outcome: Fallback, Err: err}
	}
	return Parsed[T]{Value: out, Raw: raw, Outcome: Structured}
}

var errEmpty = errors.New("empty model output")

// StripCodeFence removes a leading ```/```json line and a trailing ``` fence.
func StripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
