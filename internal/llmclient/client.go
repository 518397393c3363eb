package llmclient

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"unicode"
)

var ErrInvalidJSON = errors.New("invalid json from LLM")

// Client is the minimal surface the pipeline needs from a language model.
// A nil Client is valid everywhere; callers fall back to heuristics.
type Client interface {
	Name() string
	GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error)
	CountTokens(text string) int
	Close() error
}

// PermanentError indicates an error that will not resolve with retries.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

func NewPermanentError(err error) error {
	return &PermanentError{Err: err}
}

// CountTokens is a rough token estimate: one token per word plus one per
// four characters of the longest run. Good enough for budget checks.
func CountTokens(text string) int {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}
	words := 0
	inWord := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			inWord = false
			continue
		}
		if !inWord {
			words++
			inWord = true
		}
	}
	byLen := len(text) / 4
	if byLen > words {
		return byLen
	}
	return words
}
