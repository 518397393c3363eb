package llmclient

import (
	"errors"
	"testing"
)

func TestCountTokensEmpty(t *testing.T) {
	if got := CountTokens("   "); got != 0 {
		t.Fatalf("blank text must count as zero, got %d", got)
	}
}

func TestCountTokensWords(t *testing.T) {
	if got := CountTokens("three short words"); got < 3 {
		t.Fatalf("expected at least one token per word, got %d", got)
	}
}

func TestCountTokensLongRun(t *testing.T) {
	long := make([]byte, 400)
	for i := range long {
		long[i] = 'x'
	}
	if got := CountTokens(string(long)); got != 100 {
		t.Fatalf("unbroken run should count by length/4, got %d", got)
	}
}

func TestPermanentErrorUnwrap(t *testing.T) {
	base := ErrInvalidJSON
	wrapped := NewPermanentError(base)
	var pe *PermanentError
	if !errors.As(wrapped, &pe) {
		t.Fatalf("expected PermanentError")
	}
	if !errors.Is(wrapped, base) {
		t.Fatalf("wrapped error must match the original")
	}
}
