package intel

import (
	"strings"
	"testing"
)

func TestNewBudget(t *testing.T) {
	b, err := NewBudget("gpt-4", 100)
	if err != nil {
		t.Fatal(err)
	}
	if b == nil {
		t.Fatal("expected non-nil budget")
	}

	// Unknown models fall back to cl100k_base
	if _, err := NewBudget("some-future-model", 100); err != nil {
		t.Fatalf("fallback tokenizer failed: %v", err)
	}
}

func TestTruncateUnderBudget(t *testing.T) {
	b, err := NewBudget("gpt-4", 1000)
	if err != nil {
		t.Fatal(err)
	}

	text := "a short transcript"
	got, truncated := b.Truncate(text)
	if truncated {
		t.Error("short text should not be truncated")
	}
	if got != text {
		t.Errorf("text changed: %q", got)
	}
}

func TestTruncateOverBudget(t *testing.T) {
	b, err := NewBudget("gpt-4", 20)
	if err != nil {
		t.Fatal(err)
	}

	text := strings.Repeat("This meeting covered quarterly revenue figures. ", 50)
	got, truncated := b.Truncate(text)
	if !truncated {
		t.Fatal("expected truncation")
	}
	if len(got) >= len(text) {
		t.Error("truncated text is not shorter")
	}
	if b.Count(got) > 20 {
		t.Errorf("truncated text counts %d tokens, budget is 20", b.Count(got))
	}
}

func TestTruncateDisabled(t *testing.T) {
	b, err := NewBudget("gpt-4", 0)
	if err != nil {
		t.Fatal(err)
	}

	text := strings.Repeat("words ", 10000)
	got, truncated := b.Truncate(text)
	if truncated || got != text {
		t.Error("zero budget should disable truncation")
	}
}
