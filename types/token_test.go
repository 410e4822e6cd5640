package types

import "testing"

func TestTokenUsage_Add(t *testing.T) {
	t.Parallel()

	u := TokenUsage{Requests: 1, PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}
	u.Add(TokenUsage{Requests: 1, PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5})

	if u.Requests != 2 || u.PromptTokens != 13 || u.CompletionTokens != 7 || u.TotalTokens != 20 {
		t.Fatalf("unexpected usage: %+v", u)
	}
}

func TestEstimateCounter(t *testing.T) {
	t.Parallel()

	var c EstimateCounter
	if c.CountTokens("") != 0 {
		t.Fatal("empty text has no tokens")
	}
	if got := c.CountTokens("abcd"); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
	if got := c.CountTokens("abcde"); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
}
