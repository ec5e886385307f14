package facts

import "testing"

func TestExtractSnippet_BasicOverlap(t *testing.T) {
	chunkText := "The truck departed the warehouse at 5pm. The driver logged 300 miles that day. Weather was clear."
	snippet := extractSnippet(chunkText, "The driver logged 300 miles on the day of the incident.")

	if snippet == "" {
		t.Fatal("expected non-empty snippet")
	}
	if !containsWord(snippet, "driver") {
		t.Errorf("expected snippet to mention driver, got: %q", snippet)
	}
}

func TestExtractSnippet_NoOverlap(t *testing.T) {
	chunkText := "The quick brown fox jumps over the lazy dog."
	snippet := extractSnippet(chunkText, "quantum computing uses superconducting qubits")

	if snippet != "" {
		t.Errorf("expected empty snippet when no overlap, got: %q", snippet)
	}
}

func TestExtractSnippet_EmptyInputs(t *testing.T) {
	if s := extractSnippet("", "test content"); s != "" {
		t.Errorf("expected empty for empty chunk text, got: %q", s)
	}
	if s := extractSnippet("some content here.", ""); s != "" {
		t.Errorf("expected empty for empty fact content, got: %q", s)
	}
}

func TestExtractSnippet_RespectsMaxLen(t *testing.T) {
	chunkText := "First sentence about trucks. Second sentence about voltage ratings. " +
		"Third sentence about safety compliance. Fourth sentence about wiring diagrams. " +
		"Fifth sentence about installation procedures. Sixth sentence about maintenance schedules."
	snippet := extractSnippet(chunkText, "trucks voltage safety wiring installation maintenance")

	if len(snippet) > snippetMaxLen {
		t.Errorf("snippet exceeds max length: %d > %d", len(snippet), snippetMaxLen)
	}
}

func containsWord(s, word string) bool {
	for i := 0; i+len(word) <= len(s); i++ {
		if s[i:i+len(word)] == word {
			return true
		}
	}
	return false
}
