package llm

import (
	"context"
	"strings"
	"testing"

	"github.com/casegraph/discovery"
)

type stubProvider struct {
	content string
	err     error
	lastReq ChatRequest
}

func (s *stubProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return &ChatResponse{Content: s.content}, nil
}

func (s *stubProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1}
	}
	return out, nil
}

func TestClassifierAdapter_PassesPromptThroughAndReturnsContent(t *testing.T) {
	p := &stubProvider{content: `{"label":"Deposition","confidence":0.7}`}
	a := ClassifierAdapter{Provider: p, Model: "test-model"}

	label, confidence, err := a.Classify(context.Background(), "some prompt", []string{"hint1"})
	if err != nil {
		t.Fatal(err)
	}
	if label != p.content {
		t.Fatalf("expected raw content passed through, got %q", label)
	}
	if confidence != 0 {
		t.Fatalf("adapter itself never parses confidence, got %v", confidence)
	}
	if p.lastReq.Messages[0].Content != "some prompt" {
		t.Fatalf("expected prompt forwarded verbatim, got %q", p.lastReq.Messages[0].Content)
	}
	if p.lastReq.Model != "test-model" {
		t.Fatalf("expected configured model on request, got %q", p.lastReq.Model)
	}
}

func TestClassifierAdapter_PropagatesProviderError(t *testing.T) {
	p := &stubProvider{err: context.DeadlineExceeded}
	a := ClassifierAdapter{Provider: p}

	if _, _, err := a.Classify(context.Background(), "x", nil); err == nil {
		t.Fatal("expected error to propagate")
	}
}

func TestFactExtractorAdapter_EmbedsDocumentTypeInPrompt(t *testing.T) {
	p := &stubProvider{content: `[]`}
	a := FactExtractorAdapter{Provider: p, Model: "test-model"}

	raw, err := a.Extract(context.Background(), "the witness testified that...", discovery.MedicalRecord)
	if err != nil {
		t.Fatal(err)
	}
	if raw != "[]" {
		t.Fatalf("expected raw content passed through, got %q", raw)
	}
	if !strings.Contains(strings.ToLower(p.lastReq.Messages[0].Content), "medical record") {
		t.Fatalf("expected human-readable document type in prompt, got %q", p.lastReq.Messages[0].Content)
	}
}

func TestHumanDocumentType(t *testing.T) {
	tests := map[discovery.DocumentType]string{
		discovery.MedicalRecord:   "medical record",
		discovery.PoliceReport:    "police report",
		discovery.Deposition:      "deposition",
		discovery.BillOfLading:    "bill of lading",
	}
	for dt, want := range tests {
		if got := humanDocumentType(dt); got != want {
			t.Errorf("humanDocumentType(%s) = %q, want %q", dt, got, want)
		}
	}
}
