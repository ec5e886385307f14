package classify

import (
	"context"
	"errors"
	"testing"

	"github.com/casegraph/discovery"
)

type stubClassifier struct {
	label string
	conf  float64
	err   error
}

func (s stubClassifier) Classify(ctx context.Context, text string, hints []string) (string, float64, error) {
	return s.label, s.conf, s.err
}

func TestDeterministicClassify_HighConfidenceSkipsLLM(t *testing.T) {
	seg := discovery.Segment{}
	text := "DEPOSITION OF JANE DOE\ntranscript follows"
	got, err := Classify(context.Background(), seg, text, "", stubClassifier{err: errors.New("should not be called")}, Config{})
	if err != nil {
		t.Fatal(err)
	}
	if got.DocumentType != discovery.Deposition {
		t.Fatalf("got %s, want Deposition", got.DocumentType)
	}
}

func TestLLMFallback_BelowThreshold(t *testing.T) {
	seg := discovery.Segment{}
	text := "ambiguous filler text with no distinctive markers at all"
	got, err := Classify(context.Background(), seg, text, "", stubClassifier{label: "Motion", conf: 0.9}, Config{})
	if err != nil {
		t.Fatal(err)
	}
	if got.DocumentType != discovery.Motion {
		t.Fatalf("got %s, want Motion", got.DocumentType)
	}
}

func TestLLMFallback_ClampsOutOfEnum(t *testing.T) {
	seg := discovery.Segment{}
	text := "ambiguous filler text with no distinctive markers at all"
	got, err := Classify(context.Background(), seg, text, "", stubClassifier{label: "Pleading", conf: 0.9}, Config{})
	if err != nil {
		t.Fatal(err)
	}
	if got.DocumentType != discovery.Other {
		t.Fatalf("got %s, want Other (clamped)", got.DocumentType)
	}
}
