package encode

import (
	"context"
	"errors"
	"math"
	"testing"
)

type fakeEmbedder struct {
	dim     int
	failOn  string
	batches int
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.batches++
	for _, t := range texts {
		if t == f.failOn {
			return nil, errors.New("simulated failure")
		}
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		v := make([]float32, f.dim)
		v[0] = 3
		v[1] = 4
		out[i] = v
	}
	return out, nil
}

func TestDense_L2Normalized(t *testing.T) {
	e := &fakeEmbedder{dim: 4}
	vecs, err := Dense(context.Background(), e, []string{"a", "b"}, DenseConfig{Dim: 4})
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range vecs {
		var sumSq float64
		for _, x := range v {
			sumSq += float64(x) * float64(x)
		}
		norm := math.Sqrt(sumSq)
		if math.Abs(norm-1.0) > 1e-4 {
			t.Fatalf("expected unit norm, got %f", norm)
		}
	}
}

func TestDense_PerTextFallbackOnBatchFailure(t *testing.T) {
	e := &fakeEmbedder{dim: 4, failOn: "bad"}
	_, err := Dense(context.Background(), e, []string{"good", "bad"}, DenseConfig{Dim: 4, BatchSize: 2})
	if err == nil {
		t.Fatal("expected an error for a text that fails even when embedded alone")
	}
	if e.batches != 3 {
		t.Fatalf("expected 1 batch call plus 2 per-text calls, got %d", e.batches)
	}
}

func TestKeyword_CapsAtMaxEntries(t *testing.T) {
	text := ""
	for i := 0; i < 10; i++ {
		text += "alpha beta gamma delta epsilon "
	}
	kw := Keyword(text, KeywordConfig{MaxEntries: 2})
	if len(kw) > 2 {
		t.Fatalf("expected at most 2 entries, got %d", len(kw))
	}
}

func TestKeyword_DropsStopwords(t *testing.T) {
	kw := Keyword("the a an of contract", KeywordConfig{})
	if len(kw) != 1 {
		t.Fatalf("expected 1 surviving token (contract), got %d", len(kw))
	}
}

func TestCitation_WeightsByLogCount(t *testing.T) {
	text := "See Section 4.2 and Section 4.2 again, and also Section 4.2 once more."
	cit := Citation(text)
	if len(cit) != 1 {
		t.Fatalf("expected 1 distinct citation entry, got %d", len(cit))
	}
	for _, w := range cit {
		if w <= 1 {
			t.Fatalf("expected weight > 1 for repeated match, got %f", w)
		}
	}
}

func TestDeriveFlags(t *testing.T) {
	f := DeriveFlags("Paid $1,200.00 on 3/4/2024 per Section 5.1")
	if !f.HasMonetary || !f.HasDates || !f.HasCitations {
		t.Fatalf("expected all flags set, got %+v", f)
	}
	if f.CitationCount == 0 {
		t.Fatalf("expected nonzero citation count")
	}
}
