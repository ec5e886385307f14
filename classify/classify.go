package classify

import (
	"context"

	"github.com/casegraph/discovery"
)

// Config carries the thresholds of spec §4.3.
type Config struct {
	ConfidenceThreshold float64
	HeaderLines         int
}

// Classify assigns seg.DocumentType and adjusts Confidence; Title is left
// unchanged. The deterministic classifier runs first; the LLM classifier is
// only invoked when its confidence falls below cfg.ConfidenceThreshold.
// Classify is idempotent and deterministic given the same inputs, rule set
// version, and LLM determinism.
func Classify(ctx context.Context, seg discovery.Segment, text, footer string, llmClassifier Classifier, cfg Config) (discovery.Segment, error) {
	if cfg.HeaderLines == 0 {
		cfg.HeaderLines = 40
	}
	if cfg.ConfidenceThreshold == 0 {
		cfg.ConfidenceThreshold = 0.6
	}

	dt, conf := DeterministicClassify(text, cfg.HeaderLines, footer)

	if conf >= cfg.ConfidenceThreshold || llmClassifier == nil {
		seg.DocumentType = dt
		seg.Confidence = conf
		return seg, nil
	}

	llmDT, llmConf, err := classifyWithLLM(ctx, llmClassifier, text, seg.BoundaryIndicators)
	if err != nil {
		// The deterministic result, even below threshold, is still the
		// best available pure signal; surface it rather than fail the
		// segment outright. Callers may inspect Confidence to decide
		// whether to retry or flag for review.
		seg.DocumentType = dt
		seg.Confidence = conf
		return seg, err
	}

	seg.DocumentType = llmDT
	seg.Confidence = llmConf
	return seg, nil
}
