// Package boundary detects logical document boundaries inside a PDF's
// page stream (spec.md §4.2): a hard, rule-based high-precision pass and a
// soft, feature-delta pass, reconciled into a gap-free, non-overlapping
// partition of the page range.
package boundary

import "github.com/casegraph/discovery"

// PageFeatures is the per-page feature stream the detector consumes.
type PageFeatures struct {
	PageNum          int
	Text             string
	DominantFont     string
	FontSizes        []float64
	HasHeader        bool
	HasFooter        bool
	HasPageNumber    bool
	TextDensity      float64
	HasSignatureBlock bool
	BatesNumber      string // optional; empty if absent
	StructuralHash   string
	LayoutDictBlocks int
}

// candidate is an internal boundary-start marker produced by either
// detection pass, keyed on the page where a new segment is believed to
// begin.
type candidate struct {
	startPage    int
	documentType discovery.DocumentType
	confidence   float64
	indicators   []string
	hard         bool
}

// Options configures a single Detect call.
type Options struct {
	SoftThreshold       float64 // τ, default 0.55
	OCR                 bool    // relax soft threshold when true
	OCRRelaxationFactor float64 // default 0.75
	GapFillConfidence   float64 // default 0.3
}
