package boundary

import (
	"sort"

	"github.com/casegraph/discovery"
)

// Detect partitions pages into Segments, reconciling the hard and soft
// passes. The result is sorted, non-overlapping, contiguous, and covers
// [0, len(pages)-1]; every segment carries at least one indicator.
func Detect(pages []PageFeatures, opt Options) ([]discovery.Segment, error) {
	if len(pages) == 0 {
		return []discovery.Segment{}, nil
	}
	if opt.SoftThreshold == 0 {
		opt.SoftThreshold = 0.55
	}
	if opt.OCRRelaxationFactor == 0 {
		opt.OCRRelaxationFactor = 0.75
	}
	if opt.GapFillConfidence == 0 {
		opt.GapFillConfidence = 0.3
	}

	threshold := opt.SoftThreshold
	if opt.OCR {
		threshold *= opt.OCRRelaxationFactor
	}

	hard := detectHard(pages)
	soft := detectSoft(pages, threshold)

	byPage := reconcileByPage(append(hard, soft...))

	if len(pages) == 1 {
		if _, ok := byPage[pages[0].PageNum]; !ok {
			byPage[pages[0].PageNum] = &candidate{
				startPage:  pages[0].PageNum,
				indicators: []string{"single-page"},
			}
		}
	}

	firstPage := pages[0].PageNum
	lastPage := pages[len(pages)-1].PageNum

	batesByPage := make(map[int]string, len(pages))
	for _, p := range pages {
		if p.BatesNumber != "" {
			batesByPage[p.PageNum] = p.BatesNumber
		}
	}

	var starts []int
	for p := range byPage {
		if p != firstPage {
			starts = append(starts, p)
		}
	}
	sort.Ints(starts)
	starts = append([]int{firstPage}, starts...)

	// Candidates of the same inferred type on consecutive pages (e.g. an
	// email header block repeated on every page) fold into the run's first.
	merged := []int{starts[0]}
	for i, p := range starts[1:] {
		prev, c := byPage[merged[len(merged)-1]], byPage[p]
		if prev != nil && p == starts[i]+1 && c.documentType != "" && c.documentType == prev.documentType {
			if c.confidence > prev.confidence {
				prev.confidence = c.confidence
			}
			prev.indicators = append(prev.indicators, c.indicators...)
			continue
		}
		merged = append(merged, p)
	}
	starts = merged

	segments := make([]discovery.Segment, 0, len(starts))
	for i, start := range starts {
		end := lastPage
		if i+1 < len(starts) {
			end = starts[i+1] - 1
		}
		batesRange := batesRangeFor(batesByPage, start, end)

		c, ok := byPage[start]
		if !ok || len(c.indicators) == 0 {
			segments = append(segments, discovery.Segment{
				StartPage:          start,
				EndPage:            end,
				DocumentType:       discovery.Other,
				Confidence:         opt.GapFillConfidence,
				BatesRange:         batesRange,
				BoundaryIndicators: []string{"gap-fill"},
			})
			continue
		}
		dt := c.documentType
		if dt == "" {
			dt = discovery.Other
		}
		segments = append(segments, discovery.Segment{
			StartPage:          start,
			EndPage:            end,
			DocumentType:       dt,
			Confidence:         c.confidence,
			BatesRange:         batesRange,
			BoundaryIndicators: c.indicators,
		})
	}

	return segments, nil
}

// batesRangeFor returns the segment's Bates range from its first and last
// page's Bates stamp (spec.md:34-35, 184: Segment.BatesRange), or nil if
// either end of the span has no Bates stamp.
func batesRangeFor(batesByPage map[int]string, start, end int) *discovery.BatesRange {
	first, ok := batesByPage[start]
	if !ok {
		return nil
	}
	last, ok := batesByPage[end]
	if !ok {
		return nil
	}
	return &discovery.BatesRange{Start: first, End: last}
}

// reconcileByPage merges all candidates proposing a boundary at the same
// page, whatever their inferred type: the first non-empty type is kept,
// the maximum confidence is taken, and indicator lists are concatenated.
func reconcileByPage(cands []candidate) map[int]*candidate {
	out := make(map[int]*candidate)
	for _, c := range cands {
		c := c
		existing, ok := out[c.startPage]
		if !ok {
			out[c.startPage] = &c
			continue
		}
		if existing.documentType == "" && c.documentType != "" {
			existing.documentType = c.documentType
		}
		if c.confidence > existing.confidence {
			existing.confidence = c.confidence
		}
		existing.hard = existing.hard || c.hard
		existing.indicators = append(existing.indicators, c.indicators...)
	}
	return out
}
