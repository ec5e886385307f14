package encode

import (
	"math"
	"regexp"
)

// citationPattern is one fixed extractor in the citation-pattern library
// (spec §4.5: "legal citations, statute sections, Bates numbers, monetary
// amounts, dates"), grounded in the teacher's citation/cross-reference
// regex idiom.
type citationPattern struct {
	name string
	re   *regexp.Regexp
}

var citationPatterns = []citationPattern{
	{"section", regexp.MustCompile(`(?i)\bSection\s+\d+(\.\d+)*\b|\bSec\.\s*\d+(\.\d+)*\b|\bSec\s+\d+(\.\d+)*\b`)},
	{"article", regexp.MustCompile(`(?i)\bArticle\s+[IVXLCDM\d]+\b|\bArt\.\s*[IVXLCDM\d]+\b`)},
	{"clause", regexp.MustCompile(`(?i)\bClause\s+\d+(\.\d+)*\b|\bCl\.\s*\d+(\.\d+)*\b`)},
	{"statute", regexp.MustCompile(`\b\d{1,4}\s?U\.?S\.?C\.?\s?§*\s?\d+[a-zA-Z]*\b|\bFla\.?\s?Stat\.?\s?§*\s?\d+(\.\d+)*\b|§\s?\d+(\.\d+)*`)},
	{"page", regexp.MustCompile(`(?i)\bPage\s+\d+\b|\bp\.\s*\d+\b|\bpp\.\s*\d+(-\d+)?\b`)},
	{"source", regexp.MustCompile(`\[Source\s+\d+\]`)},
	{"bates", regexp.MustCompile(`\b[A-Za-z]{2,6}0*\d{3,9}\b`)},
	{"monetary", regexp.MustCompile(`\$\s?[\d,]+(\.\d{2})?\b`)},
	{"date", regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{2,4}\b|\b(January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2},?\s+\d{4}\b`)},
}

// Citation extracts each fixed pattern's matches from text, groups by
// exact match text, and weights each distinct match by
// 1 + log(1 + matchCount) (spec §4.5). Returned separately from the
// keyword vector so callers can weight citation matches independently at
// query time.
func Citation(text string) map[uint32]float32 {
	counts := make(map[string]int)
	for _, cp := range citationPatterns {
		for _, m := range cp.re.FindAllString(text, -1) {
			counts[m]++
		}
	}

	out := make(map[uint32]float32, len(counts))
	for match, count := range counts {
		out[tokenHash(match)] = float32(1 + math.Log(1+float64(count)))
	}
	return out
}

// Flags is the derived entity-flag summary of spec §4.5.
type Flags struct {
	HasCitations  bool
	HasMonetary   bool
	HasDates      bool
	CitationCount int
}

// DeriveFlags classifies text's citation matches by category to produce
// the entity flags stored alongside every chunk.
func DeriveFlags(text string) Flags {
	var f Flags
	for _, cp := range citationPatterns {
		matches := cp.re.FindAllString(text, -1)
		if len(matches) == 0 {
			continue
		}
		switch cp.name {
		case "monetary":
			f.HasMonetary = true
		case "date":
			f.HasDates = true
		default:
			f.HasCitations = true
			f.CitationCount += len(matches)
		}
	}
	return f
}
