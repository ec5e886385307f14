package extract

import (
	"regexp"
	"strings"

	"github.com/casegraph/discovery"
	"github.com/casegraph/discovery/boundary"
)

// PageOffset maps a character index in a segment's extracted text to the
// PDF page number it came from.
type PageOffset struct {
	CharIndex int
	PageNum   int
}

var repeatedWhitespace = regexp.MustCompile(`[ \t]+`)

// SegmentText converts the pages in [seg.StartPage, seg.EndPage] to text
// plus a page-offset table, preserving paragraph breaks and collapsing
// repeated whitespace (spec §4.4). If any page in range yields empty text,
// needsOCR is true (informational only; OCR is an external collaborator).
func SegmentText(pages []boundary.PageFeatures, seg discovery.Segment) (text string, offsets []PageOffset, needsOCR bool) {
	var b strings.Builder
	for _, pf := range pages {
		if pf.PageNum < seg.StartPage || pf.PageNum > seg.EndPage {
			continue
		}
		if NeedsOCR(pf) {
			needsOCR = true
		}

		pageText := normalizeWhitespace(pf.Text)
		offsets = append(offsets, PageOffset{CharIndex: b.Len(), PageNum: pf.PageNum})

		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(pageText)
	}
	return b.String(), offsets, needsOCR
}

func normalizeWhitespace(s string) string {
	s = repeatedWhitespace.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	return strings.Join(lines, "\n")
}

// PageForOffset returns the PDF page number containing character index
// charIdx, given the offsets table produced by SegmentText.
func PageForOffset(offsets []PageOffset, charIdx int) int {
	page := 0
	for _, o := range offsets {
		if o.CharIndex > charIdx {
			break
		}
		page = o.PageNum
	}
	return page
}
