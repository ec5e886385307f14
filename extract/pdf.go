// Package extract converts a Segment's page range into text plus a
// page-offset table, and chunks that text with paragraph/sentence-boundary
// awareness (spec.md §4.4). It also implements the PDF page/text feature
// provider of spec §6.3 (`pages(pdfBytes) -> []PageFeatures`), a pure
// function over raw bytes.
package extract

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/casegraph/discovery/boundary"
)

// Pages is a pure function converting raw PDF bytes into the per-page
// feature stream the boundary detector consumes (spec §6.3). It never
// mutates or retains pdfBytes.
func Pages(pdfBytes []byte) ([]boundary.PageFeatures, error) {
	reader, err := pdf.NewReader(bytes.NewReader(pdfBytes), int64(len(pdfBytes)))
	if err != nil {
		return nil, fmt.Errorf("extract: opening pdf: %w", err)
	}

	total := reader.NumPage()
	if total == 0 {
		return []boundary.PageFeatures{}, nil
	}

	pages := make([]boundary.PageFeatures, 0, total)
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, fontSizes, dominantFont := extractPageText(page)

		pf := boundary.PageFeatures{
			PageNum:           len(pages),
			Text:              text,
			DominantFont:      dominantFont,
			FontSizes:         fontSizes,
			HasHeader:         looksLikeHeader(text),
			HasFooter:         looksLikeFooter(text),
			HasPageNumber:     pageNumberPattern.MatchString(text),
			TextDensity:       textDensity(text),
			HasSignatureBlock: signatureBlockPattern.MatchString(text),
			BatesNumber:       extractBates(text),
			StructuralHash:    structuralHash(dominantFont, fontSizes, len(text)),
			LayoutDictBlocks:  len(fontSizes),
		}
		pages = append(pages, pf)
	}
	return pages, nil
}

// extractPageText groups the page's content-stream text runs into visual
// lines, the same way the teacher's native PDF parser does, but also
// collects each run's font name/size for boundary-detection features.
func extractPageText(page pdf.Page) (text string, fontSizes []float64, dominantFont string) {
	content := page.Content()
	if len(content.Text) == 0 {
		plain, err := page.GetPlainText(nil)
		if err == nil {
			text = plain
		}
		return text, nil, ""
	}

	const lineTolerance = 3.0
	type visualLine struct {
		y   float64
		buf strings.Builder
	}
	var lines []*visualLine
	var cur *visualLine
	fontCount := make(map[string]int)

	for _, t := range content.Text {
		if cur == nil || math.Abs(t.Y-cur.y) > lineTolerance {
			lines = append(lines, &visualLine{y: t.Y})
			cur = lines[len(lines)-1]
		}
		cur.buf.WriteString(t.S)
		fontSizes = append(fontSizes, t.FontSize)
		fontCount[t.Font]++
	}

	sort.SliceStable(lines, func(i, j int) bool { return lines[i].y > lines[j].y })

	var parts []string
	for _, l := range lines {
		s := strings.TrimSpace(l.buf.String())
		if s != "" {
			parts = append(parts, s)
		}
	}
	text = strings.Join(parts, "\n")

	best, bestCount := "", 0
	for f, c := range fontCount {
		if c > bestCount {
			best, bestCount = f, c
		}
	}
	return text, fontSizes, best
}

var (
	pageNumberPattern     = regexp.MustCompile(`(?i)\bpage\s+\d+\s*(of\s+\d+)?\b|^\s*\d{1,4}\s*$`)
	signatureBlockPattern = regexp.MustCompile(`(?i)/s/\s*\S|signature\s*:|sworn to and subscribed`)
	batesPattern          = regexp.MustCompile(`\b([A-Za-z]{2,6}0*\d{3,9})\b`)
)

func extractBates(text string) string {
	// Bates stamps conventionally appear in the last couple of lines.
	lines := strings.Split(text, "\n")
	scanFrom := 0
	if len(lines) > 3 {
		scanFrom = len(lines) - 3
	}
	tail := strings.Join(lines[scanFrom:], "\n")
	m := batesPattern.FindString(tail)
	return m
}

func looksLikeHeader(text string) bool {
	lines := strings.SplitN(text, "\n", 2)
	return len(lines) > 0 && strings.TrimSpace(lines[0]) != "" && len(lines[0]) < 90
}

func looksLikeFooter(text string) bool {
	lines := strings.Split(text, "\n")
	if len(lines) == 0 {
		return false
	}
	last := strings.TrimSpace(lines[len(lines)-1])
	return last != "" && len(last) < 90
}

func textDensity(text string) float64 {
	if len(text) == 0 {
		return 0
	}
	nonSpace := 0
	for _, r := range text {
		if r != ' ' && r != '\n' && r != '\t' {
			nonSpace++
		}
	}
	return float64(nonSpace) / float64(len(text))
}

func structuralHash(dominantFont string, fontSizes []float64, textLen int) string {
	h := sha256.New()
	h.Write([]byte(dominantFont))
	bucket := textLen / 200
	fmt.Fprintf(h, "|%d|%d", bucket, len(fontSizes))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// NeedsOCR reports whether a page yielded no extractable text, per the
// informational `needsOCR` flag of spec §4.4.
func NeedsOCR(pf boundary.PageFeatures) bool {
	return strings.TrimSpace(pf.Text) == ""
}

// ContentHash computes the SHA-256 content hash used by the document
// registry for deduplication (spec §4.7).
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
