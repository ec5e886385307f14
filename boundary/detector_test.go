package boundary

import (
	"testing"

	"github.com/casegraph/discovery"
)

func depositionPages(n int) []PageFeatures {
	pages := make([]PageFeatures, n)
	for i := 0; i < n; i++ {
		text := "some deposition transcript text\nline two\nline three"
		if i == 0 {
			text = "DEPOSITION OF JANE DOE\n" + text
		}
		pages[i] = PageFeatures{
			PageNum:        i,
			Text:           text,
			DominantFont:   "Times",
			FontSizes:      []float64{11},
			TextDensity:    0.5,
			StructuralHash: "h1",
			BatesNumber:    batesFor("DEF", i+1),
		}
	}
	return pages
}

func batesFor(prefix string, n int) string {
	digits := "000000"
	s := digits + itoa(n)
	return prefix + s[len(s)-6:]
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

func TestDetect_SingleDepositionS1(t *testing.T) {
	pages := depositionPages(12)
	segs, err := Detect(pages, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(segs) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segs))
	}
	s := segs[0]
	if s.StartPage != 0 || s.EndPage != 11 {
		t.Fatalf("expected [0,11], got [%d,%d]", s.StartPage, s.EndPage)
	}
	if s.DocumentType != discovery.Deposition {
		t.Fatalf("expected Deposition, got %s", s.DocumentType)
	}
	if s.Confidence < 0.8 {
		t.Fatalf("expected confidence >= 0.8, got %f", s.Confidence)
	}
}

func TestDetect_MultiDocumentProductionS2(t *testing.T) {
	var pages []PageFeatures
	for i := 0; i < 5; i++ {
		text := "motion body text"
		if i == 0 {
			text = "MOTION TO COMPEL\n" + text
		}
		pages = append(pages, PageFeatures{PageNum: len(pages), Text: text, StructuralHash: "m", DominantFont: "Arial"})
	}
	for i := 0; i < 7; i++ {
		text := "From: a@x.com\nTo: b@x.com\nSubject: hi\nDate: Jan 1, 2024\nbody"
		pages = append(pages, PageFeatures{PageNum: len(pages), Text: text, StructuralHash: "e", DominantFont: "Courier"})
	}
	for i := 0; i < 8; i++ {
		text := "line items"
		if i == 0 {
			text = "INVOICE #12345\n" + text
		}
		pages = append(pages, PageFeatures{PageNum: len(pages), Text: text, StructuralHash: "i", DominantFont: "Helvetica"})
	}

	segs, err := Detect(pages, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(segs) != 3 {
		t.Fatalf("expected 3 segments, got %d: %+v", len(segs), segs)
	}
	wantTypes := []discovery.DocumentType{discovery.Motion, discovery.Email, discovery.Invoice}
	for i, s := range segs {
		if s.DocumentType != wantTypes[i] {
			t.Errorf("segment %d: got %s, want %s", i, s.DocumentType, wantTypes[i])
		}
	}
	if segs[0].StartPage != 0 || segs[0].EndPage != 4 {
		t.Errorf("motion range = [%d,%d], want [0,4]", segs[0].StartPage, segs[0].EndPage)
	}
	if segs[1].StartPage != 5 || segs[1].EndPage != 11 {
		t.Errorf("email range = [%d,%d], want [5,11]", segs[1].StartPage, segs[1].EndPage)
	}
	if segs[2].StartPage != 12 || segs[2].EndPage != 19 {
		t.Errorf("invoice range = [%d,%d], want [12,19]", segs[2].StartPage, segs[2].EndPage)
	}
}

func TestDetect_EmptyPDF(t *testing.T) {
	segs, err := Detect(nil, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(segs) != 0 {
		t.Fatalf("expected 0 segments, got %d", len(segs))
	}
}

func TestDetect_SinglePageNoHardMatch(t *testing.T) {
	pages := []PageFeatures{{PageNum: 0, Text: "nothing distinctive here"}}
	segs, err := Detect(pages, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(segs) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segs))
	}
	if segs[0].DocumentType != discovery.Other {
		t.Fatalf("expected Other, got %s", segs[0].DocumentType)
	}
	if len(segs[0].BoundaryIndicators) == 0 {
		t.Fatal("expected at least one indicator")
	}
}

func TestDetect_CoversFullPageRange(t *testing.T) {
	pages := depositionPages(5)
	// Inject a spurious soft-boundary-causing discontinuity mid-document.
	pages[3].DominantFont = "Wingdings"
	pages[3].FontSizes = []float64{30}
	pages[3].StructuralHash = "different"
	pages[3].TextDensity = 0.95

	segs, err := Detect(pages, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if segs[0].StartPage != 0 {
		t.Fatalf("first segment must start at 0, got %d", segs[0].StartPage)
	}
	if segs[len(segs)-1].EndPage != 4 {
		t.Fatalf("last segment must end at pageCount-1=4, got %d", segs[len(segs)-1].EndPage)
	}
	for i := 1; i < len(segs); i++ {
		if segs[i].StartPage != segs[i-1].EndPage+1 {
			t.Fatalf("gap/overlap between segment %d and %d", i-1, i)
		}
	}
}
