package extract

import (
	"strings"
	"testing"

	"github.com/casegraph/discovery"
)

func TestBuildChunks_DenseOrdinals(t *testing.T) {
	seg := discovery.Segment{ID: "seg-1", DocumentType: discovery.Deposition, StartPage: 0, EndPage: 1}
	text := strings.Repeat("word ", 5000)
	offsets := []PageOffset{{CharIndex: 0, PageNum: 0}, {CharIndex: len(text) / 2, PageNum: 1}}

	chunks := BuildChunks(seg, text, offsets, "case-a", "doc-1", ChunkExtras{}, Config{TargetTokens: 100, OverlapTokens: 10})
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks for long text, got %d", len(chunks))
	}
	for i, c := range chunks {
		if c.Ordinal != i {
			t.Fatalf("ordinal %d at index %d, want dense 0..k-1", c.Ordinal, i)
		}
		if c.Metadata.DocumentType != discovery.Deposition {
			t.Fatalf("metadata documentType not propagated")
		}
	}
}

func TestBuildChunks_ShortTextSingleChunk(t *testing.T) {
	seg := discovery.Segment{ID: "seg-1"}
	chunks := BuildChunks(seg, "short text", nil, "case-a", "doc-1", ChunkExtras{}, Config{})
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
}

func TestBuildChunks_NeverSplitsSmallParagraph(t *testing.T) {
	text := "Paragraph one is short.\n\nParagraph two is also short."
	frags := splitIntoFragments(text, Config{TargetTokens: 1400, OverlapTokens: 200, Tokenizer: WordHeuristicTokenizer})
	if len(frags) != 1 {
		t.Fatalf("expected both short paragraphs merged into 1 fragment, got %d: %v", len(frags), frags)
	}
}
