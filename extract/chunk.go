package extract

import (
	"strings"

	"github.com/casegraph/discovery"
)

// Config controls chunking behavior (spec §4.4).
type Config struct {
	TargetTokens  int // T, default 1400
	OverlapTokens int // O, default 200
	Tokenizer     Tokenizer
}

// ChunkExtras carries the production-level fields copied into every chunk's
// metadata (spec §6.4 payload keys not derivable from the Segment alone).
type ChunkExtras struct {
	ProductionBatch string
	ProducingParty  string
}

func (c Config) withDefaults() Config {
	if c.TargetTokens == 0 {
		c.TargetTokens = 1400
	}
	if c.OverlapTokens == 0 {
		c.OverlapTokens = 200
	}
	if c.Tokenizer == nil {
		c.Tokenizer = WordHeuristicTokenizer
	}
	return c
}

// BuildChunks splits segment text into Chunks whose ordinals are dense
// (0..k-1), never breaking across a paragraph boundary unless the
// paragraph exceeds 2*T tokens, in which case it falls back to sentence
// boundaries and, failing that, a hard character cut (spec §4.4).
func BuildChunks(seg discovery.Segment, text string, offsets []PageOffset, caseName discovery.CaseName, documentID string, extra ChunkExtras, cfg Config) []discovery.Chunk {
	cfg = cfg.withDefaults()

	fragments := splitIntoFragments(text, cfg)
	chunks := make([]discovery.Chunk, 0, len(fragments))

	searchFrom := 0
	for ordinal, frag := range fragments {
		idx := strings.Index(text[searchFrom:], strings.TrimSpace(firstLine(frag)))
		start := searchFrom
		if idx >= 0 {
			start = searchFrom + idx
		}
		pageStart := PageForOffset(offsets, start)
		pageEnd := PageForOffset(offsets, start+len(frag))
		if pageEnd < pageStart {
			pageEnd = pageStart
		}
		searchFrom = start + 1

		var batesStart, batesEnd string
		if seg.BatesRange != nil {
			batesStart, batesEnd = seg.BatesRange.Start, seg.BatesRange.End
		}

		chunks = append(chunks, discovery.Chunk{
			CaseName:   caseName,
			DocumentID: documentID,
			SegmentID:  seg.ID,
			Ordinal:    ordinal,
			Text:       frag,
			TokenCount: cfg.Tokenizer(frag),
			Metadata: discovery.ChunkMetadata{
				CaseName:        caseName,
				DocumentID:      documentID,
				SegmentID:       seg.ID,
				Ordinal:         ordinal,
				DocumentType:    seg.DocumentType,
				PageSpanStart:   pageStart,
				PageSpanEnd:     pageEnd,
				BatesStart:      batesStart,
				BatesEnd:        batesEnd,
				ProductionBatch: extra.ProductionBatch,
				ProducingParty:  extra.ProducingParty,
			},
		})
	}
	return chunks
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	if len(s) > 40 {
		return s[:40]
	}
	return s
}

// splitIntoFragments is the teacher's paragraph/sentence-aware splitter,
// generalized with a hard-cut fallback for the pathological case of a
// single sentence still exceeding the target.
func splitIntoFragments(text string, cfg Config) []string {
	if cfg.Tokenizer(text) <= cfg.TargetTokens {
		t := strings.TrimSpace(text)
		if t == "" {
			return nil
		}
		return []string{t}
	}

	paragraphs := splitParagraphs(text)
	var fragments []string
	var current strings.Builder
	currentTokens := 0
	overlapText := ""

	flush := func() {
		if current.Len() == 0 {
			return
		}
		fragments = append(fragments, strings.TrimSpace(current.String()))
		overlapText = extractOverlap(current.String(), cfg.OverlapTokens, cfg.Tokenizer)
		current.Reset()
		currentTokens = 0
	}

	for _, para := range paragraphs {
		paraTokens := cfg.Tokenizer(para)

		if paraTokens > 2*cfg.TargetTokens {
			flush()
			sentFrags := splitBySentences(para, overlapText, cfg)
			fragments = append(fragments, sentFrags...)
			if len(sentFrags) > 0 {
				overlapText = extractOverlap(sentFrags[len(sentFrags)-1], cfg.OverlapTokens, cfg.Tokenizer)
			}
			continue
		}

		if currentTokens+paraTokens > cfg.TargetTokens && current.Len() > 0 {
			flush()
			if overlapText != "" {
				current.WriteString(overlapText)
				current.WriteString("\n\n")
				currentTokens = cfg.Tokenizer(overlapText)
			}
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
		currentTokens += paraTokens
	}
	if current.Len() > 0 {
		fragments = append(fragments, strings.TrimSpace(current.String()))
	}
	return fragments
}

func splitBySentences(text, initialOverlap string, cfg Config) []string {
	sentences := splitSentences(text)
	var fragments []string
	var current strings.Builder
	currentTokens := 0

	if initialOverlap != "" {
		current.WriteString(initialOverlap)
		current.WriteString(" ")
		currentTokens = cfg.Tokenizer(initialOverlap)
	}

	for _, sent := range sentences {
		sentTokens := cfg.Tokenizer(sent)

		if sentTokens > cfg.TargetTokens {
			if current.Len() > 0 {
				fragments = append(fragments, strings.TrimSpace(current.String()))
				current.Reset()
				currentTokens = 0
			}
			fragments = append(fragments, hardCut(sent, cfg)...)
			continue
		}

		if currentTokens+sentTokens > cfg.TargetTokens && current.Len() > 0 {
			fragments = append(fragments, strings.TrimSpace(current.String()))
			overlap := extractOverlap(current.String(), cfg.OverlapTokens, cfg.Tokenizer)
			current.Reset()
			currentTokens = 0
			if overlap != "" {
				current.WriteString(overlap)
				current.WriteString(" ")
				currentTokens = cfg.Tokenizer(overlap)
			}
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sent)
		currentTokens += sentTokens
	}
	if current.Len() > 0 {
		fragments = append(fragments, strings.TrimSpace(current.String()))
	}
	return fragments
}

// hardCut is the last-resort fallback named in spec §4.4: when a sentence
// itself exceeds the target, cut it at an approximate character budget.
func hardCut(sentence string, cfg Config) []string {
	approxCharsPerToken := 5
	budget := cfg.TargetTokens * approxCharsPerToken
	if budget <= 0 {
		return []string{sentence}
	}
	var out []string
	for len(sentence) > budget {
		out = append(out, strings.TrimSpace(sentence[:budget]))
		sentence = sentence[budget:]
	}
	if strings.TrimSpace(sentence) != "" {
		out = append(out, strings.TrimSpace(sentence))
	}
	return out
}

func splitParagraphs(text string) []string {
	raw := strings.Split(text, "\n\n")
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func splitSentences(text string) []string {
	var sentences []string
	var cur strings.Builder
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		cur.WriteRune(runes[i])
		if runes[i] == '.' || runes[i] == '?' || runes[i] == '!' {
			if i+1 >= len(runes) || runes[i+1] == ' ' || runes[i+1] == '\n' || runes[i+1] == '\t' {
				s := strings.TrimSpace(cur.String())
				if s != "" {
					sentences = append(sentences, s)
				}
				cur.Reset()
			}
		}
	}
	if cur.Len() > 0 {
		if s := strings.TrimSpace(cur.String()); s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

func extractOverlap(text string, maxTokens int, tok Tokenizer) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}
	maxWords := len(words)
	for maxWords > 0 && tok(strings.Join(words[len(words)-maxWords:], " ")) > maxTokens {
		maxWords--
	}
	if maxWords == 0 {
		return ""
	}
	return strings.Join(words[len(words)-maxWords:], " ")
}
