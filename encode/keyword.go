package encode

import (
	"sort"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

// KeywordConfig controls the keyword sparse encoder (spec §4.5).
type KeywordConfig struct {
	MaxEntries int // default 4096
	Stopwords  map[string]bool
}

func (c KeywordConfig) withDefaults() KeywordConfig {
	if c.MaxEntries == 0 {
		c.MaxEntries = 4096
	}
	if c.Stopwords == nil {
		c.Stopwords = DefaultStopwords
	}
	return c
}

// DefaultStopwords is a small, fixed English stopword list.
var DefaultStopwords = buildStopwordSet(
	"a", "an", "the", "and", "or", "but", "if", "then", "of", "to", "in", "on",
	"for", "with", "as", "by", "at", "from", "is", "are", "was", "were", "be",
	"been", "being", "this", "that", "these", "those", "it", "its", "he", "she",
	"they", "them", "his", "her", "their", "i", "we", "you", "not", "no", "do",
	"does", "did", "have", "has", "had", "will", "would", "shall", "should",
	"can", "could", "may", "might", "must", "so", "such", "than", "which",
	"who", "whom", "what", "when", "where", "why", "how",
)

func buildStopwordSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

// tokenHash is the stable 32-bit token identifier (spec §4.5:
// "tokenHashU32"), derived from a 64-bit content hash so that distinct
// stems collide only as often as a real 32-bit hash space predicts.
func tokenHash(tok string) uint32 {
	return uint32(xxhash.Sum64String(tok))
}

// Keyword tokenizes text to lowercased word stems, drops stopwords,
// computes term frequencies, and caps the result at cfg.MaxEntries,
// keeping the highest-tf entries when the cap is exceeded.
func Keyword(text string, cfg KeywordConfig) map[uint32]float32 {
	cfg = cfg.withDefaults()

	tf := make(map[uint32]float32)
	for _, tok := range tokenize(text) {
		stem := stem(tok)
		if stem == "" || cfg.Stopwords[tok] || cfg.Stopwords[stem] {
			continue
		}
		tf[tokenHash(stem)]++
	}

	if len(tf) <= cfg.MaxEntries {
		return tf
	}

	type kv struct {
		k uint32
		v float32
	}
	entries := make([]kv, 0, len(tf))
	for k, v := range tf {
		entries = append(entries, kv{k, v})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].v > entries[j].v })
	entries = entries[:cfg.MaxEntries]

	out := make(map[uint32]float32, cfg.MaxEntries)
	for _, e := range entries {
		out[e.k] = e.v
	}
	return out
}

func tokenize(text string) []string {
	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			cur.WriteRune(unicode.ToLower(r))
		} else {
			flush()
		}
	}
	flush()
	return tokens
}

// stem is a lightweight Porter-style suffix stripper: enough to collapse
// common plural/verb forms without pulling in a full stemming dependency.
func stem(tok string) string {
	for _, suffix := range []string{"ing", "edly", "ies", "es", "ed", "s"} {
		if strings.HasSuffix(tok, suffix) && len(tok) > len(suffix)+2 {
			return strings.TrimSuffix(tok, suffix)
		}
	}
	return tok
}
