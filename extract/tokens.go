package extract

import (
	"math"
	"strings"
)

// Tokenizer counts tokens in s. The chunker depends only on this callable,
// never on a specific vendor's tokenizer (spec §4.4).
type Tokenizer func(s string) int

// WordHeuristicTokenizer approximates token count from word count, the
// same heuristic the teacher's graph builder uses for its own budget
// calculations (words * 1.3, rounded up).
func WordHeuristicTokenizer(s string) int {
	words := len(strings.Fields(s))
	return int(math.Ceil(float64(words) * 1.3))
}
