package boundary

// featureDelta computes a per-page-pair change score in [0, ~1+] from
// normalized differences of text density, average font size, dominant
// font, structural hash, and header/footer presence (spec §4.2, soft
// boundaries).
func featureDelta(a, b PageFeatures) float64 {
	var score float64
	const weight = 1.0 / 5.0

	score += weight * normalizedDelta(a.TextDensity, b.TextDensity)
	score += weight * normalizedDelta(avgFontSize(a.FontSizes), avgFontSize(b.FontSizes))

	if a.DominantFont != b.DominantFont {
		score += weight
	}
	if a.StructuralHash != b.StructuralHash {
		score += weight
	}
	if a.HasHeader != b.HasHeader || a.HasFooter != b.HasFooter {
		score += weight
	}
	return score
}

// normalizedDelta returns |a-b| / max(|a|,|b|,1), bounded to [0,1].
func normalizedDelta(a, b float64) float64 {
	denom := absDelta(a, 0)
	if bd := absDelta(b, 0); bd > denom {
		denom = bd
	}
	if denom < 1 {
		denom = 1
	}
	d := absDelta(a, b) / denom
	if d > 1 {
		d = 1
	}
	return d
}

// detectSoft runs the feature-delta pass, emitting a candidate wherever
// the change score exceeds threshold. threshold should already reflect the
// OCR relaxation factor when applicable.
func detectSoft(pages []PageFeatures, threshold float64) []candidate {
	var out []candidate
	for i := 1; i < len(pages); i++ {
		score := featureDelta(pages[i-1], pages[i])
		if score > threshold {
			out = append(out, candidate{
				startPage:  pages[i].PageNum,
				confidence: score,
				indicators: []string{"feature-delta"},
				hard:       false,
			})
		}
	}
	return out
}
