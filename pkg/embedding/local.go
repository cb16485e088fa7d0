package embedding

import (
	"strings"

	"github.com/Zereker/corpus/pkg/similarity"
)

// maxLocalTokens bounds how much text feeds the local algorithm.
const maxLocalTokens = 100

// localEmbed produces a deterministic embedding without any remote service.
// Each character of the first maxLocalTokens whitespace tokens contributes its
// code point, scattered across the vector by token and character position, and
// the result is L2-normalized. Empty or whitespace-only text yields the zero
// vector of the requested dimension.
func localEmbed(text string, dimension int) []float32 {
	vec := make([]float32, dimension)

	tokens := strings.Fields(strings.ToLower(text))
	if len(tokens) > maxLocalTokens {
		tokens = tokens[:maxLocalTokens]
	}

	for i, token := range tokens {
		runes := []rune(token)
		for j, r := range runes {
			idx := (i*len(runes) + j) % dimension
			vec[idx] += float32(r) / 255
		}
	}

	return similarity.Normalize(vec)
}
