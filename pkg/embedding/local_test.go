package embedding

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocalEmbed(t *testing.T) {
	t.Run("always returns the requested dimension", func(t *testing.T) {
		for _, text := range []string{"", "one", "a longer piece of text with several words", "   "} {
			vec := localEmbed(text, 16)
			assert.Len(t, vec, 16, "text %q", text)
		}
	})

	t.Run("deterministic", func(t *testing.T) {
		a := localEmbed("the quick brown fox", 32)
		b := localEmbed("the quick brown fox", 32)
		assert.Equal(t, a, b)
	})

	t.Run("empty text yields the zero vector", func(t *testing.T) {
		vec := localEmbed("", 8)
		for _, x := range vec {
			assert.Zero(t, x)
		}
	})

	t.Run("non-empty text yields a unit vector", func(t *testing.T) {
		vec := localEmbed("some meaningful content", 64)
		var norm float64
		for _, x := range vec {
			norm += float64(x) * float64(x)
		}
		assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
	})

	t.Run("case insensitive", func(t *testing.T) {
		assert.Equal(t, localEmbed("Hello World", 16), localEmbed("hello world", 16))
	})

	t.Run("different texts diverge", func(t *testing.T) {
		assert.NotEqual(t, localEmbed("alpha beta", 32), localEmbed("gamma delta", 32))
	})

	t.Run("tokens beyond the limit are ignored", func(t *testing.T) {
		head := strings.Repeat("tok ", maxLocalTokens)
		a := localEmbed(head+"extra", 32)
		b := localEmbed(head+"other", 32)
		assert.Equal(t, a, b)
	})
}
