package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zereker/corpus/pkg/classify"
	"github.com/Zereker/corpus/pkg/storage"
)

func TestContentRecord(t *testing.T) {
	t.Run("full content round trip", func(t *testing.T) {
		ts := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
		content := &Content{
			ID:        "c1",
			Platform:  "twitter",
			Author:    "ada",
			Text:      "gophers assemble",
			URL:       "https://example.com/c1",
			Language:  "en",
			Timestamp: ts,
			Embedding: []float32{0.1, 0.2, 0.3},
			Classification: &classify.Classification{
				Categories: []string{"tech"},
				Sentiment:  0.7,
				Language:   "en",
				Topics:     []string{"go"},
			},
			CreatedAt: ts,
			UpdatedAt: ts,
		}

		rec := content.Record()
		assert.Equal(t, "c1", rec.ID())
		assert.Equal(t, "twitter", rec["platform"])
		assert.Equal(t, []float32{0.1, 0.2, 0.3}, rec.VectorAt("embedding"))

		back, err := ContentFromRecord(rec)
		require.NoError(t, err)
		assert.Equal(t, content.ID, back.ID)
		assert.Equal(t, content.Platform, back.Platform)
		assert.Equal(t, content.Text, back.Text)
		assert.Equal(t, content.URL, back.URL)
		assert.True(t, content.Timestamp.Equal(back.Timestamp))
		assert.Equal(t, content.Embedding, back.Embedding)
		require.NotNil(t, back.Classification)
		assert.Equal(t, []string{"tech"}, back.Classification.Categories)
		assert.Equal(t, 0.7, back.Classification.Sentiment)
	})

	t.Run("optional fields omitted", func(t *testing.T) {
		rec := (&Content{ID: "c2", Platform: "mastodon", Text: "hi"}).Record()

		_, hasURL := rec["url"]
		_, hasEmbedding := rec["embedding"]
		_, hasClassification := rec["classification"]
		assert.False(t, hasURL)
		assert.False(t, hasEmbedding)
		assert.False(t, hasClassification)
	})

	t.Run("decodes json loose types", func(t *testing.T) {
		// The shape a backend hands back after a JSON round trip.
		rec := storage.Record{
			"id":        "c3",
			"platform":  "twitter",
			"text":      "decoded",
			"timestamp": "2026-08-01T10:00:00Z",
			"embedding": []any{1.0, 0.0},
			"classification": map[string]any{
				"categories": []any{"tech", "news"},
				"sentiment":  0.5,
			},
		}

		content, err := ContentFromRecord(rec)
		require.NoError(t, err)
		assert.Equal(t, []float32{1, 0}, content.Embedding)
		assert.Equal(t, 2026, content.Timestamp.Year())
		require.NotNil(t, content.Classification)
		assert.Equal(t, []string{"tech", "news"}, content.Classification.Categories)
	})

	t.Run("nil record", func(t *testing.T) {
		content, err := ContentFromRecord(nil)
		require.NoError(t, err)
		assert.Nil(t, content)
	})
}

func TestContentSchema(t *testing.T) {
	schema := ContentSchema(384)
	assert.Equal(t, "embedding", schema.VectorField())
	assert.Equal(t, 384, schema.Fields["embedding"].Dimension)
	assert.Equal(t, storage.FieldText, schema.Fields["text"].Kind)
}
