package storage

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Integration tests run against live backends and are gated on env vars:
//
//	CORPUS_TEST_OPENSEARCH=https://localhost:9200
//	CORPUS_TEST_NEO4J=bolt://localhost:7687
//	CORPUS_TEST_REDIS=localhost:6379
//
// Each variable enables the round-trip suite for its backend.

func integrationService(t *testing.T, kind Kind) *Service {
	t.Helper()

	var cfg Config
	switch kind {
	case KindDocument:
		addr := os.Getenv("CORPUS_TEST_OPENSEARCH")
		if addr == "" {
			t.Skip("CORPUS_TEST_OPENSEARCH not set")
		}
		cfg = Config{Kind: KindDocument, Document: DocumentConfig{
			Addresses:   []string{addr},
			Username:    os.Getenv("CORPUS_TEST_OPENSEARCH_USER"),
			Password:    os.Getenv("CORPUS_TEST_OPENSEARCH_PASS"),
			InsecureSSL: true,
		}}
	case KindGraph:
		uri := os.Getenv("CORPUS_TEST_NEO4J")
		if uri == "" {
			t.Skip("CORPUS_TEST_NEO4J not set")
		}
		cfg = Config{Kind: KindGraph, Graph: GraphConfig{
			URI:      uri,
			Username: os.Getenv("CORPUS_TEST_NEO4J_USER"),
			Password: os.Getenv("CORPUS_TEST_NEO4J_PASS"),
			Database: "neo4j",
		}}
	case KindKeyValue:
		addr := os.Getenv("CORPUS_TEST_REDIS")
		if addr == "" {
			t.Skip("CORPUS_TEST_REDIS not set")
		}
		cfg = Config{Kind: KindKeyValue, KeyValue: KeyValueConfig{
			Addr:   addr,
			Prefix: "corpus_test",
		}}
	}

	svc, err := NewService(cfg)
	require.NoError(t, err)
	require.NoError(t, svc.Connect(context.Background()))

	t.Cleanup(func() { _ = svc.Disconnect(context.Background()) })
	return svc
}

func runRepositorySuite(t *testing.T, kind Kind) {
	svc := integrationService(t, kind)
	ctx := context.Background()

	require.NoError(t, svc.RegisterModel("content_it", Schema{Fields: map[string]Field{
		"platform":  {Kind: FieldKeyword},
		"text":      {Kind: FieldText},
		"views":     {Kind: FieldNumber},
		"embedding": {Kind: FieldVector, Dimension: 3},
	}}))

	repo, err := svc.Repository("content_it")
	require.NoError(t, err)

	// Start from a clean collection.
	_, err = repo.DeleteMany(ctx, Filter{})
	require.NoError(t, err)

	t.Run("create and find round trip", func(t *testing.T) {
		created, err := repo.Create(ctx, Record{"platform": "twitter", "text": "hello", "views": 10})
		require.NoError(t, err)
		require.NotEmpty(t, created.ID())

		found, err := repo.FindByID(ctx, created.ID())
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, "twitter", found["platform"])
		assert.Equal(t, "hello", found["text"])
	})

	t.Run("find by id absent", func(t *testing.T) {
		found, err := repo.FindByID(ctx, "no-such-id")
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("update missing id is a no-op", func(t *testing.T) {
		before, err := repo.Count(ctx, Filter{})
		require.NoError(t, err)

		updated, err := repo.UpdateByID(ctx, "no-such-id", Record{"text": "changed"})
		require.NoError(t, err)
		assert.Nil(t, updated)

		after, err := repo.Count(ctx, Filter{})
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})

	t.Run("update merges and keeps identity", func(t *testing.T) {
		created, err := repo.Create(ctx, Record{"platform": "twitter", "text": "orig", "views": 1})
		require.NoError(t, err)

		updated, err := repo.UpdateByID(ctx, created.ID(), Record{"text": "patched", "id": "hijack"})
		require.NoError(t, err)
		require.NotNil(t, updated)
		assert.Equal(t, created.ID(), updated.ID())
		assert.Equal(t, "patched", updated["text"])
		assert.Equal(t, "twitter", updated["platform"])
	})

	t.Run("createMany and filtered count", func(t *testing.T) {
		_, err := repo.DeleteMany(ctx, Filter{})
		require.NoError(t, err)

		_, err = repo.CreateMany(ctx, []Record{
			{"platform": "twitter", "text": "a", "views": 5},
			{"platform": "twitter", "text": "b", "views": 50},
			{"platform": "mastodon", "text": "c", "views": 500},
		})
		require.NoError(t, err)

		total, err := repo.Count(ctx, Filter{})
		require.NoError(t, err)
		assert.Equal(t, 3, total)

		twitter, err := repo.Count(ctx, Filter{Eq("platform", "twitter")})
		require.NoError(t, err)
		assert.Equal(t, 2, twitter)

		popular, err := repo.Count(ctx, Filter{Gte("views", 50)})
		require.NoError(t, err)
		assert.Equal(t, 2, popular)
	})

	t.Run("delete returns removed record", func(t *testing.T) {
		created, err := repo.Create(ctx, Record{"platform": "bluesky", "text": "bye"})
		require.NoError(t, err)

		removed, err := repo.DeleteByID(ctx, created.ID())
		require.NoError(t, err)
		require.NotNil(t, removed)
		assert.Equal(t, created.ID(), removed.ID())

		gone, err := repo.FindByID(ctx, created.ID())
		require.NoError(t, err)
		assert.Nil(t, gone)

		again, err := repo.DeleteByID(ctx, created.ID())
		require.NoError(t, err)
		assert.Nil(t, again)
	})

	t.Run("vector search via capability", func(t *testing.T) {
		_, err := repo.DeleteMany(ctx, Filter{})
		require.NoError(t, err)

		_, err = repo.CreateMany(ctx, []Record{
			{"id": "a", "text": "a", "embedding": []float32{1, 0, 0}},
			{"id": "b", "text": "b", "embedding": []float32{0, 1, 0}},
		})
		require.NoError(t, err)

		searcher, ok := Repository(repo).(VectorSearcher)
		require.True(t, ok)

		results, err := searcher.VectorSearch(ctx, "embedding", []float32{1, 0, 0}, VectorSearchOptions{
			Limit:    10,
			MinScore: 0.5,
		})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "a", results[0].Item.ID())
		assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	})

	t.Run("disconnect twice is clean", func(t *testing.T) {
		require.NoError(t, svc.Disconnect(ctx))
		assert.False(t, svc.Connected())
		require.NoError(t, svc.Disconnect(ctx))
		assert.False(t, svc.Connected())
	})
}

func TestDocumentRepositoryIntegration(t *testing.T) {
	runRepositorySuite(t, KindDocument)
}

func TestGraphRepositoryIntegration(t *testing.T) {
	runRepositorySuite(t, KindGraph)
}

func TestKeyValueRepositoryIntegration(t *testing.T) {
	runRepositorySuite(t, KindKeyValue)
}
