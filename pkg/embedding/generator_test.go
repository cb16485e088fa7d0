package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

const testDimension = 8

// newEmbedServer serves the plain HTTP embedding contract: {"text"} returns one
// vector, {"texts"} returns one per input. failBatch makes batch requests 500.
func newEmbedServer(t *testing.T, calls *atomic.Int64, failBatch bool) *httptest.Server {
	t.Helper()

	serve := func(seed string) []float32 {
		vec := make([]float32, testDimension)
		for i := range vec {
			vec[i] = float32(len(seed)+i) / 100
		}
		return vec
	}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req struct {
			Text  string   `json:"text"`
			Texts []string `json:"texts"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		if req.Texts != nil {
			if failBatch {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			vecs := make([][]float32, len(req.Texts))
			for i, text := range req.Texts {
				vecs[i] = serve(text)
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": vecs})
			return
		}

		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": serve(req.Text)})
	}))
}

func newTestGenerator(t *testing.T, endpoint string) *Generator {
	t.Helper()

	g, err := New(Config{
		Endpoint:  endpoint,
		APIKey:    "test-key",
		Dimension: testDimension,
		CacheTTL:  "1h",
	})
	assert.NoError(t, err)
	return g
}

func TestGenerateRemote(t *testing.T) {
	var calls atomic.Int64
	srv := newEmbedServer(t, &calls, false)
	defer srv.Close()

	g := newTestGenerator(t, srv.URL)
	ctx := context.Background()

	vec := g.Generate(ctx, "hello world")
	assert.Len(t, vec, testDimension)
	assert.Equal(t, int64(1), calls.Load())

	// Second call within TTL is a cache hit, not another remote call.
	again := g.Generate(ctx, "hello world")
	assert.Equal(t, vec, again)
	assert.Equal(t, int64(1), calls.Load())
}

func TestGenerateFallsBackOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	g := newTestGenerator(t, srv.URL)

	vec := g.Generate(context.Background(), "resilient text")
	assert.Equal(t, localEmbed("resilient text", testDimension), vec)
}

func TestGenerateFallsBackOnWrongDimension(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": []float32{1, 2}})
	}))
	defer srv.Close()

	g := newTestGenerator(t, srv.URL)

	vec := g.Generate(context.Background(), "short reply")
	assert.Equal(t, localEmbed("short reply", testDimension), vec)
}

func TestGenerateFallsBackOnUnreachableService(t *testing.T) {
	g := newTestGenerator(t, "http://127.0.0.1:1")

	vec := g.Generate(context.Background(), "no service here")
	assert.Equal(t, localEmbed("no service here", testDimension), vec)
}

func TestGenerateLocalOnly(t *testing.T) {
	g, err := New(Config{Dimension: testDimension})
	assert.NoError(t, err)

	vec := g.Generate(context.Background(), "pure local")
	assert.Equal(t, localEmbed("pure local", testDimension), vec)

	// Empty input still yields a full-width vector.
	empty := g.Generate(context.Background(), "")
	assert.Len(t, empty, testDimension)
}

func TestGenerateBatch(t *testing.T) {
	var calls atomic.Int64
	srv := newEmbedServer(t, &calls, false)
	defer srv.Close()

	g := newTestGenerator(t, srv.URL)
	ctx := context.Background()

	texts := []string{"first", "second", "third"}
	vecs := g.GenerateBatch(ctx, texts)
	assert.Len(t, vecs, 3)
	for i, vec := range vecs {
		assert.Len(t, vec, testDimension, "vector %d", i)
	}
	// All three went out in one batch call.
	assert.Equal(t, int64(1), calls.Load())

	// A repeat batch is served fully from cache.
	again := g.GenerateBatch(ctx, texts)
	assert.Equal(t, vecs, again)
	assert.Equal(t, int64(1), calls.Load())
}

func TestGenerateBatchDegradesPerItem(t *testing.T) {
	var calls atomic.Int64
	srv := newEmbedServer(t, &calls, true)
	defer srv.Close()

	g := newTestGenerator(t, srv.URL)

	texts := []string{"one", "two", "three"}
	vecs := g.GenerateBatch(context.Background(), texts)
	assert.Len(t, vecs, 3)
	for i, vec := range vecs {
		assert.Len(t, vec, testDimension, "vector %d", i)
	}
	// One failed batch call plus one single call per item.
	assert.Equal(t, int64(4), calls.Load())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
		check   func(*testing.T, Config)
	}{
		{
			name: "defaults applied",
			cfg:  Config{},
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, "http", cfg.Provider)
				assert.Equal(t, DefaultDimension, cfg.Dimension)
				assert.Equal(t, "24h0m0s", cfg.CacheTTL)
			},
		},
		{
			name: "openai provider accepted",
			cfg:  Config{Provider: "openai", Dimension: 1536},
		},
		{
			name:    "unknown provider rejected",
			cfg:     Config{Provider: "grpc"},
			wantErr: true,
		},
		{
			name:    "negative dimension rejected",
			cfg:     Config{Dimension: -1},
			wantErr: true,
		},
		{
			name:    "bad ttl rejected",
			cfg:     Config{CacheTTL: "soon"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			if tt.check != nil {
				tt.check(t, tt.cfg)
			}
		})
	}
}

func TestConfigRemoteEnabled(t *testing.T) {
	assert.False(t, Config{}.remoteEnabled())
	assert.False(t, Config{Endpoint: "http://svc"}.remoteEnabled())
	assert.False(t, Config{APIKey: "k"}.remoteEnabled())
	assert.True(t, Config{Endpoint: "http://svc", APIKey: "k"}.remoteEnabled())
}

func TestConfigApplyEnv(t *testing.T) {
	t.Setenv("EMBEDDING_SERVICE_ENDPOINT", "http://env-endpoint")
	t.Setenv("EMBEDDING_SERVICE_API_KEY", "env-key")
	t.Setenv("EMBEDDING_DIMENSION", "128")

	cfg := Config{Endpoint: "http://file-endpoint", Dimension: 64}
	cfg.ApplyEnv()

	assert.Equal(t, "http://env-endpoint", cfg.Endpoint)
	assert.Equal(t, "env-key", cfg.APIKey)
	assert.Equal(t, 128, cfg.Dimension)
}
