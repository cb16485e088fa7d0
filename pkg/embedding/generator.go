package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/pkg/errors"
)

// ErrRemoteService marks failures talking to the remote embedding service.
// Callers never see it from Generate; it only reaches logs and tests.
var ErrRemoteService = errors.New("embedding service request failed")

const requestTimeout = 10 * time.Second

// Package-level singleton instance
var generatorInstance *Generator

// Init initializes the generator singleton with config.
func Init(cfg Config) error {
	g, err := New(cfg)
	if err != nil {
		return err
	}
	generatorInstance = g
	return nil
}

// NewGenerator returns the singleton generator instance.
func NewGenerator() *Generator {
	return generatorInstance
}

// Generator produces fixed-dimension embeddings. Vectors come from the remote
// service when one is configured and reachable, and from the deterministic
// local algorithm otherwise. Generate never fails: every remote error is
// recovered by the fallback.
type Generator struct {
	logger *slog.Logger
	config Config
	cache  *Cache
	client *http.Client
	openai *openai.Client
}

// New creates a generator from config.
func New(cfg Config) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	g := &Generator{
		logger: slog.Default().With("module", "embedding"),
		config: cfg,
		cache:  NewCache(cfg.cacheTTL()),
		client: &http.Client{Timeout: requestTimeout},
	}

	if cfg.remoteEnabled() && strings.ToLower(cfg.Provider) == "openai" {
		oc := openai.NewClient(
			option.WithAPIKey(cfg.APIKey),
			option.WithBaseURL(cfg.Endpoint),
		)
		g.openai = &oc
	}

	g.logger.Info("embedding generator ready",
		"remote", cfg.remoteEnabled(),
		"provider", cfg.Provider,
		"dimension", cfg.Dimension,
	)

	return g, nil
}

// Dimension returns the configured vector width.
func (g *Generator) Dimension() int {
	return g.config.Dimension
}

// Generate returns the embedding for text. The cache is consulted first, then
// the remote service, then the local fallback. The result is always of
// Dimension length.
func (g *Generator) Generate(ctx context.Context, text string) []float32 {
	key := CacheKey(text)
	if vec, ok := g.cache.Get(key); ok {
		return vec
	}

	if g.config.remoteEnabled() {
		vec, err := g.remoteOne(ctx, text)
		if err == nil {
			g.cache.Put(key, vec)
			return vec
		}
		g.logger.Warn("remote embedding failed, using local fallback", "error", err)
	}

	vec := localEmbed(text, g.config.Dimension)
	g.cache.Put(key, vec)
	return vec
}

// GenerateBatch returns one embedding per input, index-aligned. Cached items
// are reused; the remaining items go out as a single remote batch call, and if
// that fails each one is generated individually.
func (g *Generator) GenerateBatch(ctx context.Context, texts []string) [][]float32 {
	out := make([][]float32, len(texts))

	var missIdx []int
	var missTexts []string
	for i, text := range texts {
		if vec, ok := g.cache.Get(CacheKey(text)); ok {
			out[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	if len(missIdx) == 0 {
		return out
	}

	if g.config.remoteEnabled() {
		vecs, err := g.remoteBatch(ctx, missTexts)
		if err == nil {
			for n, i := range missIdx {
				out[i] = vecs[n]
				g.cache.Put(CacheKey(texts[i]), vecs[n])
			}
			return out
		}
		g.logger.Warn("remote batch embedding failed, generating per item", "count", len(missTexts), "error", err)
	}

	for _, i := range missIdx {
		out[i] = g.Generate(ctx, texts[i])
	}

	return out
}

// ClearCache drops all cached vectors.
func (g *Generator) ClearCache() {
	g.cache.Clear()
}

func (g *Generator) remoteOne(ctx context.Context, text string) ([]float32, error) {
	if g.openai != nil {
		vecs, err := g.embedOpenAI(ctx, []string{text})
		if err != nil {
			return nil, err
		}
		return vecs[0], nil
	}

	var resp struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := g.postJSON(ctx, map[string]any{"text": text}, &resp); err != nil {
		return nil, err
	}

	if err := g.checkDimension(resp.Embedding); err != nil {
		return nil, err
	}

	return resp.Embedding, nil
}

func (g *Generator) remoteBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if g.openai != nil {
		return g.embedOpenAI(ctx, texts)
	}

	var resp struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := g.postJSON(ctx, map[string]any{"texts": texts}, &resp); err != nil {
		return nil, err
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", ErrRemoteService, len(resp.Embeddings), len(texts))
	}
	for _, vec := range resp.Embeddings {
		if err := g.checkDimension(vec); err != nil {
			return nil, err
		}
	}

	return resp.Embeddings, nil
}

// postJSON issues a single request to the plain HTTP embedding service. No
// retry: a failed attempt falls through to the local algorithm.
func (g *Generator) postJSON(ctx context.Context, payload any, out any) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: marshal request: %v", ErrRemoteService, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrRemoteService, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.config.APIKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteService, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("%w: status %d: %s", ErrRemoteService, resp.StatusCode, string(snippet))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrRemoteService, err)
	}

	return nil
}

func (g *Generator) embedOpenAI(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	resp, err := g.openai.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input:      openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model:      openai.EmbeddingModel(g.config.Model),
		Dimensions: openai.Int(int64(g.config.Dimension)),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteService, err)
	}

	vecs := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || int(item.Index) >= len(texts) {
			return nil, fmt.Errorf("%w: embedding index %d out of range", ErrRemoteService, item.Index)
		}
		vec := make([]float32, len(item.Embedding))
		for i, v := range item.Embedding {
			vec[i] = float32(v)
		}
		if err := g.checkDimension(vec); err != nil {
			return nil, err
		}
		vecs[item.Index] = vec
	}

	for i, vec := range vecs {
		if vec == nil {
			return nil, fmt.Errorf("%w: no embedding returned for input %d", ErrRemoteService, i)
		}
	}

	return vecs, nil
}

func (g *Generator) checkDimension(vec []float32) error {
	if len(vec) != g.config.Dimension {
		return fmt.Errorf("%w: got %d dimensions, want %d", ErrRemoteService, len(vec), g.config.Dimension)
	}
	return nil
}
