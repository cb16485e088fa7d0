package action

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/Zereker/corpus/pkg/classify"
	"github.com/Zereker/corpus/pkg/storage"
)

// memRepo is an in-memory Repository with the vector search capability,
// backing the orchestrator tests without a live backend.
type memRepo struct {
	mu      sync.Mutex
	records map[string]storage.Record
}

func newMemRepo() *memRepo {
	return &memRepo{records: make(map[string]storage.Record)}
}

func (r *memRepo) snapshot(filter storage.Filter) []storage.Record {
	var out []storage.Record
	for _, rec := range r.records {
		if filter.Match(rec) {
			out = append(out, rec.Clone())
		}
	}
	return out
}

func (r *memRepo) Find(_ context.Context, filter storage.Filter, opts storage.FindOptions) ([]storage.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	matched := r.snapshot(filter)
	if matched == nil {
		matched = []storage.Record{}
	}
	return storage.ApplyFindOptions(matched, opts), nil
}

func (r *memRepo) FindByID(_ context.Context, id string) (storage.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, nil
	}
	return rec.Clone(), nil
}

func (r *memRepo) FindOne(ctx context.Context, filter storage.Filter) (storage.Record, error) {
	recs, err := r.Find(ctx, filter, storage.FindOptions{Limit: 1})
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return recs[0], nil
}

func (r *memRepo) Count(_ context.Context, filter storage.Filter) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snapshot(filter)), nil
}

func (r *memRepo) Create(_ context.Context, rec storage.Record) (storage.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := rec.Clone()
	if stored.ID() == "" {
		stored[storage.IDField] = uuid.NewString()
	}
	r.records[stored.ID()] = stored
	return stored.Clone(), nil
}

func (r *memRepo) CreateMany(ctx context.Context, recs []storage.Record) ([]storage.Record, error) {
	out := make([]storage.Record, 0, len(recs))
	for _, rec := range recs {
		stored, err := r.Create(ctx, rec)
		if err != nil {
			return nil, err
		}
		out = append(out, stored)
	}
	return out, nil
}

func (r *memRepo) UpdateByID(_ context.Context, id string, patch storage.Record) (storage.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, nil
	}
	merged := rec.Merge(patch)
	r.records[id] = merged
	return merged.Clone(), nil
}

func (r *memRepo) UpdateMany(_ context.Context, filter storage.Filter, patch storage.Record) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for id, rec := range r.records {
		if filter.Match(rec) {
			r.records[id] = rec.Merge(patch)
			count++
		}
	}
	return count, nil
}

func (r *memRepo) DeleteByID(_ context.Context, id string) (storage.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, nil
	}
	delete(r.records, id)
	return rec, nil
}

func (r *memRepo) DeleteMany(_ context.Context, filter storage.Filter) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for id, rec := range r.records {
		if filter.Match(rec) {
			delete(r.records, id)
			count++
		}
	}
	return count, nil
}

func (r *memRepo) VectorSearch(_ context.Context, field string, query []float32, opts storage.VectorSearchOptions) ([]storage.VectorSearchResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return storage.ScanVectorSearch(r.snapshot(nil), field, query, opts), nil
}

// memStore satisfies the Storage interface with a fixed set of repositories.
type memStore struct {
	repos map[string]storage.Repository
}

func newMemStore(entity string, repo storage.Repository) *memStore {
	return &memStore{repos: map[string]storage.Repository{entity: repo}}
}

func (s *memStore) Repository(entity string) (storage.Repository, error) {
	repo, ok := s.repos[entity]
	if !ok {
		return nil, fmt.Errorf("unknown entity %q", entity)
	}
	return repo, nil
}

// stubEmbedder returns a fixed vector keyed on the first byte of the text,
// so distinct texts land on distinct axes.
type stubEmbedder struct {
	dim int
}

func (e *stubEmbedder) Generate(_ context.Context, text string) []float32 {
	vec := make([]float32, e.dim)
	if len(text) > 0 {
		vec[int(text[0])%e.dim] = 1
	}
	return vec
}

func (e *stubEmbedder) GenerateBatch(ctx context.Context, texts []string) [][]float32 {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.Generate(ctx, text)
	}
	return out
}

func (e *stubEmbedder) Dimension() int { return e.dim }

// stubClassifier labels everything with a fixed classification, recording
// the texts it saw.
type stubClassifier struct {
	mu       sync.Mutex
	seen     []string
	fail     error
	category string
}

func (c *stubClassifier) Classify(_ context.Context, text string) (*classify.Classification, error) {
	c.mu.Lock()
	c.seen = append(c.seen, text)
	c.mu.Unlock()

	if c.fail != nil {
		return nil, c.fail
	}
	return &classify.Classification{
		Categories: []string{c.category},
		Sentiment:  0.1,
		Language:   "en",
	}, nil
}
