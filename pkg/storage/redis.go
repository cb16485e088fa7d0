package storage

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// KeyValueConfig holds Redis connection configuration. Prefix namespaces
// every key this service writes.
type KeyValueConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Prefix   string `toml:"prefix"`
}

// Validate checks Redis configuration.
func (c *KeyValueConfig) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr is required")
	}
	if c.Prefix == "" {
		c.Prefix = "corpus"
	}
	return nil
}

// keyValueProvider owns the Redis client. Schema-less: RegisterModel is a
// recorded no-op kept for interface symmetry.
type keyValueProvider struct {
	logger *slog.Logger
	config KeyValueConfig

	mu        sync.Mutex
	client    *redis.Client
	connected bool
	models    map[string]Schema
	repos     map[string]*keyValueRepository
}

func newKeyValueProvider(cfg KeyValueConfig) *keyValueProvider {
	return &keyValueProvider{
		logger: slog.Default().With("module", "storage.keyvalue"),
		config: cfg,
		models: make(map[string]Schema),
		repos:  make(map[string]*keyValueRepository),
	}
}

func (p *keyValueProvider) Kind() Kind { return KindKeyValue }

func (p *keyValueProvider) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.connected {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     p.config.Addr,
		Password: p.config.Password,
		DB:       p.config.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("ping redis: %w", err)
	}

	p.client = client
	p.connected = true
	return nil
}

func (p *keyValueProvider) Disconnect(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.connected {
		return nil
	}

	err := p.client.Close()
	p.client = nil
	p.connected = false
	p.repos = make(map[string]*keyValueRepository)
	return err
}

func (p *keyValueProvider) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

func (p *keyValueProvider) RegisterModel(entity string, schema Schema) error {
	if err := validateEntity(entity); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.models[entity] = schema
	return nil
}

func (p *keyValueProvider) Repository(entity string) (Repository, error) {
	if err := validateEntity(entity); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.connected {
		return nil, ErrNotConnected
	}

	if repo, ok := p.repos[entity]; ok {
		return repo, nil
	}

	repo := &keyValueRepository{
		logger: p.logger.With("entity", entity),
		client: p.client,
		prefix: p.config.Prefix,
		entity: entity,
	}
	p.repos[entity] = repo
	return repo, nil
}

// keyValueRepository implements Repository over Redis. Each record is one
// JSON value at prefix:entity:id, with the collection's ids tracked in a
// set at prefix:entity:ids. Redis has no native query language for our
// filter vocabulary, so Find loads the collection and applies the shared
// client-side predicate.
type keyValueRepository struct {
	logger *slog.Logger
	client *redis.Client
	prefix string
	entity string

	probeOnce sync.Once
	ftIndex   string
}

var (
	_ Repository     = (*keyValueRepository)(nil)
	_ VectorSearcher = (*keyValueRepository)(nil)
)

func (r *keyValueRepository) key(id string) string {
	return fmt.Sprintf("%s:%s:%s", r.prefix, r.entity, id)
}

func (r *keyValueRepository) idsKey() string {
	return fmt.Sprintf("%s:%s:ids", r.prefix, r.entity)
}

// loadAll fetches every record in the collection: one SMEMBERS for the ids,
// one pipelined MGET-equivalent for the values. Ids whose value has expired
// or vanished are pruned from the set lazily.
func (r *keyValueRepository) loadAll(ctx context.Context) ([]Record, error) {
	ids, err := r.client.SMembers(ctx, r.idsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("load ids %s: %w", r.entity, err)
	}
	if len(ids) == 0 {
		return []Record{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.key(id)
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load records %s: %w", r.entity, err)
	}

	records := make([]Record, 0, len(values))
	var stale []any
	for i, val := range values {
		raw, ok := val.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}

		var rec Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			r.logger.Warn("skipping undecodable record", "id", ids[i], "error", err)
			continue
		}
		records = append(records, rec)
	}

	if len(stale) > 0 {
		_ = r.client.SRem(ctx, r.idsKey(), stale...).Err()
	}

	return records, nil
}

func (r *keyValueRepository) store(ctx context.Context, pipe redis.Pipeliner, rec Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", r.entity, err)
	}

	pipe.Set(ctx, r.key(rec.ID()), raw, 0)
	pipe.SAdd(ctx, r.idsKey(), rec.ID())
	return nil
}

func (r *keyValueRepository) Find(ctx context.Context, filter Filter, opts FindOptions) ([]Record, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	all, err := r.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	matched := make([]Record, 0, len(all))
	for _, rec := range all {
		if filter.Match(rec) {
			matched = append(matched, rec)
		}
	}

	return ApplyFindOptions(matched, opts), nil
}

func (r *keyValueRepository) FindByID(ctx context.Context, id string) (Record, error) {
	raw, err := r.client.Get(ctx, r.key(id)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", r.entity, id, err)
	}

	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", r.entity, id, err)
	}
	return rec, nil
}

func (r *keyValueRepository) FindOne(ctx context.Context, filter Filter) (Record, error) {
	records, err := r.Find(ctx, filter, FindOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

func (r *keyValueRepository) Count(ctx context.Context, filter Filter) (int, error) {
	if err := filter.Validate(); err != nil {
		return 0, err
	}

	if len(filter) == 0 {
		total, err := r.client.SCard(ctx, r.idsKey()).Result()
		if err != nil {
			return 0, fmt.Errorf("count %s: %w", r.entity, err)
		}
		return int(total), nil
	}

	all, err := r.loadAll(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, rec := range all {
		if filter.Match(rec) {
			count++
		}
	}
	return count, nil
}

func (r *keyValueRepository) Create(ctx context.Context, rec Record) (Record, error) {
	stored := rec.Clone()
	if stored.ID() == "" {
		stored[IDField] = uuid.NewString()
	}

	pipe := r.client.Pipeline()
	if err := r.store(ctx, pipe, stored); err != nil {
		return nil, err
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("create %s: %w", r.entity, err)
	}

	return stored, nil
}

// CreateMany pipelines independent writes. Unlike the document and graph
// batch paths there is no single backend write here: a failure can leave
// part of the batch stored.
func (r *keyValueRepository) CreateMany(ctx context.Context, recs []Record) ([]Record, error) {
	if len(recs) == 0 {
		return []Record{}, nil
	}

	stored := make([]Record, len(recs))
	pipe := r.client.Pipeline()
	for i, rec := range recs {
		stored[i] = rec.Clone()
		if stored[i].ID() == "" {
			stored[i][IDField] = uuid.NewString()
		}
		if err := r.store(ctx, pipe, stored[i]); err != nil {
			return nil, err
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("batch create %s: %w", r.entity, err)
	}

	return stored, nil
}

func (r *keyValueRepository) UpdateByID(ctx context.Context, id string, patch Record) (Record, error) {
	existing, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, nil
	}

	merged := existing.Merge(patch)
	raw, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("marshal %s/%s: %w", r.entity, id, err)
	}

	if err := r.client.Set(ctx, r.key(id), raw, 0).Err(); err != nil {
		return nil, fmt.Errorf("update %s/%s: %w", r.entity, id, err)
	}

	return merged, nil
}

func (r *keyValueRepository) UpdateMany(ctx context.Context, filter Filter, patch Record) (int, error) {
	matches, err := r.Find(ctx, filter, FindOptions{Limit: math.MaxInt32})
	if err != nil {
		return 0, err
	}

	pipe := r.client.Pipeline()
	for _, rec := range matches {
		merged := rec.Merge(patch)
		raw, err := json.Marshal(merged)
		if err != nil {
			return 0, fmt.Errorf("marshal %s/%s: %w", r.entity, rec.ID(), err)
		}
		pipe.Set(ctx, r.key(rec.ID()), raw, 0)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("batch update %s: %w", r.entity, err)
	}

	return len(matches), nil
}

func (r *keyValueRepository) DeleteByID(ctx context.Context, id string) (Record, error) {
	existing, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, nil
	}

	pipe := r.client.Pipeline()
	pipe.Del(ctx, r.key(id))
	pipe.SRem(ctx, r.idsKey(), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("delete %s/%s: %w", r.entity, id, err)
	}

	return existing, nil
}

func (r *keyValueRepository) DeleteMany(ctx context.Context, filter Filter) (int, error) {
	matches, err := r.Find(ctx, filter, FindOptions{Limit: math.MaxInt32})
	if err != nil {
		return 0, err
	}
	if len(matches) == 0 {
		return 0, nil
	}

	pipe := r.client.Pipeline()
	for _, rec := range matches {
		pipe.Del(ctx, r.key(rec.ID()))
		pipe.SRem(ctx, r.idsKey(), rec.ID())
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("batch delete %s: %w", r.entity, err)
	}

	return len(matches), nil
}

// VectorSearch tries a RediSearch k-NN query when an FT index named
// idx:<entity> exists, and falls back to the exhaustive cosine scan
// otherwise. The FT probe runs once per repository; a missing search module
// or index counts as unavailable, never as an error.
func (r *keyValueRepository) VectorSearch(ctx context.Context, field string, query []float32, opts VectorSearchOptions) ([]VectorSearchResult, error) {
	r.probeOnce.Do(func() { r.ftIndex = r.probeSearchIndex(ctx) })

	if r.ftIndex != "" {
		results, err := r.nativeVectorSearch(ctx, field, query, opts)
		if err == nil {
			return results, nil
		}
		r.logger.Warn("ft knn search failed, falling back to scan", "index", r.ftIndex, "error", err)
	}

	return r.scanVectorSearch(ctx, field, query, opts), nil
}

func (r *keyValueRepository) probeSearchIndex(ctx context.Context) string {
	index := "idx:" + r.entity
	if err := r.client.FTInfo(ctx, index).Err(); err != nil {
		r.logger.Debug("ft index probe failed, treating as unavailable", "index", index, "error", err)
		return ""
	}
	return index
}

func (r *keyValueRepository) nativeVectorSearch(ctx context.Context, field string, query []float32, opts VectorSearchOptions) ([]VectorSearchResult, error) {
	k := opts.Limit
	if k <= 0 {
		k = DefaultVectorLimit
	}

	blob := make([]byte, 4*len(query))
	for i, f := range query {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(f))
	}

	res, err := r.client.FTSearchWithArgs(ctx, r.ftIndex,
		fmt.Sprintf("*=>[KNN %d @%s $vec AS knn_dist]", k, field),
		&redis.FTSearchOptions{
			Params:         map[string]any{"vec": blob},
			DialectVersion: 2,
			SortBy:         []redis.FTSearchSortBy{{FieldName: "knn_dist", Asc: true}},
			LimitOffset:    0,
			Limit:          k,
		},
	).Result()
	if err != nil {
		return nil, fmt.Errorf("ft search %s: %w", r.entity, err)
	}

	results := make([]VectorSearchResult, 0, len(res.Docs))
	for _, doc := range res.Docs {
		distStr, ok := doc.Fields["knn_dist"]
		if !ok {
			continue
		}
		dist, err := strconv.ParseFloat(distStr, 64)
		if err != nil {
			continue
		}

		// FT returns cosine distance; similarity is its complement.
		score := 1 - dist
		if score < opts.MinScore {
			continue
		}

		// The hash document carries field values as strings; the stored
		// JSON record is the authoritative form.
		id := doc.ID
		if raw, ok := doc.Fields[IDField]; ok {
			id = raw
		}
		rec, err := r.FindByID(ctx, id)
		if err != nil || rec == nil {
			continue
		}

		results = append(results, VectorSearchResult{Item: rec, Score: score})
	}

	return results, nil
}

func (r *keyValueRepository) scanVectorSearch(ctx context.Context, field string, query []float32, opts VectorSearchOptions) []VectorSearchResult {
	all, err := r.loadAll(ctx)
	if err != nil {
		r.logger.Warn("vector scan enumeration failed", "field", field, "error", err)
		return []VectorSearchResult{}
	}

	return ScanVectorSearch(all, field, query, opts)
}
