package storage

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/opensearch-project/opensearch-go/v4"
	"github.com/opensearch-project/opensearch-go/v4/opensearchapi"
)

// scanWindow caps how many documents the fallback scan and the in-process
// update/delete paths pull from the index in one search. Collections larger
// than this are only partially covered by the brute-force vector path.
const scanWindow = 10000

// DocumentConfig holds OpenSearch connection configuration.
type DocumentConfig struct {
	Addresses   []string `toml:"addresses"`
	Username    string   `toml:"username"`
	Password    string   `toml:"password"`
	InsecureSSL bool     `toml:"insecure_ssl"`
}

// Validate checks OpenSearch configuration.
func (c *DocumentConfig) Validate() error {
	if len(c.Addresses) == 0 {
		return fmt.Errorf("addresses is required")
	}
	return nil
}

// documentProvider owns the OpenSearch client. The document backend is the
// only one with a real schema concept: RegisterModel is mandatory and index
// mappings are derived from the registered schema.
type documentProvider struct {
	logger *slog.Logger
	config DocumentConfig

	mu        sync.Mutex
	client    *opensearchapi.Client
	connected bool
	models    map[string]Schema
	repos     map[string]*documentRepository
}

func newDocumentProvider(cfg DocumentConfig) *documentProvider {
	return &documentProvider{
		logger: slog.Default().With("module", "storage.document"),
		config: cfg,
		models: make(map[string]Schema),
		repos:  make(map[string]*documentRepository),
	}
}

func (p *documentProvider) Kind() Kind { return KindDocument }

func (p *documentProvider) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.connected {
		return nil
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if p.config.InsecureSSL {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	client, err := opensearchapi.NewClient(opensearchapi.Config{
		Client: opensearch.Config{
			Addresses: p.config.Addresses,
			Username:  p.config.Username,
			Password:  p.config.Password,
			Transport: transport,
		},
	})
	if err != nil {
		return fmt.Errorf("create opensearch client: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := client.Ping(pingCtx, nil); err != nil {
		return fmt.Errorf("ping opensearch: %w", err)
	}

	p.client = client
	p.connected = true

	// Models registered before Connect get their indexes now.
	for entity, schema := range p.models {
		if err := p.ensureIndex(ctx, entity, schema); err != nil {
			return err
		}
	}

	return nil
}

func (p *documentProvider) Disconnect(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.connected {
		return nil
	}

	p.client = nil
	p.connected = false
	p.repos = make(map[string]*documentRepository)
	return nil
}

func (p *documentProvider) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

func (p *documentProvider) RegisterModel(entity string, schema Schema) error {
	if err := validateEntity(entity); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.models[entity] = schema
	if p.connected {
		return p.ensureIndex(context.Background(), entity, schema)
	}
	return nil
}

func (p *documentProvider) Repository(entity string) (Repository, error) {
	if err := validateEntity(entity); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.connected {
		return nil, ErrNotConnected
	}

	schema, ok := p.models[entity]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModelNotRegistered, entity)
	}

	if repo, ok := p.repos[entity]; ok {
		return repo, nil
	}

	repo := &documentRepository{
		logger: p.logger.With("entity", entity),
		client: p.client,
		index:  entity,
		schema: schema,
	}
	p.repos[entity] = repo
	return repo, nil
}

// ensureIndex creates the entity index with a mapping derived from the
// schema. An index that already exists is left untouched.
func (p *documentProvider) ensureIndex(ctx context.Context, entity string, schema Schema) error {
	properties := make(map[string]any, len(schema.Fields))
	hasVector := false

	for name, field := range schema.Fields {
		switch field.Kind {
		case FieldText:
			properties[name] = map[string]any{
				"type":   "text",
				"fields": map[string]any{"keyword": map[string]any{"type": "keyword"}},
			}
		case FieldKeyword:
			properties[name] = map[string]any{"type": "keyword"}
		case FieldNumber:
			properties[name] = map[string]any{"type": "double"}
		case FieldBool:
			properties[name] = map[string]any{"type": "boolean"}
		case FieldDate:
			properties[name] = map[string]any{"type": "date"}
		case FieldVector:
			hasVector = true
			properties[name] = map[string]any{
				"type":      "knn_vector",
				"dimension": field.Dimension,
				"method": map[string]any{
					"name":       "hnsw",
					"space_type": "cosinesimil",
					"engine":     "lucene",
				},
			}
		}
	}

	body := map[string]any{
		"mappings": map[string]any{"properties": properties},
	}
	if hasVector {
		body["settings"] = map[string]any{"index.knn": true}
	}

	bodyJSON, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal index mapping %s: %w", entity, err)
	}

	_, err = p.client.Indices.Create(ctx, opensearchapi.IndicesCreateReq{
		Index: entity,
		Body:  bytes.NewReader(bodyJSON),
	})
	if err != nil {
		if strings.Contains(err.Error(), "resource_already_exists_exception") {
			return nil
		}
		return fmt.Errorf("create index %s: %w", entity, err)
	}

	p.logger.Info("index created", "index", entity, "knn", hasVector)
	return nil
}

// documentRepository implements Repository over one OpenSearch index.
type documentRepository struct {
	logger *slog.Logger
	client *opensearchapi.Client
	index  string
	schema Schema
}

var (
	_ Repository     = (*documentRepository)(nil)
	_ VectorSearcher = (*documentRepository)(nil)
)

// buildQuery translates the generic filter into an OpenSearch bool query.
func (r *documentRepository) buildQuery(filter Filter) map[string]any {
	if len(filter) == 0 {
		return map[string]any{"match_all": map[string]any{}}
	}

	clauses := make([]map[string]any, 0, len(filter))
	for _, cond := range filter {
		switch cond.Op {
		case OpEq:
			clauses = append(clauses, map[string]any{"term": map[string]any{r.termField(cond.Field): cond.Value}})
		case OpIn:
			clauses = append(clauses, map[string]any{"terms": map[string]any{r.termField(cond.Field): cond.Value}})
		case OpGte:
			clauses = append(clauses, map[string]any{"range": map[string]any{cond.Field: map[string]any{"gte": cond.Value}}})
		case OpLte:
			clauses = append(clauses, map[string]any{"range": map[string]any{cond.Field: map[string]any{"lte": cond.Value}}})
		case OpContains:
			clauses = append(clauses, map[string]any{"wildcard": map[string]any{
				r.termField(cond.Field): map[string]any{"value": fmt.Sprintf("*%v*", cond.Value)},
			}})
		}
	}

	return map[string]any{"bool": map[string]any{"filter": clauses}}
}

// termField routes exact matches on analyzed text fields through their
// keyword subfield.
func (r *documentRepository) termField(field string) string {
	if f, ok := r.schema.Fields[field]; ok && f.Kind == FieldText {
		return field + ".keyword"
	}
	return field
}

func (r *documentRepository) sortField(field string) string {
	return r.termField(field)
}

func (r *documentRepository) search(ctx context.Context, body map[string]any) ([]Record, error) {
	bodyJSON, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal query %s: %w", r.index, err)
	}

	resp, err := r.client.Search(ctx, &opensearchapi.SearchReq{
		Indices: []string{r.index},
		Body:    bytes.NewReader(bodyJSON),
	})
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", r.index, err)
	}

	records := make([]Record, 0, len(resp.Hits.Hits))
	for _, hit := range resp.Hits.Hits {
		var doc Record
		if err := json.Unmarshal(hit.Source, &doc); err != nil {
			continue
		}
		records = append(records, doc)
	}

	return records, nil
}

func (r *documentRepository) Find(ctx context.Context, filter Filter, opts FindOptions) ([]Record, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	body := map[string]any{
		"query": r.buildQuery(filter),
		"from":  opts.skip(),
		"size":  opts.limit(),
	}

	if len(opts.Sort) > 0 {
		sorts := make([]map[string]any, 0, len(opts.Sort))
		for _, sf := range opts.Sort {
			order := "asc"
			if sf.Desc {
				order = "desc"
			}
			sorts = append(sorts, map[string]any{r.sortField(sf.Field): map[string]any{"order": order}})
		}
		body["sort"] = sorts
	}

	return r.search(ctx, body)
}

func (r *documentRepository) FindByID(ctx context.Context, id string) (Record, error) {
	resp, err := r.client.Document.Get(ctx, opensearchapi.DocumentGetReq{
		Index:      r.index,
		DocumentID: id,
	})
	if err != nil {
		// The client reports a missing document as an error; absence is
		// not an error on this contract.
		if resp != nil && !resp.Found {
			return nil, nil
		}
		if strings.Contains(err.Error(), "404") {
			return nil, nil
		}
		return nil, fmt.Errorf("get %s/%s: %w", r.index, id, err)
	}

	if !resp.Found {
		return nil, nil
	}

	var doc Record
	if err := json.Unmarshal(resp.Source, &doc); err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", r.index, id, err)
	}
	return doc, nil
}

func (r *documentRepository) FindOne(ctx context.Context, filter Filter) (Record, error) {
	records, err := r.Find(ctx, filter, FindOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

func (r *documentRepository) Count(ctx context.Context, filter Filter) (int, error) {
	if err := filter.Validate(); err != nil {
		return 0, err
	}

	bodyJSON, err := json.Marshal(map[string]any{"query": r.buildQuery(filter)})
	if err != nil {
		return 0, fmt.Errorf("marshal query %s: %w", r.index, err)
	}

	resp, err := r.client.Search(ctx, &opensearchapi.SearchReq{
		Indices: []string{r.index},
		Body:    bytes.NewReader(bodyJSON),
		Params: opensearchapi.SearchParams{
			Size:           opensearchapi.ToPointer(0),
			TrackTotalHits: true,
		},
	})
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", r.index, err)
	}

	return resp.Hits.Total.Value, nil
}

func (r *documentRepository) Create(ctx context.Context, rec Record) (Record, error) {
	stored := rec.Clone()
	if stored.ID() == "" {
		stored[IDField] = uuid.NewString()
	}

	docJSON, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", r.index, err)
	}

	_, err = r.client.Index(ctx, opensearchapi.IndexReq{
		Index:      r.index,
		DocumentID: stored.ID(),
		Body:       bytes.NewReader(docJSON),
		Params:     opensearchapi.IndexParams{Refresh: "true"},
	})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", r.index, err)
	}

	return stored, nil
}

func (r *documentRepository) CreateMany(ctx context.Context, recs []Record) ([]Record, error) {
	if len(recs) == 0 {
		return []Record{}, nil
	}

	stored := make([]Record, len(recs))
	var buf bytes.Buffer
	for i, rec := range recs {
		stored[i] = rec.Clone()
		if stored[i].ID() == "" {
			stored[i][IDField] = uuid.NewString()
		}

		meta, _ := json.Marshal(map[string]any{
			"index": map[string]any{"_index": r.index, "_id": stored[i].ID()},
		})
		doc, err := json.Marshal(stored[i])
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", r.index, err)
		}

		buf.Write(meta)
		buf.WriteByte('\n')
		buf.Write(doc)
		buf.WriteByte('\n')
	}

	_, err := r.client.Bulk(ctx, opensearchapi.BulkReq{
		Body:   bytes.NewReader(buf.Bytes()),
		Params: opensearchapi.BulkParams{Refresh: "true"},
	})
	if err != nil {
		return nil, fmt.Errorf("bulk create %s: %w", r.index, err)
	}

	return stored, nil
}

func (r *documentRepository) UpdateByID(ctx context.Context, id string, patch Record) (Record, error) {
	existing, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, nil
	}

	merged := existing.Merge(patch)
	docJSON, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("marshal %s/%s: %w", r.index, id, err)
	}

	_, err = r.client.Index(ctx, opensearchapi.IndexReq{
		Index:      r.index,
		DocumentID: id,
		Body:       bytes.NewReader(docJSON),
		Params:     opensearchapi.IndexParams{Refresh: "true"},
	})
	if err != nil {
		return nil, fmt.Errorf("update %s/%s: %w", r.index, id, err)
	}

	return merged, nil
}

func (r *documentRepository) UpdateMany(ctx context.Context, filter Filter, patch Record) (int, error) {
	matches, err := r.Find(ctx, filter, FindOptions{Limit: scanWindow})
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, rec := range matches {
		if _, err := r.UpdateByID(ctx, rec.ID(), patch); err != nil {
			return updated, err
		}
		updated++
	}

	return updated, nil
}

func (r *documentRepository) DeleteByID(ctx context.Context, id string) (Record, error) {
	existing, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, nil
	}

	_, err = r.client.Document.Delete(ctx, opensearchapi.DocumentDeleteReq{
		Index:      r.index,
		DocumentID: id,
		Params:     opensearchapi.DocumentDeleteParams{Refresh: "true"},
	})
	if err != nil {
		return nil, fmt.Errorf("delete %s/%s: %w", r.index, id, err)
	}

	return existing, nil
}

func (r *documentRepository) DeleteMany(ctx context.Context, filter Filter) (int, error) {
	if err := filter.Validate(); err != nil {
		return 0, err
	}

	bodyJSON, err := json.Marshal(map[string]any{"query": r.buildQuery(filter)})
	if err != nil {
		return 0, fmt.Errorf("marshal query %s: %w", r.index, err)
	}

	resp, err := r.client.Document.DeleteByQuery(ctx, opensearchapi.DocumentDeleteByQueryReq{
		Indices: []string{r.index},
		Body:    bytes.NewReader(bodyJSON),
		Params:  opensearchapi.DocumentDeleteByQueryParams{Refresh: opensearchapi.ToPointer(true)},
	})
	if err != nil {
		return 0, fmt.Errorf("delete by query %s: %w", r.index, err)
	}

	return resp.Deleted, nil
}

// VectorSearch prefers the index's native k-NN path when the target field is
// registered as a vector in the schema, and falls back to the exhaustive
// cosine scan otherwise. Native failures degrade to the scan; scan failures
// degrade to an empty result. Similarity search never errors.
func (r *documentRepository) VectorSearch(ctx context.Context, field string, query []float32, opts VectorSearchOptions) ([]VectorSearchResult, error) {
	if f, ok := r.schema.Fields[field]; ok && f.Kind == FieldVector {
		results, err := r.nativeVectorSearch(ctx, field, query, opts)
		if err == nil {
			return results, nil
		}
		r.logger.Warn("native knn search failed, falling back to scan", "field", field, "error", err)
	}

	return r.scanVectorSearch(ctx, field, query, opts), nil
}

func (r *documentRepository) nativeVectorSearch(ctx context.Context, field string, query []float32, opts VectorSearchOptions) ([]VectorSearchResult, error) {
	k := opts.Limit
	if k <= 0 {
		k = DefaultVectorLimit
	}

	body := map[string]any{
		"size": k,
		"query": map[string]any{
			"knn": map[string]any{
				field: map[string]any{"vector": query, "k": k},
			},
		},
	}

	bodyJSON, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal knn query %s: %w", r.index, err)
	}

	resp, err := r.client.Search(ctx, &opensearchapi.SearchReq{
		Indices: []string{r.index},
		Body:    bytes.NewReader(bodyJSON),
	})
	if err != nil {
		return nil, fmt.Errorf("knn search %s: %w", r.index, err)
	}

	results := make([]VectorSearchResult, 0, len(resp.Hits.Hits))
	for _, hit := range resp.Hits.Hits {
		// The lucene cosinesimil engine reports _score = (1 + cosine) / 2;
		// undo that so thresholds mean the same thing on every backend.
		score := 2*float64(hit.Score) - 1
		if score < 0 {
			score = 0
		}
		if score < opts.MinScore {
			continue
		}

		var doc Record
		if err := json.Unmarshal(hit.Source, &doc); err != nil {
			continue
		}
		results = append(results, VectorSearchResult{Item: doc, Score: score})
	}

	return results, nil
}

func (r *documentRepository) scanVectorSearch(ctx context.Context, field string, query []float32, opts VectorSearchOptions) []VectorSearchResult {
	body := map[string]any{
		"size":  scanWindow,
		"query": map[string]any{"bool": map[string]any{"filter": []map[string]any{{"exists": map[string]any{"field": field}}}}},
	}

	records, err := r.search(ctx, body)
	if err != nil {
		r.logger.Warn("vector scan enumeration failed", "field", field, "error", err)
		return []VectorSearchResult{}
	}

	return ScanVectorSearch(records, field, query, opts)
}
