package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// GraphConfig holds Neo4j connection configuration.
type GraphConfig struct {
	URI      string `toml:"uri"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	Database string `toml:"database"`
}

// Validate checks Neo4j configuration.
func (c *GraphConfig) Validate() error {
	if c.URI == "" {
		return fmt.Errorf("uri is required")
	}
	if c.Database == "" {
		return fmt.Errorf("database is required")
	}
	return nil
}

// graphProvider owns the Neo4j driver. The graph backend is schema-less:
// RegisterModel records the schema for vector-index probing but enforces
// nothing.
type graphProvider struct {
	logger *slog.Logger
	config GraphConfig

	mu        sync.Mutex
	driver    neo4j.DriverWithContext
	connected bool
	models    map[string]Schema
	repos     map[string]*graphRepository
}

func newGraphProvider(cfg GraphConfig) *graphProvider {
	return &graphProvider{
		logger: slog.Default().With("module", "storage.graph"),
		config: cfg,
		models: make(map[string]Schema),
		repos:  make(map[string]*graphRepository),
	}
}

func (p *graphProvider) Kind() Kind { return KindGraph }

func (p *graphProvider) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.connected {
		return nil
	}

	driver, err := neo4j.NewDriverWithContext(p.config.URI, neo4j.BasicAuth(p.config.Username, p.config.Password, ""))
	if err != nil {
		return fmt.Errorf("create neo4j driver: %w", err)
	}

	verifyCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := driver.VerifyConnectivity(verifyCtx); err != nil {
		_ = driver.Close(ctx)
		return fmt.Errorf("verify neo4j connectivity: %w", err)
	}

	p.driver = driver
	p.connected = true
	return nil
}

func (p *graphProvider) Disconnect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.connected {
		return nil
	}

	err := p.driver.Close(ctx)
	p.driver = nil
	p.connected = false
	p.repos = make(map[string]*graphRepository)
	return err
}

func (p *graphProvider) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

func (p *graphProvider) RegisterModel(entity string, schema Schema) error {
	if err := validateEntity(entity); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.models[entity] = schema
	return nil
}

func (p *graphProvider) Repository(entity string) (Repository, error) {
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

	repo := &graphRepository{
		logger:   p.logger.With("entity", entity),
		driver:   p.driver,
		database: p.config.Database,
		label:    entity,
	}
	p.repos[entity] = repo
	return repo, nil
}

// graphRepository implements Repository over nodes of one label. Each record
// maps to a node; record fields map to node properties.
type graphRepository struct {
	logger   *slog.Logger
	driver   neo4j.DriverWithContext
	database string
	label    string

	probeOnce   sync.Once
	vectorIndex string
}

var (
	_ Repository     = (*graphRepository)(nil)
	_ VectorSearcher = (*graphRepository)(nil)
)

// run executes a Cypher query and returns rows keyed by return alias, with
// node values flattened to their property maps.
func (r *graphRepository) run(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: r.database})
	defer session.Close(ctx)

	result, err := session.Run(ctx, cypher, params)
	if err != nil {
		return nil, fmt.Errorf("cypher %s: %w", r.label, err)
	}

	records, err := result.Collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("collect %s: %w", r.label, err)
	}

	rows := make([]map[string]any, 0, len(records))
	for _, record := range records {
		row := make(map[string]any, len(record.Keys))
		for _, key := range record.Keys {
			val, _ := record.Get(key)
			if node, ok := val.(neo4j.Node); ok {
				row[key] = node.Props
			} else {
				row[key] = val
			}
		}
		rows = append(rows, row)
	}

	return rows, nil
}

func (r *graphRepository) runWrite(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: r.database})
	defer session.Close(ctx)

	rows, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}

		records, err := result.Collect(ctx)
		if err != nil {
			return nil, err
		}

		out := make([]map[string]any, 0, len(records))
		for _, record := range records {
			row := make(map[string]any, len(record.Keys))
			for _, key := range record.Keys {
				val, _ := record.Get(key)
				if node, ok := val.(neo4j.Node); ok {
					row[key] = node.Props
				} else {
					row[key] = val
				}
			}
			out = append(out, row)
		}
		return out, nil
	})
	if err != nil {
		return nil, fmt.Errorf("cypher write %s: %w", r.label, err)
	}

	return rows.([]map[string]any), nil
}

// buildWhere translates the generic filter into a Cypher WHERE clause with
// positional parameters. Values pass through sanitizeValue so the driver
// never sees types it cannot encode.
func buildWhere(filter Filter, params map[string]any) string {
	if len(filter) == 0 {
		return ""
	}

	clauses := make([]string, 0, len(filter))
	for i, cond := range filter {
		key := fmt.Sprintf("p%d", i)
		params[key] = sanitizeValue(cond.Value)

		switch cond.Op {
		case OpEq:
			clauses = append(clauses, fmt.Sprintf("n.%s = $%s", cond.Field, key))
		case OpIn:
			clauses = append(clauses, fmt.Sprintf("n.%s IN $%s", cond.Field, key))
		case OpGte:
			clauses = append(clauses, fmt.Sprintf("n.%s >= $%s", cond.Field, key))
		case OpLte:
			clauses = append(clauses, fmt.Sprintf("n.%s <= $%s", cond.Field, key))
		case OpContains:
			clauses = append(clauses, fmt.Sprintf("n.%s CONTAINS $%s", cond.Field, key))
		}
	}

	return " WHERE " + strings.Join(clauses, " AND ")
}

// sanitizeValue converts values into forms the Neo4j driver encodes:
// float32 vectors become float64 lists, times pass through unchanged.
func sanitizeValue(val any) any {
	switch v := val.(type) {
	case []float32:
		out := make([]float64, len(v))
		for i, f := range v {
			out[i] = float64(f)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = sanitizeValue(item)
		}
		return out
	default:
		return val
	}
}

// sanitizeProps prepares a record for use as a node property map. Nested
// maps are not representable as node properties and are rejected by the
// driver, so they are dropped with a log instead of failing the write.
func (r *graphRepository) sanitizeProps(rec Record) map[string]any {
	props := make(map[string]any, len(rec))
	for k, v := range rec {
		if _, isMap := v.(map[string]any); isMap {
			r.logger.Debug("dropping nested map field, not a node property", "field", k)
			continue
		}
		props[k] = sanitizeValue(v)
	}
	return props
}

func rowsToRecords(rows []map[string]any, key string) []Record {
	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		if props, ok := row[key].(map[string]any); ok {
			records = append(records, Record(props))
		}
	}
	return records
}

func (r *graphRepository) Find(ctx context.Context, filter Filter, opts FindOptions) ([]Record, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	params := map[string]any{"skip": opts.skip(), "limit": opts.limit()}
	where := buildWhere(filter, params)

	orderBy := ""
	if len(opts.Sort) > 0 {
		parts := make([]string, 0, len(opts.Sort))
		for _, sf := range opts.Sort {
			dir := "ASC"
			if sf.Desc {
				dir = "DESC"
			}
			parts = append(parts, fmt.Sprintf("n.%s %s", sf.Field, dir))
		}
		orderBy = " ORDER BY " + strings.Join(parts, ", ")
	}

	cypher := fmt.Sprintf("MATCH (n:%s)%s RETURN n%s SKIP $skip LIMIT $limit", r.label, where, orderBy)
	rows, err := r.run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}

	return rowsToRecords(rows, "n"), nil
}

func (r *graphRepository) FindByID(ctx context.Context, id string) (Record, error) {
	cypher := fmt.Sprintf("MATCH (n:%s {id: $id}) RETURN n LIMIT 1", r.label)
	rows, err := r.run(ctx, cypher, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}

	records := rowsToRecords(rows, "n")
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

func (r *graphRepository) FindOne(ctx context.Context, filter Filter) (Record, error) {
	records, err := r.Find(ctx, filter, FindOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

func (r *graphRepository) Count(ctx context.Context, filter Filter) (int, error) {
	if err := filter.Validate(); err != nil {
		return 0, err
	}

	params := map[string]any{}
	where := buildWhere(filter, params)

	cypher := fmt.Sprintf("MATCH (n:%s)%s RETURN count(n) AS total", r.label, where)
	rows, err := r.run(ctx, cypher, params)
	if err != nil {
		return 0, err
	}

	if len(rows) == 0 {
		return 0, nil
	}
	if total, ok := rows[0]["total"].(int64); ok {
		return int(total), nil
	}
	return 0, nil
}

func (r *graphRepository) Create(ctx context.Context, rec Record) (Record, error) {
	stored := rec.Clone()
	if stored.ID() == "" {
		stored[IDField] = uuid.NewString()
	}

	cypher := fmt.Sprintf("CREATE (n:%s) SET n = $props RETURN n", r.label)
	rows, err := r.runWrite(ctx, cypher, map[string]any{"props": r.sanitizeProps(stored)})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", r.label, err)
	}

	records := rowsToRecords(rows, "n")
	if len(records) == 0 {
		return stored, nil
	}
	return records[0], nil
}

// CreateMany inserts the whole batch through one UNWIND in a single
// transaction.
func (r *graphRepository) CreateMany(ctx context.Context, recs []Record) ([]Record, error) {
	if len(recs) == 0 {
		return []Record{}, nil
	}

	batch := make([]map[string]any, len(recs))
	stored := make([]Record, len(recs))
	for i, rec := range recs {
		stored[i] = rec.Clone()
		if stored[i].ID() == "" {
			stored[i][IDField] = uuid.NewString()
		}
		batch[i] = r.sanitizeProps(stored[i])
	}

	cypher := fmt.Sprintf("UNWIND $batch AS props CREATE (n:%s) SET n = props", r.label)
	if _, err := r.runWrite(ctx, cypher, map[string]any{"batch": batch}); err != nil {
		return nil, fmt.Errorf("batch create %s: %w", r.label, err)
	}

	return stored, nil
}

func (r *graphRepository) UpdateByID(ctx context.Context, id string, patch Record) (Record, error) {
	props := r.sanitizeProps(patch)
	delete(props, IDField)

	cypher := fmt.Sprintf("MATCH (n:%s {id: $id}) SET n += $props RETURN n", r.label)
	rows, err := r.runWrite(ctx, cypher, map[string]any{"id": id, "props": props})
	if err != nil {
		return nil, fmt.Errorf("update %s/%s: %w", r.label, id, err)
	}

	records := rowsToRecords(rows, "n")
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

func (r *graphRepository) UpdateMany(ctx context.Context, filter Filter, patch Record) (int, error) {
	if err := filter.Validate(); err != nil {
		return 0, err
	}

	params := map[string]any{}
	where := buildWhere(filter, params)

	props := r.sanitizeProps(patch)
	delete(props, IDField)
	params["props"] = props

	cypher := fmt.Sprintf("MATCH (n:%s)%s SET n += $props RETURN count(n) AS total", r.label, where)
	rows, err := r.runWrite(ctx, cypher, params)
	if err != nil {
		return 0, fmt.Errorf("batch update %s: %w", r.label, err)
	}

	if len(rows) > 0 {
		if total, ok := rows[0]["total"].(int64); ok {
			return int(total), nil
		}
	}
	return 0, nil
}

func (r *graphRepository) DeleteByID(ctx context.Context, id string) (Record, error) {
	cypher := fmt.Sprintf("MATCH (n:%s {id: $id}) WITH n, properties(n) AS props DETACH DELETE n RETURN props", r.label)
	rows, err := r.runWrite(ctx, cypher, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("delete %s/%s: %w", r.label, id, err)
	}

	if len(rows) == 0 {
		return nil, nil
	}
	if props, ok := rows[0]["props"].(map[string]any); ok {
		return Record(props), nil
	}
	return nil, nil
}

func (r *graphRepository) DeleteMany(ctx context.Context, filter Filter) (int, error) {
	if err := filter.Validate(); err != nil {
		return 0, err
	}

	params := map[string]any{}
	where := buildWhere(filter, params)

	cypher := fmt.Sprintf("MATCH (n:%s)%s WITH collect(n) AS nodes, count(n) AS total FOREACH (x IN nodes | DETACH DELETE x) RETURN total", r.label, where)
	rows, err := r.runWrite(ctx, cypher, params)
	if err != nil {
		return 0, fmt.Errorf("batch delete %s: %w", r.label, err)
	}

	if len(rows) > 0 {
		if total, ok := rows[0]["total"].(int64); ok {
			return int(total), nil
		}
	}
	return 0, nil
}

// VectorSearch queries the label's native vector index when one exists and
// falls back to the exhaustive cosine scan otherwise. The index probe runs
// once per repository; probe failures count as "no index", never as errors.
func (r *graphRepository) VectorSearch(ctx context.Context, field string, query []float32, opts VectorSearchOptions) ([]VectorSearchResult, error) {
	r.probeOnce.Do(func() { r.vectorIndex = r.probeVectorIndex(ctx, field) })

	if r.vectorIndex != "" {
		results, err := r.nativeVectorSearch(ctx, query, opts)
		if err == nil {
			return results, nil
		}
		r.logger.Warn("native vector query failed, falling back to scan", "index", r.vectorIndex, "error", err)
	}

	return r.scanVectorSearch(ctx, field, query, opts), nil
}

// probeVectorIndex looks for a VECTOR index covering this label and
// property. Returns "" when none exists or the probe itself fails.
func (r *graphRepository) probeVectorIndex(ctx context.Context, field string) string {
	rows, err := r.run(ctx, "SHOW INDEXES YIELD name, type, labelsOrTypes, properties WHERE type = 'VECTOR' RETURN name, labelsOrTypes, properties", nil)
	if err != nil {
		r.logger.Debug("vector index probe failed, treating as unavailable", "error", err)
		return ""
	}

	for _, row := range rows {
		labels, _ := row["labelsOrTypes"].([]any)
		properties, _ := row["properties"].([]any)
		name, _ := row["name"].(string)

		if containsString(labels, r.label) && containsString(properties, field) {
			return name
		}
	}
	return ""
}

func containsString(items []any, want string) bool {
	for _, item := range items {
		if s, ok := item.(string); ok && s == want {
			return true
		}
	}
	return false
}

func (r *graphRepository) nativeVectorSearch(ctx context.Context, query []float32, opts VectorSearchOptions) ([]VectorSearchResult, error) {
	k := opts.Limit
	if k <= 0 {
		k = DefaultVectorLimit
	}

	rows, err := r.run(ctx,
		"CALL db.index.vector.queryNodes($index, $k, $vector) YIELD node, score RETURN node, score",
		map[string]any{"index": r.vectorIndex, "k": k, "vector": sanitizeValue(query)},
	)
	if err != nil {
		return nil, err
	}

	results := make([]VectorSearchResult, 0, len(rows))
	for _, row := range rows {
		props, ok := row["node"].(map[string]any)
		if !ok {
			continue
		}
		// The index already returns cosine similarity in [0,1].
		score, ok := row["score"].(float64)
		if !ok || score < opts.MinScore {
			continue
		}
		results = append(results, VectorSearchResult{Item: Record(props), Score: score})
	}

	return results, nil
}

func (r *graphRepository) scanVectorSearch(ctx context.Context, field string, query []float32, opts VectorSearchOptions) []VectorSearchResult {
	cypher := fmt.Sprintf("MATCH (n:%s) WHERE n.%s IS NOT NULL RETURN n", r.label, field)
	rows, err := r.run(ctx, cypher, nil)
	if err != nil {
		r.logger.Warn("vector scan enumeration failed", "field", field, "error", err)
		return []VectorSearchResult{}
	}

	return ScanVectorSearch(rowsToRecords(rows, "n"), field, query, opts)
}
