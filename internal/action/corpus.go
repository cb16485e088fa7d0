package action

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Zereker/corpus/internal/domain"
	"github.com/Zereker/corpus/pkg/mq"
	"github.com/Zereker/corpus/pkg/storage"
)

// Corpus orchestrates the content lifecycle: ingest, enrichment, search,
// and the plain CRUD surface. It owns the enrichment chain; when a message
// producer is configured, enrichment is handed to the event pipeline,
// otherwise it runs inline after every write.
type Corpus struct {
	logger    *slog.Logger
	store     Storage
	generator Embedder
	producer  mq.MessageQueue
	chain     *domain.EnrichChain
}

// NewCorpus wires the orchestrator. classifier and producer may be nil:
// no classifier means contents ship unclassified, no producer means
// enrichment runs inline.
func NewCorpus(store Storage, generator Embedder, classifier Classifier, producer mq.MessageQueue) *Corpus {
	chain := domain.NewEnrichChain().Use(
		NewClassifyAction(classifier),
		NewEmbedAction(generator),
		NewPersistAction(store),
	)

	return &Corpus{
		logger:    slog.Default().With("module", "corpus"),
		store:     store,
		generator: generator,
		producer:  producer,
		chain:     chain,
	}
}

// Ingest stores a new content and triggers its enrichment.
func (c *Corpus) Ingest(ctx context.Context, req *domain.IngestRequest) (*domain.IngestResponse, error) {
	if req.Platform == "" || req.Text == "" {
		return nil, fmt.Errorf("platform and text are required")
	}

	now := time.Now().UTC()
	timestamp := req.Timestamp
	if timestamp.IsZero() {
		timestamp = now
	}

	content := &domain.Content{
		ID:        uuid.NewString(),
		Platform:  req.Platform,
		Author:    req.Author,
		Text:      req.Text,
		URL:       req.URL,
		Language:  req.Language,
		Timestamp: timestamp,
		CreatedAt: now,
		UpdatedAt: now,
	}

	repo, err := c.store.Repository(domain.EntityContent)
	if err != nil {
		return nil, err
	}

	if _, err := repo.Create(ctx, content.Record()); err != nil {
		return nil, err
	}

	// With a live producer the enrichment runs asynchronously off the
	// event topic; without one it runs right here.
	if c.producer != nil {
		if err := c.publish(content.ID, domain.ActionCreated); err == nil {
			return &domain.IngestResponse{Success: true, Content: content}, nil
		}
		c.logger.Warn("event publish failed, enriching inline", "id", content.ID)
	}

	ectx := domain.NewEnrichContext(ctx, content)
	c.chain.Run(ectx)
	if err := ectx.Error(); err != nil {
		c.logger.Warn("inline enrichment failed", "id", content.ID, "error", err)
		return &domain.IngestResponse{Success: true, Content: content}, nil
	}

	return &domain.IngestResponse{Success: true, Content: content, Enriched: true}, nil
}

// Enrich loads a content by id and runs the enrichment chain over it.
// Called by the event consumer. A missing id is not an error: the content
// may have been deleted between the event and its consumption.
func (c *Corpus) Enrich(ctx context.Context, id string) error {
	repo, err := c.store.Repository(domain.EntityContent)
	if err != nil {
		return err
	}

	rec, err := repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if rec == nil {
		c.logger.Warn("enrich target no longer exists", "id", id)
		return nil
	}

	content, err := domain.ContentFromRecord(rec)
	if err != nil {
		return err
	}

	ectx := domain.NewEnrichContext(ctx, content)
	c.chain.Run(ectx)
	return ectx.Error()
}

// Search embeds the query and runs a vector similarity search. A backend
// without the vector capability yields an empty result, never an error.
func (c *Corpus) Search(ctx context.Context, req *domain.SearchRequest) (*domain.SearchResponse, error) {
	if req.Query == "" {
		return nil, fmt.Errorf("query is required")
	}

	repo, err := c.store.Repository(domain.EntityContent)
	if err != nil {
		return nil, err
	}

	searcher, ok := repo.(storage.VectorSearcher)
	if !ok {
		c.logger.Info("backend has no vector search capability")
		return &domain.SearchResponse{Success: true, Results: []domain.ScoredContent{}}, nil
	}

	query := c.generator.Generate(ctx, req.Query)

	results, err := searcher.VectorSearch(ctx, "embedding", query, storage.VectorSearchOptions{
		Limit:    req.Limit,
		MinScore: req.MinScore,
	})
	if err != nil {
		// Similarity search is an enhancement over primary retrieval:
		// degrade to empty rather than failing the request.
		c.logger.Warn("vector search failed", "error", err)
		return &domain.SearchResponse{Success: true, Results: []domain.ScoredContent{}}, nil
	}

	scored := make([]domain.ScoredContent, 0, len(results))
	for _, result := range results {
		content, err := domain.ContentFromRecord(result.Item)
		if err != nil {
			c.logger.Warn("skipping undecodable search hit", "id", result.Item.ID(), "error", err)
			continue
		}
		if req.Platform != "" && content.Platform != req.Platform {
			continue
		}
		scored = append(scored, domain.ScoredContent{Content: content, Score: result.Score})
	}

	return &domain.SearchResponse{Success: true, Results: scored, Total: len(scored)}, nil
}

// List pages through stored contents with structured filters.
func (c *Corpus) List(ctx context.Context, req *domain.ListRequest) (*domain.ListResponse, error) {
	repo, err := c.store.Repository(domain.EntityContent)
	if err != nil {
		return nil, err
	}

	var filter storage.Filter
	if req.Platform != "" {
		filter = append(filter, storage.Eq("platform", req.Platform))
	}
	if req.Author != "" {
		filter = append(filter, storage.Eq("author", req.Author))
	}
	if req.Language != "" {
		filter = append(filter, storage.Eq("language", req.Language))
	}

	sortBy := req.SortBy
	sortDesc := req.SortDesc
	if sortBy == "" {
		sortBy, sortDesc = "timestamp", true
	}

	records, err := repo.Find(ctx, filter, storage.FindOptions{
		Skip:  req.Skip,
		Limit: req.Limit,
		Sort:  []storage.SortField{{Field: sortBy, Desc: sortDesc}},
	})
	if err != nil {
		return nil, err
	}

	total, err := repo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	contents := make([]*domain.Content, 0, len(records))
	for _, rec := range records {
		content, err := domain.ContentFromRecord(rec)
		if err != nil {
			c.logger.Warn("skipping undecodable record", "id", rec.ID(), "error", err)
			continue
		}
		contents = append(contents, content)
	}

	return &domain.ListResponse{Success: true, Contents: contents, Total: total}, nil
}

// Get returns one content by id, or nil when absent.
func (c *Corpus) Get(ctx context.Context, id string) (*domain.Content, error) {
	repo, err := c.store.Repository(domain.EntityContent)
	if err != nil {
		return nil, err
	}

	rec, err := repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}

	return domain.ContentFromRecord(rec)
}

// Update patches a content by id and re-triggers enrichment when the text
// changed. Returns nil when the id does not exist.
func (c *Corpus) Update(ctx context.Context, id string, patch map[string]any) (*domain.Content, error) {
	if len(patch) == 0 {
		return nil, fmt.Errorf("patch is empty")
	}

	repo, err := c.store.Repository(domain.EntityContent)
	if err != nil {
		return nil, err
	}

	// Identity and derived fields are not patchable from outside.
	clean := storage.Record{}
	for k, v := range patch {
		switch k {
		case "id", "embedding", "classification", "created_at", "updated_at":
			continue
		}
		clean[k] = v
	}
	clean["updated_at"] = time.Now().UTC().Format(time.RFC3339Nano)

	updated, err := repo.UpdateByID(ctx, id, clean)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, nil
	}

	content, err := domain.ContentFromRecord(updated)
	if err != nil {
		return nil, err
	}

	if _, textChanged := patch["text"]; textChanged {
		if c.producer != nil {
			if err := c.publish(id, domain.ActionUpdated); err != nil {
				c.logger.Warn("event publish failed after update", "id", id, "error", err)
			}
		} else if err := c.Enrich(ctx, id); err != nil {
			c.logger.Warn("re-enrichment failed after update", "id", id, "error", err)
		}
	}

	return content, nil
}

// Delete removes a content by id. Returns false when the id was absent.
func (c *Corpus) Delete(ctx context.Context, id string) (bool, error) {
	repo, err := c.store.Repository(domain.EntityContent)
	if err != nil {
		return false, err
	}

	removed, err := repo.DeleteByID(ctx, id)
	if err != nil {
		return false, err
	}
	return removed != nil, nil
}

func (c *Corpus) publish(id, action string) error {
	event, err := json.Marshal(domain.ContentEvent{
		Entity: domain.EntityContent,
		ID:     id,
		Action: action,
	})
	if err != nil {
		return err
	}
	return c.producer.Publish(domain.TopicContentEvents, event)
}
