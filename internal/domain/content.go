package domain

import (
	"fmt"
	"time"

	"github.com/Zereker/corpus/pkg/classify"
	"github.com/Zereker/corpus/pkg/storage"
)

// EntityContent is the entity name every content record lives under.
const EntityContent = "content"

// ContentSchema describes the content model for backends with a schema
// concept. The embedding dimension is filled in at registration time.
func ContentSchema(dimension int) storage.Schema {
	return storage.Schema{Fields: map[string]storage.Field{
		"platform":   {Kind: storage.FieldKeyword},
		"author":     {Kind: storage.FieldKeyword},
		"text":       {Kind: storage.FieldText},
		"url":        {Kind: storage.FieldKeyword},
		"language":   {Kind: storage.FieldKeyword},
		"timestamp":  {Kind: storage.FieldDate},
		"created_at": {Kind: storage.FieldDate},
		"updated_at": {Kind: storage.FieldDate},
		"embedding":  {Kind: storage.FieldVector, Dimension: dimension},
	}}
}

// Content is a classified piece of platform content. The classification is
// stored verbatim from the remote classifier and never interpreted here.
type Content struct {
	ID        string    `json:"id"`
	Platform  string    `json:"platform"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	URL       string    `json:"url,omitempty"`
	Language  string    `json:"language,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	Classification *classify.Classification `json:"classification,omitempty"`
	Embedding      []float32                `json:"embedding,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Record converts the content into its stored form.
func (c *Content) Record() storage.Record {
	rec := storage.Record{
		"id":         c.ID,
		"platform":   c.Platform,
		"author":     c.Author,
		"text":       c.Text,
		"timestamp":  c.Timestamp.UTC().Format(time.RFC3339Nano),
		"created_at": c.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updated_at": c.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}

	if c.URL != "" {
		rec["url"] = c.URL
	}
	if c.Language != "" {
		rec["language"] = c.Language
	}
	if len(c.Embedding) > 0 {
		rec["embedding"] = c.Embedding
	}
	if c.Classification != nil {
		rec["classification"] = ClassificationRecord(c.Classification)
	}

	return rec
}

// ClassificationRecord converts a classification into its stored form.
func ClassificationRecord(cls *classify.Classification) map[string]any {
	if cls == nil {
		return nil
	}
	return map[string]any{
		"categories":   cls.Categories,
		"sentiment":    cls.Sentiment,
		"toxicity":     cls.Toxicity,
		"subjectivity": cls.Subjectivity,
		"language":     cls.Language,
		"topics":       cls.Topics,
		"entities":     cls.Entities,
	}
}

// ContentFromRecord converts a stored record back into a Content. Backends
// hand values back in JSON-decoded form, so the decoder tolerates []any
// vectors, string timestamps, and numeric drift.
func ContentFromRecord(rec storage.Record) (*Content, error) {
	if rec == nil {
		return nil, nil
	}

	var c Content
	if err := decodeRecord(rec, &c); err != nil {
		return nil, fmt.Errorf("decode content record: %w", err)
	}
	return &c, nil
}
