package storage

import (
	"context"
	"regexp"

	"github.com/pkg/errors"
)

// Sentinel errors shared by every backend.
var (
	// ErrNotConnected marks a repository or model operation attempted on a
	// provider before Connect.
	ErrNotConnected = errors.New("storage: not connected")

	// ErrNotInitialized marks a service operation attempted before Connect.
	ErrNotInitialized = errors.New("storage: service not initialized")

	// ErrModelNotRegistered marks a repository request for an entity whose
	// schema the backend requires but never received.
	ErrModelNotRegistered = errors.New("storage: model not registered")

	// ErrInvalidEntity marks an entity name unusable as an index name,
	// node label, or key prefix.
	ErrInvalidEntity = errors.New("storage: invalid entity name")

	// ErrInvalidFilter marks a malformed filter condition.
	ErrInvalidFilter = errors.New("storage: invalid filter")
)

// Repository is the per-entity CRUD and query contract, implemented once per
// backend. Lookup methods return nil, nil when nothing matches; they never
// return an error for absence.
type Repository interface {
	// Find returns all records matching filter, paginated and ordered by
	// opts. Returns an empty slice, never nil, when nothing matches.
	Find(ctx context.Context, filter Filter, opts FindOptions) ([]Record, error)

	// FindByID returns the record with the given id, or nil when absent.
	FindByID(ctx context.Context, id string) (Record, error)

	// FindOne returns the first record matching filter, or nil.
	FindOne(ctx context.Context, filter Filter) (Record, error)

	// Count returns the number of records matching filter.
	Count(ctx context.Context, filter Filter) (int, error)

	// Create persists the record, assigning a uuid when no id is set, and
	// returns the stored form.
	Create(ctx context.Context, rec Record) (Record, error)

	// CreateMany persists all records in one backend batch where the
	// backend supports it. No atomicity is promised across the batch.
	CreateMany(ctx context.Context, recs []Record) ([]Record, error)

	// UpdateByID shallow-merges patch into the existing record and returns
	// the merged form, or nil when the id does not exist. Never upserts.
	UpdateByID(ctx context.Context, id string, patch Record) (Record, error)

	// UpdateMany applies patch to every record matching filter and returns
	// the number modified.
	UpdateMany(ctx context.Context, filter Filter, patch Record) (int, error)

	// DeleteByID removes the record and returns its last stored form, or
	// nil when the id does not exist.
	DeleteByID(ctx context.Context, id string) (Record, error)

	// DeleteMany removes every record matching filter and returns the
	// number removed.
	DeleteMany(ctx context.Context, filter Filter) (int, error)
}

// VectorSearchResult pairs a record with its similarity to the query.
type VectorSearchResult struct {
	Item  Record
	Score float64
}

// VectorSearchOptions bounds a similarity search. A zero Limit means
// DefaultVectorLimit.
type VectorSearchOptions struct {
	Limit    int
	MinScore float64
}

// DefaultVectorLimit bounds vector searches that do not ask for a limit.
const DefaultVectorLimit = 10

// VectorSearcher is the optional similarity-search capability. Callers
// type-assert a Repository to it once; a repository that does not implement
// it simply has no vector search, which is never an error.
type VectorSearcher interface {
	// VectorSearch returns records whose vector at field scores at least
	// MinScore against query, ordered by descending similarity in [0,1].
	VectorSearch(ctx context.Context, field string, query []float32, opts VectorSearchOptions) ([]VectorSearchResult, error)
}

// Kind identifies a backend family. The set is closed: the service factory
// rejects anything else at construction.
type Kind string

const (
	KindDocument Kind = "document"
	KindGraph    Kind = "graph"
	KindKeyValue Kind = "keyvalue"
)

// FieldKind classifies a schema field.
type FieldKind string

const (
	FieldText    FieldKind = "text"
	FieldKeyword FieldKind = "keyword"
	FieldNumber  FieldKind = "number"
	FieldBool    FieldKind = "bool"
	FieldDate    FieldKind = "date"
	FieldVector  FieldKind = "vector"
)

// Field describes one schema field. Dimension is meaningful only for
// vector fields.
type Field struct {
	Kind      FieldKind
	Dimension int
}

// Schema describes an entity's fields. The document backend derives index
// mappings from it; the graph and key-value backends record it without
// enforcing anything.
type Schema struct {
	Fields map[string]Field
}

// VectorField returns the first vector field in the schema, or "" when the
// schema declares none.
func (s Schema) VectorField() string {
	for name, field := range s.Fields {
		if field.Kind == FieldVector {
			return name
		}
	}
	return ""
}

// Provider owns one backend connection, the registered models, and the
// repository cache. Connect and Disconnect are idempotent.
type Provider interface {
	// Kind reports the backend family.
	Kind() Kind

	// Connect establishes and verifies the backend connection. A no-op
	// when already connected.
	Connect(ctx context.Context) error

	// Disconnect releases the connection. A no-op when not connected.
	Disconnect(ctx context.Context) error

	// Connected reports whether Connect has completed.
	Connected() bool

	// RegisterModel records an entity schema. Mandatory before Repository
	// on the document backend; a recorded no-op on the others.
	RegisterModel(entity string, schema Schema) error

	// Repository returns the repository for entity, building it on first
	// use and memoizing it for the provider's lifetime.
	Repository(entity string) (Repository, error)
}

// Entity names become index names, node labels, and key prefixes, so they
// are restricted to identifier characters.
var entityNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validateEntity(entity string) error {
	if !entityNamePattern.MatchString(entity) {
		return errors.WithMessage(ErrInvalidEntity, entity)
	}
	return nil
}
