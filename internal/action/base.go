package action

import (
	"context"
	"log/slog"

	"github.com/Zereker/corpus/pkg/classify"
	"github.com/Zereker/corpus/pkg/storage"
)

// Storage is the slice of the storage service the actions need. Satisfied
// by *storage.Service.
type Storage interface {
	Repository(entity string) (storage.Repository, error)
}

// Embedder produces embedding vectors. Satisfied by *embedding.Generator;
// Generate never fails.
type Embedder interface {
	Generate(ctx context.Context, text string) []float32
	Dimension() int
}

// Classifier labels text. Satisfied by *classify.Classifier. A nil
// Classifier means classification is disabled.
type Classifier interface {
	Classify(ctx context.Context, text string) (*classify.Classification, error)
}

// BaseAction provides the shared pieces of every action.
type BaseAction struct {
	name   string
	logger *slog.Logger
}

// NewBaseAction creates a BaseAction.
func NewBaseAction(name string) *BaseAction {
	return &BaseAction{
		name:   name,
		logger: slog.Default().With("module", name),
	}
}

// Name returns the action name.
func (b *BaseAction) Name() string {
	return b.name
}
