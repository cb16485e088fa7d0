package action

import (
	"github.com/Zereker/corpus/internal/domain"
)

// EmbedAction attaches an embedding vector to the content. The generator
// never fails, so neither does this stage.
type EmbedAction struct {
	*BaseAction
	generator Embedder
}

// NewEmbedAction creates the embedding stage.
func NewEmbedAction(generator Embedder) *EmbedAction {
	return &EmbedAction{
		BaseAction: NewBaseAction("action.embed"),
		generator:  generator,
	}
}

// Handle embeds the content text.
func (a *EmbedAction) Handle(c *domain.EnrichContext) {
	vec := a.generator.Generate(c, c.Content.Text)
	c.Content.Embedding = vec
	c.Patch["embedding"] = vec
}
