package action

import (
	"time"

	"github.com/Zereker/corpus/internal/domain"
)

// PersistAction writes the accumulated enrichment patch back to storage.
// It is the last stage of the chain; a write failure is a real error and
// stops the chain with it.
type PersistAction struct {
	*BaseAction
	store Storage
}

// NewPersistAction creates the persistence stage.
func NewPersistAction(store Storage) *PersistAction {
	return &PersistAction{
		BaseAction: NewBaseAction("action.persist"),
		store:      store,
	}
}

// Handle persists the patch collected by the earlier stages.
func (a *PersistAction) Handle(c *domain.EnrichContext) {
	if len(c.Patch) == 0 {
		return
	}

	repo, err := a.store.Repository(domain.EntityContent)
	if err != nil {
		c.SetError(err)
		return
	}

	c.Patch["updated_at"] = time.Now().UTC().Format(time.RFC3339Nano)

	updated, err := repo.UpdateByID(c, c.Content.ID, c.Patch)
	if err != nil {
		c.SetError(err)
		return
	}
	if updated == nil {
		// The content was deleted while the chain was running.
		a.logger.Warn("content vanished before enrichment persisted", "id", c.Content.ID)
		c.Abort()
	}
}
