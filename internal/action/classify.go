package action

import (
	"github.com/Zereker/corpus/internal/domain"
)

// ClassifyAction labels the content through the remote classifier and
// stores the result verbatim. A classification failure never blocks the
// rest of the chain: the content simply ships unclassified.
type ClassifyAction struct {
	*BaseAction
	classifier Classifier
}

// NewClassifyAction creates the classification stage. classifier may be
// nil, which turns the stage into a no-op.
func NewClassifyAction(classifier Classifier) *ClassifyAction {
	return &ClassifyAction{
		BaseAction: NewBaseAction("action.classify"),
		classifier: classifier,
	}
}

// Handle classifies the content text.
func (a *ClassifyAction) Handle(c *domain.EnrichContext) {
	if a.classifier == nil {
		return
	}

	result, err := a.classifier.Classify(c, c.Content.Text)
	if err != nil {
		a.logger.Warn("classification failed, content ships unclassified",
			"id", c.Content.ID, "error", err)
		return
	}

	c.Content.Classification = result
	c.Patch["classification"] = domain.ClassificationRecord(result)

	if c.Content.Language == "" && result.Language != "" {
		c.Content.Language = result.Language
		c.Patch["language"] = result.Language
	}
}
