package domain

import (
	"context"

	"github.com/Zereker/corpus/pkg/storage"
)

// EnrichAction is one stage of the enrichment chain run after a content
// write: classification, embedding, persistence.
type EnrichAction interface {
	Name() string
	Handle(*EnrichContext)
}

// EnrichContext carries one content through the enrichment chain. Stages
// accumulate their output into Patch; the final stage persists it.
type EnrichContext struct {
	context.Context

	// Content under enrichment. Stages may update it in place.
	Content *Content

	// Patch collects the fields to persist at the end of the chain.
	Patch storage.Record

	// Metadata passes values between stages.
	Metadata map[string]any

	actions []EnrichAction
	index   int
	aborted bool
	err     error
}

// NewEnrichContext creates a context for enriching one content.
func NewEnrichContext(ctx context.Context, content *Content) *EnrichContext {
	return &EnrichContext{
		Context:  ctx,
		Content:  content,
		Patch:    storage.Record{},
		Metadata: make(map[string]any),
	}
}

// Set stores a metadata value.
func (c *EnrichContext) Set(key string, value any) {
	c.Metadata[key] = value
}

// Get reads a metadata value.
func (c *EnrichContext) Get(key string) (any, bool) {
	val, ok := c.Metadata[key]
	return val, ok
}

// Next runs the remaining stages in order.
func (c *EnrichContext) Next() {
	c.index++
	for c.index < len(c.actions) {
		if c.aborted {
			return
		}
		c.actions[c.index].Handle(c)
		c.index++
	}
}

// Abort stops the chain after the current stage.
func (c *EnrichContext) Abort() {
	c.aborted = true
}

// IsAborted reports whether the chain was stopped.
func (c *EnrichContext) IsAborted() bool {
	return c.aborted
}

// SetError records an error and stops the chain.
func (c *EnrichContext) SetError(err error) {
	c.err = err
	c.aborted = true
}

// Error returns the recorded error, if any.
func (c *EnrichContext) Error() error {
	return c.err
}

// EnrichChain runs EnrichActions in registration order.
type EnrichChain struct {
	actions []EnrichAction
}

// NewEnrichChain creates an empty chain.
func NewEnrichChain() *EnrichChain {
	return &EnrichChain{}
}

// Use appends stages to the chain.
func (chain *EnrichChain) Use(actions ...EnrichAction) *EnrichChain {
	chain.actions = append(chain.actions, actions...)
	return chain
}

// Run executes the chain on the given context.
func (chain *EnrichChain) Run(c *EnrichContext) {
	c.actions = chain.actions
	c.index = -1
	c.Next()
}
