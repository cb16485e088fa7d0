package domain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingAction struct {
	name string
	fn   func(*EnrichContext)
}

func (a *recordingAction) Name() string { return a.name }

func (a *recordingAction) Handle(c *EnrichContext) {
	if a.fn != nil {
		a.fn(c)
	}
}

func TestEnrichChain(t *testing.T) {
	t.Run("stages run in order", func(t *testing.T) {
		var order []string
		chain := NewEnrichChain().Use(
			&recordingAction{name: "first", fn: func(c *EnrichContext) { order = append(order, "first") }},
			&recordingAction{name: "second", fn: func(c *EnrichContext) { order = append(order, "second") }},
			&recordingAction{name: "third", fn: func(c *EnrichContext) { order = append(order, "third") }},
		)

		ectx := NewEnrichContext(context.Background(), &Content{ID: "c1"})
		chain.Run(ectx)

		assert.Equal(t, []string{"first", "second", "third"}, order)
		assert.False(t, ectx.IsAborted())
		assert.NoError(t, ectx.Error())
	})

	t.Run("abort stops the chain", func(t *testing.T) {
		var order []string
		chain := NewEnrichChain().Use(
			&recordingAction{name: "first", fn: func(c *EnrichContext) {
				order = append(order, "first")
				c.Abort()
			}},
			&recordingAction{name: "second", fn: func(c *EnrichContext) { order = append(order, "second") }},
		)

		ectx := NewEnrichContext(context.Background(), &Content{ID: "c1"})
		chain.Run(ectx)

		assert.Equal(t, []string{"first"}, order)
		assert.True(t, ectx.IsAborted())
		assert.NoError(t, ectx.Error())
	})

	t.Run("set error records and stops", func(t *testing.T) {
		boom := errors.New("boom")
		var order []string
		chain := NewEnrichChain().Use(
			&recordingAction{name: "first", fn: func(c *EnrichContext) {
				order = append(order, "first")
				c.SetError(boom)
			}},
			&recordingAction{name: "second", fn: func(c *EnrichContext) { order = append(order, "second") }},
		)

		ectx := NewEnrichContext(context.Background(), &Content{ID: "c1"})
		chain.Run(ectx)

		assert.Equal(t, []string{"first"}, order)
		assert.True(t, ectx.IsAborted())
		assert.ErrorIs(t, ectx.Error(), boom)
	})

	t.Run("patch accumulates across stages", func(t *testing.T) {
		chain := NewEnrichChain().Use(
			&recordingAction{name: "a", fn: func(c *EnrichContext) { c.Patch["language"] = "en" }},
			&recordingAction{name: "b", fn: func(c *EnrichContext) { c.Patch["embedding"] = []float32{1} }},
		)

		ectx := NewEnrichContext(context.Background(), &Content{ID: "c1"})
		chain.Run(ectx)

		assert.Equal(t, "en", ectx.Patch["language"])
		assert.NotNil(t, ectx.Patch["embedding"])
	})

	t.Run("metadata passes between stages", func(t *testing.T) {
		chain := NewEnrichChain().Use(
			&recordingAction{name: "a", fn: func(c *EnrichContext) { c.Set("k", 42) }},
			&recordingAction{name: "b", fn: func(c *EnrichContext) {
				val, ok := c.Get("k")
				assert.True(t, ok)
				assert.Equal(t, 42, val)
			}},
		)

		chain.Run(NewEnrichContext(context.Background(), &Content{ID: "c1"}))
	})

	t.Run("empty chain is a no-op", func(t *testing.T) {
		ectx := NewEnrichContext(context.Background(), &Content{ID: "c1"})
		NewEnrichChain().Run(ectx)
		assert.False(t, ectx.IsAborted())
	})
}
