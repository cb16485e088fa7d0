package consumer

import (
	"context"
	"encoding/json"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/Zereker/corpus/internal/domain"
	"github.com/Zereker/corpus/pkg/mq"
)

// Enricher runs the enrichment chain for one stored content.
// Satisfied by *action.Corpus.
type Enricher interface {
	Enrich(ctx context.Context, id string) error
}

// Consumer drives the asynchronous enrichment pipeline: it consumes the
// content-events topic and enriches each referenced content.
type Consumer struct {
	logger    *slog.Logger
	enricher  Enricher
	consumers []*mq.KafkaConsumer
}

// Config holds the consumer configuration.
type Config struct {
	Kafka mq.KafkaConfig
}

// NewConsumer creates the pipeline consumer. When Kafka is disabled the
// consumer is inert and Start is a no-op; enrichment then runs inline in
// the write path instead.
func NewConsumer(enricher Enricher, cfg Config) (*Consumer, error) {
	c := &Consumer{
		logger:   slog.Default().With("module", "consumer"),
		enricher: enricher,
	}

	if !cfg.Kafka.Enabled {
		c.logger.Info("kafka disabled, consumer not started")
		return c, nil
	}

	groups := cfg.Kafka.Consumers
	if len(groups) == 0 {
		groups = []mq.ConsumerConfig{{
			Name:   "enrichment",
			Group:  "corpus-enrichment",
			Topics: []string{domain.TopicContentEvents},
		}}
	}

	for _, group := range groups {
		consumer, err := mq.NewKafkaConsumer(cfg.Kafka.Brokers, group, c.handleMessage)
		if err != nil {
			return nil, err
		}
		c.consumers = append(c.consumers, consumer)
	}

	return c, nil
}

func (c *Consumer) handleMessage(ctx context.Context, topic string, message []byte) error {
	if topic != domain.TopicContentEvents {
		c.logger.Warn("unexpected topic", "topic", topic)
		return nil
	}

	var event domain.ContentEvent
	if err := json.Unmarshal(message, &event); err != nil {
		// A malformed event is unrecoverable, drop it instead of retrying.
		c.logger.Error("dropping malformed event", "error", err)
		return nil
	}

	c.logger.Debug("enriching content", "id", event.ID, "action", event.Action)
	return c.enricher.Enrich(ctx, event.ID)
}

// Start runs every configured consumer until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	if len(c.consumers) == 0 {
		c.logger.Info("no consumers configured, skipping start")
		return nil
	}

	c.logger.Info("starting consumers", "count", len(c.consumers))

	g, ctx := errgroup.WithContext(ctx)
	for _, consumer := range c.consumers {
		consumer := consumer
		g.Go(func() error {
			return consumer.Start(ctx)
		})
	}

	return g.Wait()
}

// Stop shuts down every consumer.
func (c *Consumer) Stop() error {
	c.logger.Info("stopping consumers")

	for _, consumer := range c.consumers {
		if err := consumer.Stop(); err != nil {
			c.logger.Error("failed to stop consumer", "error", err)
		}
	}

	return nil
}
