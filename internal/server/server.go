package server

import (
	"context"
	"log/slog"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/Zereker/corpus/internal/action"
	"github.com/Zereker/corpus/internal/api/consumer"
	"github.com/Zereker/corpus/internal/api/http"
	"github.com/Zereker/corpus/internal/api/mcp"
	"github.com/Zereker/corpus/internal/domain"
	"github.com/Zereker/corpus/pkg/classify"
	"github.com/Zereker/corpus/pkg/embedding"
	"github.com/Zereker/corpus/pkg/log"
	"github.com/Zereker/corpus/pkg/mq"
	"github.com/Zereker/corpus/pkg/storage"
)

// Server represents the corpus server
type Server struct {
	config   Config
	logger   *slog.Logger
	corpus   *action.Corpus
	store    *storage.Service
	consumer *consumer.Consumer
}

// NewServer creates a new server with the given configuration
func NewServer(conf Config) (*Server, error) {
	server := &Server{
		config: conf,
	}

	if err := server.initDepend(); err != nil {
		return nil, errors.WithMessage(err, "init server dependency failed")
	}

	if err := server.initCorpus(); err != nil {
		return nil, errors.WithMessage(err, "init corpus failed")
	}

	if err := server.initConsumer(); err != nil {
		return nil, errors.WithMessage(err, "init consumer failed")
	}

	return server, nil
}

// initDepend initializes all dependencies
func (s *Server) initDepend() error {
	// Initialize log first
	if err := log.Init(s.config.Log); err != nil {
		return errors.WithMessage(err, "failed to init log")
	}

	// Create logger for this module
	s.logger = log.Logger("server")
	s.logger.Info("initializing dependencies")

	ctx := context.Background()

	// Initialize embedding generator
	s.logger.Info("initializing embedding generator")
	if err := embedding.Init(s.config.Embedding); err != nil {
		return errors.WithMessage(err, "failed to init embedding")
	}

	// Initialize classifier
	if s.config.Classify.Enabled {
		s.logger.Info("initializing classifier")
		if err := classify.Init(s.config.Classify); err != nil {
			return errors.WithMessage(err, "failed to init classifier")
		}
	}

	// Initialize Kafka message queue
	if s.config.Kafka.Enabled {
		s.logger.Info("initializing message queue")
		if err := mq.Init(s.config.Kafka); err != nil {
			return errors.WithMessage(err, "failed to init message queue")
		}
	}

	// Initialize storage and register the content model
	s.logger.Info("initializing storage", "kind", s.config.Storage.Kind)
	store, err := storage.NewService(s.config.Storage)
	if err != nil {
		return errors.WithMessage(err, "failed to create storage service")
	}
	if err := store.Connect(ctx); err != nil {
		return errors.WithMessage(err, "failed to connect storage")
	}

	generator := embedding.NewGenerator()
	if err := store.RegisterModel(domain.EntityContent, domain.ContentSchema(generator.Dimension())); err != nil {
		return errors.WithMessage(err, "failed to register content model")
	}

	s.store = store
	return nil
}

// initCorpus initializes the corpus instance
func (s *Server) initCorpus() error {
	s.logger.Info("initializing corpus")

	var classifier action.Classifier
	if s.config.Classify.Enabled {
		classifier = classify.NewClassifier()
	}

	var producer mq.MessageQueue
	if s.config.Kafka.Enabled {
		producer = mq.NewQueue()
	}

	s.corpus = action.NewCorpus(s.store, embedding.NewGenerator(), classifier, producer)
	return nil
}

// initConsumer initializes the enrichment pipeline consumer
func (s *Server) initConsumer() error {
	s.logger.Info("initializing consumer")

	c, err := consumer.NewConsumer(s.corpus, consumer.Config{
		Kafka: s.config.Kafka,
	})
	if err != nil {
		return errors.WithMessage(err, "failed to create consumer")
	}

	s.consumer = c
	return nil
}

// Start starts the server based on configuration mode
func (s *Server) Start() error {
	s.logger.Info("starting", "mode", s.config.Server.Mode, "port", s.config.Server.Port)

	ctx, cancel := context.WithCancel(context.Background())

	// Handle graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		s.logger.Info("received shutdown signal")
		cancel()
	}()

	g, ctx := errgroup.WithContext(ctx)

	// Start consumer
	if s.consumer != nil {
		g.Go(func() error {
			return s.runConsumer(ctx)
		})
	}

	switch s.config.Server.Mode {
	case "http":
		g.Go(func() error {
			return s.runHTTPServer(ctx)
		})
	case "mcp":
		g.Go(func() error {
			return s.runMCPServer(ctx)
		})
	case "both":
		g.Go(func() error {
			return s.runHTTPServer(ctx)
		})
		g.Go(func() error {
			return s.runMCPServer(ctx)
		})
	default:
		cancel()
		return errors.Errorf("unknown mode: %s", s.config.Server.Mode)
	}

	return g.Wait()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown() error {
	s.logger.Info("shutting down")

	ctx := context.Background()

	// Stop consumer
	if s.consumer != nil {
		if err := s.consumer.Stop(); err != nil {
			s.logger.Error("failed to stop consumer", "error", err)
		}
	}

	if producer := mq.NewQueue(); producer != nil {
		if err := producer.Close(); err != nil {
			s.logger.Error("failed to close producer", "error", err)
		}
	}

	if s.store != nil {
		if err := s.store.Disconnect(ctx); err != nil {
			s.logger.Error("failed to disconnect storage", "error", err)
		}
	}

	return nil
}

func (s *Server) runHTTPServer(ctx context.Context) error {
	serverCfg := http.DefaultServerConfig()
	serverCfg.Port = s.config.Server.Port

	srv := http.NewServer(s.corpus, serverCfg)

	// Shutdown when context is cancelled
	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()

	if err := srv.Start(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
		return errors.WithMessage(err, "http server error")
	}
	return nil
}

func (s *Server) runMCPServer(ctx context.Context) error {
	server := mcp.NewServer(s.corpus, mcp.ServerConfig{
		Name:    "corpus",
		Version: "0.1.0",
	})

	if err := server.RunStdio(ctx); err != nil && err != context.Canceled {
		return errors.WithMessage(err, "mcp server error")
	}
	return nil
}

func (s *Server) runConsumer(ctx context.Context) error {
	if err := s.consumer.Start(ctx); err != nil {
		return errors.WithMessage(err, "consumer start error")
	}

	// Wait for context cancellation
	<-ctx.Done()

	return s.consumer.Stop()
}
