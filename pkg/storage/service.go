package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Config selects and configures the active backend. Exactly one backend is
// live per service; the others' sections are ignored.
type Config struct {
	Kind     Kind           `toml:"kind"`
	Document DocumentConfig `toml:"document"`
	Graph    GraphConfig    `toml:"graph"`
	KeyValue KeyValueConfig `toml:"keyvalue"`
}

// Validate checks the section belonging to the selected kind.
func (cfg *Config) Validate() error {
	switch cfg.Kind {
	case KindDocument:
		return cfg.Document.Validate()
	case KindGraph:
		return cfg.Graph.Validate()
	case KindKeyValue:
		return cfg.KeyValue.Validate()
	case "":
		return fmt.Errorf("kind is required")
	default:
		return fmt.Errorf("unknown kind: %s, must be document, graph, or keyvalue", cfg.Kind)
	}
}

// Service is the façade consumers hold. It owns exactly one provider,
// resolved once at construction, and refuses every repository or model
// operation until Connect has completed.
type Service struct {
	logger   *slog.Logger
	provider Provider

	mu    sync.Mutex
	ready bool
}

// NewService builds a service for the configured backend kind. Unknown
// kinds are rejected here, not at first use.
func NewService(cfg Config) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var provider Provider
	switch cfg.Kind {
	case KindDocument:
		provider = newDocumentProvider(cfg.Document)
	case KindGraph:
		provider = newGraphProvider(cfg.Graph)
	case KindKeyValue:
		provider = newKeyValueProvider(cfg.KeyValue)
	default:
		return nil, fmt.Errorf("unknown kind: %s", cfg.Kind)
	}

	return &Service{
		logger:   slog.Default().With("module", "storage"),
		provider: provider,
	}, nil
}

// Kind reports the active backend family.
func (s *Service) Kind() Kind {
	return s.provider.Kind()
}

// Connect brings up the active provider. Idempotent.
func (s *Service) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ready {
		return nil
	}

	if err := s.provider.Connect(ctx); err != nil {
		return err
	}

	s.ready = true
	s.logger.Info("storage connected", "kind", s.provider.Kind())
	return nil
}

// Disconnect shuts the active provider down. Idempotent; safe without a
// prior Connect.
func (s *Service) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready {
		return nil
	}

	if err := s.provider.Disconnect(ctx); err != nil {
		return err
	}

	s.ready = false
	s.logger.Info("storage disconnected", "kind", s.provider.Kind())
	return nil
}

// Connected reports whether the service has a live connection.
func (s *Service) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// RegisterModel records an entity schema with the active provider.
func (s *Service) RegisterModel(entity string, schema Schema) error {
	if !s.Connected() {
		return ErrNotInitialized
	}
	return s.provider.RegisterModel(entity, schema)
}

// Repository returns the repository for entity from the active provider.
func (s *Service) Repository(entity string) (Repository, error) {
	if !s.Connected() {
		return nil, ErrNotInitialized
	}
	return s.provider.Repository(entity)
}
