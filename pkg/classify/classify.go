package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

var (
	// ErrRemoteService marks failures talking to the classification service.
	ErrRemoteService = errors.New("classification service request failed")

	// ErrDisabled is returned when no classifier is configured.
	ErrDisabled = errors.New("classification is disabled")
)

const requestTimeout = 10 * time.Second

// Package-level singleton instance
var classifierInstance *Classifier

// Init initializes the classifier singleton with config.
func Init(cfg Config) error {
	c, err := New(cfg)
	if err != nil {
		return err
	}
	classifierInstance = c
	return nil
}

// NewClassifier returns the singleton classifier instance.
// Returns nil if classification is not enabled.
func NewClassifier() *Classifier {
	return classifierInstance
}

// Config holds classification service configuration.
type Config struct {
	Enabled  bool   `toml:"enabled"`
	Endpoint string `toml:"endpoint"`
	APIKey   string `toml:"api_key"`
}

// Validate checks classification configuration.
func (cfg *Config) Validate() error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.Endpoint == "" {
		return fmt.Errorf("endpoint is required when classify is enabled")
	}
	return nil
}

// Classification is the verbatim result of the remote classifier. The layer
// stores it alongside records and never interprets its fields.
type Classification struct {
	Categories   []string `json:"categories"`
	Sentiment    float64  `json:"sentiment"`
	Toxicity     float64  `json:"toxicity"`
	Subjectivity float64  `json:"subjectivity"`
	Language     string   `json:"language"`
	Topics       []string `json:"topics"`
	Entities     []string `json:"entities"`
}

// Classifier calls the remote classification service.
type Classifier struct {
	logger *slog.Logger
	config Config
	client *http.Client
}

// New creates a classifier from config. Returns nil when classification is
// not enabled.
func New(cfg Config) (*Classifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		return nil, nil
	}

	return &Classifier{
		logger: slog.Default().With("module", "classify"),
		config: cfg,
		client: &http.Client{Timeout: requestTimeout},
	}, nil
}

// Classify sends text to the remote service and returns its result untouched.
// Single attempt; failures surface to the caller, who decides whether the
// record ships without a classification.
func (c *Classifier) Classify(ctx context.Context, text string) (*Classification, error) {
	if c == nil {
		return nil, ErrDisabled
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	body, err := json.Marshal(map[string]any{"text": text})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", ErrRemoteService, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrRemoteService, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteService, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("%w: status %d: %s", ErrRemoteService, resp.StatusCode, string(snippet))
	}

	var result Classification
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrRemoteService, err)
	}

	return &result, nil
}
