package classify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req struct {
			Text string `json:"text"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "great launch today", req.Text)

		_ = json.NewEncoder(w).Encode(Classification{
			Categories:   []string{"product"},
			Sentiment:    0.8,
			Toxicity:     0.05,
			Subjectivity: 0.4,
			Language:     "en",
			Topics:       []string{"launch"},
			Entities:     []string{"today"},
		})
	}))
	defer srv.Close()

	c, err := New(Config{Enabled: true, Endpoint: srv.URL, APIKey: "test-key"})
	assert.NoError(t, err)
	assert.NotNil(t, c)

	result, err := c.Classify(context.Background(), "great launch today")
	assert.NoError(t, err)
	assert.Equal(t, []string{"product"}, result.Categories)
	assert.InDelta(t, 0.8, result.Sentiment, 1e-9)
	assert.Equal(t, "en", result.Language)
}

func TestClassifyServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, err := New(Config{Enabled: true, Endpoint: srv.URL})
	assert.NoError(t, err)

	_, err = c.Classify(context.Background(), "anything")
	assert.ErrorIs(t, err, ErrRemoteService)
}

func TestClassifyDisabled(t *testing.T) {
	c, err := New(Config{})
	assert.NoError(t, err)
	assert.Nil(t, c)

	_, err = c.Classify(context.Background(), "anything")
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, (&Config{}).Validate())
	assert.NoError(t, (&Config{Enabled: true, Endpoint: "http://svc"}).Validate())
	assert.Error(t, (&Config{Enabled: true}).Validate())
}
