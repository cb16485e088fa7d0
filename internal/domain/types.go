package domain

import "time"

// Event actions published on the content-events topic.
const (
	TopicContentEvents = "content.events"

	ActionCreated = "created"
	ActionUpdated = "updated"
)

// ContentEvent is the message published after a write, consumed by the
// enrichment pipeline.
type ContentEvent struct {
	Entity string `json:"entity"`
	ID     string `json:"id"`
	Action string `json:"action"`
}

// IngestRequest adds one piece of content.
type IngestRequest struct {
	Platform  string    `json:"platform"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	URL       string    `json:"url,omitempty"`
	Language  string    `json:"language,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// IngestResponse reports the stored content. Enriched is false when
// enrichment was handed off to the event pipeline instead of running inline.
type IngestResponse struct {
	Success  bool     `json:"success"`
	Content  *Content `json:"content"`
	Enriched bool     `json:"enriched"`
}

// SearchRequest runs a semantic similarity search over stored content.
type SearchRequest struct {
	Query    string  `json:"query"`
	Platform string  `json:"platform,omitempty"`
	Limit    int     `json:"limit,omitempty"`
	MinScore float64 `json:"min_score,omitempty"`
}

// ScoredContent pairs a content with its similarity to the query.
type ScoredContent struct {
	Content *Content `json:"content"`
	Score   float64  `json:"score"`
}

// SearchResponse lists scored results, best first.
type SearchResponse struct {
	Success bool            `json:"success"`
	Results []ScoredContent `json:"results"`
	Total   int             `json:"total"`
}

// ListRequest pages through stored content with structured filters.
type ListRequest struct {
	Platform string `json:"platform,omitempty"`
	Author   string `json:"author,omitempty"`
	Language string `json:"language,omitempty"`
	Skip     int    `json:"skip,omitempty"`
	Limit    int    `json:"limit,omitempty"`
	SortBy   string `json:"sort_by,omitempty"`
	SortDesc bool   `json:"sort_desc,omitempty"`
}

// ListResponse lists contents plus the filtered total.
type ListResponse struct {
	Success  bool       `json:"success"`
	Contents []*Content `json:"contents"`
	Total    int        `json:"total"`
}

// UpdateRequest patches top-level fields of a content by id. Fields absent
// from the patch are left unchanged.
type UpdateRequest struct {
	Patch map[string]any `json:"patch"`
}
