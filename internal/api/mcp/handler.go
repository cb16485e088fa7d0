package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Zereker/corpus/internal/action"
	"github.com/Zereker/corpus/internal/domain"
)

// Handler handles MCP tool calls
type Handler struct {
	corpus *action.Corpus
}

// NewHandler creates a new MCP handler
func NewHandler(corpus *action.Corpus) *Handler {
	return &Handler{
		corpus: corpus,
	}
}

// ToolCallRequest represents an MCP tool call request
type ToolCallRequest struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolCallResponse represents an MCP tool call response
type ToolCallResponse struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

// ContentBlock represents a content block in the response
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// HandleToolCall handles an MCP tool call
func (h *Handler) HandleToolCall(ctx context.Context, req ToolCallRequest) ToolCallResponse {
	switch req.Name {
	case "content_ingest":
		return h.handleIngest(ctx, req.Arguments)
	case "content_search":
		return h.handleSearch(ctx, req.Arguments)
	case "content_get":
		return h.handleGet(ctx, req.Arguments)
	case "content_delete":
		return h.handleDelete(ctx, req.Arguments)
	default:
		return errorResponse(fmt.Sprintf("unknown tool: %s", req.Name))
	}
}

// handleIngest handles content_ingest tool call
func (h *Handler) handleIngest(ctx context.Context, args json.RawMessage) ToolCallResponse {
	var req domain.IngestRequest
	if err := json.Unmarshal(args, &req); err != nil {
		return errorResponse(fmt.Sprintf("invalid arguments: %v", err))
	}

	resp, err := h.corpus.Ingest(ctx, &req)
	if err != nil {
		return errorResponse(fmt.Sprintf("ingest failed: %v", err))
	}

	return successResponse(fmt.Sprintf("Stored content %s from %s.",
		resp.Content.ID, resp.Content.Platform))
}

// handleSearch handles content_search tool call
func (h *Handler) handleSearch(ctx context.Context, args json.RawMessage) ToolCallResponse {
	var req domain.SearchRequest
	if err := json.Unmarshal(args, &req); err != nil {
		return errorResponse(fmt.Sprintf("invalid arguments: %v", err))
	}

	resp, err := h.corpus.Search(ctx, &req)
	if err != nil {
		return errorResponse(fmt.Sprintf("search failed: %v", err))
	}

	return successResponse(formatSearchResponse(resp))
}

// handleGet handles content_get tool call
func (h *Handler) handleGet(ctx context.Context, args json.RawMessage) ToolCallResponse {
	var req struct {
		ContentID string `json:"content_id"`
	}
	if err := json.Unmarshal(args, &req); err != nil {
		return errorResponse(fmt.Sprintf("invalid arguments: %v", err))
	}

	content, err := h.corpus.Get(ctx, req.ContentID)
	if err != nil {
		return errorResponse(fmt.Sprintf("get failed: %v", err))
	}
	if content == nil {
		return errorResponse(fmt.Sprintf("content not found: %s", req.ContentID))
	}

	return successResponse(formatContent(content))
}

// handleDelete handles content_delete tool call
func (h *Handler) handleDelete(ctx context.Context, args json.RawMessage) ToolCallResponse {
	var req struct {
		ContentID string `json:"content_id"`
	}
	if err := json.Unmarshal(args, &req); err != nil {
		return errorResponse(fmt.Sprintf("invalid arguments: %v", err))
	}

	removed, err := h.corpus.Delete(ctx, req.ContentID)
	if err != nil {
		return errorResponse(fmt.Sprintf("delete failed: %v", err))
	}
	if !removed {
		return errorResponse(fmt.Sprintf("content not found: %s", req.ContentID))
	}

	return successResponse(fmt.Sprintf("Deleted content %s.", req.ContentID))
}

// formatSearchResponse renders search results as readable text
func formatSearchResponse(resp *domain.SearchResponse) string {
	if len(resp.Results) == 0 {
		return "No matching content found."
	}

	var parts []string
	parts = append(parts, fmt.Sprintf("Found %d results:", len(resp.Results)))
	for _, result := range resp.Results {
		parts = append(parts, fmt.Sprintf("- [%.2f] (%s) %s",
			result.Score, result.Content.Platform, truncate(result.Content.Text, 100)))
	}

	return strings.Join(parts, "\n")
}

// formatContent renders one content as readable text
func formatContent(content *domain.Content) string {
	var parts []string
	parts = append(parts, fmt.Sprintf("ID: %s", content.ID))
	parts = append(parts, fmt.Sprintf("Platform: %s", content.Platform))
	if content.Author != "" {
		parts = append(parts, fmt.Sprintf("Author: %s", content.Author))
	}
	if content.Language != "" {
		parts = append(parts, fmt.Sprintf("Language: %s", content.Language))
	}
	if content.URL != "" {
		parts = append(parts, fmt.Sprintf("URL: %s", content.URL))
	}
	parts = append(parts, fmt.Sprintf("Text: %s", content.Text))

	return strings.Join(parts, "\n")
}

// Helper functions

func successResponse(text string) ToolCallResponse {
	return ToolCallResponse{
		Content: []ContentBlock{
			{Type: "text", Text: text},
		},
	}
}

func errorResponse(text string) ToolCallResponse {
	return ToolCallResponse{
		Content: []ContentBlock{
			{Type: "text", Text: text},
		},
		IsError: true,
	}
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
