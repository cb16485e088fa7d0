package mcp

// Tool represents an MCP tool definition
type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"inputSchema"`
}

// InputSchema defines the JSON schema for tool input
type InputSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// Property defines a property in the schema
type Property struct {
	Type        string              `json:"type"`
	Description string              `json:"description,omitempty"`
	Enum        []string            `json:"enum,omitempty"`
	Items       *Property           `json:"items,omitempty"`
	Properties  map[string]Property `json:"properties,omitempty"`
	Default     any                 `json:"default,omitempty"`
}

// ContentTools defines all available MCP tools for content operations
var ContentTools = []Tool{
	{
		Name:        "content_ingest",
		Description: "Store a piece of content. It is classified and embedded automatically.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"platform": {
					Type:        "string",
					Description: "Source platform, e.g. twitter, blog, news",
				},
				"author": {
					Type:        "string",
					Description: "Author handle or name",
				},
				"text": {
					Type:        "string",
					Description: "Content body",
				},
				"url": {
					Type:        "string",
					Description: "Canonical URL of the content",
				},
				"language": {
					Type:        "string",
					Description: "ISO language code, detected when omitted",
				},
				"timestamp": {
					Type:        "string",
					Description: "Publication time (RFC 3339), defaults to now",
				},
			},
			Required: []string{"platform", "text"},
		},
	},
	{
		Name:        "content_search",
		Description: "Search stored content by meaning. Returns the most similar contents with their similarity scores.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"query": {
					Type:        "string",
					Description: "Natural language query",
				},
				"platform": {
					Type:        "string",
					Description: "Restrict results to one platform",
				},
				"limit": {
					Type:        "integer",
					Description: "Maximum number of results",
					Default:     10,
				},
				"min_score": {
					Type:        "number",
					Description: "Minimum similarity score (0.0-1.0)",
				},
			},
			Required: []string{"query"},
		},
	},
	{
		Name:        "content_get",
		Description: "Fetch one stored content by id.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"content_id": {
					Type:        "string",
					Description: "Content id",
				},
			},
			Required: []string{"content_id"},
		},
	},
	{
		Name:        "content_delete",
		Description: "Delete one stored content by id.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"content_id": {
					Type:        "string",
					Description: "Content id",
				},
			},
			Required: []string{"content_id"},
		},
	},
}
