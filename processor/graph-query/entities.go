package graphquery

import (
	"time"

	"github.com/google/uuid"

	"github.com/c360studio/semlink/graph"
)

// Request represents a graph query request.
type Request struct {
	// RequestID is a unique identifier for this request. The result is
	// published under it.
	RequestID string `json:"request_id"`

	// Type is the query operation type.
	Type QueryType `json:"type"`

	// Schema names the resource kind for browse and compile queries.
	Schema string `json:"schema,omitempty"`

	// ResourceID is the target resource for resource queries.
	ResourceID string `json:"resource_id,omitempty"`

	// Views and Roles are the axis tokens of the requesting context.
	// Queries always resolve the mode axis with the filter token.
	Views []string `json:"views,omitempty"`
	Roles []string `json:"roles,omitempty"`

	// Path is a sequence of edge steps into the shape. Compile queries
	// report the query variable bound at its end; browse queries reject
	// steps the shape does not declare.
	Path []string `json:"path,omitempty"`

	// SearchText is the text to search for in search queries.
	SearchText string `json:"search_text,omitempty"`

	// MaxResults limits the number of results.
	MaxResults int `json:"max_results,omitempty"`

	// IncludeModel includes full statement data in results.
	IncludeModel bool `json:"include_model,omitempty"`
}

// Response represents a graph query response.
type Response struct {
	// RequestID matches the original request.
	RequestID string `json:"request_id"`

	// Success indicates if the query succeeded.
	Success bool `json:"success"`

	// Error contains error details if success is false.
	Error string `json:"error,omitempty"`

	// Resources are the matching resources.
	Resources []ResourceResult `json:"resources,omitempty"`

	// Query is the SPARQL query compiled from the visible shape, present
	// on browse and compile responses.
	Query string `json:"query,omitempty"`

	// Anchor is the query variable bound at the end of the request path.
	Anchor string `json:"anchor,omitempty"`

	// TotalCount is the total number of matches (may exceed returned count).
	TotalCount int `json:"total_count"`

	// QueryTime is how long the query took.
	QueryTime time.Duration `json:"query_time"`
}

// ResourceResult represents a single resource in query results.
type ResourceResult struct {
	// ID is the resource identifier ("schema.uuid").
	ID string `json:"id"`

	// Schema is the resource's schema name.
	Schema string `json:"schema,omitempty"`

	// Statements are the resource's model if requested.
	Statements graph.Model `json:"statements,omitempty"`
}

// NewRequest creates a new query request with a generated ID.
func NewRequest(queryType QueryType) *Request {
	return &Request{
		RequestID:  uuid.New().String(),
		Type:       queryType,
		MaxResults: 100,
	}
}

// NewResponse creates a successful empty response.
func NewResponse(requestID string) *Response {
	return &Response{
		RequestID: requestID,
		Success:   true,
		Resources: make([]ResourceResult, 0),
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(requestID, errorMsg string) *Response {
	return &Response{
		RequestID: requestID,
		Success:   false,
		Error:     errorMsg,
	}
}
