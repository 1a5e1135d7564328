// Package graphquery provides a query processor component for resources
// validated and cached from the graph pipeline.
package graphquery

// QueryType is the query operation type.
type QueryType string

const (
	// QueryResource retrieves a single resource by ID.
	QueryResource QueryType = "resource"

	// QueryBrowse finds resources of a schema satisfying its visible shape.
	QueryBrowse QueryType = "browse"

	// QueryCompile compiles a schema's visible shape to query text without
	// evaluating anything.
	QueryCompile QueryType = "compile"

	// QuerySearch performs a text search across cached resource literals.
	QuerySearch QueryType = "search"
)
