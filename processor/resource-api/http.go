package resourceapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/c360studio/semlink/export"
	"github.com/c360studio/semlink/graph"
	"github.com/c360studio/semlink/shape"
	"github.com/c360studio/semlink/shape/sparql"
	"github.com/c360studio/semlink/storage"
)

// maxRequestBodySize limits document body sizes to prevent DoS.
const maxRequestBodySize = 1 << 20 // 1 MB

// RegisterHTTPHandlers registers all resource-api HTTP handlers under the given
// prefix. The prefix should be the path segment without a trailing slash
// (e.g. "api/resources"). Handlers are registered as:
//
//	GET    <prefix>/schemas
//	GET    <prefix>/{schema}
//	POST   <prefix>/{schema}
//	GET    <prefix>/{schema}/{id}
//	PUT    <prefix>/{schema}/{id}
//	DELETE <prefix>/{schema}/{id}
func (c *Component) RegisterHTTPHandlers(prefix string, mux *http.ServeMux) {
	// Normalise: ensure leading slash and trailing slash.
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix = prefix + "/"
	}

	mux.HandleFunc(prefix+"schemas", c.handleSchemas)
	mux.HandleFunc(prefix+"{schema}", c.handleCollection)
	mux.HandleFunc(prefix+"{schema}/{id}", c.handleResource)
}

// ResourceResponse is the JSON envelope for a single resource.
type ResourceResponse struct {
	// ID is the "schema.id" resource identifier.
	ID string `json:"id"`

	// Schema is the schema the resource is stored under.
	Schema string `json:"schema"`

	// Document is the resource model framed as a JSON-LD style document
	// rooted at the resource subject.
	Document map[string]any `json:"document"`

	// CreatedAt is when the resource was first stored.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the resource was last written.
	UpdatedAt time.Time `json:"updated_at"`
}

// BrowseResponse is the JSON body for a schema browse.
type BrowseResponse struct {
	// Schema is the browsed schema name.
	Schema string `json:"schema"`

	// IDs lists the stored resource identifiers, capped at max_results.
	IDs []string `json:"ids"`

	// Query is the SPARQL SELECT compiled from the caller's visible shape.
	Query string `json:"query"`

	// Matches lists subjects the configured endpoint returned for Query.
	// Omitted when no endpoint is configured.
	Matches []string `json:"matches,omitempty"`
}

// ValidationResponse reports a document rejected by its schema.
type ValidationResponse struct {
	Error  string       `json:"error"`
	Schema string       `json:"schema"`
	Trace  *shape.Trace `json:"trace"`
}

// SchemasResponse lists the registered schema names.
type SchemasResponse struct {
	Schemas []string `json:"schemas"`
}

// ----------------------------------------------------------------------------
// GET /api/resources/schemas
// ----------------------------------------------------------------------------

// handleSchemas returns the registered schema names.
func (c *Component) handleSchemas(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	c.requestsServed.Add(1)
	c.touchActivity()

	writeJSON(w, http.StatusOK, SchemasResponse{Schemas: c.registry.Names()})
}

// ----------------------------------------------------------------------------
// /api/resources/{schema}
// ----------------------------------------------------------------------------

// handleCollection dispatches browse and create requests for a schema.
func (c *Component) handleCollection(w http.ResponseWriter, r *http.Request) {
	engine := c.getEngine()
	if engine == nil {
		http.Error(w, "Component not ready", http.StatusServiceUnavailable)
		return
	}

	c.requestsServed.Add(1)
	c.touchActivity()

	switch r.Method {
	case http.MethodGet:
		c.handleBrowse(w, r, engine)
	case http.MethodPost:
		c.handleCreate(w, r, engine)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleBrowse lists a schema's resources with the compiled filter query.
// The sort and filter parameters are edge paths into the visible shape,
// comma-separated for nested steps.
func (c *Component) handleBrowse(w http.ResponseWriter, r *http.Request, engine *storage.Engine) {
	axes, ok := c.axesFor(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	opts := storage.BrowseOptions{
		Sort:   splitTokens(query["sort"]),
		Filter: splitTokens(query["filter"]),
		Limit:  c.config.maxResults(),
	}

	result, err := engine.Browse(r.Context(), r.PathValue("schema"), axes, opts)
	if err != nil {
		c.writeEngineError(w, err)
		return
	}

	resp := BrowseResponse{
		Schema: r.PathValue("schema"),
		IDs:    make([]string, 0, len(result.IDs)),
		Query:  result.Query,
	}
	for _, id := range result.IDs {
		resp.IDs = append(resp.IDs, id.String())
	}
	for _, match := range result.Matches {
		resp.Matches = append(resp.Matches, match.Text())
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleCreate validates the posted document and stores it under a fresh id.
func (c *Component) handleCreate(w http.ResponseWriter, r *http.Request, engine *storage.Engine) {
	axes, ok := c.axesFor(w, r)
	if !ok {
		return
	}

	focus, model, ok := c.readDocument(w, r)
	if !ok {
		return
	}

	res, err := engine.Create(r.Context(), r.PathValue("schema"), focus, model, axes)
	if err != nil {
		c.writeEngineError(w, err)
		return
	}

	w.Header().Set("Location", r.URL.Path+"/"+res.ID.ID)
	c.writeResource(w, r, http.StatusCreated, res)
}

// ----------------------------------------------------------------------------
// /api/resources/{schema}/{id}
// ----------------------------------------------------------------------------

// handleResource dispatches retrieve, update, and delete requests.
func (c *Component) handleResource(w http.ResponseWriter, r *http.Request) {
	engine := c.getEngine()
	if engine == nil {
		http.Error(w, "Component not ready", http.StatusServiceUnavailable)
		return
	}

	c.requestsServed.Add(1)
	c.touchActivity()

	id := storage.ResourceID{Schema: r.PathValue("schema"), ID: r.PathValue("id")}

	switch r.Method {
	case http.MethodGet:
		c.handleRetrieve(w, r, engine, id)
	case http.MethodPut:
		c.handleUpdate(w, r, engine, id)
	case http.MethodDelete:
		c.handleDelete(w, r, engine, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleRetrieve loads a resource trimmed to the caller's visible shape.
func (c *Component) handleRetrieve(w http.ResponseWriter, r *http.Request, engine *storage.Engine, id storage.ResourceID) {
	axes, ok := c.axesFor(w, r)
	if !ok {
		return
	}

	res, err := engine.Retrieve(r.Context(), id, axes)
	if err != nil {
		c.writeEngineError(w, err)
		return
	}

	c.writeResource(w, r, http.StatusOK, res)
}

// handleUpdate replaces a resource's model with the validated document.
func (c *Component) handleUpdate(w http.ResponseWriter, r *http.Request, engine *storage.Engine, id storage.ResourceID) {
	axes, ok := c.axesFor(w, r)
	if !ok {
		return
	}

	focus, model, ok := c.readDocument(w, r)
	if !ok {
		return
	}

	res, err := engine.Update(r.Context(), id, focus, model, axes)
	if err != nil {
		c.writeEngineError(w, err)
		return
	}

	c.writeResource(w, r, http.StatusOK, res)
}

// handleDelete removes a resource.
func (c *Component) handleDelete(w http.ResponseWriter, r *http.Request, engine *storage.Engine, id storage.ResourceID) {
	axes, ok := c.axesFor(w, r)
	if !ok {
		return
	}

	if err := engine.Delete(r.Context(), id, axes); err != nil {
		c.writeEngineError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ----------------------------------------------------------------------------
// Request context
// ----------------------------------------------------------------------------

// axesFor builds the caller's guard axes from the request: view and mode
// tokens from query parameters, roles from the bearer token. The task axis
// is set per operation by the engine. A presented token the component does
// not recognize is rejected; requests without credentials proceed with no
// roles, so role-guarded fields stay hidden.
func (c *Component) axesFor(w http.ResponseWriter, r *http.Request) (storage.Axes, bool) {
	roles, err := c.roles(r)
	if err != nil {
		c.requestErrors.Add(1)
		http.Error(w, "Unknown bearer token", http.StatusUnauthorized)
		return storage.Axes{}, false
	}

	query := r.URL.Query()
	return storage.Axes{
		Views: splitTokens(query["view"]),
		Modes: splitTokens(query["mode"]),
		Roles: roles,
	}, true
}

// roles resolves the request's bearer token to its granted roles.
func (c *Component) roles(r *http.Request) ([]string, error) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return nil, nil
	}
	if !strings.HasPrefix(auth, "Bearer ") {
		return nil, errors.New("unsupported authorization scheme")
	}
	token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	roles, ok := c.config.Tokens[token]
	if !ok {
		return nil, errors.New("unknown bearer token")
	}
	return roles, nil
}

// splitTokens flattens repeated query parameters, splitting comma-separated
// values within each.
func splitTokens(params []string) []string {
	var out []string
	for _, param := range params {
		for _, tok := range strings.Split(param, ",") {
			tok = strings.TrimSpace(tok)
			if tok != "" {
				out = append(out, tok)
			}
		}
	}
	return out
}

// readDocument reads and parses the request body as a framed JSON document.
func (c *Component) readDocument(w http.ResponseWriter, r *http.Request) (focus graph.Value, model graph.Model, ok bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		c.requestErrors.Add(1)
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return focus, nil, false
	}

	focus, model, err = export.Unframe(data)
	if err != nil {
		c.requestErrors.Add(1)
		http.Error(w, "Invalid document: "+err.Error(), http.StatusBadRequest)
		return focus, nil, false
	}
	return focus, model, true
}

// ----------------------------------------------------------------------------
// Responses
// ----------------------------------------------------------------------------

// writeResource renders a resource honoring the Accept header. RDF formats
// get the raw serialization of the visible model; everything else gets the
// JSON envelope with the framed document.
func (c *Component) writeResource(w http.ResponseWriter, r *http.Request, status int, res *storage.Resource) {
	if format, ok := export.FormatForMIMEType(acceptedType(r)); ok {
		body, err := export.Write(res.Statements, format)
		if err != nil {
			c.requestErrors.Add(1)
			c.logger.Error("Failed to serialize resource", "resource", res.ID.String(), "error", err)
			http.Error(w, "Failed to serialize resource", http.StatusInternalServerError)
			return
		}
		info, _ := export.GetFormatInfo(format)
		w.Header().Set("Content-Type", info.MIMEType)
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
		return
	}

	writeJSON(w, status, ResourceResponse{
		ID:        res.ID.String(),
		Schema:    res.ID.Schema,
		Document:  export.Frame(res.ID.Subject(), res.Statements),
		CreatedAt: res.CreatedAt,
		UpdatedAt: res.UpdatedAt,
	})
}

// writeEngineError maps pipeline errors onto HTTP statuses. Validation
// failures carry their trace so callers can see which constraints failed
// and on which values.
func (c *Component) writeEngineError(w http.ResponseWriter, err error) {
	c.requestErrors.Add(1)

	var validationErr *storage.ValidationError
	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusUnprocessableEntity, ValidationResponse{
			Error:  validationErr.Error(),
			Schema: validationErr.Schema,
			Trace:  validationErr.Trace,
		})
	case errors.Is(err, storage.ErrUnknownSchema):
		http.Error(w, "Unknown schema", http.StatusNotFound)
	case errors.Is(err, sparql.ErrUnknownStep):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, storage.ErrNotFound):
		http.Error(w, "Resource not found", http.StatusNotFound)
	case errors.Is(err, storage.ErrForbidden):
		http.Error(w, "Operation not permitted for this context", http.StatusForbidden)
	case errors.Is(err, storage.ErrAlreadyExists):
		http.Error(w, "Resource already exists", http.StatusConflict)
	default:
		c.logger.Error("Resource operation failed", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
}

// acceptedType returns the first media type in the Accept header, without
// quality parameters.
func acceptedType(r *http.Request) string {
	accept := r.Header.Get("Accept")
	if accept == "" {
		return ""
	}
	first, _, _ := strings.Cut(accept, ",")
	mediaType, _, _ := strings.Cut(first, ";")
	return strings.TrimSpace(mediaType)
}

// writeJSON marshals v as JSON and writes it to w with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Response is already partially written; nothing to do.
		_ = err
	}
}
