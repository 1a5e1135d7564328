package graphquery

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/c360studio/semstreams/component"
	"github.com/c360studio/semstreams/natsclient"

	"github.com/c360studio/semlink/graph"
	"github.com/c360studio/semlink/schema"
	"github.com/c360studio/semlink/shape"
	"github.com/c360studio/semlink/shape/sparql"
	"github.com/c360studio/semlink/storage"
)

// graphQuerySchema defines the configuration schema.
var graphQuerySchema = component.GenerateConfigSchema(reflect.TypeOf(Config{}))

const (
	// requestSubject receives query requests.
	requestSubject = "graph.query.request"

	// resultPrefix is the subject prefix results are published under,
	// completed by the request ID.
	resultPrefix = "graph.query.result."

	// queryMode is the mode token queries resolve under. Fields guarded
	// for other modes are not queryable here.
	queryMode = "filter"
)

// cachedResource is one validated resource held in the local cache.
type cachedResource struct {
	ID         string
	Schema     string
	Statements graph.Model
	UpdatedAt  time.Time
}

// Component implements the graph-query processor. It answers queries from
// a local cache of validated resources fed by the pipeline, compiling each
// schema's visible shape to query text alongside.
type Component struct {
	name       string
	config     Config
	natsClient *natsclient.Client
	logger     *slog.Logger
	registry   *schema.Registry

	// Local cache of validated resources.
	resources map[string]*cachedResource
	bySchema  map[string][]string
	mu        sync.RWMutex

	// Lifecycle management
	running   bool
	startTime time.Time

	// Metrics
	queriesProcessed int64
	lastQuery        time.Time

	// Cancel functions for background goroutines
	cancelFuncs []context.CancelFunc
}

// NewComponent creates a new graph-query processor component.
func NewComponent(rawConfig json.RawMessage, deps component.Dependencies) (component.Discoverable, error) {
	var config Config
	if err := json.Unmarshal(rawConfig, &config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Use default config if ports not set
	if config.Ports == nil {
		config = DefaultConfig()
		// Re-unmarshal to get user-provided values
		if err := json.Unmarshal(rawConfig, &config); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	}

	defaults := DefaultConfig()
	if config.SchemaDir == "" {
		config.SchemaDir = defaults.SchemaDir
	}
	if config.MaxResults == 0 {
		config.MaxResults = defaults.MaxResults
	}
	if config.StreamName == "" {
		config.StreamName = defaults.StreamName
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Component{
		name:       "graph-query",
		config:     config,
		natsClient: deps.NATSClient,
		logger:     deps.GetLogger(),
		registry:   schema.NewRegistry(),
		resources:  make(map[string]*cachedResource),
		bySchema:   make(map[string][]string),
	}, nil
}

// Initialize loads the schema registry from the configured directory.
func (c *Component) Initialize() error {
	count, err := schema.Load(c.registry, c.config.SchemaDir)
	if err != nil {
		return fmt.Errorf("load schemas from %s: %w", c.config.SchemaDir, err)
	}
	c.logger.Debug("Initialized graph-query", "schemas", count)
	return nil
}

// Start begins the query processor.
func (c *Component) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return fmt.Errorf("component already running")
	}

	if c.natsClient == nil {
		return fmt.Errorf("NATS client required")
	}

	// Start consuming validated resources to fill the cache
	resourceCtx, resourceCancel := context.WithCancel(ctx)
	c.cancelFuncs = append(c.cancelFuncs, resourceCancel)
	go c.consumeResourceUpdates(resourceCtx)

	// Start consuming query requests
	queryCtx, queryCancel := context.WithCancel(ctx)
	c.cancelFuncs = append(c.cancelFuncs, queryCancel)
	go c.handleQueryRequests(queryCtx)

	c.running = true
	c.startTime = time.Now()

	c.logger.Info("graph-query started",
		"stream", c.config.StreamName,
		"max_results", c.config.MaxResults)

	return nil
}

// consumeResourceUpdates consumes validated resources to fill the cache.
func (c *Component) consumeResourceUpdates(ctx context.Context) {
	handler := func(data []byte) {
		var payload graph.ResourcePayload
		if err := json.Unmarshal(data, &payload); err != nil {
			c.logger.Warn("Invalid resource payload", "error", err)
			return
		}
		if err := payload.Validate(); err != nil {
			c.logger.Warn("Invalid resource payload", "error", err)
			return
		}

		c.cacheResource(&payload)
	}

	if err := c.natsClient.ConsumeStream(ctx, c.config.StreamName, graph.ValidSubject, handler); err != nil {
		if ctx.Err() == nil {
			c.logger.Error("Failed to consume resource updates", "error", err)
		}
	}
}

// cacheResource adds or replaces a resource in the cache.
func (c *Component) cacheResource(payload *graph.ResourcePayload) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, known := c.resources[payload.ResourceID_]
	c.resources[payload.ResourceID_] = &cachedResource{
		ID:         payload.ResourceID_,
		Schema:     payload.SchemaName,
		Statements: payload.Statements,
		UpdatedAt:  payload.UpdatedAt,
	}
	if !known {
		c.bySchema[payload.SchemaName] = append(c.bySchema[payload.SchemaName], payload.ResourceID_)
	}
}

// handleQueryRequests handles incoming query requests.
func (c *Component) handleQueryRequests(ctx context.Context) {
	handler := func(data []byte) {
		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			c.logger.Warn("Invalid query request", "error", err)
			return
		}
		if req.RequestID == "" {
			c.logger.Warn("Query request without request_id")
			return
		}

		resp := c.executeQuery(&req)

		resultData, _ := json.Marshal(resp)
		if err := c.natsClient.PublishToStream(ctx, resultPrefix+req.RequestID, resultData); err != nil {
			c.logger.Warn("Failed to publish query result",
				"request_id", req.RequestID,
				"error", err)
		}
	}

	if err := c.natsClient.ConsumeStream(ctx, c.config.StreamName, requestSubject, handler); err != nil {
		if ctx.Err() == nil {
			c.logger.Error("Failed to consume query requests", "error", err)
		}
	}
}

// executeQuery executes a query and returns the response.
func (c *Component) executeQuery(req *Request) *Response {
	start := time.Now()

	c.mu.Lock()
	c.queriesProcessed++
	c.lastQuery = time.Now()
	c.mu.Unlock()

	c.mu.RLock()
	defer c.mu.RUnlock()

	maxResults := req.MaxResults
	if maxResults <= 0 || maxResults > c.config.MaxResults {
		maxResults = c.config.MaxResults
	}

	var resp *Response
	switch req.Type {
	case QueryResource:
		resp = c.queryResource(req)

	case QueryBrowse:
		resp = c.queryBrowse(req, maxResults)

	case QueryCompile:
		resp = c.queryCompile(req)

	case QuerySearch:
		resp = c.querySearch(req, maxResults)

	default:
		resp = NewErrorResponse(req.RequestID, fmt.Sprintf("unknown query type: %s", req.Type))
	}

	resp.QueryTime = time.Since(start)
	return resp
}

// visible resolves the request's schema and redacts its shape for the
// request's axis tokens under the given task.
func (c *Component) visible(req *Request, task string) (schema.Definition, shape.Shape, error) {
	def, ok := c.registry.Lookup(req.Schema)
	if !ok {
		return schema.Definition{}, nil, fmt.Errorf("unknown schema: %s", req.Schema)
	}
	s := shape.Redact(def.Shape, storage.AxisTask, task)
	s = shape.Redact(s, storage.AxisView, req.Views...)
	s = shape.Redact(s, storage.AxisMode, queryMode)
	s = shape.Redact(s, storage.AxisRole, req.Roles...)
	if shape.Fail(s) {
		return def, nil, fmt.Errorf("schema %s is not visible to this context", req.Schema)
	}
	return def, s, nil
}

// queryResource retrieves a single resource by ID.
func (c *Component) queryResource(req *Request) *Response {
	resp := NewResponse(req.RequestID)

	res, ok := c.resources[req.ResourceID]
	if !ok {
		resp.Success = false
		resp.Error = "resource not found"
		return resp
	}

	result := ResourceResult{ID: res.ID, Schema: res.Schema}
	if req.IncludeModel {
		result.Statements = res.Statements
	}

	resp.Resources = []ResourceResult{result}
	resp.TotalCount = 1
	return resp
}

// queryBrowse finds cached resources of a schema satisfying its visible
// shape, and always reports the compiled query for endpoint-backed callers.
func (c *Component) queryBrowse(req *Request, maxResults int) *Response {
	resp := NewResponse(req.RequestID)

	_, vis, err := c.visible(req, storage.TaskBrowse)
	if err != nil {
		return NewErrorResponse(req.RequestID, err.Error())
	}

	if len(req.Path) > 0 {
		anchor, err := sparql.Hook(vis, req.Path)
		if err != nil {
			return NewErrorResponse(req.RequestID, err.Error())
		}
		resp.Anchor = anchor.Var()
	}

	resp.Query = storage.BuildSelect(sparql.Compile(vis, sparql.Root, true), maxResults)

	ids := make([]string, len(c.bySchema[req.Schema]))
	copy(ids, c.bySchema[req.Schema])
	sort.Strings(ids)

	var matched int
	for _, id := range ids {
		res, ok := c.resources[id]
		if !ok {
			continue
		}
		trace, trimmed := shape.Validate(graph.ResourceIRI(id), vis, res.Statements)
		if !trace.Empty() {
			continue
		}
		matched++
		if len(resp.Resources) >= maxResults {
			continue
		}
		result := ResourceResult{ID: id, Schema: res.Schema}
		if req.IncludeModel {
			result.Statements = trimmed
		}
		resp.Resources = append(resp.Resources, result)
	}

	resp.TotalCount = matched
	return resp
}

// queryCompile compiles the schema's visible shape to query text without
// touching the cache.
func (c *Component) queryCompile(req *Request) *Response {
	resp := NewResponse(req.RequestID)

	_, vis, err := c.visible(req, storage.TaskBrowse)
	if err != nil {
		return NewErrorResponse(req.RequestID, err.Error())
	}

	if len(req.Path) > 0 {
		anchor, err := sparql.Hook(vis, req.Path)
		if err != nil {
			return NewErrorResponse(req.RequestID, err.Error())
		}
		resp.Anchor = anchor.Var()
	}

	resp.Query = storage.BuildSelect(sparql.Compile(vis, sparql.Root, true), req.MaxResults)
	return resp
}

// querySearch performs a text search across cached resource literals.
func (c *Component) querySearch(req *Request, maxResults int) *Response {
	resp := NewResponse(req.RequestID)

	searchText := strings.ToLower(req.SearchText)
	var matches []string

	for id, res := range c.resources {
		if strings.Contains(strings.ToLower(id), searchText) {
			matches = append(matches, id)
			continue
		}
		for _, st := range res.Statements {
			if st.Object.IsLiteral() && strings.Contains(strings.ToLower(st.Object.Text()), searchText) {
				matches = append(matches, id)
				break
			}
		}
	}
	sort.Strings(matches)

	for i, id := range matches {
		if i >= maxResults {
			break
		}
		res := c.resources[id]
		result := ResourceResult{ID: id, Schema: res.Schema}
		if req.IncludeModel {
			result.Statements = res.Statements
		}
		resp.Resources = append(resp.Resources, result)
	}

	resp.TotalCount = len(matches)
	return resp
}

// Query provides a direct query interface (for programmatic use).
func (c *Component) Query(req *Request) *Response {
	return c.executeQuery(req)
}

// GetResource retrieves a single cached resource by ID.
func (c *Component) GetResource(id string) (*ResourceResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	res, ok := c.resources[id]
	if !ok {
		return nil, false
	}

	return &ResourceResult{ID: res.ID, Schema: res.Schema, Statements: res.Statements}, true
}

// ResourceCount returns the number of cached resources.
func (c *Component) ResourceCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.resources)
}

// Stop gracefully stops the component.
func (c *Component) Stop(_ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil
	}

	// Cancel all background goroutines
	for _, cancel := range c.cancelFuncs {
		cancel()
	}
	c.cancelFuncs = nil

	c.running = false
	c.logger.Info("graph-query stopped",
		"queries", c.queriesProcessed,
		"resources", len(c.resources))

	return nil
}

// Discoverable interface implementation

// Meta returns component metadata.
func (c *Component) Meta() component.Metadata {
	return component.Metadata{
		Name:        "graph-query",
		Type:        "processor",
		Description: "Query processor for validated resources and compiled shape queries",
		Version:     "0.1.0",
	}
}

// InputPorts returns configured input port definitions.
func (c *Component) InputPorts() []component.Port {
	if c.config.Ports == nil || len(c.config.Ports.Inputs) == 0 {
		return []component.Port{}
	}

	ports := make([]component.Port, len(c.config.Ports.Inputs))
	for i, portDef := range c.config.Ports.Inputs {
		ports[i] = component.Port{
			Name:        portDef.Name,
			Direction:   component.DirectionInput,
			Required:    portDef.Required,
			Description: portDef.Description,
			Config: component.NATSPort{
				Subject: portDef.Subject,
			},
		}
	}
	return ports
}

// OutputPorts returns configured output port definitions.
func (c *Component) OutputPorts() []component.Port {
	if c.config.Ports == nil || len(c.config.Ports.Outputs) == 0 {
		return []component.Port{}
	}

	ports := make([]component.Port, len(c.config.Ports.Outputs))
	for i, portDef := range c.config.Ports.Outputs {
		ports[i] = component.Port{
			Name:        portDef.Name,
			Direction:   component.DirectionOutput,
			Required:    portDef.Required,
			Description: portDef.Description,
			Config: component.NATSPort{
				Subject: portDef.Subject,
			},
		}
	}
	return ports
}

// ConfigSchema returns the configuration schema.
func (c *Component) ConfigSchema() component.ConfigSchema {
	return graphQuerySchema
}

// Health returns the current health status.
func (c *Component) Health() component.HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return component.HealthStatus{
		Healthy:    c.running,
		LastCheck:  time.Now(),
		ErrorCount: 0,
		Uptime:     time.Since(c.startTime),
		Status:     c.getStatus(),
	}
}

// getStatus returns a status string.
func (c *Component) getStatus() string {
	if c.running {
		return "running"
	}
	return "stopped"
}

// DataFlow returns current data flow metrics.
func (c *Component) DataFlow() component.FlowMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return component.FlowMetrics{
		MessagesPerSecond: 0,
		BytesPerSecond:    0,
		ErrorRate:         0,
		LastActivity:      c.lastQuery,
	}
}
