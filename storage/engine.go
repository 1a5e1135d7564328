package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/c360studio/semstreams/natsclient"

	"github.com/c360studio/semlink/graph"
	"github.com/c360studio/semlink/schema"
	"github.com/c360studio/semlink/shape"
	"github.com/c360studio/semlink/shape/sparql"
	"github.com/c360studio/semlink/vocabulary/rdf"
)

// Guard axes the platform resolves on every request.
const (
	AxisTask = "task"
	AxisView = "view"
	AxisMode = "mode"
	AxisRole = "role"
)

// Task tokens, one per resource operation.
const (
	TaskCreate   = "create"
	TaskRetrieve = "retrieve"
	TaskUpdate   = "update"
	TaskDelete   = "delete"
	TaskBrowse   = "browse"
)

// Axes carries the request's guard tokens, one set per axis. The task
// token is set by the operation itself; views, modes, and roles come from
// the caller. Guards on axes with no matching token resolve closed.
type Axes struct {
	Task  string
	Views []string
	Modes []string
	Roles []string
}

// resolve applies every axis to the shape in a fixed order. The result
// contains no guards.
func (a Axes) resolve(s shape.Shape) shape.Shape {
	s = shape.Redact(s, AxisTask, a.Task)
	s = shape.Redact(s, AxisView, a.Views...)
	s = shape.Redact(s, AxisMode, a.Modes...)
	s = shape.Redact(s, AxisRole, a.Roles...)
	return s
}

// Store is the persistence surface the engine drives. *ResourceStore is
// the JetStream implementation.
type Store interface {
	Create(ctx context.Context, id ResourceID, model graph.Model) (*Resource, error)
	Get(ctx context.Context, id ResourceID) (*Resource, error)
	Put(ctx context.Context, id ResourceID, model graph.Model) (*Resource, error)
	Delete(ctx context.Context, id ResourceID) error
	List(ctx context.Context, schema string) ([]ResourceID, error)
}

// ValidationError reports a document rejected by its schema's shape.
type ValidationError struct {
	Schema string
	Trace  *shape.Trace
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("document does not satisfy schema %q", e.Schema)
}

// EngineConfig configures an Engine. Registry and Store are required;
// SPARQL and NATS are optional so offline tools can run without them.
type EngineConfig struct {
	Registry *schema.Registry
	Store    Store
	SPARQL   *SPARQLClient
	NATS     *natsclient.Client
	Logger   *slog.Logger
}

// Engine drives the shape pipeline for resource operations: resolve the
// schema, redact for the request context, then validate and persist or
// compile and query. Contexts whose redacted shape is the constant fail
// are refused before any I/O.
type Engine struct {
	registry *schema.Registry
	store    Store
	sparql   *SPARQLClient
	nats     *natsclient.Client
	logger   *slog.Logger
}

// NewEngine creates an engine.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Registry == nil {
		return nil, errors.New("engine requires a schema registry")
	}
	if cfg.Store == nil {
		return nil, errors.New("engine requires a resource store")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		registry: cfg.Registry,
		store:    cfg.Store,
		sparql:   cfg.SPARQL,
		nats:     cfg.NATS,
		logger:   logger,
	}, nil
}

// visible resolves the schema and redacts its shape for the request. The
// constant fail means the context may not touch this resource kind at all.
func (e *Engine) visible(schemaName string, axes Axes) (schema.Definition, shape.Shape, error) {
	def, ok := e.registry.Lookup(schemaName)
	if !ok {
		return schema.Definition{}, nil, fmt.Errorf("%w: %s", ErrUnknownSchema, schemaName)
	}
	s := axes.resolve(def.Shape)
	if shape.Fail(s) {
		return def, nil, fmt.Errorf("%w: schema %s", ErrForbidden, schemaName)
	}
	return def, s, nil
}

// Create validates the document against the redacted shape and persists
// the trimmed model under a freshly minted id. The document focus is
// rewritten to the resource subject before validation.
func (e *Engine) Create(ctx context.Context, schemaName string, focus graph.Value, doc graph.Model, axes Axes) (*Resource, error) {
	axes.Task = TaskCreate
	def, visible, err := e.visible(schemaName, axes)
	if err != nil {
		return nil, err
	}

	id := NewResourceID(schemaName)
	subject := id.Subject()
	model := ensureClass(refocus(doc, focus, subject), subject, def.Class)

	trace, trimmed := shape.Validate(subject, visible, model)
	if !trace.Empty() {
		return nil, &ValidationError{Schema: schemaName, Trace: trace}
	}

	res, err := e.store.Create(ctx, id, trimmed)
	if err != nil {
		return nil, err
	}
	e.publish(ctx, res)
	return res, nil
}

// Retrieve loads a resource and validates it against the redacted shape,
// returning the trimmed model. Statements the context's shape does not
// entail are not returned.
func (e *Engine) Retrieve(ctx context.Context, id ResourceID, axes Axes) (*Resource, error) {
	axes.Task = TaskRetrieve
	_, visible, err := e.visible(id.Schema, axes)
	if err != nil {
		return nil, err
	}

	res, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	trace, trimmed := shape.Validate(id.Subject(), visible, res.Statements)
	if !trace.Empty() {
		return nil, &ValidationError{Schema: id.Schema, Trace: trace}
	}
	res.Statements = trimmed
	return res, nil
}

// Update replaces an existing resource's model after validating the
// document against the redacted shape.
func (e *Engine) Update(ctx context.Context, id ResourceID, focus graph.Value, doc graph.Model, axes Axes) (*Resource, error) {
	axes.Task = TaskUpdate
	def, visible, err := e.visible(id.Schema, axes)
	if err != nil {
		return nil, err
	}

	subject := id.Subject()
	model := ensureClass(refocus(doc, focus, subject), subject, def.Class)

	trace, trimmed := shape.Validate(subject, visible, model)
	if !trace.Empty() {
		return nil, &ValidationError{Schema: id.Schema, Trace: trace}
	}

	res, err := e.store.Put(ctx, id, trimmed)
	if err != nil {
		return nil, err
	}
	e.publish(ctx, res)
	return res, nil
}

// Delete removes a resource.
func (e *Engine) Delete(ctx context.Context, id ResourceID, axes Axes) error {
	axes.Task = TaskDelete
	if _, _, err := e.visible(id.Schema, axes); err != nil {
		return err
	}
	return e.store.Delete(ctx, id)
}

// BrowseResult lists a schema's stored resources together with the filter
// query compiled from the redacted shape.
type BrowseResult struct {
	IDs     []ResourceID
	Query   string
	Matches []graph.Value
}

// BrowseOptions refine a browse beyond the schema's own constraints. Sort
// and Filter are edge paths into the visible shape ("^" prefixes an
// inverse step); steps the shape does not declare are caller errors
// wrapping sparql.ErrUnknownStep.
type BrowseOptions struct {
	// Sort orders endpoint matches by the value bound at this path.
	Sort []string

	// Filter keeps only endpoint matches with a value bound at this path.
	Filter []string

	// Limit caps both listings; zero means no cap.
	Limit int
}

// Browse lists the schema's resources and compiles its filter query. When
// a SPARQL endpoint is configured the query also runs there, returning the
// matching subjects.
func (e *Engine) Browse(ctx context.Context, schemaName string, axes Axes, opts BrowseOptions) (*BrowseResult, error) {
	axes.Task = TaskBrowse
	_, visible, err := e.visible(schemaName, axes)
	if err != nil {
		return nil, err
	}

	fragment := sparql.Compile(visible, sparql.Root, true)
	if len(opts.Filter) > 0 {
		anchor, err := sparql.Hook(visible, opts.Filter)
		if err != nil {
			return nil, fmt.Errorf("filter: %w", err)
		}
		fragment += "FILTER ( bound(" + anchor.Var() + ") )\n"
	}

	query := BuildSelect(fragment, opts.Limit)
	if len(opts.Sort) > 0 {
		anchor, err := sparql.Hook(visible, opts.Sort)
		if err != nil {
			return nil, fmt.Errorf("sort: %w", err)
		}
		query = BuildSelectOrdered(fragment, anchor.Var(), opts.Limit)
	}
	result := &BrowseResult{Query: query}

	if e.sparql != nil {
		rows, err := e.sparql.Select(ctx, result.Query)
		if err != nil {
			return nil, fmt.Errorf("endpoint browse: %w", err)
		}
		// Projecting a sort variable can repeat a subject across rows.
		seen := make(map[graph.Value]bool, len(rows))
		for _, row := range rows {
			if v, ok := row[string(sparql.Root)]; ok && v.IsResource() && !seen[v] {
				seen[v] = true
				result.Matches = append(result.Matches, v)
			}
		}
	}

	ids, err := e.store.List(ctx, schemaName)
	if err != nil {
		return nil, err
	}
	if opts.Limit > 0 && len(ids) > opts.Limit {
		ids = ids[:opts.Limit]
	}
	result.IDs = ids
	return result, nil
}

// publish sends the stored model to the ingest stream. The write already
// happened, so failures are logged rather than returned.
func (e *Engine) publish(ctx context.Context, res *Resource) {
	if err := graph.PublishResource(ctx, e.nats, res.ID.String(), res.ID.Schema, res.Statements); err != nil {
		e.logger.Warn("Failed to publish resource to ingest stream",
			"resource", res.ID.String(),
			"error", err)
	}
}

// refocus rewrites the document focus to the resource subject in both
// statement positions.
func refocus(doc graph.Model, from, to graph.Value) graph.Model {
	if from == to || from.IsZero() {
		return doc
	}
	out := make(graph.Model, 0, len(doc))
	for _, st := range doc {
		if st.Subject == from {
			st.Subject = to
		}
		if st.Object == from {
			st.Object = to
		}
		out = append(out, st)
	}
	return out
}

// ensureClass asserts the schema's class on the subject when the document
// does not already carry it.
func ensureClass(model graph.Model, subject graph.Value, class string) graph.Model {
	if class == "" {
		return model
	}
	st := graph.NewStatement(subject, rdf.Type, graph.NewIRI(class))
	if model.Contains(st) {
		return model
	}
	out := make(graph.Model, len(model), len(model)+1)
	copy(out, model)
	return append(out, st)
}
