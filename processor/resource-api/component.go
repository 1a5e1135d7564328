// Package resourceapi provides HTTP endpoints for shape-managed resources.
// Every request resolves its schema's shape for the caller's context before
// any data moves: documents are validated against the visible shape on
// write, and reads return only the statements that shape entails.
package resourceapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360studio/semstreams/component"

	"github.com/c360studio/semlink/schema"
	"github.com/c360studio/semlink/storage"
)

// Component implements the resource-api component. It serves the resource
// CRUD endpoints backed by the shape pipeline and the JetStream KV store.
type Component struct {
	name     string
	config   Config
	deps     component.Dependencies
	logger   *slog.Logger
	registry *schema.Registry

	// Built during Start; nil until the component is running.
	engineMu sync.RWMutex
	engine   *storage.Engine
	watcher  *schema.Watcher

	// Lifecycle state machine
	// States: 0=stopped, 1=starting, 2=running, 3=stopping
	state     atomic.Int32
	startTime time.Time
	mu        sync.RWMutex
	cancel    context.CancelFunc

	requestsServed atomic.Int64
	requestErrors  atomic.Int64
	lastActivityMu sync.RWMutex
	lastActivity   time.Time
}

const (
	stateStopped  = 0
	stateStarting = 1
	stateRunning  = 2
	stateStopping = 3
)

// NewComponent constructs a resource-api Component from raw JSON config and deps.
func NewComponent(rawConfig json.RawMessage, deps component.Dependencies) (component.Discoverable, error) {
	config := DefaultConfig()
	if len(rawConfig) > 0 {
		if err := json.Unmarshal(rawConfig, &config); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Component{
		name:     "resource-api",
		config:   config,
		deps:     deps,
		logger:   deps.GetLogger(),
		registry: schema.NewRegistry(),
	}, nil
}

// Initialize loads the schema registry from the configured directory.
func (c *Component) Initialize() error {
	dir := c.config.schemaDir()
	count, err := schema.Load(c.registry, dir)
	if err != nil {
		return fmt.Errorf("load schemas from %s: %w", dir, err)
	}
	c.logger.Info("Loaded schemas", "dir", dir, "count", count)
	return nil
}

// Start builds the store and engine on the NATS connection and begins
// serving. The schema watcher starts here too when hot reload is enabled.
func (c *Component) Start(ctx context.Context) error {
	if !c.state.CompareAndSwap(stateStopped, stateStarting) {
		current := c.state.Load()
		if current == stateRunning || current == stateStarting {
			return fmt.Errorf("component already running or starting")
		}
		return fmt.Errorf("component in invalid state: %d", current)
	}

	defer func() {
		if c.state.Load() == stateStarting {
			c.state.Store(stateStopped)
		}
	}()

	if c.deps.NATSClient == nil {
		return fmt.Errorf("resource-api requires a NATS client")
	}

	js, err := c.deps.NATSClient.JetStream()
	if err != nil {
		return fmt.Errorf("get jetstream: %w", err)
	}

	store, err := storage.NewResourceStore(ctx, js)
	if err != nil {
		return fmt.Errorf("open resource store: %w", err)
	}

	var sparqlClient *storage.SPARQLClient
	if c.config.SPARQLEndpoint != "" {
		sparqlClient = storage.NewSPARQLClient(c.config.SPARQLEndpoint, 0)
	}

	engine, err := storage.NewEngine(storage.EngineConfig{
		Registry: c.registry,
		Store:    store,
		SPARQL:   sparqlClient,
		NATS:     c.deps.NATSClient,
		Logger:   c.logger,
	})
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)

	if c.config.WatchSchemas {
		watcher, err := schema.NewWatcher(c.registry, c.config.schemaDir(), 0, c.logger)
		if err != nil {
			cancel()
			return fmt.Errorf("create schema watcher: %w", err)
		}
		if err := watcher.Start(runCtx); err != nil {
			cancel()
			return fmt.Errorf("start schema watcher: %w", err)
		}
		c.watcher = watcher
	}

	c.engineMu.Lock()
	c.engine = engine
	c.engineMu.Unlock()

	c.mu.Lock()
	c.cancel = cancel
	c.startTime = time.Now()
	c.mu.Unlock()

	c.state.Store(stateRunning)
	c.logger.Info("resource-api started",
		"schemas", c.registry.Len(),
		"prefix", c.config.prefix())
	return nil
}

// Stop gracefully stops the component.
func (c *Component) Stop(_ time.Duration) error {
	if !c.state.CompareAndSwap(stateRunning, stateStopping) {
		current := c.state.Load()
		if current == stateStopped || current == stateStopping {
			return nil
		}
		return fmt.Errorf("component in unexpected state: %d", current)
	}

	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	if c.watcher != nil {
		if err := c.watcher.Stop(); err != nil {
			c.logger.Warn("Failed to stop schema watcher", "error", err)
		}
		c.watcher = nil
	}

	c.engineMu.Lock()
	c.engine = nil
	c.engineMu.Unlock()

	c.state.Store(stateStopped)
	c.logger.Info("resource-api stopped")
	return nil
}

// getEngine returns the running engine, or nil before Start.
func (c *Component) getEngine() *storage.Engine {
	c.engineMu.RLock()
	defer c.engineMu.RUnlock()
	return c.engine
}

// Meta returns component metadata.
func (c *Component) Meta() component.Metadata {
	return component.Metadata{
		Name:        "resource-api",
		Type:        "processor",
		Description: "HTTP endpoints for shape-validated resource CRUD",
		Version:     "0.1.0",
	}
}

// InputPorts returns an empty port list. Requests arrive over HTTP.
func (c *Component) InputPorts() []component.Port {
	return []component.Port{}
}

// OutputPorts declares the ingest stream writes go to.
func (c *Component) OutputPorts() []component.Port {
	if c.config.Ports == nil {
		return []component.Port{}
	}
	ports := make([]component.Port, len(c.config.Ports.Outputs))
	for i, def := range c.config.Ports.Outputs {
		ports[i] = buildPort(def, component.DirectionOutput)
	}
	return ports
}

// buildPort creates a component.Port from a PortDefinition, using
// JetStreamPort for jetstream-type ports and NATSPort for core NATS ports.
func buildPort(def component.PortDefinition, direction component.Direction) component.Port {
	port := component.Port{
		Name:        def.Name,
		Direction:   direction,
		Required:    def.Required,
		Description: def.Description,
	}
	if def.Type == "jetstream" {
		port.Config = component.JetStreamPort{
			StreamName: def.StreamName,
			Subjects:   []string{def.Subject},
		}
	} else {
		port.Config = component.NATSPort{
			Subject: def.Subject,
		}
	}
	return port
}

// ConfigSchema returns the configuration schema.
func (c *Component) ConfigSchema() component.ConfigSchema {
	return resourceAPISchema
}

// Health returns the current health status.
func (c *Component) Health() component.HealthStatus {
	state := c.state.Load()
	running := state == stateRunning

	c.mu.RLock()
	startTime := c.startTime
	c.mu.RUnlock()

	status := "stopped"
	switch state {
	case stateStarting:
		status = "starting"
	case stateRunning:
		status = "running"
	case stateStopping:
		status = "stopping"
	}

	return component.HealthStatus{
		Healthy:    running,
		LastCheck:  time.Now(),
		ErrorCount: int(c.requestErrors.Load()),
		Uptime:     time.Since(startTime),
		Status:     status,
	}
}

// DataFlow returns current data flow metrics.
func (c *Component) DataFlow() component.FlowMetrics {
	served := c.requestsServed.Load()
	failed := c.requestErrors.Load()

	var errorRate float64
	if served > 0 {
		errorRate = float64(failed) / float64(served)
	}

	return component.FlowMetrics{
		MessagesPerSecond: 0,
		BytesPerSecond:    0,
		ErrorRate:         errorRate,
		LastActivity:      c.getLastActivity(),
	}
}

func (c *Component) touchActivity() {
	c.lastActivityMu.Lock()
	c.lastActivity = time.Now()
	c.lastActivityMu.Unlock()
}

func (c *Component) getLastActivity() time.Time {
	c.lastActivityMu.RLock()
	defer c.lastActivityMu.RUnlock()
	return c.lastActivity
}
