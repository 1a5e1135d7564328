// Package shapevalidator provides a JetStream processor that validates
// ingested resources against their schema's shape. It consumes resource
// models from the ingest subject, resolves the shape visible to the ingest
// context, and publishes trimmed models for valid resources or validation
// reports for rejected ones.
package shapevalidator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360studio/semstreams/component"
	"github.com/c360studio/semstreams/natsclient"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360studio/semlink/graph"
	"github.com/c360studio/semlink/schema"
	"github.com/c360studio/semlink/shape"
	"github.com/c360studio/semlink/storage"
)

// ackWait bounds how long one validation may hold a message.
const ackWait = 30 * time.Second

// Component implements the shape-validator processor.
type Component struct {
	name       string
	config     Config
	natsClient *natsclient.Client
	logger     *slog.Logger
	registry   *schema.Registry

	ingestSubject  string
	validSubject   string
	invalidSubject string

	// JetStream consumer state.
	consumer jetstream.Consumer
	watcher  *schema.Watcher

	// Lifecycle.
	running   bool
	startTime time.Time
	mu        sync.RWMutex
	cancel    context.CancelFunc

	// Metrics.
	resourcesSeen  atomic.Int64
	passed         atomic.Int64
	rejected       atomic.Int64
	errorsCount    atomic.Int64
	lastActivityMu sync.RWMutex
	lastActivity   time.Time
}

// NewComponent constructs a shape-validator Component from raw JSON config
// and semstreams dependencies.
func NewComponent(rawConfig json.RawMessage, deps component.Dependencies) (component.Discoverable, error) {
	var config Config
	if err := json.Unmarshal(rawConfig, &config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Apply defaults for any unset fields.
	defaults := DefaultConfig()
	if config.StreamName == "" {
		config.StreamName = defaults.StreamName
	}
	if config.ConsumerName == "" {
		config.ConsumerName = defaults.ConsumerName
	}
	if config.SchemaDir == "" {
		config.SchemaDir = defaults.SchemaDir
	}
	if config.Task == "" {
		config.Task = defaults.Task
	}
	if config.Ports == nil {
		config.Ports = defaults.Ports
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	// Resolve subjects from port definitions.
	ingestSubject := graph.IngestSubject
	validSubject := graph.ValidSubject
	invalidSubject := graph.InvalidSubject
	if config.Ports != nil {
		if len(config.Ports.Inputs) > 0 {
			ingestSubject = config.Ports.Inputs[0].Subject
		}
		if len(config.Ports.Outputs) > 0 {
			validSubject = config.Ports.Outputs[0].Subject
		}
		if len(config.Ports.Outputs) > 1 {
			invalidSubject = config.Ports.Outputs[1].Subject
		}
	}

	return &Component{
		name:           "shape-validator",
		config:         config,
		natsClient:     deps.NATSClient,
		logger:         deps.GetLogger(),
		registry:       schema.NewRegistry(),
		ingestSubject:  ingestSubject,
		validSubject:   validSubject,
		invalidSubject: invalidSubject,
	}, nil
}

// Initialize loads the schema registry from the configured directory.
func (c *Component) Initialize() error {
	count, err := schema.Load(c.registry, c.config.SchemaDir)
	if err != nil {
		return fmt.Errorf("load schemas from %s: %w", c.config.SchemaDir, err)
	}
	c.logger.Debug("Initialized shape-validator",
		"stream", c.config.StreamName,
		"consumer", c.config.ConsumerName,
		"schemas", count)
	return nil
}

// Start begins consuming resource models from the ingest subject.
func (c *Component) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("component already running")
	}
	if c.natsClient == nil {
		c.mu.Unlock()
		return fmt.Errorf("NATS client required")
	}

	c.running = true
	c.startTime = time.Now()

	subCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	js, err := c.natsClient.JetStream()
	if err != nil {
		c.rollbackStart(cancel)
		return fmt.Errorf("get jetstream: %w", err)
	}

	stream, err := js.Stream(subCtx, c.config.StreamName)
	if err != nil {
		c.rollbackStart(cancel)
		return fmt.Errorf("get stream %s: %w", c.config.StreamName, err)
	}

	consumerConfig := jetstream.ConsumerConfig{
		Durable:       c.config.ConsumerName,
		FilterSubject: c.ingestSubject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       ackWait,
		MaxDeliver:    3,
	}

	consumer, err := stream.CreateOrUpdateConsumer(subCtx, consumerConfig)
	if err != nil {
		c.rollbackStart(cancel)
		return fmt.Errorf("create consumer: %w", err)
	}
	c.consumer = consumer

	if c.config.WatchSchemas {
		watcher, err := schema.NewWatcher(c.registry, c.config.SchemaDir, 0, c.logger)
		if err != nil {
			c.rollbackStart(cancel)
			return fmt.Errorf("create schema watcher: %w", err)
		}
		if err := watcher.Start(subCtx); err != nil {
			c.rollbackStart(cancel)
			return fmt.Errorf("start schema watcher: %w", err)
		}
		c.watcher = watcher
	}

	go c.consumeLoop(subCtx)

	c.logger.Info("shape-validator started",
		"stream", c.config.StreamName,
		"consumer", c.config.ConsumerName,
		"subject", c.ingestSubject,
		"task", c.config.task(),
		"roles", c.config.Roles)

	return nil
}

func (c *Component) rollbackStart(cancel context.CancelFunc) {
	c.mu.Lock()
	c.running = false
	c.cancel = nil
	c.mu.Unlock()
	cancel()
}

// consumeLoop fetches messages from the JetStream consumer in a tight loop
// until the context is cancelled.
func (c *Component) consumeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msgs, err := c.consumer.Fetch(1, jetstream.FetchMaxWait(5*time.Second))
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Debug("Fetch timeout or error", "error", err)
			continue
		}

		for msg := range msgs.Messages() {
			c.handleMessage(ctx, msg)
		}

		if msgs.Error() != nil && msgs.Error() != context.DeadlineExceeded {
			c.logger.Warn("Message fetch error", "error", msgs.Error())
		}
	}
}

// handleMessage validates a single ingested resource model.
func (c *Component) handleMessage(ctx context.Context, msg jetstream.Msg) {
	c.resourcesSeen.Add(1)
	c.updateLastActivity()

	var payload graph.ResourcePayload
	if err := json.Unmarshal(msg.Data(), &payload); err != nil {
		c.errorsCount.Add(1)
		c.logger.Error("Failed to parse resource payload", "error", err)
		if nakErr := msg.Nak(); nakErr != nil {
			c.logger.Warn("Failed to NAK message", "error", nakErr)
		}
		return
	}

	if err := payload.Validate(); err != nil {
		c.logger.Error("Invalid resource payload", "error", err)
		// ACK invalid messages, they will not succeed on retry.
		if ackErr := msg.Ack(); ackErr != nil {
			c.logger.Warn("Failed to ACK invalid message", "error", ackErr)
		}
		return
	}

	resourcesProcessed.WithLabelValues(payload.SchemaName).Inc()

	report := c.check(&payload)
	if report == nil {
		c.passed.Add(1)
		resourcesValid.WithLabelValues(payload.SchemaName).Inc()
		if err := c.publishValid(ctx, &payload); err != nil {
			c.errorsCount.Add(1)
			c.logger.Error("Failed to publish valid resource",
				"resource", payload.ResourceID_,
				"error", err)
			if nakErr := msg.Nak(); nakErr != nil {
				c.logger.Warn("Failed to NAK message", "error", nakErr)
			}
			return
		}
	} else {
		c.rejected.Add(1)
		resourcesInvalid.WithLabelValues(payload.SchemaName).Inc()
		if err := c.publishReport(ctx, report); err != nil {
			c.errorsCount.Add(1)
			c.logger.Error("Failed to publish validation report",
				"resource", payload.ResourceID_,
				"error", err)
			if nakErr := msg.Nak(); nakErr != nil {
				c.logger.Warn("Failed to NAK message", "error", nakErr)
			}
			return
		}
	}

	if ackErr := msg.Ack(); ackErr != nil {
		c.logger.Warn("Failed to ACK message", "error", ackErr)
	}

	c.logger.Info("Resource validated",
		"resource", payload.ResourceID_,
		"schema", payload.SchemaName,
		"valid", report == nil)
}

// check validates the payload's model against the shape visible to the
// ingest context. A nil report means the resource passed; on pass, the
// payload's statements are replaced by the trimmed model.
func (c *Component) check(payload *graph.ResourcePayload) *ValidationReport {
	def, ok := c.registry.Lookup(payload.SchemaName)
	if !ok {
		return &ValidationReport{
			ResourceID_: payload.ResourceID_,
			SchemaName:  payload.SchemaName,
			Reason:      ReasonUnknownSchema,
			CheckedAt:   time.Now().UTC(),
		}
	}

	visible := shape.Redact(def.Shape, storage.AxisTask, c.config.task())
	visible = shape.Redact(visible, storage.AxisView)
	visible = shape.Redact(visible, storage.AxisMode)
	visible = shape.Redact(visible, storage.AxisRole, c.config.Roles...)
	if shape.Fail(visible) {
		return &ValidationReport{
			ResourceID_: payload.ResourceID_,
			SchemaName:  payload.SchemaName,
			Reason:      ReasonNotVisible,
			CheckedAt:   time.Now().UTC(),
		}
	}

	subject := graph.ResourceIRI(payload.ResourceID_)

	start := time.Now()
	trace, trimmed := shape.Validate(subject, visible, payload.Statements)
	validationDuration.WithLabelValues(payload.SchemaName).Observe(time.Since(start).Seconds())

	if !trace.Empty() {
		return &ValidationReport{
			ResourceID_: payload.ResourceID_,
			SchemaName:  payload.SchemaName,
			Trace:       trace,
			CheckedAt:   time.Now().UTC(),
		}
	}

	payload.Statements = trimmed
	return nil
}

// publishValid publishes the trimmed model to the valid subject.
func (c *Component) publishValid(ctx context.Context, payload *graph.ResourcePayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	if err := c.natsClient.PublishToStream(ctx, c.validSubject, data); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// publishReport publishes a validation report to the invalid subject.
func (c *Component) publishReport(ctx context.Context, report *ValidationReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := c.natsClient.PublishToStream(ctx, c.invalidSubject, data); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// Stop gracefully stops the component.
func (c *Component) Stop(_ time.Duration) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}

	// Copy cancel function and clear state before releasing lock
	cancel := c.cancel
	c.running = false
	c.cancel = nil
	c.mu.Unlock()

	// Cancel context after releasing lock to avoid potential deadlock
	if cancel != nil {
		cancel()
	}

	if c.watcher != nil {
		if err := c.watcher.Stop(); err != nil {
			c.logger.Warn("Failed to stop schema watcher", "error", err)
		}
		c.watcher = nil
	}

	c.logger.Info("shape-validator stopped",
		"resources_seen", c.resourcesSeen.Load(),
		"passed", c.passed.Load(),
		"rejected", c.rejected.Load(),
		"errors", c.errorsCount.Load())

	return nil
}

// Meta returns component metadata.
func (c *Component) Meta() component.Metadata {
	return component.Metadata{
		Name:        "shape-validator",
		Type:        "processor",
		Description: "Validates ingested resources against their schema's shape",
		Version:     "0.1.0",
	}
}

// InputPorts returns the configured input port definitions.
func (c *Component) InputPorts() []component.Port {
	if c.config.Ports == nil {
		return []component.Port{}
	}
	ports := make([]component.Port, len(c.config.Ports.Inputs))
	for i, def := range c.config.Ports.Inputs {
		ports[i] = buildPort(def, component.DirectionInput)
	}
	return ports
}

// OutputPorts returns the configured output port definitions.
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
	return shapeValidatorSchema
}

// Health returns the current health status.
func (c *Component) Health() component.HealthStatus {
	c.mu.RLock()
	running := c.running
	startTime := c.startTime
	c.mu.RUnlock()

	status := "stopped"
	if running {
		status = "running"
	}

	return component.HealthStatus{
		Healthy:    running,
		LastCheck:  time.Now(),
		ErrorCount: int(c.errorsCount.Load()),
		Uptime:     time.Since(startTime),
		Status:     status,
	}
}

// DataFlow returns current data flow metrics.
func (c *Component) DataFlow() component.FlowMetrics {
	return component.FlowMetrics{
		MessagesPerSecond: 0,
		BytesPerSecond:    0,
		ErrorRate:         0,
		LastActivity:      c.getLastActivity(),
	}
}

func (c *Component) updateLastActivity() {
	c.lastActivityMu.Lock()
	c.lastActivity = time.Now()
	c.lastActivityMu.Unlock()
}

func (c *Component) getLastActivity() time.Time {
	c.lastActivityMu.RLock()
	defer c.lastActivityMu.RUnlock()
	return c.lastActivity
}
