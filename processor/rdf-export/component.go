// Package rdfexport provides a streaming output component that subscribes
// to validated resource models and serializes them to RDF formats.
package rdfexport

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

	"github.com/c360studio/semlink/export"
	"github.com/c360studio/semlink/graph"
)

// Component implements the rdf-export output processor.
type Component struct {
	name       string
	config     Config
	natsClient *natsclient.Client
	logger     *slog.Logger

	format export.Format

	// Resolved subjects from port config
	inputSubject  string
	inputStream   string
	outputSubject string

	// Lifecycle
	running   bool
	startTime time.Time
	mu        sync.RWMutex
	cancel    context.CancelFunc

	// Metrics
	messagesProcessed atomic.Int64
	serializeErrors   atomic.Int64
	publishErrors     atomic.Int64
	lastActivityMu    sync.RWMutex
	lastActivity      time.Time
}

// NewComponent creates a new rdf-export output component.
func NewComponent(rawConfig json.RawMessage, deps component.Dependencies) (component.Discoverable, error) {
	var config Config
	if err := json.Unmarshal(rawConfig, &config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if config.Ports == nil {
		config = DefaultConfig()
		if err := json.Unmarshal(rawConfig, &config); err != nil {
			return nil, fmt.Errorf("unmarshal config with defaults: %w", err)
		}
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	// Resolve subjects from port definitions
	inputSubject := graph.ValidSubject
	inputStream := "GRAPH"
	outputSubject := "graph.export.rdf"

	if config.Ports != nil {
		if len(config.Ports.Inputs) > 0 {
			inputSubject = config.Ports.Inputs[0].Subject
			inputStream = config.Ports.Inputs[0].StreamName
		}
		if len(config.Ports.Outputs) > 0 {
			outputSubject = config.Ports.Outputs[0].Subject
		}
	}

	return &Component{
		name:          "rdf-export",
		config:        config,
		natsClient:    deps.NATSClient,
		logger:        deps.GetLogger(),
		format:        config.GetFormat(),
		inputSubject:  inputSubject,
		inputStream:   inputStream,
		outputSubject: outputSubject,
	}, nil
}

// Initialize prepares the component.
func (c *Component) Initialize() error {
	return nil
}

// Start begins consuming validated resources and producing RDF output.
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

	// Set running state while holding lock to prevent race condition
	c.running = true
	c.startTime = time.Now()

	consumeCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	consumerCfg := natsclient.StreamConsumerConfig{
		StreamName:    c.inputStream,
		ConsumerName:  "rdf-export",
		FilterSubject: c.inputSubject,
		DeliverPolicy: "new",
		AckPolicy:     "explicit",
		MaxDeliver:    3,
		AckWait:       10 * time.Second,
	}

	err := c.natsClient.ConsumeStreamWithConfig(consumeCtx, consumerCfg, c.handleMessage)
	if err != nil {
		// Rollback running state on failure
		c.mu.Lock()
		c.running = false
		c.cancel = nil
		c.mu.Unlock()
		cancel()
		return fmt.Errorf("start consumer: %w", err)
	}

	c.logger.Info("rdf-export started",
		"format", c.format,
		"input", c.inputSubject,
		"output", c.outputSubject)

	return nil
}

// handleMessage serializes a single validated resource model.
func (c *Component) handleMessage(ctx context.Context, msg jetstream.Msg) {
	var resource graph.ResourcePayload
	if err := json.Unmarshal(msg.Data(), &resource); err != nil {
		c.logger.Warn("Failed to unmarshal resource payload",
			"error", err,
			"subject", msg.Subject())
		_ = msg.Nak()
		return
	}

	if err := resource.Validate(); err != nil {
		c.logger.Warn("Invalid resource payload",
			"error", err,
			"subject", msg.Subject())
		// ACK invalid payloads, they will not succeed on retry.
		_ = msg.Ack()
		return
	}

	content, err := export.Write(resource.Statements, c.format)
	if err != nil {
		c.logger.Warn("Failed to serialize RDF",
			"resource", resource.ResourceID_,
			"format", c.format,
			"error", err)
		c.serializeErrors.Add(1)
		_ = msg.Nak()
		return
	}

	out := Payload{
		ResourceID: resource.ResourceID_,
		SchemaName: resource.SchemaName,
		Format:     string(c.format),
		Content:    content,
	}
	data, err := json.Marshal(&out)
	if err != nil {
		c.logger.Warn("Failed to marshal export payload",
			"resource", resource.ResourceID_,
			"error", err)
		c.serializeErrors.Add(1)
		_ = msg.Nak()
		return
	}

	// Publish per schema so consumers can filter one resource kind.
	subject := c.outputSubject + "." + resource.SchemaName
	if err := c.natsClient.PublishToStream(ctx, subject, data); err != nil {
		c.logger.Warn("Failed to publish RDF output",
			"resource", resource.ResourceID_,
			"subject", subject,
			"error", err)
		c.publishErrors.Add(1)
		_ = msg.Nak()
		return
	}

	_ = msg.Ack()
	c.messagesProcessed.Add(1)
	c.updateLastActivity()

	c.logger.Debug("Exported resource to RDF",
		"resource", resource.ResourceID_,
		"schema", resource.SchemaName,
		"format", c.format,
		"output_bytes", len(content))
}

// Stop gracefully stops the component.
func (c *Component) Stop(_ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil
	}

	if c.cancel != nil {
		c.cancel()
	}

	c.running = false
	c.logger.Info("rdf-export stopped",
		"messages_processed", c.messagesProcessed.Load(),
		"serialize_errors", c.serializeErrors.Load(),
		"publish_errors", c.publishErrors.Load())

	return nil
}

// Meta returns component metadata.
func (c *Component) Meta() component.Metadata {
	return component.Metadata{
		Name:        "rdf-export",
		Type:        "output",
		Description: "Serializes validated resources to RDF formats (Turtle, N-Triples, JSON-LD)",
		Version:     "0.1.0",
	}
}

// InputPorts returns configured input port definitions.
func (c *Component) InputPorts() []component.Port {
	if c.config.Ports == nil {
		return []component.Port{}
	}

	ports := make([]component.Port, len(c.config.Ports.Inputs))
	for i, portDef := range c.config.Ports.Inputs {
		ports[i] = buildPort(portDef, component.DirectionInput)
	}
	return ports
}

// OutputPorts returns configured output port definitions.
func (c *Component) OutputPorts() []component.Port {
	if c.config.Ports == nil {
		return []component.Port{}
	}

	ports := make([]component.Port, len(c.config.Ports.Outputs))
	for i, portDef := range c.config.Ports.Outputs {
		ports[i] = buildPort(portDef, component.DirectionOutput)
	}
	return ports
}

// buildPort creates a component.Port from a PortDefinition, using JetStreamPort
// for jetstream-type ports and NATSPort for core NATS ports.
func buildPort(portDef component.PortDefinition, direction component.Direction) component.Port {
	port := component.Port{
		Name:        portDef.Name,
		Direction:   direction,
		Required:    portDef.Required,
		Description: portDef.Description,
	}
	if portDef.Type == "jetstream" {
		port.Config = component.JetStreamPort{
			StreamName: portDef.StreamName,
			Subjects:   []string{portDef.Subject},
		}
	} else {
		port.Config = component.NATSPort{
			Subject: portDef.Subject,
		}
	}
	return port
}

// ConfigSchema returns the configuration schema.
func (c *Component) ConfigSchema() component.ConfigSchema {
	return rdfExportSchema
}

// Health returns the current health status.
func (c *Component) Health() component.HealthStatus {
	c.mu.RLock()
	running := c.running
	startTime := c.startTime
	c.mu.RUnlock()

	errorCount := int(c.serializeErrors.Load() + c.publishErrors.Load())

	status := "stopped"
	if running {
		status = "running"
	}

	return component.HealthStatus{
		Healthy:    running,
		LastCheck:  time.Now(),
		ErrorCount: errorCount,
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
