// Package main provides the semlink binary entry point.
// Semlink is a linked-data resource platform: schemas declare shapes,
// shapes validate and redact graph resources, and the platform serves
// them over HTTP, NATS, and SPARQL.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	// Register platform vocabulary via init()
	_ "github.com/c360studio/semlink/vocabulary/semlink"

	"github.com/c360studio/semlink/config"
	"github.com/c360studio/semlink/graph"
	graphquery "github.com/c360studio/semlink/processor/graph-query"
	rdfexport "github.com/c360studio/semlink/processor/rdf-export"
	resourceapi "github.com/c360studio/semlink/processor/resource-api"
	shapevalidator "github.com/c360studio/semlink/processor/shape-validator"
	"github.com/c360studio/semstreams/component"
	"github.com/c360studio/semstreams/componentregistry"
	ssconfig "github.com/c360studio/semstreams/config"
	"github.com/c360studio/semstreams/metric"
	"github.com/c360studio/semstreams/natsclient"
	"github.com/c360studio/semstreams/service"
	"github.com/c360studio/semstreams/types"
	"github.com/spf13/cobra"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "semlink"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		schemaDir  string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "semlink",
		Short: "Linked data resource platform",
		Long: `Semlink is a linked-data resource platform built on shape constraints.

It provides:
- Schema-driven validation of subject/predicate/object resources
- Guarded shapes redacted per task, view, mode, and role
- SPARQL query compilation from shape definitions
- RDF export of validated resources (Turtle, N-Triples, JSON-LD)

All components communicate via NATS using the semstreams framework.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, schemaDir, logLevel)
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&schemaDir, "schemas", "", "Schema directory (overrides config)")

	// Version command
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	cmd.AddCommand(checkCmd())
	cmd.AddCommand(explainCmd())

	return cmd
}

func run(configPath, schemaDir, logLevel string) error {
	// Print banner
	printBanner()

	// Configure logging
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// Load layered configuration (defaults, user file, project file, explicit path)
	loader := config.NewLoader(logger)
	cfg, err := loader.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if schemaDir != "" {
		cfg.Schemas.Dir = schemaDir
	}

	// Verify the schema directory exists before components try to load it
	info, err := os.Stat(cfg.Schemas.Dir)
	if err != nil {
		return fmt.Errorf("stat schema directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("not a directory: %s", cfg.Schemas.Dir)
	}

	// Build the platform config the semstreams machinery consumes
	platformCfg := buildPlatformConfig(cfg)
	if err := platformCfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Connect to NATS
	ctx := context.Background()
	natsClient, err := connectToNATS(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer natsClient.Close(ctx)

	// Ensure JetStream streams exist
	if err := ensureStreams(ctx, platformCfg, natsClient, logger); err != nil {
		return err
	}

	slog.Info("Semlink ready",
		"version", Version,
		"schema_dir", cfg.Schemas.Dir)

	// Create remaining infrastructure
	metricsRegistry := metric.NewMetricsRegistry()
	platform := extractPlatformMeta(platformCfg)

	// Create and start config manager (required for component-manager to access component configs)
	configManager, err := ssconfig.NewConfigManager(platformCfg, natsClient, logger)
	if err != nil {
		return fmt.Errorf("create config manager: %w", err)
	}
	if err := configManager.Start(ctx); err != nil {
		return fmt.Errorf("start config manager: %w", err)
	}
	defer configManager.Stop(5 * time.Second)

	slog.Info("Platform identity configured",
		"org", platform.Org,
		"platform", platform.Platform)

	// Create and populate component registry
	componentRegistry := component.NewRegistry()

	// Register all semstreams components
	slog.Debug("Registering semstreams component factories")
	if err := componentregistry.Register(componentRegistry); err != nil {
		return fmt.Errorf("register semstreams components: %w", err)
	}

	// Register semlink-specific components
	slog.Debug("Registering semlink component factories")
	if err := resourceapi.Register(componentRegistry); err != nil {
		return fmt.Errorf("register resource-api: %w", err)
	}

	if err := shapevalidator.Register(componentRegistry); err != nil {
		return fmt.Errorf("register shape-validator: %w", err)
	}

	if err := graphquery.Register(componentRegistry); err != nil {
		return fmt.Errorf("register graph-query: %w", err)
	}

	if err := rdfexport.Register(componentRegistry); err != nil {
		return fmt.Errorf("register rdf-export: %w", err)
	}

	factories := componentRegistry.ListFactories()
	slog.Info("Component factories registered", "count", len(factories))

	// Create service registry and manager (semstreams pattern)
	serviceRegistry := service.NewServiceRegistry()
	if err := service.RegisterAll(serviceRegistry); err != nil {
		return fmt.Errorf("register services: %w", err)
	}

	manager := service.NewServiceManager(serviceRegistry)
	ensureServiceManagerConfig(platformCfg, cfg.HTTP.Port)

	// Create service dependencies
	svcDeps := &service.Dependencies{
		NATSClient:        natsClient,
		MetricsRegistry:   metricsRegistry,
		Logger:            logger,
		Platform:          platform,
		Manager:           configManager,
		ComponentRegistry: componentRegistry,
	}

	// Configure and create services
	if err := configureAndCreateServices(platformCfg, manager, svcDeps); err != nil {
		return err
	}

	slog.Info("All services configured")

	// Setup signal handling
	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	// Start all services (includes HTTP server with health endpoints)
	slog.Info("Starting all services")
	if err := manager.StartAll(signalCtx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}
	slog.Info("All services started successfully")

	// Block until shutdown signal
	<-signalCtx.Done()
	slog.Info("Received shutdown signal")

	// Stop all services
	shutdownTimeout := 30 * time.Second
	if err := manager.StopAll(shutdownTimeout); err != nil {
		slog.Error("Error stopping services", "error", err)
	}

	slog.Info("Semlink shutdown complete")
	return nil
}

func printBanner() {
	fmt.Println("╔═══════════════════════════════════════════════╗")
	fmt.Println("║             Semlink v" + Version + "                     ║")
	fmt.Println("║      Linked Data Resource Platform            ║")
	fmt.Println("╚═══════════════════════════════════════════════╝")
}

// buildPlatformConfig maps the semlink configuration onto the semstreams
// platform config: one GRAPH stream carrying the resource pipeline and the
// four platform components wired to the shared schema directory.
func buildPlatformConfig(cfg *config.Config) *ssconfig.Config {
	resourceAPIConfig := map[string]any{
		"schema_dir":    cfg.Schemas.Dir,
		"watch_schemas": cfg.Schemas.Watch,
	}
	if cfg.SPARQL.Endpoint != "" {
		resourceAPIConfig["sparql_endpoint"] = cfg.SPARQL.Endpoint
	}
	if len(cfg.HTTP.Tokens) > 0 {
		resourceAPIConfig["tokens"] = cfg.HTTP.Tokens
	}
	resourceAPIJSON, _ := json.Marshal(resourceAPIConfig)

	shapeValidatorJSON, _ := json.Marshal(map[string]any{
		"schema_dir":    cfg.Schemas.Dir,
		"watch_schemas": cfg.Schemas.Watch,
	})

	graphQueryJSON, _ := json.Marshal(map[string]any{
		"schema_dir": cfg.Schemas.Dir,
	})

	rdfExportJSON, _ := json.Marshal(map[string]any{
		"format": "turtle",
	})

	return &ssconfig.Config{
		Version: "1.0.0",
		Platform: ssconfig.PlatformConfig{
			Org:         "semlink",
			ID:          "semlink-local",
			Environment: "dev",
		},
		NATS: ssconfig.NATSConfig{
			URLs:          []string{cfg.NATS.URL},
			MaxReconnects: -1,
			ReconnectWait: cfg.NATS.ReconnectWait,
			JetStream: ssconfig.JetStreamConfig{
				Enabled: true,
			},
		},
		Services: types.ServiceConfigs{},
		Components: ssconfig.ComponentConfigs{
			"resource-api": types.ComponentConfig{
				Name:    "resource-api",
				Type:    types.ComponentTypeProcessor,
				Enabled: true,
				Config:  resourceAPIJSON,
			},
			"shape-validator": types.ComponentConfig{
				Name:    "shape-validator",
				Type:    types.ComponentTypeProcessor,
				Enabled: true,
				Config:  shapeValidatorJSON,
			},
			"graph-query": types.ComponentConfig{
				Name:    "graph-query",
				Type:    types.ComponentTypeProcessor,
				Enabled: true,
				Config:  graphQueryJSON,
			},
			"rdf-export": types.ComponentConfig{
				Name:    "rdf-export",
				Type:    types.ComponentTypeProcessor,
				Enabled: true,
				Config:  rdfExportJSON,
			},
		},
		Streams: ssconfig.StreamConfigs{
			"GRAPH": ssconfig.StreamConfig{
				Subjects: []string{
					graph.IngestSubject,
					"graph.resource.>",
					"graph.query.>",
					"graph.export.>",
				},
				MaxAge:   "24h",
				Storage:  "file",
				Replicas: 1,
			},
		},
	}
}

func connectToNATS(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*natsclient.Client, error) {
	natsURL := cfg.NATS.URL

	// Environment variable override takes precedence
	if envURL := os.Getenv("NATS_URL"); envURL != "" {
		natsURL = envURL
	} else if envURL := os.Getenv("SEMLINK_NATS_URL"); envURL != "" {
		natsURL = envURL
	}

	logger.Info("Connecting to NATS", "url", natsURL)

	client, err := natsclient.NewClient(natsURL,
		natsclient.WithName(appName),
		natsclient.WithMaxReconnects(-1),
		natsclient.WithReconnectWait(cfg.NATS.ReconnectWait),
		natsclient.WithCircuitBreakerThreshold(20), // Higher threshold for startup bursts
		natsclient.WithHealthInterval(30*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("create NATS client: %w", err)
	}

	if err := client.Connect(ctx); err != nil {
		return nil, wrapNATSError(err, natsURL)
	}

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := client.WaitForConnection(connCtx); err != nil {
		return nil, wrapNATSError(err, natsURL)
	}

	logger.Info("Connected to NATS", "url", natsURL)
	return client, nil
}

// wrapNATSError provides helpful guidance when NATS connection fails.
func wrapNATSError(err error, url string) error {
	errStr := err.Error()

	// Check for common connection errors
	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no servers available") ||
		strings.Contains(errStr, "timeout") {
		return fmt.Errorf(`NATS connection failed: %w

NATS is not running at %s.

To start NATS:
  docker compose up -d nats

Or set NATS_URL environment variable to point to your NATS server.`, err, url)
	}

	return fmt.Errorf("NATS connection failed: %w", err)
}

func ensureStreams(ctx context.Context, cfg *ssconfig.Config, natsClient *natsclient.Client, logger *slog.Logger) error {
	logger.Debug("Creating JetStream streams")
	streamsManager := ssconfig.NewStreamsManager(natsClient, logger)

	if err := streamsManager.EnsureStreams(ctx, cfg); err != nil {
		return fmt.Errorf("ensure streams: %w", err)
	}

	logger.Debug("JetStream streams ready")
	return nil
}

func extractPlatformMeta(cfg *ssconfig.Config) types.PlatformMeta {
	platformID := cfg.Platform.InstanceID
	if platformID == "" {
		platformID = cfg.Platform.ID
	}

	return types.PlatformMeta{
		Org:      cfg.Platform.Org,
		Platform: platformID,
	}
}

// ensureServiceManagerConfig ensures service-manager config exists with defaults
func ensureServiceManagerConfig(cfg *ssconfig.Config, httpPort int) {
	if cfg.Services == nil {
		cfg.Services = make(types.ServiceConfigs)
	}

	if _, exists := cfg.Services["service-manager"]; !exists {
		slog.Debug("Adding default service-manager config")
		defaultConfig := map[string]any{
			"http_port":  httpPort,
			"swagger_ui": false,
			"server_info": map[string]string{
				"title":       "Semlink API",
				"description": "linked-data resource platform - shape validation, query, and export",
				"version":     Version,
			},
		}
		defaultConfigJSON, _ := json.Marshal(defaultConfig)
		cfg.Services["service-manager"] = types.ServiceConfig{
			Name:    "service-manager",
			Enabled: true,
			Config:  defaultConfigJSON,
		}
		slog.Debug("Service-manager config added", "enabled", true)
	}
}

// configureAndCreateServices configures the manager and creates all services
func configureAndCreateServices(
	cfg *ssconfig.Config,
	manager *service.Manager,
	svcDeps *service.Dependencies,
) error {
	slog.Debug("Configuring Manager")
	if err := manager.ConfigureFromServices(cfg.Services, svcDeps); err != nil {
		return fmt.Errorf("configure service manager: %w", err)
	}

	slog.Debug("Creating services from config", "count", len(cfg.Services))
	for name, svcConfig := range cfg.Services {
		if name == "service-manager" {
			slog.Debug("Skipping service-manager (configured directly)")
			continue
		}

		if err := createServiceIfEnabled(manager, name, svcConfig, svcDeps); err != nil {
			return err
		}
	}

	return nil
}

// createServiceIfEnabled creates a service if it's enabled and registered
func createServiceIfEnabled(
	manager *service.Manager,
	name string,
	svcConfig types.ServiceConfig,
	svcDeps *service.Dependencies,
) error {
	slog.Debug("Processing service config", "key", name, "name", svcConfig.Name, "enabled", svcConfig.Enabled)

	if !svcConfig.Enabled {
		slog.Info("Service disabled in config", "name", name)
		return nil
	}

	if !manager.HasConstructor(name) {
		slog.Warn("Service configured but not registered", "key", name, "available_constructors", manager.ListConstructors())
		return nil
	}

	slog.Debug("Creating service", "name", name, "has_constructor", true)
	if _, err := manager.CreateService(name, svcConfig.Config, svcDeps); err != nil {
		return fmt.Errorf("create service %s: %w", name, err)
	}

	slog.Info("Created service", "name", name, "config_name", svcConfig.Name)
	return nil
}
