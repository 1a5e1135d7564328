package shapevalidator

import (
	"fmt"
	"reflect"

	"github.com/c360studio/semstreams/component"

	"github.com/c360studio/semlink/graph"
	"github.com/c360studio/semlink/storage"
)

// shapeValidatorSchema holds the configuration schema generated from Config.
var shapeValidatorSchema = component.GenerateConfigSchema(reflect.TypeOf(Config{}))

// Config holds configuration for the shape-validator component.
type Config struct {
	// StreamName is the JetStream stream carrying ingest messages.
	StreamName string `json:"stream_name" schema:"type:string,description:JetStream stream carrying ingest messages,category:basic,default:GRAPH"`

	// ConsumerName is the durable consumer name.
	ConsumerName string `json:"consumer_name" schema:"type:string,description:Durable consumer name,category:basic,default:shape-validator"`

	// SchemaDir is the directory scanned for shape files.
	SchemaDir string `json:"schema_dir" schema:"type:string,description:Directory containing shape files,category:basic,default:schemas"`

	// WatchSchemas enables hot reload of shape files.
	WatchSchemas bool `json:"watch_schemas" schema:"type:bool,description:Reload shape files on change,category:advanced,default:false"`

	// Task is the task token the ingest context resolves. Resources are
	// validated against the shape visible under this task.
	Task string `json:"task" schema:"type:string,description:Task token resolved for ingest validation,category:advanced,default:create"`

	// Roles lists the role tokens granted to the ingest pipeline. Schemas
	// gated on roles outside this list are not visible to ingest traffic,
	// so their resources are rejected.
	Roles []string `json:"roles" schema:"type:array,description:Role tokens granted to the ingest pipeline,category:advanced"`

	// Ports declares the stream subjects consumed and published.
	Ports *component.PortConfig `json:"ports" schema:"type:ports,description:Port configuration,category:basic"`
}

// DefaultConfig returns the default configuration for shape-validator.
func DefaultConfig() Config {
	return Config{
		StreamName:   "GRAPH",
		ConsumerName: "shape-validator",
		SchemaDir:    "schemas",
		Task:         storage.TaskCreate,
		Ports: &component.PortConfig{
			Inputs: []component.PortDefinition{
				{
					Name:        "ingest_in",
					Type:        "jetstream",
					Subject:     graph.IngestSubject,
					StreamName:  "GRAPH",
					Required:    true,
					Description: "Resource models submitted for validation",
				},
			},
			Outputs: []component.PortDefinition{
				{
					Name:        "valid_out",
					Type:        "jetstream",
					Subject:     graph.ValidSubject,
					Required:    true,
					Description: "Trimmed models of resources that passed validation",
				},
				{
					Name:        "invalid_out",
					Type:        "jetstream",
					Subject:     graph.InvalidSubject,
					Required:    true,
					Description: "Validation reports for rejected resources",
				},
			},
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.StreamName == "" {
		return fmt.Errorf("stream_name is required")
	}
	if c.ConsumerName == "" {
		return fmt.Errorf("consumer_name is required")
	}
	return nil
}

// task returns the configured task token with its default.
func (c *Config) task() string {
	if c.Task != "" {
		return c.Task
	}
	return storage.TaskCreate
}
