package graphquery

import (
	"fmt"

	"github.com/c360studio/semstreams/component"
)

// Config holds configuration for the graph-query processor component.
type Config struct {
	Ports      *component.PortConfig `json:"ports"       schema:"type:ports,description:Port configuration,category:basic"`
	SchemaDir  string                `json:"schema_dir"  schema:"type:string,description:Directory of shape schema definitions,category:basic,default:schemas"`
	MaxResults int                   `json:"max_results" schema:"type:int,description:Maximum results per query,category:advanced,default:100"`
	StreamName string                `json:"stream_name" schema:"type:string,description:JetStream stream name,category:advanced,default:GRAPH"`
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.MaxResults < 0 {
		return fmt.Errorf("max_results must be non-negative")
	}
	return nil
}

// DefaultConfig returns default configuration for the graph-query processor.
func DefaultConfig() Config {
	outputDefs := []component.PortDefinition{
		{
			Name:        "query.result",
			Type:        "jetstream",
			Subject:     "graph.query.result.>",
			StreamName:  "GRAPH",
			Required:    true,
			Description: "Query results, one subject per request",
		},
	}

	inputDefs := []component.PortDefinition{
		{
			Name:        "query.request",
			Type:        "jetstream",
			Subject:     "graph.query.request",
			StreamName:  "GRAPH",
			Required:    true,
			Description: "Incoming query requests",
		},
	}

	return Config{
		Ports: &component.PortConfig{
			Inputs:  inputDefs,
			Outputs: outputDefs,
		},
		SchemaDir:  "schemas",
		MaxResults: 100,
		StreamName: "GRAPH",
	}
}
