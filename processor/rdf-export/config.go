package rdfexport

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/c360studio/semstreams/component"

	"github.com/c360studio/semlink/export"
	"github.com/c360studio/semlink/graph"
)

// rdfExportSchema defines the configuration schema.
var rdfExportSchema = component.GenerateConfigSchema(reflect.TypeOf(Config{}))

// Config holds configuration for the rdf-export output component.
type Config struct {
	Ports  *component.PortConfig `json:"ports" schema:"type:ports,description:Port configuration,category:basic"`
	Format string                `json:"format" schema:"type:string,description:RDF serialization format (turtle/ntriples/jsonld),category:basic,default:turtle"`
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Format != "" {
		if _, ok := export.GetFormatInfo(export.Format(strings.ToLower(c.Format))); !ok {
			return fmt.Errorf("unsupported format: %s (valid: turtle, ntriples, jsonld)", c.Format)
		}
	}
	return nil
}

// GetFormat returns the configured export.Format.
func (c *Config) GetFormat() export.Format {
	if c.Format == "" {
		return export.FormatTurtle
	}
	return export.Format(strings.ToLower(c.Format))
}

// DefaultConfig returns the default configuration for rdf-export.
func DefaultConfig() Config {
	return Config{
		Ports: &component.PortConfig{
			Inputs: []component.PortDefinition{
				{
					Name:        "resources_in",
					Type:        "jetstream",
					Subject:     graph.ValidSubject,
					StreamName:  "GRAPH",
					Required:    true,
					Description: "Validated resource models from the graph pipeline",
				},
			},
			Outputs: []component.PortDefinition{
				{
					Name:        "rdf_out",
					Type:        "jetstream",
					Subject:     "graph.export.rdf",
					Required:    true,
					Description: "Serialized RDF documents for downstream consumers",
				},
			},
		},
		Format: "turtle",
	}
}
