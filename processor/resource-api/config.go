package resourceapi

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/c360studio/semstreams/component"

	"github.com/c360studio/semlink/graph"
)

// resourceAPISchema holds the configuration schema generated from Config.
var resourceAPISchema = component.GenerateConfigSchema(reflect.TypeOf(Config{}))

// Config holds configuration for the resource-api component.
type Config struct {
	// SchemaDir is the directory scanned for shape files.
	SchemaDir string `json:"schema_dir" schema:"type:string,description:Directory containing shape files,category:basic,default:schemas"`

	// WatchSchemas enables hot reload of shape files.
	WatchSchemas bool `json:"watch_schemas" schema:"type:bool,description:Reload shape files on change,category:advanced,default:false"`

	// Prefix is the HTTP path segment handlers are registered under.
	Prefix string `json:"prefix" schema:"type:string,description:HTTP path prefix for resource endpoints,category:basic,default:api/resources"`

	// MaxResults caps the number of ids a browse request returns.
	MaxResults int `json:"max_results" schema:"type:int,description:Maximum ids returned per browse,category:advanced,default:100"`

	// SPARQLEndpoint is an optional SPARQL query endpoint. When set, browse
	// requests also run the compiled query against it.
	SPARQLEndpoint string `json:"sparql_endpoint" schema:"type:string,description:SPARQL query endpoint URL,category:advanced,default:"`

	// Tokens maps bearer tokens to the role tokens they grant. Requests
	// without a recognized token carry no roles, so role-guarded fields
	// stay hidden.
	Tokens map[string][]string `json:"tokens,omitempty" schema:"type:object,description:Bearer token to granted roles map,category:advanced"`

	// Ports declares optional HTTP port configuration.
	Ports *component.PortConfig `json:"ports,omitempty" schema:"type:ports,description:Port configuration,category:basic"`
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() Config {
	return Config{
		SchemaDir:  "schemas",
		Prefix:     "api/resources",
		MaxResults: 100,
		Ports: &component.PortConfig{
			Outputs: []component.PortDefinition{
				{
					Name:        "ingest_out",
					Type:        "jetstream",
					Subject:     graph.IngestSubject,
					StreamName:  "GRAPH",
					Required:    false,
					Description: "Stored resource models for downstream validation",
				},
			},
		},
	}
}

// Validate verifies the configuration is consistent.
func (c *Config) Validate() error {
	if c.MaxResults < 0 {
		return fmt.Errorf("max_results must not be negative: %d", c.MaxResults)
	}
	for token := range c.Tokens {
		if strings.TrimSpace(token) == "" {
			return fmt.Errorf("tokens must not contain an empty token")
		}
	}
	return nil
}

// schemaDir returns the configured schema directory with its default.
func (c *Config) schemaDir() string {
	if c.SchemaDir != "" {
		return c.SchemaDir
	}
	return "schemas"
}

// prefix returns the configured HTTP prefix with its default.
func (c *Config) prefix() string {
	if c.Prefix != "" {
		return c.Prefix
	}
	return "api/resources"
}

// maxResults returns the configured browse cap with its default.
func (c *Config) maxResults() int {
	if c.MaxResults > 0 {
		return c.MaxResults
	}
	return 100
}
