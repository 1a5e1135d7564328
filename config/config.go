// Package config provides configuration loading and management for Semlink.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete Semlink configuration
type Config struct {
	NATS    NATSConfig    `yaml:"nats"`
	HTTP    HTTPConfig    `yaml:"http"`
	Schemas SchemasConfig `yaml:"schemas"`
	SPARQL  SPARQLConfig  `yaml:"sparql"`
}

// NATSConfig configures the NATS connection
type NATSConfig struct {
	// URL is the NATS server URL (default: nats://localhost:4222)
	URL string `yaml:"url"`
	// ReconnectWait is the delay between reconnect attempts
	ReconnectWait time.Duration `yaml:"reconnect_wait"`
}

// HTTPConfig configures the resource API surface
type HTTPConfig struct {
	// Port is the HTTP listen port (default: 8080)
	Port int `yaml:"port"`
	// Tokens maps bearer tokens to the role tokens they grant
	Tokens map[string][]string `yaml:"tokens"`
}

// SchemasConfig configures shape definition loading
type SchemasConfig struct {
	// Dir is the directory scanned recursively for *.shape.yaml files
	Dir string `yaml:"dir"`
	// Watch reloads definitions when files under Dir change
	Watch bool `yaml:"watch"`
	// Debounce batches rapid file events into a single reload
	Debounce time.Duration `yaml:"debounce"`
}

// SPARQLConfig configures the optional query endpoint
type SPARQLConfig struct {
	// Endpoint is the SPARQL endpoint URL (empty = key-value listing only)
	Endpoint string `yaml:"endpoint"`
	// Timeout is the maximum time to wait for a query response
	Timeout time.Duration `yaml:"timeout"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		NATS: NATSConfig{
			URL:           "nats://localhost:4222",
			ReconnectWait: 2 * time.Second,
		},
		HTTP: HTTPConfig{
			Port: 8080,
		},
		Schemas: SchemasConfig{
			Dir:      "schemas",
			Watch:    false,
			Debounce: 500 * time.Millisecond,
		},
		SPARQL: SPARQLConfig{
			Endpoint: "", // KV listing only
			Timeout:  10 * time.Second,
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.NATS.URL == "" {
		return fmt.Errorf("nats.url is required")
	}
	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535")
	}
	for token := range c.HTTP.Tokens {
		if token == "" {
			return fmt.Errorf("http.tokens must not contain an empty token")
		}
	}
	if c.Schemas.Dir == "" {
		return fmt.Errorf("schemas.dir is required")
	}
	if c.Schemas.Debounce < 0 {
		return fmt.Errorf("schemas.debounce must not be negative")
	}
	if c.SPARQL.Timeout < 0 {
		return fmt.Errorf("sparql.timeout must not be negative")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file. Fields the file does
// not set stay zero, so layered loading merges only what the file says.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// NATS
	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
	}
	if other.NATS.ReconnectWait != 0 {
		c.NATS.ReconnectWait = other.NATS.ReconnectWait
	}

	// HTTP
	if other.HTTP.Port != 0 {
		c.HTTP.Port = other.HTTP.Port
	}
	if len(other.HTTP.Tokens) > 0 {
		c.HTTP.Tokens = other.HTTP.Tokens
	}

	// Schemas
	if other.Schemas.Dir != "" {
		c.Schemas.Dir = other.Schemas.Dir
	}
	if other.Schemas.Watch {
		c.Schemas.Watch = true
	}
	if other.Schemas.Debounce != 0 {
		c.Schemas.Debounce = other.Schemas.Debounce
	}

	// SPARQL
	if other.SPARQL.Endpoint != "" {
		c.SPARQL.Endpoint = other.SPARQL.Endpoint
	}
	if other.SPARQL.Timeout != 0 {
		c.SPARQL.Timeout = other.SPARQL.Timeout
	}
}

// Roles resolves a bearer token to the role tokens it grants. Unknown
// tokens resolve to no roles.
func (c *Config) Roles(token string) []string {
	if token == "" {
		return nil
	}
	return c.HTTP.Tokens[token]
}
