package graphquery

import (
	"fmt"

	"github.com/c360studio/semstreams/component"
)

// RegistryInterface defines the minimal interface needed for registration.
type RegistryInterface interface {
	RegisterWithConfig(component.RegistrationConfig) error
}

// Register registers the graph-query component with the given registry.
func Register(registry RegistryInterface) error {
	if registry == nil {
		return fmt.Errorf("registry cannot be nil")
	}
	return registry.RegisterWithConfig(component.RegistrationConfig{
		Name:        "graph-query",
		Factory:     NewComponent,
		Schema:      graphQuerySchema,
		Type:        "processor",
		Protocol:    "graph",
		Domain:      "semlink",
		Description: "Query processor for validated resources and compiled shape queries",
		Version:     "0.1.0",
	})
}
