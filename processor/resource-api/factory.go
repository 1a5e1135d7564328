package resourceapi

import (
	"fmt"

	"github.com/c360studio/semstreams/component"
)

// RegistryInterface defines the minimal interface required for registration.
type RegistryInterface interface {
	RegisterWithConfig(component.RegistrationConfig) error
}

// Register registers the resource-api component with the given registry.
func Register(registry RegistryInterface) error {
	if registry == nil {
		return fmt.Errorf("registry cannot be nil")
	}
	return registry.RegisterWithConfig(component.RegistrationConfig{
		Name:        "resource-api",
		Factory:     NewComponent,
		Schema:      resourceAPISchema,
		Type:        "processor",
		Protocol:    "http",
		Domain:      "semlink",
		Description: "HTTP endpoints for shape-validated resource CRUD",
		Version:     "0.1.0",
	})
}
