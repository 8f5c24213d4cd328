package docchunker

import (
	"fmt"

	"github.com/c360studio/semstreams/component"
)

// RegistryInterface defines the minimal interface needed for registration.
type RegistryInterface interface {
	RegisterWithConfig(component.RegistrationConfig) error
}

// Register registers the doc-chunker processor component with the given registry.
func Register(registry RegistryInterface) error {
	if registry == nil {
		return fmt.Errorf("registry cannot be nil")
	}
	return registry.RegisterWithConfig(component.RegistrationConfig{
		Name:        "doc-chunker",
		Factory:     NewComponent,
		Schema:      docChunkerSchema,
		Type:        "processor",
		Protocol:    "nats",
		Domain:      "ingestion",
		Description: "Document chunker for retrieval indexing",
		Version:     "0.1.0",
	})
}
