package crawlingester

import (
	"fmt"

	"github.com/c360studio/semstreams/component"
)

// RegistryInterface defines the minimal interface needed for registration.
type RegistryInterface interface {
	RegisterWithConfig(component.RegistrationConfig) error
}

// Register registers the crawl-ingester processor component with the given registry.
func Register(registry RegistryInterface) error {
	if registry == nil {
		return fmt.Errorf("registry cannot be nil")
	}
	return registry.RegisterWithConfig(component.RegistrationConfig{
		Name:        "crawl-ingester",
		Factory:     NewComponent,
		Schema:      crawlIngesterSchema,
		Type:        "processor",
		Protocol:    "nats",
		Domain:      "ingestion",
		Description: "Legal document crawler with dedup persistence",
		Version:     "0.1.0",
	})
}
