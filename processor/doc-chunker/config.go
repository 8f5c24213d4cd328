package docchunker

import (
	"fmt"

	"github.com/c360studio/semstreams/component"

	"github.com/c360studio/lexingest/source/chunker"
)

// Config holds configuration for the doc-chunker processor component.
type Config struct {
	Ports *component.PortConfig `json:"ports" schema:"type:ports,description:Port configuration,category:basic"`

	// StreamName is the JetStream stream carrying document events.
	StreamName string `json:"stream_name" schema:"type:string,description:JetStream stream name,category:basic,default:DOCS"`

	// ConsumerName is the durable consumer name.
	ConsumerName string `json:"consumer_name" schema:"type:string,description:Durable consumer name,category:basic,default:doc-chunker"`

	// Strategy selects the default chunking strategy (words or paragraphs).
	Strategy string `json:"strategy" schema:"type:string,description:Default chunking strategy,category:basic,default:words"`

	// ChunkSize is the target chunk size in words.
	ChunkSize int `json:"chunk_size" schema:"type:int,description:Target chunk size in words,category:advanced,default:500"`

	// ChunkOverlap is the word overlap between consecutive chunks.
	ChunkOverlap int `json:"chunk_overlap" schema:"type:int,description:Word overlap between chunks,category:advanced,default:50"`

	// MinChunkSize is the smallest chunk emitted mid-document, in words.
	MinChunkSize int `json:"min_chunk_size" schema:"type:int,description:Minimum mid-document chunk size in words,category:advanced,default:100"`
}

// Validate checks the configuration for errors. Invalid chunker
// parameters fail here, at construction time, not during a run.
func (c *Config) Validate() error {
	if c.StreamName == "" {
		return fmt.Errorf("stream_name is required")
	}
	if c.ConsumerName == "" {
		return fmt.Errorf("consumer_name is required")
	}
	if c.Strategy != "" && c.Strategy != chunker.StrategyWords && c.Strategy != chunker.StrategyParagraphs {
		return fmt.Errorf("unknown strategy %q", c.Strategy)
	}
	if c.ChunkSize != 0 {
		if err := c.ChunkerConfig().Validate(); err != nil {
			return err
		}
	}
	return nil
}

// GetStrategy returns the configured strategy with default.
func (c *Config) GetStrategy() string {
	if c.Strategy == "" {
		return chunker.StrategyWords
	}
	return c.Strategy
}

// ChunkerConfig builds the chunker configuration from component config.
func (c *Config) ChunkerConfig() chunker.Config {
	if c.ChunkSize == 0 {
		return chunker.DefaultConfig()
	}
	return chunker.Config{
		ChunkSize:    c.ChunkSize,
		ChunkOverlap: c.ChunkOverlap,
		MinChunkSize: c.MinChunkSize,
	}
}

// DefaultConfig returns default configuration for doc-chunker processor.
func DefaultConfig() Config {
	inputDefs := []component.PortDefinition{
		{
			Name:        "docs.in",
			Type:        "jetstream",
			Subject:     "docs.>",
			StreamName:  "DOCS",
			Required:    true,
			Description: "Stored document events and chunk requests",
		},
	}

	return Config{
		Ports: &component.PortConfig{
			Inputs: inputDefs,
		},
		StreamName:   "DOCS",
		ConsumerName: "doc-chunker",
		Strategy:     chunker.StrategyWords,
		ChunkSize:    500,
		ChunkOverlap: 50,
		MinChunkSize: 100,
	}
}
