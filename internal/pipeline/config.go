package pipeline

import (
	"github.com/loykin/streamhose/internal/dispatcher"
	"github.com/loykin/streamhose/internal/splitter"
)

// DefaultChunkSize is the read size used against the (decompressed) source.
const DefaultChunkSize = 64 * 1024

type Config struct {
	ChunkSize  int               `mapstructure:"chunk-size"`
	Separator  string            `mapstructure:"separator"`
	Dispatcher dispatcher.Config `mapstructure:",squash"`
}

func (c *Config) Default() {
	c.ChunkSize = DefaultChunkSize
	c.Separator = splitter.DefaultSeparator
	c.Dispatcher.Default()
}

func (c *Config) Validate() error {
	if c.ChunkSize <= 0 {
		return &dispatcher.ConfigurationError{Field: "chunk-size", Reason: "must be > 0"}
	}
	if c.Separator == "" {
		return &dispatcher.ConfigurationError{Field: "separator", Reason: "must not be empty"}
	}
	return c.Dispatcher.Validate()
}
