package coordinator

import (
	"github.com/loykin/streamhose/internal/dispatcher"
	"github.com/loykin/streamhose/internal/pipeline"
)

type Config struct {
	Pipeline pipeline.Config `mapstructure:",squash"`
	// Concurrency bounds the number of sources processed at once; 0 runs one
	// goroutine per source.
	Concurrency int `mapstructure:"concurrency"`
}

func (c *Config) Default() {
	c.Pipeline.Default()
	c.Concurrency = 0
}

func (c *Config) Validate() error {
	if c.Concurrency < 0 {
		return &dispatcher.ConfigurationError{Field: "concurrency", Reason: "must be >= 0"}
	}
	return c.Pipeline.Validate()
}
