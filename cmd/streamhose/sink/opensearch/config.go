package opensearch

import "fmt"

// Config holds OpenSearch sink connection settings. The index is the job destination.
type Config struct {
	URL      string `mapstructure:"url"` // http(s)://host:9200
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

func (c Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("sink.opensearch requires url")
	}
	return nil
}
