package clickhouse

import "fmt"

// Config holds ClickHouse sink connection settings. The target table is the
// job destination (table or db.table).
type Config struct {
	Addr     string `mapstructure:"addr"` // http(s)://host:8123 or native host:9000
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

func (c Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("sink.clickhouse requires addr")
	}
	return nil
}
