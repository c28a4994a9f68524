package clickhouse

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"strings"
	"time"

	ch "github.com/ClickHouse/clickhouse-go/v2"

	"github.com/loykin/streamhose/cmd/streamhose/sink/common"
	"github.com/loykin/streamhose/internal/dispatcher"
)

type Sink struct {
	conn     ch.Conn
	database string
	host     string
	labels   map[string]string
}

// New connects to ClickHouse, ensures table exists via the embedded migration,
// and returns a sink inserting into the destination table of each call.
func New(cfg Config, table, host string, labels map[string]string) (common.Sink, error) {
	if cfg.Addr == "" || table == "" {
		return nil, fmt.Errorf("clickhouse addr and table are required")
	}
	opts, err := options(cfg)
	if err != nil {
		return nil, err
	}
	if err := runMigrations(opts, qualify(cfg.Database, table)); err != nil {
		return nil, err
	}
	conn, err := ch.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Sink{conn: conn, database: cfg.Database, host: host, labels: labels}, nil
}

// options supports both the HTTP and the native protocol.
func options(cfg Config) (*ch.Options, error) {
	auth := ch.Auth{Username: cfg.User, Password: cfg.Password, Database: cfg.Database}
	if !strings.Contains(cfg.Addr, "://") {
		return &ch.Options{Addr: []string{cfg.Addr}, Auth: auth}, nil
	}
	u, err := url.Parse(cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("invalid ch addr: %w", err)
	}
	opts := &ch.Options{Addr: []string{u.Host}, Protocol: ch.HTTP, Auth: auth}
	if u.Scheme == "https" {
		opts.TLS = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opts, nil
}

func qualify(database, table string) string {
	if database != "" && !strings.Contains(table, ".") {
		return database + "." + table
	}
	return table
}

func insertQuery(database, table string) string {
	return "INSERT INTO " + qualify(database, table) + " (ts, host, labels, source, message)"
}

func (s *Sink) PutRecordBatch(ctx context.Context, destination string, records [][]byte) error {
	batch, err := s.conn.PrepareBatch(ctx, insertQuery(s.database, destination))
	if err != nil {
		return err
	}
	src := dispatcher.SourceFromContext(ctx)
	now := time.Now()
	for _, rec := range records {
		if err := batch.Append(now, s.host, s.labels, src, string(rec)); err != nil {
			_ = batch.Abort()
			return err
		}
	}
	return batch.Send()
}

func (s *Sink) MaxBatchSize() int { return 0 }

func (s *Sink) Close() error { return s.conn.Close() }
