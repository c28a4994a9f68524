package opensearch

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	osclient "github.com/opensearch-project/opensearch-go"
	"github.com/opensearch-project/opensearch-go/opensearchutil"

	"github.com/loykin/streamhose/cmd/streamhose/sink/common"
	"github.com/loykin/streamhose/internal/dispatcher"
)

type Sink struct {
	client *osclient.Client
	host   string
	labels map[string]string
}

func New(cfg Config, host string, labels map[string]string) (common.Sink, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("opensearch url is required")
	}
	osCfg := osclient.Config{Addresses: []string{cfg.URL}}
	if cfg.User != "" {
		osCfg.Username = cfg.User
		osCfg.Password = cfg.Password
	}
	cli, err := osclient.NewClient(osCfg)
	if err != nil {
		return nil, err
	}
	return &Sink{client: cli, host: host, labels: labels}, nil
}

// PutRecordBatch bulk-indexes records into the destination index. The call
// fails if any item is rejected.
//
// JSON strings cannot carry invalid UTF-8, so for such records "message" holds
// a U+FFFD-substituted copy and "message_base64" holds the exact bytes.
func (s *Sink) PutRecordBatch(ctx context.Context, destination string, records [][]byte) error {
	bi, err := opensearchutil.NewBulkIndexer(opensearchutil.BulkIndexerConfig{
		Client:     s.client,
		Index:      destination,
		NumWorkers: 1,
	})
	if err != nil {
		return err
	}

	var (
		mu       sync.Mutex
		firstErr error
	)
	onFailure := func(_ context.Context, _ opensearchutil.BulkIndexerItem, resp opensearchutil.BulkIndexerResponseItem, err error) {
		if err == nil {
			err = fmt.Errorf("status %d: %s: %s", resp.Status, resp.Error.Type, resp.Error.Reason)
		}
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
		slog.Debug("opensearch bulk item failed", "index", destination, "error", err)
	}

	src := dispatcher.SourceFromContext(ctx)
	ts := time.Now().UTC().Format(time.RFC3339Nano)
	for _, rec := range records {
		doc := map[string]any{
			"@timestamp": ts,
			"message":    string(rec),
			"host":       s.host,
			"labels":     s.labels,
			"source":     src,
		}
		if !utf8.Valid(rec) {
			doc["message_base64"] = base64.StdEncoding.EncodeToString(rec)
		}
		b, err := json.Marshal(doc)
		if err != nil {
			_ = bi.Close(ctx)
			return err
		}
		err = bi.Add(ctx, opensearchutil.BulkIndexerItem{
			Action:    "index",
			Body:      bytes.NewReader(b),
			OnFailure: onFailure,
		})
		if err != nil {
			_ = bi.Close(ctx)
			return err
		}
	}
	if err := bi.Close(ctx); err != nil {
		return err
	}
	if stats := bi.Stats(); stats.NumFailed > 0 {
		mu.Lock()
		defer mu.Unlock()
		return fmt.Errorf("opensearch bulk failed items: %d of %d: %v", stats.NumFailed, len(records), firstErr)
	}
	return nil
}

func (s *Sink) MaxBatchSize() int { return 0 }

func (s *Sink) Close() error { return nil }
