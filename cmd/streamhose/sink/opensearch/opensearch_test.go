package opensearch

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/loykin/streamhose/internal/dispatcher"
)

// bulkServer answers _bulk requests, rejecting documents whose message is in reject.
// Anything else (the client's initial product check) gets a cluster info reply.
type bulkServer struct {
	mu     sync.Mutex
	paths  []string // _bulk requests only
	docs   []map[string]any
	reject map[string]bool
}

func (b *bulkServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !strings.HasSuffix(r.URL.Path, "/_bulk") {
		_, _ = fmt.Fprint(w, `{"version":{"number":"2.11.0","distribution":"opensearch"}}`)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.paths = append(b.paths, r.URL.Path)

	var items []string
	hasErrors := false
	sc := bufio.NewScanner(r.Body)
	sc.Buffer(make([]byte, 1024*1024), 1024*1024)
	for sc.Scan() {
		// action line, then document line
		if !sc.Scan() {
			break
		}
		var doc map[string]any
		_ = json.Unmarshal(sc.Bytes(), &doc)
		b.docs = append(b.docs, doc)
		if b.reject[fmt.Sprint(doc["message"])] {
			hasErrors = true
			items = append(items, `{"index":{"status":400,"error":{"type":"mapper_parsing_exception","reason":"failed to parse"}}}`)
			continue
		}
		items = append(items, `{"index":{"status":201}}`)
	}
	_, _ = fmt.Fprintf(w, `{"took":1,"errors":%t,"items":[%s]}`, hasErrors, strings.Join(items, ","))
}

func TestOpenSearchSink_IndexesIntoDestination(t *testing.T) {
	srv := &bulkServer{}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	s, err := New(Config{URL: ts.URL}, "h1", map[string]string{"k": "v"})
	if err != nil {
		t.Fatalf("failed to create sink: %v", err)
	}
	defer func() { _ = s.Close() }()

	ctx := dispatcher.WithSource(context.Background(), "/var/log/app.log")
	if err := s.PutRecordBatch(ctx, "logs-streamhose", [][]byte{[]byte("hello"), []byte("world")}); err != nil {
		t.Fatalf("put: %v", err)
	}

	srv.mu.Lock()
	defer srv.mu.Unlock()
	if len(srv.docs) != 2 {
		t.Fatalf("indexed %d docs, want 2", len(srv.docs))
	}
	if srv.docs[0]["message"] != "hello" || srv.docs[0]["host"] != "h1" || srv.docs[0]["source"] != "/var/log/app.log" {
		t.Fatalf("unexpected doc: %v", srv.docs[0])
	}
	if len(srv.paths) != 1 || srv.paths[0] != "/logs-streamhose/_bulk" {
		t.Fatalf("want one bulk request to the destination index, got %q", srv.paths)
	}
}

func TestOpenSearchSink_InvalidUTF8KeepsExactBytes(t *testing.T) {
	srv := &bulkServer{}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	s, err := New(Config{URL: ts.URL}, "h1", nil)
	if err != nil {
		t.Fatalf("failed to create sink: %v", err)
	}
	raw := []byte{'a', 0xff, 'b'}
	if err := s.PutRecordBatch(context.Background(), "idx", [][]byte{raw, []byte("plain")}); err != nil {
		t.Fatalf("put: %v", err)
	}

	srv.mu.Lock()
	defer srv.mu.Unlock()
	if len(srv.docs) != 2 {
		t.Fatalf("indexed %d docs, want 2", len(srv.docs))
	}
	if got := srv.docs[0]["message_base64"]; got != base64.StdEncoding.EncodeToString(raw) {
		t.Fatalf("message_base64 = %v, want the exact record bytes", got)
	}
	if srv.docs[0]["message"] != "a\uFFFDb" {
		t.Fatalf("message = %q", srv.docs[0]["message"])
	}
	if _, ok := srv.docs[1]["message_base64"]; ok {
		t.Fatalf("valid UTF-8 record should not carry message_base64: %v", srv.docs[1])
	}
}

func TestOpenSearchSink_FailedItemFailsCall(t *testing.T) {
	srv := &bulkServer{reject: map[string]bool{"bad": true}}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	s, err := New(Config{URL: ts.URL}, "h1", nil)
	if err != nil {
		t.Fatalf("failed to create sink: %v", err)
	}
	err = s.PutRecordBatch(context.Background(), "idx", [][]byte{[]byte("ok"), []byte("bad")})
	if err == nil {
		t.Fatal("expected error for rejected item")
	}
	if !strings.Contains(err.Error(), "1 of 2") || !strings.Contains(err.Error(), "mapper_parsing_exception") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestOpenSearchSink_MissingConfig(t *testing.T) {
	if _, err := New(Config{}, "h1", nil); err == nil {
		t.Fatal("expected error when url missing")
	}
	if err := (Config{}).Validate(); err == nil {
		t.Fatal("expected validation error when url missing")
	}
}
