// Package source locates and opens the byte streams fed to the pipelines.
package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// GzipSuffix marks a source as gzip-compressed by naming convention.
const GzipSuffix = ".gz"

// Descriptor identifies one unit of work: where to read from and whether the
// bytes must be gunzipped first.
type Descriptor struct {
	Location   string `json:"location"`
	Compressed bool   `json:"compressed"`
}

// Describe builds a Descriptor, inferring compression from the location suffix.
func Describe(location string) Descriptor {
	return Descriptor{Location: location, Compressed: IsCompressed(location)}
}

// IsCompressed reports whether location follows the gzip naming convention.
func IsCompressed(location string) bool {
	return strings.HasSuffix(strings.ToLower(location), GzipSuffix)
}

// Opener returns a sequential reader over the bytes at location. End of data is
// reported as io.EOF by the reader; every other error is a read failure.
type Opener interface {
	Open(ctx context.Context, location string) (io.ReadCloser, error)
}

// OpenerFunc adapts a plain function to the Opener interface.
type OpenerFunc func(ctx context.Context, location string) (io.ReadCloser, error)

func (f OpenerFunc) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	return f(ctx, location)
}

// FileOpener reads local files given as plain paths or file:// URIs.
type FileOpener struct{}

func (FileOpener) Open(_ context.Context, location string) (io.ReadCloser, error) {
	return os.Open(strings.TrimPrefix(location, "file://"))
}

// Router dispatches to an Opener by URI scheme. Locations without a scheme use
// the "file" entry.
type Router map[string]Opener

func (r Router) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	scheme := Scheme(location)
	o, ok := r[scheme]
	if !ok {
		return nil, fmt.Errorf("no opener for scheme %q (location %s)", scheme, location)
	}
	return o.Open(ctx, location)
}

// Scheme returns the URI scheme of location, or "file" when it has none.
func Scheme(location string) string {
	if i := strings.Index(location, "://"); i > 0 {
		return strings.ToLower(location[:i])
	}
	return "file"
}
