package dispatcher

import "context"

type sourceKey struct{}

// WithSource tags ctx with the name of the stream whose records are delivered
// under it, so sinks can attribute batches to a source.
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey{}, source)
}

// SourceFromContext returns the stream name set by WithSource, or "".
func SourceFromContext(ctx context.Context) string {
	s, _ := ctx.Value(sourceKey{}).(string)
	return s
}
