package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSink keeps a copy of every call and fails the calls listed in failOn (1-based).
type recordingSink struct {
	calls  [][]string
	dests  []string
	failOn map[int]bool
}

func (s *recordingSink) PutRecordBatch(_ context.Context, destination string, records [][]byte) error {
	call := make([]string, len(records))
	for i, r := range records {
		call[i] = string(r)
	}
	s.calls = append(s.calls, call)
	s.dests = append(s.dests, destination)
	if s.failOn[len(s.calls)] {
		return errors.New("throttled")
	}
	return nil
}

func (s *recordingSink) sizes() []int {
	out := make([]int, len(s.calls))
	for i, c := range s.calls {
		out[i] = len(c)
	}
	return out
}

func newConfig(threshold, maxBatch int) Config {
	var c Config
	c.Default()
	c.Destination = "test"
	c.FlushThreshold = threshold
	c.MaxBatchSize = maxBatch
	return c
}

func records(n int) [][]byte {
	out := make([][]byte, n)
	for i := range out {
		out[i] = []byte(fmt.Sprintf("rec-%d", i))
	}
	return out
}

func TestDispatcher_ThresholdScenarios(t *testing.T) {
	lines := strings.Split("123\n456\n789\n123\n456", "\n")
	cases := []struct {
		threshold int
		sizes     []int
	}{
		{threshold: 1, sizes: []int{1, 1, 1, 1, 1}},
		{threshold: 2, sizes: []int{2, 2, 1}},
		{threshold: 10, sizes: []int{5}},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("threshold=%d", tc.threshold), func(t *testing.T) {
			sink := &recordingSink{}
			d, err := New(newConfig(tc.threshold, DefaultMaxBatchSize), sink)
			require.NoError(t, err)

			for _, ln := range lines {
				require.NoError(t, d.Accept(context.Background(), []byte(ln)))
			}
			n, err := d.Close(context.Background())
			require.NoError(t, err)

			assert.Equal(t, 5, n)
			assert.Equal(t, tc.sizes, sink.sizes())
			assert.Equal(t, 5, d.Delivered())
			assert.Equal(t, len(tc.sizes), d.Calls())

			var flat []string
			for _, c := range sink.calls {
				flat = append(flat, c...)
			}
			assert.Equal(t, lines, flat, "records must arrive in order")
		})
	}
}

func TestDispatcher_CallCountIsCeilWhenThresholdEqualsCap(t *testing.T) {
	for _, tc := range []struct{ records, cap int }{
		{0, 3}, {1, 3}, {3, 3}, {4, 3}, {9, 3}, {10, 3}, {1200, 500},
	} {
		sink := &recordingSink{}
		d, err := New(newConfig(tc.cap, tc.cap), sink)
		require.NoError(t, err)
		for _, r := range records(tc.records) {
			require.NoError(t, d.Accept(context.Background(), r))
		}
		_, err = d.Close(context.Background())
		require.NoError(t, err)

		want := (tc.records + tc.cap - 1) / tc.cap
		assert.Len(t, sink.calls, want, "records=%d cap=%d", tc.records, tc.cap)
		for _, size := range sink.sizes() {
			assert.LessOrEqual(t, size, tc.cap)
		}
	}
}

func TestDispatcher_1200RecordsWithCap500(t *testing.T) {
	sink := &recordingSink{}
	d, err := New(newConfig(500, 500), sink)
	require.NoError(t, err)

	for _, r := range records(1200) {
		require.NoError(t, d.Accept(context.Background(), r))
	}
	n, err := d.Close(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1200, n)
	assert.Equal(t, []int{500, 500, 200}, sink.sizes())
	assert.Equal(t, "rec-0", sink.calls[0][0])
	assert.Equal(t, "rec-500", sink.calls[1][0])
	assert.Equal(t, "rec-1000", sink.calls[2][0])
	assert.Equal(t, "rec-1199", sink.calls[2][199])
}

func TestDispatcher_FailureOnSecondCallStopsDelivery(t *testing.T) {
	sink := &recordingSink{failOn: map[int]bool{2: true}}
	d, err := New(newConfig(500, 500), sink)
	require.NoError(t, err)

	var acceptErr error
	for _, r := range records(1200) {
		if acceptErr = d.Accept(context.Background(), r); acceptErr != nil {
			break
		}
	}
	require.Error(t, acceptErr)

	var sinkErr *SinkCallError
	require.ErrorAs(t, acceptErr, &sinkErr)
	assert.Equal(t, 500, sinkErr.Delivered)
	assert.Equal(t, 500, sinkErr.BatchSize)
	assert.Equal(t, "test", sinkErr.Destination)
	assert.True(t, IsSinkCallError(acceptErr))

	// The third call is never attempted, not even on Close.
	_, err = d.Close(context.Background())
	require.Error(t, err)
	assert.Equal(t, []int{500, 500}, sink.sizes())
	assert.Equal(t, 500, d.Delivered())
	assert.ErrorIs(t, d.Accept(context.Background(), []byte("late")), ErrClosed)
}

func TestDispatcher_FlushSplitsOversizedLists(t *testing.T) {
	t.Run("splits into cap-sized calls in order", func(t *testing.T) {
		sink := &recordingSink{}
		d, err := New(newConfig(500, 500), sink)
		require.NoError(t, err)

		require.NoError(t, d.Flush(context.Background(), records(1200)))
		assert.Equal(t, []int{500, 500, 200}, sink.sizes())
		assert.Equal(t, 1200, d.Delivered())
	})

	t.Run("empty list is a no-op", func(t *testing.T) {
		sink := &recordingSink{}
		d, err := New(newConfig(1, 1), sink)
		require.NoError(t, err)

		require.NoError(t, d.Flush(context.Background(), nil))
		assert.Empty(t, sink.calls)
	})

	t.Run("failure aborts the remainder", func(t *testing.T) {
		sink := &recordingSink{failOn: map[int]bool{2: true}}
		d, err := New(newConfig(5, 5), sink)
		require.NoError(t, err)

		err = d.Flush(context.Background(), records(12))
		var sinkErr *SinkCallError
		require.ErrorAs(t, err, &sinkErr)
		assert.Equal(t, 5, sinkErr.Delivered)
		assert.Equal(t, []int{5, 5}, sink.sizes())
	})
}

func TestDispatcher_ContinuePolicy(t *testing.T) {
	sink := &recordingSink{failOn: map[int]bool{2: true}}
	cfg := newConfig(2, 2)
	cfg.FailurePolicy = FailurePolicyContinue
	d, err := New(cfg, sink)
	require.NoError(t, err)

	for _, r := range records(5) {
		require.NoError(t, d.Accept(context.Background(), r))
	}
	n, err := d.Close(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, n)
	assert.Equal(t, []int{2, 2, 1}, sink.sizes())
	assert.Equal(t, 3, d.Delivered())
	assert.Equal(t, 2, d.Failed())
}

func TestDispatcher_CloseFlushesRemainderOnce(t *testing.T) {
	sink := &recordingSink{}
	d, err := New(newConfig(10, 10), sink)
	require.NoError(t, err)

	require.NoError(t, d.Accept(context.Background(), []byte("a")))
	assert.Equal(t, 1, d.Pending())
	assert.Empty(t, sink.calls)

	n, err := d.Close(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 0, d.Pending())

	n, err = d.Close(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, sink.calls, 1)
	assert.Equal(t, []string{"test"}, sink.dests)
}

func TestDispatcher_SinkFunc(t *testing.T) {
	var got int
	d, err := New(newConfig(3, 3), SinkFunc(func(_ context.Context, _ string, recs [][]byte) error {
		got += len(recs)
		return nil
	}))
	require.NoError(t, err)
	for _, r := range records(7) {
		require.NoError(t, d.Accept(context.Background(), r))
	}
	_, err = d.Close(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, got)
}

func TestConfig_Validate(t *testing.T) {
	var c Config
	c.Default()
	assert.Equal(t, DefaultMaxBatchSize, c.MaxBatchSize)
	assert.Equal(t, DefaultMaxBatchSize, c.FlushThreshold)
	assert.Equal(t, FailurePolicyAbort, c.FailurePolicy)

	cases := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"missing destination", func(c *Config) { c.Destination = "" }, "destination"},
		{"zero cap", func(c *Config) { c.MaxBatchSize = 0 }, "max-batch-size"},
		{"zero threshold", func(c *Config) { c.FlushThreshold = 0 }, "flush-threshold"},
		{"threshold above cap", func(c *Config) { c.FlushThreshold = 501 }, "flush-threshold"},
		{"unknown policy", func(c *Config) { c.FailurePolicy = "retry" }, "failure-policy"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := newConfig(500, 500)
			tc.mutate(&cfg)
			err := cfg.Validate()
			var cfgErr *ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tc.field, cfgErr.Field)
			assert.True(t, IsConfigurationError(err))

			_, err = New(cfg, &recordingSink{})
			assert.Error(t, err)
		})
	}

	ok := newConfig(100, 500)
	assert.NoError(t, ok.Validate())
}

func TestSourceFromContext(t *testing.T) {
	assert.Empty(t, SourceFromContext(context.Background()))
	ctx := WithSource(context.Background(), "/var/log/app.log")
	assert.Equal(t, "/var/log/app.log", SourceFromContext(ctx))
}
