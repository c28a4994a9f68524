package coordinator

import (
	"fmt"
	"strings"
	"time"

	"github.com/loykin/streamhose/internal/pipeline"
)

// JobResult aggregates the outcomes of one invocation, in descriptor order.
type JobResult struct {
	JobID    string
	Outcomes []pipeline.Outcome
	Duration time.Duration
}

// OK reports whether every source succeeded.
func (r JobResult) OK() bool { return r.Failed() == 0 }

func (r JobResult) Total() int { return len(r.Outcomes) }

// Succeeded counts sources that completed or were skipped as already delivered.
func (r JobResult) Succeeded() int { return r.Total() - r.Failed() }

func (r JobResult) Failed() int {
	n := 0
	for _, o := range r.Outcomes {
		if !o.OK() {
			n++
		}
	}
	return n
}

// Records is the number of records accepted across all sources.
func (r JobResult) Records() int {
	n := 0
	for _, o := range r.Outcomes {
		n += o.Records
	}
	return n
}

// Delivered is the number of records acknowledged by the sink across all sources.
func (r JobResult) Delivered() int {
	n := 0
	for _, o := range r.Outcomes {
		n += o.Delivered
	}
	return n
}

// Summary renders one line per source followed by a totals line.
func (r JobResult) Summary() string {
	var b strings.Builder
	for _, o := range r.Outcomes {
		switch {
		case o.Skipped:
			fmt.Fprintf(&b, "SKIP %s (already delivered)\n", o.Source)
		case o.OK():
			fmt.Fprintf(&b, "OK   %s records=%d calls=%d", o.Source, o.Records, o.SinkCalls)
			if o.Failed > 0 {
				fmt.Fprintf(&b, " failed=%d", o.Failed)
			}
			b.WriteByte('\n')
		default:
			fmt.Fprintf(&b, "FAIL %s records=%d delivered=%d: %v\n", o.Source, o.Records, o.Delivered, o.Err)
		}
	}
	fmt.Fprintf(&b, "%d/%d sources succeeded, %d records delivered in %s\n",
		r.Succeeded(), r.Total(), r.Delivered(), r.Duration.Round(time.Millisecond))
	return b.String()
}

// JobError reports the sources that failed in a job. Successful sources are
// still available on the accompanying JobResult.
type JobError struct {
	JobID  string
	Failed []pipeline.Outcome
	Total  int
}

func (e *JobError) Error() string {
	names := make([]string, 0, len(e.Failed))
	for _, o := range e.Failed {
		names = append(names, o.Source)
	}
	return fmt.Sprintf("job %s: %d of %d sources failed: %s", e.JobID, len(e.Failed), e.Total, strings.Join(names, ", "))
}

// Unwrap exposes the per-source errors to errors.Is and errors.As.
func (e *JobError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, o := range e.Failed {
		errs = append(errs, o.Err)
	}
	return errs
}
