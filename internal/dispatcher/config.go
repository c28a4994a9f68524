package dispatcher

// Failure policies applied when a sink call fails.
const (
	// FailurePolicyAbort stops delivery for the stream at the first failed call.
	FailurePolicyAbort = "abort"
	// FailurePolicyContinue logs the failed call, counts its records as failed and keeps going.
	FailurePolicyContinue = "continue"
)

// DefaultMaxBatchSize is the per-call record cap of the reference ingestion service.
const DefaultMaxBatchSize = 500

type Config struct {
	Destination    string `mapstructure:"destination"`
	FlushThreshold int    `mapstructure:"flush-threshold"`
	MaxBatchSize   int    `mapstructure:"max-batch-size"`
	FailurePolicy  string `mapstructure:"failure-policy"`
}

func (c *Config) Default() {
	c.MaxBatchSize = DefaultMaxBatchSize
	c.FlushThreshold = DefaultMaxBatchSize
	c.FailurePolicy = FailurePolicyAbort
}

// Validate checks the knobs of a dispatcher. The flush threshold may be lower than
// the per-call cap but never higher.
func (c *Config) Validate() error {
	if c.Destination == "" {
		return &ConfigurationError{Field: "destination", Reason: "must be set"}
	}
	if c.MaxBatchSize <= 0 {
		return &ConfigurationError{Field: "max-batch-size", Reason: "must be > 0"}
	}
	if c.FlushThreshold <= 0 {
		return &ConfigurationError{Field: "flush-threshold", Reason: "must be > 0"}
	}
	if c.FlushThreshold > c.MaxBatchSize {
		return &ConfigurationError{Field: "flush-threshold", Reason: "must not exceed max-batch-size"}
	}
	switch c.FailurePolicy {
	case "", FailurePolicyAbort, FailurePolicyContinue:
	default:
		return &ConfigurationError{Field: "failure-policy", Reason: "must be 'abort' or 'continue'"}
	}
	return nil
}
