package firehose

// Config holds Firehose sink settings. The delivery stream is the job destination.
type Config struct {
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"` // optional, e.g. a local emulator
	// AppendNewline terminates every record with "\n" so objects written by the
	// delivery stream stay line-delimited.
	AppendNewline bool `mapstructure:"append-newline"`
}
