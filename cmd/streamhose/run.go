package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/loykin/streamhose/internal/source"
)

func newRunCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [SOURCE...]",
		Short: "Deliver the records of local files or S3 objects to the configured sink",
		Long: `run streams every source line by line into batches and delivers them to the sink.
Sources are local paths, file:// or s3://bucket/key locations given as arguments,
plus whatever the --include patterns select. Sources ending in .gz are gunzipped.

Examples:
  # Print every record of the bundled example logs
  streamhose run -I ./examples/embedded/log

  # Ship compressed objects to a Firehose delivery stream
  STREAMHOSE_SINK_TYPE=firehose streamhose run --destination logs s3://bucket/2024/01/app.log.gz

  # Continue past failed sink calls, four sources at a time
  streamhose run --failure-policy continue --concurrency 4 -I '/var/log/*.gz'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runJob(ctx, cfg, args, cmd.OutOrStdout())
		},
	}
	cfg.SetupRunFlags(cmd)
	return cmd
}

func runJob(ctx context.Context, cfg *Config, args []string, out io.Writer) error {
	descs, err := collectSources(args, cfg)
	if err != nil {
		return err
	}
	if len(descs) == 0 {
		return errors.New("no sources: pass locations as arguments or select files with --include")
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	c, err := a.coordinator()
	if err != nil {
		return err
	}
	res, err := c.Run(ctx, descs)
	_, _ = fmt.Fprint(out, res.Summary())
	return err
}

// collectSources merges explicit locations with the files selected by the
// include patterns, keeping argument order first and dropping duplicates.
func collectSources(args []string, cfg *Config) ([]source.Descriptor, error) {
	locations := append([]string{}, args...)
	if len(cfg.Include) > 0 {
		files, err := source.Glob(cfg.Include, cfg.Exclude)
		if err != nil {
			return nil, fmt.Errorf("failed to expand include patterns: %w", err)
		}
		locations = append(locations, files...)
	}

	seen := make(map[string]struct{}, len(locations))
	descs := make([]source.Descriptor, 0, len(locations))
	for _, loc := range locations {
		if _, dup := seen[loc]; dup {
			continue
		}
		seen[loc] = struct{}{}
		descs = append(descs, describe(loc, cfg.Gzip))
	}
	return descs, nil
}

func describe(location, mode string) source.Descriptor {
	d := source.Describe(location)
	switch mode {
	case GzipAlways:
		d.Compressed = true
	case GzipNever:
		d.Compressed = false
	}
	return d
}
