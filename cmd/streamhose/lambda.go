package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/spf13/cobra"

	"github.com/loykin/streamhose/internal/coordinator"
	"github.com/loykin/streamhose/internal/source"
)

func newLambdaCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "lambda",
		Short: "Run as an AWS Lambda handler for S3 object-created notifications",
		Long: `lambda starts the AWS Lambda runtime. Every S3 event record names one object;
all objects of an event are delivered concurrently to --destination (or the
FIREHOSE_STREAM_NAME environment variable).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			lambda.Start(newS3EventHandler(a))
			return nil
		},
	}
}

type s3EventHandler func(ctx context.Context, evt events.S3Event) (string, error)

func newS3EventHandler(a *app) s3EventHandler {
	return func(ctx context.Context, evt events.S3Event) (string, error) {
		var opts []coordinator.Option
		if lc, ok := lambdacontext.FromContext(ctx); ok && lc.AwsRequestID != "" {
			opts = append(opts, coordinator.WithJobID(lc.AwsRequestID))
		}
		c, err := a.coordinator(opts...)
		if err != nil {
			return "", err
		}

		descs := eventSources(evt, a.cfg.Gzip)
		res, err := c.Run(ctx, descs)
		if err != nil {
			return "", err
		}
		slog.Debug("event processed", "job", res.JobID, "objects", len(descs))
		return fmt.Sprintf("processed %d records", res.Delivered()), nil
	}
}

// eventSources turns each S3 event record into one descriptor. Object keys in
// notifications are URL-encoded.
func eventSources(evt events.S3Event, gzipMode string) []source.Descriptor {
	descs := make([]source.Descriptor, 0, len(evt.Records))
	for _, r := range evt.Records {
		key := r.S3.Object.URLDecodedKey
		if key == "" {
			key = r.S3.Object.Key
		}
		descs = append(descs, describe(source.S3URI(r.S3.Bucket.Name, key), gzipMode))
	}
	return descs
}
