// Package firehose delivers record batches to an Amazon Data Firehose
// delivery stream with PutRecordBatch.
package firehose

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	fh "github.com/aws/aws-sdk-go-v2/service/firehose"
	"github.com/aws/aws-sdk-go-v2/service/firehose/types"

	"github.com/loykin/streamhose/cmd/streamhose/sink/common"
)

// MaxRecordsPerCall is the PutRecordBatch record cap.
const MaxRecordsPerCall = 500

// API is the subset of the Firehose client used by the sink.
type API interface {
	PutRecordBatch(ctx context.Context, params *fh.PutRecordBatchInput, optFns ...func(*fh.Options)) (*fh.PutRecordBatchOutput, error)
}

type Sink struct {
	client        API
	appendNewline bool
}

// New loads the default AWS configuration (environment, shared config, or the
// Lambda execution role) and builds a Firehose client from it.
func New(ctx context.Context, cfg Config) (common.Sink, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := fh.NewFromConfig(awsCfg, func(o *fh.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewWithClient(client, cfg.AppendNewline), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client API, appendNewline bool) *Sink {
	return &Sink{client: client, appendNewline: appendNewline}
}

// PutRecordBatch sends records in one call. A response reporting any failed
// record fails the whole call.
func (s *Sink) PutRecordBatch(ctx context.Context, destination string, records [][]byte) error {
	if len(records) > MaxRecordsPerCall {
		return fmt.Errorf("firehose batch of %d records exceeds the %d record cap", len(records), MaxRecordsPerCall)
	}
	entries := make([]types.Record, len(records))
	for i, rec := range records {
		data := rec
		if s.appendNewline {
			data = make([]byte, len(rec)+1)
			copy(data, rec)
			data[len(rec)] = '\n'
		}
		entries[i] = types.Record{Data: data}
	}

	out, err := s.client.PutRecordBatch(ctx, &fh.PutRecordBatchInput{
		DeliveryStreamName: aws.String(destination),
		Records:            entries,
	})
	if err != nil {
		return fmt.Errorf("put record batch to %s: %w", destination, err)
	}
	if failed := aws.ToInt32(out.FailedPutCount); failed > 0 {
		return &PartialFailureError{
			Stream: destination,
			Failed: int(failed),
			Total:  len(records),
			Code:   firstErrorCode(out.RequestResponses),
		}
	}
	return nil
}

func (s *Sink) MaxBatchSize() int { return MaxRecordsPerCall }

func (s *Sink) Close() error { return nil }

func firstErrorCode(entries []types.PutRecordBatchResponseEntry) string {
	for _, e := range entries {
		if code := aws.ToString(e.ErrorCode); code != "" {
			if msg := aws.ToString(e.ErrorMessage); msg != "" {
				return code + ": " + msg
			}
			return code
		}
	}
	return "unknown"
}

// PartialFailureError reports records the delivery stream rejected within an
// otherwise successful call.
type PartialFailureError struct {
	Stream string
	Failed int
	Total  int
	Code   string
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("firehose %s rejected %d of %d records (%s)", e.Stream, e.Failed, e.Total, e.Code)
}
