package source

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the subset of the S3 client used to stream objects.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Opener streams objects addressed as s3://bucket/key.
type S3Opener struct {
	Client S3API
}

// NewS3Opener builds an opener backed by an S3 client created from cfg.
// endpoint overrides the service endpoint (e.g. a local S3-compatible store),
// in which case path-style addressing is used.
func NewS3Opener(cfg aws.Config, endpoint string) *S3Opener {
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Opener{Client: client}
}

func (o *S3Opener) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	bucket, key, err := ParseS3URI(location)
	if err != nil {
		return nil, err
	}
	out, err := o.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get object s3://%s/%s: %w", bucket, key, err)
	}
	return out.Body, nil
}

// S3URI formats a bucket and key as an s3:// location.
func S3URI(bucket, key string) string {
	return "s3://" + bucket + "/" + key
}

// ParseS3URI splits s3://bucket/key into its parts.
func ParseS3URI(location string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(location, "s3://")
	if !ok {
		return "", "", fmt.Errorf("not an s3 location: %s", location)
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 location needs bucket and key: %s", location)
	}
	return bucket, key, nil
}
