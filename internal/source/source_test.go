package source

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescribe(t *testing.T) {
	assert.Equal(t, Descriptor{Location: "s3://b/logs/a.gz", Compressed: true}, Describe("s3://b/logs/a.gz"))
	assert.Equal(t, Descriptor{Location: "a.GZ", Compressed: true}, Describe("a.GZ"))
	assert.Equal(t, Descriptor{Location: "a.log", Compressed: false}, Describe("a.log"))
	assert.False(t, IsCompressed("archive.gzip"))
}

func TestScheme(t *testing.T) {
	assert.Equal(t, "s3", Scheme("s3://bucket/key"))
	assert.Equal(t, "s3", Scheme("S3://bucket/key"))
	assert.Equal(t, "file", Scheme("file:///tmp/x"))
	assert.Equal(t, "file", Scheme("/tmp/x"))
	assert.Equal(t, "file", Scheme("relative/x.log"))
}

func TestParseS3URI(t *testing.T) {
	bucket, key, err := ParseS3URI("s3://my-bucket/path/to/obj.gz")
	require.NoError(t, err)
	assert.Equal(t, "my-bucket", bucket)
	assert.Equal(t, "path/to/obj.gz", key)
	assert.Equal(t, "s3://my-bucket/path/to/obj.gz", S3URI(bucket, key))

	for _, bad := range []string{"my-bucket/key", "s3://", "s3://bucket", "s3://bucket/", "s3:///key"} {
		_, _, err := ParseS3URI(bad)
		assert.Error(t, err, bad)
	}
}

func TestFileOpener(t *testing.T) {
	p := filepath.Join(t.TempDir(), "in.log")
	require.NoError(t, os.WriteFile(p, []byte("a\nb\n"), 0o644))

	for _, loc := range []string{p, "file://" + p} {
		rc, err := FileOpener{}.Open(context.Background(), loc)
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		_ = rc.Close()
		assert.Equal(t, "a\nb\n", string(b))
	}

	_, err := FileOpener{}.Open(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

type fakeS3 struct {
	objects map[string]string
	gets    []string
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	k := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	f.gets = append(f.gets, k)
	body, ok := f.objects[k]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func TestS3Opener(t *testing.T) {
	api := &fakeS3{objects: map[string]string{"logs/2024/01/app.log": "x\ny\n"}}
	o := &S3Opener{Client: api}

	rc, err := o.Open(context.Background(), "s3://logs/2024/01/app.log")
	require.NoError(t, err)
	b, _ := io.ReadAll(rc)
	assert.Equal(t, "x\ny\n", string(b))
	assert.Equal(t, []string{"logs/2024/01/app.log"}, api.gets)

	_, err = o.Open(context.Background(), "s3://logs/missing")
	assert.ErrorContains(t, err, "NoSuchKey")

	_, err = o.Open(context.Background(), "/not/s3")
	assert.Error(t, err)
}

func TestRouter(t *testing.T) {
	var opened []string
	fake := OpenerFunc(func(_ context.Context, loc string) (io.ReadCloser, error) {
		opened = append(opened, loc)
		return io.NopCloser(strings.NewReader("")), nil
	})
	r := Router{"file": fake, "s3": fake}

	for _, loc := range []string{"/tmp/a.log", "s3://b/k"} {
		rc, err := r.Open(context.Background(), loc)
		require.NoError(t, err)
		_ = rc.Close()
	}
	assert.Equal(t, []string{"/tmp/a.log", "s3://b/k"}, opened)

	_, err := r.Open(context.Background(), "gs://bucket/key")
	assert.ErrorContains(t, err, `no opener for scheme "gs"`)
}
