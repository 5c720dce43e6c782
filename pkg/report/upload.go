package report

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ErrBadS3URL indicates an upload target that is not s3://bucket[/key].
var ErrBadS3URL = errors.New("invalid s3 url")

// PutObjectAPI is the part of the S3 client the uploader needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Uploader puts report artifacts to S3.
type Uploader struct {
	client PutObjectAPI
}

// NewUploader creates an uploader using the default AWS configuration.
func NewUploader(ctx context.Context) (*Uploader, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return &Uploader{client: s3.NewFromConfig(cfg)}, nil
}

// NewUploaderWithClient creates an uploader around an existing client.
func NewUploaderWithClient(client PutObjectAPI) *Uploader {
	return &Uploader{client: client}
}

// ParseS3URL splits s3://bucket/key. The key may be empty.
func ParseS3URL(raw string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(raw, "s3://")
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrBadS3URL, raw)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("%w: %q has no bucket", ErrBadS3URL, raw)
	}
	return bucket, key, nil
}

// Upload puts the file at local under dst. When dst's key is empty or ends
// in a slash, the file's base name is appended. It returns the object URL.
func (u *Uploader) Upload(ctx context.Context, dst, local string) (string, error) {
	bucket, key, err := ParseS3URL(dst)
	if err != nil {
		return "", err
	}
	if key == "" || strings.HasSuffix(key, "/") {
		key = path.Join(key, filepath.Base(local))
	}

	f, err := os.Open(local)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", local, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", local, err)
	}

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(contentType(local)),
	})
	if err != nil {
		return "", fmt.Errorf("put s3://%s/%s: %w", bucket, key, err)
	}
	return "s3://" + bucket + "/" + key, nil
}

func contentType(name string) string {
	switch {
	case strings.HasSuffix(name, ".json"):
		return "application/json"
	case strings.HasSuffix(name, ".yaml"), strings.HasSuffix(name, ".yml"):
		return "application/yaml"
	case strings.HasSuffix(name, ".parquet"):
		return "application/vnd.apache.parquet"
	case strings.HasSuffix(name, ".zst"):
		return "application/zstd"
	case strings.HasSuffix(name, ".csv"):
		return "text/csv"
	default:
		return "text/plain"
	}
}
