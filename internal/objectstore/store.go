// Package objectstore is the minimal S3-compatible storage surface used by
// the load journal and the spill archive.
package objectstore

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/nucleus/doris-core/internal/config"
	"github.com/nucleus/doris-core/internal/core"
)

// Error codes raised by stores, carried in *core.Error.
const (
	CodeBucketNotFound      = "E_BUCKET_NOT_FOUND"
	CodeObjectNotFound      = "E_OBJECT_NOT_FOUND"
	CodePermissionDenied    = "E_PERMISSION_DENIED"
	CodeAuthInvalid         = "E_AUTH_INVALID"
	CodeTimeout             = "E_TIMEOUT"
	CodeEndpointUnreachable = "E_ENDPOINT_UNREACHABLE"
	CodeWriteFailed         = "E_OBJECT_WRITE_FAILED"
)

// Store abstracts the object operations needed for journaling and spilling.
type Store interface {
	EnsureBucket(ctx context.Context, bucket string) error
	PutObject(ctx context.Context, bucket, key string, data []byte) error
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
	ListPrefix(ctx context.Context, bucket, prefix string) ([]string, error)
	DeleteObject(ctx context.Context, bucket, key string) error
}

var (
	_ Store = (*LocalStore)(nil)
	_ Store = (*S3Client)(nil)
)

// FromConfig returns an S3Client when an endpoint is configured and a
// LocalStore under cfg.LocalRoot otherwise.
func FromConfig(cfg config.SpillConfig) (Store, error) {
	if cfg.Endpoint == "" {
		return NewLocalStore(cfg.LocalRoot), nil
	}
	return NewS3Client(&S3Config{
		EndpointURL:     cfg.Endpoint,
		AccessKeyID:     cfg.AccessKey,
		SecretAccessKey: cfg.SecretKey,
		UseSSL:          cfg.UseSSL,
		Region:          cfg.Region,
	})
}

// JoinKey joins key segments with "/" and drops empty ones.
func JoinKey(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		p = strings.Trim(p, "/")
		if p != "" {
			kept = append(kept, p)
		}
	}
	return path.Join(kept...)
}

func wrapError(code string, retryable bool, err error) *core.Error {
	return core.Wrap(code, retryable, err)
}

func requireBucket(bucket string) error {
	if bucket == "" {
		return wrapError(CodeBucketNotFound, false, fmt.Errorf("bucket name is required"))
	}
	return nil
}
