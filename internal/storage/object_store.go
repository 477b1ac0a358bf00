package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrPresignNotSupported is returned by backends that cannot issue direct
// upload urls.
var ErrPresignNotSupported = errors.New("presigned uploads are not supported by this object store")

type ObjectStore interface {
	CreateBucket(ctx context.Context, bucket string) error

	GetObject(ctx context.Context, bucket, key string) ([]byte, error)

	PutObject(ctx context.Context, bucket, key string, data io.Reader) error

	DeleteObject(ctx context.Context, bucket, key string) error

	// PresignPutURL returns a url a client can PUT object bytes to directly,
	// valid for the given expiry.
	PresignPutURL(ctx context.Context, bucket, key string, expiry time.Duration) (string, error)
}
