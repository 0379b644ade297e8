package object

import (
	"context"
	"io"
	"time"
)

// ObjectStore defines the contract for saving and retrieving binary blobs.
//
// SignReadURL returns a time-bounded, read-only capability URL for one blob.
// Implementations must never return a URL without an expiry.
type ObjectStore interface {
	Save(ctx context.Context, fileName string, r io.Reader) (blobName string, sizeBytes int64, mimeType string, err error)
	Open(ctx context.Context, blobName string) (io.ReadCloser, error)
	SignReadURL(ctx context.Context, blobName string, ttl time.Duration) (string, error)
}
