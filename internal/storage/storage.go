package storage

import (
	"context"
	"errors"
	"time"
)

// ErrObjectNotFound is returned by DownloadObject when the key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// ObjectInfo represents metadata for a remote file/object.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// ObjectStorage captures the minimal S3-compatible operations the advisor needs
// to archive prediction runs and read them back.
type ObjectStorage interface {
	ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error)
	DownloadObject(ctx context.Context, key string, destPath string) error
	UploadObject(ctx context.Context, key string, data []byte) error
}
