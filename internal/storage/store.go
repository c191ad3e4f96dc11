package storage

import (
	"context"
	"fmt"
	"io"
)

// Store defines the interface for a file payload backend.
type Store interface {
	Save(ctx context.Context, path string, reader io.Reader) (int64, error)
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	Delete(ctx context.Context, path string) error
}

// FilePath is where the payload of file message id is kept.
func FilePath(messageID int64) string {
	return fmt.Sprintf("files/%d", messageID)
}

// FileURL is the download route for the payload of file message id.
func FileURL(messageID int64) string {
	return fmt.Sprintf("/api/files/%d", messageID)
}
