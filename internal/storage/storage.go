// Package storage is the byte-addressable object store the pipeline keeps
// raw bulletin documents in. Blobs are named xml/<day-key>/<file-name>.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a requested blob does not exist
var ErrNotFound = errors.New("blob not found")

// Store is a key-value byte store. Upload overwrites idempotently.
type Store interface {
	Upload(ctx context.Context, name string, data []byte) error
	Download(ctx context.Context, name string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
}

// BulletinPrefix returns the blob prefix holding one day's bulletin files
func BulletinPrefix(dayKey string) string {
	return "xml/" + dayKey + "/"
}

// BulletinName returns the blob name for one bulletin file
func BulletinName(dayKey, fileName string) string {
	return BulletinPrefix(dayKey) + fileName
}
