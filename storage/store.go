// Package storage keeps uploaded audio bytes, on local disk or in a MinIO bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"
)

var (
	// ErrObjectNotFound is returned by Open for an unknown key.
	ErrObjectNotFound = errors.New("audio object not found")
	// ErrObjectExists is returned by Save when the key is already in use.
	ErrObjectExists = errors.New("audio object already exists")
	// ErrInvalidKey rejects keys that could escape the store's namespace.
	ErrInvalidKey = errors.New("invalid audio object key")
)

// ObjectInfo 文件信息
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// BucketStats 存储统计信息
type BucketStats struct {
	TotalObjects int64
	TotalSize    int64
	LastModified time.Time
}

// AudioStore stores audio payloads under opaque keys.
type AudioStore interface {
	// Save writes r under key and returns the number of bytes stored. It never
	// overwrites an existing object.
	Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Remove deletes key; removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
	List(ctx context.Context) ([]ObjectInfo, error)
}

// ValidateKey accepts only plain file names.
func ValidateKey(key string) error {
	if key == "" || key == "." || key == ".." ||
		strings.ContainsAny(key, `/\`) || filepath.Base(key) != key {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// Stats 汇总对象统计信息
func Stats(objects []ObjectInfo) BucketStats {
	var stats BucketStats
	for _, o := range objects {
		stats.TotalObjects++
		stats.TotalSize += o.Size
		if o.LastModified.After(stats.LastModified) {
			stats.LastModified = o.LastModified
		}
	}
	return stats
}

// ctxReader stops a copy once the request context is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
