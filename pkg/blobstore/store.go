// Package blobstore implements the pluggable binary storage backing
// File.FilePath and Entity.VaultPath: a local-disk default for development
// and a single-instance deployment, and an S3 backend for production.
package blobstore

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

// ErrInvalidPath is returned when a relative path attempts to escape its
// storage root via a ".." component.
var ErrInvalidPath = errors.New("blobstore: path must not contain '..' components")

// Store is the backend-agnostic surface the file and entity executors use
// to persist and retrieve blob content. Paths are always relative,
// forward-slash separated, and validated with CleanRelativePath before
// being handed to a backend.
type Store interface {
	Put(ctx context.Context, relPath string, r io.Reader, size int64) error
	Get(ctx context.Context, relPath string) (io.ReadCloser, error)
	Delete(ctx context.Context, relPath string) error
	Exists(ctx context.Context, relPath string) (bool, error)
}

// CleanRelativePath validates and normalizes a caller-supplied relative
// path, rejecting any path that escapes its root via "..". Both the entity
// executor (VaultPath) and the file executor (FilePath) must run every
// path through this before it reaches a Store.
func CleanRelativePath(p string) (string, error) {
	p = strings.TrimPrefix(p, "/")
	cleaned := path.Clean(p)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") || strings.Contains(cleaned, "/../") {
		return "", ErrInvalidPath
	}
	if cleaned == "." {
		return "", ErrInvalidPath
	}
	return cleaned, nil
}
