// Package archive persists run artifacts (reports, feature tables, bar
// files) on the local filesystem or an S3-compatible bucket.
package archive

import (
	"context"
	"path"
	"strings"

	"github.com/newthinker/quantlab/internal/core"
)

// Storage defines the interface for artifact storage backends.
// Paths are slash-separated and relative to the backend root.
type Storage interface {
	// Write stores data at the given path
	Write(ctx context.Context, path string, data []byte) error

	// Read retrieves data from the given path
	Read(ctx context.Context, path string) ([]byte, error)

	// List returns all paths under the prefix, sorted
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the data at the given path
	Delete(ctx context.Context, path string) error

	// Exists checks if data exists at the given path
	Exists(ctx context.Context, path string) (bool, error)
}

// Config selects and configures a backend.
type Config struct {
	Backend string // "local" or "s3"
	Path    string // root directory for local
	S3      S3Config
}

// New builds the configured backend.
func New(cfg Config) (Storage, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "local", "localfs":
		root := cfg.Path
		if root == "" {
			root = "output"
		}
		return NewLocalFS(root)
	case "s3":
		if cfg.S3.Bucket == "" {
			return nil, core.Errorf(core.ErrConfigMissing, "storage.s3.bucket is required")
		}
		return NewS3(cfg.S3)
	default:
		return nil, core.Errorf(core.ErrConfigInvalid, "unknown storage backend %q", cfg.Backend)
	}
}

// cleanPath normalizes p and rejects paths that escape the root.
func cleanPath(p string) (string, error) {
	if p == "" {
		return "", core.Errorf(core.ErrInvalidParameter, "empty path")
	}
	c := path.Clean(strings.ReplaceAll(p, "\\", "/"))
	if path.IsAbs(c) || c == ".." || strings.HasPrefix(c, "../") {
		return "", core.Errorf(core.ErrInvalidParameter, "path %q escapes storage root", p)
	}
	return c, nil
}

// contentType guesses a MIME type from the extension.
func contentType(p string) string {
	switch strings.ToLower(path.Ext(p)) {
	case ".yaml", ".yml":
		return "application/yaml"
	case ".csv":
		return "text/csv"
	case ".json":
		return "application/json"
	case ".parquet":
		return "application/vnd.apache.parquet"
	default:
		return "application/octet-stream"
	}
}
