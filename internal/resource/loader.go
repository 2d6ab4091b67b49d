// Package resource resolves the auxiliary files upgrade operations and the
// configuration provider read: pipeline descriptors, templates, scripts.
package resource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// ErrNotFound is wrapped by every loader when a path does not resolve.
var ErrNotFound = errors.New("resource not found")

// Loader opens resources by slash-separated path.
type Loader interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context, name string) (io.ReadCloser, error)

// Open implements Loader.
func (f LoaderFunc) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	return f(ctx, name)
}

// ReadAll opens name through loader and returns its full contents.
func ReadAll(ctx context.Context, loader Loader, name string) ([]byte, error) {
	if loader == nil {
		return nil, fmt.Errorf("no resource loader configured")
	}
	rc, err := loader.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read resource %s: %w", name, err)
	}
	return data, nil
}

// cleanName normalizes a resource path and refuses anything that escapes the
// loader root.
func cleanName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", fmt.Errorf("resource path is empty")
	}
	slashed := strings.ReplaceAll(trimmed, "\\", "/")
	if rel := path.Clean(slashed); rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("resource path %q escapes the loader root", name)
	}
	cleaned := strings.TrimPrefix(path.Clean("/"+slashed), "/")
	if cleaned == "" {
		return "", fmt.Errorf("resource path %q does not name a file", name)
	}
	return cleaned, nil
}

func notFound(name string, cause error) error {
	if cause == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return fmt.Errorf("%w: %s: %v", ErrNotFound, name, cause)
}
