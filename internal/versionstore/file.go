// Package versionstore persists the version reached by each upgrade target.
package versionstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/alexisbeaulieu97/commons/internal/version"
)

// DefaultFileName is where FileStore keeps the record, relative to the
// target directory.
const DefaultFileName = ".upgrade/version.yaml"

// ErrNoVersion is returned for targets that were never versioned when the
// store has no default version.
var ErrNoVersion = errors.New("no version recorded")

// record is the persisted document shared by every store.
type record struct {
	Version   string    `yaml:"version"`
	UpdatedAt time.Time `yaml:"updatedAt,omitempty"`
}

func decodeRecord(data []byte, source string) (version.Version, error) {
	var rec record
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return version.Version{}, fmt.Errorf("decode %s: %w", source, err)
	}
	v, err := version.Parse(rec.Version)
	if err != nil {
		return version.Version{}, fmt.Errorf("%s: %w", source, err)
	}
	return v, nil
}

func encodeRecord(v version.Version, now time.Time) ([]byte, error) {
	return yaml.Marshal(record{Version: v.String(), UpdatedAt: now.UTC()})
}

// FileOptions configures a FileStore.
type FileOptions[T any] struct {
	// Dir maps a target to the directory holding its record.
	Dir func(T) string
	// FileName overrides DefaultFileName.
	FileName string
	// DefaultVersion is reported for targets without a record. Empty makes a
	// missing record an ErrNoVersion error.
	DefaultVersion string
}

// FileStore keeps each target's version in a small YAML file inside the
// target's own directory.
type FileStore[T any] struct {
	dir      func(T) string
	fileName string
	fallback *version.Version
	now      func() time.Time

	mu sync.Mutex
}

// NewFileStore validates opts and returns a store.
func NewFileStore[T any](opts FileOptions[T]) (*FileStore[T], error) {
	if opts.Dir == nil {
		return nil, fmt.Errorf("file version store requires a directory mapping")
	}
	store := &FileStore[T]{dir: opts.Dir, fileName: opts.FileName, now: time.Now}
	if store.fileName == "" {
		store.fileName = DefaultFileName
	}
	if opts.DefaultVersion != "" {
		v, err := version.Parse(opts.DefaultVersion)
		if err != nil {
			return nil, fmt.Errorf("default version: %w", err)
		}
		store.fallback = &v
	}
	return store, nil
}

// Path returns the record location for target.
func (s *FileStore[T]) Path(target T) string {
	return filepath.Join(s.dir(target), filepath.FromSlash(s.fileName))
}

// GetVersion implements upgrade.VersionProvider.
func (s *FileStore[T]) GetVersion(ctx context.Context, target T) (version.Version, error) {
	if err := ctx.Err(); err != nil {
		return version.Version{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.Path(target)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if s.fallback != nil {
				return *s.fallback, nil
			}
			return version.Version{}, fmt.Errorf("%w: %s", ErrNoVersion, path)
		}
		return version.Version{}, fmt.Errorf("read version record: %w", err)
	}
	return decodeRecord(data, path)
}

// SetVersion implements upgrade.VersionProvider. The record is replaced
// atomically so a crash never leaves a truncated file behind.
func (s *FileStore[T]) SetVersion(ctx context.Context, target T, v version.Version) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.Path(target)
	data, err := encodeRecord(v, s.now())
	if err != nil {
		return fmt.Errorf("encode version record: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create version record directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".version-*.tmp")
	if err != nil {
		return fmt.Errorf("create temporary version record: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write version record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close version record: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace version record: %w", err)
	}
	return nil
}
