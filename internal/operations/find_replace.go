package operations

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"golang.org/x/text/encoding"

	"github.com/alexisbeaulieu97/commons/internal/config"
	"github.com/alexisbeaulieu97/commons/internal/upgrade"
	"github.com/alexisbeaulieu97/commons/pkg/diff"
	commonserrors "github.com/alexisbeaulieu97/commons/pkg/errors"
)

// FindReplaceName is the registry name of FindReplace.
const FindReplaceName = "findReplace"

type findReplaceParams struct {
	Pattern  string `mapstructure:"pattern" validate:"required"`
	Search   string `mapstructure:"search" validate:"required"`
	Replace  string `mapstructure:"replace"`
	Literal  bool   `mapstructure:"literal"`
	Encoding string `mapstructure:"encoding"`
}

// FindReplace rewrites every file matching a glob by replacing a regular
// expression. Files that would not change are left untouched, so the
// operation can be replayed.
type FindReplace[T any] struct {
	*upgrade.BaseOperation[T]
	params findReplaceParams
	search *regexp.Regexp
	enc    encoding.Encoding
}

// NewFindReplace returns an unconfigured FindReplace.
func NewFindReplace[T any]() upgrade.Operation[T] {
	op := &FindReplace[T]{}
	op.BaseOperation = upgrade.NewBaseOperation[T](FindReplaceName, op)
	return op
}

// Configure implements upgrade.Configurable.
func (o *FindReplace[T]) Configure(params config.Params) error {
	if err := params.Decode(&o.params); err != nil {
		return err
	}

	expr := o.params.Search
	if o.params.Literal {
		expr = regexp.QuoteMeta(expr)
	}
	search, err := regexp.Compile(expr)
	if err != nil {
		return commonserrors.NewValidationError("search", err.Error(), err)
	}
	o.search = search

	enc, err := textEncoding(o.params.Encoding)
	if err != nil {
		return commonserrors.NewValidationError("encoding", err.Error(), err)
	}
	o.enc = enc
	return nil
}

// DoExecute implements upgrade.Executor.
func (o *FindReplace[T]) DoExecute(ctx context.Context, uctx upgrade.Context[T]) error {
	root, err := workDir(uctx.WorkDir())
	if err != nil {
		return err
	}

	files, err := matchFiles(ctx, root, []string{o.params.Pattern})
	if err != nil {
		return err
	}

	log := uctx.Logger().With("pattern", o.params.Pattern)
	changed := 0
	for _, rel := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		updated, err := o.rewrite(path, rel, uctx)
		if err != nil {
			return fmt.Errorf("rewrite %s: %w", rel, err)
		}
		if updated {
			changed++
		}
	}

	log.WithFields(map[string]any{"matched": len(files), "changed": changed}).Info("find and replace finished")
	return nil
}

func (o *FindReplace[T]) rewrite(path, rel string, uctx upgrade.Context[T]) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	text, err := decodeText(data, o.enc)
	if err != nil {
		return false, err
	}

	var replaced string
	if o.params.Literal {
		replaced = o.search.ReplaceAllLiteralString(text, o.params.Replace)
	} else {
		replaced = o.search.ReplaceAllString(text, o.params.Replace)
	}
	if replaced == text {
		return false, nil
	}

	out, err := encodeText(replaced, o.enc)
	if err != nil {
		return false, err
	}

	rendered, stats := diff.Lines([]byte(text), []byte(replaced), rel)
	uctx.Logger().WithFields(map[string]any{
		"file":    rel,
		"added":   stats.Added,
		"removed": stats.Removed,
		"diff":    rendered,
	}).Debug("rewriting file")

	return true, writeFileAtomic(path, out, fileMode(path))
}
