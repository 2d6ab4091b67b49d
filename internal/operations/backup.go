package operations

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar"
	"github.com/klauspost/compress/zip"

	"github.com/alexisbeaulieu97/commons/internal/config"
	"github.com/alexisbeaulieu97/commons/internal/upgrade"
)

// BackupName is the registry name of Backup.
const BackupName = "backup"

// DefaultBackupDir is where archives land unless configured otherwise.
const DefaultBackupDir = ".upgrade/backups"

type backupParams struct {
	Destination string   `mapstructure:"destination"`
	Exclude     []string `mapstructure:"exclude" validate:"dive,required"`
}

// Backup archives the target directory into a zip file named after the
// version step it precedes. The backup directory itself and .git are
// never archived.
type Backup[T any] struct {
	*upgrade.BaseOperation[T]
	params backupParams
	now    func() time.Time
}

// NewBackup returns an unconfigured Backup.
func NewBackup[T any]() upgrade.Operation[T] {
	op := &Backup[T]{now: time.Now}
	op.BaseOperation = upgrade.NewBaseOperation[T](BackupName, op)
	return op
}

// Configure implements upgrade.Configurable.
func (o *Backup[T]) Configure(params config.Params) error {
	if err := params.Decode(&o.params); err != nil {
		return err
	}
	if o.params.Destination == "" {
		o.params.Destination = DefaultBackupDir
	}
	return nil
}

// DoExecute implements upgrade.Executor.
func (o *Backup[T]) DoExecute(ctx context.Context, uctx upgrade.Context[T]) error {
	root, err := workDir(uctx.WorkDir())
	if err != nil {
		return err
	}
	destDir, err := resolve(root, o.params.Destination)
	if err != nil {
		return err
	}

	files, err := matchFiles(ctx, root, []string{"**"}, path.Clean(o.params.Destination), ".git")
	if err != nil {
		return err
	}
	files, err = o.filter(files)
	if err != nil {
		return err
	}

	archive := filepath.Join(destDir, o.archiveName())
	if err := writeArchive(ctx, root, archive, files); err != nil {
		return fmt.Errorf("write backup: %w", err)
	}

	uctx.Logger().WithFields(map[string]any{
		"archive": archive,
		"files":   len(files),
	}).Info("backup written")
	return nil
}

func (o *Backup[T]) filter(files []string) ([]string, error) {
	if len(o.params.Exclude) == 0 {
		return files, nil
	}
	kept := files[:0]
	for _, rel := range files {
		excluded := false
		for _, pattern := range o.params.Exclude {
			ok, err := doublestar.Match(pattern, rel)
			if err != nil {
				return nil, err
			}
			if ok {
				excluded = true
				break
			}
		}
		if !excluded {
			kept = append(kept, rel)
		}
	}
	return kept, nil
}

func (o *Backup[T]) archiveName() string {
	from := archiveToken(o.CurrentVersion().String())
	to := archiveToken(o.NextVersion().String())
	return fmt.Sprintf("%s-%s-%s.zip", from, to, o.now().UTC().Format("20060102T150405Z"))
}

func archiveToken(s string) string {
	return strings.NewReplacer("/", "_", "\\", "_", " ", "_").Replace(s)
}

// writeArchive zips files, relative to root, into dest. The archive is
// written under a temporary name and renamed once complete.
func writeArchive(ctx context.Context, root, dest string, files []string) (err error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	zw := zip.NewWriter(tmp)
	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := addToArchive(zw, root, rel); err != nil {
			return fmt.Errorf("add %s: %w", rel, err)
		}
	}
	if err := zw.Close(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dest)
}

func addToArchive(zw *zip.Writer, root, rel string) error {
	src, err := os.Open(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		return err
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return err
	}

	fh := zip.FileHeader{Name: rel, Method: zip.Deflate, Modified: info.ModTime()}
	fh.SetMode(info.Mode())
	dst, err := zw.CreateHeader(&fh)
	if err != nil {
		return err
	}
	_, err = io.Copy(dst, src)
	return err
}
