package resource

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLoaderReadsFilesUnderRoot(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "templates"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "templates", "site.xml"), []byte("<site/>"), 0o644))

	loader := NewFileLoader(root)
	data, err := ReadAll(context.Background(), loader, "templates/site.xml")
	require.NoError(t, err)
	require.Equal(t, "<site/>", string(data))
}

func TestFileLoaderMissingFileIsNotFound(t *testing.T) {
	t.Parallel()

	loader := NewFileLoader(t.TempDir())
	_, err := loader.Open(context.Background(), "missing.yaml")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFileLoaderRefusesTraversal(t *testing.T) {
	t.Parallel()

	loader := NewFileLoader(t.TempDir())
	_, err := loader.Open(context.Background(), "../etc/passwd")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNotFound)
	require.Contains(t, err.Error(), "escapes")
}

func TestFileLoaderRejectsDirectories(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "dir"), 0o755))

	_, err := NewFileLoader(root).Open(context.Background(), "dir")
	require.Error(t, err)
	require.Contains(t, err.Error(), "directory")
}

func TestGitLoaderReadsCommittedContentOnly(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	path := filepath.Join(dir, "upgrade", "pipelines.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("upgrades: []\n"), 0o644))

	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("upgrade/pipelines.yaml")
	require.NoError(t, err)
	_, err = wt.Commit("add pipelines", &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("dirty"), 0o644))

	loader, err := OpenGitLoader(dir, "")
	require.NoError(t, err)

	data, err := ReadAll(context.Background(), loader, "upgrade/pipelines.yaml")
	require.NoError(t, err)
	require.Equal(t, "upgrades: []\n", string(data))

	_, err = loader.Open(context.Background(), "upgrade/missing.yaml")
	require.ErrorIs(t, err, ErrNotFound)
}

type getObjectFunc func(context.Context, *s3.GetObjectInput, ...func(*s3.Options)) (*s3.GetObjectOutput, error)

func (f getObjectFunc) GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	return f(ctx, in, opts...)
}

func TestS3LoaderJoinsPrefixAndKey(t *testing.T) {
	t.Parallel()

	var gotBucket, gotKey string
	client := getObjectFunc(func(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
		gotBucket = aws.ToString(in.Bucket)
		gotKey = aws.ToString(in.Key)
		return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewBufferString("payload"))}, nil
	})

	loader := NewS3Loader(client, "cms-config", "/upgrade/")
	data, err := ReadAll(context.Background(), loader, "pipelines.yaml")
	require.NoError(t, err)
	require.Equal(t, "payload", string(data))
	require.Equal(t, "cms-config", gotBucket)
	require.Equal(t, "upgrade/pipelines.yaml", gotKey)
}

func TestS3LoaderMapsNoSuchKeyToNotFound(t *testing.T) {
	t.Parallel()

	client := getObjectFunc(func(context.Context, *s3.GetObjectInput, ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
		return nil, &types.NoSuchKey{}
	})

	_, err := NewS3Loader(client, "bucket", "").Open(context.Background(), "missing.yaml")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestS3LoaderPropagatesOtherFailures(t *testing.T) {
	t.Parallel()

	boom := errors.New("access denied")
	client := getObjectFunc(func(context.Context, *s3.GetObjectInput, ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
		return nil, boom
	})

	_, err := NewS3Loader(client, "bucket", "").Open(context.Background(), "pipelines.yaml")
	require.ErrorIs(t, err, boom)
	require.NotErrorIs(t, err, ErrNotFound)
}

func TestCachingLoaderReadsUnderlyingOnce(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	next := LoaderFunc(func(context.Context, string) (io.ReadCloser, error) {
		calls.Add(1)
		time.Sleep(10 * time.Millisecond)
		return io.NopCloser(bytes.NewBufferString("cached")), nil
	})
	loader := NewCachingLoader(next)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			data, err := ReadAll(context.Background(), loader, "a.txt")
			assert.NoError(t, err)
			assert.Equal(t, "cached", string(data))
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), calls.Load())
	require.Equal(t, 1, loader.Len())

	loader.Invalidate()
	_, err := ReadAll(context.Background(), loader, "a.txt")
	require.NoError(t, err)
	require.Equal(t, int32(2), calls.Load())
}

func TestCachingLoaderDoesNotCacheFailures(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	next := LoaderFunc(func(_ context.Context, name string) (io.ReadCloser, error) {
		if calls.Add(1) == 1 {
			return nil, notFound(name, nil)
		}
		return io.NopCloser(bytes.NewBufferString("late")), nil
	})
	loader := NewCachingLoader(next)

	_, err := loader.Open(context.Background(), "b.txt")
	require.ErrorIs(t, err, ErrNotFound)

	data, err := ReadAll(context.Background(), loader, "b.txt")
	require.NoError(t, err)
	require.Equal(t, "late", string(data))
}
