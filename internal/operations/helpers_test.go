package operations

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/commons/internal/config"
	"github.com/alexisbeaulieu97/commons/internal/upgrade"
	"github.com/alexisbeaulieu97/commons/internal/version"
)

func initOp(t *testing.T, op upgrade.Operation[string], params config.Params) upgrade.Operation[string] {
	t.Helper()
	require.NoError(t, op.Init(version10, version11, params))
	return op
}

func siteContext(dir string) *upgrade.BasicContext[string] {
	return upgrade.NewBasicContext("alpha", "site alpha").WithWorkDir(dir)
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		full := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
}

func readFile(t *testing.T, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

func requireMissing(t *testing.T, root, rel string) {
	t.Helper()
	_, err := os.Stat(filepath.Join(root, filepath.FromSlash(rel)))
	require.ErrorIs(t, err, os.ErrNotExist)
}

var (
	version10 = version.MustParse("1.0")
	version11 = version.MustParse("1.1")
)
