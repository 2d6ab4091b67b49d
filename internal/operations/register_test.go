package operations

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/commons/internal/upgrade"
)

func TestRegister(t *testing.T) {
	t.Parallel()

	registry := upgrade.NewRegistry[string]()
	require.NoError(t, Register(registry))
	require.Equal(t, []string{
		BackupName,
		CopyResourceName,
		DeleteFilesName,
		FindReplaceName,
		GitCommitName,
		RenameFileName,
	}, registry.Names())

	for _, name := range registry.Names() {
		op, err := registry.Create(name)
		require.NoError(t, err)
		require.Equal(t, name, op.Name())
		require.True(t, op.Enabled())
	}

	require.Error(t, Register(registry), "registering twice collides")
}
