package operations

import "github.com/alexisbeaulieu97/commons/internal/upgrade"

// Register adds every built-in operation to registry.
func Register[T any](registry *upgrade.Registry[T]) error {
	builtins := []struct {
		name string
		ctor upgrade.Constructor[T]
	}{
		{BackupName, NewBackup[T]},
		{CopyResourceName, NewCopyResource[T]},
		{DeleteFilesName, NewDeleteFiles[T]},
		{FindReplaceName, NewFindReplace[T]},
		{GitCommitName, NewGitCommit[T]},
		{RenameFileName, NewRenameFile[T]},
	}

	for _, b := range builtins {
		if err := registry.Register(b.name, b.ctor); err != nil {
			return err
		}
	}
	return nil
}
