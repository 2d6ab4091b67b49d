package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	commonserrors "github.com/alexisbeaulieu97/commons/pkg/errors"
)

func TestValidateCommand(t *testing.T) {
	t.Parallel()

	ws := newWorkspace(t, descriptor)
	out, _, err := execute(t, ws.args("validate"))
	require.NoError(t, err)
	require.Contains(t, out, "upgrades: 2 step(s) OK")
	require.Contains(t, out, "pipeline legacy: 1 step(s) OK")
}

func TestValidateCommandReportsBadStep(t *testing.T) {
	t.Parallel()

	ws := newWorkspace(t, `upgrades:
  - operation: findReplace
    currentVersion: "1.0"
    nextVersion: "1.1"
    pattern: "*.conf"
`)
	_, _, err := execute(t, ws.args("validate"))
	require.True(t, commonserrors.IsKind(err, commonserrors.KindConfiguration), "got %v", err)
	require.ErrorContains(t, err, "(line 2)")
	require.ErrorContains(t, err, "search")
}

func TestPlanCommandChangesNothing(t *testing.T) {
	t.Parallel()

	ws := newWorkspace(t, descriptor)
	standardSites(t, ws)

	out, _, err := execute(t, ws.args("plan", "--default-version", "1.0"))
	require.NoError(t, err)
	require.Contains(t, out, "findReplace, renameFile, updateVersion")
	require.Contains(t, out, "renameFile, updateVersion")
	require.Contains(t, out, "up to date")

	require.Equal(t, "db=old-host\n", ws.read(t, "alpha", "app.conf"))
	require.False(t, ws.exists("alpha", ".upgrade/version.yaml"))
}

func TestPlanCommandWithoutDefaultVersion(t *testing.T) {
	t.Parallel()

	ws := newWorkspace(t, descriptor)
	ws.addSite(t, "alpha", "", nil)

	out, _, err := execute(t, ws.args("plan"))
	require.ErrorContains(t, err, "1 site(s) could not be planned")
	require.Contains(t, out, "no version recorded")
}

func TestUpgradeCommand(t *testing.T) {
	t.Parallel()

	ws := newWorkspace(t, descriptor)
	standardSites(t, ws)
	metricsFile := filepath.Join(t.TempDir(), "upgrade.prom")

	out, _, err := execute(t, ws.args("upgrade", "--default-version", "1.0", "--metrics-file", metricsFile))
	require.NoError(t, err)
	require.Contains(t, out, "2 upgraded, 1 up to date, 0 failed")

	require.Equal(t, "db=new-host\n", ws.read(t, "alpha", "app.conf"))
	require.Equal(t, "[main]\n", ws.read(t, "alpha", "conf/settings.ini"))
	require.Contains(t, ws.read(t, "alpha", ".upgrade/version.yaml"), `version: "2.0"`)

	// beta starts at 1.1, so its conf file is left alone.
	require.Equal(t, "db=old-host\n", ws.read(t, "beta", "app.conf"))
	require.Equal(t, "[main]\n", ws.read(t, "beta", "conf/settings.ini"))
	require.Contains(t, ws.read(t, "beta", ".upgrade/version.yaml"), `version: "2.0"`)

	require.Equal(t, "db=old-host\n", ws.read(t, "gamma", "app.conf"))

	data, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	require.Contains(t, string(data), `commons_upgrade_targets_total{state="version-updated"} 2`)

	// A second run finds everything current.
	out, _, err = execute(t, ws.args("upgrade", "--default-version", "1.0"))
	require.NoError(t, err)
	require.Contains(t, out, "0 upgraded, 3 up to date, 0 failed")
}

func TestUpgradeCommandContinuesPastFailures(t *testing.T) {
	t.Parallel()

	ws := newWorkspace(t, descriptor)
	standardSites(t, ws)
	require.NoError(t, os.Remove(filepath.Join(ws.sites, "beta", "settings.ini")))

	out, _, err := execute(t, ws.args("upgrade", "--default-version", "1.0"))
	require.ErrorContains(t, err, "1 site(s) failed to upgrade")
	require.Contains(t, out, "1 upgraded, 1 up to date, 1 failed")
	require.Contains(t, out, "operation (renameFile)")

	require.Contains(t, ws.read(t, "alpha", ".upgrade/version.yaml"), `version: "2.0"`)
	require.Contains(t, ws.read(t, "beta", ".upgrade/version.yaml"), `version: "1.1"`)
}

func TestUpgradeCommandAbortOnFailure(t *testing.T) {
	t.Parallel()

	ws := newWorkspace(t, descriptor)
	standardSites(t, ws)
	require.NoError(t, os.Remove(filepath.Join(ws.sites, "alpha", "settings.ini")))

	_, _, err := execute(t, ws.args("upgrade", "--default-version", "1.0", "--abort-on-failure"))
	require.True(t, commonserrors.IsKind(err, commonserrors.KindTarget), "got %v", err)

	// alpha's first step ran before the failure; beta was never attempted.
	require.Equal(t, "db=new-host\n", ws.read(t, "alpha", "app.conf"))
	require.False(t, ws.exists("alpha", ".upgrade/version.yaml"))
	require.Contains(t, ws.read(t, "beta", ".upgrade/version.yaml"), `version: "1.1"`)
}

func TestUpgradeCommandNamedSites(t *testing.T) {
	t.Parallel()

	ws := newWorkspace(t, descriptor)
	standardSites(t, ws)

	out, _, err := execute(t, ws.args("upgrade", "--default-version", "1.0", "beta"))
	require.NoError(t, err)
	require.Contains(t, out, "1 upgraded, 0 up to date, 0 failed")
	require.Equal(t, "db=old-host\n", ws.read(t, "alpha", "app.conf"))

	_, _, err = execute(t, ws.args("upgrade", "--default-version", "1.0", "delta"))
	require.True(t, commonserrors.IsKind(err, commonserrors.KindEnumeration), "got %v", err)
	require.ErrorContains(t, err, `no site named "delta"`)
}

func TestUpgradeCommandNamedPipeline(t *testing.T) {
	t.Parallel()

	ws := newWorkspace(t, descriptor)
	ws.addSite(t, "legacy", "0.9", map[string]string{"install.php": "<?php"})

	_, _, err := execute(t, ws.args("upgrade", "--pipeline", "legacy"))
	require.NoError(t, err)
	require.False(t, ws.exists("legacy", "install.php"))
	require.Contains(t, ws.read(t, "legacy", ".upgrade/version.yaml"), `version: "1.0"`)
}

func TestUnknownSource(t *testing.T) {
	t.Parallel()

	ws := newWorkspace(t, descriptor)
	_, _, err := execute(t, ws.args("validate", "--source", "ftp"))
	require.ErrorContains(t, err, `unknown source "ftp"`)

	_, _, err = execute(t, ws.args("validate", "--source", "s3"))
	require.ErrorContains(t, err, "--s3-bucket is required")
}
