package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const descriptor = `upgrades:
  - operation: findReplace
    currentVersion: "1.0"
    nextVersion: "1.1"
    pattern: "**/*.conf"
    search: old-host
    replace: new-host
  - operation: renameFile
    currentVersion: "1.1"
    nextVersion: "2.0"
    from: settings.ini
    to: conf/settings.ini
pipelines:
  legacy:
    upgrades:
      - operation: deleteFiles
        currentVersion: "0.9"
        nextVersion: "1.0"
        paths: install.php
`

type workspace struct {
	config string
	sites  string
}

func newWorkspace(t *testing.T, doc string) *workspace {
	t.Helper()

	dir := t.TempDir()
	ws := &workspace{config: filepath.Join(dir, "upgrades.yaml"), sites: filepath.Join(dir, "sites")}
	require.NoError(t, os.WriteFile(ws.config, []byte(doc), 0o644))
	require.NoError(t, os.MkdirAll(ws.sites, 0o755))
	return ws
}

// addSite creates a site with the given files; an empty at leaves it
// without a version record.
func (w *workspace) addSite(t *testing.T, name, at string, files map[string]string) {
	t.Helper()

	root := filepath.Join(w.sites, name)
	require.NoError(t, os.MkdirAll(root, 0o755))
	for rel, content := range files {
		full := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	if at != "" {
		w.write(t, name, ".upgrade/version.yaml", "version: \""+at+"\"\n")
	}
}

func (w *workspace) write(t *testing.T, site, rel, content string) {
	t.Helper()
	full := filepath.Join(w.sites, site, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func (w *workspace) read(t *testing.T, site, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(w.sites, site, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

func (w *workspace) exists(site, rel string) bool {
	_, err := os.Stat(filepath.Join(w.sites, site, filepath.FromSlash(rel)))
	return err == nil
}

func (w *workspace) args(cmd string, extra ...string) []string {
	return append([]string{cmd, "--config", w.config, "--targets-dir", w.sites, "--log-format", "json"}, extra...)
}

func execute(t *testing.T, args []string) (string, string, error) {
	t.Helper()

	root := newRootCmd()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(errOut)
	root.SetArgs(args)

	err := root.Execute()
	return out.String(), errOut.String(), err
}

func standardSites(t *testing.T, w *workspace) {
	t.Helper()
	w.addSite(t, "alpha", "", map[string]string{
		"app.conf":     "db=old-host\n",
		"settings.ini": "[main]\n",
	})
	w.addSite(t, "beta", "1.1", map[string]string{
		"app.conf":     "db=old-host\n",
		"settings.ini": "[main]\n",
	})
	w.addSite(t, "gamma", "2.0", map[string]string{"app.conf": "db=old-host\n"})
}
