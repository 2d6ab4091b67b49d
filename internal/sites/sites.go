// Package sites treats the subdirectories of a root directory as upgrade
// targets.
package sites

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar"

	"github.com/alexisbeaulieu97/commons/internal/logger"
	"github.com/alexisbeaulieu97/commons/internal/resource"
	"github.com/alexisbeaulieu97/commons/internal/upgrade"
)

// Site is one upgrade target: a named directory.
type Site struct {
	Name string
	Dir  string
}

func (s Site) String() string { return s.Name }

// Dir maps a site to its directory, for versionstore.FileOptions.
func Dir(s Site) string { return s.Dir }

// Key maps a site to its name, for versionstore.S3Options.
func Key(s Site) string { return s.Name }

// Options selects the sites under Root. Include and Exclude are glob
// patterns matched against site names; an empty Include selects every site.
type Options struct {
	Root    string
	Include []string
	Exclude []string
}

// Directory enumerates sites as the non-hidden subdirectories of a root, in
// lexical order.
type Directory struct {
	root    string
	include []string
	exclude []string
}

// NewDirectory returns a Directory listing opts.Root.
func NewDirectory(opts Options) (*Directory, error) {
	if strings.TrimSpace(opts.Root) == "" {
		return nil, fmt.Errorf("sites root directory is required")
	}
	return &Directory{root: opts.Root, include: opts.Include, exclude: opts.Exclude}, nil
}

// Root returns the directory sites are listed from.
func (d *Directory) Root() string {
	return d.root
}

// Targets implements upgrade.TargetSource.
func (d *Directory) Targets(ctx context.Context) ([]Site, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, fmt.Errorf("read sites directory: %w", err)
	}

	sites := make([]Site, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		selected, err := d.selected(name)
		if err != nil {
			return nil, err
		}
		if selected {
			sites = append(sites, Site{Name: name, Dir: filepath.Join(d.root, name)})
		}
	}
	return sites, nil
}

func (d *Directory) selected(name string) (bool, error) {
	if len(d.include) > 0 {
		ok, err := matchAny(d.include, name)
		if err != nil || !ok {
			return false, err
		}
	}
	excluded, err := matchAny(d.exclude, name)
	return !excluded, err
}

func matchAny(patterns []string, name string) (bool, error) {
	for _, pattern := range patterns {
		ok, err := doublestar.Match(pattern, name)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Contexts builds upgrade contexts for sites. Every context shares one
// resource loader and logger.
type Contexts struct {
	loader resource.Loader
	log    *logger.Logger
}

// NewContexts returns a factory handing out loader and log.
func NewContexts(loader resource.Loader, log *logger.Logger) *Contexts {
	return &Contexts{loader: loader, log: log}
}

// NewContext implements upgrade.ContextFactory.
func (c *Contexts) NewContext(_ context.Context, site Site) (upgrade.Context[Site], error) {
	info, err := os.Stat(site.Dir)
	if err != nil {
		return nil, fmt.Errorf("site %s: %w", site.Name, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("site %s: %s is not a directory", site.Name, site.Dir)
	}

	return upgrade.NewBasicContext(site, "site "+site.Name).
		WithWorkDir(site.Dir).
		WithLoader(c.loader).
		WithLogger(c.log), nil
}
