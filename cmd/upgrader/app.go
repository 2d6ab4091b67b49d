package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/alexisbeaulieu97/commons/internal/config"
	"github.com/alexisbeaulieu97/commons/internal/logger"
	"github.com/alexisbeaulieu97/commons/internal/operations"
	"github.com/alexisbeaulieu97/commons/internal/resource"
	"github.com/alexisbeaulieu97/commons/internal/sites"
	"github.com/alexisbeaulieu97/commons/internal/upgrade"
	"github.com/alexisbeaulieu97/commons/internal/versionstore"
)

const (
	sourceFile = "file"
	sourceGit  = "git"
	sourceS3   = "s3"

	storeFile = "file"
	storeS3   = "s3"

	logFormatAuto    = "auto"
	logFormatConsole = "console"
	logFormatJSON    = "json"
)

// app bundles the services a command needs, built from the root flags.
type app struct {
	flags    *rootFlags
	log      *logger.Logger
	loader   resource.Loader
	provider *config.Provider
	registry *upgrade.Registry[sites.Site]
	versions upgrade.VersionProvider[sites.Site]
	targets  *sites.Directory
	contexts *sites.Contexts

	s3client *s3.Client
}

func newApp(cmd *cobra.Command, flags *rootFlags) (*app, error) {
	ctx := cmd.Context()

	log, err := newLogger(cmd.ErrOrStderr(), flags)
	if err != nil {
		return nil, fmt.Errorf("configure logging: %w", err)
	}

	a := &app{flags: flags, log: log}

	loader, path, err := a.descriptorSource(ctx)
	if err != nil {
		return nil, err
	}
	a.loader = resource.NewCachingLoader(loader)
	a.provider = config.NewProvider(a.loader, path, log)

	a.registry = upgrade.NewRegistry[sites.Site]()
	if err := operations.Register(a.registry); err != nil {
		return nil, err
	}

	if a.versions, err = a.versionStore(ctx); err != nil {
		return nil, err
	}

	if a.targets, err = sites.NewDirectory(sites.Options{
		Root:    flags.targetsDir,
		Include: flags.include,
		Exclude: flags.exclude,
	}); err != nil {
		return nil, err
	}
	a.contexts = sites.NewContexts(a.loader, log)

	return a, nil
}

func newLogger(w io.Writer, flags *rootFlags) (*logger.Logger, error) {
	human := false
	switch flags.logFormat {
	case logFormatConsole:
		human = true
	case logFormatJSON:
	case logFormatAuto, "":
		human = isTerminal(w)
	default:
		return nil, fmt.Errorf("unknown log format %q", flags.logFormat)
	}
	return logger.New(logger.Options{
		Level:         flags.logLevel,
		HumanReadable: human,
		Writer:        w,
		Component:     "upgrader",
	})
}

func isTerminal(w io.Writer) bool {
	if file, ok := w.(*os.File); ok {
		return term.IsTerminal(int(file.Fd()))
	}
	return false
}

// descriptorSource returns the loader serving the descriptor and resources,
// and the descriptor's name within it.
func (a *app) descriptorSource(ctx context.Context) (resource.Loader, string, error) {
	switch a.flags.source {
	case sourceFile, "":
		abs, err := filepath.Abs(a.flags.configPath)
		if err != nil {
			return nil, "", fmt.Errorf("resolve config path: %w", err)
		}
		return resource.NewFileLoader(filepath.Dir(abs)), filepath.Base(abs), nil
	case sourceGit:
		loader, err := resource.OpenGitLoader(a.flags.gitRepo, a.flags.gitRevision)
		if err != nil {
			return nil, "", err
		}
		return loader, a.flags.configPath, nil
	case sourceS3:
		client, err := a.s3(ctx)
		if err != nil {
			return nil, "", err
		}
		return resource.NewS3Loader(client, a.flags.s3.bucket, a.flags.s3.prefix), a.flags.configPath, nil
	default:
		return nil, "", fmt.Errorf("unknown source %q (want file, git or s3)", a.flags.source)
	}
}

func (a *app) versionStore(ctx context.Context) (upgrade.VersionProvider[sites.Site], error) {
	switch a.flags.versionStore {
	case storeFile, "":
		store, err := versionstore.NewFileStore(versionstore.FileOptions[sites.Site]{
			Dir:            sites.Dir,
			DefaultVersion: a.flags.defaultVersion,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case storeS3:
		client, err := a.s3(ctx)
		if err != nil {
			return nil, err
		}
		store, err := versionstore.NewS3Store(client, versionstore.S3Options[sites.Site]{
			Bucket:         a.flags.s3.bucket,
			Prefix:         a.flags.versionPrefix,
			Key:            sites.Key,
			DefaultVersion: a.flags.defaultVersion,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown version store %q (want file or s3)", a.flags.versionStore)
	}
}

func (a *app) s3(ctx context.Context) (*s3.Client, error) {
	if a.s3client != nil {
		return a.s3client, nil
	}
	if strings.TrimSpace(a.flags.s3.bucket) == "" {
		return nil, fmt.Errorf("--s3-bucket is required")
	}
	client, err := resource.NewS3Client(ctx, resource.S3Options{
		Profile:   a.flags.s3.profile,
		Region:    a.flags.s3.region,
		Endpoint:  a.flags.s3.endpoint,
		PathStyle: a.flags.s3.pathStyle,
	})
	if err != nil {
		return nil, err
	}
	a.s3client = client
	return client, nil
}

func (a *app) factory(pipeline string) (*upgrade.PipelineFactory[sites.Site], error) {
	return upgrade.NewPipelineFactory(upgrade.FactoryOptions[sites.Site]{
		Config:   a.provider,
		Versions: a.versions,
		Registry: a.registry,
		Pipeline: pipeline,
		Logger:   a.log,
	})
}

// selectTargets restricts the site directory to names, failing on unknown
// names so typos do not silently skip a site.
func (a *app) selectTargets(names []string) upgrade.TargetSource[sites.Site] {
	if len(names) == 0 {
		return a.targets
	}
	return upgrade.TargetSourceFunc[sites.Site](func(ctx context.Context) ([]sites.Site, error) {
		all, err := a.targets.Targets(ctx)
		if err != nil {
			return nil, err
		}
		byName := make(map[string]sites.Site, len(all))
		for _, s := range all {
			byName[s.Name] = s
		}
		selected := make([]sites.Site, 0, len(names))
		for _, name := range names {
			s, ok := byName[name]
			if !ok {
				return nil, fmt.Errorf("no site named %q under %s", name, a.targets.Root())
			}
			selected = append(selected, s)
		}
		return selected, nil
	})
}
