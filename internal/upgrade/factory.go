package upgrade

import (
	"context"
	"errors"
	"fmt"

	"github.com/alexisbeaulieu97/commons/internal/config"
	"github.com/alexisbeaulieu97/commons/internal/logger"
	"github.com/alexisbeaulieu97/commons/internal/version"
	commonserrors "github.com/alexisbeaulieu97/commons/pkg/errors"
)

// ConfigurationSource supplies the upgrade document. *config.Provider is the
// usual implementation.
type ConfigurationSource interface {
	Configuration(ctx context.Context) (*config.Document, error)
}

// PipelineResolver resolves the pipeline that applies to a target.
type PipelineResolver[T any] interface {
	Pipeline(ctx context.Context, uctx Context[T]) (*Pipeline[T], error)
}

// PipelineResolverFunc adapts a function to PipelineResolver.
type PipelineResolverFunc[T any] func(ctx context.Context, uctx Context[T]) (*Pipeline[T], error)

// Pipeline implements PipelineResolver.
func (f PipelineResolverFunc[T]) Pipeline(ctx context.Context, uctx Context[T]) (*Pipeline[T], error) {
	return f(ctx, uctx)
}

// FactoryOptions configures a PipelineFactory.
type FactoryOptions[T any] struct {
	Config   ConfigurationSource
	Versions VersionProvider[T]
	Registry *Registry[T]
	// Pipeline selects a named pipeline of the document. Empty selects the
	// top-level upgrades list.
	Pipeline string
	Logger   *logger.Logger
}

// PipelineFactory builds pipelines from the declarative upgrade list.
type PipelineFactory[T any] struct {
	config   ConfigurationSource
	versions VersionProvider[T]
	registry *Registry[T]
	pipeline string
	log      *logger.Logger
}

// NewPipelineFactory validates opts and returns a factory.
func NewPipelineFactory[T any](opts FactoryOptions[T]) (*PipelineFactory[T], error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("pipeline factory requires a configuration source")
	}
	if opts.Versions == nil {
		return nil, fmt.Errorf("pipeline factory requires a version provider")
	}
	registry := opts.Registry
	if registry == nil {
		registry = NewRegistry[T]()
	}

	log := opts.Logger
	if opts.Pipeline != "" {
		log = log.With("pipeline", opts.Pipeline)
	}

	return &PipelineFactory[T]{
		config:   opts.Config,
		versions: opts.Versions,
		registry: registry,
		pipeline: opts.Pipeline,
		log:      log,
	}, nil
}

type parsedEntry struct {
	entry   config.Entry
	current version.Version
	next    version.Version
}

type builtEntry[T any] struct {
	parsedEntry
	op Operation[T]
}

// Pipeline resolves the target's version and returns every configured
// operation whose currentVersion is at or above it, in declared order,
// followed by the version update. Every entry of the list is built and
// initialized first, so a bad entry fails the build even when the target is
// past it.
func (f *PipelineFactory[T]) Pipeline(ctx context.Context, uctx Context[T]) (*Pipeline[T], error) {
	if uctx == nil {
		return nil, commonserrors.NewConfigurationError("upgrade context is nil", nil)
	}

	current, err := f.versions.GetVersion(ctx, uctx.Target())
	if err != nil {
		if errors.Is(err, version.ErrInvalid) {
			return nil, commonserrors.NewConfigurationError(fmt.Sprintf("stored version of %s is invalid", uctx), err)
		}
		return nil, commonserrors.NewTargetError(uctx.String(), fmt.Errorf("read current version: %w", err))
	}

	built, err := f.build(ctx)
	if err != nil {
		return nil, err
	}

	var selected []builtEntry[T]
	for _, b := range built {
		if b.current.GTE(current) {
			selected = append(selected, b)
		}
	}

	ops := make([]Operation[T], 0, len(selected)+1)
	to := current
	for _, b := range selected {
		ops = append(ops, b.op)
		to = b.next
	}

	if len(selected) > 0 && !recordsVersion(selected[len(selected)-1]) {
		terminal := NewUpdateVersionOperation(f.versions)
		if err := terminal.Init(current, to, nil); err != nil {
			return nil, err
		}
		ops = append(ops, terminal)
	}

	f.log.WithFields(map[string]any{
		"target":     uctx.String(),
		"from":       current.String(),
		"to":         to.String(),
		"operations": len(ops),
	}).Debug("pipeline resolved")

	return &Pipeline[T]{ops: ops, from: current, to: to}, nil
}

// Validate builds and initializes every entry of the configured list without
// executing anything. It returns the number of entries checked.
func (f *PipelineFactory[T]) Validate(ctx context.Context) (int, error) {
	built, err := f.build(ctx)
	if err != nil {
		return 0, err
	}
	return len(built), nil
}

// build loads the configured list and creates and initializes an operation
// for every entry.
func (f *PipelineFactory[T]) build(ctx context.Context) ([]builtEntry[T], error) {
	doc, err := f.config.Configuration(ctx)
	if err != nil {
		if _, ok := commonserrors.KindOf(err); ok {
			return nil, err
		}
		return nil, commonserrors.NewConfigurationError("unable to load upgrade configuration", err)
	}

	entries, err := doc.Entries(f.pipeline)
	if err != nil {
		return nil, commonserrors.NewConfigurationError("unable to resolve upgrade list", err)
	}

	parsed, err := parseEntries(entries)
	if err != nil {
		return nil, err
	}

	built := make([]builtEntry[T], 0, len(parsed))
	for _, p := range parsed {
		op, err := f.create(p.entry.Operation)
		if err != nil {
			return nil, withLine(err, p.entry)
		}
		op.SetEnabled(p.entry.Enabled)
		if err := op.Init(p.current, p.next, p.entry.Params.Clone()); err != nil {
			return nil, withLine(err, p.entry)
		}
		built = append(built, builtEntry[T]{parsedEntry: p, op: op})
	}
	return built, nil
}

func (f *PipelineFactory[T]) create(name string) (Operation[T], error) {
	if name == UpdateVersionName && !f.registry.Has(name) {
		return NewUpdateVersionOperation(f.versions), nil
	}
	return f.registry.Create(name)
}

// recordsVersion reports whether a trailing entry already stores the new
// version. A disabled updateVersion entry does not.
func recordsVersion[T any](b builtEntry[T]) bool {
	return b.entry.Operation == UpdateVersionName && b.entry.Enabled
}

// parseEntries parses every entry and checks the declared order.
func parseEntries(entries []config.Entry) ([]parsedEntry, error) {
	parsed := make([]parsedEntry, 0, len(entries))
	for i, entry := range entries {
		from, err := version.Parse(entry.CurrentVersion)
		if err != nil {
			return nil, withLine(commonserrors.NewConfigurationError(fmt.Sprintf("upgrades[%d]: invalid currentVersion", i), err), entry)
		}
		to, err := version.Parse(entry.NextVersion)
		if err != nil {
			return nil, withLine(commonserrors.NewConfigurationError(fmt.Sprintf("upgrades[%d]: invalid nextVersion", i), err), entry)
		}
		if !from.Less(to) {
			return nil, withLine(commonserrors.NewConfigurationError(
				fmt.Sprintf("upgrades[%d]: nextVersion %s does not follow currentVersion %s", i, to, from), nil), entry)
		}
		if i > 0 && from.Less(parsed[i-1].current) {
			return nil, withLine(commonserrors.NewConfigurationError(
				fmt.Sprintf("upgrades[%d]: entries are not in ascending version order", i), nil), entry)
		}
		parsed = append(parsed, parsedEntry{entry: entry, current: from, next: to})
	}
	return parsed, nil
}

func withLine(err error, entry config.Entry) error {
	if entry.Line == 0 {
		return err
	}
	var upgradeErr *commonserrors.UpgradeError
	if errors.As(err, &upgradeErr) && upgradeErr.Kind == commonserrors.KindConfiguration {
		upgradeErr.Message = fmt.Sprintf("%s (line %d)", upgradeErr.Message, entry.Line)
	}
	return err
}
