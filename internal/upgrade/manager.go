package upgrade

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alexisbeaulieu97/commons/internal/logger"
	commonserrors "github.com/alexisbeaulieu97/commons/pkg/errors"
)

// TargetSource enumerates the targets a manager upgrades.
type TargetSource[T any] interface {
	Targets(ctx context.Context) ([]T, error)
}

// TargetSourceFunc adapts a function to TargetSource.
type TargetSourceFunc[T any] func(ctx context.Context) ([]T, error)

// Targets implements TargetSource.
func (f TargetSourceFunc[T]) Targets(ctx context.Context) ([]T, error) {
	return f(ctx)
}

// Options configures a Manager.
type Options[T any] struct {
	Targets   TargetSource[T]
	Contexts  ContextFactory[T]
	Pipelines PipelineResolver[T]
	// ContinueOnFailure defaults to true when nil.
	ContinueOnFailure *bool
	Logger            *logger.Logger
	Recorder          Recorder
	Reporter          Reporter
}

// Bool returns a pointer to v, for optional settings such as
// Options.ContinueOnFailure.
func Bool(v bool) *bool {
	return &v
}

// Manager runs upgrades over a set of targets, one at a time.
type Manager[T any] struct {
	targets           TargetSource[T]
	contexts          ContextFactory[T]
	pipelines         PipelineResolver[T]
	continueOnFailure bool
	log               *logger.Logger
	recorder          Recorder
	reporter          Reporter

	mu   sync.Mutex
	last *Report
}

// NewManager validates opts and returns a manager.
func NewManager[T any](opts Options[T]) (*Manager[T], error) {
	if opts.Contexts == nil {
		return nil, fmt.Errorf("upgrade manager requires a context factory")
	}
	if opts.Pipelines == nil {
		return nil, fmt.Errorf("upgrade manager requires a pipeline resolver")
	}

	continueOnFailure := true
	if opts.ContinueOnFailure != nil {
		continueOnFailure = *opts.ContinueOnFailure
	}

	return &Manager[T]{
		targets:           opts.Targets,
		contexts:          opts.Contexts,
		pipelines:         opts.Pipelines,
		continueOnFailure: continueOnFailure,
		log:               opts.Logger,
		recorder:          opts.Recorder,
		reporter:          opts.Reporter,
	}, nil
}

// ContinueOnFailure reports the per-target failure policy.
func (m *Manager[T]) ContinueOnFailure() bool {
	return m.continueOnFailure
}

// Targets lists the targets to upgrade. Failures are KindEnumeration errors.
func (m *Manager[T]) Targets(ctx context.Context) ([]T, error) {
	if m.targets == nil {
		return nil, commonserrors.NewEnumerationError(fmt.Errorf("no target source configured"))
	}
	targets, err := m.targets.Targets(ctx)
	if err != nil {
		return nil, commonserrors.NewEnumerationError(err)
	}
	return targets, nil
}

// Upgrade runs the pipeline resolved for target. When the manager continues
// on failure, errors are logged and recorded and nil is returned; otherwise
// the failure is returned as a KindTarget error.
func (m *Manager[T]) Upgrade(ctx context.Context, target T) error {
	report := &Report{Started: time.Now()}
	status, err := m.upgradeTarget(ctx, target)
	report.Targets = append(report.Targets, status)
	report.Finished = time.Now()

	if err != nil && !m.continueOnFailure {
		report.Err = targetError(status.Target, err)
		m.setLast(report)
		return report.Err
	}
	m.setLast(report)
	return nil
}

// UpgradeAll enumerates the targets and upgrades each in order. Enumeration
// failures always abort the run. A target failure aborts it only when the
// manager does not continue on failure.
func (m *Manager[T]) UpgradeAll(ctx context.Context) error {
	report := &Report{Started: time.Now()}
	defer func() {
		report.Finished = time.Now()
		m.setLast(report)
		m.publish(ctx, report)
	}()

	targets, err := m.Targets(ctx)
	if err != nil {
		m.log.Error(err, "unable to enumerate upgrade targets")
		report.Err = err
		return err
	}

	m.log.With("targets", len(targets)).Info("starting upgrade run")

	for _, target := range targets {
		if err := ctx.Err(); err != nil {
			report.Err = err
			m.log.Warn("upgrade run cancelled")
			return err
		}

		status, err := m.upgradeTarget(ctx, target)
		report.Targets = append(report.Targets, status)
		if err != nil && !m.continueOnFailure {
			report.Err = targetError(status.Target, err)
			return report.Err
		}
	}

	upgraded, upToDate, failed := report.Counts()
	m.log.WithFields(map[string]any{
		"upgraded":   upgraded,
		"up_to_date": upToDate,
		"failed":     failed,
	}).Info("upgrade run finished")
	return nil
}

// LastReport returns the report of the most recent Upgrade or UpgradeAll.
func (m *Manager[T]) LastReport() *Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

func (m *Manager[T]) upgradeTarget(ctx context.Context, target T) (TargetStatus, error) {
	start := time.Now()
	status := TargetStatus{Target: fmt.Sprint(target), State: StateNotStarted, Operation: -1}

	finish := func(err error) (TargetStatus, error) {
		status.Duration = time.Since(start)
		log := m.log.With("target", status.Target)
		if err != nil {
			status.FailedAt = status.State
			status.State = StateFailed
			status.Err = err
			if m.continueOnFailure {
				log.Error(err, "target upgrade failed, continuing")
			} else {
				log.Error(err, "target upgrade failed")
			}
		} else {
			log.With("state", string(status.State)).Info("target upgrade finished")
		}
		if m.recorder != nil {
			m.recorder.RecordTarget(status)
		}
		return status, err
	}

	uctx, err := m.contexts.NewContext(ctx, target)
	if err != nil {
		return finish(fmt.Errorf("build upgrade context: %w", err))
	}
	if uctx == nil {
		return finish(fmt.Errorf("build upgrade context: context factory returned nil"))
	}
	status.Target = uctx.String()
	status.State = StateContextBuilt

	pipeline, err := m.pipelines.Pipeline(ctx, uctx)
	if err != nil {
		return finish(err)
	}
	status.State = StatePipelineResolved
	status.From = pipeline.From().String()
	status.To = pipeline.To().String()
	status.Operations = pipeline.Names()

	if pipeline.Empty() {
		status.State = StateUpToDate
		return finish(nil)
	}

	err = pipeline.ExecuteObserved(ctx, uctx, func(index int, _ Operation[T]) {
		status.State = StateOperation
		status.Operation = index
	})
	if err != nil {
		return finish(err)
	}

	status.State = StateVersionUpdated
	return finish(nil)
}

// targetError wraps err as a KindTarget error unless it already is one.
func targetError(target string, err error) error {
	if kind, ok := commonserrors.KindOf(err); ok && kind == commonserrors.KindTarget {
		return err
	}
	return commonserrors.NewTargetError(target, err)
}

func (m *Manager[T]) setLast(report *Report) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = report
}

func (m *Manager[T]) publish(ctx context.Context, report *Report) {
	if m.reporter == nil {
		return
	}
	if err := m.reporter.Report(ctx, report); err != nil {
		m.log.Error(err, "unable to publish upgrade report")
	}
}
