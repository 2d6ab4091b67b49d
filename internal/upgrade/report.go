package upgrade

import (
	"context"
	"errors"
	"time"
)

// State is the position of one target in its upgrade run.
type State string

const (
	StateNotStarted       State = "not-started"
	StateContextBuilt     State = "context-built"
	StatePipelineResolved State = "pipeline-resolved"
	StateOperation        State = "operation"
	StateVersionUpdated   State = "version-updated"
	// StateUpToDate is terminal for targets whose pipeline resolved empty.
	StateUpToDate State = "up-to-date"
	StateFailed   State = "failed"
)

// TargetStatus is the outcome of one target's upgrade.
type TargetStatus struct {
	Target string
	State  State
	From   string
	To     string
	// Operations lists the resolved pipeline in execution order.
	Operations []string
	// Operation is the index of the last operation started, or -1.
	Operation int
	// FailedAt is the state the target was in when it failed.
	FailedAt State
	Err      error
	Duration time.Duration
}

// Failed reports whether the target ended in StateFailed.
func (s TargetStatus) Failed() bool {
	return s.State == StateFailed
}

// CurrentOperation returns the name of the last operation started.
func (s TargetStatus) CurrentOperation() string {
	if s.Operation < 0 || s.Operation >= len(s.Operations) {
		return ""
	}
	return s.Operations[s.Operation]
}

// Report collects the statuses of one manager run.
type Report struct {
	Started  time.Time
	Finished time.Time
	Targets  []TargetStatus
	// Err is set when the run itself aborted.
	Err error
}

// Failures returns the statuses of failed targets.
func (r *Report) Failures() []TargetStatus {
	if r == nil {
		return nil
	}
	var out []TargetStatus
	for _, status := range r.Targets {
		if status.Failed() {
			out = append(out, status)
		}
	}
	return out
}

// Counts returns how many targets were upgraded, already current and failed.
func (r *Report) Counts() (upgraded, upToDate, failed int) {
	if r == nil {
		return 0, 0, 0
	}
	for _, status := range r.Targets {
		switch status.State {
		case StateVersionUpdated:
			upgraded++
		case StateUpToDate:
			upToDate++
		case StateFailed:
			failed++
		}
	}
	return upgraded, upToDate, failed
}

// Recorder observes finished targets, typically to export metrics.
type Recorder interface {
	RecordTarget(status TargetStatus)
}

// Reporter receives the report at the end of a full run.
type Reporter interface {
	Report(ctx context.Context, report *Report) error
}

// Reporters fans a report out to several reporters. Every reporter runs even
// when an earlier one fails.
type Reporters []Reporter

// Report implements Reporter.
func (rs Reporters) Report(ctx context.Context, report *Report) error {
	var errs []error
	for _, r := range rs {
		if r == nil {
			continue
		}
		if err := r.Report(ctx, report); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
