package metrics

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/commons/internal/upgrade"
)

func TestRecordTarget(t *testing.T) {
	t.Parallel()

	rec := NewRecorder()
	rec.RecordTarget(upgrade.TargetStatus{
		Target:     "alpha",
		State:      upgrade.StateVersionUpdated,
		Operations: []string{"backup", "findReplace", "updateVersion"},
		Operation:  2,
		Duration:   2 * time.Second,
	})
	rec.RecordTarget(upgrade.TargetStatus{
		Target:     "beta",
		State:      upgrade.StateFailed,
		FailedAt:   upgrade.StateOperation,
		Operations: []string{"backup", "findReplace", "updateVersion"},
		Operation:  1,
	})
	rec.RecordTarget(upgrade.TargetStatus{Target: "gamma", State: upgrade.StateUpToDate, Operation: -1})

	require.Equal(t, 1.0, testutil.ToFloat64(rec.targetsTotal.WithLabelValues("version-updated")))
	require.Equal(t, 1.0, testutil.ToFloat64(rec.targetsTotal.WithLabelValues("failed")))
	require.Equal(t, 1.0, testutil.ToFloat64(rec.targetsTotal.WithLabelValues("up-to-date")))

	require.Equal(t, 2.0, testutil.ToFloat64(rec.operationsTotal.WithLabelValues("backup")))
	require.Equal(t, 2.0, testutil.ToFloat64(rec.operationsTotal.WithLabelValues("findReplace")))
	require.Equal(t, 1.0, testutil.ToFloat64(rec.operationsTotal.WithLabelValues("updateVersion")))

	require.Equal(t, 1.0, testutil.ToFloat64(rec.failuresTotal.WithLabelValues("operation", "findReplace")))
}

func TestReportAndTextfile(t *testing.T) {
	t.Parallel()

	rec := NewRecorder()
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	report := &upgrade.Report{
		Started:  started,
		Finished: started.Add(90 * time.Second),
		Targets: []upgrade.TargetStatus{
			{Target: "alpha", State: upgrade.StateFailed},
			{Target: "beta", State: upgrade.StateVersionUpdated},
		},
	}
	for _, status := range report.Targets {
		rec.RecordTarget(status)
	}

	path := filepath.Join(t.TempDir(), "upgrade.prom")
	reporters := upgrade.Reporters{rec, NewTextfile(path, rec.Gatherer())}
	require.NoError(t, reporters.Report(context.Background(), report))

	require.Equal(t, 90.0, testutil.ToFloat64(rec.lastRunDuration))
	require.Equal(t, 1.0, testutil.ToFloat64(rec.lastRunFailed))
	require.Equal(t, float64(report.Finished.Unix()), testutil.ToFloat64(rec.lastRunTimestamp))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `commons_upgrade_targets_total{state="failed"} 1`)
	require.Contains(t, string(data), "commons_upgrade_last_run_duration_seconds 90")
}

func TestTextfileUnwritable(t *testing.T) {
	t.Parallel()

	rec := NewRecorder()
	err := NewTextfile(filepath.Join(t.TempDir(), "missing", "x.prom"), rec.Gatherer()).Report(context.Background(), nil)
	require.ErrorContains(t, err, "write metrics textfile")
}
