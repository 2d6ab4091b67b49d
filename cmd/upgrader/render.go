package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/alexisbeaulieu97/commons/internal/upgrade"
)

var (
	primaryColor = lipgloss.Color("99")  // Purple
	successColor = lipgloss.Color("42")  // Green
	warningColor = lipgloss.Color("226") // Yellow
	errorColor   = lipgloss.Color("196") // Red
	mutedColor   = lipgloss.Color("245") // Gray

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().Padding(0, 1)

	summaryStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			MarginTop(1)
)

func stateStyle(state upgrade.State) lipgloss.Style {
	switch state {
	case upgrade.StateVersionUpdated:
		return cellStyle.Foreground(successColor)
	case upgrade.StateUpToDate:
		return cellStyle.Foreground(mutedColor)
	case upgrade.StateFailed:
		return cellStyle.Foreground(errorColor).Bold(true)
	default:
		return cellStyle.Foreground(warningColor)
	}
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(mutedColor)).
		Headers(headers...)
}

// renderReport prints one row per target and a summary line.
func renderReport(w io.Writer, report *upgrade.Report) {
	if report == nil {
		return
	}

	fmt.Fprintln(w, titleStyle.Render("Upgrade report"))

	if len(report.Targets) > 0 {
		rows := make([][]string, 0, len(report.Targets))
		for _, status := range report.Targets {
			rows = append(rows, []string{
				status.Target,
				string(status.State),
				valueOrDash(status.From),
				valueOrDash(status.To),
				valueOrDash(failurePoint(status)),
				status.Duration.Round(time.Millisecond).String(),
				errorText(status.Err),
			})
		}

		t := newTable("TARGET", "STATE", "FROM", "TO", "FAILED AT", "DURATION", "ERROR").
			Rows(rows...).
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return headerStyle
				}
				if col == 1 {
					return stateStyle(report.Targets[row].State)
				}
				return cellStyle
			})
		fmt.Fprintln(w, t.Render())
	}

	upgraded, upToDate, failed := report.Counts()
	summary := fmt.Sprintf("%d upgraded, %d up to date, %d failed in %s",
		upgraded, upToDate, failed, report.Finished.Sub(report.Started).Round(time.Millisecond))
	if report.Err != nil {
		summary += fmt.Sprintf("; run aborted: %v", report.Err)
	}
	fmt.Fprintln(w, summaryStyle.Render(summary))
}

func failurePoint(status upgrade.TargetStatus) string {
	if !status.Failed() {
		return ""
	}
	if op := status.CurrentOperation(); op != "" {
		return fmt.Sprintf("%s (%s)", status.FailedAt, op)
	}
	return string(status.FailedAt)
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	// Keep table rows on one line.
	return strings.ReplaceAll(err.Error(), "\n", " ")
}

func valueOrDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
