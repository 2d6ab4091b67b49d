// Package notify sends upgrade run reports to people.
package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/jordan-wright/email"

	"github.com/alexisbeaulieu97/commons/internal/upgrade"
)

// Mailer delivers one message. Tests substitute a recording mailer.
type Mailer func(ctx context.Context, msg *email.Email) error

// SMTPOptions configures SMTP delivery. Username empty disables auth.
type SMTPOptions struct {
	Addr     string
	Username string
	Password string
}

// SMTP returns a Mailer sending through the server at opts.Addr.
func SMTP(opts SMTPOptions) Mailer {
	return func(ctx context.Context, msg *email.Email) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		var auth smtp.Auth
		if opts.Username != "" {
			host := opts.Addr
			if i := strings.LastIndex(host, ":"); i >= 0 {
				host = host[:i]
			}
			auth = smtp.PlainAuth("", opts.Username, opts.Password, host)
		}
		return msg.Send(opts.Addr, auth)
	}
}

// EmailOptions configures an EmailReporter.
type EmailOptions struct {
	From    string
	To      []string
	Subject string
	// OnlyOnFailure suppresses reports of clean runs.
	OnlyOnFailure bool
	Mailer        Mailer
}

// EmailReporter mails a plain text summary of each run. It implements
// upgrade.Reporter.
type EmailReporter struct {
	opts EmailOptions
}

// NewEmailReporter validates opts.
func NewEmailReporter(opts EmailOptions) (*EmailReporter, error) {
	if opts.Mailer == nil {
		return nil, fmt.Errorf("email reporter requires a mailer")
	}
	if opts.From == "" {
		return nil, fmt.Errorf("email reporter requires a sender address")
	}
	if len(opts.To) == 0 {
		return nil, fmt.Errorf("email reporter requires at least one recipient")
	}
	if opts.Subject == "" {
		opts.Subject = "Upgrade report"
	}
	return &EmailReporter{opts: opts}, nil
}

// Report implements upgrade.Reporter.
func (r *EmailReporter) Report(ctx context.Context, report *upgrade.Report) error {
	if report == nil {
		return nil
	}
	_, _, failed := report.Counts()
	if r.opts.OnlyOnFailure && failed == 0 && report.Err == nil {
		return nil
	}

	if err := r.opts.Mailer(ctx, r.compose(report)); err != nil {
		return fmt.Errorf("send report email: %w", err)
	}
	return nil
}

func (r *EmailReporter) compose(report *upgrade.Report) *email.Email {
	upgraded, upToDate, failed := report.Counts()

	subject := r.opts.Subject
	if failed > 0 || report.Err != nil {
		subject = fmt.Sprintf("[FAILED] %s", subject)
	}

	var body strings.Builder
	fmt.Fprintf(&body, "Run started %s, took %s.\n\n",
		report.Started.UTC().Format(time.RFC3339),
		report.Finished.Sub(report.Started).Round(time.Millisecond))
	fmt.Fprintf(&body, "Targets: %d upgraded, %d up to date, %d failed.\n", upgraded, upToDate, failed)
	if report.Err != nil {
		fmt.Fprintf(&body, "\nThe run aborted: %v\n", report.Err)
	}

	if failures := report.Failures(); len(failures) > 0 {
		body.WriteString("\nFailures:\n")
		for _, status := range failures {
			fmt.Fprintf(&body, "- %s (%s", status.Target, status.FailedAt)
			if op := status.CurrentOperation(); op != "" {
				fmt.Fprintf(&body, ", %s", op)
			}
			fmt.Fprintf(&body, "): %v\n", status.Err)
		}
	}

	body.WriteString("\nTargets:\n")
	for _, status := range report.Targets {
		switch status.State {
		case upgrade.StateVersionUpdated:
			fmt.Fprintf(&body, "- %s: %s -> %s\n", status.Target, status.From, status.To)
		default:
			fmt.Fprintf(&body, "- %s: %s\n", status.Target, status.State)
		}
	}

	msg := email.NewEmail()
	msg.From = r.opts.From
	msg.To = append([]string(nil), r.opts.To...)
	msg.Subject = subject
	msg.Text = []byte(body.String())
	return msg
}
