package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alexisbeaulieu97/commons/internal/metrics"
	"github.com/alexisbeaulieu97/commons/internal/notify"
	"github.com/alexisbeaulieu97/commons/internal/sites"
	"github.com/alexisbeaulieu97/commons/internal/upgrade"
)

const smtpPasswordEnv = "UPGRADER_SMTP_PASSWORD"

func newUpgradeCmd(root *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upgrade [site...]",
		Short: "Run the pending upgrade steps of every site, or of the named sites",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpgrade(cmd, root, args)
		},
	}

	f := cmd.Flags()
	f.BoolVar(&root.abortOnFailure, "abort-on-failure", false, "Stop at the first site that fails instead of continuing")
	f.StringVar(&root.metricsFile, "metrics-file", "", "Write prometheus metrics to this textfile after the run")
	f.StringSliceVar(&root.email.to, "report-email", nil, "Mail the run report to these addresses")
	f.StringVar(&root.email.from, "report-email-from", "upgrader@localhost", "Sender of the report email")
	f.StringVar(&root.email.subject, "report-email-subject", "", "Subject of the report email")
	f.StringVar(&root.email.smtpAddr, "smtp-addr", "localhost:25", "SMTP server host:port")
	f.StringVar(&root.email.smtpUser, "smtp-user", "", "SMTP username; the password is read from "+smtpPasswordEnv)
	f.BoolVar(&root.email.onlyOnFailure, "report-only-on-failure", false, "Only mail the report when a site failed")

	return cmd
}

func runUpgrade(cmd *cobra.Command, flags *rootFlags, names []string) error {
	a, err := newApp(cmd, flags)
	if err != nil {
		return err
	}

	factory, err := a.factory(flags.pipeline)
	if err != nil {
		return err
	}

	recorder := metrics.NewRecorder()
	reporters := upgrade.Reporters{recorder}
	if flags.metricsFile != "" {
		reporters = append(reporters, metrics.NewTextfile(flags.metricsFile, recorder.Gatherer()))
	}
	if len(flags.email.to) > 0 {
		reporter, err := notify.NewEmailReporter(notify.EmailOptions{
			From:          flags.email.from,
			To:            flags.email.to,
			Subject:       flags.email.subject,
			OnlyOnFailure: flags.email.onlyOnFailure,
			Mailer:        notify.SMTP(notify.SMTPOptions{
				Addr:     flags.email.smtpAddr,
				Username: flags.email.smtpUser,
				Password: os.Getenv(smtpPasswordEnv),
			}),
		})
		if err != nil {
			return err
		}
		reporters = append(reporters, reporter)
	}

	manager, err := upgrade.NewManager(upgrade.Options[sites.Site]{
		Targets:           a.selectTargets(names),
		Contexts:          a.contexts,
		Pipelines:         factory,
		ContinueOnFailure: upgrade.Bool(!flags.abortOnFailure),
		Logger:            a.log,
		Recorder:          recorder,
		Reporter:          reporters,
	})
	if err != nil {
		return err
	}

	runErr := manager.UpgradeAll(cmd.Context())
	report := manager.LastReport()
	renderReport(cmd.OutOrStdout(), report)

	if runErr != nil {
		return runErr
	}
	if _, _, failed := report.Counts(); failed > 0 {
		return fmt.Errorf("%d site(s) failed to upgrade", failed)
	}
	return nil
}
