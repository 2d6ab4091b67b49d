package main

import (
	"github.com/spf13/cobra"
)

type s3Flags struct {
	bucket    string
	prefix    string
	region    string
	profile   string
	endpoint  string
	pathStyle bool
}

type emailFlags struct {
	to            []string
	from          string
	subject       string
	smtpAddr      string
	smtpUser      string
	onlyOnFailure bool
}

type rootFlags struct {
	configPath  string
	source      string
	gitRepo     string
	gitRevision string
	s3          s3Flags

	targetsDir string
	include    []string
	exclude    []string
	pipeline   string

	versionStore   string
	versionPrefix  string
	defaultVersion string

	abortOnFailure bool
	logLevel       string
	logFormat      string
	metricsFile    string
	email          emailFlags
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "upgrader",
		Short:         "Upgrade directories of sites through declarative version steps",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "upgrades.yaml", "Upgrade descriptor, relative to the source for git and s3")
	pf.StringVar(&flags.source, "source", sourceFile, "Where the descriptor and resources live: file, git or s3")
	pf.StringVar(&flags.gitRepo, "git-repo", ".", "Local repository read by --source git")
	pf.StringVar(&flags.gitRevision, "git-revision", "HEAD", "Revision read by --source git")
	pf.StringVar(&flags.s3.bucket, "s3-bucket", "", "Bucket for --source s3 and --version-store s3")
	pf.StringVar(&flags.s3.prefix, "s3-prefix", "", "Key prefix of the descriptor and resources in the bucket")
	pf.StringVar(&flags.s3.region, "s3-region", "", "AWS region")
	pf.StringVar(&flags.s3.profile, "aws-profile", "", "AWS shared configuration profile")
	pf.StringVar(&flags.s3.endpoint, "s3-endpoint", "", "Custom S3 endpoint")
	pf.BoolVar(&flags.s3.pathStyle, "s3-path-style", false, "Use path-style S3 addressing")

	pf.StringVarP(&flags.targetsDir, "targets-dir", "t", ".", "Directory whose subdirectories are the sites to upgrade")
	pf.StringSliceVar(&flags.include, "include", nil, "Only sites matching these globs")
	pf.StringSliceVar(&flags.exclude, "exclude", nil, "Skip sites matching these globs")
	pf.StringVarP(&flags.pipeline, "pipeline", "p", "", "Named pipeline of the descriptor; empty uses the top-level upgrades")

	pf.StringVar(&flags.versionStore, "version-store", storeFile, "Where site versions are kept: file or s3")
	pf.StringVar(&flags.versionPrefix, "version-prefix", "versions", "Key prefix of version records for --version-store s3")
	pf.StringVar(&flags.defaultVersion, "default-version", "", "Version assumed for sites without a record")

	pf.StringVar(&flags.logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	pf.StringVar(&flags.logFormat, "log-format", logFormatAuto, "Log format: auto, console or json")

	cmd.AddCommand(newUpgradeCmd(flags))
	cmd.AddCommand(newPlanCmd(flags))
	cmd.AddCommand(newValidateCmd(flags))
	cmd.AddCommand(newVersionCmd())

	return cmd
}
