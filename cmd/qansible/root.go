package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/qualimetry/qansible/internal/ir"
	"github.com/qualimetry/qansible/internal/shared"
)

var version = "dev"

// Exit codes.
const (
	exitConfig   = 1
	exitFindings = 3
)

// exitError carries a process exit code through cobra.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func configErr(err error) error { return &exitError{code: exitConfig, err: err} }

func exitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 1
}

// globals holds the persistent flags shared by every command.
type globals struct {
	configPath string
	logFormat  string
	logLevel   string
}

// load reads the configuration and installs the logger on stderr so stdout
// stays clean for tables.
func (g *globals) load() (shared.Config, *slog.Logger, error) {
	cfg, err := shared.LoadConfig(g.configPath)
	if err != nil {
		return cfg, nil, configErr(err)
	}
	if g.logFormat != "" {
		cfg.Logging.Format = g.logFormat
	}
	if g.logLevel != "" {
		cfg.Logging.Level = g.logLevel
	}
	return cfg, shared.InitLogger(os.Stderr, cfg.Logging.Format, cfg.Logging.Level), nil
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "qansible",
		Short:         "qansible is a rule-based static analyzer for Ansible playbooks and roles",
		Long:          `qansible checks playbooks, task files and role metadata against a catalog of quality and security rules.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "qansible.yml", "Path to YAML config (optional)")
	root.PersistentFlags().StringVar(&g.logFormat, "log-format", "", "Log format: json or text")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	root.AddCommand(
		newAnalyzeCmd(g),
		newReportCmd(g),
		newDiffCmd(g),
		newRulesCmd(g),
		newProfilesCmd(g),
		newServeCmd(g),
		newWatchCmd(g),
		newUsersCmd(g),
		newWaiversCmd(g),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "qansible %s IR: %s\n", version, ir.Version)
			},
		},
	)
	return root
}
