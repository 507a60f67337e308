// Package cli implements the sigmatch command line.
package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/maxgio92/sigmatch/internal/config"
	"github.com/maxgio92/sigmatch/internal/logging"
)

// Set at build time with -ldflags "-X".
var (
	Version   = "dev"
	GitCommit = "unknown"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	logLevel string
	pretty   bool
}

func (g *globalFlags) addFlags(flags *pflag.FlagSet) {
	flags.StringVar(&g.logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	flags.BoolVar(&g.pretty, "pretty", true, "human-readable log output")
}

// apply overrides cfg with the flags the user actually set.
func (g *globalFlags) apply(flags *pflag.FlagSet, cfg *config.Config) {
	if flags.Changed("log-level") {
		cfg.LogLevel = g.logLevel
	}
	if flags.Changed("pretty") {
		cfg.LogPretty = g.pretty
	}
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:   "sigmatch",
		Short: "Name functions in a binary by matching byte signatures",
		Long: `sigmatch scans every mapped byte of a binary for a list of byte
signatures. Each signature that matches exactly at the start of a function
renames that function; later matches never override earlier ones.

Signature files are JSON or YAML objects mapping a name to a pattern such as
"55 48 89 E5 ?? ?? 48 83 EC", where ?? matches any byte.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	g.addFlags(root.PersistentFlags())

	root.AddCommand(newScanCmd(g))
	root.AddCommand(newFunctionsCmd(g))
	root.AddCommand(newVersionCmd())

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("sigmatch version %s\n", Version)
			cmd.Printf("Git commit: %s\n", GitCommit)
			cmd.Printf("Go version: %s\n", runtime.Version())
		},
	}
}

// loadConfig resolves the environment configuration and applies the
// persistent flags.
func loadConfig(cmd *cobra.Command, g *globalFlags) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to load configuration: %w", err)
	}
	g.apply(cmd.Flags(), &cfg)
	return cfg, nil
}

// loggingConfig derives logger settings from cfg on top of the logging
// defaults.
func loggingConfig(cfg config.Config) logging.Config {
	lc := logging.DefaultConfig()
	lc.Level = cfg.LogLevel
	lc.Pretty = cfg.LogPretty
	return lc
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
