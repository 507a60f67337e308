package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/maxgio92/sigmatch"
	"github.com/maxgio92/sigmatch/internal/config"
	"github.com/maxgio92/sigmatch/internal/logging"
	"github.com/maxgio92/sigmatch/internal/program"
)

type scanFlags struct {
	output              string
	progressInterval    int
	cancelCheckInterval int
	noDiscover          bool
}

func (f *scanFlags) addFlags(flags *pflag.FlagSet) {
	flags.StringVarP(&f.output, "output", "o", "", "write applied renames to a .json or .yaml symbol map")
	flags.IntVar(&f.progressInterval, "progress-interval", 100, "signatures between progress reports")
	flags.IntVar(&f.cancelCheckInterval, "cancel-check-interval", 4096, "matches between cancellation checks (0 checks between signatures only)")
	flags.BoolVar(&f.noDiscover, "no-discover", false, "only use functions from the symbol table")
}

func (f *scanFlags) apply(flags *pflag.FlagSet, cfg *config.Config) {
	if flags.Changed("output") {
		cfg.Output = f.output
	}
	if flags.Changed("progress-interval") {
		cfg.ProgressInterval = f.progressInterval
	}
	if flags.Changed("cancel-check-interval") {
		cfg.CancelCheckInterval = f.cancelCheckInterval
	}
	if flags.Changed("no-discover") {
		cfg.Discover = !f.noDiscover
	}
}

func newScanCmd(g *globalFlags) *cobra.Command {
	f := &scanFlags{}

	cmd := &cobra.Command{
		Use:   "scan <binary> <signatures>",
		Short: "Rename functions that match a signature file",
		Long: `Load an ELF binary, run every signature over its mapped memory and rename
each function whose start matches. Press Ctrl-C to stop early; renames
applied so far are kept and written to --output.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, g)
			if err != nil {
				return err
			}
			f.apply(cmd.Flags(), &cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runScan(ctx, cfg, args[0], args[1], cmd.OutOrStdout())
		},
	}
	f.addFlags(cmd.Flags())

	return cmd
}

func runScan(ctx context.Context, cfg config.Config, binPath, sigPath string, out io.Writer) error {
	logCfg := loggingConfig(cfg)
	logger := logging.NewWithComponent(logCfg, "cli")

	sigs, err := sigmatch.LoadSignatures(sigPath)
	if err != nil {
		return err
	}

	prog, err := program.Open(binPath,
		program.WithDiscovery(cfg.Discover),
		program.WithLogger(logging.NewWithComponent(logCfg, "loader")),
	)
	if err != nil {
		return err
	}

	scanner := sigmatch.NewScanner(prog,
		sigmatch.WithLogger(logging.NewWithComponent(logCfg, "scanner")),
		sigmatch.WithProgressInterval(cfg.ProgressInterval),
		sigmatch.WithCancelCheckInterval(cfg.CancelCheckInterval),
		sigmatch.WithProgress(logProgress(logger)),
	)

	res, err := scanner.Scan(ctx, sigs)
	if err != nil {
		return err
	}

	printSummary(out, res)

	if cfg.Output != "" {
		if err := writeSymbolMap(cfg.Output, res.Assignments); err != nil {
			return err
		}
		logger.Info().Str("path", cfg.Output).Int("entries", len(res.Assignments)).Msg("Wrote symbol map")
	}
	return nil
}

// logProgress reports scan progress at info level so it shows with the
// default configuration.
func logProgress(logger zerolog.Logger) func(sigmatch.Progress) {
	return func(p sigmatch.Progress) {
		logger.Info().Int("done", p.Done).Int("total", p.Total).Msg(p.String())
	}
}

func printSummary(out io.Writer, res sigmatch.ScanResult) {
	if res.Completed {
		_, _ = color.New(color.FgGreen).Fprintf(out, "Renamed %d functions\n", res.Renamed)
	} else {
		_, _ = color.New(color.FgYellow).Fprintf(out, "Cancelled after %d/%d signatures, renamed %d functions\n",
			res.Signatures, res.Total, res.Renamed)
	}
	if res.Rejected > 0 {
		_, _ = color.New(color.FgRed).Fprintf(out, "%d renames rejected\n", res.Rejected)
	}
	_, _ = fmt.Fprintf(out, "%d matches across %d signatures\n", res.Matches, res.Signatures)
}
