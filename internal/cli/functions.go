package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/maxgio92/sigmatch/internal/logging"
	"github.com/maxgio92/sigmatch/internal/program"
)

func newFunctionsCmd(g *globalFlags) *cobra.Command {
	var noDiscover bool

	cmd := &cobra.Command{
		Use:   "functions <binary>",
		Short: "List the function starts known for a binary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, g)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("no-discover") {
				cfg.Discover = !noDiscover
			}

			prog, err := program.Open(args[0],
				program.WithDiscovery(cfg.Discover),
				program.WithLogger(logging.NewWithComponent(loggingConfig(cfg), "loader")),
			)
			if err != nil {
				return err
			}
			return listFunctions(cmd.OutOrStdout(), prog)
		},
	}
	cmd.Flags().BoolVar(&noDiscover, "no-discover", false, "only use functions from the symbol table")

	return cmd
}

func listFunctions(out io.Writer, prog *program.Program) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "START\tSIZE\tNAME")
	for _, fn := range prog.Functions() {
		_, _ = fmt.Fprintf(w, "0x%X\t%d\t%s\n", fn.Start, fn.End-fn.Start, prog.CurrentName(fn.Start))
	}
	return w.Flush()
}
