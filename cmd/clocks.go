package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/smazurov/audiocard/internal/board"
	"github.com/smazurov/audiocard/internal/clock"
	"github.com/smazurov/audiocard/internal/dai"
)

// CreateClocksCmd creates the clocks command.
func CreateClocksCmd() *cobra.Command {
	var boardFile string
	var rate int

	cmd := &cobra.Command{
		Use:   "clocks",
		Short: "Print the clock table",
		Long: `Prints the MCLK candidates of the board clock table in priority order. ` +
			`With --rate, prints the candidates and the rate-class clock for one sample rate.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			profile, err := board.Load(boardFile)
			if err != nil {
				return err
			}
			table := profile.Table()
			if rate > 0 {
				return printRate(cmd.OutOrStdout(), table, rate)
			}
			return printTable(cmd.OutOrStdout(), table)
		},
	}

	cmd.Flags().StringVarP(&boardFile, "board", "b", "", "Board profile (YAML); built-in Shuttle profile when empty")
	cmd.Flags().IntVarP(&rate, "rate", "r", 0, "Only show this sample rate")
	return cmd
}

func printTable(out io.Writer, table *clock.Table) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RATE\tMCLK\tRATIO")
	for _, rate := range table.Rates() {
		for _, mclk := range table.Candidates(rate) {
			fmt.Fprintf(tw, "%d\t%d\t%d\n", rate, mclk, mclk/rate)
		}
	}
	return tw.Flush()
}

func printRate(out io.Writer, table *clock.Table, rate int) error {
	candidates := table.Candidates(rate)
	if len(candidates) == 0 {
		fmt.Fprintf(out, "rate %d: no table entry (hifi falls back to %d)\n", rate, dai.DefaultHiFiSysClk)
	} else {
		fmt.Fprintf(out, "rate %d: candidates %v\n", rate, candidates)
	}
	base, err := clock.RateClassMCLK(rate)
	if err != nil {
		fmt.Fprintf(out, "rate %d: outside the 44.1k and 48k families\n", rate)
		return nil
	}
	fmt.Fprintf(out, "rate %d: rate-class mclk %d (bt-sco floor %d, spdif floor %d)\n",
		rate, base, rate*clock.BTSCOOversampling, rate*clock.SPDIFOversampling)
	return nil
}
