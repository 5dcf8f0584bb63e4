package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/smazurov/audiocard/internal/board"
	"github.com/smazurov/audiocard/internal/card"
	"github.com/smazurov/audiocard/internal/dai"
	"github.com/smazurov/audiocard/internal/events"
)

// NegotiateOptions is a dry-run negotiation request.
type NegotiateOptions struct {
	Board     string
	Link      string
	Rate      int
	Channels  int
	Master    *bool
	RejectPLL []int
}

// Negotiate probes a card on simulated hardware, runs hw_params on one link
// and removes the card again.
func Negotiate(out io.Writer, opts NegotiateOptions) (dai.Result, error) {
	profile, err := board.Load(opts.Board)
	if err != nil {
		return dai.Result{}, err
	}
	if opts.Master != nil {
		found := false
		for i := range profile.Links {
			if profile.Links[i].Name == opts.Link {
				profile.Links[i].Master = *opts.Master
				found = true
			}
		}
		if !found {
			return dai.Result{}, fmt.Errorf("board %q has no link %q", profile.Name, opts.Link)
		}
	}

	hw := NewSimHardware()
	hw.Codec.RejectPLL(opts.RejectPLL...)

	c, err := card.New(card.Config{Profile: profile, Hardware: hw.Hardware(), Bus: events.New()})
	if err != nil {
		return dai.Result{}, err
	}
	if err := c.Probe(); err != nil {
		return dai.Result{}, err
	}
	defer func() { _ = c.Remove() }()

	res, err := c.HWParams(opts.Link, dai.Params{Rate: opts.Rate, Channels: opts.Channels})
	if err != nil {
		return dai.Result{}, err
	}

	codec := hw.Codec.Snapshot()
	fmt.Fprintf(out, "link:     %s\n", opts.Link)
	fmt.Fprintf(out, "rate:     %d\n", opts.Rate)
	fmt.Fprintf(out, "format:   %s\n", res.Format)
	fmt.Fprintf(out, "mclk:     %d\n", res.MCLK)
	fmt.Fprintf(out, "sys_clk:  %d\n", res.SysClk)
	fmt.Fprintf(out, "min_mclk: %d\n", res.MinMCLK)
	if codec.PLLIn != 0 {
		fmt.Fprintf(out, "pll:      %d -> %d\n", codec.PLLIn, codec.PLLOut)
	}
	return res, nil
}

// CreateNegotiateCmd creates the negotiate command.
func CreateNegotiateCmd() *cobra.Command {
	var opts NegotiateOptions
	var master bool

	cmd := &cobra.Command{
		Use:   "negotiate",
		Short: "Dry-run a link negotiation on simulated hardware",
		Long: `Probes the card against simulated hardware, runs hw_params on one link ` +
			`and prints the clocks chosen. --reject-pll makes the codec PLL refuse the given outputs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("master") {
				opts.Master = &master
			}
			cmd.SilenceUsage = true
			_, err := Negotiate(cmd.OutOrStdout(), opts)
			return err
		},
	}

	cmd.Flags().StringVarP(&opts.Board, "board", "b", "", "Board profile (YAML); built-in Shuttle profile when empty")
	cmd.Flags().StringVarP(&opts.Link, "link", "l", "hifi", "Link to negotiate (hifi, bt-sco, spdif)")
	cmd.Flags().IntVarP(&opts.Rate, "rate", "r", 48000, "Sample rate in Hz")
	cmd.Flags().IntVar(&opts.Channels, "channels", 2, "Channel count")
	cmd.Flags().BoolVar(&master, "master", false, "Override whether the codec is bit-clock master")
	cmd.Flags().IntSliceVar(&opts.RejectPLL, "reject-pll", nil, "Codec PLL output frequencies to refuse")
	return cmd
}
