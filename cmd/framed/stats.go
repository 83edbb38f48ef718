package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"framed/internal/app"
	logx "framed/pkg/logx"
)

var statsLimit int

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "print recently stored frame statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := app.OpenStore(cfgPath, logx.Nop())
		if err != nil {
			return err
		}
		if st == nil {
			return fmt.Errorf("storage is disabled in %s", cfgPath)
		}
		defer st.Close()

		samples, err := st.RecentSamples(context.Background(), statsLimit)
		if err != nil {
			return err
		}
		if len(samples) == 0 {
			cmd.Println("no samples stored yet")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "WHEN\tFRAMES\tFPS\tAVG\tMAX\tJANK\tREGISTRATIONS")
		for _, s := range samples {
			fmt.Fprintf(w, "%s\t%s\t%s\t%sms\t%sms\t%d\t%d\n",
				humanize.Time(s.At),
				humanize.Comma(int64(s.Frames)),
				humanize.FtoaWithDigits(s.FPS, 1),
				humanize.FtoaWithDigits(s.AvgDelta*1000, 2),
				humanize.FtoaWithDigits(s.MaxDelta*1000, 2),
				s.Jank,
				s.Registrations,
			)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().IntVarP(&statsLimit, "limit", "n", 20, "number of samples to show (0 = all retained)")
}
