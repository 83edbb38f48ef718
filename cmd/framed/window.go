//go:build ebiten

package main

import (
	"image/color"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/spf13/cobra"

	"framed/internal/clock"
	"framed/internal/demo"
	"framed/internal/frame"
	logx "framed/pkg/logx"
)

var (
	windowSpeed float64
	windowTPS   int
)

// windowCmd drives the scheduler from ebiten's game loop instead of a ticker.
var windowCmd = &cobra.Command{
	Use:   "window",
	Short: "open a window and spin the demo consumer on the display clock",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logx.NewConsole("info").With(logx.String("comp", "window"))
		eb := clock.NewEbiten()
		sched := frame.New(eb, eb)
		sp := demo.NewSpinner(windowSpeed, log)
		if _, err := sched.Register(sp); err != nil {
			return err
		}

		fg := color.RGBA{R: 0xe0, G: 0xe0, B: 0xe0, A: 0xff}
		eb.OnDraw = func(screen *ebiten.Image) {
			b := screen.Bounds()
			cx, cy := float32(b.Dx())/2, float32(b.Dy())/2
			r := float32(math.Min(float64(cx), float64(cy)) * 0.8)
			rad := sp.Angle() * math.Pi / 180
			x := cx + r*float32(math.Cos(rad))
			y := cy + r*float32(math.Sin(rad))
			vector.StrokeLine(screen, cx, cy, x, y, 4, fg, true)
		}
		defer func() {
			log.Info("window closed", logx.Int64("revolutions", sp.Revolutions()), logx.Uint64("ticks", sched.Snapshot().Ticks))
		}()
		return eb.Run("framed", 480, 480, windowTPS)
	},
}

func init() {
	rootCmd.AddCommand(windowCmd)
	windowCmd.Flags().Float64Var(&windowSpeed, "speed", 90, "spinner speed in degrees per second")
	windowCmd.Flags().IntVar(&windowTPS, "tps", 60, "ebiten ticks per second")
}
