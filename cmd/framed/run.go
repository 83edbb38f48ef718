package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"framed/internal/app"
)

var stopTimeout time.Duration

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "run the frame loop until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.NewApp(cfgPath)
		if err != nil {
			return err
		}

		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigs)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		if err := a.Start(ctx); err != nil {
			stop(a, app.StopFatalError)
			return err
		}

		var reason app.StopReason
		select {
		case sig := <-sigs:
			reason = app.StopSIGINT
			if sig == syscall.SIGTERM {
				reason = app.StopSIGTERM
			}
		case <-a.Done():
			reason = app.StopFatalError
		}
		stop(a, reason)
		return a.Err()
	},
}

func stop(a *app.App, reason app.StopReason) {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	_ = a.Stop(ctx, reason)
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().DurationVar(&stopTimeout, "stop-timeout", 10*time.Second,
		"upper bound for graceful shutdown")
}
