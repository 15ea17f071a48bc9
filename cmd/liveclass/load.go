package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/skillforge/liveclass/internal/loadtest"
)

var loadRun = loadtest.DefaultConfig()

var loadCmd = &cobra.Command{
	Use:   "load <id>",
	Short: "Load test the chat of a live class",
	Long: `Open many chat connections to one live class, send lines from each and
report connect and echo latency percentiles.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := parseID(args[0]); err != nil {
			return err
		}
		run := loadRun
		run.Channel = cfg.Channel
		run.SessionID = args[0]

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		stats := loadtest.NewCollector()
		err := loadtest.Run(ctx, run, stats)
		stats.Report(cmd.OutOrStdout())
		if err == context.Canceled {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(loadCmd)
	f := loadCmd.Flags()
	f.IntVar(&loadRun.Clients, "clients", loadRun.Clients, "Concurrent connections")
	f.IntVar(&loadRun.Messages, "messages", loadRun.Messages, "Lines sent per connection")
	f.DurationVar(&loadRun.Interval, "interval", loadRun.Interval, "Pause between lines of one connection")
	f.DurationVar(&loadRun.EchoTimeout, "echo-timeout", 5*time.Second, "How long to wait for outstanding echoes")
}
