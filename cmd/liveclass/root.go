package main

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/skillforge/liveclass/internal/config"
	"github.com/skillforge/liveclass/internal/directory"
	"github.com/skillforge/liveclass/internal/metrics"
)

var (
	envFile     string
	apiURL      string
	wsURL       string
	userID      int64
	userName    string
	userRole    string
	output      string
	metricsAddr string
	verbose     bool

	cfg config.Client
)

var rootCmd = &cobra.Command{
	Use:   "liveclass",
	Short: "Browse live classes and join their chat",
	Long: `A terminal client for SkillForge live classes.

List and create live classes, join a class chat, and manage community
join requests and participants.

Quick Start:
  liveclass list                        # List active live classes
  liveclass create "Algebra Basics"     # Create a live class (tutors)
  liveclass join 42                     # Chat in live class 42
  liveclass community requests maths    # Review join requests`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !verbose {
			log.SetOutput(io.Discard)
		}
		var files []string
		if envFile != "" {
			files = append(files, envFile)
		}
		if err := config.LoadDotEnv(files...); err != nil {
			return err
		}
		var err error
		cfg, err = config.LoadClient()
		if err != nil {
			return err
		}

		flags := cmd.Flags()
		if flags.Changed("api-url") {
			cfg.API.BaseURL = apiURL
		}
		if flags.Changed("ws-url") {
			cfg.Channel.BaseURL = wsURL
		}
		if flags.Changed("user-id") {
			cfg.Viewer.ID = userID
		}
		if flags.Changed("user-name") {
			cfg.Viewer.Name = userName
		}
		if flags.Changed("role") {
			cfg.Viewer.Role = userRole
		}
		if flags.Changed("metrics-addr") {
			cfg.MetricsAddr = metricsAddr
		}
		if cfg.MetricsAddr != "" {
			serveMetrics(cfg.MetricsAddr)
		}
		return nil
	},
}

func newDirectory() (*directory.Client, error) {
	return directory.New(cfg.API, cfg.Viewer)
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "metrics server: %v\n", err)
		}
	}()
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&envFile, "env-file", "", "Load settings from this .env file (default ./.env)")
	pf.StringVar(&apiURL, "api-url", "", "REST API base URL (env LIVECLASS_API_URL)")
	pf.StringVar(&wsURL, "ws-url", "", "Realtime base URL (env LIVECLASS_WS_URL)")
	pf.Int64Var(&userID, "user-id", 0, "Your user id (env LIVECLASS_USER_ID)")
	pf.StringVar(&userName, "user-name", "", "Your display name (env LIVECLASS_USER_NAME)")
	pf.StringVar(&userRole, "role", "", "Your role: tutor or student (env LIVECLASS_USER_ROLE)")
	pf.StringVarP(&output, "output", "o", "table", "Output format: table, json or yaml")
	pf.StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
}
