package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/baxromumarov/job-collector/internal/api"
	"github.com/baxromumarov/job-collector/internal/config"
	"github.com/baxromumarov/job-collector/internal/core"
	"github.com/baxromumarov/job-collector/internal/logging"
	"github.com/baxromumarov/job-collector/internal/version"
)

const shutdownTimeout = 15 * time.Second

type cli struct {
	configPath string
	cfg        config.Config
	logCloser  io.Closer
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "job-collector",
		Short:         "Collect LinkedIn job listings on a schedule and serve them.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return c.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.logCloser != nil {
				c.logCloser.Close()
			}
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", config.DefaultPath, "path to the YAML config file")

	root.AddCommand(c.serveCmd(), c.collectOnceCmd(), c.resetCmd(), versionCmd())
	return root
}

func (c *cli) setup() error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	level, _ := config.ParseLevel(cfg.Log.Level)
	c.logCloser = logging.Setup(logging.Options{
		Level:      level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	})
	c.cfg = cfg
	return nil
}

func (c *cli) serveCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler and the dashboard.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("port") {
				c.cfg.Server.Port = port
			}
			return c.serve(cmd.Context())
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "dashboard port (overrides config)")
	return cmd
}

func (c *cli) serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, c.cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	scheduler := core.NewScheduler(func(ctx context.Context) {
		// Outcomes are reported by the collector's notifier.
		a.collector.RunCycle(ctx)
	}, c.cfg.Schedule.Interval)

	srv := api.NewServer(a.store, scheduler, api.WithTitle(c.cfg.Title()))
	httpServer := &http.Server{
		Addr:              ":" + strconv.Itoa(c.cfg.Server.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if err := scheduler.Start(ctx); err != nil {
		return err
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting server", "port", c.cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err = <-serverErr:
		if err != nil {
			slog.Error("server failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
		slog.Error("server shutdown failed", "error", shutdownErr)
	}
	scheduler.Stop()
	return err
}

func (c *cli) collectOnceCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "collect-once",
		Short: "Run a single collection cycle and exit.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				limit = c.cfg.Search.MaxJobs
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, c.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.collector.Collect(ctx, limit)
			if err != nil {
				return fmt.Errorf("cycle %s failed: %w", res.ID, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "fetched %d, new %d, duplicate %d, enrichment misses %d\n",
				res.Fetched, res.New, res.Duplicate, res.EnrichmentMisses)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum listings to fetch (defaults to search.max_jobs)")
	return cmd
}

func (c *cli) resetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset-data",
		Short: "Delete every stored job record.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.Reset(cmd.Context()); err != nil {
				return err
			}
			slog.Info("store reset", "driver", c.cfg.Storage.Driver)
			fmt.Fprintln(cmd.OutOrStdout(), "stored jobs removed")
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information.",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			version.Print(cmd.OutOrStdout())
		},
	}
}
