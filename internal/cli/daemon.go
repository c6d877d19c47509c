package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/aravindh-murugesan/snapsentry-go/internal/api"
	"github.com/gin-gonic/gin"
	"github.com/go-co-op/gocron-ui/server"
	"github.com/go-co-op/gocron/v2"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var daemonCommand = &cobra.Command{
	Use:     "daemon",
	Short:   "Run Snapsentry in daemon mode",
	GroupID: "snapsentry",
	Long:    `Starts Snapsentry as a background service that reconciles every volume on a fixed tick interval. It also serves the policy registration API, prometheus metrics and the scheduler dashboard.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		banner := fmt.Sprintf("Snapsentry - Daemon Mode \n\nVersion: %s\nBuild Date: %s", SnapsentryVersion, SnapsentryDate)
		fmt.Println(headerStyle.Render(banner))

		ctx := cmd.Context()
		rt, err := newRuntime(ctx, cfg)
		if err != nil {
			return err
		}
		dlog := rt.logger.With("component", "daemon")

		s, err := gocron.NewScheduler()
		if err != nil {
			return fmt.Errorf("failed to create scheduler: %w", err)
		}

		// Declared first so the task closure can report the next run.
		var tickJob gocron.Job

		tickJob, err = s.NewJob(
			gocron.DurationJob(cfg.TickInterval),
			gocron.NewTask(func() {
				summary := rt.tick(ctx, cfg)

				if tickJob != nil {
					if nextRun, err := tickJob.NextRun(); err == nil {
						dlog.Info("Reconciliation tick finished",
							"snapsentry_id", summary.RunID,
							"next_run", nextRun.Format(time.RFC3339),
							"job_id", tickJob.ID())
					}
				}
			}),
			gocron.WithName("Snapshot Reconciliation"),
			// A slow tick pushes the next one back instead of overlapping it.
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
			gocron.WithStartAt(gocron.WithStartImmediately()),
		)
		if err != nil {
			return fmt.Errorf("failed to schedule reconciliation: %w", err)
		}

		s.Start()
		dlog.Info("Scheduler started",
			"job_name", tickJob.Name(),
			"job_id", tickJob.ID(),
			"tick_interval", cfg.TickInterval.String(),
			"policy_source", rt.store.SourceName())

		gin.SetMode(gin.ReleaseMode)
		apiServer := api.NewServer(cfg.APIAddress, rt.store,
			api.WithDatastore(rt.datastore),
			api.WithMetricsHandler(rt.metrics.Handler()),
		)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			dlog.Info("Policy API started", "address", cfg.APIAddress)
			return apiServer.Run(gctx)
		})
		g.Go(func() error {
			return serveDashboard(gctx, s, cfg.UIAddress)
		})
		g.Go(func() error {
			<-gctx.Done()
			dlog.Warn("Shutting down scheduler...")
			return s.Shutdown()
		})

		return g.Wait()
	},
}

// serveDashboard runs the gocron-ui scheduler dashboard until ctx is done.
func serveDashboard(ctx context.Context, s gocron.Scheduler, address string) error {
	_, portText, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("invalid ui-address %q: %w", address, err)
	}
	port, err := strconv.Atoi(portText)
	if err != nil {
		return fmt.Errorf("invalid ui-address port %q: %w", portText, err)
	}

	srv := server.NewServer(s, port, server.WithTitle("Snapsentry Go - Dashboard"))
	httpServer := &http.Server{
		Addr:              address,
		Handler:           srv.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("scheduler dashboard: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}

func init() {
	rootCommand.AddCommand(daemonCommand)
	daemonCommand.Flags().Duration("tick-interval", 10*time.Minute, "Time between reconciliation ticks")
	daemonCommand.Flags().String("api-address", "0.0.0.0:8081", "Address to bind the policy API and /metrics")
	daemonCommand.Flags().String("ui-address", "0.0.0.0:8080", "Address to bind the scheduler dashboard")

	for _, name := range []string{"tick-interval", "api-address", "ui-address"} {
		_ = v.BindPFlag(name, daemonCommand.Flags().Lookup(name))
	}
}
