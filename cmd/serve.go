package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/sentiment-cli/internal/api"
	"github.com/sells-group/sentiment-cli/internal/sched"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server and background ingestion jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: api.NewServer(env.Store, env.Surveys).Router(),
		}

		scheduler := sched.New()
		scheduler.Add(sched.Job{
			Name:     "social-scrape",
			Interval: time.Duration(cfg.Social.IntervalSecs) * time.Second,
			Run: func(ctx context.Context) error {
				stats, err := env.SocialRun.Run(ctx)
				if err != nil {
					return err
				}
				zap.L().Info("social scrape complete",
					zap.Int("fetched", stats.Fetched),
					zap.Int("inserted", stats.Inserted),
					zap.Int("duplicates", stats.Duplicates),
					zap.Int("skipped", stats.Skipped),
				)
				return nil
			},
		})
		scheduler.Add(sched.Job{
			Name:     "trend-ingest",
			Interval: time.Duration(cfg.Trends.IntervalSecs) * time.Second,
			Run: func(ctx context.Context) error {
				points, err := env.TrendsRun.Run(ctx)
				if err != nil {
					return err
				}
				zap.L().Info("trend ingest complete", zap.Int64("points", points))
				return nil
			},
		})

		g, ctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			zap.L().Info("starting server", zap.Int("port", port))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})

		g.Go(func() error {
			scheduler.Run(ctx)
			return nil
		})

		g.Go(func() error {
			env.Monitor.Run(ctx)
			return nil
		})

		g.Go(func() error {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})

		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
