package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/actuallystonmai/availability-service/internal/config"
	"github.com/actuallystonmai/availability-service/internal/domain"
	"github.com/actuallystonmai/availability-service/internal/handler"
	"github.com/actuallystonmai/availability-service/internal/logging"
	"github.com/actuallystonmai/availability-service/internal/repository"
	"github.com/actuallystonmai/availability-service/internal/router"
	"github.com/actuallystonmai/availability-service/seeds"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := &config.Config{}

	rootCmd := &cobra.Command{
		Use:          "server",
		Short:        "Streaming availability service",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("load .env: %w", err)
			}
			loaded, err := config.Load()
			if err != nil {
				return err
			}
			*cfg = *loaded
			logging.Init(logging.Config{
				Level:      cfg.Log.Level,
				Format:     cfg.Log.Format,
				File:       cfg.Log.File,
				MaxSizeMB:  cfg.Log.MaxSizeMB,
				MaxBackups: cfg.Log.MaxBackups,
			})
			return nil
		},
	}

	serveCmd := newServeCmd(cfg)
	rootCmd.RunE = serveCmd.RunE

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(newMigrateCmd(cfg))
	rootCmd.AddCommand(newSeedCmd(cfg))
	rootCmd.AddCommand(newResolveCmd(cfg))
	rootCmd.AddCommand(newClicksCmd(cfg))

	return rootCmd
}

func newServeCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	// ------------ PostgreSQL ---------------
	var store *repository.Repository
	if cfg.Database.URL != "" {
		pool, err := openDB(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := migrateUp(ctx, pool); err != nil {
			return fmt.Errorf("migrate up: %w", err)
		}
		store = repository.New(pool)
	} else {
		logging.Warn().Msg("no DATABASE_URL, preferences and click tracking disabled")
	}

	// ------------ Engine ---------------
	eng, err := buildEngine(ctx, cfg, store)
	if err != nil {
		return err
	}
	defer eng.Close()

	// ------------ Scheduled jobs ---------------
	jobs, err := scheduleJobs(cfg.Cache, eng)
	if err != nil {
		return err
	}
	jobs.Start()
	defer func() {
		<-jobs.Stop().Done()
	}()

	// ---------------- Server --------------------
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router.Setup(handler.NewHandler(eng.service), cfg.Server.Timeout),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", srv.Addr).Strs("sources", sourceNames(eng.service.Sources())).Msg("server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	logging.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// scheduleJobs registers the cache sweep and the periodic stats log line.
func scheduleJobs(cfg config.CacheConfig, eng *engine) (*cron.Cron, error) {
	c := cron.New()
	log := logging.WithComponent("cache")

	if _, err := c.AddFunc(cfg.SweepSchedule, func() {
		if n := eng.aggregator.Sweep(); n > 0 {
			log.Debug().Int("removed", n).Msg("swept expired entries")
		}
	}); err != nil {
		return nil, fmt.Errorf("schedule sweep %q: %w", cfg.SweepSchedule, err)
	}

	if _, err := c.AddFunc(cfg.StatsSchedule, func() {
		s := eng.aggregator.CacheStats()
		log.Info().
			Int("size", s.Size).
			Int64("hits", s.Hits).
			Int64("misses", s.Misses).
			Int64("evictions", s.Evictions).
			Float64("hit_rate", s.HitRate).
			Msg("cache stats")
	}); err != nil {
		return nil, fmt.Errorf("schedule stats %q: %w", cfg.StatsSchedule, err)
	}
	return c, nil
}

func newMigrateCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate <up|down>",
		Short:     "Apply or drop the database schema",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pool, err := openDB(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer pool.Close()

			if args[0] == "down" {
				return migrateDown(ctx, pool)
			}
			return migrateUp(ctx, pool)
		},
	}
}

func newSeedCmd(cfg *config.Config) *cobra.Command {
	var users int
	var force bool

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert demo user preferences",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pool, err := openDB(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer pool.Close()

			repo := repository.New(pool)
			if !force {
				count, err := repo.CountPreferences(ctx)
				if err != nil {
					return fmt.Errorf("check preferences count: %w", err)
				}
				if count > 0 {
					logging.Info().Int("users", count).Msg("database already seeded, skipping")
					return nil
				}
			}
			return seeds.Setup(ctx, pool, repo, users)
		},
	}

	cmd.Flags().IntVarP(&users, "users", "n", 20, "Number of users to seed")
	cmd.Flags().BoolVar(&force, "force", false, "Reseed even if preferences exist")

	return cmd
}

func newResolveCmd(cfg *config.Config) *cobra.Command {
	var userID int64
	var externalID string

	cmd := &cobra.Command{
		Use:   "resolve <movie|series> <contentID> <title>",
		Short: "Look up one title and print the result as JSON",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			kind, err := domain.ParseMediaKind(args[0])
			if err != nil {
				return err
			}
			contentID, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid content id %q: %w", args[1], err)
			}

			var store *repository.Repository
			if userID > 0 {
				pool, err := openDB(ctx, cfg.Database)
				if err != nil {
					return err
				}
				defer pool.Close()
				store = repository.New(pool)
			}

			eng, err := buildEngine(ctx, cfg, store)
			if err != nil {
				return err
			}
			defer eng.Close()

			res, err := eng.service.ResolveForUser(ctx, domain.LookupRequest{
				ContentID:  contentID,
				Title:      args[2],
				MediaKind:  kind,
				ExternalID: externalID,
			}, userID)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}

	cmd.Flags().Int64VarP(&userID, "user", "u", 0, "Apply this user's saved preferences")
	cmd.Flags().StringVar(&externalID, "external-id", "", "Catalog id such as an IMDb id")

	return cmd
}

func newClicksCmd(cfg *config.Config) *cobra.Command {
	var since time.Duration

	cmd := &cobra.Command{
		Use:   "clicks <contentID>",
		Short: "Show outbound click counts for a title",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			contentID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid content id %q: %w", args[0], err)
			}

			pool, err := openDB(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer pool.Close()

			counts, err := repository.New(pool).ClickCounts(ctx, contentID, time.Now().Add(-since))
			if err != nil {
				return err
			}
			return printJSON(cmd, counts)
		},
	}

	cmd.Flags().DurationVar(&since, "since", 24*time.Hour, "Look back this far")

	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return err
}

func sourceNames(sources []domain.Source) []string {
	names := make([]string, len(sources))
	for i, s := range sources {
		names[i] = string(s)
	}
	return names
}
