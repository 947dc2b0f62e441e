// Command matchctl is the Matchday operations CLI.
//
// Usage:
//
//	matchctl migrate
//	matchctl sweep
//	matchctl sweep --at 2026-09-01T12:00:00Z
//	matchctl fixtures pending --sport football
//	matchctl score verify --match 42
//	matchctl score verify --all --repair
//	matchctl notifications dispatch --limit 200
//	matchctl notifications purge --older-than 720h
//	matchctl token --uid ref-1 --role referee --ttl 12h
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/albapepper/matchday/internal/api/auth"
	"github.com/albapepper/matchday/internal/bus"
	"github.com/albapepper/matchday/internal/config"
	"github.com/albapepper/matchday/internal/fixture"
	"github.com/albapepper/matchday/internal/ledger"
	"github.com/albapepper/matchday/internal/maintenance"
	"github.com/albapepper/matchday/internal/match"
	"github.com/albapepper/matchday/internal/notifications"
	"github.com/albapepper/matchday/internal/storage"
	"github.com/albapepper/matchday/internal/storage/driver"
	"github.com/albapepper/matchday/internal/tournament"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:          "matchctl",
		Short:        "Matchday operations CLI",
		SilenceUsage: true,
	}

	root.AddCommand(migrateCmd())
	root.AddCommand(sweepCmd())
	root.AddCommand(fixturesCmd())
	root.AddCommand(scoreCmd())
	root.AddCommand(notificationsCmd())
	root.AddCommand(tokenCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// migrate command
// --------------------------------------------------------------------------

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema for the configured store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(true, func(ctx context.Context, cfg *config.Config, store storage.Store) error {
				logger.Info("Store ready", "driver", cfg.StoreDriver)
				return nil
			})
		},
	}
}

// --------------------------------------------------------------------------
// sweep command
// --------------------------------------------------------------------------

func sweepCmd() *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one tournament sweep and schedule its notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now().UTC()
			if at != "" {
				t, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("--at: %w", err)
				}
				now = t
			}
			return run(false, func(ctx context.Context, cfg *config.Config, store storage.Store) error {
				dispatcher := newDispatcher(cfg, store)
				sweeper := tournament.NewSweeper(store, dispatcher, bus.Discard, cfg.FanoutConcurrency, logger)
				result := sweeper.Tick(ctx, now)
				sweeper.Wait()
				logger.Info("Sweep finished", "at", now.Format(time.RFC3339), "summary", result.Summary())
				if errs := result.Errors(); len(errs) > 0 {
					for _, e := range errs {
						logger.Error("sweep error", "error", e)
					}
					return fmt.Errorf("%d sweep phases failed", len(errs))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "Sweep as of this RFC3339 instant (default now)")
	return cmd
}

// --------------------------------------------------------------------------
// fixtures command
// --------------------------------------------------------------------------

func fixturesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fixtures",
		Short: "Inspect tournament fixtures",
	}
	cmd.AddCommand(fixturesPendingCmd())
	return cmd
}

func fixturesPendingCmd() *cobra.Command {
	var sport string
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List tournaments that cannot start until fixtures exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(false, func(ctx context.Context, cfg *config.Config, store storage.Store) error {
				report, err := fixture.Pending(ctx, store, time.Now().UTC(), sport)
				if err != nil {
					return err
				}
				for _, row := range report.Rows {
					fmt.Fprintln(cmd.OutOrStdout(), row.Summary())
				}
				logger.Info("Pending fixtures", "summary", report.Summary())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&sport, "sport", "", "Filter by sport (e.g. football, basketball)")
	return cmd
}

// --------------------------------------------------------------------------
// score command
// --------------------------------------------------------------------------

func scoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Audit cached match scores against the event ledger",
	}
	cmd.AddCommand(scoreVerifyCmd())
	return cmd
}

func scoreVerifyCmd() *cobra.Command {
	var (
		matchID int64
		all     bool
		repair  bool
	)
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Refold match ledgers and report drifted scores",
		RunE: func(cmd *cobra.Command, args []string) error {
			if matchID == 0 && !all {
				return fmt.Errorf("--match or --all is required")
			}
			return run(false, func(ctx context.Context, cfg *config.Config, store storage.Store) error {
				rules, err := loadRules(cfg)
				if err != nil {
					return err
				}
				mgr := match.NewManager(store, ledger.New(rules), bus.Discard, clockwork.NewRealClock(), logger)

				if all {
					drifted := maintenance.Audit(ctx, mgr, repair, logger)
					logger.Info("Score audit finished", "drifted", len(drifted), "repair", repair)
					return nil
				}

				rec, err := mgr.Reconcile(ctx, matchID, repair)
				if err != nil {
					return fmt.Errorf("match %d: %w", matchID, err)
				}
				logger.Info("Score verified",
					"match_id", rec.MatchID,
					"cached", rec.Cached.String(),
					"folded", rec.Folded.String(),
					"drifted", rec.Drifted(),
					"repaired", rec.Repaired)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&matchID, "match", 0, "Match ID to verify")
	cmd.Flags().BoolVar(&all, "all", false, "Verify every live or paused match")
	cmd.Flags().BoolVar(&repair, "repair", false, "Rewrite drifted scores from the ledger")
	return cmd
}

// --------------------------------------------------------------------------
// notifications command
// --------------------------------------------------------------------------

func notificationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "Operate the notification outbox",
	}
	cmd.AddCommand(notificationsDispatchCmd())
	cmd.AddCommand(notificationsPurgeCmd())
	return cmd
}

func notificationsDispatchCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Deliver one batch of due notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(false, func(ctx context.Context, cfg *config.Config, store storage.Store) error {
				var deliverer notifications.Deliverer = notifications.NewLogDeliverer(logger)
				if cfg.StreamEnabled() {
					stream, err := connectStream(ctx, cfg)
					if err != nil {
						return err
					}
					defer stream.Close()
					deliverer = notifications.NewStreamDeliverer(stream)
				}
				sent, failed, err := notifications.DispatchBatch(ctx, store, deliverer, time.Now(), limit, logger)
				if err != nil {
					return err
				}
				logger.Info("Dispatch finished", "sent", sent, "failed", failed)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum notifications to deliver")
	return cmd
}

func notificationsPurgeCmd() *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete sent and failed notifications past retention",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(false, func(ctx context.Context, cfg *config.Config, store storage.Store) error {
				retention := olderThan
				if retention == 0 {
					retention = cfg.NotificationRetention
				}
				n := maintenance.Purge(ctx, store, time.Now().UTC(), retention, logger)
				logger.Info("Purge finished", "deleted", n, "retention", retention)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Retention window (default NOTIFICATION_RETENTION)")
	return cmd
}

// --------------------------------------------------------------------------
// token command
// --------------------------------------------------------------------------

func tokenCmd() *cobra.Command {
	var (
		uid  string
		role string
		ttl  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			if uid == "" {
				return fmt.Errorf("--uid is required")
			}
			if role != auth.RoleReferee && role != auth.RoleAdmin {
				return fmt.Errorf("--role must be %s or %s", auth.RoleReferee, auth.RoleAdmin)
			}
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.JWTSecret == "" {
				return fmt.Errorf("JWT_SECRET is required")
			}
			tok, err := auth.NewVerifier(cfg.JWTSecret).Issue(uid, role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&uid, "uid", "", "Subject user ID")
	cmd.Flags().StringVar(&role, "role", auth.RoleReferee, "Role claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "Token lifetime")
	return cmd
}

// --------------------------------------------------------------------------
// Shared setup
// --------------------------------------------------------------------------

// run handles config loading, store connection, and context cancellation.
func run(migrate bool, fn func(ctx context.Context, cfg *config.Config, store storage.Store) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := driver.Open(ctx, cfg, migrate, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	return fn(ctx, cfg, store)
}

func newDispatcher(cfg *config.Config, store storage.Store) *notifications.Dispatcher {
	renderer := notifications.NewRenderer(cfg.NotifyLocale, cfg.PublicBaseURL)
	return notifications.NewDispatcher(store, renderer, cfg.NotifyLocation(), clockwork.NewRealClock(), logger)
}

func loadRules(cfg *config.Config) (*ledger.Rules, error) {
	if cfg.ScoringRulesFile == "" {
		return ledger.DefaultRules(), nil
	}
	rules, err := ledger.LoadRules(cfg.ScoringRulesFile)
	if err != nil {
		return nil, fmt.Errorf("load scoring rules: %w", err)
	}
	return rules, nil
}

func connectStream(ctx context.Context, cfg *config.Config) (*bus.JetStream, error) {
	jsCfg := bus.DefaultJetStreamConfig()
	jsCfg.URL = cfg.NATSURL
	jsCfg.StreamName = cfg.NATSStream
	jsCfg.SubjectPrefix = cfg.NATSSubjectPrefix
	stream, err := bus.NewJetStream(ctx, jsCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect event stream: %w", err)
	}
	return stream, nil
}
