// Command bridge runs the store-to-Slack notification bridge.
//
//	bridge              serve (configuration from BRIDGE_CONFIG and the environment)
//	bridge token -sub S issue an ingest token for the store
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"

	"slack-bridge/internal/config"
	"slack-bridge/internal/domain/entity"
	hhttp "slack-bridge/internal/handler/http"
	"slack-bridge/internal/handler/http/auth"
	"slack-bridge/internal/handler/http/ingest"
	"slack-bridge/internal/handler/http/slackapp"
	"slack-bridge/internal/infra/adapter/persistence/memory"
	pgRepo "slack-bridge/internal/infra/adapter/persistence/postgres"
	sqliteRepo "slack-bridge/internal/infra/adapter/persistence/sqlite"
	"slack-bridge/internal/infra/bus"
	"slack-bridge/internal/infra/db"
	"slack-bridge/internal/infra/rulecache"
	"slack-bridge/internal/infra/rulefile"
	"slack-bridge/internal/infra/slack"
	"slack-bridge/internal/integration"
	"slack-bridge/internal/observability/logging"
	"slack-bridge/internal/observability/metrics"
	"slack-bridge/internal/observability/tracing"
	"slack-bridge/internal/repository"
	"slack-bridge/internal/resilience/circuitbreaker"
	"slack-bridge/internal/usecase/notify"
)

func main() {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	logger := logging.NewLogger()
	slog.SetDefault(logger)

	if len(os.Args) > 1 && os.Args[1] == "token" {
		os.Exit(runToken(os.Args[2:], logger))
	}

	cfg, err := config.Load(os.Getenv("BRIDGE_CONFIG"))
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, cfg); err != nil {
		logger.Error("bridge stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("bridge stopped")
}

// runToken prints a signed ingest token for the store to use.
func runToken(args []string, logger *slog.Logger) int {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	sub := fs.String("sub", "store", "token subject")
	ttl := fs.Duration("ttl", 365*24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	secret := os.Getenv("INGEST_JWT_SECRET")
	issuer := os.Getenv("INGEST_JWT_ISSUER")
	if issuer == "" {
		issuer = auth.DefaultIssuer
	}
	token, err := auth.IssueToken([]byte(secret), issuer, *sub, *ttl)
	if err != nil {
		logger.Error("failed to issue token", slog.Any("error", err))
		return 1
	}
	fmt.Println(token)
	return 0
}

// ruleStore bundles the repositories of the configured source.
type ruleStore struct {
	rules      rulecache.Source
	users      repository.UserRepository
	deliveries repository.DeliveryRepository // nil for the file source
	db         *sql.DB                       // nil for the file source
}

func openRuleStore(ctx context.Context, cfg config.BridgeConfig, logger *slog.Logger) (*ruleStore, error) {
	switch cfg.Rules.Source {
	case config.SourceFile:
		store := rulefile.NewStore(cfg.Rules.Path, logger)
		return &ruleStore{rules: store, users: memory.NewUserRepo()}, nil

	case config.SourcePostgres, config.SourceSQLite:
		dialect := db.Postgres
		if cfg.Rules.Source == config.SourceSQLite {
			dialect = db.SQLite
		}
		database, err := db.Open(ctx, dialect, cfg.Rules.DSN)
		if err != nil {
			return nil, err
		}
		if err := db.MigrateUp(ctx, database, dialect); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}

		q := metrics.Instrument(circuitbreaker.NewDBCircuitBreaker(database))
		if dialect == db.SQLite {
			return &ruleStore{
				rules:      sqliteRepo.NewRuleRepo(q),
				users:      sqliteRepo.NewUserRepo(q),
				deliveries: sqliteRepo.NewDeliveryRepo(q),
				db:         database,
			}, nil
		}
		return &ruleStore{
			rules:      pgRepo.NewRuleRepo(q),
			users:      pgRepo.NewUserRepo(q),
			deliveries: pgRepo.NewDeliveryRepo(q),
			db:         database,
		}, nil

	default:
		return nil, fmt.Errorf("unknown rule source %q", cfg.Rules.Source)
	}
}

func run(ctx context.Context, logger *slog.Logger, cfg config.BridgeConfig) error {
	version := os.Getenv("VERSION")
	if version == "" {
		version = "dev"
	}

	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(shutdownCtx)
	}()

	store, err := openRuleStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open rule store: %w", err)
	}
	if store.db != nil {
		defer func() {
			if err := store.db.Close(); err != nil {
				logger.Error("failed to close database", slog.Any("error", err))
			}
		}()
	}

	refreshMetrics := rulecache.NewMetrics()
	refreshCfg := rulecache.LoadConfigFromEnv(cfg.Rules.Refresh, logger, refreshMetrics)
	rules := rulecache.New(store.rules, cfg.Namespaces, logger, refreshMetrics)

	warmCtx, cancel := context.WithTimeout(ctx, refreshCfg.Timeout)
	if err := rules.Refresh(warmCtx); err != nil {
		logger.Warn("initial rule load failed, reading through until the next refresh",
			slog.Any("error", err))
	}
	cancel()

	sched, err := rules.Start(refreshCfg)
	if err != nil {
		return err
	}
	defer sched.Stop()

	client := slack.NewClient(cfg.SlackClient())
	integrations := integration.All(integration.Options{Interactive: cfg.Interactive()})

	registry := notify.NewRegistry()
	registry.Use(integration.Adapters(integrations)...)

	history := notify.NewHistory(cfg.Dispatch.HistorySize)
	recorders := notify.Recorders{history}
	if store.deliveries != nil {
		recorders = append(recorders, notify.NewSQLRecorder(store.deliveries))
	}

	svc := notify.NewService(cfg.Notify(), notify.Deps{
		Rules:    rules,
		Users:    store.users,
		Registry: registry,
		Sender:   notify.NewTransport(client),
		Recorder: recorders,
		Tracer:   tracing.GetTracer(),
	})

	events := bus.New()
	events.OnAny(func(ctx context.Context, evt entity.Event) {
		_ = svc.Notify(ctx, evt)
	})

	app := slackapp.New(cfg.Slack.VerificationToken, client, logger)
	integration.RegisterInteractions(app, &integration.CallbackDecider{
		URL:     cfg.Store.CallbackURL,
		Secret:  []byte(cfg.Ingest.Secret),
		Logger:  logger,
		Timeout: cfg.Store.Timeout,
	})

	health := &hhttp.HealthHandler{Notifier: svc, Rules: rules, Version: version}
	if store.db != nil {
		health.DB = store.db
	}

	var (
		deliveries hhttp.DeliverySource
		breakers   hhttp.NotifierHealth
	)
	if cfg.DebugEndpoints {
		deliveries, breakers = history, svc
	}

	router := hhttp.NewRouter(hhttp.RouterConfig{
		Logger: logger,
		Ingest: ingest.NewHandler(events, integration.Decoders(integrations), logger),
		Auth: auth.Config{
			Secret: []byte(cfg.Ingest.Secret),
			Issuer: cfg.Ingest.Issuer,
			Leeway: cfg.Ingest.Leeway,
		},
		SlackApp:      app,
		Health:        health,
		Deliveries:    deliveries,
		Notifier:      breakers,
		CallbackRate:  cfg.Ingest.RatePerSecond,
		CallbackBurst: cfg.Ingest.Burst,
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second, // Prevent Slowloris attacks
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server starting",
			slog.String("addr", cfg.ListenAddr),
			slog.String("version", version),
			slog.String("rule_source", string(cfg.Rules.Source)),
			slog.Any("namespaces", cfg.Namespaces),
			slog.Bool("interactive", cfg.Interactive()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	if store.db != nil {
		g.Go(func() error {
			metrics.CollectDBStats(gctx, store.db, 15*time.Second)
			return nil
		})
	}

	if cfg.Rules.Source == config.SourceFile && cfg.Rules.Watch {
		g.Go(func() error {
			err := rulefile.Watch(gctx, cfg.Rules.Path, rulefile.DefaultDebounce, logger, func() {
				refreshCtx, cancel := context.WithTimeout(gctx, refreshCfg.Timeout)
				defer cancel()
				if err := rules.Refresh(refreshCtx); err != nil {
					logger.Warn("rule reload after file change failed", slog.Any("error", err))
				}
			})
			if err != nil {
				logger.Warn("rule file watcher disabled", slog.Any("error", err))
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown: %w", err))
		}
		app.Wait()
		if err := svc.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("notify shutdown: %w", err))
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}
