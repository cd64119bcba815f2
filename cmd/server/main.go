/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the leave engine server. Handles configuration,
  dependency injection, policy seeding and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags, load config (file, .env, LEAVE_* env)
  2. Build the zap logger
  3. Open the store (memory, sqlite or postgres)
  4. Seed policies if asked
  5. Build engine, service, scheduler, handler and router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config       YAML config file (optional)
  -seed         Save the default policy set before starting
  -policies     JSON array of policies to save before starting
  -issue-token  Print a bearer token for "employee-id:role" and exit

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the recompute scheduler
  2. Stop accepting new connections
  3. Wait for active requests (server.shutdown_timeout)
  4. Close the store
  5. Exit

EXAMPLES:
  # Local development, in-memory store, default policies
  LEAVE_DATABASE_DRIVER=memory LEAVE_AUTH_DISABLED=true ./server -seed

  # Postgres
  LEAVE_DATABASE_DRIVER=postgres LEAVE_DATABASE_URL=postgres://... ./server

  # Token for an admin
  ./server -issue-token "adm:admin"

SEE ALSO:
  - config/config.go: Configuration keys and defaults
  - api/server.go: Router configuration
  - store/: Store implementations
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/warp/leave-engine/api"
	"github.com/warp/leave-engine/config"
	"github.com/warp/leave-engine/factory"
	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/logging"
	"github.com/warp/leave-engine/store/memory"
	"github.com/warp/leave-engine/store/postgres"
	"github.com/warp/leave-engine/store/sqlite"
)

// store is what every driver provides.
type store interface {
	leave.Store
	Ping(ctx context.Context) error
	Close() error
}

// memoryStore adapts memory.Store, which has nothing to ping or close.
type memoryStore struct{ *memory.Store }

func (memoryStore) Ping(context.Context) error { return nil }
func (memoryStore) Close() error               { return nil }

func main() {
	configPath := flag.String("config", "", "YAML config file")
	seed := flag.Bool("seed", false, "save the default policy set before starting")
	policiesPath := flag.String("policies", "", "JSON file with policies to save before starting")
	issueToken := flag.String("issue-token", "", `print a bearer token for "employee-id:role" and exit`)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if *issueToken != "" {
		if err := printToken(cfg.Auth, *issueToken); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	logger, err := logging.New(cfg.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger, *seed, *policiesPath); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger, seed bool, policiesPath string) error {
	ctx := context.Background()

	st, err := openStore(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.Database.Driver, err)
	}
	defer st.Close()
	logger.Info("store ready", zap.String("driver", cfg.Database.Driver))

	engine := leave.NewEngine(st, cfg.Engine.Mode(), cfg.Engine.Periods(), logger.Named("engine"))
	engine.SkipNonWorkdays = cfg.Engine.SkipNonWorkdays
	svc := leave.NewService(st, engine, logger.Named("service"))
	svc.HoursPerDay = cfg.Engine.HoursPerDayDecimal()
	svc.SkipNonWorkdays = cfg.Engine.SkipNonWorkdays
	svc.MaxRetries = cfg.Engine.MaxRetries

	if seed {
		seedPolicies(ctx, svc, factory.DefaultPolicies(), logger)
	}
	if policiesPath != "" {
		ps, err := readPolicies(policiesPath)
		if err != nil {
			return err
		}
		seedPolicies(ctx, svc, ps, logger)
	}

	scheduler := api.NewRecomputeScheduler(svc, logger.Named("scheduler"))
	scheduler.Enabled = cfg.Scheduler.Enabled
	scheduler.Interval = cfg.Scheduler.Interval

	handler := api.NewHandler(svc, engine, logger.Named("api"))
	handler.Scheduler = scheduler
	handler.Health = st.Ping

	if cfg.Auth.Disabled {
		logger.Warn("authentication disabled, trusting X-Employee-ID and X-Role headers")
	}
	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		JWTSecret:      cfg.Auth.JWTSecret,
		AuthDisabled:   cfg.Auth.Disabled,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  2 * cfg.Server.ReadTimeout,
	}

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scheduler.Start(runCtx)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			scheduler.Stop()
			return err
		}
	case <-runCtx.Done():
	}

	logger.Info("shutting down server")
	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func openStore(ctx context.Context, cfg config.DatabaseConfig) (store, error) {
	switch cfg.Driver {
	case "memory":
		return memoryStore{memory.New()}, nil
	case "sqlite":
		return sqlite.New(cfg.Path)
	case "postgres":
		return postgres.Open(ctx, cfg.URL, cfg.MaxConns)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

func readPolicies(path string) ([]leave.LeavePolicy, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open policies file: %w", err)
	}
	defer f.Close()
	ps, err := factory.NewPolicyFactory().ParsePolicies(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return ps, nil
}

// seedPolicies saves ps, skipping any that clash with an active policy
// already in the store.
func seedPolicies(ctx context.Context, svc *leave.Service, ps []leave.LeavePolicy, logger *zap.Logger) {
	saved := 0
	for _, p := range ps {
		if _, err := svc.SavePolicy(ctx, p); err != nil {
			if generic.IsConflict(err) {
				logger.Debug("policy already covered, skipped", zap.String("policy_id", p.ID))
				continue
			}
			logger.Warn("failed to seed policy", zap.String("policy_id", p.ID), zap.Error(err))
			continue
		}
		saved++
	}
	logger.Info("policies seeded", zap.Int("saved", saved), zap.Int("given", len(ps)))
}

func printToken(cfg config.AuthConfig, subject string) error {
	id, role, ok := strings.Cut(subject, ":")
	if !ok || id == "" || !api.Role(role).Valid() {
		return errors.New(`-issue-token wants "employee-id:role" with role admin, manager or employee`)
	}
	if cfg.JWTSecret == "" {
		return errors.New("auth.jwt_secret is not set")
	}
	tok, err := api.GenerateToken(cfg.JWTSecret, generic.EntityID(id), api.Role(role), cfg.TokenTTL)
	if err != nil {
		return err
	}
	fmt.Println(tok)
	return nil
}
