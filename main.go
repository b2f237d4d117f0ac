package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"pokemon-battle-server/ai"
	"pokemon-battle-server/api"
	"pokemon-battle-server/auth"
	"pokemon-battle-server/config"
	"pokemon-battle-server/loghandler"
	"pokemon-battle-server/session"
	"pokemon-battle-server/storage"
	"pokemon-battle-server/ws"
)

const shutdownTimeout = 10 * time.Second

// backend is a store that also keeps match history.
type backend interface {
	storage.StateStore
	storage.HistoryStore
}

func main() {
	envErr := godotenv.Load()

	cfg := config.Load()
	slog.SetDefault(slog.New(loghandler.NewCompactHandler(os.Stdout, cfg.SlogLevel())))
	if envErr != nil {
		slog.Info("no .env file found; using environment variables", "tag", "main")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server stopped", "tag", "main", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	validator, err := auth.NewValidator(cfg.AuthBaseURL)
	if err != nil {
		return err
	}
	if !validator.Configured() {
		slog.Warn("AUTH_BASE_URL is not set; only anonymous players can connect", "tag", "main")
	}

	rules := cfg.Rules.GameRules()
	slog.Info("configuration", "tag", "main",
		"port", cfg.WSPort, "store", cfg.StoreDriver,
		"bench_limit", rules.BenchLimit, "knockouts_to_win", rules.KnockoutsToWin, "hand_size", rules.HandSize)

	svc := session.NewService(store, store, session.Options{Rules: rules, MaxSaveRetries: cfg.MaxSaveRetries})
	hub := ws.NewHub(cfg, svc, validator)
	hub.Bots = ai.NewLauncher(ctx, svc, cfg.BotProfiles)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WSPort),
		Handler:           newMux(hub, svc, store, validator),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		slog.Info("Pokémon battle server listening", "tag", "main", "addr", srv.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// newMux wires the websocket endpoint and the HTTP API.
func newMux(hub *ws.Hub, svc *session.Service, history storage.HistoryStore, tokens api.TokenValidator) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS)
	api.NewHandler(svc, history, tokens).Routes(mux)
	return mux
}

func openStore(ctx context.Context, cfg *config.Config) (backend, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		s, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return s, nil
	case config.DriverSQLite:
		s, err := storage.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		slog.Info("opened SQLite store", "tag", "storage", "path", cfg.SQLitePath)
		return s, nil
	case config.DriverMemory, "":
		slog.Warn("using in-memory store; games are lost on restart", "tag", "storage")
		return storage.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}
