// Command playground serves the compii playground: POST /run compiles and
// runs a program with the external compii compiler, and the directory
// holding the web front end is served as static files.
//
// Configuration is read from a YAML file (--config, PLAYGROUND_CONFIG,
// ./config.yaml or /etc/playground/config.yaml), a .env file and
// PLAYGROUND_* environment variables. See pkg/config.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/compii/playground/pkg/auth"
	"github.com/compii/playground/pkg/auth/apikey"
	"github.com/compii/playground/pkg/auth/jwt"
	"github.com/compii/playground/pkg/auth/noop"
	"github.com/compii/playground/pkg/config"
	"github.com/compii/playground/pkg/debug"
	"github.com/compii/playground/pkg/engine"
	"github.com/compii/playground/pkg/mcpserver"
	"github.com/compii/playground/pkg/runner"
	"github.com/compii/playground/pkg/storage"
	"github.com/compii/playground/pkg/storage/memory"
	"github.com/compii/playground/pkg/storage/postgres"
	"github.com/compii/playground/pkg/transport"
	transporthttp "github.com/compii/playground/pkg/transport/http"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := debug.Init(cfg.Logging.Debug, cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r, err := runner.New(runner.Config{
		Path:           cfg.Compiler.Path,
		Args:           cfg.Compiler.Args,
		FileExtension:  cfg.Compiler.FileExtension,
		WorkDir:        cfg.Compiler.WorkDir,
		Timeout:        cfg.Compiler.Timeout,
		MaxConcurrent:  cfg.Compiler.MaxConcurrent,
		QueueTimeout:   cfg.Compiler.QueueTimeout,
		MaxOutputBytes: cfg.Compiler.MaxOutputBytes,
	})
	if err != nil {
		return fmt.Errorf("creating runner: %w", err)
	}
	if !r.Available() {
		slog.Warn("compiler not found; runs will report the error", "path", cfg.Compiler.Path)
	}

	store, err := newStore(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("creating store: %w", err)
	}
	if store != nil {
		defer store.Close()
	}

	inflight := transport.NewInFlightRegistry()
	eng, err := engine.New(r, store, inflight, engine.Config{})
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}

	middlewares := []transport.Middleware{
		transport.Recovery(),
		transport.RequestID(),
		transport.Logging(logger),
	}

	opts := []transporthttp.AdapterOption{
		transporthttp.WithInFlight(inflight),
		transporthttp.WithCompiler(r),
	}

	authMW, err := newAuthMiddleware(cfg.Auth)
	if err != nil {
		return fmt.Errorf("configuring auth: %w", err)
	}
	if authMW != nil {
		opts = append(opts, transporthttp.WithAuth(authMW))
	}

	if cfg.MCP.Enabled {
		mcpExec := transport.Chain(middlewares...)(eng)
		opts = append(opts, transporthttp.WithMCP(mcpserver.Handler(mcpserver.New(mcpExec, version))))
		slog.Info("MCP endpoint enabled", "path", cfg.MCP.Path)
	}

	adapterCfg := transporthttp.Config{
		MaxBodySize: cfg.Server.MaxBodySize,
		StaticDir:   cfg.Server.StaticDir,
		CORSOrigins: cfg.Server.CORSOrigins,
		MCPPath:     cfg.MCP.Path,
	}
	if cfg.Observability.Metrics.Enabled {
		adapterCfg.MetricsPath = cfg.Observability.Metrics.Path
	}
	adapter := transporthttp.NewAdapter(eng, store, adapterCfg, middlewares, opts...)

	srv := transporthttp.NewServer(adapter.Handler(),
		transporthttp.WithAddr(net.JoinHostPort("", strconv.Itoa(cfg.Server.Port))),
		transporthttp.WithReadTimeout(cfg.Server.ReadTimeout),
		transporthttp.WithWriteTimeout(cfg.Server.WriteTimeout),
		transporthttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		transporthttp.WithLogger(logger),
	)

	slog.Info("playground server starting",
		"version", version,
		"port", cfg.Server.Port,
		"compiler", cfg.Compiler.Path,
		"storage", cfg.Storage.Type,
		"auth", cfg.Auth.Type,
		"static_dir", cfg.Server.StaticDir,
	)
	return srv.ListenAndServe(ctx)
}

// newStore returns nil when run history is disabled.
func newStore(ctx context.Context, cfg config.StorageConfig) (storage.RunStore, error) {
	switch cfg.Type {
	case "memory":
		slog.Info("storage enabled", "type", "memory", "max_size", cfg.MaxSize)
		return memory.New(cfg.MaxSize), nil
	case "postgres":
		store, err := postgres.New(ctx, postgres.Config{
			DSN:            cfg.Postgres.DSN,
			MaxConns:       cfg.Postgres.MaxConns,
			MigrateOnStart: cfg.Postgres.MigrateOnStart,
		})
		if err != nil {
			return nil, err
		}
		slog.Info("storage enabled", "type", "postgres", "max_conns", cfg.Postgres.MaxConns)
		return store, nil
	case "none", "":
		slog.Info("storage disabled")
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

// newAuthMiddleware returns nil when authentication is off and no rate
// limit applies.
func newAuthMiddleware(cfg config.AuthConfig) (func(next http.Handler) http.Handler, error) {
	chain := &auth.AuthChain{DefaultDecision: auth.No}

	switch cfg.Type {
	case "none", "":
		if cfg.RateLimitRPM <= 0 {
			return nil, nil
		}
		chain.Authenticators = []auth.Authenticator{&noop.Authenticator{}}
	case "apikey":
		entries := make([]apikey.RawKeyEntry, 0, len(cfg.APIKeys))
		for _, k := range cfg.APIKeys {
			id := auth.Identity{Subject: k.Subject, ServiceTier: k.ServiceTier}
			if k.TenantID != "" {
				id.Metadata = map[string]string{"tenant_id": k.TenantID}
			}
			entries = append(entries, apikey.RawKeyEntry{Key: k.Key, Identity: id})
		}
		chain.Authenticators = []auth.Authenticator{apikey.New(entries)}
		slog.Info("authentication enabled", "type", "apikey", "keys", len(entries))
	case "jwt":
		authn, err := jwt.New(jwt.Config{
			Secret:   []byte(cfg.JWT.Secret),
			Issuer:   cfg.JWT.Issuer,
			Audience: cfg.JWT.Audience,
		})
		if err != nil {
			return nil, err
		}
		chain.Authenticators = []auth.Authenticator{authn}
		slog.Info("authentication enabled", "type", "jwt", "issuer", cfg.JWT.Issuer)
	default:
		return nil, errors.New("unknown auth type " + strconv.Quote(cfg.Type))
	}

	var limiter auth.RateLimiter
	if cfg.RateLimitRPM > 0 {
		limiter = auth.NewInProcessLimiter(nil, cfg.RateLimitRPM)
		slog.Info("rate limiting enabled", "requests_per_minute", cfg.RateLimitRPM)
	}
	return auth.Middleware(chain, limiter, nil), nil
}
