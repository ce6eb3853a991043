package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/seanmmay/b0t-sub000/internal/engine"
	"github.com/seanmmay/b0t-sub000/internal/logging"
	"github.com/seanmmay/b0t-sub000/internal/modules"
	"github.com/seanmmay/b0t-sub000/internal/secrets"
	"github.com/seanmmay/b0t-sub000/internal/store"
	"github.com/seanmmay/b0t-sub000/internal/streaming"
	"github.com/seanmmay/b0t-sub000/internal/validation"
)

// app is the wired process: one store, one registry, one executor.
type app struct {
	cfg         *Config
	logger      *slog.Logger
	store       store.Store
	registry    *modules.Registry
	validator   *validation.WorkflowValidator
	credentials *secrets.CredentialLoader // nil when the vault is not configured
	events      *streaming.MemoryHub
	executor    *engine.Executor

	closers []func(context.Context) error
}

// newApp wires every component from cfg. Logs and traces go to logOut so
// stdout stays free for command output and the MCP stdio transport.
func newApp(ctx context.Context, cfg *Config, logOut io.Writer) (*app, error) {
	a := &app{cfg: cfg}
	a.logger = logging.NewLogger(cfg.Log.Level, cfg.Log.Format, logOut)
	slog.SetDefault(a.logger)

	if cfg.Tracing.Enabled && cfg.Tracing.Exporter == "stdout" {
		exp, err := stdouttrace.New(stdouttrace.WithWriter(logOut))
		if err != nil {
			return nil, fmt.Errorf("trace exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp))
		otel.SetTracerProvider(tp)
		a.closers = append(a.closers, tp.Shutdown)
	}

	st, err := openStore(ctx, cfg.Store)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.store = st
	a.closers = append(a.closers, func(context.Context) error { return st.Close() })

	docs, err := validation.NewJSONSchemaValidator()
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.registry, err = modules.NewBuiltinRegistry(modules.BuiltinConfig{
		HTTP: modules.HTTPConfig{
			MaxResponseBody: cfg.HTTP.MaxResponseBody,
			DefaultTimeout:  cfg.HTTP.Timeout,
		},
		Documents: docs,
	})
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("register modules: %w", err)
	}
	a.validator, err = validation.NewWorkflowValidator(a.registry)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	dispatcherOpts := []modules.DispatcherOption{modules.WithLogger(a.logger)}
	if cfg.RateLimit.PerSecond > 0 {
		dispatcherOpts = append(dispatcherOpts,
			modules.WithRateLimiter(modules.NewTokenBucketLimiter(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst)))
	}
	dispatcher := modules.NewDispatcher(a.registry, dispatcherOpts...)

	a.events = streaming.NewMemoryHub(256)
	execOpts := []engine.Option{
		engine.WithEventLog(streaming.NewPublishingLog(st, a.events, a.logger)),
		engine.WithLogger(a.logger),
	}
	if cfg.Vault.Enabled() {
		c, err := newCipher(cfg.Vault)
		if err != nil {
			a.Close(ctx)
			return nil, err
		}
		a.credentials = secrets.NewCredentialLoader(st, c, a.logger)
		execOpts = append(execOpts, engine.WithCredentials(a.credentials))
	}
	a.executor = engine.NewExecutor(st, dispatcher, execOpts...)
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *app) requireCredentials() (*secrets.CredentialLoader, error) {
	if a.credentials == nil {
		return nil, errors.New("vault is not configured: set vault.master_key or vault.passphrase")
	}
	return a.credentials, nil
}

func openStore(ctx context.Context, cfg StoreConfig) (store.Store, error) {
	switch cfg.Driver {
	case "postgres":
		s, err := store.NewPostgresStore(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		if path, ok := strings.CutPrefix(cfg.DSN, "file:"); ok {
			if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
				return nil, fmt.Errorf("create database dir: %w", err)
			}
		}
		s, err := store.NewLibSQLStore(cfg.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

func newCipher(cfg VaultConfig) (*secrets.Cipher, error) {
	cc := secrets.CipherConfig{Passphrase: cfg.Passphrase, Salt: []byte(cfg.Salt)}
	if cfg.MasterKey != "" {
		key, err := secrets.ParseMasterKey(cfg.MasterKey)
		if err != nil {
			return nil, fmt.Errorf("vault.master_key: %w", err)
		}
		cc.MasterKey = key
	}
	return secrets.NewCipher(cc)
}
