// Package app assembles the identity service: configuration, key material,
// storage, services, HTTP, and lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	identityhttp "github.com/orgstack/identity/internal/identity/http"
	"github.com/orgstack/identity/internal/identity/service"
	"github.com/orgstack/identity/internal/identity/store"
	"github.com/orgstack/identity/internal/identity/store/drivers/sqlite"
	"github.com/orgstack/identity/pkg/cryptox"
	"github.com/orgstack/identity/pkg/jwtx"
	"github.com/orgstack/identity/pkg/slogx"
)

// Version is stamped by the build via -ldflags.
var Version = "dev"

type App struct {
	cfg    *Config
	logger *slog.Logger
	store  store.Store
	server *http.Server

	housekeeper *service.Housekeeper
	stopOnce    sync.Once
	stopped     chan struct{}
}

// New wires the whole service together without starting it.
func New(ctx context.Context, cfg *Config) (*App, error) {
	logger := slogx.New(slogx.Config{
		Service: "identity",
		Version: Version,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})

	cryptox.SetPepperPath(cfg.PepperPath)

	signer, err := loadOrGenerateSigner(cfg.SigningKeyPath, cfg.SigningKeyID)
	if err != nil {
		return nil, err
	}
	keys := jwtx.NewKeySet()
	keys.AddSigner(signer)

	s, err := sqlite.NewStore(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	notifier := service.LogNotifier{}
	lifecycle := service.NewLifecycleService(s)

	handler := identityhttp.NewRouter(identityhttp.Deps{
		Store:    s,
		Accounts: service.NewAccountService(s, lifecycle, notifier),
		Sessions: service.NewSessionService(s, lifecycle, notifier, signer, cfg.Issuer, cfg.SessionTTL),
		Vault:    service.NewVaultService(s),
		Verifier: jwtx.NewVerifierEdDSA(keys, cfg.Issuer),
		Keys:     keys,
		Logger:   logger,
	})

	return &App{
		cfg:    cfg,
		logger: logger,
		store:  s,
		server: &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		housekeeper: service.NewHousekeeper(lifecycle, cfg.HousekeepingInterval),
		stopped:     make(chan struct{}),
	}, nil
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	hkCtx, cancelHousekeeping := context.WithCancel(slogx.WithContext(context.Background(), a.logger))
	go a.housekeeper.Run(hkCtx)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("listening", slog.String("addr", a.cfg.ListenAddr))
		if err := a.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		cancelHousekeeping()
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	cancelHousekeeping()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return a.Close()
}

// Close releases the app's resources. Safe to call more than once.
func (a *App) Close() error {
	var err error
	a.stopOnce.Do(func() {
		err = a.store.Close()
		close(a.stopped)
	})
	return err
}
