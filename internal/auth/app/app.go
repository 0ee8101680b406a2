// Package app wires configuration, storage, services and the HTTP server
// into a runnable authentication service.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/securemed/portal/internal/auth/http"
	"github.com/securemed/portal/internal/auth/service"
	"github.com/securemed/portal/internal/auth/store/drivers/sqlite"
	"github.com/securemed/portal/pkg/jwtx"
	"github.com/securemed/portal/pkg/slogx"
)

// BuildVersion is stamped at build time via -ldflags.
var BuildVersion = "dev"

type Application struct {
	cfg    Config
	logger *slog.Logger

	store *sqlite.Store
	codec *jwtx.Codec

	loginService  *service.LoginService
	tokenService  *service.TokenService
	mfaService    *service.MFAService
	inviteService *service.InviteService
	userService   *service.UserService
	housekeeping  *service.HousekeepingService

	server *http.Server
}

func New(cfg Config) (*Application, error) {
	a := &Application{cfg: cfg}

	a.logger = slogx.New(slogx.Config{
		Service: "auth",
		Version: BuildVersion,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})

	if err := a.initDatabase(); err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}

	codec, err := jwtx.NewCodec([]byte(cfg.SigningSecret), cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("init token codec: %w", err)
	}
	a.codec = codec

	a.initServices()
	a.initHTTP()

	return a, nil
}

func (a *Application) initDatabase() error {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", a.cfg.DatabaseFile)

	st, err := sqlite.NewStore(dsn)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	if err := st.ApplyMigrations(); err != nil {
		_ = st.Close()
		return fmt.Errorf("apply migrations: %w", err)
	}

	a.store = st
	return nil
}

func (a *Application) initServices() {
	a.tokenService = &service.TokenService{
		Store:      a.store,
		Codec:      a.codec,
		Issuer:     a.cfg.Issuer,
		AccessTTL:  a.cfg.AccessTTL,
		RefreshTTL: a.cfg.RefreshTTL,
	}

	a.loginService = &service.LoginService{
		Store:  a.store,
		Tokens: a.tokenService,
		Codec:  a.codec,
		Issuer: a.cfg.Issuer,
		Lockout: service.LockoutPolicy{
			MaxAttempts: a.cfg.MaxFailedAttempts,
			Duration:    a.cfg.LockoutDuration,
		},
		MFATicketTTL: a.cfg.MFATicketTTL,
		LoginSkew:    a.cfg.MFALoginSkew,
	}

	a.mfaService = &service.MFAService{
		Store:             a.store,
		Issuer:            a.cfg.Issuer,
		RecoveryCodeCount: service.DefaultRecoveryCodeCount,
		EnableSkew:        a.cfg.MFAEnableSkew,
		DeactivateSkew:    a.cfg.MFADeactivateSkew,
	}

	a.inviteService = &service.InviteService{
		Store: a.store,
		TTL:   a.cfg.InviteTTL,
	}

	a.userService = &service.UserService{Store: a.store}

	a.housekeeping = service.NewHousekeepingService(a.store, a.logger, a.cfg.HousekeepingInterval)
}

func (a *Application) initHTTP() {
	router := httpapi.NewRouter(a.codec, BuildVersion, a.store, a.logger)
	router.LoginService = a.loginService
	router.TokenService = a.tokenService
	router.MFAService = a.mfaService
	router.InviteService = a.inviteService
	router.UserService = a.userService
	router.ApplyRoutes()

	a.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}

// Run starts housekeeping and the HTTP server and blocks until the
// process is signalled or the server fails.
func (a *Application) Run() error {
	a.housekeeping.Start()

	serverErrors := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", "addr", a.server.Addr)
		serverErrors <- a.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		a.logger.Info("shutdown signal received", "signal", sig.String())
		return a.Shutdown()
	}
}

// Shutdown drains in-flight requests within the grace period, then stops
// housekeeping and closes the database.
func (a *Application) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		a.logger.Error("graceful shutdown failed, closing server", "error", err)
		if closeErr := a.server.Close(); closeErr != nil {
			return fmt.Errorf("close server: %w", closeErr)
		}
	}

	a.housekeeping.Stop()

	if err := a.store.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}

	a.logger.Info("shutdown complete")
	return nil
}
