// Package activator contains the logic that runs every time this module is
// either started or shut down by the host platform. It owns the module's
// bootstrap: configuration, logging, tracing, storage, and the HTTP surface.
package activator

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/Paradgym/openmrs-module-paradygm/internal/config"
	httpapi "github.com/Paradgym/openmrs-module-paradygm/internal/http"
	"github.com/Paradgym/openmrs-module-paradygm/internal/observability"
	"github.com/Paradgym/openmrs-module-paradygm/internal/repo"
	"github.com/Paradgym/openmrs-module-paradygm/internal/sysutil"
)

// Version is reported to the tracing backend as the service version.
const Version = "1.0.0"

// Activator surfaces the module lifecycle to the host. The zero value is
// ready to use; call WillStart then Started to bring the module up, and
// WillStop then Stopped to take it down.
type Activator struct {
	cfg config.Config
	db  *gorm.DB
	srv *http.Server

	shutdownOTel func(context.Context) error
}

// DB exposes the module's database handle once Started has run.
func (a *Activator) DB() *gorm.DB { return a.db }

// WillStart runs before the module starts. It loads configuration and
// applies the logging posture so that everything after it logs correctly.
func (a *Activator) WillStart() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	log.Info().Str("version", Version).Msg("starting paradygm module")
	return nil
}

// Started runs once the host is ready. It stands up tracing, opens and
// migrates the database, and starts the HTTP surface.
func (a *Activator) Started(ctx context.Context) error {
	shutdown, err := observability.SetupOTel(ctx, a.cfg.OTEL, Version)
	if err != nil {
		return err
	}
	a.shutdownOTel = shutdown

	db, err := repo.OpenSQLite(a.cfg.DBPath, a.cfg.OTEL.Enabled)
	if err != nil {
		return err
	}
	if err := repo.AutoMigrate(db); err != nil {
		return err
	}
	a.db = db

	gin.SetMode(a.cfg.GinMode)
	engine := gin.New()
	httpapi.RegisterRoutes(engine, db, a.cfg)

	a.srv = &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           engine,
		ReadTimeout:       a.cfg.ReadTimeout,
		ReadHeaderTimeout: a.cfg.ReadHeaderTimeout,
		WriteTimeout:      a.cfg.WriteTimeout,
		IdleTimeout:       a.cfg.IdleTimeout,
		MaxHeaderBytes:    a.cfg.MaxHeaderBytes,
	}
	go func() {
		if err := a.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("http server stopped")
		}
	}()

	log.Info().Str("port", a.cfg.Port).Msg("paradygm module started")
	return nil
}

// WillStop runs before the module stops.
func (a *Activator) WillStop() {
	log.Info().Msg("stopping paradygm module")
}

// Stopped drains the HTTP server, flushes traces, and closes the database.
func (a *Activator) Stopped(ctx context.Context) error {
	var firstErr error

	if a.srv != nil {
		if err := a.srv.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.shutdownOTel != nil {
		if err := a.shutdownOTel(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}

	log.Info().Msg("paradygm module stopped")
	return firstErr
}
