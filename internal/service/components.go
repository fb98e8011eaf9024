// File: internal/service/components.go
package service

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/triage-cli/internal/browser"
	"github.com/xkilldash9x/triage-cli/internal/config"
	"github.com/xkilldash9x/triage-cli/internal/resource"
	"github.com/xkilldash9x/triage-cli/internal/store"
)

// Components holds the process-level subsystems shared by every triage
// session: the browser process, the resource tracker with its background
// sweep, and the optional history store.
type Components struct {
	cfg    config.Interface
	logger *zap.Logger

	Browser   *browser.Manager
	Resources *resource.Manager
	Store     *store.Store

	pool *pgxpool.Pool
}

// NewComponents performs the full dependency wiring. On a mid-initialization
// failure, everything already created is shut down before the error is
// returned.
func NewComponents(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*Components, error) {
	c := &Components{
		cfg:    cfg,
		logger: logger,
	}

	var initializationErr error
	defer func() {
		if initializationErr != nil {
			logger.Warn("Initialization failed, shutting down partially created components.", zap.Error(initializationErr))
			c.Shutdown(context.WithoutCancel(ctx))
		}
	}()

	c.Resources = resource.NewManager(cfg.Resources(), logger)
	c.Resources.Start()

	c.Browser = browser.NewManager(cfg.Browser(), logger)

	if cfg.Store().Enabled {
		pool, err := pgxpool.New(ctx, cfg.Store().Postgres.DSN())
		if err != nil {
			initializationErr = fmt.Errorf("failed to create database connection pool: %w", err)
			return nil, initializationErr
		}
		c.pool = pool

		s, err := store.New(ctx, pool, logger)
		if err != nil {
			initializationErr = fmt.Errorf("failed to initialize history store: %w", err)
			return nil, initializationErr
		}
		c.Store = s
		logger.Info("Diagnostic history store enabled.",
			zap.String("host", cfg.Store().Postgres.Host),
			zap.String("dbname", cfg.Store().Postgres.DBName))
	}

	return c, nil
}

// OpenTriage starts a browser session, navigates it to url, and returns a
// triage bundle bound to that page. The returned close function releases the
// session and its tracked handles.
func (c *Components) OpenTriage(ctx context.Context, url string) (*Triage, func(), error) {
	sess, err := c.Browser.NewSession(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open browser session: %w", err)
	}
	if err := sess.Navigate(ctx, url); err != nil {
		sess.Close(ctx)
		return nil, nil, fmt.Errorf("failed to navigate to %s: %w", url, err)
	}

	triage := NewTriage(sess, c.Resources, c.cfg, nilStore(c.Store), c.logger)
	closeFn := func() {
		closeCtx := context.WithoutCancel(ctx)
		c.Resources.DisposeAll(closeCtx)
		sess.Close(closeCtx)
	}
	return triage, closeFn, nil
}

// Shutdown tears everything down in reverse dependency order. Safe to call
// on a partially initialized struct.
func (c *Components) Shutdown(ctx context.Context) {
	if c.Browser != nil {
		c.Browser.Shutdown(ctx)
	}
	if c.Resources != nil {
		c.Resources.Close(ctx)
	}
	if c.pool != nil {
		c.pool.Close()
	}
}
