// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"docpress/internal/cache"
	"docpress/internal/database"
	"docpress/internal/document"
	"docpress/internal/router"
	"docpress/internal/schema"
	"docpress/internal/store"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run migrations and start the ops HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
}

// services are the long-lived dependencies of the document service.
type services struct {
	db       *sqlx.DB
	valkey   *redis.Client
	registry *schema.Registry
	docs     *document.Service
}

func (s *services) Close() {
	if s.valkey != nil {
		s.valkey.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
}

// connect opens the database and, when enabled, Valkey and builds the
// document service over them.
func (a *app) connect(ctx context.Context) (*services, error) {
	registry, err := schema.LoadDir(a.cfg.Schema.Dir)
	if err != nil {
		return nil, err
	}
	a.log.Infow("schema loaded", "dir", a.cfg.Schema.Dir, "content_types", len(registry.ContentTypes()))

	db, err := database.Connect(ctx, a.cfg.DSN(), &database.Options{
		MaxOpenConns: a.cfg.Database.MaxOpen,
		MaxIdleConns: a.cfg.Database.MaxIdle,
	})
	if err != nil {
		return nil, err
	}
	s := &services{db: db, registry: registry}

	var docCache document.Cache
	if a.cfg.Valkey.Enabled {
		s.valkey, err = cache.ConnectValkey(ctx, cache.Options{
			Host:     a.cfg.Valkey.Host,
			Port:     a.cfg.Valkey.Port,
			Password: a.cfg.Valkey.Password,
			DB:       a.cfg.Valkey.DB,
		})
		if err != nil {
			s.Close()
			return nil, err
		}
		docCache = cache.NewDocumentCache(s.valkey, a.cfg.Valkey.TTL, store.NewCacheLogStore(db, a.log), a.log)
	}

	s.docs = document.New(store.NewEntryStore(db, registry), registry, docCache, document.Config{
		DefaultLocale:         a.cfg.I18n.DefaultLocale,
		Locales:               a.cfg.I18n.Locales,
		AutoCreateLocale:      a.cfg.Documents.AutoCreateLocale,
		AllowMissingRelations: a.cfg.Documents.AllowMissingRelations,
	}, a.log)
	return s, nil
}

func (a *app) serve(ctx context.Context) error {
	s, err := a.connect(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := database.Migrate(s.db.DB); err != nil {
		return err
	}

	checks := map[string]router.Check{"database": s.db.PingContext}
	if s.valkey != nil {
		checks["valkey"] = func(ctx context.Context) error { return s.valkey.Ping(ctx).Err() }
	}
	srv := &http.Server{
		Addr:         a.cfg.Addr(),
		Handler:      router.New(a.log, checks),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		a.log.Infow("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	a.log.Infow("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	a.log.Infow("server stopped gracefully")
	return nil
}
