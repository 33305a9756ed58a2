// Package main provides the road-network registry server entry point.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"

	"github.com/roadgrid/network-registry/internal/db"
	"github.com/roadgrid/network-registry/pkg/apikey"
	"github.com/roadgrid/network-registry/pkg/audit"
	"github.com/roadgrid/network-registry/pkg/cache"
	"github.com/roadgrid/network-registry/pkg/registry"
)

func main() {
	var (
		listenAddr   string
		databaseType string
		databaseDSN  string
	)

	flag.StringVar(&listenAddr, "listen", ":8080", "Address to listen on")
	flag.StringVar(&databaseType, "db-type", "", "Database type (postgres or sqlite)")
	flag.StringVar(&databaseDSN, "db-dsn", "", "Database connection string")
	flag.Parse()

	// Initialize glog for backwards compatibility
	_ = flag.Set("logtostderr", "true")

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if databaseDSN == "" {
		databaseDSN = os.Getenv("DATABASE_DSN")
	}
	if databaseType == "" {
		databaseType = os.Getenv("DATABASE_TYPE")
		if databaseType == "" {
			databaseType = db.TypePostgres
		}
	}

	logger.Info("starting registry server", "listen", listenAddr, "dbType", databaseType)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	gormDB, err := db.Connect(databaseType, databaseDSN, logger)
	if err != nil {
		glog.Fatalf("Failed to connect to database: %v", err)
	}

	svc := registry.NewService(gormDB, registry.WithLogger(logger))
	keyStore := apikey.NewStore(gormDB)
	auditStore := audit.NewStore(gormDB)

	if err := svc.AutoMigrate(); err != nil {
		glog.Fatalf("Failed to migrate registry tables: %v", err)
	}
	if err := keyStore.AutoMigrate(); err != nil {
		glog.Fatalf("Failed to migrate auth tables: %v", err)
	}
	if err := auditStore.AutoMigrate(); err != nil {
		glog.Fatalf("Failed to migrate audit tables: %v", err)
	}

	apiOpts := []registry.APIOption{registry.WithAPILogger(logger)}

	auditCfg := audit.ConfigFromEnv()
	if auditCfg.Enabled {
		apiOpts = append(apiOpts, registry.WithAuditStore(auditStore))
		retention := audit.NewRetentionWorker(auditStore, auditCfg.RetentionDays, logger)
		go retention.Run(ctx)
		logger.Info("ingestion audit enabled", "retentionDays", auditCfg.RetentionDays)
	}

	cacheCfg := cache.ConfigFromEnv()
	if cacheCfg.Enabled {
		apiOpts = append(apiOpts, registry.WithSnapshotCache(cache.New(cacheCfg.MaxSize, cacheCfg.TTL)))
		logger.Info("query snapshot cache enabled", "maxSize", cacheCfg.MaxSize, "ttl", cacheCfg.TTL.String())
	}

	api := registry.NewAPI(svc, apiOpts...)
	router := registry.NewRouter(api, keyStore, logger)

	httpServer := &http.Server{
		Addr:    listenAddr,
		Handler: router,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			glog.Fatalf("HTTP server error: %v", err)
		}
	}()

	logger.Info("registry server ready", "listen", listenAddr)

	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	logger.Info("registry server stopped")
}
