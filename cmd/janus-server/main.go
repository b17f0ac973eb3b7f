package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/BrandonDHaskell/Janus/internal/config"
	"github.com/BrandonDHaskell/Janus/internal/db"
	"github.com/BrandonDHaskell/Janus/internal/grpcapi"
	"github.com/BrandonDHaskell/Janus/internal/httpapi"
	"github.com/BrandonDHaskell/Janus/internal/janus/registry"
	"github.com/BrandonDHaskell/Janus/internal/janus/service"
	"github.com/BrandonDHaskell/Janus/internal/janus/store"
	"github.com/BrandonDHaskell/Janus/internal/janus/store/memory"
	"github.com/BrandonDHaskell/Janus/internal/janus/store/sqlite"
)

func main() {
	cfg := config.FromEnv()
	logger := log.New(os.Stdout, "janus-server ", log.LstdFlags|log.LUTC)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Stores
	var (
		kv    store.KVStore
		audit store.AuditEventStore
	)
	switch cfg.Store {
	case "memory":
		kv = memory.NewKVStore()
		audit = memory.NewAuditEventStore()
	default:
		conn, err := db.Open(ctx, db.Config{Path: cfg.DBPath, Env: cfg.Env})
		if err != nil {
			logger.Fatalf("open db: %v", err)
		}
		defer conn.Close()

		writer := db.NewWorker(conn)
		defer writer.Close()

		kv = sqlite.NewKVStore(conn, writer)
		audit = sqlite.NewAuditEventStore(conn, writer)
	}
	logger.Printf("store=%s key=%s", cfg.Store, cfg.RegistryKey)

	// Inventory
	provider, manifest := newInventory(cfg, logger)

	// Services
	regStore := registry.NewStore(kv, cfg.RegistryKey, logger)
	reconciler := registry.NewReconciler(regStore, provider, cfg.CallerTypes)
	policy := service.NewPolicyService(reconciler, audit, service.Options{
		SelfID:      cfg.SelfID,
		SelfName:    cfg.SelfName,
		EnforceLock: cfg.EnforceLock,
		Location:    cfg.SweepLocation,
	}, logger)

	if err := policy.EnsureDefaults(ctx); err != nil {
		logger.Fatalf("ensure defaults: %v", err)
	}

	sweeper := service.NewSweeper(policy, service.SweeperConfig{
		GraceDays:     cfg.SweepGraceDays,
		IntervalHours: cfg.SweepIntervalHours,
	}, logger)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	if manifest != nil {
		delay := time.Duration(cfg.SweepDelaySeconds) * time.Second
		err := manifest.Watch(ctx, func() {
			if sweeper.Trigger(delay) {
				logger.Printf("inventory changed; sweep in %s", delay)
			}
		})
		if err != nil {
			logger.Printf("inventory watch disabled: %v", err)
		}
	}

	// Transports
	httpSrv := httpapi.NewServer(httpapi.Dependencies{
		Logger:         logger,
		Addr:           cfg.HTTPAddr,
		PolicyService:  policy,
		AuditStore:     audit,
		SweepGraceDays: cfg.SweepGraceDays,
	})
	grpcSrv := grpcapi.NewServer(grpcapi.Dependencies{
		Logger:  logger,
		Addr:    cfg.GRPCAddr,
		Checker: policy,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Printf("http listening on %s", cfg.HTTPAddr)
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.Printf("grpc listening on %s", cfg.GRPCAddr)
		return grpcSrv.Start()
	})
	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		grpcSrv.Shutdown(shutdownCtx)
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Printf("server error: %v", err)
	}
}
