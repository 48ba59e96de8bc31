package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/epic1st/marketfeed/internal/api"
	"github.com/epic1st/marketfeed/internal/auth"
	"github.com/epic1st/marketfeed/internal/catalog"
	"github.com/epic1st/marketfeed/internal/config"
	"github.com/epic1st/marketfeed/internal/dispatch"
	"github.com/epic1st/marketfeed/internal/health"
	"github.com/epic1st/marketfeed/internal/metrics"
	"github.com/epic1st/marketfeed/internal/session"
	"github.com/epic1st/marketfeed/internal/simulator"
	"github.com/epic1st/marketfeed/internal/subscription"
	"github.com/epic1st/marketfeed/internal/tick"
	"github.com/epic1st/marketfeed/internal/transport/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Println("╔═══════════════════════════════════════════════════════════╗")
	log.Println("║              Market Data Fan-Out Service                   ║")
	log.Println("╚═══════════════════════════════════════════════════════════╝")

	cat, err := loadCatalog(cfg)
	if err != nil {
		log.Fatalf("Failed to load instrument catalog: %v", err)
	}
	log.Printf("[Catalog] loaded %d instruments", cat.Len())

	sim := simulator.New(cfg.Simulation.Volatility)

	index := subscription.New(cfg.Tick.SubscriptionTTL)
	if cfg.UsesRedisMirror() {
		mirror, err := subscription.NewRedisMirror(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Printf("[Index] redis mirror unavailable, continuing without it: %v", err)
		} else {
			index.SetMirror(mirror)
			log.Println("[Index] redis subscription mirror attached")
		}
	}

	authenticator, err := auth.NewJWTAuthenticator([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		log.Fatalf("Failed to build JWT authenticator: %v", err)
	}

	internalGuard, err := auth.NewInternalGuard(cfg.Internal.SharedSecret)
	if err != nil {
		log.Fatalf("Failed to build internal route guard: %v", err)
	}

	hub := ws.NewHub(authenticator)
	dispatcher := dispatch.New(index, hub)
	lifecycle := session.New(cat, index, dispatcher)
	hub.SetLifecycle(lifecycle)

	engine := tick.New(cat, sim, index, dispatcher, tick.Config{
		BroadcastPeriod: cfg.Tick.BroadcastPeriod,
		SweepPeriod:     cfg.Tick.SweepPeriod,
	})

	apiHandler := api.NewHandler(cat, internalGuard)
	healthChecker := health.NewChecker(cat)

	mux := http.NewServeMux()
	apiHandler.Register(mux)
	mux.Handle("/ws/market", hub)
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", healthChecker.Handler())

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		engine.Run(ctx)
	}()

	go func() {
		log.Printf("[HTTP] listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[HTTP] server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("[Shutdown] signal received, draining in-flight work")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[Shutdown] HTTP server did not shut down cleanly: %v", err)
	}

	wg.Wait()
	log.Println("[Shutdown] complete")
}

func loadCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	if cfg.UsesPostgresSeed() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return catalog.LoadFromPostgres(ctx, cfg.Catalog.PostgresDSN)
	}
	return catalog.Load(cfg.Catalog.SeedPath)
}
