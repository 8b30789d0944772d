package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ariefcatur/go-agro-market/internal/app"
	"github.com/ariefcatur/go-agro-market/internal/config"
	"github.com/ariefcatur/go-agro-market/internal/events"
	"github.com/ariefcatur/go-agro-market/internal/httpx"
	kafkax "github.com/ariefcatur/go-agro-market/internal/kafka"
	"github.com/ariefcatur/go-agro-market/internal/logx"
	"github.com/ariefcatur/go-agro-market/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logx.New(cfg.LogLevel, cfg.LogFormat, cfg.ServiceName)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, closeStore, err := app.OpenStore(ctx, cfg)
	if err != nil {
		log.Error("open store", "driver", cfg.StoreDriver, "err", err)
		os.Exit(1)
	}
	defer closeStore()

	gateway, err := app.Gateway(cfg)
	if err != nil {
		log.Error("payment gateway", "err", err)
		os.Exit(1)
	}

	// Redis backs idempotency keys and the order status cache
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	var pub events.Publisher = events.Nop{}
	var bus *kafkax.Bus
	if cfg.EventsEnabled {
		bus = kafkax.NewBus(cfg.KafkaBrokers, events.Topics, 1024, log)
		pub = bus
	}

	svcs := app.New(app.Deps{
		Store:    store,
		Payments: gateway,
		Merchant: app.MerchantOf(cfg),
		Events:   pub,
		Producer: cfg.ServiceName,
		Log:      log,
	})

	if cfg.DemandSweepEvery > 0 {
		go svcs.Demands.RunSweeper(ctx, cfg.DemandSweepEvery)
		log.Info("demand expiry sweeper started", "every", cfg.DemandSweepEvery.String())
	}

	router := httpx.NewRouter(log)
	api := &httpx.API{
		Accounts:       svcs.Accounts,
		Subscriptions:  svcs.Subscriptions,
		Catalog:        svcs.Catalog,
		Cart:           svcs.Cart,
		Orders:         svcs.Orders,
		Demands:        svcs.Demands,
		Cache:          &redisx.Cache{RDB: rdb},
		Log:            log,
		RequestTimeout: cfg.RequestTimeout,
		PaymentTimeout: cfg.CheckoutTimeout,
	}
	api.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr, "store", cfg.StoreDriver, "events", cfg.EventsEnabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("listen", "err", err)
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Info("shutting down")

	// payment routes may legitimately run for CheckoutTimeout
	grace := max(5*time.Second, cfg.CheckoutTimeout+time.Second)
	ctx2, cancel2 := context.WithTimeout(context.Background(), grace)
	defer cancel2()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Warn("http shutdown", "grace", grace.String(), "err", err)
	}
	cancel()
	if bus != nil {
		bus.Close() // flush queued events
	}
}
