package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ariefcatur/go-agro-market/internal/catalog"
	"github.com/ariefcatur/go-agro-market/internal/config"
	"github.com/ariefcatur/go-agro-market/internal/events"
	"github.com/ariefcatur/go-agro-market/internal/inventory"
	kafkax "github.com/ariefcatur/go-agro-market/internal/kafka"
	"github.com/ariefcatur/go-agro-market/internal/logx"
	"github.com/ariefcatur/go-agro-market/internal/postgres"
	"github.com/ariefcatur/go-agro-market/internal/redisx"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := logx.New(cfg.LogLevel, cfg.LogFormat, cfg.ServiceName+"-inventory")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Error("db connect", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	repo := &postgres.Repo{DB: db}
	svc := &inventory.Service{
		Stock: &catalog.Service{Repo: repo, Users: repo, Subscriptions: repo, Log: log},
		Dedup: &redisx.Dedup{RDB: rdb, Service: "inventory"},
		Log:   log,
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.InventoryGroup, events.TopicOrderCreated, cfg.InventoryWorkers, log)
	log.Info("inventory consumer started", "group", cfg.InventoryGroup, "topic", events.TopicOrderCreated,
		"workers", cfg.InventoryWorkers)
	if err := cons.Start(ctx, svc.HandleOrderCreated); err != nil {
		log.Error("consumer exit", "err", err)
		os.Exit(1)
	}
	log.Info("inventory consumer stopped")
}
