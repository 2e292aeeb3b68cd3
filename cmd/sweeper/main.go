package main

import (
	"context"
	"github.com/ariefcatur/shop-fulfillment/internal/app"
	"github.com/ariefcatur/shop-fulfillment/internal/config"
	"github.com/ariefcatur/shop-fulfillment/internal/fulfillment"
	kafkax "github.com/ariefcatur/shop-fulfillment/internal/kafka"
	"github.com/ariefcatur/shop-fulfillment/internal/logx"
	"github.com/ariefcatur/shop-fulfillment/internal/observability"
	"github.com/ariefcatur/shop-fulfillment/internal/orders"
	"github.com/ariefcatur/shop-fulfillment/internal/projection"
	"github.com/ariefcatur/shop-fulfillment/internal/redisx"
	"github.com/ariefcatur/shop-fulfillment/internal/retry"
	"github.com/ariefcatur/shop-fulfillment/internal/sweeper"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"log"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger, err := logx.New(cfg.ServiceName+"-sweeper", cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.Setup(ctx, cfg.ServiceName+"-sweeper", cfg.OTLPEndpoint)
	if err != nil {
		logger.Fatal("tracing setup", zap.Error(err))
	}

	backend, err := app.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("store", zap.Error(err))
	}
	defer backend.Close()
	if !backend.Shared {
		logger.Fatal("sweeper needs a shared store; with STORE=memory the api runs the sweeper itself", zap.String("store", cfg.Store))
	}

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	cache := &redisx.StatusCache{R: rdb}

	statusProd := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderStatus, 1024, logger)
	statusProd.Start(ctx)

	engine := fulfillment.New(backend.Store, backend.Settings, logger, statusProd, cfg.ServiceName+"-sweeper")
	sw := &sweeper.Sweeper{
		Store:    backend.Store,
		Engine:   engine,
		Log:      logger,
		Interval: cfg.SweepInterval,
		Batch:    cfg.SweepBatch,
		Retry:    retry.Default,
	}
	proj := &projection.Projector{Cache: cache, Log: logger, Name: cfg.ConsumerGroup}
	statusCons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.ConsumerGroup, orders.TopicOrderStatus, cfg.ConsumerWorkers, logger)
	stockCons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.ConsumerGroup+"-stock", orders.TopicInventoryChanged, cfg.ConsumerWorkers, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sw.Run(gctx) })
	g.Go(func() error { return statusCons.Start(gctx, proj.HandleStatusChanged) })
	g.Go(func() error { return stockCons.Start(gctx, proj.HandleInventoryChanged) })

	if err := g.Wait(); err != nil {
		logger.Error("worker exited", zap.Error(err))
	}
	logger.Info("shutting down")

	statusProd.Close()
	statusProd.WaitClosed()
	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdownTracing(ctx2); err != nil {
		logger.Warn("tracing shutdown", zap.Error(err))
	}
}
