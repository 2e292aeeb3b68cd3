package main

import (
	"context"
	"errors"
	"github.com/ariefcatur/shop-fulfillment/internal/app"
	"github.com/ariefcatur/shop-fulfillment/internal/config"
	"github.com/ariefcatur/shop-fulfillment/internal/fulfillment"
	"github.com/ariefcatur/shop-fulfillment/internal/httpx"
	"github.com/ariefcatur/shop-fulfillment/internal/inventory"
	kafkax "github.com/ariefcatur/shop-fulfillment/internal/kafka"
	"github.com/ariefcatur/shop-fulfillment/internal/logx"
	"github.com/ariefcatur/shop-fulfillment/internal/observability"
	"github.com/ariefcatur/shop-fulfillment/internal/orders"
	"github.com/ariefcatur/shop-fulfillment/internal/redisx"
	"github.com/ariefcatur/shop-fulfillment/internal/referral"
	"github.com/ariefcatur/shop-fulfillment/internal/retry"
	"github.com/ariefcatur/shop-fulfillment/internal/sweeper"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"log"
	"net/http"
	"os"
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
	logger, err := logx.New(cfg.ServiceName+"-api", cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := observability.Setup(ctx, cfg.ServiceName+"-api", cfg.OTLPEndpoint)
	if err != nil {
		logger.Fatal("tracing setup", zap.Error(err))
	}

	backend, err := app.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("store", zap.Error(err))
	}
	defer backend.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// one producer per topic
	statusProd := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderStatus, 1024, logger)
	statusProd.Start(ctx)
	stockProd := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicInventoryChanged, 1024, logger)
	stockProd.Start(ctx)

	engine := fulfillment.New(backend.Store, backend.Settings, logger, statusProd, cfg.ServiceName)
	api := &httpx.API{
		Engine:   engine,
		Stock:    &inventory.Service{Store: backend.Store, Log: logger, Events: stockProd, ServiceName: cfg.ServiceName},
		Referral: &referral.Service{Store: backend.Store, Log: logger},
		Settings: backend.Settings,
		Cache:    &redisx.StatusCache{R: rdb},
		Secret:   cfg.JWTSecret,
		Log:      logger,
		Timeout:  cfg.DBTimeout,
	}
	// a process-local store is invisible to cmd/sweeper
	sweepDone := make(chan struct{})
	if backend.Shared {
		close(sweepDone)
	} else {
		sw := &sweeper.Sweeper{
			Store:    backend.Store,
			Engine:   engine,
			Log:      logger,
			Interval: cfg.SweepInterval,
			Batch:    cfg.SweepBatch,
			Retry:    retry.Default,
		}
		go func() {
			defer close(sweepDone)
			if err := sw.Run(ctx); err != nil {
				logger.Error("sweeper exited", zap.Error(err))
			}
		}()
	}

	router := httpx.NewRouter(backend.Ping)
	api.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr), zap.String("store", cfg.Store))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	if err := srv.Shutdown(ctx2); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	cancel()
	<-sweepDone
	statusProd.Close()
	stockProd.Close()
	statusProd.WaitClosed()
	stockProd.WaitClosed()
	if err := shutdownTracing(ctx2); err != nil {
		logger.Warn("tracing shutdown", zap.Error(err))
	}
}
