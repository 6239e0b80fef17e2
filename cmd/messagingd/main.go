package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hireme/internal/broker/kafka"
	"hireme/internal/config"
	"hireme/internal/obs"
	"hireme/internal/service"
	"hireme/internal/storage"
	"hireme/internal/storage/memory"
	mongostore "hireme/internal/storage/mongo"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger := obs.NewLogger("dev")
		logger.Error("config load failed", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env)

	var store storage.Store
	ready := func() error { return nil }
	if cfg.MongoURI != "" {
		mongo, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDB, logger)
		if err != nil {
			logger.Error("mongo init failed", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := mongo.Close(context.Background()); err != nil {
				logger.Error("mongo close failed", "error", err)
			}
		}()
		if err := mongo.Ping(ctx); err != nil {
			logger.Error("mongo ping failed", "error", err)
			os.Exit(1)
		}
		if err := mongo.EnsureIndexes(ctx); err != nil {
			logger.Error("mongo index setup failed", "error", err)
			os.Exit(1)
		}
		store = mongo
		ready = func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return mongo.Ping(pingCtx)
		}
		logger.Info("using mongo store", "database", cfg.MongoDB)
	} else {
		store = memory.NewStore()
		logger.Warn("MONGO_URI unset, using in-memory store")
	}

	hub := service.NewHub(logger)
	defer hub.Close()

	var events service.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers, nil)
		if err != nil {
			logger.Error("kafka producer init failed", "error", err)
			os.Exit(1)
		}
		relay := kafka.NewMessageRelay(producer, cfg.KafkaTopic, cfg.NodeID)
		defer func() {
			if err := relay.Close(); err != nil {
				logger.Error("kafka producer close failed", "error", err)
			}
		}()
		events = relay

		feeder := kafka.NewPushFeeder(hub, cfg.NodeID, logger)
		consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, nil, feeder)
		if err != nil {
			logger.Error("kafka consumer init failed", "error", err)
			os.Exit(1)
		}
		go func() {
			if err := consumer.Run(ctx, []string{cfg.KafkaTopic}); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("kafka consumer stopped", "error", err)
			}
		}()
		defer func() {
			if err := consumer.Close(); err != nil {
				logger.Error("kafka consumer close failed", "error", err)
			}
		}()
		logger.Info("kafka fan-out enabled", "topic", cfg.KafkaTopic, "node_id", cfg.NodeID)
	} else {
		logger.Warn("KAFKA_BROKERS unset, push fan-out is node-local")
	}

	handler := service.NewHandler(service.HandlerOptions{
		Store:        store,
		Hub:          hub,
		Events:       events,
		HistoryLimit: cfg.HistoryLimit,
		Logger:       logger,
	})
	router := service.NewRouter(handler,
		obs.Middleware{Logger: logger},
		obs.HealthHandlers{Ready: ready})
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("messagingd starting", "addr", cfg.HTTPAddr, "env", cfg.Env)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("messagingd stopped")
}
