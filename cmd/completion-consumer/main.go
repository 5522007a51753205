package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/richardliu001/appointment-service/internal/config"
	"github.com/richardliu001/appointment-service/internal/logger"
	"github.com/richardliu001/appointment-service/internal/messaging"
	"github.com/richardliu001/appointment-service/internal/repo"
	"github.com/richardliu001/appointment-service/internal/service"
	"github.com/richardliu001/appointment-service/internal/worker"
	"gorm.io/gorm"
)

func main() {
	configPath := flag.String("config", "internal/config/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Errorf("load config: %w", err))
	}

	log, err := logger.NewLogger(cfg.Log.Level)
	if err != nil {
		panic(fmt.Errorf("init logger: %w", err))
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var gdb *gorm.DB
	if cfg.FastPath.Driver == config.DriverPostgres {
		if gdb, err = repo.OpenPostgres(cfg.Postgres.DSN); err != nil {
			log.Fatalf("open postgres: %v", err)
		}
	}
	appointments, err := repo.OpenAppointments(ctx, cfg, gdb)
	if err != nil {
		log.Fatalf("open fast path: %v", err)
	}

	consumer, err := worker.NewCompletionConsumer(service.NewCompletionService(appointments, log), cfg.Worker.PoolSize, log)
	if err != nil {
		log.Fatalf("init consumer: %v", err)
	}
	defer consumer.Close()

	group := cfg.Kafka.GroupPrefix + "-completion"
	sub := messaging.NewKafkaSubscriber(cfg.Kafka.Brokers, cfg.Kafka.CompletionTopic, group)
	defer sub.Close()

	log.Infow("completion consumer started", "group", group, "topic", cfg.Kafka.CompletionTopic)
	worker.Run(ctx, sub, consumer, cfg.Kafka.BatchSize, cfg.Kafka.BatchWait, log)
	log.Info("completion consumer stopped")
}
