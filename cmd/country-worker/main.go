package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/richardliu001/appointment-service/internal/config"
	"github.com/richardliu001/appointment-service/internal/logger"
	"github.com/richardliu001/appointment-service/internal/messaging"
	"github.com/richardliu001/appointment-service/internal/model"
	"github.com/richardliu001/appointment-service/internal/repo"
	"github.com/richardliu001/appointment-service/internal/schedule"
	"github.com/richardliu001/appointment-service/internal/worker"

	"github.com/go-redis/redis/v8"
)

func main() {
	configPath := flag.String("config", "internal/config/config.yaml", "path to config file")
	countryFlag := flag.String("country", os.Getenv("COUNTRY"), "country served by this worker (PE, CL)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Errorf("load config: %w", err))
	}
	country, ok := model.ParseCountry(strings.ToUpper(*countryFlag))
	if !ok {
		panic(fmt.Errorf("unsupported country %q", *countryFlag))
	}

	log, err := logger.NewLogger(cfg.Log.Level)
	if err != nil {
		panic(fmt.Errorf("init logger: %w", err))
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := repo.OpenCountry(cfg, country)
	if err != nil {
		log.Fatalf("open country store: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("redis ping: %v", err)
	}

	publisher := messaging.NewKafkaPublisher(messaging.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.CompletionTopic))
	defer publisher.Close()

	group := cfg.Kafka.GroupPrefix + "-" + strings.ToLower(string(country))
	sub := messaging.NewKafkaSubscriber(cfg.Kafka.Brokers, cfg.Kafka.RequestTopic, group)
	defer sub.Close()

	w, err := worker.NewCountryWorker(country, schedule.NewRedisLookup(rdb), store, publisher, cfg.Worker.PoolSize, log)
	if err != nil {
		log.Fatalf("init worker: %v", err)
	}
	defer w.Close()

	log.Infow("country worker started", "country", country, "group", group, "topic", cfg.Kafka.RequestTopic)
	worker.Run(ctx, sub, w, cfg.Kafka.BatchSize, cfg.Kafka.BatchWait, log)
	log.Info("country worker stopped")
}
