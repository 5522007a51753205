package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/richardliu001/appointment-service/internal/auth"
	"github.com/richardliu001/appointment-service/internal/config"
	"github.com/richardliu001/appointment-service/internal/logger"
	"github.com/richardliu001/appointment-service/internal/messaging"
	"github.com/richardliu001/appointment-service/internal/model"
	"github.com/richardliu001/appointment-service/internal/repo"
	"github.com/richardliu001/appointment-service/internal/schedule"
	"github.com/richardliu001/appointment-service/internal/service"
	httptransport "github.com/richardliu001/appointment-service/internal/transport/http"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
	"gorm.io/gorm"
)

func main() {
	configPath := flag.String("config", "internal/config/config.yaml", "path to config file")
	flag.Parse()

	// 1. load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Errorf("load config: %w", err))
	}
	if cfg.Auth.JWTSecret == "" {
		panic("auth.jwt_secret (or JWT_SECRET) is required")
	}

	// 2. init logger
	log, err := logger.NewLogger(cfg.Log.Level)
	if err != nil {
		panic(fmt.Errorf("init logger: %w", err))
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checks := map[string]httptransport.CheckFunc{}

	// 3. postgres
	var gdb *gorm.DB
	users := repo.UserRepository(repo.NewMemoryUserRepository())
	if cfg.Postgres.DSN != "" {
		gdb, err = repo.OpenPostgres(cfg.Postgres.DSN)
		if err != nil {
			log.Fatalf("open postgres: %v", err)
		}
		if err := gdb.AutoMigrate(&model.User{}); err != nil {
			log.Fatalf("auto-migrate: %v", err)
		}
		users = repo.NewGormUserRepository(gdb)
		checks["postgres"] = func(ctx context.Context) error {
			sqlDB, err := gdb.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}
	}

	appointments, err := repo.OpenAppointments(ctx, cfg, gdb)
	if err != nil {
		log.Fatalf("open fast path: %v", err)
	}

	// 4. redis
	var schedules schedule.Lookup = schedule.NewMemoryLookup(schedule.DefaultSchedules()...)
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("redis ping: %v", err)
		}
		schedules = schedule.NewRedisLookup(rdb)
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	// 5. kafka writer
	kw := messaging.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.RequestTopic)
	publisher := messaging.NewKafkaPublisher(kw)
	defer publisher.Close()
	checks["kafka"] = func(ctx context.Context) error {
		conn, err := kafka.DialContext(ctx, "tcp", cfg.Kafka.Brokers[0])
		if err != nil {
			return err
		}
		return conn.Close()
	}

	// 6. services
	tokens := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	apptSvc := service.NewAppointmentService(appointments, schedules, publisher, log)
	authSvc := service.NewAuthService(users, tokens, log)

	// 7. gin router
	router := httptransport.NewRouter(httptransport.Deps{
		Appointments: apptSvc,
		Auth:         authSvc,
		Tokens:       tokens,
		Health:       httptransport.NewHealthHandler(checks, version),
		Log:          log,
	}, cfg.RateLimit)

	// 8. serve
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}
	go func() {
		log.Infof("appointment-server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("shutdown: %v", err)
	}
}

var version = "dev"
