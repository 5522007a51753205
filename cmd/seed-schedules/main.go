package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/go-redis/redis/v8"

	"github.com/richardliu001/appointment-service/internal/config"
	"github.com/richardliu001/appointment-service/internal/logger"
	"github.com/richardliu001/appointment-service/internal/model"
	"github.com/richardliu001/appointment-service/internal/schedule"
)

func main() {
	configPath := flag.String("config", "internal/config/config.yaml", "path to config file")
	count := flag.Int("n", 50, "number of random schedules to generate")
	startID := flag.Int64("start-id", 1000, "first id of generated schedules")
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

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	lookup := schedule.NewRedisLookup(rdb)

	gofakeit.Seed(time.Now().UnixNano())

	schedules := schedule.DefaultSchedules()
	now := time.Now().UTC().Truncate(time.Hour)
	for i := 0; i < *count; i++ {
		schedules = append(schedules, model.Schedule{
			ScheduleID:     *startID + int64(i),
			CenterID:       int64(gofakeit.Number(1, 20)),
			SpecialtyID:    int64(gofakeit.Number(1, 12)),
			PractitionerID: int64(gofakeit.Number(1, 200)),
			Date:           now.Add(time.Duration(gofakeit.Number(1, 24*60)) * 30 * time.Minute),
		})
	}

	seeded := 0
	for _, s := range schedules {
		err := lookup.Put(ctx, s)
		if errors.Is(err, schedule.ErrNotBookable) {
			log.Warnw("skip schedule", "schedule_id", s.ScheduleID, "date", s.Date, "error", err)
			continue
		}
		if err != nil {
			log.Fatalf("seed schedule %d: %v", s.ScheduleID, err)
		}
		seeded++
	}
	log.Infow("schedules seeded", "count", seeded, "skipped", len(schedules)-seeded)
}
