package schedule

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/richardliu001/appointment-service/internal/model"
)

const keyPrefix = "schedule:"

// RedisLookup reads schedules stored as hashes under schedule:<id>.
type RedisLookup struct {
	rdb redis.Cmdable
	now func() time.Time
}

func NewRedisLookup(rdb redis.Cmdable) *RedisLookup {
	return &RedisLookup{rdb: rdb, now: time.Now}
}

func Key(id int64) string {
	return keyPrefix + strconv.FormatInt(id, 10)
}

func (l *RedisLookup) GetByID(ctx context.Context, id int64) (*model.Schedule, error) {
	fields, err := l.rdb.HGetAll(ctx, Key(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	s := &model.Schedule{ScheduleID: id}
	for name, dst := range map[string]*int64{
		"center_id":       &s.CenterID,
		"specialty_id":    &s.SpecialtyID,
		"practitioner_id": &s.PractitionerID,
	} {
		if *dst, err = strconv.ParseInt(fields[name], 10, 64); err != nil {
			return nil, fmt.Errorf("schedule %d field %s: %w", id, name, err)
		}
	}
	if s.Date, err = time.Parse(time.RFC3339, fields["date"]); err != nil {
		return nil, fmt.Errorf("schedule %d field date: %w", id, err)
	}
	return s, nil
}

// Put writes s as a hash, replacing any previous fields. Schedules that are not
// bookable now are refused with ErrNotBookable.
func (l *RedisLookup) Put(ctx context.Context, s model.Schedule) error {
	if !s.Valid(l.now()) {
		return fmt.Errorf("%w: %d", ErrNotBookable, s.ScheduleID)
	}
	return l.rdb.HSet(ctx, Key(s.ScheduleID),
		"center_id", strconv.FormatInt(s.CenterID, 10),
		"specialty_id", strconv.FormatInt(s.SpecialtyID, 10),
		"practitioner_id", strconv.FormatInt(s.PractitionerID, 10),
		"date", s.Date.UTC().Format(time.RFC3339),
	).Err()
}
