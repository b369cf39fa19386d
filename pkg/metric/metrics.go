// Package metric records per-model call latencies and error codes in Redis.
// Recording is observability only: nothing in the request path consults it
// to make control-flow decisions.
package metric

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/ainqa-health/aigateway/pkg/model"
)

// Tracker wraps a Redis client with the gateway's recording operations. A
// nil Tracker is valid and records nothing.
type Tracker struct {
	rdb *redis.Client
}

// NewTracker connects to Redis and verifies the connection.
func NewTracker(cfg model.RedisConfig) (*Tracker, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, errors.Wrap(err, "connecting to redis")
	}
	return &Tracker{rdb: rdb}, nil
}

// Close releases the underlying connection.
func (t *Tracker) Close() error {
	if t == nil {
		return nil
	}
	return t.rdb.Close()
}

func latencyKey(mc string) string { return "latency:" + mc }
func errorKey(mc string) string   { return "errors:" + mc }

// RecordLatency stores one call's latency with its outcome. Entries live in
// a sorted set scored by timestamp so cleanup and recency queries stay cheap.
func (t *Tracker) RecordLatency(ctx context.Context, modelName string, latency float64, status string) error {
	if t == nil {
		return nil
	}
	entry, err := json.Marshal(map[string]interface{}{
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"latency":   latency,
		"status":    status,
	})
	if err != nil {
		return errors.Wrap(err, "marshaling latency entry")
	}
	score := float64(time.Now().UTC().UnixNano())
	if err := t.rdb.ZAdd(ctx, latencyKey(modelName), redis.Z{Score: score, Member: string(entry)}).Err(); err != nil {
		return errors.Wrap(err, "recording latency")
	}
	return nil
}

// RecordErrorCode stores one failed call's HTTP status (zero for transport
// failures).
func (t *Tracker) RecordErrorCode(ctx context.Context, modelName string, statusCode int) error {
	if t == nil {
		return nil
	}
	entry, err := json.Marshal(map[string]interface{}{
		"timestamp":   time.Now().UTC().Format(time.RFC3339Nano),
		"status_code": statusCode,
	})
	if err != nil {
		return errors.Wrap(err, "marshaling error entry")
	}
	score := float64(time.Now().UTC().UnixNano())
	if err := t.rdb.ZAdd(ctx, errorKey(modelName), redis.Z{Score: score, Member: string(entry)}).Err(); err != nil {
		return errors.Wrap(err, "recording error code")
	}
	return nil
}

// AverageLatency computes the mean latency over the most recent n calls.
// Zero entries yield zero, not an error.
func (t *Tracker) AverageLatency(ctx context.Context, modelName string, n int64) (float64, error) {
	if t == nil {
		return 0, nil
	}
	entries, err := t.rdb.ZRevRange(ctx, latencyKey(modelName), 0, n-1).Result()
	if err != nil {
		return 0, errors.Wrap(err, "fetching latency entries")
	}
	if len(entries) == 0 {
		return 0, nil
	}

	var total float64
	for _, raw := range entries {
		var entry struct {
			Latency float64 `json:"latency"`
		}
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			return 0, errors.Wrap(err, "parsing latency entry")
		}
		total += entry.Latency
	}
	return total / float64(len(entries)), nil
}

// ErrorPercentages returns the share of each status code within the most
// recent n failures.
func (t *Tracker) ErrorPercentages(ctx context.Context, modelName string, n int64) (map[int]float64, error) {
	if t == nil {
		return map[int]float64{}, nil
	}
	if n < 0 {
		return nil, fmt.Errorf("number of calls cannot be negative: %d", n)
	}
	percentages := make(map[int]float64)
	if n == 0 {
		return percentages, nil
	}

	entries, err := t.rdb.ZRevRange(ctx, errorKey(modelName), 0, n-1).Result()
	if err != nil {
		return nil, errors.Wrap(err, "fetching error entries")
	}
	if len(entries) == 0 {
		return percentages, nil
	}

	counts := make(map[int]int)
	for _, raw := range entries {
		var entry struct {
			StatusCode int `json:"status_code"`
		}
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			return nil, errors.Wrap(err, "parsing error entry")
		}
		counts[entry.StatusCode]++
	}
	for code, count := range counts {
		percentages[code] = float64(count) / float64(len(entries)) * 100
	}
	return percentages, nil
}

// CleanupOld drops latency and error entries older than age.
func (t *Tracker) CleanupOld(ctx context.Context, modelName string, age time.Duration) error {
	if t == nil {
		return nil
	}
	max := fmt.Sprintf("%d", time.Now().UTC().Add(-age).UnixNano())
	if err := t.rdb.ZRemRangeByScore(ctx, latencyKey(modelName), "-inf", max).Err(); err != nil {
		return errors.Wrap(err, "removing old latencies")
	}
	if err := t.rdb.ZRemRangeByScore(ctx, errorKey(modelName), "-inf", max).Err(); err != nil {
		return errors.Wrap(err, "removing old errors")
	}
	return nil
}

// ClearModel deletes all data recorded for a model.
func (t *Tracker) ClearModel(ctx context.Context, modelName string) error {
	if t == nil {
		return nil
	}
	return t.rdb.Del(ctx, latencyKey(modelName), errorKey(modelName)).Err()
}
