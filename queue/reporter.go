// Package queue is this subsystem's edge onto the task-queue transport:
// a consumer pulling job envelopes off the broker and a reporter writing
// job state to the transport's native result channel. Delivery
// semantics, retry scheduling, and visibility timeouts stay with the
// broker.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/sliceflow/pipeline/taskstate"
)

// RedisConfig holds the result backend settings.
type RedisConfig struct {
	Addr      string        `json:"addr" yaml:"addr"`
	Username  string        `json:"username" yaml:"username"`
	Password  string        `json:"password" yaml:"password"`
	DB        int           `json:"db" yaml:"db"`
	ResultTTL time.Duration `json:"result_ttl" yaml:"result_ttl"`
}

// stateRecord is the JSON document consumers poll from the result
// backend, keyed task-meta-{job id}.
type stateRecord struct {
	Status   string          `json:"status"`
	Progress float64         `json:"progress,omitempty"`
	Stage    taskstate.Stage `json:"stage,omitempty"`
	Message  string          `json:"message,omitempty"`
	Result   map[string]any  `json:"result,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// RedisReporter writes job state records to a Redis result backend.
// Writes are best-effort: the task state store is the durable record,
// this channel exists for transport-side consumers polling job state.
type RedisReporter struct {
	client *redis.Client
	ttl    time.Duration
	logger logrus.FieldLogger
}

// NewRedisReporter connects to the result backend and verifies the
// connection with a ping.
func NewRedisReporter(ctx context.Context, cfg *RedisConfig, logger logrus.FieldLogger) (*RedisReporter, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("queue: failed to ping result backend: %w", err)
	}

	ttl := cfg.ResultTTL
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return &RedisReporter{client: client, ttl: ttl, logger: logger}, nil
}

// Close releases the Redis connection.
func (r *RedisReporter) Close() error {
	return r.client.Close()
}

func resultKey(jobID string) string {
	return "task-meta-" + jobID
}

func (r *RedisReporter) write(ctx context.Context, jobID string, record *stateRecord) {
	payload, err := json.Marshal(record)
	if err != nil {
		r.logger.WithError(err).WithField("job_id", jobID).Warn("failed to encode state record")
		return
	}
	if err := r.client.Set(ctx, resultKey(jobID), payload, r.ttl).Err(); err != nil {
		r.logger.WithError(err).WithField("job_id", jobID).Warn("failed to write state record")
	}
}

// Progress records an intermediate progress state.
func (r *RedisReporter) Progress(ctx context.Context, jobID string, progress float64, stage taskstate.Stage, message string) {
	r.write(ctx, jobID, &stateRecord{
		Status:   "PROGRESS",
		Progress: progress,
		Stage:    stage,
		Message:  message,
	})
}

// Succeeded records the terminal SUCCESS state with the result payload.
func (r *RedisReporter) Succeeded(ctx context.Context, jobID string, result map[string]any) {
	r.write(ctx, jobID, &stateRecord{Status: "SUCCESS", Progress: 100, Result: result})
}

// Failed records the terminal FAILURE state with the classified message.
func (r *RedisReporter) Failed(ctx context.Context, jobID string, errMsg string) {
	r.write(ctx, jobID, &stateRecord{Status: "FAILURE", Error: errMsg})
}
