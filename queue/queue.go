// Package queue moves pipeline jobs and progress events through Redis.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"shorts-factory/config"
	"shorts-factory/types"
)

// Job is one queued pipeline run.
type Job struct {
	ID         string        `json:"id"`
	Request    types.Request `json:"request"`
	EnqueuedAt time.Time     `json:"enqueued_at"`
}

// Encode serialises a job for the list payload.
func Encode(j Job) (string, error) {
	data, err := json.Marshal(j)
	if err != nil {
		return "", fmt.Errorf("encode job: %w", err)
	}
	return string(data), nil
}

// Decode parses a list payload. A job without a project ID is rejected.
func Decode(payload string) (Job, error) {
	var j Job
	if err := json.Unmarshal([]byte(payload), &j); err != nil {
		return Job{}, fmt.Errorf("decode job: %w", err)
	}
	if j.Request.ProjectID == "" {
		return Job{}, errors.New("decode job: missing project_id")
	}
	return j, nil
}

// backend is the slice of the Redis client the queue uses.
type backend interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	BRPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Queue is a Redis list used as a FIFO: LPUSH to enqueue, BRPOP to take.
type Queue struct {
	rdb  backend
	name string
}

func New(rdb *redis.Client, cfg config.QueueConfig) *Queue {
	return newQueue(rdb, cfg.Name)
}

func newQueue(rdb backend, name string) *Queue {
	if name == "" {
		name = "shorts:jobs"
	}
	return &Queue{rdb: rdb, name: name}
}

// Name is the Redis key of the list.
func (q *Queue) Name() string { return q.name }

// NewClient connects to REDIS_URL and pings it.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, errors.New("REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// Enqueue pushes a run request. Requests without a project ID get one.
func (q *Queue) Enqueue(ctx context.Context, req types.Request) (Job, error) {
	if req.ProjectID == "" {
		req.ProjectID = uuid.NewString()
	}
	job := Job{ID: uuid.NewString(), Request: req, EnqueuedAt: time.Now().UTC()}
	payload, err := Encode(job)
	if err != nil {
		return Job{}, err
	}
	if err := q.rdb.LPush(ctx, q.name, payload).Err(); err != nil {
		return Job{}, fmt.Errorf("push to %s: %w", q.name, err)
	}
	log.Printf("[queue] Enqueued job %s for project %s", job.ID, req.ProjectID)
	return job, nil
}

// pop waits up to timeout for a job. ok is false on timeout.
func (q *Queue) pop(ctx context.Context, timeout time.Duration) (payload string, ok bool, err error) {
	res, err := q.rdb.BRPop(ctx, timeout, q.name).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	// res[0] is the list name, res[1] the payload
	if len(res) < 2 {
		return "", false, fmt.Errorf("unexpected BRPOP reply %v", res)
	}
	return res[1], true, nil
}
