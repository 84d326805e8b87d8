package queue

import (
	"context"
	"encoding/json"
	"log"

	"github.com/go-redis/redis/v8"

	"shorts-factory/config"
	"shorts-factory/graph"
)

// Publisher fans graph events out on a Redis pub/sub channel.
type Publisher struct {
	rdb     backend
	channel string
}

func NewPublisher(rdb *redis.Client, cfg config.QueueConfig) *Publisher {
	return newPublisher(rdb, cfg.ProgressChannel)
}

func newPublisher(rdb backend, channel string) *Publisher {
	if channel == "" {
		channel = "shorts:progress"
	}
	return &Publisher{rdb: rdb, channel: channel}
}

// Notify publishes e as JSON. Failures are logged and never stop the run.
func (p *Publisher) Notify(ctx context.Context, e graph.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		log.Printf("[queue] Warning: could not encode event: %v", err)
		return
	}
	if err := p.rdb.Publish(ctx, p.channel, data).Err(); err != nil {
		log.Printf("[queue] Warning: could not publish progress for %s: %v", e.ProjectID, err)
	}
}

var _ graph.Notifier = (*Publisher)(nil)
