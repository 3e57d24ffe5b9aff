package events

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/medscribe/internal/models"
	"github.com/yoockh/medscribe/internal/utils"
)

// RedisBus publishes snapshots over redis pub/sub so any server instance
// can stream a workflow's progress.
type RedisBus struct {
	rdb redis.UniversalClient
	log *logrus.Logger
}

func NewRedisBus(rdb redis.UniversalClient, log *logrus.Logger) *RedisBus {
	if log == nil {
		log = logrus.New()
	}
	return &RedisBus{rdb: rdb, log: log}
}

func (b *RedisBus) Publish(ctx context.Context, snap models.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return utils.E(utils.CodeInternal, "RedisBus.Publish", "encode snapshot", err)
	}
	if err := b.rdb.Publish(ctx, channelName(snap.ID), payload).Err(); err != nil {
		return utils.E(utils.CodeUnavailable, "RedisBus.Publish", "redis publish failed", err)
	}
	return nil
}

func (b *RedisBus) Subscribe(ctx context.Context, id string) (<-chan models.Snapshot, func(), error) {
	pubsub := b.rdb.Subscribe(ctx, channelName(id))
	// wait for the subscription to be confirmed so no publish is missed
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, utils.E(utils.CodeUnavailable, "RedisBus.Subscribe", "redis subscribe failed", err)
	}

	out := make(chan models.Snapshot, subscriberBuffer)
	done := make(chan struct{})
	var once sync.Once
	stop := func() {
		once.Do(func() {
			close(done)
			_ = pubsub.Close()
		})
	}

	go func() {
		defer close(out)
		msgs := pubsub.Channel()
		for {
			select {
			case <-done:
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				var snap models.Snapshot
				if err := json.Unmarshal([]byte(m.Payload), &snap); err != nil {
					b.log.WithError(err).WithField("workflow_id", id).Warn("dropping undecodable event")
					continue
				}
				select {
				case out <- snap:
				case <-done:
					return
				}
			}
		}
	}()

	return out, stop, nil
}
