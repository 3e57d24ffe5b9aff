// Package events fans workflow snapshots out to progress subscribers.
package events

import (
	"context"

	"github.com/yoockh/medscribe/internal/models"
)

// Bus delivers every published snapshot to the subscribers of its
// workflow id. Delivery is best effort: a subscriber that falls behind
// may miss intermediate snapshots.
type Bus interface {
	Publish(ctx context.Context, snap models.Snapshot) error
	// Subscribe returns a channel of snapshots for id and a func that
	// ends the subscription and closes the channel.
	Subscribe(ctx context.Context, id string) (<-chan models.Snapshot, func(), error)
}

const subscriberBuffer = 32

func channelName(id string) string {
	return "workflow:" + id + ":events"
}
