package events

import (
	"context"
	"sync"

	"github.com/yoockh/medscribe/internal/models"
)

type memSub struct {
	ch chan models.Snapshot
}

// MemoryBus is the single-process Bus used when no redis is configured.
type MemoryBus struct {
	mu   sync.Mutex
	subs map[string]map[*memSub]struct{}
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: map[string]map[*memSub]struct{}{}}
}

func (b *MemoryBus) Publish(_ context.Context, snap models.Snapshot) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for s := range b.subs[snap.ID] {
		select {
		case s.ch <- snap:
		default:
			// subscriber is behind: drop its oldest snapshot so the
			// latest, possibly terminal, one is never lost
			select {
			case <-s.ch:
			default:
			}
			s.ch <- snap
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(_ context.Context, id string) (<-chan models.Snapshot, func(), error) {
	s := &memSub{ch: make(chan models.Snapshot, subscriberBuffer)}

	b.mu.Lock()
	if b.subs[id] == nil {
		b.subs[id] = map[*memSub]struct{}{}
	}
	b.subs[id][s] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[id], s)
			if len(b.subs[id]) == 0 {
				delete(b.subs, id)
			}
			close(s.ch)
			b.mu.Unlock()
		})
	}
	return s.ch, stop, nil
}
