package auth

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Update is the full token map after a change, tagged with the publishing
// instance.
type Update struct {
	Origin string                `json:"origin"`
	Tokens map[string]Credential `json:"tokens"`
}

type Broadcaster interface {
	Publish(ctx context.Context, u Update) error
	Subscribe(ctx context.Context, fn func(Update)) error
}

// LocalBroadcaster fans updates out to subscribers in the same process.
type LocalBroadcaster struct {
	mu   sync.RWMutex
	subs map[int]func(Update)
	next int
}

func NewLocalBroadcaster() *LocalBroadcaster {
	return &LocalBroadcaster{subs: map[int]func(Update){}}
}

func (b *LocalBroadcaster) Publish(_ context.Context, u Update) error {
	b.mu.RLock()
	fns := make([]func(Update), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.RUnlock()
	for _, fn := range fns {
		fn(u)
	}
	return nil
}

func (b *LocalBroadcaster) Subscribe(ctx context.Context, fn func(Update)) error {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = fn
	b.mu.Unlock()
	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}()
	return nil
}

// RedisBroadcaster shares token updates between processes over Redis
// Pub/Sub.
type RedisBroadcaster struct {
	client  *redis.Client
	channel string
}

func NewRedisBroadcaster(client *redis.Client, channel string) *RedisBroadcaster {
	return &RedisBroadcaster{client: client, channel: channel}
}

func (b *RedisBroadcaster) Publish(ctx context.Context, u Update) error {
	raw, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, raw).Err()
}

// Subscribe returns once the subscription is confirmed; delivery continues
// on a goroutine until ctx ends.
func (b *RedisBroadcaster) Subscribe(ctx context.Context, fn func(Update)) error {
	ps := b.client.Subscribe(ctx, b.channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return err
	}
	ch := ps.Channel()
	go func() {
		defer ps.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var u Update
				if err := json.Unmarshal([]byte(msg.Payload), &u); err != nil {
					log.Warn().Err(err).Str("channel", b.channel).Msg("drop malformed auth update")
					continue
				}
				fn(u)
			}
		}
	}()
	return nil
}
