package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/lox/deathmoves/internal/protocol"
	"github.com/redis/go-redis/v9"
)

// Key templates
const (
	KeyPresence = "%s:presence"
)

// RedisChannel is a Channel over Redis pub/sub for sessions without a hub.
// Presence lives in a hash next to the channel, and every join or leave
// publishes a fresh ROSTER built from it.
type RedisChannel struct {
	client  *redis.Client
	channel string
	self    protocol.Participant
	logger  *log.Logger

	mu     sync.Mutex
	hs     handlers
	pubsub *redis.PubSub
	done   chan struct{}
	closed bool
}

// NewRedisChannel connects to Redis at addr and subscribes to channel.
func NewRedisChannel(ctx context.Context, addr, channel string, self protocol.Participant, logger *log.Logger) (*RedisChannel, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	r := &RedisChannel{
		client:  client,
		channel: channel,
		self:    self,
		logger:  logger.WithPrefix("redis").With("channel", channel),
		done:    make(chan struct{}),
	}

	r.pubsub = client.Subscribe(ctx, channel)
	// Wait for the subscription confirmation so nothing published after
	// this returns is missed.
	if _, err := r.pubsub.Receive(ctx); err != nil {
		_ = r.pubsub.Close()
		_ = client.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}
	go r.receive()

	if err := r.join(ctx); err != nil {
		_ = r.Close()
		return nil, err
	}
	return r, nil
}

// Publish implements Channel.
func (r *RedisChannel) Publish(ctx context.Context, msg *protocol.Message) error {
	out := msg.Clone()
	out.Sender = r.self.UserID
	return r.publish(ctx, out)
}

func (r *RedisChannel) publish(ctx context.Context, msg *protocol.Message) error {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return ErrClosed
	}

	data, err := protocol.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.Type, err)
	}
	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", msg.Type, err)
	}
	return nil
}

// Subscribe implements Channel.
func (r *RedisChannel) Subscribe(h Handler) func() {
	r.mu.Lock()
	id := r.hs.add(h)
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			r.hs.remove(id)
			r.mu.Unlock()
		})
	}
}

// Close removes the local peer from presence and unsubscribes.
func (r *RedisChannel) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	ctx := context.Background()
	if err := r.client.HDel(ctx, r.presenceKey(), r.self.UserID).Err(); err != nil {
		r.logger.Warn("Failed to clear presence", "error", err)
	}
	if err := r.publishRoster(ctx); err != nil {
		r.logger.Warn("Failed to publish roster", "error", err)
	}

	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	err := r.pubsub.Close()
	<-r.done
	if cerr := r.client.Close(); err == nil {
		err = cerr
	}
	return err
}

func (r *RedisChannel) presenceKey() string {
	return fmt.Sprintf(KeyPresence, r.channel)
}

func (r *RedisChannel) join(ctx context.Context) error {
	data, err := json.Marshal(r.self)
	if err != nil {
		return err
	}
	if err := r.client.HSet(ctx, r.presenceKey(), r.self.UserID, data).Err(); err != nil {
		return fmt.Errorf("store presence: %w", err)
	}
	return r.publishRoster(ctx)
}

func (r *RedisChannel) publishRoster(ctx context.Context) error {
	entries, err := r.client.HGetAll(ctx, r.presenceKey()).Result()
	if err != nil {
		return fmt.Errorf("load presence: %w", err)
	}
	participants := make([]protocol.Participant, 0, len(entries))
	for id, raw := range entries {
		var p protocol.Participant
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			r.logger.Debug("Skipping malformed presence entry", "user", id, "error", err)
			continue
		}
		participants = append(participants, p)
	}
	sort.Slice(participants, func(i, j int) bool {
		return participants[i].UserID < participants[j].UserID
	})

	msg, err := protocol.NewMessage(protocol.Roster{Participants: participants})
	if err != nil {
		return err
	}
	return r.publish(ctx, msg)
}

func (r *RedisChannel) receive() {
	defer close(r.done)
	ctx := context.Background()

	for m := range r.pubsub.Channel() {
		msg, err := protocol.Unmarshal([]byte(m.Payload))
		if err != nil {
			r.logger.Debug("Ignoring malformed message", "error", err)
			continue
		}
		if msg.Sender != "" && msg.Sender == r.self.UserID {
			continue
		}

		r.mu.Lock()
		hs := r.hs.snapshot()
		r.mu.Unlock()
		for _, h := range hs {
			h(ctx, msg)
		}
	}
}
