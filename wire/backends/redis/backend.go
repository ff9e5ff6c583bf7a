// Package redisbackend stores snapshots in Redis hashes and announces changes
// over one pub/sub channel per key.
package redisbackend

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	jsoniter "github.com/json-iterator/go"
	redis "github.com/redis/go-redis/v9"

	"github.com/entitycache/graphwire/wire/core"
)

const (
	fieldData    = "data"
	fieldFormat  = "format"
	fieldVersion = "version"
	fieldStatus  = "status"

	// headerFieldPrefix namespaces the remaining metadata headers inside the hash.
	headerFieldPrefix = "header:"

	// DefaultChannelPrefix is prepended to every key to form its pub/sub channel.
	DefaultChannelPrefix = "graphwire::"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Option configures backend behavior.
type Option func(*config)

type config struct {
	channelPrefix string
}

// WithChannelPrefix overrides the prefix used for pub/sub channels.
func WithChannelPrefix(prefix string) Option {
	return func(cfg *config) {
		cfg.channelPrefix = prefix
	}
}

// Backend provides a Redis-backed snapshot store.
type Backend struct {
	client        redis.UniversalClient
	channelPrefix string
}

var _ core.Cache = (*Backend)(nil)

// NewBackend constructs a backend around an existing redis client.
func NewBackend(client redis.UniversalClient, opts ...Option) (*Backend, error) {
	if client == nil {
		return nil, errors.New("redisbackend: client is nil")
	}

	cfg := config{
		channelPrefix: DefaultChannelPrefix,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Backend{
		client:        client,
		channelPrefix: cfg.channelPrefix,
	}, nil
}

// NewBackendWithOptions creates a Redis client using go-redis options and wraps it with Backend.
func NewBackendWithOptions(options *redis.Options, opts ...Option) (*Backend, error) {
	if options == nil {
		return nil, errors.New("redisbackend: redis options are required")
	}
	client := redis.NewClient(options)
	return NewBackend(client, opts...)
}

// Set stores the payload and metadata in Redis. The hash is replaced as a
// whole so headers from an older snapshot never leak into a newer one.
func (b *Backend) Set(ctx context.Context, key string, payload core.Payload, meta core.Metadata) error {
	fields := map[string]any{
		fieldData:    payload.Data,
		fieldFormat:  payload.Format,
		fieldVersion: strconv.FormatInt(meta.Version, 10),
	}
	for name, value := range meta.Headers {
		if name == core.HeaderStatus {
			fields[fieldStatus] = value
			continue
		}
		fields[headerFieldPrefix+name] = value
	}

	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, fields)
		if meta.TTL > 0 {
			pipe.Expire(ctx, key, meta.TTL)
		}
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "redisbackend: set %s", key)
	}
	return nil
}

// Get retrieves the payload and metadata from Redis.
func (b *Backend) Get(ctx context.Context, key string) (core.Payload, core.Metadata, error) {
	result, err := b.client.HGetAll(ctx, key).Result()
	if err != nil {
		return core.Payload{}, core.Metadata{}, errors.Wrapf(err, "redisbackend: get %s", key)
	}
	if len(result) == 0 {
		return core.Payload{}, core.Metadata{}, core.ErrNotFound
	}

	meta := core.Metadata{Headers: make(map[string]string)}
	payload := core.Payload{}

	for field, value := range result {
		switch {
		case field == fieldData:
			payload.Data = []byte(value)
		case field == fieldFormat:
			payload.Format = value
			meta.Format = value
		case field == fieldVersion:
			if version, err := strconv.ParseInt(value, 10, 64); err == nil {
				meta.Version = version
			}
		case field == fieldStatus:
			meta.Headers[core.HeaderStatus] = value
		case strings.HasPrefix(field, headerFieldPrefix):
			meta.Headers[strings.TrimPrefix(field, headerFieldPrefix)] = value
		}
	}

	ttl, err := b.client.TTL(ctx, key).Result()
	if err == nil && ttl > 0 {
		meta.TTL = ttl
	}

	return payload, meta, nil
}

// Delete removes a key from Redis.
func (b *Backend) Delete(ctx context.Context, key string) error {
	return b.client.Del(ctx, key).Err()
}

// Publish sends a message to subscribers about an update/invalidation.
func (b *Backend) Publish(ctx context.Context, key string, msg core.Message) error {
	wire := wireMessage{
		Key:     key,
		Type:    string(msg.Type),
		Version: msg.Version,
		Format:  msg.Format,
	}
	payload, err := json.Marshal(wire)
	if err != nil {
		return errors.Wrap(err, "redisbackend: encode message")
	}

	return b.client.Publish(ctx, b.channelName(key), payload).Err()
}

// Subscribe listens for messages on the key-specific channel. It returns once
// Redis has confirmed the subscription, so messages published afterwards are
// never missed.
func (b *Backend) Subscribe(ctx context.Context, key string) (core.Subscription, error) {
	channel := b.channelName(key)
	pubsub := b.client.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, errors.Wrapf(err, "redisbackend: subscribe %s", channel)
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &redisSubscription{
		pubsub: pubsub,
		ch:     make(chan core.Message),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go sub.forward(subCtx)
	return sub, nil
}

func (b *Backend) channelName(key string) string {
	if strings.Contains(key, " ") {
		key = strings.ReplaceAll(key, " ", "_")
	}
	return fmt.Sprintf("%s%s", b.channelPrefix, key)
}

type wireMessage struct {
	Key     string `json:"key"`
	Type    string `json:"type"`
	Version int64  `json:"version"`
	Format  string `json:"format,omitempty"`
}

type redisSubscription struct {
	pubsub *redis.PubSub
	ch     chan core.Message
	done   chan struct{}

	cancel    context.CancelFunc
	closeOnce sync.Once
}

func (s *redisSubscription) Channel() <-chan core.Message {
	return s.ch
}

func (s *redisSubscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.cancel()
		err = s.pubsub.Close()
		<-s.done
		close(s.ch)
	})
	return err
}

func (s *redisSubscription) forward(ctx context.Context) {
	defer close(s.done)
	ch := s.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var wire wireMessage
			if err := json.Unmarshal([]byte(msg.Payload), &wire); err != nil {
				continue
			}
			select {
			case s.ch <- core.Message{
				Key:     wire.Key,
				Type:    core.MessageType(wire.Type),
				Version: wire.Version,
				Format:  wire.Format,
			}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Client exposes the underlying redis client.
func (b *Backend) Client() redis.UniversalClient {
	return b.client
}
