package benchmarks

import (
	"context"
	"sync"
	"testing"

	"github.com/entitycache/graphwire/scene"
	"github.com/entitycache/graphwire/wire"
	"github.com/entitycache/graphwire/wire/core"
	"github.com/entitycache/graphwire/wire/runtime"
)

func BenchmarkSnapshotUpdate(b *testing.B) {
	ctx := context.Background()

	backend := newMemoryBackend()
	manager, err := runtime.NewManager(backend, runtime.WithEngine(wire.NewEngine()))
	if err != nil {
		b.Fatalf("NewManager error: %v", err)
	}
	defer manager.Close()

	player := scene.Demo().Find("Player")
	if _, err := manager.Register(ctx, "player", player); err != nil {
		b.Fatalf("register error: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := manager.Update(ctx, "player", player); err != nil {
			b.Fatalf("update error: %v", err)
		}
	}
}

// memoryBackend keeps the latest payload per key and never delivers messages.

type memoryBackend struct {
	mu   sync.Mutex
	data map[string]core.Payload
	meta map[string]core.Metadata
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{
		data: make(map[string]core.Payload),
		meta: make(map[string]core.Metadata),
	}
}

func (m *memoryBackend) Set(ctx context.Context, key string, payload core.Payload, meta core.Metadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = payload
	m.meta[key] = meta
	return nil
}

func (m *memoryBackend) Get(ctx context.Context, key string) (core.Payload, core.Metadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	payload, ok := m.data[key]
	if !ok {
		return core.Payload{}, core.Metadata{}, core.ErrNotFound
	}
	return payload, m.meta[key], nil
}

func (m *memoryBackend) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	delete(m.meta, key)
	return nil
}

func (m *memoryBackend) Publish(ctx context.Context, key string, msg core.Message) error {
	return nil
}

func (m *memoryBackend) Subscribe(ctx context.Context, key string) (core.Subscription, error) {
	return &idleSubscription{ch: make(chan core.Message)}, nil
}

type idleSubscription struct {
	ch chan core.Message
}

func (s *idleSubscription) Channel() <-chan core.Message { return s.ch }
func (s *idleSubscription) Close() error                 { return nil }
