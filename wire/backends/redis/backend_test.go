package redisbackend

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"

	"github.com/entitycache/graphwire/wire/core"
)

func TestBackendSetGet(t *testing.T) {
	backend, _, shutdown := newTestBackend(t)
	defer shutdown()

	ctx := context.Background()
	payload := core.Payload{Format: core.FormatJSON, Data: []byte(`{"type":"scene.GameObject"}`)}

	err := backend.Set(ctx, "player", payload, core.Metadata{
		TTL:     5 * time.Second,
		Version: 3,
		Format:  payload.Format,
		Headers: map[string]string{
			core.HeaderStatus: "handler",
			core.HeaderDepth:  "standard",
			core.HeaderType:   "scene.GameObject",
		},
	})
	if err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	gotPayload, gotMeta, err := backend.Get(ctx, "player")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}

	if string(gotPayload.Data) != string(payload.Data) {
		t.Fatalf("expected payload %s, got %s", payload.Data, gotPayload.Data)
	}
	if gotMeta.Version != 3 {
		t.Fatalf("expected version 3, got %d", gotMeta.Version)
	}
	if gotMeta.Format != payload.Format {
		t.Fatalf("expected format %s, got %s", payload.Format, gotMeta.Format)
	}
	if gotMeta.TTL <= 0 || gotMeta.TTL > 5*time.Second {
		t.Fatalf("expected TTL within range, got %v", gotMeta.TTL)
	}
	if got := gotMeta.Headers[core.HeaderStatus]; got != "handler" {
		t.Fatalf("expected status header handler, got %q", got)
	}
	if got := gotMeta.Headers[core.HeaderType]; got != "scene.GameObject" {
		t.Fatalf("expected type header, got %q", got)
	}
}

func TestBackendStatusStoredAsField(t *testing.T) {
	backend, srv, shutdown := newTestBackend(t)
	defer shutdown()

	ctx := context.Background()
	err := backend.Set(ctx, "sun", core.Payload{Format: core.FormatJSON, Data: []byte(`{}`)}, core.Metadata{
		Version: 1,
		Headers: map[string]string{core.HeaderStatus: "fallback", core.HeaderPassID: "p-1"},
	})
	if err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	if got := srv.HGet("sun", fieldStatus); got != "fallback" {
		t.Fatalf("expected status field fallback, got %q", got)
	}
	if got := srv.HGet("sun", headerFieldPrefix+core.HeaderPassID); got != "p-1" {
		t.Fatalf("expected pass id header field, got %q", got)
	}
}

func TestBackendSetReplacesHeaders(t *testing.T) {
	backend, _, shutdown := newTestBackend(t)
	defer shutdown()

	ctx := context.Background()
	first := core.Metadata{Version: 1, Headers: map[string]string{core.HeaderPassID: "old"}}
	if err := backend.Set(ctx, "k", core.Payload{Data: []byte(`1`)}, first); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	second := core.Metadata{Version: 2, Headers: map[string]string{core.HeaderStatus: "direct"}}
	if err := backend.Set(ctx, "k", core.Payload{Data: []byte(`2`)}, second); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	_, meta, err := backend.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if _, ok := meta.Headers[core.HeaderPassID]; ok {
		t.Fatalf("expected stale pass id header to be gone, got %v", meta.Headers)
	}
	if meta.Version != 2 {
		t.Fatalf("expected version 2, got %d", meta.Version)
	}
}

func TestBackendGetMissing(t *testing.T) {
	backend, _, shutdown := newTestBackend(t)
	defer shutdown()

	_, _, err := backend.Get(context.Background(), "missing")
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBackendDelete(t *testing.T) {
	backend, _, shutdown := newTestBackend(t)
	defer shutdown()

	ctx := context.Background()
	payload := core.Payload{Format: core.FormatJSON, Data: []byte(`{"id":2}`)}
	if err := backend.Set(ctx, "camera", payload, core.Metadata{}); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	if err := backend.Delete(ctx, "camera"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}

	if _, _, err := backend.Get(ctx, "camera"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestBackendPublishSubscribe(t *testing.T) {
	backend, _, shutdown := newTestBackend(t)
	defer shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	sub, err := backend.Subscribe(ctx, "world player")
	if err != nil {
		t.Fatalf("Subscribe returned error: %v", err)
	}
	defer sub.Close()

	msg := core.Message{
		Key:     "world player",
		Type:    core.MessageTypeUpdate,
		Version: 10,
		Format:  core.FormatJSON,
	}

	if err := backend.Publish(ctx, "world player", msg); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}

	select {
	case received := <-sub.Channel():
		if received.Key != msg.Key || received.Type != msg.Type || received.Version != msg.Version {
			t.Fatalf("unexpected message %#v", received)
		}
	case <-ctx.Done():
		t.Fatalf("timed out waiting for message")
	}
}

func TestBackendChannelPrefix(t *testing.T) {
	b := &Backend{channelPrefix: DefaultChannelPrefix}
	if got := b.channelName("world player"); got != "graphwire::world_player" {
		t.Fatalf("unexpected channel %q", got)
	}

	custom, err := NewBackend(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}), WithChannelPrefix("x/"))
	if err != nil {
		t.Fatalf("NewBackend failed: %v", err)
	}
	defer custom.Client().Close()
	if got := custom.channelName("k"); got != "x/k" {
		t.Fatalf("unexpected channel %q", got)
	}
}

func TestNewBackendRequiresClient(t *testing.T) {
	if _, err := NewBackend(nil); err == nil {
		t.Fatalf("expected error for nil client")
	}
	if _, err := NewBackendWithOptions(nil); err == nil {
		t.Fatalf("expected error for nil options")
	}
}

func newTestBackend(t *testing.T) (*Backend, *miniredis.Miniredis, func()) {
	t.Helper()

	srv, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: srv.Addr(),
	})

	backend, err := NewBackend(client)
	if err != nil {
		t.Fatalf("NewBackend failed: %v", err)
	}

	return backend, srv, func() {
		_ = client.Close()
		srv.Close()
	}
}
