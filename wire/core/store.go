package core

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
)

// Header names written alongside every stored snapshot.
const (
	HeaderStatus = "status"
	HeaderDepth  = "depth"
	HeaderType   = "type"
	HeaderPassID = "pass_id"
)

// Payload contains encoded bytes plus format information so readers can
// route to the correct decoder.
type Payload struct {
	Format string
	Data   []byte
}

// Metadata carries auxiliary information about a stored snapshot.
type Metadata struct {
	TTL     time.Duration
	Version int64
	Format  string
	Headers map[string]string
}

// MessageType identifies the kind of pub/sub message emitted by a store.
type MessageType string

const (
	// MessageTypeUpdate indicates a newer snapshot has been written.
	MessageTypeUpdate MessageType = "update"
	// MessageTypeInvalidate indicates the snapshot has been removed or expired.
	MessageTypeInvalidate MessageType = "invalidate"
)

// Message represents a change notification from the store.
type Message struct {
	Key     string
	Type    MessageType
	Version int64
	Format  string
}

// ErrNotFound indicates the key does not exist in the store.
var ErrNotFound = errors.New("core: snapshot not found")

// Subscription provides a stream of change notifications.
type Subscription interface {
	Channel() <-chan Message
	Close() error
}

// Cache abstracts the snapshot store used by the runtime manager regardless of backend.
type Cache interface {
	Set(ctx context.Context, key string, payload Payload, meta Metadata) error
	Get(ctx context.Context, key string) (Payload, Metadata, error)
	Delete(ctx context.Context, key string) error
	Publish(ctx context.Context, key string, msg Message) error
	Subscribe(ctx context.Context, key string) (Subscription, error)
}
