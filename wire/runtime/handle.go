package runtime

import (
	"sync"

	"github.com/entitycache/graphwire/wire/core"
)

// Snapshot is one stored serialization of a tracked object.
type Snapshot struct {
	Key     string
	Version int64
	Status  core.Status
	Format  string
	Data    []byte
}

// Handle represents a tracked object registration.
type Handle interface {
	Unregister()
	OnUpdate(func(Snapshot))
	OnInvalidate(func())
	// Snapshot returns the latest snapshot written or received for the key.
	Snapshot() (Snapshot, bool)
}

type objectHandle struct {
	key         string
	originalKey string
	manager     *Manager

	mu           sync.RWMutex
	active       bool
	latest       *Snapshot
	onUpdateFns  []func(Snapshot)
	onInvalidate []func()
}

func newObjectHandle(fullKey, originalKey string, manager *Manager) *objectHandle {
	return &objectHandle{
		key:         fullKey,
		originalKey: originalKey,
		manager:     manager,
		active:      true,
	}
}

func (h *objectHandle) Unregister() {
	h.mu.Lock()
	if !h.active {
		h.mu.Unlock()
		return
	}
	h.active = false
	h.mu.Unlock()
	if removed := h.manager.registry.unregister(h.key, h); removed {
		h.manager.stopSubscription(h.key)
	}
}

func (h *objectHandle) OnUpdate(fn func(Snapshot)) {
	if fn == nil {
		return
	}
	h.mu.Lock()
	if h.active {
		h.onUpdateFns = append(h.onUpdateFns, fn)
	}
	h.mu.Unlock()
}

func (h *objectHandle) OnInvalidate(fn func()) {
	if fn == nil {
		return
	}
	h.mu.Lock()
	if h.active {
		h.onInvalidate = append(h.onInvalidate, fn)
	}
	h.mu.Unlock()
}

func (h *objectHandle) Snapshot() (Snapshot, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.latest == nil {
		return Snapshot{}, false
	}
	return *h.latest, true
}

// store records s unless a newer snapshot is already held.
func (h *objectHandle) store(s Snapshot) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.latest != nil && h.latest.Version >= s.Version {
		return false
	}
	h.latest = &s
	return true
}

func (h *objectHandle) notifyUpdate(s Snapshot) {
	h.mu.RLock()
	if !h.active {
		h.mu.RUnlock()
		return
	}
	callbacks := make([]func(Snapshot), len(h.onUpdateFns))
	copy(callbacks, h.onUpdateFns)
	h.mu.RUnlock()

	for _, cb := range callbacks {
		cb(s)
	}
}

func (h *objectHandle) notifyInvalidate() {
	h.mu.RLock()
	callbacks := make([]func(), len(h.onInvalidate))
	copy(callbacks, h.onInvalidate)
	h.mu.RUnlock()

	for _, cb := range callbacks {
		cb()
	}
}

func (h *objectHandle) detach() {
	h.mu.Lock()
	h.active = false
	h.mu.Unlock()
}
