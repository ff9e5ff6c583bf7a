package runtime

import (
	"reflect"
	"sync"

	"github.com/cockroachdb/errors"
)

type objectRegistry struct {
	mu      sync.RWMutex
	entries map[string]*objectEntry
}

type objectEntry struct {
	typ     reflect.Type
	version int64
	handles map[*objectHandle]struct{}
}

func newObjectRegistry() *objectRegistry {
	return &objectRegistry{
		entries: make(map[string]*objectEntry),
	}
}

func (r *objectRegistry) prepareRegister(key string, handle *objectHandle, typ reflect.Type) (int64, func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry := r.entries[key]
	if entry == nil {
		entry = &objectEntry{
			typ:     typ,
			handles: make(map[*objectHandle]struct{}),
		}
		r.entries[key] = entry
	} else if entry.typ != typ {
		return 0, nil, errors.Wrapf(ErrTypeMismatch, "key %q holds %s, not %s", key, entry.typ, typ)
	}

	entry.version++
	version := entry.version
	entry.handles[handle] = struct{}{}

	rollback := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		entry := r.entries[key]
		if entry == nil {
			return
		}
		delete(entry.handles, handle)
		if entry.version > 0 {
			entry.version--
		}
		if len(entry.handles) == 0 {
			delete(r.entries, key)
		}
	}

	return version, rollback, nil
}

func (r *objectRegistry) prepareUpdate(key string, typ reflect.Type) (int64, func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry := r.entries[key]
	if entry == nil {
		return 0, nil, ErrUnknownKey
	}
	if entry.typ != typ {
		return 0, nil, errors.Wrapf(ErrTypeMismatch, "key %q holds %s, not %s", key, entry.typ, typ)
	}

	entry.version++
	version := entry.version

	rollback := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		entry := r.entries[key]
		if entry == nil {
			return
		}
		if entry.version > 0 {
			entry.version--
		}
	}

	return version, rollback, nil
}

func (r *objectRegistry) unregister(key string, handle *objectHandle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry := r.entries[key]
	if entry == nil {
		return false
	}
	delete(entry.handles, handle)
	if len(entry.handles) == 0 {
		delete(r.entries, key)
		return true
	}
	return false
}

func (r *objectRegistry) removeEntry(key string) []*objectHandle {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry := r.entries[key]
	if entry == nil {
		return nil
	}

	handles := make([]*objectHandle, 0, len(entry.handles))
	for handle := range entry.handles {
		handles = append(handles, handle)
	}

	delete(r.entries, key)
	return handles
}

func (r *objectRegistry) hasEntry(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[key]
	return ok
}

type entrySnapshot struct {
	version int64
	handles []*objectHandle
}

func (r *objectRegistry) snapshot(key string) (entrySnapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry := r.entries[key]
	if entry == nil {
		return entrySnapshot{}, false
	}
	handles := make([]*objectHandle, 0, len(entry.handles))
	for handle := range entry.handles {
		handles = append(handles, handle)
	}
	return entrySnapshot{
		version: entry.version,
		handles: handles,
	}, true
}

// advance raises the entry version to at least version.
func (r *objectRegistry) advance(key string, version int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry := r.entries[key]
	if entry == nil || version <= entry.version {
		return
	}
	entry.version = version
}

func (r *objectRegistry) size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
