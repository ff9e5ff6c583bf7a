// Package runtime keeps serialized snapshots of live host objects in a
// snapshot store. Registered objects are re-serialized on Update, every write
// carries a monotonically increasing version, and changes are announced over
// the store's pub/sub channel so other processes can follow along.
package runtime

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/entitycache/graphwire/wire/core"
)

var (
	// ErrBackendRequired indicates that a manager cannot operate without a snapshot store.
	ErrBackendRequired = errors.New("runtime: snapshot store is required")
	// ErrNilTarget occurs when a caller provides a nil or non-pointer object to Register/Update.
	ErrNilTarget = errors.New("runtime: target must be a non-nil pointer")
	// ErrUnknownKey indicates an operation was attempted on a key that is not registered locally.
	ErrUnknownKey = errors.New("runtime: key is not registered")
	// ErrTypeMismatch indicates a key is already tracking objects of another type.
	ErrTypeMismatch = errors.New("runtime: object type does not match the registered key")
)

// Manager orchestrates object registration, serialization, and store interaction.
type Manager struct {
	backend    core.Cache
	engine     *core.Engine
	namespace  string
	defaultTTL time.Duration
	depth      core.Depth
	format     string
	pretty     bool

	logger *zap.Logger

	registry *objectRegistry

	ctx         context.Context
	cancel      context.CancelFunc
	subMu       sync.Mutex
	subscribers map[string]*subscriptionState
}

// Option configures manager-level behavior.
type Option func(*managerConfig)

type managerConfig struct {
	engine     *core.Engine
	namespace  string
	defaultTTL time.Duration
	depth      core.Depth
	format     string
	pretty     bool
	logger     *zap.Logger
}

// WithEngine injects the serialization engine. The default is an engine with
// an empty registry.
func WithEngine(engine *core.Engine) Option {
	return func(cfg *managerConfig) {
		cfg.engine = engine
	}
}

// WithNamespace prepends the provided namespace to all store keys.
func WithNamespace(namespace string) Option {
	return func(cfg *managerConfig) {
		cfg.namespace = namespace
	}
}

// WithDefaultTTL sets the default TTL applied when writing snapshots (zero means no TTL).
func WithDefaultTTL(ttl time.Duration) Option {
	return func(cfg *managerConfig) {
		cfg.defaultTTL = ttl
	}
}

// WithDepth sets the depth snapshots are taken at. The default is Standard.
func WithDepth(depth core.Depth) Option {
	return func(cfg *managerConfig) {
		cfg.depth = depth
	}
}

// WithFormat selects the payload encoding: core.FormatJSON (default) or
// core.FormatMsgpack.
func WithFormat(format string) Option {
	return func(cfg *managerConfig) {
		cfg.format = format
	}
}

// WithPretty indents stored JSON snapshots.
func WithPretty(pretty bool) Option {
	return func(cfg *managerConfig) {
		cfg.pretty = pretty
	}
}

// WithLogger sets the logger used for diagnostic messages.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *managerConfig) {
		cfg.logger = logger
	}
}

// RegisterOption customizes registration behavior for a specific object.
type RegisterOption func(*registerConfig)

type registerConfig struct {
	ttl          *time.Duration
	onUpdate     []func(Snapshot)
	onInvalidate []func()
}

// WithRegisterTTL overrides the TTL for a specific registration.
func WithRegisterTTL(ttl time.Duration) RegisterOption {
	return func(cfg *registerConfig) {
		cfg.ttl = &ttl
	}
}

// WithOnUpdate registers a callback that fires when a newer snapshot arrives from the store.
func WithOnUpdate(fn func(Snapshot)) RegisterOption {
	return func(cfg *registerConfig) {
		if fn != nil {
			cfg.onUpdate = append(cfg.onUpdate, fn)
		}
	}
}

// WithOnInvalidate registers a callback that fires when the snapshot is invalidated.
func WithOnInvalidate(fn func()) RegisterOption {
	return func(cfg *registerConfig) {
		if fn != nil {
			cfg.onInvalidate = append(cfg.onInvalidate, fn)
		}
	}
}

// NewManager constructs a new Manager instance with the provided store.
func NewManager(backend core.Cache, opts ...Option) (*Manager, error) {
	if backend == nil {
		return nil, ErrBackendRequired
	}

	cfg := managerConfig{depth: core.DepthStandard, format: core.FormatJSON}
	for _, opt := range opts {
		opt(&cfg)
	}
	if !cfg.depth.Valid() {
		return nil, errors.Wrapf(core.ErrInvalidDepth, "depth %d", int(cfg.depth))
	}
	if !core.ValidFormat(cfg.format) {
		return nil, errors.Wrapf(core.ErrUnknownFormat, "format %q", cfg.format)
	}

	engine := cfg.engine
	if engine == nil {
		engine = core.NewEngine()
	}

	logger := cfg.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		backend:     backend,
		engine:      engine,
		namespace:   cfg.namespace,
		defaultTTL:  cfg.defaultTTL,
		depth:       cfg.depth,
		format:      cfg.format,
		pretty:      cfg.pretty,
		logger:      logger,
		registry:    newObjectRegistry(),
		ctx:         ctx,
		cancel:      cancel,
		subscribers: make(map[string]*subscriptionState),
	}, nil
}

// Register serializes obj, stores the snapshot and tracks the key for remote changes.
func (m *Manager) Register(ctx context.Context, key string, obj any, opts ...RegisterOption) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	value, err := ensurePointer(obj)
	if err != nil {
		return nil, err
	}

	handle := newObjectHandle(m.fullKey(key), key, m)

	version, rollback, err := m.registry.prepareRegister(handle.key, handle, value.Type())
	if err != nil {
		return nil, err
	}

	snapshot, meta, err := m.encode(handle.key, obj, version)
	if err != nil {
		rollback()
		return nil, err
	}

	cfg := registerConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.ttl != nil {
		meta.TTL = *cfg.ttl
	}
	for _, fn := range cfg.onUpdate {
		handle.OnUpdate(fn)
	}
	for _, fn := range cfg.onInvalidate {
		handle.OnInvalidate(fn)
	}

	if err := m.ensureSubscription(handle.key); err != nil {
		rollback()
		m.stopSubscriptionIfEmpty(handle.key)
		return nil, err
	}

	if err := m.backend.Set(ctx, handle.key, core.Payload{Format: snapshot.Format, Data: snapshot.Data}, meta); err != nil {
		rollback()
		m.stopSubscriptionIfEmpty(handle.key)
		return nil, err
	}
	handle.store(snapshot)
	// Earlier handles on the same key must not keep serving the superseded version.
	if entry, ok := m.registry.snapshot(handle.key); ok {
		for _, h := range entry.handles {
			h.store(snapshot)
		}
	}

	if err := m.backend.Publish(ctx, handle.key, core.Message{
		Key:     handle.key,
		Type:    core.MessageTypeUpdate,
		Version: version,
		Format:  snapshot.Format,
	}); err != nil {
		m.logger.Warn("publish after register failed", zap.String("key", handle.key), zap.Error(err))
	}

	return handle, nil
}

// Update re-serializes obj under an already registered key.
func (m *Manager) Update(ctx context.Context, key string, obj any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	value, err := ensurePointer(obj)
	if err != nil {
		return err
	}

	fullKey := m.fullKey(key)
	version, rollback, err := m.registry.prepareUpdate(fullKey, value.Type())
	if err != nil {
		return err
	}

	snapshot, meta, err := m.encode(fullKey, obj, version)
	if err != nil {
		rollback()
		return err
	}

	if err := m.ensureSubscription(fullKey); err != nil {
		rollback()
		return err
	}

	if err := m.backend.Set(ctx, fullKey, core.Payload{Format: snapshot.Format, Data: snapshot.Data}, meta); err != nil {
		rollback()
		return err
	}
	if entry, ok := m.registry.snapshot(fullKey); ok {
		for _, handle := range entry.handles {
			handle.store(snapshot)
		}
	}

	if err := m.backend.Publish(ctx, fullKey, core.Message{
		Key:     fullKey,
		Type:    core.MessageTypeUpdate,
		Version: version,
		Format:  snapshot.Format,
	}); err != nil {
		m.logger.Warn("publish after update failed", zap.String("key", fullKey), zap.Error(err))
	}

	return nil
}

// Invalidate removes the stored snapshot and stops tracking registered handles.
func (m *Manager) Invalidate(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fullKey := m.fullKey(key)

	if !m.registry.hasEntry(fullKey) {
		return ErrUnknownKey
	}

	if err := m.backend.Delete(ctx, fullKey); err != nil {
		return err
	}

	handles := m.registry.removeEntry(fullKey)
	m.stopSubscription(fullKey)
	for _, handle := range handles {
		handle.detach()
		handle.notifyInvalidate()
	}

	if err := m.backend.Publish(ctx, fullKey, core.Message{
		Key:  fullKey,
		Type: core.MessageTypeInvalidate,
	}); err != nil {
		m.logger.Warn("publish after invalidate failed", zap.String("key", fullKey), zap.Error(err))
	}

	return nil
}

// Describe serializes obj at depth into a command response without touching
// the store.
func (m *Manager) Describe(ctx context.Context, obj any, depth core.Depth) Response {
	if err := ctx.Err(); err != nil {
		return Failure(err)
	}
	return FromResult(m.engine.Serialize(obj, depth))
}

// encode serializes obj and builds the snapshot and store metadata for it.
func (m *Manager) encode(key string, obj any, version int64) (Snapshot, core.Metadata, error) {
	res := m.engine.Serialize(obj, m.depth)
	if res.Status == core.StatusError {
		return Snapshot{}, core.Metadata{}, errors.Mark(
			errors.Newf("serialize %s: %s", res.TypeName, res.Error), core.ErrUnexpected)
	}
	if res.Degraded() {
		m.logger.Warn("snapshot degraded",
			zap.String("key", key),
			zap.String("type", res.TypeName),
			zap.String("pass_id", res.PassID),
			zap.Strings("failed_members", res.FailedMembers()),
			zap.Bool("truncated", res.Truncated))
	}

	data, err := core.EncodeFormat(res.Wire(), m.format, m.pretty)
	if err != nil {
		return Snapshot{}, core.Metadata{}, errors.Wrapf(err, "encode %s", res.TypeName)
	}

	snapshot := Snapshot{
		Key:     key,
		Version: version,
		Status:  res.Status,
		Format:  m.format,
		Data:    data,
	}
	meta := core.Metadata{
		TTL:     m.defaultTTL,
		Version: version,
		Format:  m.format,
		Headers: map[string]string{
			core.HeaderStatus: string(res.Status),
			core.HeaderDepth:  m.depth.String(),
			core.HeaderType:   res.TypeName,
			core.HeaderPassID: res.PassID,
		},
	}
	return snapshot, meta, nil
}

func (m *Manager) fullKey(key string) string {
	if m.namespace == "" {
		return key
	}
	if key == "" {
		return m.namespace
	}
	return fmt.Sprintf("%s:%s", m.namespace, key)
}

// Close terminates subscription processing and releases resources.
func (m *Manager) Close() error {
	m.cancel()

	m.subMu.Lock()
	subs := make([]*subscriptionState, 0, len(m.subscribers))
	for _, state := range m.subscribers {
		subs = append(subs, state)
	}
	m.subscribers = make(map[string]*subscriptionState)
	m.subMu.Unlock()

	for _, state := range subs {
		state.cancel()
		state.wg.Wait()
	}

	return nil
}

func (m *Manager) ensureSubscription(key string) error {
	m.subMu.Lock()
	if state, ok := m.subscribers[key]; ok {
		ctxErr := state.ctx.Err()
		m.subMu.Unlock()
		if ctxErr != nil {
			state.wg.Wait()
			return m.ensureSubscription(key)
		}
		return nil
	}
	m.subMu.Unlock()

	ctx, cancel := context.WithCancel(m.ctx)
	sub, err := m.backend.Subscribe(ctx, key)
	if err != nil {
		cancel()
		return err
	}

	state := &subscriptionState{
		ctx:          ctx,
		cancel:       cancel,
		subscription: sub,
	}
	state.wg.Add(1)

	m.subMu.Lock()
	if existing, ok := m.subscribers[key]; ok {
		m.subMu.Unlock()
		state.cancel()
		state.wg.Done()
		_ = sub.Close()
		ctxErr := existing.ctx.Err()
		if ctxErr != nil {
			existing.wg.Wait()
			return m.ensureSubscription(key)
		}
		return nil
	}
	m.subscribers[key] = state
	m.subMu.Unlock()

	go m.runSubscription(state, key)

	return nil
}

func (m *Manager) runSubscription(state *subscriptionState, key string) {
	defer func() {
		m.removeSubscriber(key, state)
		state.cancel()
		_ = state.subscription.Close()
		state.wg.Done()
	}()

	ch := state.subscription.Channel()
	for {
		select {
		case <-state.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if stop := m.handleMessage(state.ctx, key, msg); stop {
				return
			}
		}
	}
}

func (m *Manager) handleMessage(ctx context.Context, key string, msg core.Message) bool {
	entry, ok := m.registry.snapshot(key)
	if !ok || len(entry.handles) == 0 {
		return true
	}

	switch msg.Type {
	case core.MessageTypeInvalidate:
		m.dropEntry(key)
		return true
	case core.MessageTypeUpdate, "":
		if msg.Version > 0 && msg.Version <= entry.version {
			return false
		}
		payload, meta, err := m.backend.Get(ctx, key)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				m.dropEntry(key)
				return true
			}
			m.logger.Warn("store get failed", zap.String("key", key), zap.Error(err))
			return false
		}

		version := max(msg.Version, meta.Version)
		if version > 0 && version <= entry.version {
			return false
		}

		snapshot := Snapshot{
			Key:     key,
			Version: version,
			Status:  core.Status(meta.Headers[core.HeaderStatus]),
			Format:  payload.Format,
			Data:    payload.Data,
		}
		for _, handle := range entry.handles {
			if handle.store(snapshot) {
				handle.notifyUpdate(snapshot)
			}
		}

		m.registry.advance(key, version)
		return false
	default:
		m.logger.Warn("unrecognized message type",
			zap.String("key", key),
			zap.String("type", string(msg.Type)),
			zap.Int64("version", msg.Version))
		return false
	}
}

func (m *Manager) dropEntry(key string) {
	handles := m.registry.removeEntry(key)
	for _, handle := range handles {
		handle.detach()
		handle.notifyInvalidate()
	}
}

func (m *Manager) removeSubscriber(key string, state *subscriptionState) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	if current, ok := m.subscribers[key]; ok && current == state {
		delete(m.subscribers, key)
	}
}

func (m *Manager) stopSubscription(key string) {
	m.subMu.Lock()
	state, ok := m.subscribers[key]
	m.subMu.Unlock()
	if !ok {
		return
	}
	state.cancel()
	state.wg.Wait()
}

func (m *Manager) stopSubscriptionIfEmpty(key string) {
	if m.registry.hasEntry(key) {
		return
	}
	m.stopSubscription(key)
}

func ensurePointer(obj any) (reflect.Value, error) {
	if obj == nil {
		return reflect.Value{}, ErrNilTarget
	}

	val := reflect.ValueOf(obj)
	if val.Kind() != reflect.Pointer || val.IsNil() {
		return reflect.Value{}, ErrNilTarget
	}

	return val, nil
}

type subscriptionState struct {
	ctx          context.Context
	cancel       context.CancelFunc
	subscription core.Subscription
	wg           sync.WaitGroup
}
