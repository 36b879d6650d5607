package rtccore

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/pion/interceptor"
	"github.com/pion/logging"
	"github.com/pion/webrtc/v4"
)

// FactoryState represents the lifecycle state of a Factory.
type FactoryState int

const (
	FactoryUninitialized FactoryState = iota // No engine; next acquire initializes
	FactoryReady                             // Engine live, handles outstanding or not
	FactoryShuttingDown                      // Engine teardown in progress
	FactoryDestroyed                         // Force-shut-down; terminal
)

func (s FactoryState) String() string {
	switch s {
	case FactoryUninitialized:
		return "uninitialized"
	case FactoryReady:
		return "ready"
	case FactoryShuttingDown:
		return "shutting-down"
	case FactoryDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// ShutdownOptions is a bitmask controlling refcount-driven shutdown.
type ShutdownOptions uint32

const (
	// ShutdownFailOnLiveObjects makes TryShutdown (and the shutdown attempted
	// when the last handle is released) additionally require an empty object
	// registry, not just a zero refcount. The two can diverge when tracked
	// objects hold their own independent handles.
	ShutdownFailOnLiveObjects ShutdownOptions = 1 << iota

	// ShutdownLogLiveObjects logs a snapshot of still-registered objects
	// whenever a shutdown attempt finds any.
	ShutdownLogLiveObjects
)

// sharedEngine bundles the process-wide WebRTC engine objects that are
// expensive to build and shared by every dependent object. Immutable between
// initialization and shutdown.
type sharedEngine struct {
	api         *webrtc.API
	mediaEngine *webrtc.MediaEngine
}

func newSharedEngine(lf logging.LoggerFactory) (*sharedEngine, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}

	ir := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, ir); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}

	se := webrtc.SettingEngine{}
	se.LoggerFactory = lf

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(m),
		webrtc.WithInterceptorRegistry(ir),
		webrtc.WithSettingEngine(se),
	)
	return &sharedEngine{api: api, mediaEngine: m}, nil
}

// FactoryConfig configures a Factory.
type FactoryConfig struct {
	// LoggerFactory is used for factory diagnostics and threaded into the
	// engine's setting engine. Defaults to logging.NewDefaultLoggerFactory().
	LoggerFactory logging.LoggerFactory
}

// Factory owns the shared WebRTC engine and arbitrates its lifetime across
// every object that depends on it. The engine is created lazily by the first
// AcquireOrInitialize and destroyed when the handle count returns to zero
// (subject to ShutdownOptions), so concurrent acquire and release from
// arbitrary goroutines initialize exactly once and never tear the engine down
// while a handle is outstanding.
//
// A single lifecycle mutex serializes state transitions and all refcount
// changes that start from nothing; cloning a handle you already hold skips it
// (see FactoryHandle.Clone). The object registry and shutdown options live
// behind separate locks so diagnostic reads never contend with lifecycle
// transitions, and neither lock is ever taken while the other is held.
type Factory struct {
	log           logging.LeveledLogger
	loggerFactory logging.LoggerFactory

	mu     sync.Mutex // lifecycle lock
	state  FactoryState
	refs   atomic.Uint32
	engine atomic.Pointer[sharedEngine]

	registry *ObjectRegistry

	optsMu sync.RWMutex
	opts   ShutdownOptions

	// Engine constructor, replaceable in tests.
	newEngine func(logging.LoggerFactory) (*sharedEngine, error)
}

// NewFactory creates a factory in the uninitialized state. Nothing expensive
// happens until the first AcquireOrInitialize.
func NewFactory(config FactoryConfig) *Factory {
	lf := config.LoggerFactory
	if lf == nil {
		lf = logging.NewDefaultLoggerFactory()
	}
	return &Factory{
		log:           lf.NewLogger("factory"),
		loggerFactory: lf,
		registry:      NewObjectRegistry(),
		newEngine:     newSharedEngine,
	}
}

var defaultFactory = NewFactory(FactoryConfig{})

// DefaultFactory returns the process-wide factory instance. Libraries that
// want isolated lifetimes (or tests) should use NewFactory instead.
func DefaultFactory() *Factory { return defaultFactory }

// AcquireOrInitialize returns a handle to the shared engine, initializing it
// if this is the first acquisition. Only the first caller pays the
// initialization cost; concurrent callers block on the lifecycle lock and
// then observe the ready engine. The handle must be released exactly once.
func (f *Factory) AcquireOrInitialize() (*FactoryHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch f.state {
	case FactoryDestroyed:
		return nil, fmt.Errorf("%w: factory was force-shut-down", ErrInvalidReference)
	case FactoryUninitialized:
		eng, err := f.newEngine(f.loggerFactory)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInitializationFailed, err)
		}
		f.engine.Store(eng)
		f.state = FactoryReady
	}

	f.refs.Add(1)
	return &FactoryHandle{factory: f}, nil
}

// AcquireIfExists returns a handle only if the engine is already live; it
// never initializes. Returns (nil, false) without side effects otherwise.
func (f *Factory) AcquireIfExists() (*FactoryHandle, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != FactoryReady {
		return nil, false
	}
	f.refs.Add(1)
	return &FactoryHandle{factory: f}, true
}

// TryShutdown destroys the engine and returns true only if no handle is
// outstanding (and, with ShutdownFailOnLiveObjects, no tracked object
// remains). Returning false is the expected steady state while dependent
// objects are alive, not an error. Safe to call at any time.
func (f *Factory) TryShutdown() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tryShutdownLocked()
}

func (f *Factory) tryShutdownLocked() bool {
	if f.state != FactoryReady {
		// Nothing to destroy; report success only if nothing ever will be.
		return f.state == FactoryUninitialized
	}
	if f.refs.Load() != 0 {
		return false
	}

	opts := f.shutdownOptions()
	live := f.registry.Count()
	if live > 0 && opts&ShutdownLogLiveObjects != 0 {
		f.logLiveObjects()
	}
	if live > 0 && opts&ShutdownFailOnLiveObjects != 0 {
		return false
	}

	f.destroyLocked()
	f.state = FactoryUninitialized
	return true
}

// ForceShutdown destroys the engine unconditionally, even with handles
// outstanding, and leaves the factory in the terminal destroyed state.
// Outstanding handles become dangling: the factory does not track them, and
// using one afterward is the caller's hazard. Intended for process-exit
// cleanup only.
func (f *Factory) ForceShutdown() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state == FactoryReady {
		if f.registry.Count() > 0 && f.shutdownOptions()&ShutdownLogLiveObjects != 0 {
			f.logLiveObjects()
		}
		if refs := f.refs.Load(); refs > 0 {
			f.log.Warnf("force shutdown with %d handle(s) outstanding", refs)
		}
		f.destroyLocked()
	}
	f.state = FactoryDestroyed
}

func (f *Factory) destroyLocked() {
	f.state = FactoryShuttingDown
	f.engine.Store(nil)
	f.refs.Store(0)
}

func (f *Factory) logLiveObjects() {
	for id, kind := range f.registry.Snapshot() {
		f.log.Warnf("live object at shutdown: %s %s", kind, id)
	}
}

// ReportLiveObjects returns the number of tracked objects still registered.
// Purely diagnostic; returns 0 if the factory was never initialized.
func (f *Factory) ReportLiveObjects() uint32 {
	return f.registry.Count()
}

// Registry returns the tracked-object registry. Dependent objects register
// themselves on construction and unregister on destruction.
func (f *Factory) Registry() *ObjectRegistry { return f.registry }

// SetShutdownOptions stores the shutdown option flags. Takes effect on the
// next shutdown attempt.
func (f *Factory) SetShutdownOptions(opts ShutdownOptions) {
	f.optsMu.Lock()
	f.opts = opts
	f.optsMu.Unlock()
}

func (f *Factory) shutdownOptions() ShutdownOptions {
	f.optsMu.RLock()
	defer f.optsMu.RUnlock()
	return f.opts
}

// State returns the current lifecycle state.
func (f *Factory) State() FactoryState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// FactoryHandle is a counted reference to the factory's shared engine. It
// must be released exactly once; double release fails with
// ErrInvalidReference.
type FactoryHandle struct {
	factory  *Factory
	released atomic.Bool
}

// API returns the shared WebRTC API object, from which dependent objects
// (peer connections, tracks) are built. Reads take no lock: a live handle is
// proof the engine is ready and cannot be concurrently torn down. Returns nil
// after this handle was released or the factory was force-shut-down.
func (h *FactoryHandle) API() *webrtc.API {
	if h.released.Load() {
		return nil
	}
	eng := h.factory.engine.Load()
	if eng == nil {
		return nil
	}
	return eng.api
}

// Factory returns the factory this handle pins.
func (h *FactoryHandle) Factory() *Factory { return h.factory }

// Clone returns an additional handle on the same engine. Because the caller
// already holds a live handle the engine cannot be torn down concurrently, so
// the increment skips the lifecycle lock. Obtaining a handle from nothing
// always goes through AcquireOrInitialize/AcquireIfExists instead.
func (h *FactoryHandle) Clone() (*FactoryHandle, error) {
	if h.released.Load() {
		return nil, fmt.Errorf("%w: clone of released handle", ErrInvalidReference)
	}
	h.factory.refs.Add(1)
	return &FactoryHandle{factory: h.factory}, nil
}

// Release drops this handle. If it was the last one the factory attempts
// shutdown inline, under the same lifecycle lock used for acquisition, so a
// final decrement can never race a concurrent increment-from-zero.
func (h *FactoryHandle) Release() error {
	if h.released.Swap(true) {
		return fmt.Errorf("%w: handle already released", ErrInvalidReference)
	}

	f := h.factory
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state == FactoryDestroyed {
		// Dangling handle released after a force shutdown; nothing to do.
		return nil
	}
	if f.refs.Add(^uint32(0)) == 0 {
		f.tryShutdownLocked()
	}
	return nil
}
