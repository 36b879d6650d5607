package rtccore

import (
	"sync"

	"github.com/google/uuid"
)

// ObjectKind tags a tracked object with the kind of API object it is.
type ObjectKind int

const (
	ObjectKindUnknown ObjectKind = iota
	ObjectKindPeerConnection
	ObjectKindLocalVideoTrack
	ObjectKindLocalAudioTrack
	ObjectKindExternalVideoSource
	ObjectKindExternalAudioSource
	ObjectKindDataChannel
)

func (k ObjectKind) String() string {
	switch k {
	case ObjectKindPeerConnection:
		return "PeerConnection"
	case ObjectKindLocalVideoTrack:
		return "LocalVideoTrack"
	case ObjectKindLocalAudioTrack:
		return "LocalAudioTrack"
	case ObjectKindExternalVideoSource:
		return "ExternalVideoSource"
	case ObjectKindExternalAudioSource:
		return "ExternalAudioSource"
	case ObjectKindDataChannel:
		return "DataChannel"
	default:
		return "Unknown"
	}
}

// ObjectRegistry is a counted set of live API object identities, consulted by
// the factory to decide whether shutdown is safe and to report leaks. It is
// purely observational: entries never own the objects they name, and no
// registry operation triggers a lifecycle transition.
//
// The registry has its own lock, independent of the factory's lifecycle lock,
// so diagnostic reads never contend with acquire/release.
type ObjectRegistry struct {
	mu      sync.Mutex
	objects map[uuid.UUID]ObjectKind
}

// NewObjectRegistry creates an empty registry.
func NewObjectRegistry() *ObjectRegistry {
	return &ObjectRegistry{objects: make(map[uuid.UUID]ObjectKind)}
}

// Add records a live object. Re-adding an id overwrites its kind.
func (r *ObjectRegistry) Add(id uuid.UUID, kind ObjectKind) {
	r.mu.Lock()
	r.objects[id] = kind
	r.mu.Unlock()
}

// Remove forgets an object. Removing an unknown id is a no-op.
func (r *ObjectRegistry) Remove(id uuid.UUID) {
	r.mu.Lock()
	delete(r.objects, id)
	r.mu.Unlock()
}

// Count returns the number of live objects.
func (r *ObjectRegistry) Count() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return uint32(len(r.objects))
}

// Snapshot returns a copy of the registry contents for diagnostics.
func (r *ObjectRegistry) Snapshot() map[uuid.UUID]ObjectKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[uuid.UUID]ObjectKind, len(r.objects))
	for id, kind := range r.objects {
		out[id] = kind
	}
	return out
}
