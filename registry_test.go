package rtccore

import (
	"sync"
	"testing"

	"github.com/google/uuid"
)

func TestObjectKind_String(t *testing.T) {
	tests := []struct {
		kind ObjectKind
		want string
	}{
		{ObjectKindPeerConnection, "PeerConnection"},
		{ObjectKindLocalVideoTrack, "LocalVideoTrack"},
		{ObjectKindLocalAudioTrack, "LocalAudioTrack"},
		{ObjectKindExternalVideoSource, "ExternalVideoSource"},
		{ObjectKindExternalAudioSource, "ExternalAudioSource"},
		{ObjectKindDataChannel, "DataChannel"},
		{ObjectKindUnknown, "Unknown"},
		{ObjectKind(99), "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.kind.String(); got != tt.want {
				t.Errorf("ObjectKind.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestObjectRegistry_AddRemoveCount(t *testing.T) {
	r := NewObjectRegistry()

	a, b := uuid.New(), uuid.New()
	r.Add(a, ObjectKindPeerConnection)
	r.Add(b, ObjectKindExternalVideoSource)

	if got := r.Count(); got != 2 {
		t.Errorf("Count = %d, want 2", got)
	}

	r.Remove(a)
	if got := r.Count(); got != 1 {
		t.Errorf("Count = %d, want 1 after remove", got)
	}

	// Removing an unknown id is a no-op.
	r.Remove(uuid.New())
	if got := r.Count(); got != 1 {
		t.Errorf("Count = %d, want 1 after unknown remove", got)
	}
}

func TestObjectRegistry_Snapshot(t *testing.T) {
	r := NewObjectRegistry()
	id := uuid.New()
	r.Add(id, ObjectKindDataChannel)

	snap := r.Snapshot()
	if kind, ok := snap[id]; !ok || kind != ObjectKindDataChannel {
		t.Fatalf("snapshot[%v] = %v, %v; want DataChannel, true", id, kind, ok)
	}

	// Mutating the snapshot must not touch the registry.
	delete(snap, id)
	if got := r.Count(); got != 1 {
		t.Errorf("Count = %d, want 1 after snapshot mutation", got)
	}
}

func TestObjectRegistry_ConcurrentAccess(t *testing.T) {
	r := NewObjectRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				id := uuid.New()
				r.Add(id, ObjectKindPeerConnection)
				_ = r.Count()
				r.Remove(id)
			}
		}()
	}
	wg.Wait()

	if got := r.Count(); got != 0 {
		t.Errorf("Count = %d, want 0 after balanced add/remove", got)
	}
}
