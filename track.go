package rtccore

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

// LocalTrack is a webrtc.TrackLocal delivery endpoint. Producers whose
// payloads are already packetized hand RTP through a pacer's delivery
// callback (see RTPPayloadSink) and the track fans the packets out to every
// bound transceiver.
type LocalTrack struct {
	id       string
	streamID string
	codec    webrtc.RTPCodecCapability
	closed   atomic.Bool

	mu       sync.RWMutex
	bindings []webrtc.TrackLocalContext
}

// NewLocalTrack creates a local track for the given codec capability.
func NewLocalTrack(codec webrtc.RTPCodecCapability, id, streamID string) *LocalTrack {
	return &LocalTrack{id: id, streamID: streamID, codec: codec}
}

func (t *LocalTrack) ID() string       { return t.id }
func (t *LocalTrack) StreamID() string { return t.streamID }
func (t *LocalTrack) RID() string      { return "" }

// Kind reports audio or video based on the codec MIME type.
func (t *LocalTrack) Kind() webrtc.RTPCodecType {
	if strings.HasPrefix(t.codec.MimeType, "audio") {
		return webrtc.RTPCodecTypeAudio
	}
	return webrtc.RTPCodecTypeVideo
}

// Codec returns the codec capability.
func (t *LocalTrack) Codec() webrtc.RTPCodecCapability { return t.codec }

// Bind implements webrtc.TrackLocal.
func (t *LocalTrack) Bind(ctx webrtc.TrackLocalContext) (webrtc.RTPCodecParameters, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.bindings = append(t.bindings, ctx)

	for _, p := range ctx.CodecParameters() {
		if p.MimeType == t.codec.MimeType {
			return p, nil
		}
	}
	return webrtc.RTPCodecParameters{RTPCodecCapability: t.codec}, nil
}

// Unbind implements webrtc.TrackLocal.
func (t *LocalTrack) Unbind(ctx webrtc.TrackLocalContext) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, b := range t.bindings {
		if b.ID() == ctx.ID() {
			t.bindings = append(t.bindings[:i], t.bindings[i+1:]...)
			break
		}
	}
	return nil
}

// Closed reports whether the track has ended.
func (t *LocalTrack) Closed() bool { return t.closed.Load() }

// Close implements io.Closer. It ends the track and drops all bindings;
// later writes are silently discarded. Idempotent.
func (t *LocalTrack) Close() error {
	t.closed.Store(true)
	t.mu.Lock()
	t.bindings = nil
	t.mu.Unlock()
	return nil
}

// WriteRTP writes a packet to all bound contexts. Writes to a closed track
// are dropped.
func (t *LocalTrack) WriteRTP(p *rtp.Packet) error {
	if t.closed.Load() {
		return nil
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, b := range t.bindings {
		if _, err := b.WriteStream().WriteRTP(&p.Header, p.Payload); err != nil {
			return err
		}
	}
	return nil
}

// Write writes marshaled RTP bytes to all bound contexts.
func (t *LocalTrack) Write(b []byte) (int, error) {
	var p rtp.Packet
	if err := p.Unmarshal(b); err != nil {
		return 0, err
	}
	return len(b), t.WriteRTP(&p)
}

var _ webrtc.TrackLocal = (*LocalTrack)(nil)

// RTPPayloadSink adapts a LocalTrack to a pacer's delivery callback for
// producers that complete requests with pre-packetized payloads. Accepted
// payload shapes are *rtp.Packet and []*rtp.Packet; anything else is dropped
// (payload shape is the producer's contract with its sink, not the pacer's).
func RTPPayloadSink(track *LocalTrack) FrameDeliveryCallback {
	return func(_ int64, payload interface{}) {
		switch pkt := payload.(type) {
		case *rtp.Packet:
			_ = track.WriteRTP(pkt)
		case []*rtp.Packet:
			for _, p := range pkt {
				_ = track.WriteRTP(p)
			}
		}
	}
}
