// Package rtccore provides the lifecycle and frame-pacing core of a WebRTC
// media wrapper: a reference-counted factory owning the shared engine, and a
// pull-model pacer that solicits frames from producers at a target cadence.
//
// Key pieces include:
//   - Factory/FactoryHandle: lazily-initialized, refcounted owner of the
//     shared pion webrtc.API, destroyed only when no handle remains
//   - ObjectRegistry: counted set of live API objects gating safe shutdown
//   - FramePacer: per-source timer that pulls frames from a producer,
//     matches asynchronous completions to requests, and skips cycles to
//     recover from stalls without bursting
//   - ExternalVideoSource/ExternalAudioSource: typed pull-model sources,
//     one pacer each, pinning the factory while alive
//   - LocalTrack: webrtc.TrackLocal delivery endpoint for pre-packetized
//     RTP payloads
//
// # Architecture
//
//	AcquireOrInitialize -> FactoryHandle -> ExternalVideoSource -> FramePacer
//	FramePacer tick -> FrameProducer.ProduceFrame -> CompleteRequest -> sink
//
// Destruction flows bottom-up: each source shuts its own pacer down
// independently; the factory tears the engine down when the last handle is
// released.
//
// Payloads (planar video buffers, PCM audio) are opaque to the pacer core
// and passed through unexamined; the typed sources give them shape at the
// API edge.
package rtccore
