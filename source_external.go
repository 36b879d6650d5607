package rtccore

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/logging"
)

// VideoFrameCallback receives completed video frames together with the
// scheduled time of the request they answer.
type VideoFrameCallback func(scheduledTimeMs int64, frame *VideoFrame)

// AudioSamplesCallback receives completed audio samples together with the
// scheduled time of the request they answer.
type AudioSamplesCallback func(scheduledTimeMs int64, samples *AudioSamples)

// ExternalVideoSourceConfig configures an ExternalVideoSource.
type ExternalVideoSourceConfig struct {
	FPS            float32               // Target framerate (default: 30)
	LedgerCapacity int                   // Outstanding request bound (default: 64)
	Producer       FrameProducer         // Required pull callback
	OnFrame        VideoFrameCallback    // Receives completed frames
	LoggerFactory  logging.LoggerFactory // Defaults to logging.NewDefaultLoggerFactory()
}

// ExternalVideoSource is a pull-model video source: it owns one FramePacer
// that solicits frames from the producer at the target cadence, and the
// producer answers each request with CompleteFrame. While alive the source
// pins the factory through a cloned handle and is tracked in the registry.
type ExternalVideoSource struct {
	id           uuid.UUID
	handle       *FactoryHandle
	pacer        *FramePacer
	shutdownOnce sync.Once
}

// NewExternalVideoSource creates a video source bound to the factory behind
// handle. The source holds its own clone of the handle; the caller's handle
// stays the caller's to release.
func NewExternalVideoSource(handle *FactoryHandle, config ExternalVideoSourceConfig) (*ExternalVideoSource, error) {
	s := &ExternalVideoSource{id: uuid.New()}

	cb := config.OnFrame
	p, err := NewFramePacer(FramePacerConfig{
		FPS:            config.FPS,
		LedgerCapacity: config.LedgerCapacity,
		Producer:       config.Producer,
		LoggerFactory:  config.LoggerFactory,
		OnDeliver: func(scheduledTimeMs int64, payload interface{}) {
			if cb != nil {
				cb(scheduledTimeMs, payload.(*VideoFrame))
			}
		},
	})
	if err != nil {
		return nil, err
	}
	s.pacer = p

	if s.handle, err = handle.Clone(); err != nil {
		return nil, err
	}
	s.handle.Factory().Registry().Add(s.id, ObjectKindExternalVideoSource)
	return s, nil
}

// ID returns the source's registry identity.
func (s *ExternalVideoSource) ID() uuid.UUID { return s.id }

// StartCapture begins soliciting frames from the producer.
func (s *ExternalVideoSource) StartCapture() error { return s.pacer.StartCapture() }

// StopCapture stops soliciting frames. No producer callback fires after it
// returns. Idempotent.
func (s *ExternalVideoSource) StopCapture() { s.pacer.StopCapture() }

// SetFramerate changes the capture cadence, effective at the next tick.
func (s *ExternalVideoSource) SetFramerate(fps float32) error { return s.pacer.SetFramerate(fps) }

// GetFramerate returns the current target framerate.
func (s *ExternalVideoSource) GetFramerate() float32 { return s.pacer.GetFramerate() }

// CompleteFrame resolves an outstanding request with a frame. Callable from
// any goroutine. The scheduled time recorded at request issue is
// authoritative; timestampMs is ignored in its favor.
func (s *ExternalVideoSource) CompleteFrame(requestID uint32, timestampMs int64, frame *VideoFrame) error {
	if frame == nil {
		return fmt.Errorf("%w: nil frame for request %d", ErrInvalidParameter, requestID)
	}
	return s.pacer.CompleteRequest(requestID, timestampMs, frame)
}

// Stats returns a snapshot of the source's production counters.
func (s *ExternalVideoSource) Stats() PacerStats { return s.pacer.Stats() }

// Shutdown stops capture, releases the producer, unregisters the source and
// unpins the factory. Irreversible and idempotent.
func (s *ExternalVideoSource) Shutdown() {
	s.pacer.Shutdown()
	s.shutdownOnce.Do(func() {
		s.handle.Factory().Registry().Remove(s.id)
		_ = s.handle.Release()
	})
}

// ExternalAudioSourceConfig configures an ExternalAudioSource.
type ExternalAudioSourceConfig struct {
	FPS            float32               // Frame solicitation rate (default: 30, e.g. 100 for 10ms buffers)
	LedgerCapacity int                   // Outstanding request bound (default: 64)
	Producer       FrameProducer         // Required pull callback
	OnSamples      AudioSamplesCallback  // Receives completed samples
	LoggerFactory  logging.LoggerFactory // Defaults to logging.NewDefaultLoggerFactory()
}

// ExternalAudioSource is the audio counterpart of ExternalVideoSource: the
// same pacing protocol soliciting PCM buffers instead of video frames.
type ExternalAudioSource struct {
	id           uuid.UUID
	handle       *FactoryHandle
	pacer        *FramePacer
	shutdownOnce sync.Once
}

// NewExternalAudioSource creates an audio source bound to the factory behind
// handle.
func NewExternalAudioSource(handle *FactoryHandle, config ExternalAudioSourceConfig) (*ExternalAudioSource, error) {
	s := &ExternalAudioSource{id: uuid.New()}

	cb := config.OnSamples
	p, err := NewFramePacer(FramePacerConfig{
		FPS:            config.FPS,
		LedgerCapacity: config.LedgerCapacity,
		Producer:       config.Producer,
		LoggerFactory:  config.LoggerFactory,
		OnDeliver: func(scheduledTimeMs int64, payload interface{}) {
			if cb != nil {
				cb(scheduledTimeMs, payload.(*AudioSamples))
			}
		},
	})
	if err != nil {
		return nil, err
	}
	s.pacer = p

	if s.handle, err = handle.Clone(); err != nil {
		return nil, err
	}
	s.handle.Factory().Registry().Add(s.id, ObjectKindExternalAudioSource)
	return s, nil
}

// ID returns the source's registry identity.
func (s *ExternalAudioSource) ID() uuid.UUID { return s.id }

// StartCapture begins soliciting sample buffers from the producer.
func (s *ExternalAudioSource) StartCapture() error { return s.pacer.StartCapture() }

// StopCapture stops soliciting. Idempotent.
func (s *ExternalAudioSource) StopCapture() { s.pacer.StopCapture() }

// SetFramerate changes the solicitation cadence, effective at the next tick.
func (s *ExternalAudioSource) SetFramerate(fps float32) error { return s.pacer.SetFramerate(fps) }

// GetFramerate returns the current solicitation rate.
func (s *ExternalAudioSource) GetFramerate() float32 { return s.pacer.GetFramerate() }

// CompleteSamples resolves an outstanding request with a PCM buffer.
func (s *ExternalAudioSource) CompleteSamples(requestID uint32, timestampMs int64, samples *AudioSamples) error {
	if samples == nil {
		return fmt.Errorf("%w: nil samples for request %d", ErrInvalidParameter, requestID)
	}
	return s.pacer.CompleteRequest(requestID, timestampMs, samples)
}

// Stats returns a snapshot of the source's production counters.
func (s *ExternalAudioSource) Stats() PacerStats { return s.pacer.Stats() }

// Shutdown stops capture, releases the producer, unregisters the source and
// unpins the factory. Irreversible and idempotent.
func (s *ExternalAudioSource) Shutdown() {
	s.pacer.Shutdown()
	s.shutdownOnce.Do(func() {
		s.handle.Factory().Registry().Remove(s.id)
		_ = s.handle.Release()
	})
}
