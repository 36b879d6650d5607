package rtccore

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/logging"
)

// PacerState represents the state of a FramePacer.
type PacerState int

const (
	PacerStopped  PacerState = iota // Not ticking; may start
	PacerRunning                    // Ticking at the target cadence
	PacerShutdown                   // Producer released; terminal
)

func (s PacerState) String() string {
	switch s {
	case PacerStopped:
		return "stopped"
	case PacerRunning:
		return "running"
	case PacerShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// MaxFramerate bounds SetFramerate; the valid domain is (0, MaxFramerate].
const MaxFramerate = 240

// FrameRequest identifies one solicited frame: a per-pacer monotonically
// increasing id and the scheduled time the request was issued.
type FrameRequest struct {
	ID              uint32
	ScheduledTimeMs int64
}

// FrameProducer is the pull callback invoked once per tick. The producer
// must eventually call CompleteRequest with the request's id — synchronously
// before returning, or asynchronously later from any goroutine — exactly once
// per request it intends to honor. Completing an already-pruned id fails with
// ErrInvalidParameter, never crashes.
type FrameProducer interface {
	ProduceFrame(req FrameRequest) error
}

// FrameProducerFunc adapts a function to the FrameProducer interface.
type FrameProducerFunc func(req FrameRequest) error

func (f FrameProducerFunc) ProduceFrame(req FrameRequest) error { return f(req) }

// FrameDeliveryCallback receives a completed payload together with the
// ledger-recorded scheduled time of its request. The payload is opaque to the
// pacer and passed through unexamined.
type FrameDeliveryCallback func(scheduledTimeMs int64, payload interface{})

// FramePacerConfig configures a FramePacer.
type FramePacerConfig struct {
	FPS            float32               // Target framerate (default: 30)
	LedgerCapacity int                   // Outstanding request bound (default: 64)
	Producer       FrameProducer         // Required pull callback
	OnDeliver      FrameDeliveryCallback // Receives completed payloads
	LoggerFactory  logging.LoggerFactory // Defaults to logging.NewDefaultLoggerFactory()
}

// FramePacer drives timed pull requests to a producer at a target cadence and
// correlates asynchronous completions to outstanding requests.
//
// Each pacer owns one goroutine; ticks for a pacer are strictly sequential
// and never overlap. A tick records the request in the ledger, invokes the
// producer synchronously, then advances the next deadline by whole intervals:
// if the producer stalled past the deadline, the missed cycles are skipped
// (counted in stats) rather than burst-replayed, so the next deadline is
// always in the future.
//
// CompleteRequest may be called from any goroutine. The ledger tolerates
// out-of-order completion: completing request N consumes N and silently
// expires everything older, so a newer completion forecloses older ones.
type FramePacer struct {
	log      logging.LeveledLogger
	producer FrameProducer
	deliver  FrameDeliveryCallback

	mu     sync.Mutex // lifecycle: StartCapture/StopCapture/Shutdown
	state  atomic.Int32
	stopCh chan struct{}
	doneCh chan struct{}

	intervalMicros atomic.Int64
	nextRequestID  uint32 // tick goroutine only

	// ledgerMu guards ledger and stats against completions arriving from
	// other goroutines. Never held while calling the producer or the
	// delivery callback, and never nested with any factory lock.
	ledgerMu sync.Mutex
	ledger   *requestLedger
	stats    captureStats

	now func() time.Time // replaceable in tests
}

// NewFramePacer creates a pacer in the stopped state.
func NewFramePacer(config FramePacerConfig) (*FramePacer, error) {
	if config.Producer == nil {
		return nil, fmt.Errorf("%w: producer is required", ErrInvalidParameter)
	}
	if config.FPS == 0 {
		config.FPS = 30
	}
	if config.FPS < 0 || config.FPS > MaxFramerate {
		return nil, fmt.Errorf("%w: framerate %v out of range (0, %d]", ErrInvalidParameter, config.FPS, MaxFramerate)
	}
	lf := config.LoggerFactory
	if lf == nil {
		lf = logging.NewDefaultLoggerFactory()
	}

	p := &FramePacer{
		log:      lf.NewLogger("pacer"),
		producer: config.Producer,
		deliver:  config.OnDeliver,
		ledger:   newRequestLedger(config.LedgerCapacity),
		now:      time.Now,
	}
	p.intervalMicros.Store(int64(1_000_000 / config.FPS))
	p.state.Store(int32(PacerStopped))
	return p, nil
}

// State returns the current pacer state.
func (p *FramePacer) State() PacerState {
	return PacerState(p.state.Load())
}

// StartCapture resets the stats and ledger, then begins ticking at the
// target cadence. A no-op on a pacer that is already running or shut down.
func (p *FramePacer) StartCapture() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if PacerState(p.state.Load()) != PacerStopped {
		return nil
	}

	p.ledgerMu.Lock()
	p.ledger.clear()
	p.stats.reset()
	p.ledgerMu.Unlock()

	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.state.Store(int32(PacerRunning))
	go p.run(p.stopCh, p.doneCh)
	return nil
}

// StopCapture cancels the tick loop and waits for it to exit, so no tick
// fires after this call returns. Clears the ledger. Idempotent.
func (p *FramePacer) StopCapture() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *FramePacer) stopLocked() {
	if PacerState(p.state.Load()) != PacerRunning {
		return
	}
	close(p.stopCh)
	<-p.doneCh
	p.state.Store(int32(PacerStopped))

	p.ledgerMu.Lock()
	p.ledger.clear()
	p.ledgerMu.Unlock()
}

// Shutdown stops capture and releases the producer reference permanently.
// The pacer cannot start again; later StartCapture calls are silent no-ops.
// Idempotent.
func (p *FramePacer) Shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if PacerState(p.state.Load()) == PacerShutdown {
		return
	}
	p.stopLocked()
	p.state.Store(int32(PacerShutdown))
	p.producer = nil

	// deliver is read under ledgerMu by in-flight completions.
	p.ledgerMu.Lock()
	p.deliver = nil
	p.ledgerMu.Unlock()
}

// SetFramerate changes the target cadence. Valid domain (0, MaxFramerate].
// Takes effect at the next scheduled tick, not retroactively.
func (p *FramePacer) SetFramerate(fps float32) error {
	if fps <= 0 || fps > MaxFramerate {
		return fmt.Errorf("%w: framerate %v out of range (0, %d]", ErrInvalidParameter, fps, MaxFramerate)
	}
	p.intervalMicros.Store(int64(1_000_000 / fps))
	return nil
}

// GetFramerate returns the current target framerate.
func (p *FramePacer) GetFramerate() float32 {
	return float32(1_000_000 / float64(p.intervalMicros.Load()))
}

// CompleteRequest resolves an outstanding request by id and hands the payload
// to the delivery callback. Callable from any goroutine, including
// synchronously from within the producer callback.
//
// The ledger's recorded scheduled time is authoritative: timestampMs is
// accepted for producer convenience but ignored in favor of the ledger value,
// keeping cadence consistent across asynchronous completions. Completing id N
// prunes every outstanding id older than N, so ids below the newest
// completion (and ids already evicted by the capacity bound) fail with
// ErrInvalidParameter.
func (p *FramePacer) CompleteRequest(requestID uint32, timestampMs int64, payload interface{}) error {
	if PacerState(p.state.Load()) == PacerShutdown {
		return fmt.Errorf("%w: pacer is shut down", ErrInvalidReference)
	}
	if payload == nil {
		return fmt.Errorf("%w: nil payload for request %d", ErrInvalidParameter, requestID)
	}

	p.ledgerMu.Lock()
	scheduledMs, ok := p.ledger.findAndPruneThrough(requestID)
	if !ok {
		p.ledgerMu.Unlock()
		return fmt.Errorf("%w: unknown or expired request id %d", ErrInvalidParameter, requestID)
	}
	p.stats.recordProduced(1, p.now())
	deliver := p.deliver
	p.ledgerMu.Unlock()

	if deliver != nil {
		deliver(scheduledMs, payload)
	}
	return nil
}

// Stats returns a snapshot of the production counters. The average rate is
// computed on read from the rolling window.
func (p *FramePacer) Stats() PacerStats {
	p.ledgerMu.Lock()
	defer p.ledgerMu.Unlock()
	return p.stats.snapshot(p.now())
}

func (p *FramePacer) run(stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	interval := p.interval()
	next := p.now().Add(interval)
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-timer.C:
		}

		p.tick(interval)

		// A framerate change applies from this reschedule on.
		interval = p.interval()
		next = next.Add(interval)

		// Drift correction: if the producer stalled past the deadline, skip
		// whole cycles instead of bursting to catch up. The next deadline is
		// always strictly in the future.
		if now := p.now(); !next.After(now) {
			behind := now.Sub(next)
			skip := int64(behind/interval) + 1
			next = next.Add(time.Duration(skip) * interval)

			p.ledgerMu.Lock()
			p.stats.recordSkipped(uint64(skip), now)
			p.ledgerMu.Unlock()
		}

		timer.Reset(next.Sub(p.now()))
	}
}

func (p *FramePacer) interval() time.Duration {
	return time.Duration(p.intervalMicros.Load()) * time.Microsecond
}

func (p *FramePacer) tick(interval time.Duration) {
	id := p.nextRequestID
	p.nextRequestID++

	start := p.now()
	nowMs := start.UnixMilli()

	// The request is in the ledger before the producer runs, so a
	// synchronous completion from inside the callback resolves.
	p.ledgerMu.Lock()
	p.ledger.push(id, nowMs)
	p.ledgerMu.Unlock()

	if err := p.producer.ProduceFrame(FrameRequest{ID: id, ScheduledTimeMs: nowMs}); err != nil {
		p.log.Warnf("producer failed for request %d: %v", id, err)
	}

	if elapsed := p.now().Sub(start); elapsed > interval {
		p.log.Warnf("slow producer: request %d took %v, target interval %v", id, elapsed, interval)
	}
}
