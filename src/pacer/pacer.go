// Package pacer implements the transceiver's output pacer (spec.md §4.5):
// a single-threaded cooperative worker that paces delivery of received
// audio to the source port against a pipeline clock, and runs the
// barge-in flush protocol (spec.md §4.5.1) on demand.
//
// The phased state-machine shape (open stream, acquire clock, jitter
// reserve, caps, segment, steady-state loop) is grounded on the teacher's
// src/pipeline worker loops, adapted from a generic FrameProcessor chain
// to the fixed five-event sequence spec.md defines for this element.
package pacer

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/square-key-labs/wstransceiver/src/caps"
	"github.com/square-key-labs/wstransceiver/src/clock"
	"github.com/square-key-labs/wstransceiver/src/errs"
	"github.com/square-key-labs/wstransceiver/src/frames"
	"github.com/square-key-labs/wstransceiver/src/logger"
	"github.com/square-key-labs/wstransceiver/src/queue"
)

// waitQuantum bounds every condition wait so the running flag gets
// re-checked periodically (spec.md §5 "suspension points").
const waitQuantum = 50 * time.Millisecond

// Pacer drives spec.md §4.5's state machine. One Pacer per activation
// (Prepared -> Paused).
type Pacer struct {
	queue              *queue.ReceiveQueue
	clock              clock.PipelineClock
	frameDuration      time.Duration
	initialBufferCount int

	// Push delivers a frame downstream on the source port.
	Push func(frames.Frame) error

	log *logger.Logger

	mu           sync.Mutex
	running      bool
	connected    func() bool
	capsReady    func() (caps.AudioParameters, bool)
	needSegment  bool
	eosSent      bool
	flushPending bool

	wakeCh chan struct{} // closed and replaced to interrupt the steady-state sleep

	wg sync.WaitGroup
}

// New creates a Pacer. connected reports current transport connectivity;
// capsReady reports the negotiated caps once PushCaps has landed.
func New(q *queue.ReceiveQueue, pc clock.PipelineClock, frameDuration time.Duration, initialBufferCount int, connected func() bool, capsReady func() (caps.AudioParameters, bool)) *Pacer {
	return &Pacer{
		queue:              q,
		clock:              pc,
		frameDuration:      frameDuration,
		initialBufferCount: initialBufferCount,
		connected:          connected,
		capsReady:          capsReady,
		log:                logger.WithPrefix("pacer"),
		wakeCh:             make(chan struct{}),
	}
}

// Start launches the pacer goroutine (Paused activation).
func (p *Pacer) Start() {
	p.mu.Lock()
	p.running = true
	p.eosSent = false
	p.needSegment = false
	p.mu.Unlock()

	p.wg.Add(1)
	go p.run()
}

// Stop signals the pacer to exit and waits for it to join (Paused ->
// Prepared). No pipeline object reference is retained past the join.
func (p *Pacer) Stop() {
	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	p.wakeAll()
	p.wg.Wait()
}

func (p *Pacer) isRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Pacer) wakeAll() {
	p.mu.Lock()
	old := p.wakeCh
	p.wakeCh = make(chan struct{})
	p.mu.Unlock()
	close(old)
}

// Flush runs the barge-in protocol of spec.md §4.5.1. Safe to call from
// any goroutine (the websocket worker's OnClear callback, or the
// reconnect path).
func (p *Pacer) Flush() {
	p.queue.Flush()

	p.mu.Lock()
	p.needSegment = true
	p.mu.Unlock()

	if err := p.Push(frames.NewFlushStartFrame()); err != nil {
		p.log.Warn("flush-start push failed: %v", err)
	}
	if err := p.Push(frames.NewFlushStopFrame()); err != nil {
		p.log.Warn("flush-stop push failed: %v", err)
	}

	p.wakeAll()
}

// run executes Phases A-F once per activation.
func (p *Pacer) run() {
	defer p.wg.Done()

	streamID := uuid.New().String()
	log := p.log.WithField("stream_id", streamID)
	if err := p.Push(frames.NewStreamStartFrame(streamID)); err != nil {
		log.Warn("stream-start push failed: %v", err)
	}

	baseTimestamp := p.clock.Now()
	nextTimestamp := time.Duration(0)
	nextOutputTime := baseTimestamp + p.frameDuration

	if p.initialBufferCount > 0 {
		p.queue.WaitAtLeast(p.initialBufferCount, 2*time.Second)
	}

	params, ok := p.awaitCaps()
	if !ok {
		if !p.isRunning() {
			return
		}
	} else if err := p.Push(frames.NewCapsFrame(params)); err != nil {
		log.Warn("caps push failed: %v", err)
	}

	if err := p.Push(frames.NewSegmentFrame()); err != nil {
		log.Warn("segment push failed: %v", err)
	}
	p.mu.Lock()
	p.needSegment = false
	p.mu.Unlock()

	p.steadyState(log, baseTimestamp, nextTimestamp, nextOutputTime)
}

func (p *Pacer) awaitCaps() (caps.AudioParameters, bool) {
	deadline := time.Now().Add(5 * time.Second)
	for p.isRunning() {
		if params, ready := p.capsReady(); ready {
			return params, true
		}
		if time.Now().After(deadline) {
			return caps.AudioParameters{}, false
		}
		time.Sleep(waitQuantum)
	}
	return caps.AudioParameters{}, false
}

// steadyState is Phase F.
func (p *Pacer) steadyState(log *logger.Logger, baseTimestamp, nextTimestamp, nextOutputTime time.Duration) {
	for {
		p.mu.Lock()
		if p.eosSent {
			p.mu.Unlock()
			return
		}
		needSeg := p.needSegment
		p.mu.Unlock()

		if !p.isRunning() {
			return
		}

		if needSeg {
			if err := p.Push(frames.NewSegmentFrame()); err != nil {
				log.Warn("re-segment push failed: %v", err)
			}
			p.mu.Lock()
			p.needSegment = false
			nextTimestamp = 0
			p.mu.Unlock()
		}

		p.sleepUntil(nextOutputTime)
		if !p.isRunning() {
			return
		}

		frame, hasFrame := p.queue.Pop()
		if hasFrame {
			frame.Stamp(baseTimestamp+nextTimestamp, p.frameDuration)
			if err := p.Push(frame); err != nil {
				log.Warn("audio push failed: %v", err)
				if shouldExitOnFlowResult(err) {
					return
				}
			}
			nextTimestamp += p.frameDuration
			nextOutputTime += p.frameDuration
			continue
		}

		if !p.connected() {
			p.mu.Lock()
			alreadySent := p.eosSent
			p.eosSent = true
			p.mu.Unlock()

			if !alreadySent {
				if err := p.Push(frames.NewEndOfStreamFrame()); err != nil {
					log.Warn("eos push failed: %v", err)
				}
			}
			return
		}

		nextTimestamp += p.frameDuration
		nextOutputTime += p.frameDuration
	}
}

// shouldExitOnFlowResult implements spec.md §4.5 Phase F step 3's
// downstream-result check: any non-OK push is logged regardless, but
// only a *errs.FlowError carrying FlowEndOfStream or FlowFlushing
// actually ends the pacer's loop. Any other error (including a non-flow
// error from a source-port implementation that doesn't use the flow
// taxonomy) is tolerated and the loop continues.
func shouldExitOnFlowResult(err error) bool {
	var flowErr *errs.FlowError
	if !errors.As(err, &flowErr) {
		return false
	}
	return flowErr.Kind == errs.FlowEndOfStream || flowErr.Kind == errs.FlowFlushing
}

// sleepUntil blocks until deadline on the pipeline clock, waking early on
// flush/shutdown signals and re-checking them in waitQuantum increments.
func (p *Pacer) sleepUntil(deadline time.Duration) {
	for p.isRunning() {
		remaining := deadline - p.clock.Now()
		if remaining <= 0 {
			return
		}
		wait := remaining
		if wait > waitQuantum {
			wait = waitQuantum
		}

		p.mu.Lock()
		wake := p.wakeCh
		p.mu.Unlock()

		select {
		case <-wake:
			return
		case <-time.After(wait):
		}
	}
}
