// Package transceiver implements the Element shell (spec.md §4.1): it
// owns configuration, the caps adapter, the websocket worker, the
// receive queue, the output pacer and the reconnect controller, and
// drives the Inactive/Prepared/Paused lifecycle.
//
// The shell shape — a struct owning its sub-workers with explicit
// Prepare/Start/Pause/Stop transitions — is grounded on the teacher's
// src/pipeline element wiring, generalized from a multi-stage processor
// chain to this element's fixed five-component design.
package transceiver

import (
	"fmt"
	"sync"
	"time"

	"github.com/square-key-labs/wstransceiver/src/caps"
	"github.com/square-key-labs/wstransceiver/src/clock"
	"github.com/square-key-labs/wstransceiver/src/config"
	"github.com/square-key-labs/wstransceiver/src/errs"
	"github.com/square-key-labs/wstransceiver/src/frames"
	"github.com/square-key-labs/wstransceiver/src/logger"
	"github.com/square-key-labs/wstransceiver/src/pacer"
	"github.com/square-key-labs/wstransceiver/src/queue"
	"github.com/square-key-labs/wstransceiver/src/reconnect"
	"github.com/square-key-labs/wstransceiver/src/transport"
)

// State is the element's lifecycle state (spec.md §4.1).
type State int

const (
	Inactive State = iota
	Prepared
	Paused
)

func (s State) String() string {
	switch s {
	case Inactive:
		return "inactive"
	case Prepared:
		return "prepared"
	case Paused:
		return "paused"
	default:
		return "unknown"
	}
}

// Element is the bidirectional audio transceiver described by spec.md.
// It exposes a sink (PushCaps/PushAudio/PushEOS) and a source (Events).
type Element struct {
	cfg config.Config
	log *logger.Logger

	queue     *queue.ReceiveQueue
	reconnect *reconnect.Controller
	worker    *transport.Worker
	pacer     *pacer.Pacer
	clock     clock.PipelineClock

	events chan frames.Frame

	mu        sync.Mutex
	state     State
	capsOK    bool
	capsParms caps.AudioParameters
	stopping  bool
}

// New constructs an Element from cfg. Call Prepare to begin.
func New(cfg config.Config) *Element {
	return &Element{
		cfg:    cfg,
		log:    logger.WithPrefix("transceiver"),
		queue:  queue.New(cfg.MaxQueueSize),
		clock:  clock.NewSystemClock(),
		events: make(chan frames.Frame, 16),
		state:  Inactive,
	}
}

// Events returns the source port's event/audio stream. Callers must keep
// draining it; when the channel stays full for 50ms the pacer's Push
// drops the frame and reports FlowOther.
func (e *Element) Events() <-chan frames.Frame {
	return e.events
}

// State reports the current lifecycle state.
func (e *Element) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Latency answers the pipeline latency query of spec.md §4.1.
func (e *Element) Latency() (min, max time.Duration) {
	d := e.cfg.FrameDuration()
	return d, d * time.Duration(e.cfg.MaxQueueSize)
}

// Prepare performs Inactive -> Prepared (spec.md §4.1).
func (e *Element) Prepare() error {
	e.mu.Lock()
	if e.state != Inactive {
		e.mu.Unlock()
		return fmt.Errorf("prepare: %w", &errs.ConfigError{Field: "state", Reason: "element is not inactive"})
	}
	e.mu.Unlock()

	if err := e.cfg.Validate(); err != nil {
		return fmt.Errorf("prepare: %w", err)
	}

	e.reconnect = reconnect.New(reconnect.Config{
		Enabled:        e.cfg.ReconnectEnabled,
		InitialDelayMs: e.cfg.InitialReconnectDelayMs,
		MaxBackoffMs:   e.cfg.MaxBackoffMs,
		MaxReconnects:  e.cfg.MaxReconnects,
	})

	e.worker = transport.New(e.cfg.URI, e.queue, e.reconnect)
	e.worker.OnClear = e.onClear
	e.worker.Start()

	connected := e.worker.WaitConnected(5 * time.Second)
	if !connected {
		e.log.Warn("did not connect within 5s; continuing, reconnect attempts proceed in the background")
	}

	e.mu.Lock()
	e.state = Prepared
	e.mu.Unlock()
	return nil
}

// onClear is invoked by the websocket worker on {"type":"clear"} or on a
// successful (re)connect; it delegates to the pacer's flush protocol if
// the pacer is running.
func (e *Element) onClear() {
	e.mu.Lock()
	p := e.pacer
	e.mu.Unlock()
	if p != nil {
		p.Flush()
	}
}

// Start performs Prepared -> Paused: clears eos_sent/caps_ready and
// starts the output pacer.
func (e *Element) Start() error {
	e.mu.Lock()
	if e.state != Prepared {
		e.mu.Unlock()
		return fmt.Errorf("start: element is not prepared (state=%v)", e.state)
	}
	e.capsOK = false
	e.mu.Unlock()

	p := pacer.New(e.queue, e.clock, e.cfg.FrameDuration(), e.cfg.InitialBufferCount, e.worker.Connected, e.currentCaps)
	p.Push = e.pushDownstream

	e.mu.Lock()
	e.pacer = p
	e.state = Paused
	e.mu.Unlock()

	p.Start()
	return nil
}

// pushDownstream is the pacer's source-port Push callback. It reports a
// *errs.FlowError instead of a plain success whenever the downstream
// result is not OK (spec.md §4.5 Phase F step 3): a slow/absent consumer
// is FlowOther (logged, tolerated); a push that lands while Pause has
// already begun tearing the pacer down is FlowFlushing, which tells the
// pacer to stop rather than keep racing the shutdown. This design has no
// way for the channel consumer to signal "I am done" independently of
// the transport disconnecting, so FlowEndOfStream is never produced
// here — that case is instead handled by the pacer's own eos_sent path,
// which already exits on permanent disconnect.
func (e *Element) pushDownstream(f frames.Frame) error {
	select {
	case e.events <- f:
	case <-time.After(50 * time.Millisecond):
		return &errs.FlowError{Kind: errs.FlowOther, Reason: "source port send timed out"}
	}

	e.mu.Lock()
	stopping := e.stopping
	e.mu.Unlock()
	if stopping {
		return &errs.FlowError{Kind: errs.FlowFlushing, Reason: "pacer stopping"}
	}
	return nil
}

func (e *Element) currentCaps() (caps.AudioParameters, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.capsParms, e.capsOK
}

// Pause performs Paused -> Prepared: stops and joins the pacer, resets
// timing state.
func (e *Element) Pause() error {
	e.mu.Lock()
	if e.state != Paused {
		e.mu.Unlock()
		return fmt.Errorf("pause: element is not paused (state=%v)", e.state)
	}
	p := e.pacer
	e.mu.Unlock()

	e.mu.Lock()
	e.stopping = true
	e.mu.Unlock()

	if p != nil {
		p.Stop()
	}

	e.mu.Lock()
	e.pacer = nil
	e.stopping = false
	e.state = Prepared
	e.mu.Unlock()
	return nil
}

// Unprepare performs Prepared -> Inactive: stops the websocket worker,
// drains the receive queue, clears connection flags.
func (e *Element) Unprepare() error {
	e.mu.Lock()
	if e.state != Prepared {
		e.mu.Unlock()
		return fmt.Errorf("unprepare: element is not prepared (state=%v)", e.state)
	}
	w := e.worker
	e.mu.Unlock()

	if w != nil {
		w.Stop()
	}
	e.queue.Flush()

	e.mu.Lock()
	e.worker = nil
	e.capsOK = false
	e.state = Inactive
	e.mu.Unlock()
	return nil
}

// PushCaps is the sink's caps adapter (spec.md §4.2). format/sampleRate/
// channels come from the upstream caps event.
func (e *Element) PushCaps(format caps.Format, sampleRate, channels int) error {
	params, err := caps.Negotiate(format, sampleRate, channels, e.cfg.FrameDurationMs)
	if err != nil {
		return fmt.Errorf("push-caps: %w", err)
	}
	if !caps.KnownFormat(format) {
		e.log.Warn("unknown format %q, assuming 1 byte/sample", format)
	}

	e.mu.Lock()
	e.capsParms = params
	e.capsOK = true
	e.mu.Unlock()
	return nil
}

// PushAudio is the sink-chain contract of spec.md §4.3.1: send the raw
// payload to the remote peer. Dropping while disconnected is benign.
func (e *Element) PushAudio(data []byte) error {
	e.mu.Lock()
	w := e.worker
	e.mu.Unlock()

	if w == nil {
		return nil
	}
	return w.Send(data)
}

// PushEOS absorbs a sink end-of-stream without propagating it to the
// source (spec.md §4.3.1: sink-EOS does not imply transport-EOS).
func (e *Element) PushEOS() {
	e.log.Debug("sink eos received, absorbed (not propagated to source)")
}
