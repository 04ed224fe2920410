// Package transport implements the transceiver's websocket worker
// (spec.md §4.3): a single dedicated I/O goroutine that connects, reads
// incoming frames, sends outbound binary frames, observes close/error, and
// drives the reconnect loop.
//
// The connect/read/send shape is grounded on the teacher's
// src/transports/websocket.go, adapted from a server accepting connections
// to a client dialing one, since spec.md §6 requires a client-initiated
// handshake with no subprotocol.
package transport

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/square-key-labs/wstransceiver/src/errs"
	"github.com/square-key-labs/wstransceiver/src/frames"
	"github.com/square-key-labs/wstransceiver/src/logger"
	"github.com/square-key-labs/wstransceiver/src/queue"
	"github.com/square-key-labs/wstransceiver/src/reconnect"
)

// State is one of the ConnectionState variants of spec.md §3.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Closing
	Closed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// controlMessage is the only defined inbound text control message
// (spec.md §6): {"type":"clear"}. Any other type is warned and ignored.
type controlMessage struct {
	Type string `json:"type"`
}

// Worker owns the isolated event context described in spec.md §4.3,
// pinned to one goroutine for its whole lifetime.
type Worker struct {
	uri       string
	queue     *queue.ReceiveQueue
	reconnect *reconnect.Controller
	dialer    *websocket.Dialer
	log       *logger.Logger

	// OnClear is invoked when a {"type":"clear"} control message arrives,
	// or implicitly after a successful (re)connect (barge-in semantics on
	// reconnect, spec.md §4.3 step 2). Must not block.
	OnClear func()

	// mu guards everything below: this is state_lock in spec.md §5's lock
	// order (state_lock -> queue_lock -> output_lock). The worker always
	// releases mu before touching the queue or doing I/O.
	mu      sync.Mutex
	state   State
	conn    *websocket.Conn
	running bool

	connectedCh chan struct{} // closed and replaced on every Connected transition
	stopCh      chan struct{} // closed exactly once by Stop, interrupts an in-flight backoff

	wg sync.WaitGroup
}

// New creates a Worker for uri. q receives inbound audio frames; rc
// decides the reconnect policy.
func New(uri string, q *queue.ReceiveQueue, rc *reconnect.Controller) *Worker {
	return &Worker{
		uri:         uri,
		queue:       q,
		reconnect:   rc,
		dialer:      &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		log:         logger.WithPrefix("ws-worker"),
		connectedCh: make(chan struct{}),
		stopCh:      make(chan struct{}),
	}
}

// Start launches the connect loop on its own goroutine. Safe to call once
// per activation.
func (w *Worker) Start() {
	w.mu.Lock()
	w.running = true
	w.stopCh = make(chan struct{})
	w.mu.Unlock()

	w.wg.Add(1)
	go w.connectLoop()
}

// Stop signals the worker to stop, closes any live connection, interrupts
// an in-flight reconnect backoff, and waits for the goroutine to exit. No
// thread is cancelled asynchronously (spec.md §5); instead every
// suspension point (the read loop's live conn and backoffOrStop's sleep)
// is woken here.
func (w *Worker) Stop() {
	w.mu.Lock()
	w.running = false
	conn := w.conn
	stopCh := w.stopCh
	w.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	close(stopCh)
	w.wg.Wait()
}

// State returns the current ConnectionState.
func (w *Worker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Connected reports whether a live connection is currently held.
func (w *Worker) Connected() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state == Connected
}

// WaitConnected blocks until the worker reaches Connected or timeout
// elapses, returning whether it connected in time. A timeout here is not
// fatal to the caller (spec.md §4.1: "timeout is not fatal").
func (w *Worker) WaitConnected(timeout time.Duration) bool {
	w.mu.Lock()
	if w.state == Connected {
		w.mu.Unlock()
		return true
	}
	ch := w.connectedCh
	w.mu.Unlock()

	select {
	case <-ch:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Send implements the sink-chain contract of spec.md §4.3.1: acquire the
// connection handle under the state lock, release the lock before I/O,
// send, and drop silently (benign success) if disconnected.
func (w *Worker) Send(data []byte) error {
	w.mu.Lock()
	conn := w.conn
	connected := w.state == Connected
	w.mu.Unlock()

	if !connected || conn == nil {
		return nil
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return &errs.TransportError{Op: "send", Err: err}
	}
	return nil
}

func (w *Worker) isRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// connectLoop is spec.md §4.3 step 1: while running and the reconnect
// policy permits, dial, run the read loop until it exits, then back off.
func (w *Worker) connectLoop() {
	defer w.wg.Done()

	for w.isRunning() {
		conn, _, err := w.dialer.Dial(w.uri, http.Header{})
		if err != nil {
			w.log.Warn("handshake failed: %v", err)
			if !w.backoffOrStop() {
				return
			}
			continue
		}

		w.onConnected(conn)
		w.readLoop(conn)
		w.onDisconnected(conn)

		if !w.isRunning() {
			return
		}
		if !w.backoffOrStop() {
			return
		}
	}
}

// onConnected is spec.md §4.3 step 2 on success: publish the handle,
// mark connected, signal waiters, and flush the receive queue (barge-in
// semantics on reconnect — stale audio must not be played).
func (w *Worker) onConnected(conn *websocket.Conn) {
	w.mu.Lock()
	w.conn = conn
	w.state = Connected
	ch := w.connectedCh
	w.connectedCh = make(chan struct{})
	w.mu.Unlock()

	close(ch)
	w.log.Info("connected")

	w.queue.Flush()
	if w.OnClear != nil {
		w.OnClear()
	}
}

// onDisconnected is spec.md §4.3 step 5: mark disconnected, release the
// handle.
func (w *Worker) onDisconnected(conn *websocket.Conn) {
	conn.Close()

	w.mu.Lock()
	if w.conn == conn {
		w.conn = nil
	}
	w.state = Disconnected
	w.mu.Unlock()

	w.log.Warn("disconnected")
}

// readLoop is spec.md §4.3 step 3: binary frames become AudioFrames and
// are enqueued; text frames are parsed as JSON control messages.
func (w *Worker) readLoop(conn *websocket.Conn) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			w.queue.Push(frames.NewAudioFrame(data))

		case websocket.TextMessage:
			w.handleControl(data)

		default:
			w.log.Warn("%v", &errs.ProtocolError{Reason: "unsupported websocket frame type"})
		}
	}
}

func (w *Worker) handleControl(data []byte) {
	var msg controlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		w.log.Warn("%v", &errs.ProtocolError{Reason: "malformed control JSON: " + err.Error()})
		return
	}

	if msg.Type != "clear" {
		w.log.Warn("%v", &errs.ProtocolError{Reason: "unknown control type: " + msg.Type})
		return
	}

	if w.OnClear != nil {
		w.OnClear()
	}
}

// backoffOrStop applies the reconnect policy of spec.md §4.6. The backoff
// wait is itself a suspension point (spec.md §5): it selects on stopCh so
// Stop() returns promptly instead of blocking the caller for up to the
// full backoff duration, matching the pattern pacer.sleepUntil uses for
// its own clock wait.
func (w *Worker) backoffOrStop() bool {
	backoff, retry := w.reconnect.NextBackoff()
	if !retry {
		w.log.Warn("reconnect policy exhausted, giving up permanently")
		return false
	}
	w.log.Info("retrying in %v (attempt %d)", backoff, w.reconnect.AttemptsMade())

	w.mu.Lock()
	stopCh := w.stopCh
	w.mu.Unlock()

	select {
	case <-stopCh:
		return false
	case <-time.After(backoff):
		return true
	}
}
