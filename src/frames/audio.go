package frames

import "time"

// AudioFrame is an opaque byte payload carrying audio samples. It is
// created by the websocket worker from an inbound binary message, owned
// exclusively by the receive queue until dequeued, and owned by the pacer
// until pushed downstream. Nothing mutates it after creation except the
// pacer's single timestamp assignment at dequeue (spec.md §3).
type AudioFrame struct {
	*BaseFrame

	Data []byte

	// Timestamp and Duration are zero until the pacer assigns them at
	// dequeue. Timestamp is the pacer's base time plus the offset
	// accumulated since the current segment began; Duration is the
	// negotiated frame_duration.
	Timestamp time.Duration
	Duration  time.Duration
	stamped   bool
}

// NewAudioFrame wraps a raw payload exactly as received from the remote
// peer; the element never reframes or recombines it (spec.md §1 Non-goals).
func NewAudioFrame(data []byte) *AudioFrame {
	return &AudioFrame{
		BaseFrame: NewBaseFrame("AudioFrame"),
		Data:      data,
	}
}

// Stamp assigns the presentation timestamp and duration. It may be called
// exactly once; later calls are no-ops so a frame already pushed downstream
// can never be silently re-stamped.
func (f *AudioFrame) Stamp(timestamp, duration time.Duration) {
	if f.stamped {
		return
	}
	f.Timestamp = timestamp
	f.Duration = duration
	f.stamped = true
}
