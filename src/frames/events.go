package frames

import "github.com/square-key-labs/wstransceiver/src/caps"

// StreamStartFrame opens a source activation with a stable per-activation
// identifier (spec.md §4.5 Phase A).
type StreamStartFrame struct {
	*BaseFrame
	StreamID string
}

func NewStreamStartFrame(streamID string) *StreamStartFrame {
	f := &StreamStartFrame{BaseFrame: NewBaseFrame("StreamStart"), StreamID: streamID}
	f.SetMetadata("stream_id", streamID)
	return f
}

// CapsFrame mirrors the negotiated AudioParameters onto the source port
// (spec.md §4.2: "the element is a passthrough over the transport").
type CapsFrame struct {
	*BaseFrame
	Params caps.AudioParameters
}

func NewCapsFrame(params caps.AudioParameters) *CapsFrame {
	return &CapsFrame{BaseFrame: NewBaseFrame("Caps"), Params: params}
}

// SegmentFrame establishes a new running-time reference for downstream
// timestamps; re-emitted after every flush (spec.md §4.5 Phase E).
type SegmentFrame struct {
	*BaseFrame
}

func NewSegmentFrame() *SegmentFrame {
	return &SegmentFrame{BaseFrame: NewBaseFrame("Segment")}
}

// FlushStartFrame and FlushStopFrame bracket a barge-in flush
// (spec.md §4.5.1). Between the two, no frame from before the flush may
// still be in flight.
type FlushStartFrame struct {
	*BaseFrame
}

func NewFlushStartFrame() *FlushStartFrame {
	return &FlushStartFrame{BaseFrame: NewBaseFrame("FlushStart")}
}

type FlushStopFrame struct {
	*BaseFrame
}

func NewFlushStopFrame() *FlushStopFrame {
	return &FlushStopFrame{BaseFrame: NewBaseFrame("FlushStop")}
}

// EndOfStreamFrame is emitted on the source at most once per activation,
// on permanent disconnect (spec.md §3 LifecycleFlags.eos_sent, §8 P2).
type EndOfStreamFrame struct {
	*BaseFrame
}

func NewEndOfStreamFrame() *EndOfStreamFrame {
	return &EndOfStreamFrame{BaseFrame: NewBaseFrame("EndOfStream")}
}
