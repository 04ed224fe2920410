// Package caps resolves the negotiated audio parameters for a transceiver
// activation: format, sample rate, channels, bytes-per-sample and the frame
// size they imply. It is the element's configuration & caps adapter
// (spec.md §4.2) — a passthrough over the transport, never a transcoder.
package caps

import "github.com/square-key-labs/wstransceiver/src/errs"

// Format tags the negotiated sample encoding. The element treats the
// payload as opaque; the tag only drives the bytes-per-sample derivation.
type Format string

const (
	FormatS16LE  Format = "S16LE"
	FormatS16BE  Format = "S16BE"
	FormatS32LE  Format = "S32LE"
	FormatS32BE  Format = "S32BE"
	FormatF32LE  Format = "F32LE"
	FormatF32BE  Format = "F32BE"
	FormatMuLaw  Format = "MULAW"
	FormatALaw   Format = "ALAW"
	FormatUnkown Format = ""
)

// AudioParameters is frozen after negotiation: once caps_ready is set these
// values are read-only until the next lifecycle reset (spec.md §3).
type AudioParameters struct {
	Format          Format
	SampleRate      int
	Channels        int
	BytesPerSample  int
	FrameDurationMs int
	FrameSizeBytes  int
}

// bytesPerSample derives the sample width for a format tag. Raw PCM widths
// come from the format name; mu-law/A-law are always 1 byte; an unknown
// format is treated as 1 byte with a warning left to the caller.
func bytesPerSample(format Format) (int, bool) {
	switch format {
	case FormatS16LE, FormatS16BE:
		return 2, true
	case FormatS32LE, FormatS32BE, FormatF32LE, FormatF32BE:
		return 4, true
	case FormatMuLaw, FormatALaw:
		return 1, true
	default:
		return 1, false
	}
}

// Negotiate validates the rate/channel pair required by spec.md §3 and
// derives the remaining AudioParameters fields. A missing rate or channel
// count is a CapsError (fatal for the current stream, not the process).
func Negotiate(format Format, sampleRate, channels, frameDurationMs int) (AudioParameters, error) {
	if sampleRate <= 0 || channels <= 0 {
		return AudioParameters{}, &errs.CapsError{Reason: "missing sample rate or channel count"}
	}
	if sampleRate < 8000 || sampleRate > 48000 {
		return AudioParameters{}, &errs.CapsError{Reason: "sample rate out of range [8000,48000]"}
	}
	if channels != 1 && channels != 2 {
		return AudioParameters{}, &errs.CapsError{Reason: "channels must be 1 or 2"}
	}
	if frameDurationMs < 10 || frameDurationMs > 1000 {
		return AudioParameters{}, &errs.CapsError{Reason: "frame duration out of range [10,1000]ms"}
	}

	bps, known := bytesPerSample(format)
	params := AudioParameters{
		Format:          format,
		SampleRate:      sampleRate,
		Channels:        channels,
		BytesPerSample:  bps,
		FrameDurationMs: frameDurationMs,
	}
	params.FrameSizeBytes = frameSizeBytes(sampleRate, bps, channels, frameDurationMs)
	if !known {
		// Unknown format: 1 byte/sample with a warning is the caller's
		// responsibility to log; Negotiate only reports whether it guessed.
		params.Format = format
	}
	return params, nil
}

// KnownFormat reports whether Negotiate recognized the format tag, so
// callers can warn exactly as spec.md §4.2 requires ("unknown -> 1 (with
// warning)").
func KnownFormat(format Format) bool {
	_, known := bytesPerSample(format)
	return known
}

func frameSizeBytes(sampleRate, bytesPerSample, channels, frameDurationMs int) int {
	return sampleRate * bytesPerSample * channels * frameDurationMs / 1000
}
