// Package audio implements the PCM16 frame invariants shared by every
// binary WebSocket frame that crosses the gateway.
package audio

// PadEven appends a single trailing zero byte to odd-length PCM16 spans so
// every frame handed to a downstream 16-bit sample reader has even length.
// Even-length input is returned unchanged (no copy).
//
// Called at both ends of every audio hop (client→gateway, gateway→agent,
// agent→voice model, and the reverse) rather than just once at the edge,
// since a single split frame anywhere in the chain otherwise desyncs the
// consumer's 16-bit sample reader.
func PadEven(pcm []byte) []byte {
	if len(pcm)%2 == 0 {
		return pcm
	}
	padded := make([]byte, len(pcm)+1)
	copy(padded, pcm)
	return padded
}

// IsEven reports whether a PCM16 span already satisfies the even-length
// invariant, for callers that want to assert rather than silently pad.
func IsEven(pcm []byte) bool {
	return len(pcm)%2 == 0
}

// SampleCount returns the number of 16-bit little-endian samples in an
// already-even PCM16 span.
func SampleCount(pcm []byte) int {
	return len(pcm) / 2
}

// MaxRecommendedFrameSamples is the recommended upper bound on samples per
// binary frame, keeping per-frame WS payloads small enough that backpressure
// and interruption handling stay responsive.
const MaxRecommendedFrameSamples = 8192

// SampleRateHz is the fixed input/output sample rate for the fabric.
const SampleRateHz = 16000
