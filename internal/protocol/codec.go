package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/voicegw/voicegw/internal/audio"
)

// ErrUnknownFrameType is returned by Decode when a JSON control frame carries
// a `type` value outside the closed set declared in this package.
var ErrUnknownFrameType = errors.New("protocol: unknown frame type")

// PeekType decodes only the `type` discriminator from a raw JSON control
// frame, without committing to a concrete payload struct.
func PeekType(raw []byte) (FrameType, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", fmt.Errorf("protocol: decode envelope: %w", err)
	}
	return env.Type, nil
}

// Decode unmarshals a raw JSON control frame into its concrete payload type,
// rejecting any `type` value not in the closed set below. Callers type-switch
// on the returned value.
func Decode(raw []byte) (any, error) {
	t, err := PeekType(raw)
	if err != nil {
		return nil, err
	}

	var dst any
	switch t {
	case TypeSelectWorkflow:
		dst = &SelectWorkflowFrame{}
	case TypeSessionInit:
		dst = &SessionInitFrame{}
	case TypeUserInput:
		dst = &UserInputFrame{}
	case TypeEndOfSpeech:
		dst = &EndOfSpeechFrame{}
	case TypePing:
		dst = &PingFrame{}
	case TypeConnected:
		dst = &ConnectedFrame{}
	case TypeTranscript:
		dst = &TranscriptFrame{}
	case TypeToolUse:
		dst = &ToolUseFrame{}
	case TypeToolResult:
		dst = &ToolResultFrame{}
	case TypeHandoffRequest:
		dst = &HandoffRequestFrame{}
	case TypeHandoffEvent:
		dst = &HandoffEventFrame{}
	case TypeMetadata:
		dst = &MetadataFrame{}
	case TypeInterruption:
		dst = &InterruptionFrame{}
	case TypeUsage:
		dst = &UsageFrame{}
	case TypeError:
		dst = &ErrorFrame{}
	case TypeSessionStart, TypeContentStart, TypeContentEnd, TypeInteractionTurnEnd:
		dst = &LifecycleFrame{}
	case TypeUpdateMemory:
		dst = &UpdateMemoryFrame{}
	case TypeEndSession:
		dst = &EndSessionFrame{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFrameType, t)
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		return nil, fmt.Errorf("protocol: decode %s frame: %w", t, err)
	}
	return dst, nil
}

// Encode marshals any control-frame payload to JSON. Callers pass one of the
// typed frame structs declared in types.go.
func Encode(frame any) ([]byte, error) {
	raw, err := json.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode frame: %w", err)
	}
	return raw, nil
}

// EncodeAudioFrame pads pcm to an even byte length before it is handed to the
// websocket connection as a binary frame. Called on every outbound audio hop.
func EncodeAudioFrame(pcm []byte) []byte {
	return audio.PadEven(pcm)
}

// DecodeAudioFrame pads an inbound binary frame to even length. Returns the
// even-length PCM16 payload ready for the next hop.
func DecodeAudioFrame(raw []byte) []byte {
	return audio.PadEven(raw)
}
