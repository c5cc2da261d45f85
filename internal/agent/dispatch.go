package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/voicegw/voicegw/internal/protocol"
)

// errSessionEnded signals the read pump that the gateway asked for a clean
// end_session; the connection is done, not broken.
var errSessionEnded = errors.New("agent: session ended by gateway")

// dispatchControl decodes one JSON control frame from the gateway-facing
// connection and routes it to the Runtime method that handles it. Frame
// types the Runtime doesn't expect on this side (anything
// gateway→client-only) are logged and dropped rather than erroring the
// whole connection.
func (t *connTransport) dispatchControl(ctx context.Context, r *Runtime, raw []byte) error {
	var env protocol.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("agent: decode envelope: %w", err)
	}

	switch env.Type {
	case protocol.TypeSessionInit:
		var f protocol.SessionInitFrame
		if err := json.Unmarshal(raw, &f); err != nil {
			return fmt.Errorf("agent: decode session_init: %w", err)
		}
		return r.Init(ctx, f.SessionID, f.Memory)

	case protocol.TypeUserInput:
		var f protocol.UserInputFrame
		if err := json.Unmarshal(raw, &f); err != nil {
			return fmt.Errorf("agent: decode user_input: %w", err)
		}
		return r.HandleUserText(f.Text)

	case protocol.TypeEndOfSpeech:
		return r.HandleEndOfSpeech()

	case protocol.TypeEndSession:
		r.End()
		return errSessionEnded

	case protocol.TypePing:
		return nil

	default:
		return fmt.Errorf("agent: unexpected frame type %q", env.Type)
	}
}
