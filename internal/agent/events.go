package agent

import (
	"log/slog"
	"time"

	"github.com/voicegw/voicegw/internal/audio"
	"github.com/voicegw/voicegw/internal/bus"
	"github.com/voicegw/voicegw/internal/protocol"
	"github.com/voicegw/voicegw/internal/sessions"
	"github.com/voicegw/voicegw/internal/tools"
	"github.com/voicegw/voicegw/internal/voicebridge"
)

// handleBridgeEvent is the Voice Bridge's OnEvent callback. The Bedrock
// backend calls it from its demux goroutine (one per session); TextBridge
// calls it synchronously from the goroutine that called Start, SendText or
// SendToolResult. Either way it is called from one goroutine at a time, so
// the turn tracker it updates carries no lock of its own.
func (r *Runtime) handleBridgeEvent(ev voicebridge.Event) {
	sess := r.currentSession()
	if sess == nil {
		return
	}

	switch ev.Kind {
	case voicebridge.EventAudio:
		sess.IncAudioOut()
		if err := r.transport.SendAudio(audio.PadEven(ev.Audio)); err != nil {
			slog.Warn("agent: send audio to client failed", "sessionId", sess.ID(), "error", err)
		}

	case voicebridge.EventTranscript:
		if ev.Role == "user" && isSystemMarker(ev.Text) {
			return
		}
		if ev.Final {
			sess.AppendTranscript(ev.Role, ev.Text, true)
		}
		if ev.Role == "assistant" {
			r.turn.onAssistantText(ev.Text)
		}
		r.sendControl(protocol.TranscriptFrame{
			Type: protocol.TypeTranscript, Role: ev.Role, Text: ev.Text, IsFinal: ev.Final,
			Timestamp: time.Now().UnixMilli(),
		})

	case voicebridge.EventToolUse:
		r.handleToolUse(sess, ev)

	case voicebridge.EventMetadata:
		r.sendControl(protocol.MetadataFrame{Type: protocol.TypeMetadata, Payload: ev.Metadata})

	case voicebridge.EventInterruption:
		r.sendControl(protocol.InterruptionFrame{Type: protocol.TypeInterruption, Payload: ev.Metadata})

	case voicebridge.EventUsage:
		sess.AddUsage(ev.InputTokens, ev.OutputTokens, ev.TotalTokens)
		r.sendControl(protocol.UsageFrame{
			Type: protocol.TypeUsage, InputTokens: ev.InputTokens, OutputTokens: ev.OutputTokens, TotalTokens: ev.TotalTokens,
		})

	case voicebridge.EventInteractionTurnEnd:
		r.checkPhantomActions()
		r.sendControl(protocol.LifecycleFrame{Type: protocol.TypeInteractionTurnEnd})

	case voicebridge.EventContentStart:
		r.sendControl(protocol.LifecycleFrame{Type: protocol.TypeContentStart})

	case voicebridge.EventContentEnd:
		r.sendControl(protocol.LifecycleFrame{Type: protocol.TypeContentEnd})

	case voicebridge.EventSessionStart:
		r.sendControl(protocol.LifecycleFrame{Type: protocol.TypeSessionStart})

	case voicebridge.EventError:
		r.sendControl(protocol.ErrorFrame{Type: protocol.TypeError, Message: ev.Message})
		if ev.Fatal {
			r.End()
		}
	}
}

func (r *Runtime) sendControl(frame any) {
	if err := r.transport.SendControl(frame); err != nil {
		slog.Warn("agent: send control frame failed", "error", err)
	}
}

// checkPhantomActions runs the phantom-action watcher at the end of the
// assistant's turn and, if a spoken commitment went unmet, sends exactly one
// corrective text turn back into the model before the next real user input.
func (r *Runtime) checkPhantomActions() {
	rule, shouldCorrect := r.turn.checkTurnEnd()
	r.turn.resetTurn()
	if !shouldCorrect {
		return
	}
	bridge := r.currentBridge()
	if bridge == nil {
		return
	}
	sess := r.currentSession()
	r.publish(bus.EventPhantomDetected, sess.ID(), rule.ExpectedTool)
	if err := bridge.SendText(rule.Corrective); err != nil {
		slog.Warn("agent: phantom correction failed", "sessionId", sess.ID(), "error", err)
	}
}

// handleToolUse runs the classify/validate/dispatch pipeline for one
// tool-use event, forwards both the invocation and its result to the
// client, surfaces identity updates and handoff requests to the Gateway,
// and returns the result to the Voice Bridge so the model can continue the
// turn.
func (r *Runtime) handleToolUse(sess *sessions.Session, ev voicebridge.Event) {
	r.turn.onToolInvoked(ev.ToolName)
	r.sendControl(protocol.ToolUseFrame{
		Type: protocol.TypeToolUse, ToolName: ev.ToolName, ToolUseID: ev.ToolUseID, Input: ev.Input,
	})
	r.publish(bus.EventToolInvoked, sess.ID(), ev.ToolName)

	r.setState(StateWaitingTool)
	graphState := map[string]any{"currentNodeId": r.cfg.Engine.Current().ID}
	view := sess.View(graphState)
	ctx := sess.Context()
	result, identity := r.cfg.Executor.Execute(ctx, view, ev.ToolName, ev.Input)
	r.setState(StateStreaming)

	if identity != nil {
		sess.SetVerifiedUser(identity.Verified)
		r.sendControl(protocol.UpdateMemoryFrame{Type: protocol.TypeUpdateMemory, Memory: sess.MemoryPatch()})
	}

	if handoff, ok := result.Result.(tools.HandoffRequest); ok && result.Success {
		r.publish(bus.EventHandoffRequested, sess.ID(), handoff.TargetAgentID)
		r.sendControl(protocol.HandoffRequestFrame{
			Type: protocol.TypeHandoffRequest, TargetAgentID: handoff.TargetAgentID,
			Context: handoff.Context, GraphState: handoff.GraphState,
		})
	}

	r.sendControl(protocol.ToolResultFrame{
		Type: protocol.TypeToolResult, ToolName: ev.ToolName, ToolUseID: ev.ToolUseID,
		Success: result.Success, Result: result.Result, Error: result.Error,
	})
	r.publish(bus.EventToolResult, sess.ID(), result.Success)

	var payload any = result.Result
	if !result.Success {
		payload = result.Error
	}
	bridge := r.currentBridge()
	if bridge == nil {
		return
	}
	if err := bridge.SendToolResult(ev.ToolUseID, payload, !result.Success); err != nil {
		slog.Warn("agent: send tool result to bridge failed", "sessionId", sess.ID(), "error", err)
	}
}
