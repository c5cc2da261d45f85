package gateway

import (
	"context"
	"log/slog"
	"regexp"
	"time"

	"github.com/voicegw/voicegw/internal/bus"
	"github.com/voicegw/voicegw/internal/protocol"
)

// Partial-credential patterns scanned out of free-text handoff context
// fields (reason, lastUserMessage, graphState variables): a caller reciting
// digits mid-sentence before identity verification completes should arrive
// at the successor agent with whichever credential is already known in
// Memory, so the successor prompts only for what's missing. The matched
// digits are then redacted from the reason, lastUserMessage and summary
// text so they don't also travel in cleartext there; graphState variables
// are scanned but not redacted.
var (
	accountNumberRe = regexp.MustCompile(`\b\d{8}\b`)
	sortCodeRe      = regexp.MustCompile(`\b\d{2}-\d{2}-\d{2}\b|\b\d{6}\b`)
)

const redactedPlaceholder = "[redacted]"

func redactFreeText(s string) string {
	s = accountNumberRe.ReplaceAllString(s, redactedPlaceholder)
	s = sortCodeRe.ReplaceAllString(s, redactedPlaceholder)
	return s
}

// extractCredentials scans the free-form handoff fields for
// account-number-like and sort-code-like strings, returning whichever are
// present. The word boundaries in both patterns keep a 6-digit span inside
// an 8-digit account number from matching as a sort code.
func extractCredentials(texts ...string) (account, sortCode string) {
	for _, t := range texts {
		if t == "" {
			continue
		}
		if account == "" {
			account = accountNumberRe.FindString(t)
		}
		if sortCode == "" {
			sortCode = sortCodeRe.FindString(t)
		}
	}
	return account, sortCode
}

// freeTextFields collects the handoff context strings worth scanning for
// partial credentials: reason, lastUserMessage, summary, and any string
// values under graphState.variables.
func freeTextFields(ctx map[string]any, graphState map[string]any) []string {
	var out []string
	for _, k := range []string{"reason", "lastUserMessage", "summary"} {
		if s, ok := ctx[k].(string); ok {
			out = append(out, s)
		}
	}
	if vars, ok := graphState["variables"].(map[string]any); ok {
		for _, v := range vars {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
	}
	return out
}

// sanitizeHandoffContext redacts credential-shaped substrings out of the
// free-text fields of a handoff context while leaving the canonical,
// already-verified account/sortCode/userName fields untouched.
func sanitizeHandoffContext(ctx map[string]any) map[string]any {
	if ctx == nil {
		return nil
	}
	out := make(map[string]any, len(ctx))
	for k, v := range ctx {
		switch k {
		case "reason", "lastUserMessage", "summary":
			if s, ok := v.(string); ok {
				out[k] = redactFreeText(s)
				continue
			}
		}
		out[k] = v
	}
	return out
}

// performHandoff executes the full handoff protocol for one handoff_request
// frame surfaced by the current agent: validate the target, persist the
// enriched memory patch (degrading to an in-flight handoff when the memory
// store is unavailable), close the outgoing agent link, and dial the new
// one.
func (s *Server) performHandoff(sess *clientSession, req protocol.HandoffRequestFrame) {
	target, ok := s.registry.ResolveAlias(req.TargetAgentID)
	if !ok || !s.registry.IsAvailable(target.ID) {
		sess.sendControlToClient(protocol.ErrorFrame{
			Type: protocol.TypeError, Message: "handoff target unavailable: " + req.TargetAgentID,
		})
		s.bus.Publish(bus.Event{Name: bus.EventHandoffFailed, SessionID: sess.id, Payload: req.TargetAgentID})
		return
	}

	ctx := context.Background()

	account, sortCode := extractCredentials(freeTextFields(req.Context, req.GraphState)...)
	cleanContext := sanitizeHandoffContext(req.Context)

	patch := map[string]any{}
	if existing, err := s.memStore.Get(ctx, sess.id); err == nil {
		for k, v := range existing.Data {
			patch[k] = v
		}
	}
	for k, v := range cleanContext {
		patch[k] = v
	}
	// Partial-credential carry-forward: keep whichever credential the caller
	// already recited, even if only one, so the successor prompts only for
	// what's missing. Canonical fields already present (a completed IDV)
	// win over a free-text scan.
	if account != "" {
		if _, ok := patch["account"].(string); !ok || patch["account"] == "" {
			patch["account"] = account
		}
	}
	if sortCode != "" {
		if _, ok := patch["sortCode"].(string); !ok || patch["sortCode"] == "" {
			patch["sortCode"] = sortCode
		}
	}
	if req.GraphState != nil {
		patch["graphState"] = req.GraphState
	}

	// Memory is written before the successor's session_init is composed, so
	// a successor that reads Memory directly and one that trusts the init
	// payload see the same state.
	memoryForInit := patch
	if err := s.memStore.Put(ctx, sess.id, patch, s.cfg.MemoryTTL); err != nil {
		s.bus.Publish(bus.Event{Name: bus.EventMemoryDegraded, SessionID: sess.id, Payload: err.Error()})
	}

	// Close the outgoing agent's leg before the successor binds: a session
	// is held by at most one Agent Runtime at any instant.
	from := sess.currentAgent()
	fromID := ""
	if from != nil {
		fromID = from.agentID
		if err := from.sendControl(protocol.EndSessionFrame{Type: protocol.TypeEndSession, SessionID: sess.id}); err != nil {
			slog.Warn("gateway: end_session to outgoing agent failed", "sessionId", sess.id, "error", err)
		}
		sess.setAgent(nil)
		time.AfterFunc(s.cfg.DrainTimeout, from.close)
	}

	if err := s.connectToAgent(sess, target, memoryForInit); err != nil {
		sess.sendControlToClient(protocol.ErrorFrame{
			Type: protocol.TypeError, Message: "handoff failed: could not reach " + target.ID,
		})
		s.bus.Publish(bus.Event{Name: bus.EventHandoffFailed, SessionID: sess.id, Payload: target.ID})
		return
	}

	sess.sendControlToClient(protocol.HandoffEventFrame{Type: protocol.TypeHandoffEvent, From: fromID, To: target.ID})
	s.bus.Publish(bus.Event{Name: bus.EventHandoffCompleted, SessionID: sess.id, Payload: target.ID})
}
