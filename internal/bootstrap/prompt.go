// Package bootstrap assembles the system prompt an Agent Runtime hands to
// the Voice Bridge at session init, as an ordered sequence of named
// sections: context block, persona body, handoff tool instructions,
// workflow description. The section order is load-bearing — persona bodies
// textually reference "the section above", so swapping sections silently
// suppresses intent-driven behavior. AssemblePrompt is the single place
// that order is allowed to be decided.
package bootstrap

import "strings"

// ContextFile is one named, ordered fragment of the assembled system
// prompt.
type ContextFile struct {
	Name    string
	Content string
}

// Section names, in the exact required order. Exported so callers can
// name the ContextFile sections they pass; AssemblePrompt imposes the
// order itself.
const (
	SectionContext = "context"
	SectionPersona = "persona"
	SectionHandoff = "handoff"
	SectionWorkflow = "workflow"
)

// requiredOrder is the load-bearing section sequence. AssemblePrompt ignores
// any ContextFile whose Name isn't one of these and renders the rest in
// this order regardless of the order callers passed them in — the ordering
// invariant does not depend on caller discipline.
var requiredOrder = []string{SectionContext, SectionPersona, SectionHandoff, SectionWorkflow}

// AssemblePrompt concatenates the context, persona, handoff, and workflow
// sections (in that fixed order) into one system prompt string. Empty
// sections are omitted entirely rather than rendered as a blank heading, so
// an agent with no inherited memory doesn't prefix its persona with an
// empty "Context" block.
func AssemblePrompt(sections ...ContextFile) string {
	byName := make(map[string]string, len(sections))
	for _, s := range sections {
		byName[s.Name] = s.Content
	}

	var b strings.Builder
	first := true
	for _, name := range requiredOrder {
		content := strings.TrimSpace(byName[name])
		if content == "" {
			continue
		}
		if !first {
			b.WriteString("\n\n")
		}
		b.WriteString(content)
		first = false
	}
	return b.String()
}

// ContextSection renders the memory-derived context block: verified user,
// user intent, and handoff reason, when present. Returns "" when the
// session carries no inherited memory, so AssemblePrompt omits it.
func ContextSection(verifiedUserName, account, sortCode, userIntent, handoffReason, lastUserMessage string) ContextFile {
	var b strings.Builder
	b.WriteString("## Inherited session context\n")
	wrote := false
	if verifiedUserName != "" {
		b.WriteString("The caller is already verified as " + verifiedUserName + ".\n")
		wrote = true
	}
	if account != "" {
		b.WriteString("Known account number: " + account + ".\n")
		wrote = true
	}
	if sortCode != "" {
		b.WriteString("Known sort code: " + sortCode + ".\n")
		wrote = true
	}
	if userIntent != "" {
		b.WriteString("The caller's stated intent: " + userIntent + ".\n")
		wrote = true
	}
	if handoffReason != "" {
		b.WriteString("Reason for this handoff: " + handoffReason + ".\n")
		wrote = true
	}
	if lastUserMessage != "" {
		b.WriteString("Last thing the caller said: \"" + lastUserMessage + "\"\n")
		wrote = true
	}
	if !wrote {
		return ContextFile{Name: SectionContext}
	}
	return ContextFile{Name: SectionContext, Content: b.String()}
}

// HandoffSection renders the standard instruction block telling the model
// which transfer_to_* and return_to_triage tools it has available, given the
// tool names the catalog declared as handoff tools for this persona.
func HandoffSection(handoffToolNames []string) ContextFile {
	if len(handoffToolNames) == 0 {
		return ContextFile{Name: SectionHandoff}
	}
	var b strings.Builder
	b.WriteString("## Handing off\n")
	b.WriteString("You may transfer this conversation using one of these tools when the caller's need is outside your role: ")
	b.WriteString(strings.Join(handoffToolNames, ", "))
	b.WriteString(". Always give a reason.\n")
	return ContextFile{Name: SectionHandoff, Content: b.String()}
}

// PrimingMessage builds the short user-role text turn sent immediately
// after Voice Bridge start when the session inherited memory, since the
// model never re-reads the system prompt once the stream starts.
func PrimingMessage(summary string) string {
	return "[SYSTEM CONTEXT] " + summary + "\nAct on the user request immediately."
}
