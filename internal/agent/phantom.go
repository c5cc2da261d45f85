package agent

import (
	"fmt"
	"os"
	"regexp"

	"github.com/titanous/json5"
)

// PhantomRule maps a spoken commitment pattern to the tool call the Agent
// Runtime expects to see invoked before the turn ends. A match with no
// corresponding tool invocation is a phantom action: the model told the
// caller it did something it never actually did.
type PhantomRule struct {
	Pattern      *regexp.Regexp
	ExpectedTool string
	Corrective   string
}

// mustRule panics on a bad pattern; only used for the package-level default
// table, which is a compile-time constant in all but syntax.
func mustRule(pattern, tool, corrective string) PhantomRule {
	return PhantomRule{Pattern: regexp.MustCompile(pattern), ExpectedTool: tool, Corrective: corrective}
}

// DefaultPhantomRules is the built-in commitment table; a persona's
// configuration may override it entirely (Open Question resolved in
// DESIGN.md: per-agent override, falling back to this table when empty).
var DefaultPhantomRules = []PhantomRule{
	mustRule(`(?i)let me (check|look up|pull up) your balance`, "agentcore_balance",
		"[SYSTEM: You said you would check the balance but did not call agentcore_balance. Call it now before responding further.]"),
	mustRule(`(?i)i('ll| will) (block|freeze) (your |the )?card`, "agentcore_block_card",
		"[SYSTEM: You said you would block the card but did not call agentcore_block_card. Call it now before responding further.]"),
	mustRule(`(?i)i('ve| have) (sent|processed) (the |your )?(transfer|payment)`, "agentcore_transfer_funds",
		"[SYSTEM: You said you processed a transfer but did not call agentcore_transfer_funds. Call it now before confirming anything to the caller.]"),
	mustRule(`(?i)let me (verify|confirm) (your|this) identity`, "perform_idv_check",
		"[SYSTEM: You said you would verify identity but did not call perform_idv_check. Call it now before responding further.]"),
}

// rawPhantomRule is the on-disk JSON shape for a persona's phantom-commitment
// override table.
type rawPhantomRule struct {
	Pattern      string `json:"pattern"`
	ExpectedTool string `json:"expectedTool"`
	Corrective   string `json:"corrective"`
}

// LoadPhantomRules reads a persona-specific commitment table from path. An
// empty path is not an error — callers fall back to DefaultPhantomRules.
func LoadPhantomRules(path string) ([]PhantomRule, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("agent: read phantom rules: %w", err)
	}
	var raw []rawPhantomRule
	if err := json5.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("agent: parse phantom rules: %w", err)
	}
	rules := make([]PhantomRule, 0, len(raw))
	for _, r := range raw {
		pattern, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("agent: invalid phantom rule pattern %q: %w", r.Pattern, err)
		}
		rules = append(rules, PhantomRule{Pattern: pattern, ExpectedTool: r.ExpectedTool, Corrective: r.Corrective})
	}
	return rules, nil
}

// turnTracker accumulates one assistant turn's spoken text and the tool
// names actually invoked during it, so checkTurnEnd can compare the two
// against the phantom rule table. Not safe for concurrent use — owned
// exclusively by the Runtime that constructs it.
type turnTracker struct {
	rules     []PhantomRule
	text      string
	invoked   map[string]bool
	corrected bool
}

func newTurnTracker(rules []PhantomRule) *turnTracker {
	if len(rules) == 0 {
		rules = DefaultPhantomRules
	}
	return &turnTracker{rules: rules, invoked: make(map[string]bool)}
}

func (t *turnTracker) onAssistantText(text string) {
	t.text += text
}

func (t *turnTracker) onToolInvoked(name string) {
	t.invoked[name] = true
}

// checkTurnEnd reports the first unmet commitment found, and whether a
// correction should be sent. At most one corrective turn is issued per
// assistant turn; once
// corrected, resetTurn clears the flag for the next turn.
func (t *turnTracker) checkTurnEnd() (rule PhantomRule, shouldCorrect bool) {
	if t.corrected {
		return PhantomRule{}, false
	}
	for _, r := range t.rules {
		if !r.Pattern.MatchString(t.text) {
			continue
		}
		if t.invoked[r.ExpectedTool] {
			continue
		}
		t.corrected = true
		return r, true
	}
	return PhantomRule{}, false
}

// resetTurn clears accumulated text, invoked tools, and the corrected flag
// ahead of the next assistant turn.
func (t *turnTracker) resetTurn() {
	t.text = ""
	t.invoked = make(map[string]bool)
	t.corrected = false
}
