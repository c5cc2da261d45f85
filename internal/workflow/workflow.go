// Package workflow implements the Workflow Graph Engine: a directed graph
// of conversation stages that tracks the current node, validates
// transitions, and renders a flat textual form for injection into the
// voice-model system prompt.
package workflow

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/titanous/json5"
)

// NodeType is the closed set of workflow node kinds.
type NodeType string

const (
	NodeStart    NodeType = "start"
	NodeMessage  NodeType = "message"
	NodeDecision NodeType = "decision"
	NodeTool     NodeType = "tool"
	NodeEnd      NodeType = "end"
	NodeProcess  NodeType = "process"
)

// Node is one stage in a workflow graph.
type Node struct {
	ID    string   `json:"id"`
	Type  NodeType `json:"type"`
	Label string   `json:"label"`

	Message    string `json:"message,omitempty"`
	ToolName   string `json:"toolName,omitempty"`
	Outcome    string `json:"outcome,omitempty"`
	WorkflowID string `json:"workflowId,omitempty"`
}

// Edge is one directed transition between two nodes.
type Edge struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Label string `json:"label,omitempty"`
}

// Metadata carries free-form workflow-authoring fields not interpreted by
// the engine itself, only passed through to the persona prompt assembly.
type Metadata struct {
	Persona  string `json:"persona,omitempty"`
	Language string `json:"language,omitempty"`
}

// Definition is one workflow file's parsed contents.
type Definition struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Nodes    []Node          `json:"nodes"`
	Edges    []Edge          `json:"edges"`
	VoiceID  string          `json:"voiceId,omitempty"`
	Metadata Metadata        `json:"metadata,omitempty"`
	TestCfg  json.RawMessage `json:"testConfig,omitempty"`
}

var (
	// ErrNoStartNode is returned by Load when a definition has zero or more
	// than one node typed "start".
	ErrNoStartNode = errors.New("workflow: definition must have exactly one start node")
	// ErrUnknownNode is returned by Transition/Load for a node ID that
	// doesn't appear in the definition.
	ErrUnknownNode = errors.New("workflow: unknown node id")
)

// Load reads and validates a workflow definition file. Parsed as JSON5 so
// authors can comment their graphs.
func Load(path string) (*Definition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("workflow: read %s: %w", path, err)
	}
	var def Definition
	if err := json5.Unmarshal(raw, &def); err != nil {
		return nil, fmt.Errorf("workflow: parse %s: %w", path, err)
	}
	if err := validate(&def); err != nil {
		return nil, fmt.Errorf("workflow: %s: %w", path, err)
	}
	return &def, nil
}

func validate(def *Definition) error {
	starts := 0
	ids := make(map[string]bool, len(def.Nodes))
	for _, n := range def.Nodes {
		ids[n.ID] = true
		if n.Type == NodeStart {
			starts++
		}
	}
	if starts != 1 {
		return ErrNoStartNode
	}
	for _, e := range def.Edges {
		if !ids[e.From] {
			return fmt.Errorf("%w: edge references unknown from=%q", ErrUnknownNode, e.From)
		}
		if !ids[e.To] {
			return fmt.Errorf("%w: edge references unknown to=%q", ErrUnknownNode, e.To)
		}
	}
	return nil
}

// startNode returns the definition's unique start node. Load already
// validated exactly one exists.
func (def *Definition) startNode() Node {
	for _, n := range def.Nodes {
		if n.Type == NodeStart {
			return n
		}
	}
	return Node{}
}

func (def *Definition) node(id string) (Node, bool) {
	for _, n := range def.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

func (def *Definition) hasEdge(from, to string) bool {
	for _, e := range def.Edges {
		if e.From == from && e.To == to {
			return true
		}
	}
	return false
}

// TransitionResult reports the outcome of attempting to move the engine's
// cursor to a new node.
type TransitionResult struct {
	Previous Node
	Current  Node
	Valid    bool
}

// Engine interprets one Definition, tracking which node it is currently at.
// Not safe for concurrent use by multiple goroutines without external
// synchronization. The agent process builds one Engine and shares it across
// all of its sessions; the Agent Runtime only reads it (Current, Describe)
// and never calls Transition.
type Engine struct {
	def     *Definition
	current Node
}

// New constructs an Engine positioned at the definition's start node.
func New(def *Definition) *Engine {
	return &Engine{def: def, current: def.startNode()}
}

// Current returns the node the engine is positioned at.
func (e *Engine) Current() Node { return e.current }

// Transition moves the engine to toNodeID if an edge from the current node
// to it exists (initialization to the start node is unconditional). Invalid
// transitions are reported but still recorded: the caller decides whether
// to enforce validity, so an off-script conversation never raises.
func (e *Engine) Transition(toNodeID string) (TransitionResult, error) {
	target, ok := e.def.node(toNodeID)
	if !ok {
		return TransitionResult{}, fmt.Errorf("%w: %s", ErrUnknownNode, toNodeID)
	}

	previous := e.current
	valid := e.def.hasEdge(previous.ID, toNodeID)
	e.current = target

	return TransitionResult{Previous: previous, Current: target, Valid: valid}, nil
}

// Describe renders a flat, numbered textual form of the workflow for
// injection into the system prompt's workflow section, in node-list order
// (not graph-traversal order — authors list nodes in the intended
// conversational sequence).
func (e *Engine) Describe() string {
	var b strings.Builder
	b.WriteString("## Workflow: " + e.def.Name + "\n")
	for i, n := range e.def.Nodes {
		fmt.Fprintf(&b, "%d. [%s] %s", i+1, n.Type, n.Label)
		switch {
		case n.Message != "":
			fmt.Fprintf(&b, " — \"%s\"", n.Message)
		case n.ToolName != "":
			fmt.Fprintf(&b, " — call %s", n.ToolName)
		case n.Outcome != "":
			fmt.Fprintf(&b, " — outcome: %s", n.Outcome)
		}
		if n.ID == e.current.ID {
			b.WriteString(" (current)")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Definition returns the underlying definition, e.g. for VoiceID/Metadata
// lookups by the Agent Runtime at session init.
func (e *Engine) Definition() *Definition { return e.def }
