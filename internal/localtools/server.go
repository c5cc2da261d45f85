// Package localtools implements the local tool HTTP service: the banking
// demo backend (identity verification, balances, transactions, disputes,
// merchant alias resolution) plus knowledge-base search, dispatched to by
// the agents' tool executors over POST /tools/execute.
package localtools

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Request is the body an agent's tool executor POSTs to /tools/execute.
type Request struct {
	Tool  string         `json:"tool"`
	Input map[string]any `json:"input"`
}

// Response is the body returned from /tools/execute.
type Response struct {
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Server dispatches tool execution requests to the registered Tool set.
type Server struct {
	tools map[string]Tool
}

// NewServer builds a Server from a configured set of tools.
func NewServer(tools ...Tool) *Server {
	s := &Server{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		s.tools[t.Name()] = t
	}
	return s
}

// DefaultTools returns the full banking demo tool set over data.
func DefaultTools(data *Dataset) []Tool {
	return []Tool{
		NewIDVTool(data),
		NewBalanceTool(data),
		NewTransactionsTool(data),
		NewDisputeTool(data),
		NewMerchantAliasTool(data),
		NewKnowledgeBaseTool(data),
	}
}

// Handler returns the http.Handler serving POST /tools/execute.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/tools/execute", s.handleExecute)
	return mux
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Error: "invalid request body"})
		return
	}

	tool, ok := s.tools[req.Tool]
	if !ok {
		writeJSON(w, http.StatusNotFound, Response{Error: "unknown tool: " + req.Tool})
		return
	}

	result := tool.Execute(r.Context(), req.Input)
	if result.IsError() {
		writeJSON(w, http.StatusOK, Response{Error: result.ErrText})
		return
	}
	writeJSON(w, http.StatusOK, Response{Result: result.Value})
}

func writeJSON(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("localtools: encode response failed", "err", err)
	}
}
