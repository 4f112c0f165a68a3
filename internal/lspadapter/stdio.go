package lspadapter

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/wdl-platform/corewdl/internal/logging"
)

// request is one LSP JSON-RPC request, grounded on teacher
// internal/mangle/lsp.go's LSPRequest/LSPResponse wire shapes.
type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type response struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *rpcError   `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Server serves the LSP protocol over an arbitrary reader/writer pair
// (stdin/stdout in production), the same Content-Length framing the
// teacher's ServeStdio implements.
type Server struct {
	adapter *Adapter
}

// NewServer wraps adapter as a stdio-framed LSP server.
func NewServer(adapter *Adapter) *Server {
	return &Server{adapter: adapter}
}

// Serve reads Content-Length-framed JSON-RPC requests from r and writes
// responses to w until ctx is cancelled or r reaches EOF.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	reader := bufio.NewReader(r)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		header, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}

		const prefix = "Content-Length: "
		if !strings.HasPrefix(header, prefix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(header, prefix)))
		if err != nil {
			continue
		}
		if _, err := reader.ReadString('\n'); err != nil {
			return err
		}

		body := make([]byte, n)
		if _, err := io.ReadFull(reader, body); err != nil {
			continue
		}

		var req request
		if err := json.Unmarshal(body, &req); err != nil {
			logging.Get(logging.CategoryLSP).Warn("malformed request: %v", err)
			continue
		}

		resp := s.handle(ctx, req)
		if resp == nil {
			continue
		}
		payload, err := json.Marshal(resp)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "Content-Length: %d\r\n\r\n%s", len(payload), payload)
	}
}

func (s *Server) handle(ctx context.Context, req request) *response {
	switch req.Method {
	case "initialize":
		return &response{JSONRPC: "2.0", ID: req.ID, Result: map[string]interface{}{
			"capabilities": map[string]interface{}{
				"textDocumentSync":       1,
				"hoverProvider":          true,
				"documentSymbolProvider": true,
				"diagnosticProvider":     map[string]interface{}{"interFileDependencies": true},
			},
		}}

	case "textDocument/didOpen":
		var p struct {
			TextDocument struct {
				URI  string `json:"uri"`
				Text string `json:"text"`
			} `json:"textDocument"`
		}
		if err := json.Unmarshal(req.Params, &p); err == nil {
			if err := s.adapter.DidOpen(ctx, p.TextDocument.URI, p.TextDocument.Text); err != nil {
				logging.Get(logging.CategoryLSP).Error("didOpen %s: %v", p.TextDocument.URI, err)
			}
		}
		return nil

	case "textDocument/didChange":
		var p struct {
			TextDocument struct {
				URI string `json:"uri"`
			} `json:"textDocument"`
			ContentChanges []struct {
				Text string `json:"text"`
			} `json:"contentChanges"`
		}
		if err := json.Unmarshal(req.Params, &p); err == nil && len(p.ContentChanges) > 0 {
			if err := s.adapter.DidChange(ctx, p.TextDocument.URI, p.ContentChanges[0].Text); err != nil {
				logging.Get(logging.CategoryLSP).Error("didChange %s: %v", p.TextDocument.URI, err)
			}
		}
		return nil

	case "textDocument/didClose":
		var p struct {
			TextDocument struct {
				URI string `json:"uri"`
			} `json:"textDocument"`
		}
		if err := json.Unmarshal(req.Params, &p); err == nil {
			if err := s.adapter.DidClose(ctx, p.TextDocument.URI); err != nil {
				logging.Get(logging.CategoryLSP).Error("didClose %s: %v", p.TextDocument.URI, err)
			}
		}
		return nil

	case "textDocument/diagnostic":
		var p struct {
			TextDocument struct {
				URI string `json:"uri"`
			} `json:"textDocument"`
		}
		json.Unmarshal(req.Params, &p)
		diags, err := s.adapter.Diagnostics(ctx, p.TextDocument.URI)
		if err != nil {
			return &response{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: -32000, Message: err.Error()}}
		}
		return &response{JSONRPC: "2.0", ID: req.ID, Result: map[string]interface{}{
			"kind":  "full",
			"items": diagnosticsToLSP(diags),
		}}

	case "textDocument/documentSymbol":
		// wdlscope tracks no span for a workflow/task name (see Hover's own
		// comment on the same gap), so every symbol reports a zero range;
		// name and kind are still useful for an outline view.
		var p struct {
			TextDocument struct {
				URI string `json:"uri"`
			} `json:"textDocument"`
		}
		json.Unmarshal(req.Params, &p)
		names, ok := s.adapter.DocumentSymbols(p.TextDocument.URI)
		if !ok {
			return &response{JSONRPC: "2.0", ID: req.ID, Result: []interface{}{}}
		}
		symbols := make([]map[string]interface{}, 0, len(names))
		for _, name := range names {
			symbols = append(symbols, map[string]interface{}{
				"name": name,
				"kind": 12, // LSP SymbolKind.Function, the closest fit for a task/workflow
				"range": map[string]interface{}{
					"start": map[string]int{"line": 0, "character": 0},
					"end":   map[string]int{"line": 0, "character": 0},
				},
				"selectionRange": map[string]interface{}{
					"start": map[string]int{"line": 0, "character": 0},
					"end":   map[string]int{"line": 0, "character": 0},
				},
			})
		}
		return &response{JSONRPC: "2.0", ID: req.ID, Result: symbols}

	case "textDocument/hover":
		var p struct {
			TextDocument struct {
				URI string `json:"uri"`
			} `json:"textDocument"`
			Position struct {
				Line      int `json:"line"`
				Character int `json:"character"`
			} `json:"position"`
		}
		json.Unmarshal(req.Params, &p)
		text, ok := s.adapter.Hover(p.TextDocument.URI, Position{Line: p.Position.Line, Character: p.Position.Character})
		if !ok {
			return &response{JSONRPC: "2.0", ID: req.ID, Result: nil}
		}
		return &response{JSONRPC: "2.0", ID: req.ID, Result: map[string]interface{}{
			"contents": text,
		}}

	default:
		return nil
	}
}

func diagnosticsToLSP(diags []Diagnostic) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(diags))
	for _, d := range diags {
		out = append(out, map[string]interface{}{
			"range": map[string]interface{}{
				"start": map[string]int{"line": d.Range[0].Line, "character": d.Range[0].Character},
				"end":   map[string]int{"line": d.Range[1].Line, "character": d.Range[1].Character},
			},
			"severity": int(d.Severity) + 1,
			"code":     d.Code,
			"message":  d.Message,
		})
	}
	return out
}
