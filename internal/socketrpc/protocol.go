package socketrpc

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// JSON-RPC 2.0 Method Reference
//
// The socket RPC server exposes an adbridge.Bridge over a Unix domain
// socket. Each method maps 1:1 to the Bridge interface.
//
//   Method                 Params                          Result
//   ────────────────────   ─────────────────────────────   ──────────────
//   RequestFeature         (none)                          null
//   CheckUnlocked          (none)                          bool
//   ConsumeUnlock          (none)                          null
//   RequestGatedDownload   {URL: string, Filename: string} bool
//   Status                 (none)                          model.AdStatus
//   Events                 (none)                          []adbridge.Event
//
// Error codes follow JSON-RPC 2.0:
//   -32700  Parse error (malformed JSON)
//   -32601  Method not found
//   -32602  Invalid params
//   -32603  Internal error (marshal failure)
//   -32000  Application error (host failure)

const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternal       = -32603
	codeApplication    = -32000
)

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string { return e.Message }

// DefaultSocketPath returns the default Unix socket path.
// It prefers $XDG_RUNTIME_DIR/mcqpdf/adhost.sock, falling back to
// ~/.local/state/mcqpdf/adhost.sock.
func DefaultSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "mcqpdf", "adhost.sock")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "/tmp/mcqpdf-adhost.sock"
	}
	return filepath.Join(home, ".local", "state", "mcqpdf", "adhost.sock")
}
