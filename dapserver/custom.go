package dapserver

import (
	"encoding/json"

	"github.com/google/go-dap"
)

// CustomRequest and CustomResponse carry DAP requests outside go-dap's
// fixed, code-generated command set. go-dap's decoder only knows the
// standard protocol's commands, so a request whose command is listed in
// customCommands is decoded into this pair instead (see Conn's read
// loop); any other unknown command still goes through go-dap's decoder.
type CustomRequest struct {
	dap.Request
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// CustomResponse is the matching response envelope; Body is marshaled
// as-is, the same way go-dap's generated response types embed a typed
// Body field.
type CustomResponse struct {
	dap.Response
	Body any `json:"body,omitempty"`
}

// customCommands lists every non-standard command this server accepts.
// Conn's read loop consults it to decide whether a frame decodes as a
// CustomRequest instead of going through go-dap's own decoder.
var customCommands = map[string]bool{
	"toggleSkipFileStatus": true,
}
