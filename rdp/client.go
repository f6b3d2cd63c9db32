// Package rdp models the runtime-facing side of the bridge: a Chrome-style
// remote debugging protocol exposing Debugger, Runtime and Console domains
// over a JSON-RPC connection. The WebSocket transport and wire framing are
// treated as an external collaborator — this package only depends on the
// narrow Client contract, and ships one concrete implementation of it.
package rdp

import (
	"context"
	"encoding/json"
)

// Client is the typed RPC surface the adapter drives the runtime through.
// Call issues a domain method and decodes its result into out (nil to
// discard). On enables delivery of a domain event to fn; events fire on
// whatever goroutine the transport uses to read the socket, so callers that
// touch adapter state must hop back onto the adapter's own dispatcher.
type Client interface {
	Call(ctx context.Context, method string, params, out any) error
	On(method string, fn func(params json.RawMessage))
	Close() error
}

// Event method names used across the Debugger, Runtime and Console domains.
const (
	EventDebuggerPaused               = "Debugger.paused"
	EventDebuggerResumed              = "Debugger.resumed"
	EventDebuggerScriptParsed         = "Debugger.scriptParsed"
	EventDebuggerBreakpointResolved   = "Debugger.breakpointResolved"
	EventRuntimeConsoleAPICalled      = "Runtime.consoleAPICalled"
	EventRuntimeExceptionThrown       = "Runtime.exceptionThrown"
	EventRuntimeExecutionContextsCleared = "Runtime.executionContextsCleared"
	EventConsoleMessageAdded          = "Console.messageAdded"
)
