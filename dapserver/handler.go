package dapserver

import (
	"context"
	"reflect"

	"github.com/google/go-dap"
	"github.com/pkg/errors"
)

// Context is the per-request dispatch context handed to every handler. It
// carries cancellation, a channel for sending messages back to the client,
// and the ability to spawn further server-scheduled work (event handlers,
// background RDP callbacks).
type Context interface {
	context.Context
	C() chan<- dap.Message
	Go(f func(c Context)) bool
	Request(req dap.RequestMessage) <-chan dap.ResponseMessage
}

type dispatchContext struct {
	context.Context
	srv *Server
	ch  chan<- dap.Message
}

func (c *dispatchContext) C() chan<- dap.Message {
	return c.ch
}

func (c *dispatchContext) Go(f func(c Context)) bool {
	return c.srv.Go(f)
}

func (c *dispatchContext) Request(req dap.RequestMessage) <-chan dap.ResponseMessage {
	ch := make(chan dap.ResponseMessage, 1)
	c.srv.doRequest(c, req, func(c Context, resp dap.ResponseMessage) {
		ch <- resp
		close(ch)
	})
	return ch
}

type HandlerFunc[Req dap.RequestMessage, Resp dap.ResponseMessage] func(c Context, req Req, resp Resp) error

func (h HandlerFunc[Req, Resp]) Do(c Context, req Req) (resp Resp, err error) {
	if h == nil {
		return resp, errors.New("not implemented")
	}

	respT := reflect.TypeFor[Resp]()
	rv := reflect.New(respT.Elem())
	resp = rv.Interface().(Resp)
	err = h(c, req, resp)
	return resp, err
}

// Handler collects the request surface the adapter implements. Requests with
// a nil field respond with "not implemented".
type Handler struct {
	Initialize             HandlerFunc[*dap.InitializeRequest, *dap.InitializeResponse]
	Launch                 HandlerFunc[*dap.LaunchRequest, *dap.LaunchResponse]
	Attach                 HandlerFunc[*dap.AttachRequest, *dap.AttachResponse]
	SetBreakpoints          HandlerFunc[*dap.SetBreakpointsRequest, *dap.SetBreakpointsResponse]
	SetExceptionBreakpoints HandlerFunc[*dap.SetExceptionBreakpointsRequest, *dap.SetExceptionBreakpointsResponse]
	ConfigurationDone       HandlerFunc[*dap.ConfigurationDoneRequest, *dap.ConfigurationDoneResponse]
	Disconnect              HandlerFunc[*dap.DisconnectRequest, *dap.DisconnectResponse]
	Terminate               HandlerFunc[*dap.TerminateRequest, *dap.TerminateResponse]
	Continue                HandlerFunc[*dap.ContinueRequest, *dap.ContinueResponse]
	Next                    HandlerFunc[*dap.NextRequest, *dap.NextResponse]
	StepIn                  HandlerFunc[*dap.StepInRequest, *dap.StepInResponse]
	StepOut                 HandlerFunc[*dap.StepOutRequest, *dap.StepOutResponse]
	StepBack                HandlerFunc[*dap.StepBackRequest, *dap.StepBackResponse]
	ReverseContinue         HandlerFunc[*dap.ReverseContinueRequest, *dap.ReverseContinueResponse]
	Pause                   HandlerFunc[*dap.PauseRequest, *dap.PauseResponse]
	RestartFrame            HandlerFunc[*dap.RestartFrameRequest, *dap.RestartFrameResponse]
	Threads                 HandlerFunc[*dap.ThreadsRequest, *dap.ThreadsResponse]
	StackTrace              HandlerFunc[*dap.StackTraceRequest, *dap.StackTraceResponse]
	Scopes                  HandlerFunc[*dap.ScopesRequest, *dap.ScopesResponse]
	Variables               HandlerFunc[*dap.VariablesRequest, *dap.VariablesResponse]
	SetVariable             HandlerFunc[*dap.SetVariableRequest, *dap.SetVariableResponse]
	Evaluate                HandlerFunc[*dap.EvaluateRequest, *dap.EvaluateResponse]
	Completions             HandlerFunc[*dap.CompletionsRequest, *dap.CompletionsResponse]
	ExceptionInfo           HandlerFunc[*dap.ExceptionInfoRequest, *dap.ExceptionInfoResponse]
	Source                  HandlerFunc[*dap.SourceRequest, *dap.SourceResponse]

	// ToggleSkipFileStatus answers the "toggleSkipFileStatus" custom
	// request (see CustomRequest); it has no standard go-dap type.
	ToggleSkipFileStatus HandlerFunc[*CustomRequest, *CustomResponse]
}
