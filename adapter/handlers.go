package adapter

import (
	"encoding/json"
	"net/url"

	"github.com/google/go-dap"

	"github.com/chromedap/bridge/dapserver"
)

// dapHandler wires every request surface method onto a dapserver.Handler.
func (a *Adapter) dapHandler() *dapserver.Handler {
	return &dapserver.Handler{
		Initialize:              a.Initialize,
		Launch:                  a.Launch,
		Attach:                  a.Attach,
		SetBreakpoints:          a.SetBreakpoints,
		SetExceptionBreakpoints: a.SetExceptionBreakpoints,
		ConfigurationDone:       a.ConfigurationDone,
		Disconnect:              a.Disconnect,
		Terminate:               a.Terminate,
		Continue:                a.Continue,
		Next:                    a.Next,
		StepIn:                  a.StepIn,
		StepOut:                 a.StepOut,
		StepBack:                a.StepBack,
		ReverseContinue:         a.ReverseContinue,
		Pause:                   a.Pause,
		RestartFrame:            a.RestartFrame,
		Threads:                 a.Threads,
		StackTrace:              a.StackTrace,
		Scopes:                  a.Scopes,
		Variables:               a.Variables,
		SetVariable:             a.SetVariable,
		Evaluate:                a.Evaluate,
		Completions:             a.Completions,
		ExceptionInfo:           a.ExceptionInfo,
		Source:                  a.Source,
		ToggleSkipFileStatus:    a.ToggleSkipFileStatus,
	}
}

func (a *Adapter) SetBreakpoints(c dapserver.Context, req *dap.SetBreakpointsRequest, resp *dap.SetBreakpointsResponse) error {
	out := a.bps.SetBreakpoints(c, req.Arguments, req.Seq, nil)
	resp.Body = out.Body
	return nil
}

func (a *Adapter) SetExceptionBreakpoints(c dapserver.Context, req *dap.SetExceptionBreakpointsRequest, resp *dap.SetExceptionBreakpointsResponse) error {
	all, uncaught := false, false
	for _, f := range req.Arguments.Filters {
		switch f {
		case "all":
			all = true
		case "uncaught":
			uncaught = true
		}
	}

	state := "none"
	switch {
	case all:
		state = "all"
	case uncaught:
		state = "uncaught"
	}
	return a.debugger.SetPauseOnExceptions(c, state)
}

func (a *Adapter) Continue(c dapserver.Context, req *dap.ContinueRequest, resp *dap.ContinueResponse) error {
	done := make(chan struct{})
	a.pause.BeginStep(ReasonPause, done)
	err := a.debugger.Resume(c)
	close(done)
	return err
}

func (a *Adapter) Next(c dapserver.Context, req *dap.NextRequest, resp *dap.NextResponse) error {
	done := make(chan struct{})
	a.pause.BeginStep(ReasonStep, done)
	err := a.debugger.StepOver(c)
	close(done)
	return err
}

func (a *Adapter) StepIn(c dapserver.Context, req *dap.StepInRequest, resp *dap.StepInResponse) error {
	done := make(chan struct{})
	a.pause.BeginStep(ReasonStep, done)
	err := a.debugger.StepInto(c)
	close(done)
	return err
}

func (a *Adapter) StepOut(c dapserver.Context, req *dap.StepOutRequest, resp *dap.StepOutResponse) error {
	done := make(chan struct{})
	a.pause.BeginStep(ReasonStep, done)
	err := a.debugger.StepOut(c)
	close(done)
	return err
}

func (a *Adapter) StepBack(c dapserver.Context, req *dap.StepBackRequest, resp *dap.StepBackResponse) error {
	done := make(chan struct{})
	a.pause.BeginStep(ReasonStep, done)
	err := a.reverse.StepBack(c)
	close(done)
	return err
}

func (a *Adapter) ReverseContinue(c dapserver.Context, req *dap.ReverseContinueRequest, resp *dap.ReverseContinueResponse) error {
	done := make(chan struct{})
	a.pause.BeginStep(ReasonPause, done)
	err := a.reverse.Reverse(c)
	close(done)
	return err
}

func (a *Adapter) Pause(c dapserver.Context, req *dap.PauseRequest, resp *dap.PauseResponse) error {
	done := make(chan struct{})
	a.pause.BeginStep(ReasonPause, done)
	err := a.debugger.Pause(c)
	close(done)
	return err
}

func (a *Adapter) RestartFrame(c dapserver.Context, req *dap.RestartFrameRequest, resp *dap.RestartFrameResponse) error {
	cf, ok := a.pause.FrameByHandle(req.Arguments.FrameId)
	if !ok {
		return dapError("no such frame")
	}
	if err := a.debugger.RestartFrame(c, cf.CallFrameId); err != nil {
		return err
	}
	done := make(chan struct{})
	a.pause.BeginStep(ReasonStep, done)
	err := a.debugger.StepInto(c)
	close(done)
	return err
}

func (a *Adapter) Threads(c dapserver.Context, req *dap.ThreadsRequest, resp *dap.ThreadsResponse) error {
	resp.Body.Threads = []dap.Thread{{Id: 1, Name: "Thread 1"}}
	return nil
}

func (a *Adapter) StackTrace(c dapserver.Context, req *dap.StackTraceRequest, resp *dap.StackTraceResponse) error {
	frames, total, err := a.stack.StackTrace(c, req.Arguments.StartFrame, req.Arguments.Levels)
	if err != nil {
		return err
	}
	resp.Body.StackFrames = frames
	resp.Body.TotalFrames = total
	return nil
}

func (a *Adapter) Scopes(c dapserver.Context, req *dap.ScopesRequest, resp *dap.ScopesResponse) error {
	scopes, err := a.stack.Scopes(req.Arguments.FrameId)
	if err != nil {
		return err
	}
	resp.Body.Scopes = scopes
	return nil
}

func (a *Adapter) Variables(c dapserver.Context, req *dap.VariablesRequest, resp *dap.VariablesResponse) error {
	filter := req.Arguments.Filter
	start, count := 0, 0
	if req.Arguments.Start != 0 {
		start = req.Arguments.Start
	}
	if req.Arguments.Count != 0 {
		count = req.Arguments.Count
	}
	resp.Body.Variables = a.vars.Variables(c, req.Arguments.VariablesReference, filter, start, count)
	return nil
}

func (a *Adapter) SetVariable(c dapserver.Context, req *dap.SetVariableRequest, resp *dap.SetVariableResponse) error {
	v, err := a.vars.SetVariable(c, req.Arguments.VariablesReference, req.Arguments.Name, req.Arguments.Value)
	if err != nil {
		return err
	}
	resp.Body.Value = v.Value
	resp.Body.Type = v.Type
	resp.Body.VariablesReference = v.VariablesReference
	return nil
}

func (a *Adapter) Evaluate(c dapserver.Context, req *dap.EvaluateRequest, resp *dap.EvaluateResponse) error {
	out, err := a.eval.Evaluate(c, req.Arguments.Expression, req.Arguments.FrameId, req.Arguments.Context)
	if err != nil {
		return err
	}
	resp.Body = out.Body
	return nil
}

func (a *Adapter) Completions(c dapserver.Context, req *dap.CompletionsRequest, resp *dap.CompletionsResponse) error {
	resp.Body.Targets = a.eval.Completions(c, req.Arguments.Text, req.Arguments.Column, req.Arguments.FrameId)
	return nil
}

func (a *Adapter) ExceptionInfo(c dapserver.Context, req *dap.ExceptionInfoRequest, resp *dap.ExceptionInfoResponse) error {
	body, err := a.eval.ExceptionInfo(req.Arguments.ThreadId)
	if err != nil {
		return err
	}
	resp.Body = body
	return nil
}

func (a *Adapter) Source(c dapserver.Context, req *dap.SourceRequest, resp *dap.SourceResponse) error {
	if req.Arguments.SourceReference != 0 {
		sc, ok := a.sources.Get(req.Arguments.SourceReference)
		if !ok {
			return dapError("no such source")
		}
		if sc.Contents != "" {
			resp.Body.Content = sc.Contents
			return nil
		}
		src, err := a.debugger.GetScriptSource(c, sc.ScriptID)
		if err != nil {
			return err
		}
		resp.Body.Content = src
		return nil
	}

	if req.Arguments.Source != nil && req.Arguments.Source.Path != "" {
		encoded := url.PathEscape(req.Arguments.Source.Path)
		targetURL, ok := a.path.ClientPathToTarget(c, encoded)
		if !ok {
			return dapError("no such source")
		}
		sc, ok := a.scripts.ByURL(targetURL)
		if !ok {
			return dapError("no such source")
		}
		src, err := a.debugger.GetScriptSource(c, sc.ID)
		if err != nil {
			return err
		}
		resp.Body.Content = src
		return nil
	}

	return dapError("missing sourceReference or source.path")
}

// ToggleSkipFileStatus answers the "toggleSkipFileStatus" custom request
// (C10): VS Code's js-debug-style clients send {path, sourceReference}
// and expect an empty success response.
func (a *Adapter) ToggleSkipFileStatus(c dapserver.Context, req *dapserver.CustomRequest, resp *dapserver.CustomResponse) error {
	var args struct {
		Path            string `json:"path"`
		SourceReference int    `json:"sourceReference"`
	}
	if len(req.Arguments) > 0 {
		if err := json.Unmarshal(req.Arguments, &args); err != nil {
			return err
		}
	}
	return a.toggleSkipFileStatus(c, args.Path, args.SourceReference)
}
