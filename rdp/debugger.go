package rdp

import "context"

// Debugger wraps the Debugger domain of the RDP client.
type Debugger struct {
	c Client
}

func NewDebugger(c Client) *Debugger { return &Debugger{c: c} }

func (d *Debugger) Enable(ctx context.Context) error {
	return d.c.Call(ctx, "Debugger.enable", struct{}{}, nil)
}

func (d *Debugger) Resume(ctx context.Context) error {
	return d.c.Call(ctx, "Debugger.resume", struct{}{}, nil)
}

func (d *Debugger) Pause(ctx context.Context) error {
	return d.c.Call(ctx, "Debugger.pause", struct{}{}, nil)
}

func (d *Debugger) StepOver(ctx context.Context) error {
	return d.c.Call(ctx, "Debugger.stepOver", struct{}{}, nil)
}

func (d *Debugger) StepInto(ctx context.Context) error {
	return d.c.Call(ctx, "Debugger.stepInto", struct{}{}, nil)
}

func (d *Debugger) StepOut(ctx context.Context) error {
	return d.c.Call(ctx, "Debugger.stepOut", struct{}{}, nil)
}

type SetBreakpointParams struct {
	ScriptId     string `json:"scriptId"`
	LineNumber   int    `json:"lineNumber"`
	ColumnNumber int    `json:"columnNumber,omitempty"`
	Condition    string `json:"condition,omitempty"`
}

type SetBreakpointResult struct {
	BreakpointId string   `json:"breakpointId"`
	ActualLocation Location `json:"actualLocation"`
}

func (d *Debugger) SetBreakpoint(ctx context.Context, p SetBreakpointParams) (SetBreakpointResult, error) {
	var out SetBreakpointResult
	err := d.c.Call(ctx, "Debugger.setBreakpoint", p, &out)
	return out, err
}

type SetBreakpointByURLParams struct {
	URLRegex     string `json:"urlRegex"`
	LineNumber   int    `json:"lineNumber"`
	ColumnNumber int    `json:"columnNumber,omitempty"`
	Condition    string `json:"condition,omitempty"`
}

type SetBreakpointByURLResult struct {
	BreakpointId string     `json:"breakpointId"`
	Locations    []Location `json:"locations"`
}

func (d *Debugger) SetBreakpointByUrl(ctx context.Context, p SetBreakpointByURLParams) (SetBreakpointByURLResult, error) {
	var out SetBreakpointByURLResult
	err := d.c.Call(ctx, "Debugger.setBreakpointByUrl", p, &out)
	return out, err
}

func (d *Debugger) RemoveBreakpoint(ctx context.Context, breakpointID string) error {
	return d.c.Call(ctx, "Debugger.removeBreakpoint", struct {
		BreakpointId string `json:"breakpointId"`
	}{breakpointID}, nil)
}

func (d *Debugger) SetPauseOnExceptions(ctx context.Context, state string) error {
	return d.c.Call(ctx, "Debugger.setPauseOnExceptions", struct {
		State string `json:"state"`
	}{state}, nil)
}

func (d *Debugger) SetBlackboxPatterns(ctx context.Context, patterns []string) error {
	if patterns == nil {
		patterns = []string{}
	}
	return d.c.Call(ctx, "Debugger.setBlackboxPatterns", struct {
		Patterns []string `json:"patterns"`
	}{patterns}, nil)
}

func (d *Debugger) SetBlackboxedRanges(ctx context.Context, scriptID string, positions []ScriptPosition) error {
	if positions == nil {
		positions = []ScriptPosition{}
	}
	return d.c.Call(ctx, "Debugger.setBlackboxedRanges", struct {
		ScriptId  string           `json:"scriptId"`
		Positions []ScriptPosition `json:"positions"`
	}{scriptID, positions}, nil)
}

func (d *Debugger) SetAsyncCallStackDepth(ctx context.Context, depth int) error {
	return d.c.Call(ctx, "Debugger.setAsyncCallStackDepth", struct {
		MaxDepth int `json:"maxDepth"`
	}{depth}, nil)
}

type GetPossibleBreakpointsParams struct {
	Start              Location  `json:"start"`
	End                *Location `json:"end,omitempty"`
	RestrictToFunction bool      `json:"restrictToFunction,omitempty"`
}

func (d *Debugger) GetPossibleBreakpoints(ctx context.Context, p GetPossibleBreakpointsParams) ([]BreakLocation, error) {
	var out struct {
		Locations []BreakLocation `json:"locations"`
	}
	err := d.c.Call(ctx, "Debugger.getPossibleBreakpoints", p, &out)
	return out.Locations, err
}

func (d *Debugger) GetScriptSource(ctx context.Context, scriptID string) (string, error) {
	var out struct {
		ScriptSource string `json:"scriptSource"`
	}
	err := d.c.Call(ctx, "Debugger.getScriptSource", struct {
		ScriptId string `json:"scriptId"`
	}{scriptID}, &out)
	return out.ScriptSource, err
}

type EvaluateOnCallFrameParams struct {
	CallFrameId        string `json:"callFrameId"`
	Expression         string `json:"expression"`
	Silent             bool   `json:"silent,omitempty"`
	GeneratePreview    bool   `json:"generatePreview,omitempty"`
	ReturnByValue      bool   `json:"returnByValue,omitempty"`
}

type EvaluateResult struct {
	Result           RemoteObject      `json:"result"`
	ExceptionDetails *ExceptionDetails `json:"exceptionDetails,omitempty"`
}

func (d *Debugger) EvaluateOnCallFrame(ctx context.Context, p EvaluateOnCallFrameParams) (EvaluateResult, error) {
	var out EvaluateResult
	err := d.c.Call(ctx, "Debugger.evaluateOnCallFrame", p, &out)
	return out, err
}

func (d *Debugger) SetVariableValue(ctx context.Context, scopeNumber int, variableName string, newValue RemoteObject, callFrameID string) error {
	return d.c.Call(ctx, "Debugger.setVariableValue", struct {
		ScopeNumber  int          `json:"scopeNumber"`
		VariableName string       `json:"variableName"`
		NewValue     RemoteObject `json:"newValue"`
		CallFrameId  string       `json:"callFrameId"`
	}{scopeNumber, variableName, newValue, callFrameID}, nil)
}

func (d *Debugger) RestartFrame(ctx context.Context, callFrameID string) error {
	return d.c.Call(ctx, "Debugger.restartFrame", struct {
		CallFrameId string `json:"callFrameId"`
	}{callFrameID}, nil)
}
