package adapter

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/go-dap"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/chromedap/bridge/dapserver"
	"github.com/chromedap/bridge/rdp"
	"github.com/chromedap/bridge/transform"
)

// Adapter wires the C1-C10 components together and exposes the DAP
// request surface (C10) dapserver.Handler expects.
type Adapter struct {
	srv *dapserver.Server

	initialized chan struct{}
	initOnce    sync.Once

	cfg Config

	client rdp.Client

	debugger *rdp.Debugger
	runtime  *rdp.Runtime
	console  *rdp.Console
	reverse  *rdp.TimeTravel

	path    transform.PathTransformer
	srcMap  transform.SourceMapTransformer
	lineCol transform.LineColTransformer

	scripts  *ScriptRegistry
	skip     *SkipEngine
	bps      *BreakpointEngine
	vars     *VariableMaterializer
	pause    *PauseState
	stack    *StackBuilder
	eval     *Evaluator
	sources  *HandleTable[SourceContainer]

	mu                sync.Mutex
	initialMapsPending int
	columnProbeDone    bool

	exceptionFilters map[string]bool

	events chan dap.Message
}

// NewAdapter constructs an Adapter ready to Start over a dapserver.Conn.
// The RDP client isn't known until attach, so components needing it are
// wired lazily from Attach.
func NewAdapter(path transform.PathTransformer, srcMap transform.SourceMapTransformer, lineCol transform.LineColTransformer) *Adapter {
	a := &Adapter{
		initialized: make(chan struct{}),
		path:        path,
		srcMap:      srcMap,
		lineCol:     lineCol,
		sources:     NewHandleTable[SourceContainer](),
		events:      make(chan dap.Message, 16),
		exceptionFilters: map[string]bool{
			"all":      false,
			"uncaught": true,
		},
	}
	a.srv = dapserver.NewServer(a.dapHandler())
	return a
}

func (a *Adapter) Start(ctx context.Context, conn dapserver.Conn) error {
	go a.pumpEvents(ctx)
	return a.srv.Serve(ctx, conn)
}

func (a *Adapter) pumpEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-a.events:
			if !ok {
				return
			}
			a.srv.Go(func(c dapserver.Context) { c.C() <- msg })
		}
	}
}

func (a *Adapter) Initialize(c dapserver.Context, req *dap.InitializeRequest, resp *dap.InitializeResponse) error {
	if req.Arguments.PathFormat != "" && req.Arguments.PathFormat != "path" {
		return errors.Errorf("unsupported pathFormat: %s", req.Arguments.PathFormat)
	}

	a.lineCol = transform.NewLineColTransformer(req.Arguments.LinesStartAt1, req.Arguments.ColumnsStartAt1)

	resp.Body.SupportsConfigurationDoneRequest = true
	resp.Body.SupportsSetVariable = true
	resp.Body.SupportsConditionalBreakpoints = true
	resp.Body.SupportsHitConditionalBreakpoints = true
	resp.Body.SupportsCompletionsRequest = true
	resp.Body.SupportsRestartFrame = true
	resp.Body.SupportsExceptionInfoRequest = true
	resp.Body.ExceptionBreakpointFilters = []dap.ExceptionBreakpointsFilter{
		{Filter: "all", Label: "All Exceptions", Default: false},
		{Filter: "uncaught", Label: "Uncaught Exceptions", Default: true},
	}
	return nil
}

func (a *Adapter) Launch(c dapserver.Context, req *dap.LaunchRequest, resp *dap.LaunchResponse) error {
	var cfg Config
	if err := json.Unmarshal(req.Arguments, &cfg); err != nil {
		return err
	}
	return a.attach(c, cfg)
}

func (a *Adapter) Attach(c dapserver.Context, req *dap.AttachRequest, resp *dap.AttachResponse) error {
	var cfg Config
	if err := json.Unmarshal(req.Arguments, &cfg); err != nil {
		return err
	}
	return a.attach(c, cfg)
}

// attach implements the C9 connect/enable sequence.
func (a *Adapter) attach(c dapserver.Context, cfg Config) error {
	a.cfg = cfg

	ctx, cancel := context.WithCancel(c)
	if cfg.Timeout > 0 {
		ctx, cancel = context.WithTimeout(c, time.Duration(cfg.Timeout)*time.Millisecond)
	}
	defer cancel()

	client, err := a.dial(ctx, cfg)
	if err != nil {
		return err
	}
	a.client = client

	a.wireComponents(client, cfg)
	a.subscribe(client)

	if err := a.console.Enable(ctx); err != nil {
		logrus.WithError(err).Debug("Console.enable failed, continuing without legacy console support")
	}
	if err := a.debugger.Enable(ctx); err != nil {
		return errors.Wrap(err, "Debugger.enable")
	}
	if err := a.runtime.Enable(ctx); err != nil {
		return errors.Wrap(err, "Runtime.enable")
	}

	if err := a.skip.CompilePatterns(cfg.SkipFiles, cfg.SkipFileRegExps); err != nil {
		logrus.WithError(err).Warn("problems compiling skipFiles")
	}

	depth := 0
	if cfg.ShowAsyncStacks {
		depth = 4
	}
	if err := a.debugger.SetAsyncCallStackDepth(ctx, depth); err != nil {
		logrus.WithError(err).Debug("setAsyncCallStackDepth failed")
	}

	return nil
}

func (a *Adapter) dial(ctx context.Context, cfg Config) (rdp.Client, error) {
	if cfg.WebsocketURL != "" {
		return rdp.Dial(ctx, cfg.WebsocketURL)
	}
	address := cfg.Address
	if address == "" {
		address = "127.0.0.1"
	}
	return rdp.Discover(ctx, address, cfg.port(), cfg.URL)
}

func (a *Adapter) wireComponents(client rdp.Client, cfg Config) {
	a.debugger = rdp.NewDebugger(client)
	a.runtime = rdp.NewRuntime(client)
	a.console = rdp.NewConsole(client)
	a.reverse = rdp.NewTimeTravel(client)

	a.bps = NewBreakpointEngine(a.debugger, a.path, a.srcMap, a.lineCol, a.sources)
	a.skip = NewSkipEngine(a.debugger)
	a.scripts = NewScriptRegistry(a.debugger, a.path, a.srcMap, a.lineCol, a, a.skip)
	a.vars = NewVariableMaterializer(a.runtime, a.debugger)
	a.pause = NewPauseState(a.debugger, a.vars, a.bps, a.events, cfg.sourceMapsEnabled(), cfg.SmartStep, a.hasAuthoredMapping)
	a.stack = NewStackBuilder(a.pause, a.vars, a.sources, a.path, a.srcMap, a.lineCol, a.scripts, a.skip, cfg.SmartStep, cfg.sourceMapsEnabled())
	a.eval = NewEvaluator(a.pause, a.vars, a.debugger, a.runtime, a.scripts, a.path, a.srcMap, a.lineCol, a.events)
}

func (a *Adapter) hasAuthoredMapping(ctx context.Context, loc rdp.Location) bool {
	url, ok := a.scripts.URLFor(loc.ScriptId)
	if !ok {
		return false
	}
	_, _, _, ok = a.srcMap.MapToAuthored(ctx, url, loc.LineNumber, loc.ColumnNumber)
	return ok
}

func (a *Adapter) subscribe(client rdp.Client) {
	client.On(rdp.EventDebuggerPaused, a.onPaused)
	client.On(rdp.EventDebuggerResumed, func(json.RawMessage) { a.pause.OnResumed() })
	client.On(rdp.EventDebuggerScriptParsed, a.onScriptParsed)
	client.On(rdp.EventDebuggerBreakpointResolved, a.onBreakpointResolved)
	client.On(rdp.EventRuntimeConsoleAPICalled, a.onConsoleAPICalled)
	client.On(rdp.EventRuntimeExceptionThrown, a.onExceptionThrown)
	client.On(rdp.EventRuntimeExecutionContextsCleared, func(json.RawMessage) { a.onExecutionContextsCleared() })
	client.On(rdp.EventConsoleMessageAdded, a.onConsoleMessageAdded)
}

func (a *Adapter) onPaused(raw json.RawMessage) {
	var ev rdp.PausedEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		logrus.WithError(err).Error("malformed Debugger.paused payload")
		return
	}
	a.pause.OnPaused(context.Background(), ev)
}

func (a *Adapter) onScriptParsed(raw json.RawMessage) {
	var ev rdp.ScriptParsedEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return
	}

	ctx := context.Background()
	a.mu.Lock()
	firstBatch := !a.columnProbeDone
	a.mu.Unlock()

	a.scripts.OnScriptParsed(ctx, ev)

	a.mu.Lock()
	a.columnProbeDone = true
	delay := firstBatch
	a.mu.Unlock()

	if delay {
		a.initOnce.Do(func() {
			a.events <- &dap.InitializedEvent{Event: dap.Event{Event: "initialized"}}
		})
	}
}

func (a *Adapter) onBreakpointResolved(raw json.RawMessage) {
	var ev rdp.BreakpointResolvedEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return
	}

	url, _ := a.scripts.URLFor(ev.Location.ScriptId)
	a.bps.OnBreakpointResolved(url, ev)

	client, _ := a.path.TargetUrlToClientPath(context.Background(), url)
	a.events <- &dap.BreakpointEvent{
		Event: dap.Event{Event: "breakpoint"},
		Body: dap.BreakpointEventBody{
			Reason: "new",
			Breakpoint: dap.Breakpoint{
				Verified: true,
				Line:     a.lineCol.ConvertDebuggerLineToClient(ev.Location.LineNumber),
				Column:   a.lineCol.ConvertDebuggerColumnToClient(ev.Location.ColumnNumber),
				Source:   &dap.Source{Path: client},
			},
		},
	}
}

func (a *Adapter) onConsoleAPICalled(raw json.RawMessage) {
	var ev rdp.ConsoleAPICalledEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return
	}
	category := "stdout"
	if ev.Type == "error" || ev.Type == "warning" {
		category = "stderr"
	}

	ctx := context.Background()
	for _, arg := range ev.Args {
		v := a.vars.remoteObjectToVariable(ctx, "", arg, "")
		a.events <- &dap.OutputEvent{
			Event: dap.Event{Event: "output"},
			Body: dap.OutputEventBody{
				Category:           category,
				Output:             v.Value + "\n",
				VariablesReference: v.VariablesReference,
			},
		}
	}
}

func (a *Adapter) onConsoleMessageAdded(raw json.RawMessage) {
	var ev rdp.ConsoleMessageAddedEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return
	}
	synthesized := rdp.ConsoleAPICalledEvent{Type: ev.Message.Level, Args: ev.Message.Parameters}
	if len(synthesized.Args) == 0 {
		synthesized.Args = []rdp.RemoteObject{{Type: "string", Value: ev.Message.Text, Description: ev.Message.Text}}
	}
	re, _ := json.Marshal(synthesized)
	a.onConsoleAPICalled(re)
}

func (a *Adapter) onExceptionThrown(raw json.RawMessage) {
	var ev rdp.ExceptionThrownEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return
	}
	a.events <- &dap.OutputEvent{
		Event: dap.Event{Event: "output"},
		Body:  dap.OutputEventBody{Category: "stderr", Output: ev.ExceptionDetails.Text + "\n"},
	}
}

func (a *Adapter) onExecutionContextsCleared() {
	a.scripts.Clear()
	a.bps.Clear()
}

func (a *Adapter) Disconnect(c dapserver.Context, req *dap.DisconnectRequest, resp *dap.DisconnectResponse) error {
	if a.client != nil {
		_ = a.client.Close()
	}
	a.events <- &dap.TerminatedEvent{
		Event: dap.Event{Event: "terminated"},
		Body:  dap.TerminatedEventBody{Restart: req.Arguments.Restart},
	}
	return nil
}

func (a *Adapter) Terminate(c dapserver.Context, req *dap.TerminateRequest, resp *dap.TerminateResponse) error {
	if a.client != nil {
		return a.client.Close()
	}
	return nil
}

func (a *Adapter) ConfigurationDone(c dapserver.Context, req *dap.ConfigurationDoneRequest, resp *dap.ConfigurationDoneResponse) error {
	return nil
}

// ScriptURL implements transform.Host.
func (a *Adapter) ScriptURL(scriptID string) (string, bool) { return a.scripts.URLFor(scriptID) }

// DrainPendingBreakpoints implements transform.Host: re-submits any
// PendingBreakpoint parked against sourcePath now that it resolves.
func (a *Adapter) DrainPendingBreakpoints(ctx context.Context, sourcePath string) {
	for _, p := range a.bps.DrainPending(sourcePath) {
		a.bps.SetBreakpoints(ctx, p.Args, p.RequestSeq, p.AssignedIDs)
	}
}

// toggleSkipFileStatus implements the C3 toggle operation described in
// 4.3: validate against the current stack, flip classification, edit
// the pattern list, recompute ranges, and re-fire the last pause event.
func (a *Adapter) toggleSkipFileStatus(ctx context.Context, path string, sourceReference int) error {
	frames, ok := a.pause.LastPaused()
	if !ok {
		return ErrNotInStack
	}

	found := false
	var targetURL string
	for _, cf := range frames.CallFrames {
		url, _ := a.scripts.URLFor(cf.Location.ScriptId)
		if url == path {
			found, targetURL = true, url
			break
		}
		if sourceReference != 0 {
			if src, ok := a.sources.Get(sourceReference); ok && src.ScriptID == cf.Location.ScriptId {
				found, targetURL = true, url
				break
			}
		}
	}
	if !found {
		return ErrNotInStack
	}
	if path == "" {
		path = targetURL
	}

	sc, _ := a.scripts.ByURL(targetURL)
	if sc != nil && sc.SourceMapURL != "" && len(sc.AuthoredSources) == 1 && sc.AuthoredSources[0].Path == sc.URL {
		return ErrMetaScript
	}

	current, _ := a.skip.Classify(path)
	newStatus := !current
	a.skip.SetStatus(path, newStatus)
	if newStatus {
		a.skip.addPattern(path)
	} else {
		a.skip.removePattern(path)
	}

	if sc != nil {
		a.skip.ComputeAndSubmitRanges(ctx, sc)
	}

	a.pause.Rerender()
	return nil
}
