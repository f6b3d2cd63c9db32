package adapter

import (
	"context"
	"strings"

	"github.com/google/go-dap"

	"github.com/chromedap/bridge/rdp"
	"github.com/chromedap/bridge/transform"
)

// StackBuilder is C6: frame and async-parent synthesis plus the DAP
// scope list, including path/sourcemap/line-col back-translation and
// skip/smart-step deemphasis.
type StackBuilder struct {
	pause   *PauseState
	vars    *VariableMaterializer
	sources *HandleTable[SourceContainer]

	path    transform.PathTransformer
	srcMap  transform.SourceMapTransformer
	lineCol transform.LineColTransformer

	scripts *ScriptRegistry
	skip    *SkipEngine

	smartStep  bool
	sourceMaps bool
}

// SourceContainer backs a DAP Source served via sourceReference: either
// inline contents (source-mapped authored sources) or a scriptId to
// fetch lazily from the runtime.
type SourceContainer struct {
	ScriptID    string
	Contents    string
	MappedPath  string
}

func NewStackBuilder(pause *PauseState, vars *VariableMaterializer, sources *HandleTable[SourceContainer], path transform.PathTransformer, srcMap transform.SourceMapTransformer, lineCol transform.LineColTransformer, scripts *ScriptRegistry, skip *SkipEngine, smartStep, sourceMaps bool) *StackBuilder {
	return &StackBuilder{
		pause: pause, vars: vars, sources: sources,
		path: path, srcMap: srcMap, lineCol: lineCol,
		scripts: scripts, skip: skip,
		smartStep: smartStep, sourceMaps: sourceMaps,
	}
}

// StackTrace implements the stackTrace request.
func (s *StackBuilder) StackTrace(ctx context.Context, startFrame, levels int) ([]dap.StackFrame, int, error) {
	ev, ok := s.pause.LastPaused()
	if !ok {
		return nil, 0, errNoCallStack
	}

	frames := s.syncFrames(ctx, ev.CallFrames)
	frames = append(frames, s.asyncFrames(ctx, ev.AsyncStackTrace)...)

	total := len(frames)
	if total == 0 {
		return []dap.StackFrame{{Id: 0, Name: "VM_Unknown", Line: 0, Column: 0}}, 1, nil
	}

	lo := startFrame
	if lo < 0 || lo > total {
		lo = 0
	}
	hi := total
	if levels > 0 && lo+levels < total {
		hi = lo + levels
	}
	return frames[lo:hi], total, nil
}

var errNoCallStack = dapError("no call stack")

type dapErr string

func dapError(s string) error { return dapErr(s) }
func (e dapErr) Error() string { return string(e) }

func (s *StackBuilder) syncFrames(ctx context.Context, callFrames []rdp.CallFrame) []dap.StackFrame {
	out := make([]dap.StackFrame, 0, len(callFrames))
	for _, cf := range callFrames {
		out = append(out, s.frameToDAP(ctx, cf))
	}
	return out
}

func (s *StackBuilder) asyncFrames(ctx context.Context, st *rdp.StackTrace) []dap.StackFrame {
	if st == nil {
		return nil
	}

	var out []dap.StackFrame
	label := st.Description
	if label == "" {
		label = "async"
	}
	out = append(out, dap.StackFrame{
		Name:              "[ " + label + " ]",
		PresentationHint:  "label",
	})
	for _, f := range st.CallFrames {
		out = append(out, s.asyncFrameToDAP(ctx, f))
	}
	out = append(out, s.asyncFrames(ctx, st.Parent)...)
	return out
}

func (s *StackBuilder) frameToDAP(ctx context.Context, cf rdp.CallFrame) dap.StackFrame {
	url, _ := s.scripts.URLFor(cf.Location.ScriptId)

	name := cf.FunctionName
	if name == "" {
		if url != "" {
			name = "(anonymous function)"
		} else {
			name = "(eval code)"
		}
	}

	line := s.lineCol.ConvertDebuggerLineToClient(cf.Location.LineNumber)
	col := s.lineCol.ConvertDebuggerColumnToClient(cf.Location.ColumnNumber)
	path, isMapped := s.mapLocation(ctx, url, cf.Location)

	frame := dap.StackFrame{
		Id:     s.pause.NewFrameHandle(cf),
		Name:   name,
		Line:   line,
		Column: col,
	}
	s.fillSource(&frame, path, url, isMapped)
	return frame
}

func (s *StackBuilder) asyncFrameToDAP(ctx context.Context, f rdp.StackFrame) dap.StackFrame {
	name := f.FunctionName
	if name == "" {
		name = "(anonymous function)"
	}
	line := s.lineCol.ConvertDebuggerLineToClient(f.LineNumber)
	col := s.lineCol.ConvertDebuggerColumnToClient(f.ColumnNumber)
	path, isMapped := s.mapLocation(ctx, f.Url, rdp.Location{ScriptId: f.ScriptId, LineNumber: f.LineNumber, ColumnNumber: f.ColumnNumber})

	frame := dap.StackFrame{Name: name, Line: line, Column: col}
	s.fillSource(&frame, path, f.Url, isMapped)
	return frame
}

// mapLocation applies path + sourcemap back-translation, returning the
// client-facing path and whether an authored mapping was found.
func (s *StackBuilder) mapLocation(ctx context.Context, url string, loc rdp.Location) (string, bool) {
	if s.sourceMaps {
		if authored, _, _, ok := s.srcMap.MapToAuthored(ctx, url, loc.LineNumber, loc.ColumnNumber); ok {
			if client, ok := s.path.TargetUrlToClientPath(ctx, authored); ok {
				return client, true
			}
			return authored, true
		}
	}
	if client, ok := s.path.TargetUrlToClientPath(ctx, url); ok {
		return client, false
	}
	return url, false
}

func (s *StackBuilder) fillSource(frame *dap.StackFrame, path, url string, isMapped bool) {
	if strings.HasPrefix(url, "VM") {
		frame.Source = &dap.Source{
			Name:            url,
			SourceReference: s.sources.New(SourceContainer{ScriptID: strings.TrimPrefix(url, "VM")}),
		}
	} else if path != "" {
		frame.Source = &dap.Source{Path: path, Name: baseName(path)}
	}

	if frame.Source != nil {
		if origin := s.skip.DeemphasizeOrigin(path, s.smartStep, isMapped); origin != "" {
			frame.Source.PresentationHint = "deemphasize"
			frame.Source.Origin = origin
		}
	}
}

func baseName(p string) string {
	if i := strings.LastIndexAny(p, "/\\"); i >= 0 {
		return p[i+1:]
	}
	return p
}

// Scopes implements the scopes request.
func (s *StackBuilder) Scopes(frameID int) ([]dap.Scope, error) {
	cf, ok := s.pause.FrameByHandle(frameID)
	if !ok {
		return nil, dapError("no such frame")
	}

	var out []dap.Scope
	if exc := s.pause.CurrentException(); exc != nil {
		out = append(out, dap.Scope{
			Name:               "Exception",
			VariablesReference: s.vars.NewHandle(&ExceptionContainer{Exception: *exc}),
		})
	}

	for i, sc := range cf.ScopeChain {
		container := &ScopeContainer{CallFrameID: cf.CallFrameId, ScopeIndex: i}
		if sc.Object != nil {
			container.ObjectID = sc.Object.ObjectId
		}
		if i == 0 {
			container.This = cf.This
			container.ReturnValue = cf.ReturnValue
		}

		scope := dap.Scope{
			Name:               capitalize(sc.Type),
			Expensive:          sc.Type == "global",
			VariablesReference: s.vars.NewHandle(container),
		}
		if sc.StartLocation != nil {
			scope.Line = s.lineCol.ConvertDebuggerLineToClient(sc.StartLocation.LineNumber)
			scope.Column = s.lineCol.ConvertDebuggerColumnToClient(sc.StartLocation.ColumnNumber)
		}
		if sc.EndLocation != nil {
			scope.EndLine = s.lineCol.ConvertDebuggerLineToClient(sc.EndLocation.LineNumber)
			scope.EndColumn = s.lineCol.ConvertDebuggerColumnToClient(sc.EndLocation.ColumnNumber)
		}
		out = append(out, scope)
	}
	return out, nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
