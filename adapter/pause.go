package adapter

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/go-dap"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/chromedap/bridge/rdp"
)

// Stop reasons the pause state machine can classify a Debugger.paused
// event into.
const (
	ReasonException         = "exception"
	ReasonPromiseRejection  = "promise_rejection"
	ReasonBreakpoint        = "breakpoint"
	ReasonStep              = "step"
	ReasonPause             = "pause"
	ReasonFrameEntry        = "frame_entry"
	ReasonDebuggerStatement = "debugger_statement"
)

const (
	stepResponseCeiling = 300 * time.Millisecond
	quiescenceWindow    = 50 * time.Millisecond
)

// PauseState is C8: it owns the paused/running classification, the
// frame handle table, the current exception, and the quiescence gates
// expression evaluation waits on.
type PauseState struct {
	mu sync.Mutex

	frames      *HandleTable[rdp.CallFrame]
	currentFrames []rdp.CallFrame

	currentException *rdp.RemoteObject
	lastPaused       *rdp.PausedEvent
	lastStopReason   string
	lastStopText     string

	expectingStopReason string
	currentStep         <-chan struct{}

	quiescence chan struct{}

	smartStepSkips int

	debugger *rdp.Debugger
	vars     *VariableMaterializer
	bps      *BreakpointEngine

	sourceMaps bool
	smartStep  bool

	events chan<- dap.Message

	hasAuthoredMapping func(ctx context.Context, loc rdp.Location) bool

	onStopped func()
}

func NewPauseState(debugger *rdp.Debugger, vars *VariableMaterializer, bps *BreakpointEngine, events chan<- dap.Message, sourceMaps, smartStep bool, hasAuthoredMapping func(ctx context.Context, loc rdp.Location) bool) *PauseState {
	return &PauseState{
		frames:             NewHandleTable[rdp.CallFrame](),
		debugger:           debugger,
		vars:               vars,
		bps:                bps,
		events:             events,
		sourceMaps:         sourceMaps,
		smartStep:          smartStep,
		hasAuthoredMapping: hasAuthoredMapping,
	}
}

// BeginStep records that a step/continue/pause RPC is in flight, so the
// next paused event knows to classify against it and to gate on its
// response. done is closed once the RPC's response has been delivered.
func (p *PauseState) BeginStep(reason string, done <-chan struct{}) {
	p.mu.Lock()
	p.expectingStopReason = reason
	p.currentStep = done
	p.mu.Unlock()
}

// OnPaused implements the classification and gating described in 4.5.
func (p *PauseState) OnPaused(ctx context.Context, ev rdp.PausedEvent) {
	p.mu.Lock()
	p.frames.Reset()
	p.vars.ResetEpoch()
	p.currentException = nil
	p.lastPaused = &ev
	p.currentFrames = ev.CallFrames

	for _, f := range ev.CallFrames {
		p.frames.New(f)
	}

	expecting := p.expectingStopReason
	p.mu.Unlock()

	var reason string
	var text string

	switch {
	case ev.Reason == "exception":
		p.mu.Lock()
		p.currentException = ev.Data
		p.mu.Unlock()
		reason = ReasonException
		text = firstLine(describeRemoteObject(ev.Data))
	case ev.Reason == "promiseRejection":
		p.mu.Lock()
		p.currentException = ev.Data
		p.mu.Unlock()
		reason = ReasonPromiseRejection
		text = firstLine(describeRemoteObject(ev.Data))
	case len(ev.HitBreakpoints) > 0:
		reason = ReasonBreakpoint
		if p.classifyHitCondition(ev.HitBreakpoints, expecting == "") {
			// shouldPause was false for some hit id and the user didn't
			// just step/pause: treat this as a silent resume.
			_ = p.debugger.Resume(ctx)
			return
		}
	case expecting != "":
		reason = expecting
	default:
		reason = ReasonDebuggerStatement
	}

	p.mu.Lock()
	p.expectingStopReason = ""
	p.mu.Unlock()

	if p.smartStepGate(ctx, reason) {
		return
	}

	p.waitForStepResponse()

	p.mu.Lock()
	p.lastStopReason = reason
	p.lastStopText = text
	p.mu.Unlock()

	p.events <- &dap.StoppedEvent{
		Event: dap.Event{Event: "stopped"},
		Body: dap.StoppedEventBody{
			Reason:   reason,
			ThreadId: 1,
			Text:     text,
		},
	}
}

// Rerender re-sends a StoppedEvent for the current pause using the last
// classified reason/text, without replaying hit-condition counting or the
// smart-step/Resume gates in OnPaused. Used when something about the
// paused view changes (e.g. a skip-file toggle) but the debuggee is still
// stopped at the same location.
func (p *PauseState) Rerender() {
	p.mu.Lock()
	reason, text := p.lastStopReason, p.lastStopText
	p.mu.Unlock()

	p.events <- &dap.StoppedEvent{
		Event: dap.Event{Event: "stopped"},
		Body: dap.StoppedEventBody{
			Reason:   reason,
			ThreadId: 1,
			Text:     text,
		},
	}
}

// classifyHitCondition increments every hit-condition counter named in
// hitBreakpoints and reports whether the pause should be suppressed:
// true means at least one hit-condition said "don't pause yet" and the
// pause wasn't already expected by a user step/pause request.
func (p *PauseState) classifyHitCondition(ids []string, notExpecting bool) bool {
	suppress := false
	for _, id := range ids {
		hc, ok := p.bps.HitCondition(id)
		if !ok {
			continue
		}
		if !hc.Hit() {
			suppress = true
		}
	}
	return suppress && notExpecting
}

// smartStepGate implements the auto-skip: if sourceMaps+smartStep are on
// and this was a step landing in an unmapped frame, silently step again
// instead of stopping.
func (p *PauseState) smartStepGate(ctx context.Context, reason string) bool {
	if !(p.sourceMaps && p.smartStep) || reason != ReasonStep {
		return false
	}
	if len(p.currentFrames) == 0 {
		return false
	}
	top := p.currentFrames[0]
	if p.hasAuthoredMapping != nil && p.hasAuthoredMapping(ctx, top.Location) {
		if p.smartStepSkips > 0 {
			logrus.Infof("SmartStep: Skipped %d steps", p.smartStepSkips)
			p.smartStepSkips = 0
		}
		return false
	}

	p.smartStepSkips++
	p.BeginStep(ReasonStep, nil)
	if err := p.debugger.StepInto(ctx); err != nil {
		logrus.WithField("error", smartStepErrorDetail(err)).Warn("smart-step stepInto failed")
	}
	return true
}

// smartStepErrorDetail logs the error's stack when present, otherwise
// the error itself — the fixed form of a precedence quirk in the
// original implementation that logged undefined whenever err was falsy.
func smartStepErrorDetail(err error) string {
	type stackTracer interface{ StackTrace() errors.StackTrace }
	if st, ok := err.(stackTracer); ok {
		return fmt.Sprintf("%s: %+v", err.Error(), st.StackTrace())
	}
	return err.Error()
}

func (p *PauseState) waitForStepResponse() {
	p.mu.Lock()
	ch := p.currentStep
	p.mu.Unlock()
	if ch == nil {
		return
	}
	select {
	case <-ch:
	case <-time.After(stepResponseCeiling):
	}
}

// OnResumed handles Debugger.resumed: if a step is in progress it opens
// a 50ms quiescence window evaluations wait on; otherwise it emits
// Continued directly.
func (p *PauseState) OnResumed() {
	p.mu.Lock()
	stepping := p.currentStep != nil
	p.currentStep = nil
	if stepping {
		p.quiescence = make(chan struct{})
		q := p.quiescence
		p.mu.Unlock()
		go func() {
			time.Sleep(quiescenceWindow)
			close(q)
		}()
		return
	}
	p.mu.Unlock()

	p.events <- &dap.ContinuedEvent{
		Event: dap.Event{Event: "continued"},
		Body:  dap.ContinuedEventBody{ThreadId: 1},
	}
}

// WaitQuiescent blocks until the post-step quiescence window (if any)
// has elapsed, used by the evaluation path before issuing evaluate
// calls.
func (p *PauseState) WaitQuiescent(ctx context.Context) {
	p.mu.Lock()
	q := p.quiescence
	p.mu.Unlock()
	if q == nil {
		return
	}
	select {
	case <-q:
	case <-ctx.Done():
	}
}

func (p *PauseState) CurrentFrames() []rdp.CallFrame {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentFrames
}

func (p *PauseState) CurrentException() *rdp.RemoteObject {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentException
}

func (p *PauseState) LastPaused() (*rdp.PausedEvent, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastPaused, p.lastPaused != nil
}

func (p *PauseState) FrameByHandle(id int) (rdp.CallFrame, bool) {
	return p.frames.Get(id)
}

func (p *PauseState) NewFrameHandle(f rdp.CallFrame) int { return p.frames.New(f) }

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func describeRemoteObject(o *rdp.RemoteObject) string {
	if o == nil {
		return ""
	}
	if o.Description != "" {
		return o.Description
	}
	return o.ClassName
}
