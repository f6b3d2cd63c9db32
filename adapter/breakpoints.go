package adapter

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/go-dap"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/chromedap/bridge/rdp"
	"github.com/chromedap/bridge/transform"
)

var errInvalidHitCondition = errors.New("invalid hit condition")

const setBreakpointsTimeout = 5 * time.Second

// PendingBreakpoint is a breakpoint request the engine couldn't resolve
// to a loaded script yet. It's drained once a matching script (directly
// or via its source map) shows up.
type PendingBreakpoint struct {
	Args         dap.SetBreakpointsArguments
	RequestSeq   int
	AssignedIDs  []int
}

// committedEntry remembers enough about one breakpoint set on the
// runtime to clear it again on the next setBreakpoints call for its URL.
type committedEntry struct {
	runtimeID string
	hitCond   *HitConditionBreakpoint
}

// HitConditionBreakpoint tracks a pause-count predicate compiled from a
// DAP hitCondition string.
type HitConditionBreakpoint struct {
	numHits     int
	shouldPause func(n int) bool
}

var hitConditionRE = regexp.MustCompile(`^(>|>=|=|<|<=|%)?\s*([0-9]+)$`)

// compileHitCondition parses a hitCondition string per the grammar
// ^(>|>=|=|<|<=|%)?\s*([0-9]+)$ — default operator >=, "=" behaves as
// "==" (preserved from the source even though it reads like a no-op),
// and "%" means "every N hits".
func compileHitCondition(raw string) (*HitConditionBreakpoint, error) {
	m := hitConditionRE.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return nil, errInvalidHitCondition
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return nil, errInvalidHitCondition
	}

	op := m[1]
	if op == "" {
		op = ">="
	}

	var pred func(hits int) bool
	switch op {
	case ">":
		pred = func(hits int) bool { return hits > n }
	case ">=":
		pred = func(hits int) bool { return hits >= n }
	case "=":
		pred = func(hits int) bool { return hits == n }
	case "<":
		pred = func(hits int) bool { return hits < n }
	case "<=":
		pred = func(hits int) bool { return hits <= n }
	case "%":
		pred = func(hits int) bool { return n != 0 && hits%n == 0 }
	}

	return &HitConditionBreakpoint{shouldPause: pred}, nil
}

// Hit records one breakpoint hit and reports whether the adapter should
// actually stop.
func (h *HitConditionBreakpoint) Hit() bool {
	h.numHits++
	return h.shouldPause(h.numHits)
}

// urlQueue is a single-slot future chain: each call waits for the prior
// one queued for the same URL, runs its work, and hands the baton on.
// Timeouts log but never break the chain, matching the spec's
// serialization requirement.
type urlQueue struct {
	mu    sync.Mutex
	tails map[string]chan struct{}
}

func newURLQueue() *urlQueue {
	return &urlQueue{tails: make(map[string]chan struct{})}
}

func (q *urlQueue) run(url string, fn func()) {
	q.mu.Lock()
	prev := q.tails[url]
	done := make(chan struct{})
	q.tails[url] = done
	q.mu.Unlock()

	go func() {
		defer close(done)
		if prev != nil {
			<-prev
		}

		workDone := make(chan struct{})
		go func() {
			defer close(workDone)
			fn()
		}()

		select {
		case <-workDone:
		case <-time.After(setBreakpointsTimeout):
			logrus.WithField("url", url).Warn("setBreakpoints exceeded 5s, continuing to wait for runtime")
			<-workDone
		}
	}()
}

// BreakpointEngine is the hub for DAP SetBreakpoints requests: it owns
// pending and committed bookkeeping, hit-condition compilation, and the
// per-URL serialized clear-then-add pipeline.
type BreakpointEngine struct {
	mu       sync.Mutex
	pending  map[string][]*PendingBreakpoint
	committed map[string][]committedEntry
	hitConds map[string]*HitConditionBreakpoint // keyed by runtime breakpoint id

	ids *ReverseHandleTable[string, struct{}] // "url:line:col" -> DAP id

	debugger *rdp.Debugger
	path     transform.PathTransformer
	srcMap   transform.SourceMapTransformer
	lineCol  transform.LineColTransformer
	sources  *HandleTable[SourceContainer]

	queue *urlQueue
}

func NewBreakpointEngine(debugger *rdp.Debugger, path transform.PathTransformer, srcMap transform.SourceMapTransformer, lineCol transform.LineColTransformer, sources *HandleTable[SourceContainer]) *BreakpointEngine {
	return &BreakpointEngine{
		pending:   make(map[string][]*PendingBreakpoint),
		committed: make(map[string][]committedEntry),
		hitConds:  make(map[string]*HitConditionBreakpoint),
		ids:       NewReverseHandleTable[string, struct{}](),
		debugger:  debugger,
		path:      path,
		srcMap:    srcMap,
		lineCol:   lineCol,
		sources:   sources,
		queue:     newURLQueue(),
	}
}

// SetBreakpoints is the C4 hub described in 4.4. ids, when non-nil, is
// used to assign stable DAP ids while draining pending breakpoints
// instead of minting fresh ones.
func (b *BreakpointEngine) SetBreakpoints(ctx context.Context, args dap.SetBreakpointsArguments, requestSeq int, ids []int) *dap.SetBreakpointsResponse {
	resp := &dap.SetBreakpointsResponse{}

	targetURL, resolvable := b.resolveTargetURL(ctx, args)
	if !resolvable {
		b.mu.Lock()
		b.pending[args.Source.Path] = append(b.pending[args.Source.Path], &PendingBreakpoint{
			Args: args, RequestSeq: requestSeq, AssignedIDs: ids,
		})
		b.mu.Unlock()

		resp.Body.Breakpoints = make([]dap.Breakpoint, len(args.Breakpoints))
		for i, bp := range args.Breakpoints {
			id := b.allocID(ids, i, targetURL, bp.Line, bp.Column)
			resp.Body.Breakpoints[i] = dap.Breakpoint{Id: id, Verified: false, Line: bp.Line, Column: bp.Column}
		}
		return resp
	}

	result := make(chan []dap.Breakpoint, 1)
	b.queue.run(targetURL, func() {
		result <- b.clearAndAdd(ctx, targetURL, args, ids)
	})

	select {
	case bps := <-result:
		resp.Body.Breakpoints = bps
	case <-ctx.Done():
		resp.Body.Breakpoints = make([]dap.Breakpoint, len(args.Breakpoints))
	}
	return resp
}

// resolveTargetURL implements the 4.4 step-2 lookup order: a source
// handle first (sourceReference points at a VM*-style script the DAP
// client has no path for), then the source-map's generated path, then
// the plain client-path mapping.
func (b *BreakpointEngine) resolveTargetURL(ctx context.Context, args dap.SetBreakpointsArguments) (string, bool) {
	if args.Source.SourceReference != 0 {
		if b.sources == nil {
			return "", false
		}
		sc, ok := b.sources.Get(args.Source.SourceReference)
		if !ok || sc.ScriptID == "" {
			return "", false
		}
		return "VM" + sc.ScriptID, true
	}
	if url, ok := b.srcMap.GetGeneratedPathFromAuthoredPath(ctx, args.Source.Path); ok {
		return url, true
	}
	if url, ok := b.path.ClientPathToTarget(ctx, args.Source.Path); ok {
		return url, true
	}
	return "", false
}

func (b *BreakpointEngine) clearAndAdd(ctx context.Context, url string, args dap.SetBreakpointsArguments, ids []int) []dap.Breakpoint {
	b.mu.Lock()
	prior := b.committed[url]
	b.committed[url] = nil
	b.mu.Unlock()

	// Clear one at a time: concurrent clears trip a known runtime bug.
	for _, e := range prior {
		_ = b.debugger.RemoveBreakpoint(ctx, e.runtimeID)
		b.ids.Delete(e.runtimeID)
		b.mu.Lock()
		delete(b.hitConds, e.runtimeID)
		b.mu.Unlock()
	}

	out := make([]dap.Breakpoint, len(args.Breakpoints))
	var newCommitted []committedEntry
	for i, bp := range args.Breakpoints {
		dapBP, entry := b.add(ctx, url, bp)
		dapBP.Id = b.allocID(ids, i, url, bp.Line, bp.Column)
		out[i] = dapBP
		if entry != nil {
			newCommitted = append(newCommitted, *entry)
		}
	}

	b.mu.Lock()
	b.committed[url] = newCommitted
	b.mu.Unlock()

	return out
}

func (b *BreakpointEngine) allocID(ids []int, i int, url string, line, col int) int {
	if ids != nil && i < len(ids) && ids[i] != 0 {
		return ids[i]
	}
	key := url + ":" + strconv.Itoa(line) + ":" + strconv.Itoa(col)
	id, _ := b.ids.IDFor(key, struct{}{})
	return id
}

// add commits a single breakpoint to the runtime, returning the DAP
// breakpoint (sans final id) and the committed bookkeeping entry if the
// call produced a runtime id worth tracking.
func (b *BreakpointEngine) add(ctx context.Context, url string, bp dap.SourceBreakpoint) (dap.Breakpoint, *committedEntry) {
	line := b.lineCol.ConvertClientLineToDebugger(bp.Line)
	col := b.lineCol.ConvertClientColumnToDebugger(bp.Column)

	if b.lineCol.ColumnBreakpointsSupported() {
		if locs, err := b.debugger.GetPossibleBreakpoints(ctx, rdp.GetPossibleBreakpointsParams{
			Start: rdp.Location{LineNumber: line, ColumnNumber: col},
		}); err == nil && len(locs) > 0 {
			line, col = nearestLocation(locs, line, col)
		}
	}

	var runtimeID string
	var actual rdp.Location
	var err error

	if strings.HasPrefix(url, "VM") {
		var res rdp.SetBreakpointResult
		res, err = b.debugger.SetBreakpoint(ctx, rdp.SetBreakpointParams{
			ScriptId: strings.TrimPrefix(url, "VM"), LineNumber: line, ColumnNumber: col, Condition: bp.Condition,
		})
		runtimeID, actual = res.BreakpointId, res.ActualLocation
	} else {
		var res rdp.SetBreakpointByURLResult
		res, err = b.debugger.SetBreakpointByUrl(ctx, rdp.SetBreakpointByURLParams{
			URLRegex: pathToRegex(url), LineNumber: line, ColumnNumber: col, Condition: bp.Condition,
		})
		runtimeID = res.BreakpointId
		if len(res.Locations) > 0 {
			actual = res.Locations[0]
		}
		// With no locations yet, the breakpoint is resolved later via
		// breakpointResolved.
	}

	if err != nil && strings.Contains(err.Error(), "Breakpoint at specified location already exists.") {
		err = nil
		actual = rdp.Location{LineNumber: line, ColumnNumber: col}
	}

	dapBP := dap.Breakpoint{Line: b.lineCol.ConvertDebuggerLineToClient(actual.LineNumber), Column: b.lineCol.ConvertDebuggerColumnToClient(actual.ColumnNumber)}
	if err != nil || (actual == rdp.Location{}) {
		dapBP.Verified = false
		if err != nil {
			dapBP.Message = err.Error()
		}
		return dapBP, nil
	}
	dapBP.Verified = true

	var entry *committedEntry
	if runtimeID != "" {
		entry = &committedEntry{runtimeID: runtimeID}
		if bp.HitCondition != "" {
			hc, hcErr := compileHitCondition(bp.HitCondition)
			if hcErr != nil {
				dapBP.Verified = false
				dapBP.Message = invalidHitCondition(bp.HitCondition)
				return dapBP, entry
			}
			entry.hitCond = hc
			b.mu.Lock()
			b.hitConds[runtimeID] = hc
			b.mu.Unlock()
		}
	}
	return dapBP, entry
}

// nearestLocation applies the tie-break rule: same-line column >=
// requested preferred, else closest on line.
func nearestLocation(locs []rdp.BreakLocation, line, col int) (int, int) {
	best := locs[0]
	bestDist := 1 << 30
	haveSameLineGE := false
	for _, l := range locs {
		if l.LineNumber != line {
			continue
		}
		if l.ColumnNumber >= col {
			d := l.ColumnNumber - col
			if !haveSameLineGE || d < bestDist {
				best, bestDist, haveSameLineGE = l, d, true
			}
			continue
		}
		if !haveSameLineGE {
			d := col - l.ColumnNumber
			if d < bestDist {
				best, bestDist = l, d
			}
		}
	}
	return best.LineNumber, best.ColumnNumber
}

// pathToRegex builds the urlRegex Debugger.setBreakpointByUrl expects
// from a plain URL, so the breakpoint rebinds automatically on reload.
func pathToRegex(url string) string {
	return "^" + regexp.QuoteMeta(url) + "$"
}

// OnBreakpointResolved handles a later-bound breakpoint: append it to
// the URL's committed list and let the caller emit the DAP event.
func (b *BreakpointEngine) OnBreakpointResolved(url string, ev rdp.BreakpointResolvedEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.committed[url] = append(b.committed[url], committedEntry{runtimeID: ev.BreakpointId})
}

// HitCondition looks up the compiled predicate for a runtime breakpoint
// id, if one was set.
func (b *BreakpointEngine) HitCondition(runtimeID string) (*HitConditionBreakpoint, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	hc, ok := b.hitConds[runtimeID]
	return hc, ok
}

// DrainPending returns and removes every PendingBreakpoint parked
// against sourcePath, for the registry to re-submit once a script makes
// the path resolvable.
func (b *BreakpointEngine) DrainPending(sourcePath string) []*PendingBreakpoint {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.pending[sourcePath]
	delete(b.pending, sourcePath)
	return out
}

// Clear drops all committed and pending state, used on
// Runtime.executionContextsCleared.
func (b *BreakpointEngine) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = make(map[string][]*PendingBreakpoint)
	b.committed = make(map[string][]committedEntry)
	b.hitConds = make(map[string]*HitConditionBreakpoint)
}
