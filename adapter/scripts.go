package adapter

import (
	"context"
	"fmt"
	"regexp"
	"sync"

	"github.com/chromedap/bridge/rdp"
	"github.com/chromedap/bridge/transform"
)

// Script is one parsed script as known to the registry: its runtime
// identity plus whatever the source map has revealed about its authored
// sources.
type Script struct {
	ID           string
	URL          string
	SourceMapURL string

	// AuthoredSources lists the authored paths this script's source map
	// contributes, in source-map order. Empty if sourceMaps is off or
	// the script carries none.
	AuthoredSources []transform.SourcePathDetail
}

// ScriptRegistry owns the id- and URL-keyed script maps plus the
// one-time column-breakpoint probe, matching the spec's "store in both
// id-keyed and URL-keyed maps" / "probing runs exactly once per
// session" requirements.
type ScriptRegistry struct {
	mu      sync.RWMutex
	byID    map[string]*Script
	byURL   map[string]*Script

	probed bool

	debugger *rdp.Debugger
	path     transform.PathTransformer
	srcMap   transform.SourceMapTransformer
	lineCol  transform.LineColTransformer
	host     transform.Host

	skip *SkipEngine

	onDrain func(ctx context.Context, sourcePath string)
}

var driveLetterRE = regexp.MustCompile(`^[a-zA-Z]:`)

func NewScriptRegistry(debugger *rdp.Debugger, path transform.PathTransformer, srcMap transform.SourceMapTransformer, lineCol transform.LineColTransformer, host transform.Host, skip *SkipEngine) *ScriptRegistry {
	return &ScriptRegistry{
		byID:     make(map[string]*Script),
		byURL:    make(map[string]*Script),
		debugger: debugger,
		path:     path,
		srcMap:   srcMap,
		lineCol:  lineCol,
		host:     host,
		skip:     skip,
	}
}

// fixDriveLetterCasing normalizes a Windows drive-letter prefix (file
// URLs are reported with inconsistent casing by different runtimes) to
// uppercase, the convention the rest of the bridge assumes.
func fixDriveLetterCasing(url string) string {
	if m := driveLetterRE.FindString(url); m != "" && m[0] >= 'a' && m[0] <= 'z' {
		return string(m[0]-32) + url[1:]
	}
	return url
}

// OnScriptParsed handles Debugger.scriptParsed: registers the script,
// runs the one-time column-breakpoint probe on the very first script,
// and drains any breakpoints pending against its authored sources.
func (r *ScriptRegistry) OnScriptParsed(ctx context.Context, ev rdp.ScriptParsedEvent) {
	url := fixDriveLetterCasing(ev.Url)
	if url == "" {
		url = fmt.Sprintf("VM%s", ev.ScriptId)
	}

	s := &Script{ID: ev.ScriptId, URL: url, SourceMapURL: ev.SourceMapURL}
	if ev.SourceMapURL != "" {
		s.AuthoredSources = r.srcMap.AllSourcePathDetails(ctx, url)
	}

	r.mu.Lock()
	first := !r.probed
	r.probed = true
	r.byID[s.ID] = s
	r.byURL[s.URL] = s
	r.mu.Unlock()

	if first {
		r.probeColumnBreakpoints(ctx, s)
	}

	if r.skip != nil {
		r.skip.RecordScript(ctx, s)
	}

	r.drainPending(ctx, s)
}

func (r *ScriptRegistry) probeColumnBreakpoints(ctx context.Context, s *Script) {
	_, err := r.debugger.GetPossibleBreakpoints(ctx, rdp.GetPossibleBreakpointsParams{
		Start: rdp.Location{ScriptId: s.ID, LineNumber: 0, ColumnNumber: 0},
	})
	r.lineCol.SetColumnBreakpointsSupported(err == nil)
}

func (r *ScriptRegistry) drainPending(ctx context.Context, s *Script) {
	if r.host == nil {
		return
	}
	for _, src := range s.AuthoredSources {
		r.host.DrainPendingBreakpoints(ctx, src.Path)
	}
	r.host.DrainPendingBreakpoints(ctx, s.URL)
}

func (r *ScriptRegistry) ByID(id string) (*Script, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[id]
	return s, ok
}

func (r *ScriptRegistry) ByURL(url string) (*Script, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byURL[url]
	return s, ok
}

// URLFor implements transform.Host's companion need: resolve a scriptId
// to its current URL.
func (r *ScriptRegistry) URLFor(scriptID string) (string, bool) {
	s, ok := r.ByID(scriptID)
	if !ok {
		return "", false
	}
	return s.URL, true
}

func (r *ScriptRegistry) All() []*Script {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Script, 0, len(r.byID))
	for _, s := range r.byID {
		out = append(out, s)
	}
	return out
}

// Clear drops every script, used on Runtime.executionContextsCleared.
func (r *ScriptRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID = make(map[string]*Script)
	r.byURL = make(map[string]*Script)
	r.probed = false
}
