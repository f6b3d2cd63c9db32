package adapter

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/chromedap/bridge/rdp"
)

// SkipEngine owns the skip/blackbox classification described for
// skipFiles: a set of explicit per-path overrides plus a pattern list
// compiled from glob-style skipFiles config, submitted to the runtime
// as blackboxed ranges.
type SkipEngine struct {
	mu        sync.RWMutex
	statuses  map[string]bool
	patterns  []*regexp.Regexp

	debugger *rdp.Debugger
	warnedUnsupported bool
}

func NewSkipEngine(debugger *rdp.Debugger) *SkipEngine {
	return &SkipEngine{
		statuses: make(map[string]bool),
		debugger: debugger,
	}
}

// CompilePatterns compiles skipFiles glob entries (ignoring ones
// prefixed with "!", which disable rather than enable skipping and are
// not yet supported) plus verbatim skipFileRegExps. Warnings for
// ignored negated globs and errors for malformed regexes are both
// aggregated via a multierror so the caller can log every problem
// instead of bailing on the first.
func (s *SkipEngine) CompilePatterns(skipFiles, skipFileRegExps []string) error {
	var result *multierror.Error
	var compiled []*regexp.Regexp

	for _, g := range skipFiles {
		if strings.HasPrefix(g, "!") {
			result = multierror.Append(result, fmt.Errorf("skipFiles negation %q is not supported, ignoring", g))
			continue
		}
		re, err := globToRegexp(g)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("skipFiles glob %q: %w", g, err))
			continue
		}
		compiled = append(compiled, re)
	}

	for _, raw := range skipFileRegExps {
		re, err := regexp.Compile(raw)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("skipFileRegExps %q: %w", raw, err))
			continue
		}
		compiled = append(compiled, re)
	}

	s.mu.Lock()
	s.patterns = compiled
	s.mu.Unlock()

	return result.ErrorOrNil()
}

// globToRegexp translates a shell-style glob (*, ?, and character
// classes) into an anchored regexp.
func globToRegexp(glob string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	for i := 0; i < len(glob); i++ {
		switch c := glob[i]; c {
		case '*':
			if i+1 < len(glob) && glob[i+1] == '*' {
				b.WriteString(".*")
				i++
			} else {
				b.WriteString("[^/]*")
			}
		case '?':
			b.WriteString(".")
		case '.', '+', '(', ')', '|', '^', '$', '\\':
			b.WriteString("\\")
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}

// Classify implements the three-tier lookup: explicit override, then
// pattern match, then undefined (reported as ok=false).
func (s *SkipEngine) Classify(path string) (skip bool, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if v, explicit := s.statuses[path]; explicit {
		return v, true
	}
	for _, re := range s.patterns {
		if re.MatchString(path) {
			return true, true
		}
	}
	return false, false
}

func (s *SkipEngine) SetStatus(path string, skip bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[path] = skip
}

// addPattern/removePattern back toggleSkipFileStatus's "edit the
// pattern list" step: future scripts under this path inherit the
// decision without needing an explicit status entry for each one.
func (s *SkipEngine) addPattern(path string) {
	re, err := regexp.Compile("^" + regexp.QuoteMeta(path) + "$")
	if err != nil {
		return
	}
	s.mu.Lock()
	s.patterns = append(s.patterns, re)
	s.mu.Unlock()
}

func (s *SkipEngine) removePattern(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	target := "^" + regexp.QuoteMeta(path) + "$"
	out := s.patterns[:0]
	for _, re := range s.patterns {
		if re.String() != target {
			out = append(out, re)
		}
	}
	s.patterns = out
}

// RecordScript computes and submits blackboxed ranges for a newly
// parsed script once its authored sources are known.
func (s *SkipEngine) RecordScript(ctx context.Context, sc *Script) {
	if len(sc.AuthoredSources) == 0 {
		return
	}
	s.ComputeAndSubmitRanges(ctx, sc)
}

// ComputeAndSubmitRanges walks the authored sources in source-map order
// and emits a blackboxed-range boundary each time the classification
// flips, matching the "parentIsSkipped" walk in the spec.
func (s *SkipEngine) ComputeAndSubmitRanges(ctx context.Context, sc *Script) {
	parentSkipped, _ := s.Classify(sc.URL)

	var positions []rdp.ScriptPosition
	inLib := parentSkipped
	if parentSkipped {
		positions = append(positions, rdp.ScriptPosition{LineNumber: 0, ColumnNumber: 0})
	}

	for _, src := range sc.AuthoredSources {
		skip, ok := s.Classify(src.Path)
		if !ok {
			skip = parentSkipped
		}
		if skip != inLib {
			positions = append(positions, rdp.ScriptPosition{LineNumber: src.StartLine, ColumnNumber: src.StartColumn})
			inLib = skip
		}
	}

	// Clear then set: a runtime bug makes the first setBlackboxedRanges
	// after a reload stick to stale ranges unless it's preceded by a
	// call with an empty list.
	_ = s.debugger.SetBlackboxedRanges(ctx, sc.ID, nil)

	if err := s.debugger.SetBlackboxedRanges(ctx, sc.ID, positions); err != nil {
		s.mu.Lock()
		warned := s.warnedUnsupported
		s.warnedUnsupported = true
		s.mu.Unlock()
		if !warned {
			logrus.WithError(err).Warn("runtime does not support setBlackboxedRanges, skip-file decisions will not affect stepping")
		}
	}
}

// SyncBlackboxPatterns pushes the compiled pattern list to the runtime
// as Debugger.setBlackboxPatterns, ignoring an unsupported-runtime
// rejection beyond a single logged warning.
func (s *SkipEngine) SyncBlackboxPatterns(ctx context.Context) {
	s.mu.RLock()
	raw := make([]string, len(s.patterns))
	for i, re := range s.patterns {
		raw[i] = re.String()
	}
	s.mu.RUnlock()

	if err := s.debugger.SetBlackboxPatterns(ctx, raw); err != nil {
		logrus.WithError(err).Warn("runtime does not support setBlackboxPatterns")
	}
}

// DeemphasizeOrigin returns the origin string stack-frame
// post-processing attaches when a frame is skipped, or "" if it isn't.
func (s *SkipEngine) DeemphasizeOrigin(path string, smartStep, hasSourceMapping bool) string {
	if skip, ok := s.Classify(path); ok && skip {
		return "(skipped by 'skipFiles')"
	}
	if smartStep && !hasSourceMapping {
		return "(skipped by 'smartStep')"
	}
	return ""
}
