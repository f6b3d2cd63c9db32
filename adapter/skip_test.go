package adapter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chromedap/bridge/rdp"
	"github.com/chromedap/bridge/transform"
)

func authoredSource(path string) transform.SourcePathDetail {
	return transform.SourcePathDetail{Path: path}
}

func authoredSourceAt(path string, line, col int) transform.SourcePathDetail {
	return transform.SourcePathDetail{Path: path, StartLine: line, StartColumn: col}
}

func TestGlobToRegexpMatchesShellStyle(t *testing.T) {
	cases := []struct {
		glob  string
		path  string
		match bool
	}{
		{"**/node_modules/**", "/app/node_modules/lodash/index.js", true},
		{"**/node_modules/**", "/app/src/index.js", false},
		{"*.min.js", "bundle.min.js", true},
		{"*.min.js", "bundle.js", false},
		{"/app/vendor/*.js", "/app/vendor/jquery.js", true},
		{"/app/vendor/*.js", "/app/vendor/sub/jquery.js", false},
	}

	for _, tc := range cases {
		re, err := globToRegexp(tc.glob)
		require.NoError(t, err, tc.glob)
		assert.Equal(t, tc.match, re.MatchString(tc.path), "%q against %q", tc.glob, tc.path)
	}
}

func TestCompilePatternsAggregatesErrorsAndIgnoresNegation(t *testing.T) {
	s := NewSkipEngine(rdp.NewDebugger(newFakeRDPClient()))

	err := s.CompilePatterns(
		[]string{"**/node_modules/**", "!**/keep/**"},
		[]string{"(unterminated"},
	)
	require.Error(t, err, "a malformed regex and a negated glob should both surface")

	skip, ok := s.Classify("/app/node_modules/foo.js")
	require.True(t, ok)
	assert.True(t, skip)

	_, ok = s.Classify("/app/keep/foo.js")
	assert.False(t, ok, "negated globs are not supported and must not produce a pattern")
}

func TestClassifyExplicitOverrideBeatsPattern(t *testing.T) {
	s := NewSkipEngine(rdp.NewDebugger(newFakeRDPClient()))
	require.NoError(t, s.CompilePatterns([]string{"**/lib/**"}, nil))

	s.SetStatus("/app/lib/special.js", false)

	skip, ok := s.Classify("/app/lib/special.js")
	require.True(t, ok)
	assert.False(t, skip, "an explicit per-path status must win over a matching pattern")

	skip, ok = s.Classify("/app/lib/other.js")
	require.True(t, ok)
	assert.True(t, skip)
}

func TestAddRemovePatternIsInvolution(t *testing.T) {
	s := NewSkipEngine(rdp.NewDebugger(newFakeRDPClient()))

	_, ok := s.Classify("/app/foo.js")
	assert.False(t, ok)

	s.addPattern("/app/foo.js")
	skip, ok := s.Classify("/app/foo.js")
	require.True(t, ok)
	assert.True(t, skip)

	s.removePattern("/app/foo.js")
	_, ok = s.Classify("/app/foo.js")
	assert.False(t, ok, "removePattern must undo addPattern exactly")
}

func TestComputeAndSubmitRangesClearsBeforeSetting(t *testing.T) {
	client := newFakeRDPClient()
	s := NewSkipEngine(rdp.NewDebugger(client))
	require.NoError(t, s.CompilePatterns([]string{"**/lib/**"}, nil))

	sc := &Script{ID: "1", URL: "/app/main.js"}
	sc.AuthoredSources = append(sc.AuthoredSources,
		authoredSourceAt("/app/lib/vendor.js", 10, 4),
		authoredSourceAt("/app/app.js", 25, 0),
	)

	s.ComputeAndSubmitRanges(context.Background(), sc)

	calls := client.callsFor("Debugger.setBlackboxedRanges")
	require.Len(t, calls, 2, "must call setBlackboxedRanges twice: once to clear, once with the real ranges")

	params := calls[1].Params.(struct {
		ScriptId  string                `json:"scriptId"`
		Positions []rdp.ScriptPosition `json:"positions"`
	})
	require.Len(t, params.Positions, 2, "one boundary per classification flip")
	assert.Equal(t, rdp.ScriptPosition{LineNumber: 10, ColumnNumber: 4}, params.Positions[0], "boundary must sit at the authored source's own start, not {0,0}")
	assert.Equal(t, rdp.ScriptPosition{LineNumber: 25, ColumnNumber: 0}, params.Positions[1])
}
