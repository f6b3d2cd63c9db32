package transform

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityPathTransformerTrimsFileScheme(t *testing.T) {
	pt := NewIdentityPathTransformer()
	ctx := context.Background()

	target, ok := pt.ClientPathToTarget(ctx, "/app/main.js")
	require.True(t, ok)
	assert.Equal(t, "/app/main.js", target)

	clientPath, ok := pt.TargetUrlToClientPath(ctx, "file:///app/main.js")
	require.True(t, ok)
	assert.Equal(t, "/app/main.js", clientPath)

	_, ok = pt.ClientPathToTarget(ctx, "")
	assert.False(t, ok)
}

func TestNoopSourceMapTransformerNeverMaps(t *testing.T) {
	sm := NewNoopSourceMapTransformer()
	ctx := context.Background()

	_, _, _, ok := sm.MapToAuthored(ctx, "app.js", 1, 2)
	assert.False(t, ok)

	_, ok = sm.GetGeneratedPathFromAuthoredPath(ctx, "app.ts")
	assert.False(t, ok)

	assert.Empty(t, sm.AllSources(ctx, "app.js"))
	assert.Empty(t, sm.AllSourcePathDetails(ctx, "app.js"))
}

func TestLineColTransformerOriginConversion(t *testing.T) {
	lc := NewLineColTransformer(true, true)

	assert.Equal(t, 0, lc.ConvertClientLineToDebugger(1), "1-based client line 1 is debugger line 0")
	assert.Equal(t, 1, lc.ConvertDebuggerLineToClient(0))
	assert.Equal(t, 4, lc.ConvertClientColumnToDebugger(5))
	assert.Equal(t, 5, lc.ConvertDebuggerColumnToClient(4))

	assert.False(t, lc.ColumnBreakpointsSupported())
	lc.SetColumnBreakpointsSupported(true)
	assert.True(t, lc.ColumnBreakpointsSupported())
}

func TestLineColTransformerZeroBasedClient(t *testing.T) {
	lc := NewLineColTransformer(false, false)

	assert.Equal(t, 3, lc.ConvertClientLineToDebugger(3), "0-based client passes lines through unchanged")
	assert.Equal(t, 3, lc.ConvertDebuggerLineToClient(3))
}
