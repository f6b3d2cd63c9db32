package adapter

import (
	stderrors "errors"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyHitConditionSuppressesUntilThreshold(t *testing.T) {
	bps := NewBreakpointEngine(nil, nil, nil, nil, nil)
	hc, err := compileHitCondition("> 2")
	require.NoError(t, err)
	bps.hitConds["rt-1"] = hc

	p := &PauseState{bps: bps}

	assert.True(t, p.classifyHitCondition([]string{"rt-1"}, true), "hit #1 must be suppressed, threshold is >2")
	assert.True(t, p.classifyHitCondition([]string{"rt-1"}, true), "hit #2 must be suppressed")
	assert.False(t, p.classifyHitCondition([]string{"rt-1"}, true), "hit #3 satisfies >2 and must pause")
}

func TestClassifyHitConditionNeverSuppressesAnExplicitStepOrPause(t *testing.T) {
	bps := NewBreakpointEngine(nil, nil, nil, nil, nil)
	hc, err := compileHitCondition("> 100")
	require.NoError(t, err)
	bps.hitConds["rt-1"] = hc

	p := &PauseState{bps: bps}

	assert.False(t, p.classifyHitCondition([]string{"rt-1"}, false), "an explicit step/pause must never be silently resumed")
}

func TestSmartStepErrorDetailPrefersStackTrace(t *testing.T) {
	wrapped := errors.Wrap(errors.New("boom"), "smart-step")
	detail := smartStepErrorDetail(wrapped)
	assert.Contains(t, detail, "smart-step: boom")
	assert.Contains(t, detail, "pause_test.go", "a real pkg/errors stack trace must be formatted in")

	plain := stderrors.New("boom")
	assert.Equal(t, "boom", smartStepErrorDetail(plain))
}
