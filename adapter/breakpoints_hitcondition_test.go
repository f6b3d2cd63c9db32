package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chromedap/bridge/rdp"
)

func TestCompileHitConditionOperators(t *testing.T) {
	cases := []struct {
		raw        string
		hitCounts  []int // numHits sequence fed to Hit()
		wantPauses []bool
	}{
		{"3", []int{1, 2, 3, 4}, []bool{false, false, true, true}},          // bare number defaults to >=
		{"> 2", []int{1, 2, 3}, []bool{false, false, true}},
		{">= 2", []int{1, 2, 3}, []bool{false, true, true}},
		{"= 2", []int{1, 2, 3}, []bool{false, true, false}},
		{"< 2", []int{1, 2}, []bool{true, false}},
		{"<= 2", []int{1, 2, 3}, []bool{true, true, false}},
		{"% 3", []int{1, 2, 3, 4, 5, 6}, []bool{false, false, true, false, false, true}},
	}

	for _, tc := range cases {
		hc, err := compileHitCondition(tc.raw)
		require.NoError(t, err, tc.raw)
		for i, want := range tc.wantPauses {
			got := hc.Hit()
			assert.Equalf(t, want, got, "%q: hit #%d", tc.raw, i+1)
		}
	}
}

func TestCompileHitConditionRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "abc", ">> 2", "2 2", "*3"} {
		_, err := compileHitCondition(raw)
		assert.Error(t, err, raw)
	}
}

func TestNearestLocationPrefersSameLineAtOrAfterColumn(t *testing.T) {
	locs := []rdp.BreakLocation{
		{LineNumber: 5, ColumnNumber: 2},
		{LineNumber: 5, ColumnNumber: 10},
		{LineNumber: 6, ColumnNumber: 0},
	}

	line, col := nearestLocation(locs, 5, 6)
	assert.Equal(t, 5, line)
	assert.Equal(t, 10, col, "nearest at-or-after column on the requested line wins over an earlier column")
}

func TestNearestLocationFallsBackWhenNoneAfterColumn(t *testing.T) {
	locs := []rdp.BreakLocation{
		{LineNumber: 5, ColumnNumber: 1},
		{LineNumber: 5, ColumnNumber: 3},
	}

	line, col := nearestLocation(locs, 5, 20)
	assert.Equal(t, 5, line)
	assert.Equal(t, 3, col, "closest column below the requested one wins when nothing is at or after it")
}
