package equivalence

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equivcheck/pkg/solver"
	"equivcheck/pkg/symbolic"
)

func testRegions() []Region {
	return []Region{
		{Index: 0, First: first("A-1", "x", "x < 5"), Second: second("B-1", "x", "x < 5")},
		{Index: 1, First: first("A-2", "x + 1", "x >= 5"), Second: second("B-2", "x", "x >= 5")},
		{Index: 2, First: first("A-3", "x + 2", "x >= 5"), Second: second("B-2", "x", "x >= 5")},
	}
}

func TestAggregatorAppliesInIndexOrder(t *testing.T) {
	domain := mustBounds("x:0:10")
	regions := testRegions()

	// 下标 2 的分歧先到达,但下标 1 的分歧才是最终反例
	orders := [][]int{{0, 1, 2}, {2, 1, 0}, {2, 0, 1}, {1, 2, 0}}
	for _, order := range orders {
		agg := newAggregator(domain, regions)
		results := map[int]regionResult{
			0: {index: 0, dispatched: true, out: solver.Unsat()},
			1: {index: 1, dispatched: true, out: solver.Sat(symbolic.Model{"x": 5})},
			2: {index: 2, dispatched: true, out: solver.Sat(symbolic.Model{"x": 7})},
		}
		for _, i := range order {
			_, err := agg.submit(results[i])
			require.NoError(t, err)
		}

		verdict, reason := agg.finish()
		assert.Equal(t, NotEquivalent, verdict, "order %v", order)
		assert.Equal(t, ReasonNone, reason)
		assert.Equal(t, 1, agg.divergedAt)
		assert.Equal(t, 2, agg.compared, "order %v", order)
		require.NotNil(t, agg.cex)
		assert.Equal(t, "A-2", agg.cex.FirstPath)
		assert.Equal(t, int64(5), agg.cex.Inputs["x"])
	}
}

func TestAggregatorSubmitReportsFirstDivergenceOnce(t *testing.T) {
	agg := newAggregator(mustBounds("x:0:10"), testRegions())

	diverged, err := agg.submit(regionResult{index: 1, dispatched: true, out: solver.Sat(symbolic.Model{"x": 5})})
	require.NoError(t, err)
	assert.False(t, diverged, "region 0 still pending")

	diverged, err = agg.submit(regionResult{index: 0, dispatched: true, out: solver.Unsat()})
	require.NoError(t, err)
	assert.True(t, diverged)

	diverged, err = agg.submit(regionResult{index: 2, out: solver.Undetermined(solver.ReasonCancelled, "scan stopped")})
	require.NoError(t, err)
	assert.False(t, diverged)
	assert.Equal(t, Diverged, agg.state)
}

func TestAggregatorReasonPriority(t *testing.T) {
	tests := []struct {
		name    string
		reasons []Reason
		want    Reason
	}{
		{"timeout wins", []Reason{ReasonSolverLimitation, ReasonTimeout, ReasonPathBudgetExceeded}, ReasonTimeout},
		{"budget over coverage", []Reason{ReasonIncompleteCoverage, ReasonPathBudgetExceeded}, ReasonPathBudgetExceeded},
		{"coverage over limitation", []Reason{ReasonSolverLimitation, ReasonIncompleteCoverage}, ReasonIncompleteCoverage},
		{"overlap last", []Reason{ReasonUnresolvedOverlap, ReasonSolverLimitation}, ReasonSolverLimitation},
		{"single", []Reason{ReasonUnresolvedOverlap}, ReasonUnresolvedOverlap},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := newAggregator(mustBounds("x:0:10"), nil)
			for _, r := range tt.reasons {
				agg.taint(r)
			}
			verdict, reason := agg.finish()
			assert.Equal(t, Unknown, verdict)
			assert.Equal(t, tt.want, reason)
			assert.Equal(t, Indeterminate, agg.state)
		})
	}
}

func TestAggregatorUnknownDoesNotStopScan(t *testing.T) {
	agg := newAggregator(mustBounds("x:0:10"), testRegions())

	_, err := agg.submit(regionResult{index: 0, dispatched: true, out: solver.Undetermined(solver.ReasonTimeout, "deadline")})
	require.NoError(t, err)
	diverged, err := agg.submit(regionResult{index: 1, dispatched: true, out: solver.Sat(symbolic.Model{"x": 6})})
	require.NoError(t, err)
	assert.True(t, diverged)

	verdict, reason := agg.finish()
	assert.Equal(t, NotEquivalent, verdict)
	assert.Equal(t, ReasonNone, reason)
}

func TestAggregatorSkippedRegionsAreNotCompared(t *testing.T) {
	agg := newAggregator(mustBounds("x:0:10"), testRegions())

	_, err := agg.submit(regionResult{index: 0, dispatched: true, out: solver.Unsat()})
	require.NoError(t, err)
	for _, i := range []int{1, 2} {
		_, err := agg.submit(regionResult{index: i, out: solver.Undetermined(solver.ReasonPathBudgetExceeded, "path budget exhausted")})
		require.NoError(t, err)
	}

	verdict, reason := agg.finish()
	assert.Equal(t, Unknown, verdict)
	assert.Equal(t, ReasonPathBudgetExceeded, reason)
	assert.Equal(t, 1, agg.compared)
}

func TestAggregatorSpuriousModel(t *testing.T) {
	agg := newAggregator(mustBounds("x:0:10"), testRegions())

	// 区域 0 两侧返回值相同,模型无法重放出差异
	diverged, err := agg.submit(regionResult{index: 0, dispatched: true, out: solver.Sat(symbolic.Model{"x": 1})})
	require.NoError(t, err)
	assert.False(t, diverged)

	verdict, reason := agg.finish()
	assert.Equal(t, Unknown, verdict)
	assert.Equal(t, ReasonSolverLimitation, reason)
}

func TestAggregatorSolverErrorIsFatal(t *testing.T) {
	agg := newAggregator(mustBounds("x:0:10"), testRegions())
	boom := errors.New("boom")

	_, err := agg.submit(regionResult{index: 0, dispatched: true, err: boom})
	assert.ErrorIs(t, err, boom)
}

func TestAggregatorIncompleteModelIsFatal(t *testing.T) {
	agg := newAggregator(mustBounds("x:0:10"), testRegions())

	_, err := agg.submit(regionResult{index: 1, dispatched: true, out: solver.Sat(symbolic.Model{"y": 1})})
	require.NoError(t, err)
	_, err = agg.submit(regionResult{index: 0, dispatched: true, out: solver.Unsat()})

	var incomplete *ModelIncompleteError
	assert.ErrorAs(t, err, &incomplete)
}

func TestAggregatorProved(t *testing.T) {
	agg := newAggregator(mustBounds("x:0:10"), testRegions())
	for i := 0; i < 3; i++ {
		_, err := agg.submit(regionResult{index: i, dispatched: true, out: solver.Unsat()})
		require.NoError(t, err)
	}
	verdict, reason := agg.finish()
	assert.Equal(t, Equivalent, verdict)
	assert.Equal(t, ReasonNone, reason)
	assert.Equal(t, Proved, agg.state)
	assert.Equal(t, 3, agg.compared)
}
