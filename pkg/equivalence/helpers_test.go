package equivalence

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"equivcheck/pkg/solver"
	"equivcheck/pkg/summary"
	"equivcheck/pkg/symbolic"
)

// path 构造测试用路径摘要
func path(id string, origin summary.Origin, ret string, conds ...string) *summary.PathSummary {
	p := &summary.PathSummary{
		ID:           id,
		Origin:       origin,
		ReturnExpr:   symbolic.MustParse(ret),
		GlobalWrites: map[string]symbolic.Expr{},
	}
	for _, c := range conds {
		p.PathCondition = append(p.PathCondition, symbolic.MustParse(c))
	}
	return p
}

func first(id, ret string, conds ...string) *summary.PathSummary {
	return path(id, summary.FirstProgram, ret, conds...)
}

func second(id, ret string, conds ...string) *summary.PathSummary {
	return path(id, summary.SecondProgram, ret, conds...)
}

func mustBounds(s string) symbolic.Domain {
	d, err := symbolic.ParseBounds(s)
	if err != nil {
		panic(err)
	}
	return d
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.Workers = 4
	cfg.MaxPaths = -1
	cfg.Timeout = "30s"
	return cfg
}

func newTestChecker(cfg *Config, s solver.Solver) *Checker {
	if s == nil {
		s = solver.NewLocalSolver(0)
	}
	return NewCheckerWithSolver(cfg, s)
}

// slowSolver 对指定标签的分歧查询延迟返回,用于打乱结果到达顺序
type slowSolver struct {
	inner solver.Solver
	slow  map[string]bool
	delay time.Duration
}

func (s *slowSolver) Solve(ctx context.Context, q solver.Query) (solver.Outcome, error) {
	if s.slow[q.Label] {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return solver.Interrupted(ctx.Err()), nil
		}
	}
	return s.inner.Solve(ctx, q)
}

// blockingSolver 对指定标签的查询一直阻塞到被取消
type blockingSolver struct {
	inner     solver.Solver
	block     func(label string) bool
	cancelled atomic.Int32
}

func (s *blockingSolver) Solve(ctx context.Context, q solver.Query) (solver.Outcome, error) {
	if s.block(q.Label) {
		<-ctx.Done()
		s.cancelled.Add(1)
		return solver.Interrupted(ctx.Err()), nil
	}
	return s.inner.Solve(ctx, q)
}

// isPreflight 预检查询的标签带有前缀
func isPreflight(label string) bool {
	for _, prefix := range []string{"overlap ", "coverage ", "joint "} {
		if strings.HasPrefix(label, prefix) {
			return true
		}
	}
	return false
}

// fixedSolver 对分歧查询返回固定结果;labels 为 nil 时作用于所有分歧查询
type fixedSolver struct {
	inner  solver.Solver
	out    solver.Outcome
	labels map[string]bool
}

func (s *fixedSolver) Solve(ctx context.Context, q solver.Query) (solver.Outcome, error) {
	if isPreflight(q.Label) || (s.labels != nil && !s.labels[q.Label]) {
		return s.inner.Solve(ctx, q)
	}
	return s.out, nil
}
