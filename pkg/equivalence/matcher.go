package equivalence

import (
	"context"
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"

	"equivcheck/pkg/solver"
	"equivcheck/pkg/summary"
	"equivcheck/pkg/symbolic"
)

// Coverage 一个程序的路径条件对输入域的覆盖情况
type Coverage struct {
	Origin   summary.Origin
	Complete bool
	Witness  symbolic.Model       // 未被覆盖的输入(若求解器找到)
	Reason   solver.UnknownReason // 覆盖查询无法判定时的原因
}

// Partition 预检结果
type Partition struct {
	Regions  []Region
	Coverage [2]Coverage

	// 无法判定是否重叠的路径对
	UnresolvedOverlaps int
	// 求解器无法判定联合可满足性、被保守保留的区域
	UnresolvedRegions int

	PrunedByInterval int
	PrunedBySolver   int
}

// Matcher 区域划分: 同侧互斥检查、覆盖检查、跨侧候选区域计算
// 预检查询不消耗路径预算
type Matcher struct {
	solver  solver.Solver
	workers int
}

// NewMatcher 创建区域划分器
func NewMatcher(s solver.Solver, workers int) *Matcher {
	if workers <= 0 {
		workers = 1
	}
	return &Matcher{solver: s, workers: workers}
}

type overlapCheck struct {
	origin summary.Origin
	a, b   *summary.PathSummary
	out    solver.Outcome
}

type pairCheck struct {
	first, second *summary.PathSummary
	pruned        bool // 区间求值已判定不相交
	out           solver.Outcome
}

// Match 对两组路径做预检;同侧路径重叠时返回 *PathOverlapError
func (m *Matcher) Match(ctx context.Context, store *summary.Store, domain symbolic.Domain) (*Partition, error) {
	box := symbolic.NewBox(domain)

	var overlaps []*overlapCheck
	for _, origin := range []summary.Origin{summary.FirstProgram, summary.SecondProgram} {
		side := store.Side(origin)
		for i := 0; i < len(side); i++ {
			for j := i + 1; j < len(side); j++ {
				overlaps = append(overlaps, &overlapCheck{origin: origin, a: side[i], b: side[j]})
			}
		}
	}

	pairs := make([]*pairCheck, 0, len(store.First)*len(store.Second))
	for _, a := range store.First {
		for _, b := range store.Second {
			pairs = append(pairs, &pairCheck{first: a, second: b})
		}
	}

	var coverage [2]solver.Outcome

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)

	for _, oc := range overlaps {
		oc := oc
		g.Go(func() error {
			q := solver.NewQuery(domain, symbolic.And(oc.a.Condition(), oc.b.Condition()),
				fmt.Sprintf("overlap %s/%s", oc.a.ID, oc.b.ID))
			out, err := m.solver.Solve(gctx, q)
			oc.out = out
			return err
		})
	}

	for i, origin := range []summary.Origin{summary.FirstProgram, summary.SecondProgram} {
		i, origin := i, origin
		g.Go(func() error {
			side := store.Side(origin)
			// 条件在某输入上故障时该路径不会被执行,按"未选中"计入覆盖查询
			taken := make([]symbolic.Expr, len(side))
			for k, p := range side {
				taken[k] = symbolic.Eq(p.Condition(), symbolic.True)
			}
			q := solver.NewQuery(domain, symbolic.Not(symbolic.Or(taken...)), "coverage "+origin.String())
			out, err := m.solver.Solve(gctx, q)
			coverage[i] = out
			return err
		})
	}

	for _, pc := range pairs {
		pc := pc
		g.Go(func() error {
			joint := symbolic.Normalize(symbolic.And(pc.first.Condition(), pc.second.Condition()))
			tri, err := symbolic.EvalInterval(joint, box)
			if err != nil {
				return err
			}
			if tri == symbolic.TriFalse {
				pc.pruned = true
				return nil
			}
			out, err := m.solver.Solve(gctx, solver.NewQuery(domain, joint, "joint "+pc.first.ID+"×"+pc.second.ID))
			pc.out = out
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	part := &Partition{}

	// 按固定顺序报告第一个重叠,与调度顺序无关
	for _, oc := range overlaps {
		switch oc.out.Status {
		case solver.Satisfiable:
			return nil, &PathOverlapError{Origin: oc.origin, FirstID: oc.a.ID, SecondID: oc.b.ID, Witness: oc.out.Model}
		case solver.Unknown:
			part.UnresolvedOverlaps++
			log.Printf("[Matcher] Could not prove %s and %s disjoint: %s", oc.a.ID, oc.b.ID, oc.out)
		}
	}

	for i, origin := range []summary.Origin{summary.FirstProgram, summary.SecondProgram} {
		out := coverage[i]
		cov := Coverage{Origin: origin}
		switch out.Status {
		case solver.Unsatisfiable:
			cov.Complete = true
		case solver.Satisfiable:
			cov.Witness = out.Model
			log.Printf("[Matcher] %s program does not cover input %s", origin, out)
		default:
			cov.Reason = out.Reason
			log.Printf("[Matcher] Coverage of %s program unproved: %s", origin, out)
		}
		part.Coverage[i] = cov
	}

	for _, pc := range pairs {
		switch {
		case pc.pruned:
			part.PrunedByInterval++
			continue
		case pc.out.Status == solver.Unsatisfiable:
			part.PrunedBySolver++
			continue
		case pc.out.Status == solver.Unknown:
			// 无法排除,交给分歧查询判定
			part.UnresolvedRegions++
		}
		part.Regions = append(part.Regions, Region{Index: len(part.Regions), First: pc.first, Second: pc.second})
	}

	log.Printf("[Matcher] %d candidate regions (%d pruned by interval, %d by solver, %d unresolved)",
		len(part.Regions), part.PrunedByInterval, part.PrunedBySolver, part.UnresolvedRegions)
	return part, nil
}
