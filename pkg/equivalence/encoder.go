package equivalence

import (
	"equivcheck/pkg/solver"
	"equivcheck/pkg/summary"
	"equivcheck/pkg/symbolic"
)

// Region 一对可能同时成立的路径(每个程序一条)
type Region struct {
	Index  int
	First  *summary.PathSummary
	Second *summary.PathSummary
}

// Label 日志用的区域名
func (r Region) Label() string {
	return r.First.ID + "×" + r.Second.ID
}

// Condition 两条路径条件的合取
func (r Region) Condition() symbolic.Expr {
	return symbolic.And(append(append([]symbolic.Expr{}, r.First.PathCondition...), r.Second.PathCondition...)...)
}

// EncodeDivergence 构造分歧查询: pc1 ∧ pc2 ∧ (任一可观察通道不同)
// 输入范围由查询的 Domain 约束
func EncodeDivergence(domain symbolic.Domain, r Region) solver.Query {
	mismatch := symbolic.Or(Mismatches(r.First, r.Second)...)
	formula := symbolic.And(r.Condition(), mismatch)
	return solver.NewQuery(domain, formula, r.Label())
}

// Mismatches 列出两条路径行为不同的条件,结构相同的通道在规范化后直接消失
func Mismatches(a, b *summary.PathSummary) []symbolic.Expr {
	var clauses []symbolic.Expr
	add := func(e symbolic.Expr) {
		n := symbolic.Normalize(e)
		if lit, ok := n.(symbolic.Lit); ok && lit.Val.Kind == symbolic.KindBool && !lit.Val.Bool {
			return
		}
		clauses = append(clauses, n)
	}

	add(symbolic.Ne(a.ReturnExpr, b.ReturnExpr))
	addSeq(add, a.StdoutLog, b.StdoutLog)
	addSeq(add, a.StderrLog, b.StderrLog)

	names := make(map[string]bool)
	for n := range a.GlobalWrites {
		names[n] = true
	}
	for n := range b.GlobalWrites {
		names[n] = true
	}
	for _, name := range sortedKeys(names) {
		av, aok := a.GlobalWrites[name]
		bv, bok := b.GlobalWrites[name]
		if aok && bok {
			add(symbolic.Ne(av, bv))
		} else {
			// 只有一方写入
			add(symbolic.True)
		}
	}

	if len(a.FileOps) != len(b.FileOps) {
		add(symbolic.True)
	} else {
		for i := range a.FileOps {
			fa, fb := a.FileOps[i], b.FileOps[i]
			switch {
			case fa.Kind != fb.Kind || fa.Filename != fb.Filename:
				add(symbolic.True)
			case fa.Data == nil && fb.Data == nil:
			case fa.Data == nil || fb.Data == nil:
				add(symbolic.True)
			default:
				add(symbolic.Ne(fa.Data, fb.Data))
			}
		}
	}

	return clauses
}

// addSeq 序列相等: 长度相同且逐项相等
func addSeq(add func(symbolic.Expr), a, b []symbolic.Expr) {
	if len(a) != len(b) {
		add(symbolic.True)
		return
	}
	for i := range a {
		add(symbolic.Ne(a[i], b[i]))
	}
}
