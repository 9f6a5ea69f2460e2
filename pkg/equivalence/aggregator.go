package equivalence

import (
	"log"

	"equivcheck/pkg/solver"
	"equivcheck/pkg/symbolic"
)

// ScanState 判定聚合器的状态
type ScanState int

const (
	Scanning      ScanState = iota
	Diverged                // 找到真实差异,终态
	Proved                  // 全部区域不可满足且覆盖完整,终态
	Indeterminate           // 存在无法判定的区域或覆盖不完整,终态
)

// String 返回状态名
func (s ScanState) String() string {
	names := []string{"Scanning", "Diverged", "Proved", "Indeterminate"}
	if int(s) < len(names) {
		return names[s]
	}
	return "UNKNOWN"
}

// regionResult 一个区域的求解结果
// dispatched 为 false 表示区域未被求解(预算耗尽、超时或扫描已停止)
type regionResult struct {
	index      int
	dispatched bool
	out        solver.Outcome
	err        error
}

// aggregator 把各区域的结果折叠为最终判定
// 结果可能乱序到达,按区域下标顺序应用,因此判定和反例与调度时序无关
type aggregator struct {
	domain  symbolic.Domain
	regions []Region

	state    ScanState
	next     int
	pending  map[int]regionResult
	compared int
	reasons  map[Reason]bool

	cex        *Counterexample
	divergedAt int

	// 每应用一个区域回调一次
	onApplied func(applied int, r Region, out solver.Outcome)
}

func newAggregator(domain symbolic.Domain, regions []Region) *aggregator {
	return &aggregator{
		domain:     domain,
		regions:    regions,
		pending:    make(map[int]regionResult),
		reasons:    make(map[Reason]bool),
		divergedAt: -1,
	}
}

// taint 记录一个使结果无法判定的原因(覆盖、重叠等预检结论)
func (a *aggregator) taint(r Reason) {
	if r != ReasonNone {
		a.reasons[r] = true
	}
}

// submit 接收一个结果;首次按序发现分歧时返回 diverged=true
// 错误表示契约违例,整次运行失败
func (a *aggregator) submit(res regionResult) (diverged bool, err error) {
	a.pending[res.index] = res
	for {
		next, ok := a.pending[a.next]
		if !ok {
			return false, nil
		}
		delete(a.pending, a.next)
		a.next++

		if a.state != Scanning {
			// 分歧之后的区域不再参与判定
			continue
		}
		if next.err != nil {
			return false, next.err
		}
		found, err := a.apply(next)
		if err != nil {
			return false, err
		}
		if found {
			return true, nil
		}
	}
}

func (a *aggregator) apply(res regionResult) (bool, error) {
	r := a.regions[res.index]
	if res.dispatched {
		a.compared++
	}
	defer func() {
		if a.onApplied != nil {
			a.onApplied(a.next, r, res.out)
		}
	}()

	switch res.out.Status {
	case solver.Unsatisfiable:
		return false, nil

	case solver.Unknown:
		a.taint(reasonFromSolver(res.out.Reason))
		return false, nil
	}

	cex, err := BuildCounterexample(a.domain, res.out.Model, r.First, r.Second)
	if err != nil {
		return false, err
	}
	if len(cex.Differences) == 0 {
		// 模型重放后没有差异,不能作为反例
		log.Printf("[Checker] Region %s: model %s shows no difference on replay", r.Label(), res.out)
		a.taint(ReasonSolverLimitation)
		return false, nil
	}

	a.state = Diverged
	a.cex = cex
	a.divergedAt = res.index
	return true, nil
}

// finish 结束扫描,返回判定和 Unknown 的原因
func (a *aggregator) finish() (Verdict, Reason) {
	switch {
	case a.state == Diverged:
		return NotEquivalent, ReasonNone
	case len(a.reasons) > 0:
		a.state = Indeterminate
		for _, r := range reasonPriority {
			if a.reasons[r] {
				return Unknown, r
			}
		}
		return Unknown, ReasonSolverLimitation
	}
	a.state = Proved
	return Equivalent, ReasonNone
}

func reasonFromSolver(r solver.UnknownReason) Reason {
	switch r {
	case solver.ReasonTimeout:
		return ReasonTimeout
	case solver.ReasonPathBudgetExceeded:
		return ReasonPathBudgetExceeded
	case solver.ReasonCancelled:
		return ReasonCancelled
	}
	return ReasonSolverLimitation
}
