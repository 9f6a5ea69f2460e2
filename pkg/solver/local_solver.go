package solver

import (
	"context"
	"fmt"

	"equivcheck/pkg/symbolic"
)

// cancelCheckInterval 每隔多少步检查一次取消标志
const cancelCheckInterval = 16

// LocalSolver 有界整数域上的分支定界求解器
// 在盒上做区间求值: 恒假剪枝, 恒真取下角点, 否则沿最宽变量二分,先搜索下半部分,
// 因此返回的模型按搜索顺序最小
type LocalSolver struct {
	maxSteps int
}

// NewLocalSolver 创建本地求解器,maxSteps <= 0 表示不限步数
func NewLocalSolver(maxSteps int) *LocalSolver {
	return &LocalSolver{maxSteps: maxSteps}
}

// Solve 实现 Solver
func (ls *LocalSolver) Solve(ctx context.Context, q Query) (Outcome, error) {
	stack := []symbolic.Box{symbolic.NewBox(q.Domain)}
	steps := 0

	for len(stack) > 0 {
		if steps%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return Interrupted(err), nil
			}
		}
		steps++
		if ls.maxSteps > 0 && steps > ls.maxSteps {
			return Undetermined(ReasonSolverLimitation,
				fmt.Sprintf("step limit %d reached", ls.maxSteps)), nil
		}

		box := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		tri, err := symbolic.EvalInterval(q.Formula, box)
		if err != nil {
			return Outcome{}, err
		}

		switch tri {
		case symbolic.TriFalse:
			continue
		case symbolic.TriTrue:
			m := box.Low()
			ok, err := symbolic.Holds(q.Formula, m)
			if err != nil {
				return Outcome{}, err
			}
			if ok {
				return Sat(m), nil
			}
		}

		if box.IsPoint() {
			m := box.Low()
			ok, err := symbolic.Holds(q.Formula, m)
			if err != nil {
				return Outcome{}, err
			}
			if ok {
				return Sat(m), nil
			}
			continue
		}

		lower, upper := box.Split()
		stack = append(stack, upper, lower)
	}

	return Unsat(), nil
}
