// +build z3

package solver

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	z3 "github.com/mitchellh/go-z3"

	"equivcheck/pkg/symbolic"
)

// errOutsideFragment 公式超出Z3翻译能处理的片段
var errOutsideFragment = errors.New("formula outside z3 integer fragment")

// Z3Solver Z3 SMT求解器封装
// 只处理整数/布尔片段;可能出现溢出或除零的公式交给本地求解器
type Z3Solver struct {
	config *SolverConfig

	mu    sync.Mutex
	stats Z3Stats
}

// Z3Stats Z3求解器统计
type Z3Stats struct {
	TotalSolves    int
	SatSolves      int
	UnsatSolves    int
	UnknownSolves  int
	TotalSolveTime time.Duration
}

// NewZ3Solver 创建Z3求解器
func NewZ3Solver(config *SolverConfig) (*Z3Solver, error) {
	return &Z3Solver{config: config}, nil
}

// Close 关闭Z3求解器
// 每次求解都使用独立的上下文,这里没有需要释放的共享资源
func (zs *Z3Solver) Close() {}

// Solve 实现 Solver
func (zs *Z3Solver) Solve(ctx context.Context, q Query) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Interrupted(err), nil
	}

	startTime := time.Now()
	out, err := zs.solve(ctx, q)

	zs.mu.Lock()
	zs.stats.TotalSolves++
	zs.stats.TotalSolveTime += time.Since(startTime)
	switch {
	case err != nil:
	case out.Status == Satisfiable:
		zs.stats.SatSolves++
	case out.Status == Unsatisfiable:
		zs.stats.UnsatSolves++
	default:
		zs.stats.UnknownSolves++
	}
	zs.mu.Unlock()

	return out, err
}

func (zs *Z3Solver) solve(ctx context.Context, q Query) (Outcome, error) {
	// Z3 使用无界整数,只有在盒内不可能溢出/除零时两者语义一致
	mayFault, err := symbolic.MayFault(q.Formula, symbolic.NewBox(q.Domain))
	if err != nil {
		return Outcome{}, err
	}
	if mayFault {
		return Undetermined(ReasonSolverLimitation, "formula may fault within bounds"), nil
	}
	for _, b := range q.Domain {
		if !fitsZ3Int(b.Min) || !fitsZ3Int(b.Max) {
			return Undetermined(ReasonSolverLimitation, "bound "+b.String()+" exceeds z3 numeral range"), nil
		}
	}

	cfg := z3.NewConfig()
	defer cfg.Close()
	if deadline, ok := ctx.Deadline(); ok {
		ms := time.Until(deadline).Milliseconds()
		if ms <= 0 {
			return Interrupted(context.DeadlineExceeded), nil
		}
		cfg.SetParamValue("timeout", strconv.FormatInt(ms, 10))
	}
	zctx := z3.NewContext(cfg)
	defer zctx.Close()

	tr := &z3Translator{ctx: zctx, vars: make(map[string]*z3.AST)}
	for _, b := range q.Domain {
		v := zctx.Const(zctx.Symbol(b.Name), zctx.IntSort())
		tr.vars[b.Name] = v
	}

	formula, err := tr.translate(q.Formula)
	if err != nil {
		if errors.Is(err, errOutsideFragment) {
			return Undetermined(ReasonSolverLimitation, err.Error()), nil
		}
		return Outcome{}, err
	}

	s := zctx.NewSolver()
	defer s.Close()
	for _, b := range q.Domain {
		v := tr.vars[b.Name]
		s.Assert(v.Ge(zctx.Int(int(b.Min), zctx.IntSort())))
		s.Assert(v.Le(zctx.Int(int(b.Max), zctx.IntSort())))
	}
	s.Assert(formula)

	switch s.Check() {
	case z3.False:
		return Unsat(), nil
	case z3.True:
		zm := s.Model()
		defer zm.Close()
		m, err := readModel(zm, q.Domain)
		if err != nil {
			log.Printf("[Z3] Could not read model for %s: %v", q.Label, err)
			return Undetermined(ReasonSolverLimitation, err.Error()), nil
		}
		// 具体重放确认模型
		ok, err := symbolic.Holds(q.Formula, m)
		if err != nil {
			return Outcome{}, err
		}
		if !ok {
			return Undetermined(ReasonSolverLimitation, "z3 model failed concrete check"), nil
		}
		return Sat(m), nil
	}

	if err := ctx.Err(); err != nil {
		return Interrupted(err), nil
	}
	return Undetermined(ReasonSolverLimitation, "z3 returned undefined"), nil
}

// fitsZ3Int Z3数值构造使用C int
func fitsZ3Int(v int64) bool {
	return v >= math.MinInt32 && v <= math.MaxInt32
}

// readModel 从Z3模型中读出每个输入的取值
func readModel(zm *z3.Model, d symbolic.Domain) (symbolic.Model, error) {
	assignments := zm.Assignments()
	m := make(symbolic.Model, len(d))
	for _, b := range d {
		ast, ok := assignments[b.Name]
		if !ok {
			// 未出现在模型中的变量可取任意值
			m[b.Name] = b.Min
			continue
		}
		v, err := parseNumeral(ast.String())
		if err != nil {
			return nil, fmt.Errorf("variable %s: %w", b.Name, err)
		}
		m[b.Name] = v
	}
	return m, nil
}

// parseNumeral 解析 "5" 或 "(- 5)" 形式的整数
func parseNumeral(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "(-") && strings.HasSuffix(s, ")") {
		n, err := strconv.ParseInt(strings.TrimSpace(s[2:len(s)-1]), 10, 64)
		return -n, err
	}
	return strconv.ParseInt(s, 10, 64)
}

// z3Translator 将符号表达式转换为Z3 AST
type z3Translator struct {
	ctx  *z3.Context
	vars map[string]*z3.AST
}

func (t *z3Translator) translate(e symbolic.Expr) (*z3.AST, error) {
	switch x := e.(type) {
	case symbolic.Var:
		v, ok := t.vars[x.Name]
		if !ok {
			return nil, &symbolic.UnboundVariableError{Name: x.Name}
		}
		return v, nil
	case symbolic.Lit:
		switch x.Val.Kind {
		case symbolic.KindInt:
			if !fitsZ3Int(x.Val.Int) {
				return nil, fmt.Errorf("%w: literal %d", errOutsideFragment, x.Val.Int)
			}
			return t.ctx.Int(int(x.Val.Int), t.ctx.IntSort()), nil
		case symbolic.KindBool:
			if x.Val.Bool {
				return t.ctx.True(), nil
			}
			return t.ctx.False(), nil
		}
		return nil, fmt.Errorf("%w: %s literal", errOutsideFragment, x.Val.Kind)
	case symbolic.Apply:
		return t.translateApply(x)
	}
	return nil, fmt.Errorf("%w: %T", errOutsideFragment, e)
}

func (t *z3Translator) translateApply(x symbolic.Apply) (*z3.AST, error) {
	args := make([]*z3.AST, len(x.Args))
	for i, a := range x.Args {
		ast, err := t.translate(a)
		if err != nil {
			return nil, err
		}
		args[i] = ast
	}

	switch x.Op {
	case symbolic.OpAdd:
		return args[0].Add(args[1:]...), nil
	case symbolic.OpSub:
		return args[0].Sub(args[1:]...), nil
	case symbolic.OpMul:
		return args[0].Mul(args[1:]...), nil
	case symbolic.OpNeg:
		return t.ctx.Int(0, t.ctx.IntSort()).Sub(args[0]), nil
	case symbolic.OpEq:
		return args[0].Eq(args[1]), nil
	case symbolic.OpNe:
		return args[0].Eq(args[1]).Not(), nil
	case symbolic.OpLt:
		return args[0].Lt(args[1]), nil
	case symbolic.OpLe:
		return args[0].Le(args[1]), nil
	case symbolic.OpGt:
		return args[0].Gt(args[1]), nil
	case symbolic.OpGe:
		return args[0].Ge(args[1]), nil
	case symbolic.OpAnd:
		return args[0].And(args[1:]...), nil
	case symbolic.OpOr:
		return args[0].Or(args[1:]...), nil
	case symbolic.OpNot:
		return args[0].Not(), nil
	}
	return nil, fmt.Errorf("%w: operator %s", errOutsideFragment, x.Op)
}

// GetStatistics 获取统计信息
func (zs *Z3Solver) GetStatistics() Z3Stats {
	zs.mu.Lock()
	defer zs.mu.Unlock()
	return zs.stats
}
