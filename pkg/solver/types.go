package solver

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"equivcheck/pkg/symbolic"
)

// ==================== 配置结构 ====================

// SolverConfig 求解器配置
// 所有参数均可配置,无硬编码
type SolverConfig struct {
	Strategy  string `yaml:"strategy" json:"strategy"`     // "local", "z3", "hybrid"
	MaxSteps  int    `yaml:"max_steps" json:"max_steps"`   // 本地分支定界的最大步数
	UseCache  bool   `yaml:"use_cache" json:"use_cache"`   // 是否缓存确定结果
	CacheSize int    `yaml:"cache_size" json:"cache_size"` // 缓存大小
}

// DefaultSolverConfig 返回默认配置
func DefaultSolverConfig() *SolverConfig {
	return &SolverConfig{
		Strategy:  "local",
		MaxSteps:  200000,
		UseCache:  true,
		CacheSize: 1024,
	}
}

// MergeWithDefaults 合并用户配置与默认配置
func (sc *SolverConfig) MergeWithDefaults() {
	defaults := DefaultSolverConfig()

	if sc.Strategy == "" {
		sc.Strategy = defaults.Strategy
	}
	if sc.MaxSteps == 0 {
		sc.MaxSteps = defaults.MaxSteps
	}
	if sc.CacheSize == 0 {
		sc.CacheSize = defaults.CacheSize
	}
}

// Validate 检查策略名
func (sc *SolverConfig) Validate() error {
	switch sc.Strategy {
	case "local", "z3", "hybrid":
		return nil
	}
	return fmt.Errorf("unknown solver strategy %q (want local, z3 or hybrid)", sc.Strategy)
}

// ==================== 求解结果 ====================

// Status 求解状态
type Status int

const (
	Satisfiable Status = iota
	Unsatisfiable
	Unknown
)

// String 返回状态名
func (s Status) String() string {
	names := []string{"sat", "unsat", "unknown"}
	if int(s) < len(names) {
		return names[s]
	}
	return "UNKNOWN"
}

// UnknownReason 无法判定的原因
type UnknownReason int

const (
	ReasonNone UnknownReason = iota
	ReasonTimeout
	ReasonPathBudgetExceeded
	ReasonSolverLimitation
	ReasonCancelled // 被调用方主动取消(找到反例后的短路)
)

// String 返回原因名
func (r UnknownReason) String() string {
	names := []string{"", "timeout", "path_budget_exceeded", "solver_limitation", "cancelled"}
	if int(r) < len(names) {
		return names[r]
	}
	return "UNKNOWN"
}

// Outcome 一次求解的结果
type Outcome struct {
	Status Status
	Model  symbolic.Model // 仅 Satisfiable 时有效
	Reason UnknownReason  // 仅 Unknown 时有效
	Detail string
}

// Sat 构造可满足结果
func Sat(m symbolic.Model) Outcome { return Outcome{Status: Satisfiable, Model: m} }

// Unsat 构造不可满足结果
func Unsat() Outcome { return Outcome{Status: Unsatisfiable} }

// Undetermined 构造无法判定结果
func Undetermined(reason UnknownReason, detail string) Outcome {
	return Outcome{Status: Unknown, Reason: reason, Detail: detail}
}

// Interrupted 根据context错误构造超时/取消结果
func Interrupted(err error) Outcome {
	if errors.Is(err, context.DeadlineExceeded) {
		return Undetermined(ReasonTimeout, "time budget elapsed")
	}
	return Undetermined(ReasonCancelled, "cancelled")
}

// String 返回结果的简短描述
func (o Outcome) String() string {
	switch o.Status {
	case Satisfiable:
		names := make([]string, 0, len(o.Model))
		for n := range o.Model {
			names = append(names, n)
		}
		sort.Strings(names)
		parts := make([]string, len(names))
		for i, n := range names {
			parts[i] = fmt.Sprintf("%s=%d", n, o.Model[n])
		}
		return "sat{" + strings.Join(parts, ", ") + "}"
	case Unknown:
		return "unknown(" + o.Reason.String() + ")"
	}
	return o.Status.String()
}

// clone 复制模型,避免缓存中的结果被调用方修改
func (o Outcome) clone() Outcome {
	if o.Model == nil {
		return o
	}
	m := make(symbolic.Model, len(o.Model))
	for k, v := range o.Model {
		m[k] = v
	}
	o.Model = m
	return o
}

// ==================== 查询 ====================

// Query 求解查询: 在输入域内 Formula 是否可满足
type Query struct {
	Domain  symbolic.Domain
	Formula symbolic.Expr
	Label   string // 仅用于日志
}

// NewQuery 创建查询,公式会被规范化
func NewQuery(domain symbolic.Domain, formula symbolic.Expr, label string) Query {
	return Query{Domain: domain, Formula: symbolic.Normalize(formula), Label: label}
}

// Key 缓存键
func (q Query) Key() string {
	return q.Domain.String() + "|" + symbolic.Key(q.Formula)
}

// Solver 求解器抽象
// Solve 必须是幂等且对调用方无副作用的;资源耗尽时返回 Unknown 而不是阻塞或报错。
// error 只用于契约错误(未绑定变量、类型错误)
type Solver interface {
	Solve(ctx context.Context, q Query) (Outcome, error)
}

// ==================== 路径预算 ====================

// Budget 整个运行共享的路径预算,原子递减
type Budget struct {
	remaining atomic.Int64
	unlimited bool
}

// NewBudget 创建预算,max < 0 表示不限
func NewBudget(max int) *Budget {
	b := &Budget{unlimited: max < 0}
	b.remaining.Store(int64(max))
	return b
}

// TryAcquire 消耗一个单位,预算耗尽时返回 false
func (b *Budget) TryAcquire() bool {
	if b == nil || b.unlimited {
		return true
	}
	for {
		cur := b.remaining.Load()
		if cur <= 0 {
			return false
		}
		if b.remaining.CompareAndSwap(cur, cur-1) {
			return true
		}
	}
}

// Remaining 剩余预算,不限时返回 -1
func (b *Budget) Remaining() int64 {
	if b == nil || b.unlimited {
		return -1
	}
	return b.remaining.Load()
}

// Exhausted 预算是否已耗尽
func (b *Budget) Exhausted() bool {
	return b != nil && !b.unlimited && b.remaining.Load() <= 0
}
