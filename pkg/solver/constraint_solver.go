package solver

import (
	"context"
	"log"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"equivcheck/pkg/symbolic"
)

// ConstraintSolver 约束求解器
// 默认使用本地分支定界求解,按策略可选用Z3;确定的结果(sat/unsat)进入LRU缓存
type ConstraintSolver struct {
	config *SolverConfig

	local *LocalSolver

	// Z3求解器(可选)
	z3Solver *Z3Solver

	// 缓存
	cache *lru.Cache[string, Outcome]

	// 统计
	cacheHits      atomic.Int64
	cacheMisses    atomic.Int64
	localSolves    atomic.Int64
	z3Solves       atomic.Int64
	fallbackSolves atomic.Int64
}

// NewConstraintSolver 创建约束求解器
func NewConstraintSolver(config *SolverConfig) (*ConstraintSolver, error) {
	if config == nil {
		config = DefaultSolverConfig()
	}
	config.MergeWithDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	cs := &ConstraintSolver{
		config: config,
		local:  NewLocalSolver(config.MaxSteps),
	}

	if config.UseCache {
		cache, err := lru.New[string, Outcome](config.CacheSize)
		if err != nil {
			return nil, err
		}
		cs.cache = cache
	}

	// 初始化Z3求解器(如果需要)
	if config.Strategy == "z3" || config.Strategy == "hybrid" {
		z3Solver, err := NewZ3Solver(config)
		if err != nil {
			log.Printf("[Solver] Warning: Failed to initialize Z3: %v, falling back to local only", err)
		} else {
			cs.z3Solver = z3Solver
			log.Printf("[Solver] Z3 solver initialized (strategy=%s)", config.Strategy)
		}
	}

	return cs, nil
}

// Solve 实现 Solver
func (cs *ConstraintSolver) Solve(ctx context.Context, q Query) (Outcome, error) {
	key := q.Key()
	if cs.cache != nil {
		if cached, ok := cs.cache.Get(key); ok {
			cs.cacheHits.Add(1)
			return cached.clone(), nil
		}
		cs.cacheMisses.Add(1)
	}

	out, err := cs.solve(ctx, q)
	if err != nil {
		return Outcome{}, err
	}

	// Unknown 依赖于当时的预算,不缓存
	if cs.cache != nil && out.Status != Unknown {
		cs.cache.Add(key, out.clone())
	}
	return out, nil
}

func (cs *ConstraintSolver) solve(ctx context.Context, q Query) (Outcome, error) {
	if cs.z3Solver != nil && ShouldUseZ3(cs.config, q) {
		out, err := cs.z3Solver.Solve(ctx, q)
		if err != nil {
			return Outcome{}, err
		}
		if out.Status != Unknown || out.Reason != ReasonSolverLimitation {
			cs.z3Solves.Add(1)
			return out, nil
		}
		// Z3无法处理该片段,回退到本地求解器
		log.Printf("[Solver] Z3 gave up on %s: %s, falling back to local solver", q.Label, out.Detail)
		cs.fallbackSolves.Add(1)
	}

	cs.localSolves.Add(1)
	return cs.local.Solve(ctx, q)
}

// ShouldUseZ3 根据配置和查询特征判断是否应使用Z3
func ShouldUseZ3(config *SolverConfig, q Query) bool {
	if config == nil {
		return false
	}

	switch config.Strategy {
	case "z3":
		return true
	case "hybrid":
		// hybrid模式: 只把Z3能精确处理的整数片段交给Z3
		return InZ3Fragment(q.Formula)
	}
	return false
}

// InZ3Fragment 公式是否只包含线性/非线性整数算术、比较与布尔连接
func InZ3Fragment(e symbolic.Expr) bool {
	switch x := e.(type) {
	case symbolic.Var:
		return true
	case symbolic.Lit:
		return x.Val.Kind == symbolic.KindInt || x.Val.Kind == symbolic.KindBool
	case symbolic.Apply:
		switch x.Op {
		case symbolic.OpDiv, symbolic.OpMod, symbolic.OpStr, symbolic.OpConcat:
			return false
		}
		for _, a := range x.Args {
			if !InZ3Fragment(a) {
				return false
			}
		}
		return true
	}
	return false
}

// Close 关闭求解器并释放资源
func (cs *ConstraintSolver) Close() {
	if cs.z3Solver != nil {
		cs.z3Solver.Close()
	}
}

// GetStatistics 获取统计信息
func (cs *ConstraintSolver) GetStatistics() map[string]int64 {
	stats := map[string]int64{
		"cache_hits":      cs.cacheHits.Load(),
		"cache_misses":    cs.cacheMisses.Load(),
		"local_solves":    cs.localSolves.Load(),
		"z3_solves":       cs.z3Solves.Load(),
		"fallback_solves": cs.fallbackSolves.Load(),
	}
	if cs.cache != nil {
		stats["cache_size"] = int64(cs.cache.Len())
	}
	if cs.z3Solver != nil {
		zs := cs.z3Solver.GetStatistics()
		stats["z3_total"] = int64(zs.TotalSolves)
		stats["z3_sat"] = int64(zs.SatSolves)
		stats["z3_unsat"] = int64(zs.UnsatSolves)
		stats["z3_unknown"] = int64(zs.UnknownSolves)
		stats["z3_time_ms"] = zs.TotalSolveTime.Milliseconds()
	}
	return stats
}
