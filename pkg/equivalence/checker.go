package equivalence

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/event"
	"golang.org/x/sync/errgroup"

	"equivcheck/pkg/solver"
	"equivcheck/pkg/summary"
	"equivcheck/pkg/symbolic"
)

// Progress 检查进度事件
type Progress struct {
	Stage   string // "preflight", "region", "done"
	Done    int
	Total   int
	Message string
}

// Checker 等价性检查器
// 预检(区域划分)之后把分歧查询分发给worker池,由单个消费者按区域顺序聚合
type Checker struct {
	config *Config
	solver solver.Solver
	feed   event.Feed
}

// NewChecker 按配置创建检查器和约束求解器
func NewChecker(config *Config) (*Checker, error) {
	if config == nil {
		config = DefaultConfig()
	}
	config.MergeWithDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	cs, err := solver.NewConstraintSolver(&config.Solver)
	if err != nil {
		return nil, fmt.Errorf("failed to create solver: %w", err)
	}
	return &Checker{config: config, solver: cs}, nil
}

// NewCheckerWithSolver 使用给定的求解器创建检查器
func NewCheckerWithSolver(config *Config, s solver.Solver) *Checker {
	if config == nil {
		config = DefaultConfig()
	}
	config.MergeWithDefaults()
	return &Checker{config: config, solver: s}
}

// SubscribeProgress 订阅进度事件;订阅方需要及时读取通道
func (c *Checker) SubscribeProgress(ch chan<- Progress) event.Subscription {
	return c.feed.Subscribe(ch)
}

// Close 释放求解器资源
func (c *Checker) Close() {
	if cs, ok := c.solver.(*solver.ConstraintSolver); ok {
		cs.Close()
	}
}

// SolverStatistics 返回约束求解器的统计信息;自定义求解器返回 nil
func (c *Checker) SolverStatistics() map[string]int64 {
	if cs, ok := c.solver.(*solver.ConstraintSolver); ok {
		return cs.GetStatistics()
	}
	return nil
}

// Check 判定两组路径摘要在输入域上是否等价
// 返回的 error 只表示无法得出结论的致命错误(路径重叠、契约违例);
// 超时、预算耗尽等以 Unknown 判定返回
func (c *Checker) Check(ctx context.Context, store *summary.Store, domain symbolic.Domain) (*EquivalenceResult, error) {
	startTime := time.Now()

	if err := store.Validate(domain); err != nil {
		return nil, fmt.Errorf("invalid summaries: %w", err)
	}

	var runCtx context.Context
	var cancel context.CancelFunc
	if timeout := c.config.GetTimeoutDuration(); timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	log.Printf("[Checker] Checking %s: %d vs %d paths over %s", store.Function, len(store.First), len(store.Second), domain)

	part, err := NewMatcher(c.solver, c.config.Workers).Match(runCtx, store, domain)
	if err != nil {
		return nil, err
	}
	c.feed.Send(Progress{
		Stage:   "preflight",
		Total:   len(part.Regions),
		Message: fmt.Sprintf("%d candidate regions", len(part.Regions)),
	})

	agg := newAggregator(domain, part.Regions)
	for _, cov := range part.Coverage {
		switch {
		case cov.Complete:
		case cov.Witness != nil:
			agg.taint(ReasonIncompleteCoverage)
		default:
			agg.taint(reasonFromSolver(cov.Reason))
		}
	}
	if part.UnresolvedOverlaps > 0 {
		agg.taint(ReasonUnresolvedOverlap)
	}
	agg.onApplied = func(applied int, r Region, out solver.Outcome) {
		c.feed.Send(Progress{Stage: "region", Done: applied, Total: len(part.Regions), Message: r.Label() + ": " + out.String()})
	}

	if err := c.scan(runCtx, domain, part.Regions, agg); err != nil {
		return nil, err
	}

	verdict, reason := agg.finish()
	result := &EquivalenceResult{
		Verdict:        verdict,
		PathsCompared:  agg.compared,
		Counterexample: agg.cex,
		TimeTaken:      time.Since(startTime).Seconds(),
		Reason:         reason,
	}

	log.Printf("[Checker] Verdict %s after %d regions (%s)", verdict, result.PathsCompared, agg.state)
	c.feed.Send(Progress{Stage: "done", Done: result.PathsCompared, Total: len(part.Regions), Message: verdict.String()})
	return result, nil
}

// regionJob 分发给worker的区域
type regionJob struct {
	ctx    context.Context
	region Region
}

// scan 分发分歧查询并按顺序聚合
// 每个区域恰好产生一个结果(求解结果或跳过原因),消费者收满即结束
func (c *Checker) scan(ctx context.Context, domain symbolic.Domain, regions []Region, agg *aggregator) error {
	if len(regions) == 0 {
		return nil
	}

	budget := solver.NewBudget(c.config.MaxPaths)
	ctl := newScanControl()
	results := make(chan regionResult, len(regions))
	jobs := make(chan regionJob)

	var g errgroup.Group

	// 单个分发者按区域顺序获取预算,保证哪些区域被求解是确定的
	g.Go(func() error {
		defer close(jobs)
		for _, r := range regions {
			skip := func(out solver.Outcome) {
				results <- regionResult{index: r.Index, out: out}
			}
			if err := ctx.Err(); err != nil {
				skip(solver.Interrupted(err))
				continue
			}
			if ctl.stopped(r.Index) {
				skip(solver.Undetermined(solver.ReasonCancelled, "scan stopped"))
				continue
			}
			if !budget.TryAcquire() {
				skip(solver.Undetermined(solver.ReasonPathBudgetExceeded, "path budget exhausted"))
				continue
			}
			rctx, ok := ctl.start(ctx, r.Index)
			if !ok {
				skip(solver.Undetermined(solver.ReasonCancelled, "scan stopped"))
				continue
			}
			select {
			case jobs <- regionJob{ctx: rctx, region: r}:
			case <-ctx.Done():
				ctl.finish(r.Index)
				skip(solver.Interrupted(ctx.Err()))
			}
		}
		return nil
	})

	for i := 0; i < c.config.Workers && i < len(regions); i++ {
		g.Go(func() error {
			for job := range jobs {
				q := EncodeDivergence(domain, job.region)
				out, err := c.solver.Solve(job.ctx, q)
				ctl.finish(job.region.Index)
				results <- regionResult{index: job.region.Index, dispatched: true, out: out, err: err}
			}
			return nil
		})
	}

	var fatal error
	for received := 0; received < len(regions); received++ {
		res := <-results
		if fatal != nil {
			continue
		}
		diverged, err := agg.submit(res)
		switch {
		case err != nil:
			fatal = err
			ctl.stopAfter(-1)
		case diverged:
			log.Printf("[Checker] Divergence in region %s, cancelling later regions", regions[agg.divergedAt].Label())
			ctl.stopAfter(agg.divergedAt)
		}
	}

	_ = g.Wait()
	return fatal
}

// scanControl 记录进行中区域的取消函数和扫描截止下标
type scanControl struct {
	mu      sync.Mutex
	cutoff  int // 下标大于 cutoff 的区域不再求解
	cancels map[int]context.CancelFunc
}

func newScanControl() *scanControl {
	return &scanControl{cutoff: math.MaxInt, cancels: make(map[int]context.CancelFunc)}
}

func (sc *scanControl) stopped(index int) bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return index > sc.cutoff
}

// start 为区域创建可取消的上下文;区域已被截止时返回 false
func (sc *scanControl) start(parent context.Context, index int) (context.Context, bool) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if index > sc.cutoff {
		return nil, false
	}
	ctx, cancel := context.WithCancel(parent)
	sc.cancels[index] = cancel
	return ctx, true
}

func (sc *scanControl) finish(index int) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if cancel, ok := sc.cancels[index]; ok {
		cancel()
		delete(sc.cancels, index)
	}
}

// stopAfter 取消所有下标大于 k 的进行中区域,并阻止之后的分发
func (sc *scanControl) stopAfter(k int) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if k < sc.cutoff {
		sc.cutoff = k
	}
	for index, cancel := range sc.cancels {
		if index > k {
			cancel()
			delete(sc.cancels, index)
		}
	}
}
