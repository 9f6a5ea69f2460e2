// +build !z3

package solver

import (
	"context"
	"errors"
	"time"
)

// Z3Solver Z3 SMT求解器封装(stub版本 - Z3未启用)
type Z3Solver struct {
	config *SolverConfig
}

// Z3Stats Z3求解器统计
type Z3Stats struct {
	TotalSolves    int
	SatSolves      int
	UnsatSolves    int
	UnknownSolves  int
	TotalSolveTime time.Duration
}

// NewZ3Solver 创建Z3求解器(stub - 返回错误)
func NewZ3Solver(config *SolverConfig) (*Z3Solver, error) {
	return nil, errors.New("Z3 solver not available - rebuild with '-tags z3' to enable")
}

// Close 关闭Z3求解器(stub)
func (zs *Z3Solver) Close() {}

// Solve 求解(stub - 总是无法判定)
func (zs *Z3Solver) Solve(ctx context.Context, q Query) (Outcome, error) {
	return Undetermined(ReasonSolverLimitation, "z3 not available"), nil
}

// GetStatistics 获取统计信息(stub)
func (zs *Z3Solver) GetStatistics() Z3Stats {
	return Z3Stats{}
}
