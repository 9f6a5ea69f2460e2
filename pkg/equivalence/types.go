package equivalence

import (
	"encoding/json"
	"fmt"
	"strings"

	"equivcheck/pkg/summary"
	"equivcheck/pkg/symbolic"
)

// ==================== 判定结果 ====================

// Verdict 最终判定
type Verdict int

const (
	Equivalent Verdict = iota
	NotEquivalent
	Unknown
)

var verdictNames = []string{"Equivalent", "NotEquivalent", "Unknown"}

// String 返回判定名
func (v Verdict) String() string {
	if int(v) < len(verdictNames) {
		return verdictNames[v]
	}
	return "UNKNOWN"
}

// MarshalJSON 序列化为判定名
func (v Verdict) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

// UnmarshalJSON 从判定名解析
func (v *Verdict) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for i, name := range verdictNames {
		if name == s {
			*v = Verdict(i)
			return nil
		}
	}
	return fmt.Errorf("unknown verdict %q", s)
}

// Reason 判定为 Unknown 的原因
type Reason string

const (
	ReasonNone               Reason = ""
	ReasonTimeout            Reason = "timeout"
	ReasonCancelled          Reason = "cancelled"
	ReasonPathBudgetExceeded Reason = "path_budget_exceeded"
	ReasonIncompleteCoverage Reason = "incomplete_coverage"
	ReasonSolverLimitation   Reason = "solver_limitation"
	ReasonUnresolvedOverlap  Reason = "unresolved_overlap"
)

// reasonPriority 多个原因同时存在时报告排在最前的一个
var reasonPriority = []Reason{
	ReasonTimeout,
	ReasonCancelled,
	ReasonPathBudgetExceeded,
	ReasonIncompleteCoverage,
	ReasonSolverLimitation,
	ReasonUnresolvedOverlap,
}

// ==================== 行为快照 ====================

// GlobalValue 全局变量的具体取值
type GlobalValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// FileOpRecord 文件操作的具体记录
type FileOpRecord struct {
	OpType   string  `json:"op_type"`
	Filename string  `json:"filename"`
	Data     *string `json:"data,omitempty"`
}

// String 返回 op(filename[, data]) 形式
func (r FileOpRecord) String() string {
	if r.Data == nil {
		return fmt.Sprintf("%s(%s)", r.OpType, r.Filename)
	}
	return fmt.Sprintf("%s(%s, %s)", r.OpType, r.Filename, *r.Data)
}

// BehaviorSnapshot 某个程序在具体输入下的可观察行为
type BehaviorSnapshot struct {
	ReturnValue string         `json:"return_value"`
	Stdout      []string       `json:"stdout"`
	Stderr      []string       `json:"stderr"`
	Globals     []GlobalValue  `json:"globals"`
	FileOps     []FileOpRecord `json:"file_ops"`
}

// ==================== 差异 ====================

// DifferenceKind 差异所在的通道
type DifferenceKind int

const (
	DiffReturnValue DifferenceKind = iota
	DiffStdout
	DiffStderr
	DiffGlobalVariable
	DiffFileOperation
)

var differenceKindNames = []string{"ReturnValue", "Stdout", "Stderr", "GlobalVariable", "FileOperation"}

// String 返回通道名
func (k DifferenceKind) String() string {
	if int(k) < len(differenceKindNames) {
		return differenceKindNames[k]
	}
	return "UNKNOWN"
}

// MarshalJSON 序列化为通道名
func (k DifferenceKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON 从通道名解析
func (k *DifferenceKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for i, name := range differenceKindNames {
		if name == s {
			*k = DifferenceKind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown difference kind %q", s)
}

// Difference 一个通道上的具体差异
type Difference struct {
	Kind        DifferenceKind `json:"kind"`
	Variable    string         `json:"variable,omitempty"` // 仅 GlobalVariable
	FirstValue  string         `json:"first_value"`
	SecondValue string         `json:"second_value"`
}

// String 返回差异的单行描述
func (d Difference) String() string {
	label := d.Kind.String()
	if d.Kind == DiffGlobalVariable {
		label += "(" + d.Variable + ")"
	}
	return fmt.Sprintf("%s: %s vs %s", label, d.FirstValue, d.SecondValue)
}

// Counterexample 具体反例
type Counterexample struct {
	Inputs         map[string]int64 `json:"inputs"`
	FirstPath      string           `json:"first_path"`
	SecondPath     string           `json:"second_path"`
	FirstBehavior  BehaviorSnapshot `json:"first_behavior"`
	SecondBehavior BehaviorSnapshot `json:"second_behavior"`
	Differences    []Difference     `json:"differences"`
}

// InputNames 按名称排序的输入变量
func (c *Counterexample) InputNames() []string {
	return sortedKeys(c.Inputs)
}

// EquivalenceResult 一次检查的最终结果,构造后不再修改
type EquivalenceResult struct {
	Verdict        Verdict         `json:"verdict"`
	PathsCompared  int             `json:"paths_compared"`
	Counterexample *Counterexample `json:"counterexample"`
	TimeTaken      float64         `json:"time_taken"` // 秒
	Reason         Reason          `json:"reason,omitempty"`
}

// ==================== 错误定义 ====================

// PathOverlapError 同一程序的两条路径条件在输入域内可同时成立
type PathOverlapError struct {
	Origin   summary.Origin
	FirstID  string
	SecondID string
	Witness  symbolic.Model
}

func (e *PathOverlapError) Error() string {
	parts := make([]string, 0, len(e.Witness))
	for _, n := range sortedKeys(e.Witness) {
		parts = append(parts, fmt.Sprintf("%s=%d", n, e.Witness[n]))
	}
	return fmt.Sprintf("overlapping paths in %s program: %s and %s both hold at {%s}",
		e.Origin, e.FirstID, e.SecondID, strings.Join(parts, ", "))
}

// ModelIncompleteError 求解器返回的模型缺少某个输入变量
type ModelIncompleteError struct {
	Missing string
}

func (e *ModelIncompleteError) Error() string {
	return fmt.Sprintf("model has no value for input %q", e.Missing)
}
