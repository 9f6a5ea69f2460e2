package summary

import (
	"fmt"
	"sort"

	"equivcheck/pkg/symbolic"
)

// Origin 路径属于哪个候选程序
type Origin int

const (
	FirstProgram Origin = iota
	SecondProgram
)

// String 返回程序名
func (o Origin) String() string {
	switch o {
	case FirstProgram:
		return "first"
	case SecondProgram:
		return "second"
	}
	return "UNKNOWN"
}

// FileOpKind 文件操作类型
type FileOpKind string

const (
	FileOpen  FileOpKind = "open"
	FileWrite FileOpKind = "write"
	FileClose FileOpKind = "close"
)

// Valid 是否为已知的文件操作类型
func (k FileOpKind) Valid() bool {
	switch k {
	case FileOpen, FileWrite, FileClose:
		return true
	}
	return false
}

// FileOperation 一次被记录的文件操作
type FileOperation struct {
	Kind     FileOpKind
	Filename string
	Data     symbolic.Expr // 可选,nil 表示无数据
}

// PathSummary 一条执行路径的符号摘要
// 由符号执行器产生,加载后不再修改
type PathSummary struct {
	ID            string
	Origin        Origin
	PathCondition []symbolic.Expr // 子句的合取
	ReturnExpr    symbolic.Expr
	StdoutLog     []symbolic.Expr
	StderrLog     []symbolic.Expr
	GlobalWrites  map[string]symbolic.Expr // 同名变量以最后一次写入为准
	FileOps       []FileOperation
}

// Condition 路径条件的合取
func (p *PathSummary) Condition() symbolic.Expr {
	return symbolic.And(p.PathCondition...)
}

// GlobalNames 按名称排序的全局变量列表
func (p *PathSummary) GlobalNames() []string {
	names := make([]string, 0, len(p.GlobalWrites))
	for n := range p.GlobalWrites {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// String 返回路径的简短描述
func (p *PathSummary) String() string {
	return fmt.Sprintf("%s[%s]", p.ID, p.Condition())
}

// Store 一次等价性检查的全部路径摘要
type Store struct {
	Function string
	First    []*PathSummary
	Second   []*PathSummary
}

// Side 返回指定程序的路径
func (s *Store) Side(o Origin) []*PathSummary {
	if o == FirstProgram {
		return s.First
	}
	return s.Second
}
