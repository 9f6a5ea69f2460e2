package symbolic

import (
	"strconv"
	"strings"
)

// ==================== 表达式类型 ====================

// Expr 符号表达式
// 由输入变量、字面量和运算符组成,创建后不可修改
type Expr interface {
	isExpr()
	String() string
}

// Op 运算符枚举
type Op int

const (
	_ Op = iota
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpNeg
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAnd
	OpOr
	OpNot
	OpStr    // 整数转字符串 str(x)
	OpConcat // 字符串拼接 concat(a, b, ...)
)

var opNames = map[Op]string{
	OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/", OpMod: "%", OpNeg: "-",
	OpEq: "==", OpNe: "!=", OpLt: "<", OpLe: "<=", OpGt: ">", OpGe: ">=",
	OpAnd: "&&", OpOr: "||", OpNot: "!", OpStr: "str", OpConcat: "concat",
}

// String 返回运算符的字符串表示
func (op Op) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return "?"
}

// IsCommutative 操作数顺序无关的运算符
func (op Op) IsCommutative() bool {
	switch op {
	case OpAdd, OpMul, OpAnd, OpOr, OpEq, OpNe:
		return true
	}
	return false
}

// IsAssociative 可以展平嵌套的运算符
func (op Op) IsAssociative() bool {
	switch op {
	case OpAdd, OpMul, OpAnd, OpOr, OpConcat:
		return true
	}
	return false
}

// IsCompare 比较运算符
func (op Op) IsCompare() bool {
	switch op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		return true
	}
	return false
}

// Var 输入变量引用
type Var struct {
	Name string
}

// Lit 字面量
type Lit struct {
	Val Value
}

// Apply 运算符应用
type Apply struct {
	Op   Op
	Args []Expr
}

func (Var) isExpr()   {}
func (Lit) isExpr()   {}
func (Apply) isExpr() {}

func (e Var) String() string { return e.Name }

func (e Lit) String() string {
	switch e.Val.Kind {
	case KindString:
		return strconv.Quote(e.Val.Str)
	case KindVoid:
		// 与同名变量 void 区分
		return "void()"
	}
	return e.Val.String()
}

// String 输出带完整括号的规范文本,同时用作排序键
func (e Apply) String() string {
	switch {
	case e.Op == OpNeg || e.Op == OpNot:
		return e.Op.String() + "(" + e.Args[0].String() + ")"
	case e.Op == OpStr || e.Op == OpConcat:
		return e.Op.String() + "(" + joinExprs(e.Args, ", ") + ")"
	default:
		return "(" + joinExprs(e.Args, " "+e.Op.String()+" ") + ")"
	}
}

func joinExprs(args []Expr, sep string) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.String()
	}
	return strings.Join(parts, sep)
}

// ==================== 构造函数 ====================

// V 创建变量
func V(name string) Expr { return Var{Name: name} }

// Int 创建整数字面量
func Int(v int64) Expr { return Lit{Val: IntValue(v)} }

// Bool 创建布尔字面量
func Bool(b bool) Expr { return Lit{Val: BoolValue(b)} }

// Str 创建字符串字面量
func Str(s string) Expr { return Lit{Val: StringValue(s)} }

// Void 无返回值函数的返回表达式
func Void() Expr { return Lit{Val: VoidValue()} }

// True / False 常用布尔常量
var (
	True  = Bool(true)
	False = Bool(false)
)

// Binary 创建二元表达式
func Binary(op Op, l, r Expr) Expr { return Apply{Op: op, Args: []Expr{l, r}} }

// Add 加法
func Add(args ...Expr) Expr { return Apply{Op: OpAdd, Args: args} }

// Mul 乘法
func Mul(args ...Expr) Expr { return Apply{Op: OpMul, Args: args} }

// And 合取,空参数等价于 true
func And(args ...Expr) Expr {
	if len(args) == 0 {
		return True
	}
	if len(args) == 1 {
		return args[0]
	}
	return Apply{Op: OpAnd, Args: args}
}

// Or 析取,空参数等价于 false
func Or(args ...Expr) Expr {
	if len(args) == 0 {
		return False
	}
	if len(args) == 1 {
		return args[0]
	}
	return Apply{Op: OpOr, Args: args}
}

// Not 取反
func Not(e Expr) Expr { return Apply{Op: OpNot, Args: []Expr{e}} }

// Ne 不等
func Ne(l, r Expr) Expr { return Binary(OpNe, l, r) }

// Eq 相等
func Eq(l, r Expr) Expr { return Binary(OpEq, l, r) }

// FreeVars 返回表达式中出现的所有变量名(去重,按出现顺序)
func FreeVars(e Expr) []string {
	seen := make(map[string]bool)
	var names []string
	var walk func(Expr)
	walk = func(e Expr) {
		switch x := e.(type) {
		case Var:
			if !seen[x.Name] {
				seen[x.Name] = true
				names = append(names, x.Name)
			}
		case Apply:
			for _, a := range x.Args {
				walk(a)
			}
		}
	}
	walk(e)
	return names
}
