package symbolic

import (
	"errors"
	"fmt"
	"strconv"
)

// Kind 值类型
type Kind int

const (
	KindInt Kind = iota
	KindBool
	KindString
	KindVoid
	KindFault // 除零/溢出等运行期故障,作为可比较的行为值
)

// String 返回值类型名
func (k Kind) String() string {
	names := []string{"int", "bool", "string", "void", "fault"}
	if int(k) < len(names) {
		return names[k]
	}
	return "UNKNOWN"
}

// Fault 运行期故障类型
type Fault int

const (
	FaultNone Fault = iota
	FaultDivisionByZero
	FaultOverflow
)

// String 返回故障的展示文本
func (f Fault) String() string {
	switch f {
	case FaultDivisionByZero:
		return "<division by zero>"
	case FaultOverflow:
		return "<overflow>"
	}
	return "<none>"
}

// Err 故障对应的哨兵错误
func (f Fault) Err() error {
	switch f {
	case FaultDivisionByZero:
		return ErrDivisionByZero
	case FaultOverflow:
		return ErrOverflow
	}
	return nil
}

// ==================== 错误定义 ====================

var (
	// ErrDivisionByZero 求值时遇到除数为0
	ErrDivisionByZero = errors.New("division by zero")
	// ErrOverflow 求值结果超出int64范围
	ErrOverflow = errors.New("integer overflow")
	// ErrTypeMismatch 运算符作用在错误类型的操作数上
	ErrTypeMismatch = errors.New("type mismatch")
)

// UnboundVariableError 模型缺少某个自由变量的赋值
type UnboundVariableError struct {
	Name string
}

func (e *UnboundVariableError) Error() string {
	return fmt.Sprintf("unbound variable %q", e.Name)
}

// ==================== 具体值 ====================

// Value 具体值
type Value struct {
	Kind  Kind
	Int   int64
	Bool  bool
	Str   string
	Fault Fault
}

// IntValue 整数值
func IntValue(v int64) Value { return Value{Kind: KindInt, Int: v} }

// BoolValue 布尔值
func BoolValue(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// StringValue 字符串值
func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }

// VoidValue 空返回值
func VoidValue() Value { return Value{Kind: KindVoid} }

// FaultValue 故障值
func FaultValue(f Fault) Value { return Value{Kind: KindFault, Fault: f} }

// IsFault 是否为故障值
func (v Value) IsFault() bool { return v.Kind == KindFault }

// Equal 比较两个值;类型不同则不相等,同类故障相等
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindInt:
		return v.Int == o.Int
	case KindBool:
		return v.Bool == o.Bool
	case KindString:
		return v.Str == o.Str
	case KindFault:
		return v.Fault == o.Fault
	}
	return true
}

// String 返回值的展示文本
func (v Value) String() string {
	switch v.Kind {
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindString:
		return strconv.Quote(v.Str)
	case KindVoid:
		return "void"
	case KindFault:
		return v.Fault.String()
	}
	return "?"
}

// Model 输入变量到具体整数的赋值
type Model map[string]int64
