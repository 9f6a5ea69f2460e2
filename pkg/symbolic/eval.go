package symbolic

import (
	"fmt"
	"math"
	"math/big"
)

// Substitute 在完整赋值下求表达式的具体值
// 模型缺少变量时返回 *UnboundVariableError;
// 遇到除零/溢出时同时返回故障值和包装后的 ErrDivisionByZero / ErrOverflow,调用方自行决定是否当作行为值
func Substitute(e Expr, m Model) (Value, error) {
	v, err := eval(e, m)
	if err != nil {
		return Value{}, err
	}
	if v.IsFault() {
		return v, fmt.Errorf("evaluate %s: %w", e, v.Fault.Err())
	}
	return v, nil
}

// Holds 判断布尔表达式在模型下是否为真,故障视为不成立
func Holds(e Expr, m Model) (bool, error) {
	v, err := eval(e, m)
	if err != nil {
		return false, err
	}
	switch v.Kind {
	case KindBool:
		return v.Bool, nil
	case KindFault:
		return false, nil
	}
	return false, fmt.Errorf("%w: %s is %s, want bool", ErrTypeMismatch, e, v.Kind)
}

func eval(e Expr, m Model) (Value, error) {
	switch x := e.(type) {
	case Var:
		v, ok := m[x.Name]
		if !ok {
			return Value{}, &UnboundVariableError{Name: x.Name}
		}
		return IntValue(v), nil
	case Lit:
		return x.Val, nil
	case Apply:
		return evalApply(x, m)
	}
	return Value{}, fmt.Errorf("unknown expression %T", e)
}

func evalArgs(args []Expr, m Model) ([]Value, error) {
	vals := make([]Value, len(args))
	for i, a := range args {
		v, err := eval(a, m)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return vals, nil
}

// firstFault 多个故障同时出现时取编号最小的,保证与操作数顺序无关
func firstFault(vals []Value) Fault {
	f := FaultNone
	for _, v := range vals {
		if v.IsFault() && (f == FaultNone || v.Fault < f) {
			f = v.Fault
		}
	}
	return f
}

func expectKind(op Op, vals []Value, k Kind) error {
	for _, v := range vals {
		if v.Kind != k && v.Kind != KindFault {
			return fmt.Errorf("%w: %q applied to %s", ErrTypeMismatch, op, v.Kind)
		}
	}
	return nil
}

func evalApply(x Apply, m Model) (Value, error) {
	args := x.Args
	if x.Op.IsAssociative() {
		args = flatten(x.Op, args)
	}
	vals, err := evalArgs(args, m)
	if err != nil {
		return Value{}, err
	}

	switch x.Op {
	case OpEq:
		return BoolValue(vals[0].Equal(vals[1])), nil
	case OpNe:
		return BoolValue(!vals[0].Equal(vals[1])), nil

	case OpAnd, OpOr:
		if err := expectKind(x.Op, vals, KindBool); err != nil {
			return Value{}, err
		}
		// 短路值优先于故障,结果与操作数顺序无关
		dominant := x.Op == OpOr
		for _, v := range vals {
			if v.Kind == KindBool && v.Bool == dominant {
				return BoolValue(dominant), nil
			}
		}
		if f := firstFault(vals); f != FaultNone {
			return FaultValue(f), nil
		}
		return BoolValue(!dominant), nil

	case OpNot:
		if err := expectKind(x.Op, vals, KindBool); err != nil {
			return Value{}, err
		}
		if vals[0].IsFault() {
			return vals[0], nil
		}
		return BoolValue(!vals[0].Bool), nil

	case OpConcat:
		if err := expectKind(x.Op, vals, KindString); err != nil {
			return Value{}, err
		}
		if f := firstFault(vals); f != FaultNone {
			return FaultValue(f), nil
		}
		s := ""
		for _, v := range vals {
			s += v.Str
		}
		return StringValue(s), nil
	}

	// 以下均为整数运算
	if err := expectKind(x.Op, vals, KindInt); err != nil {
		return Value{}, err
	}
	if f := firstFault(vals); f != FaultNone {
		return FaultValue(f), nil
	}

	switch x.Op {
	case OpAdd:
		return exactSum(vals), nil
	case OpMul:
		return exactProduct(vals), nil
	case OpSub:
		r := new(big.Int).Sub(big.NewInt(vals[0].Int), big.NewInt(vals[1].Int))
		return fromBig(r), nil
	case OpNeg:
		if vals[0].Int == math.MinInt64 {
			return FaultValue(FaultOverflow), nil
		}
		return IntValue(-vals[0].Int), nil
	case OpDiv:
		return divide(vals[0].Int, vals[1].Int), nil
	case OpMod:
		return modulo(vals[0].Int, vals[1].Int), nil
	case OpLt:
		return BoolValue(vals[0].Int < vals[1].Int), nil
	case OpLe:
		return BoolValue(vals[0].Int <= vals[1].Int), nil
	case OpGt:
		return BoolValue(vals[0].Int > vals[1].Int), nil
	case OpGe:
		return BoolValue(vals[0].Int >= vals[1].Int), nil
	case OpStr:
		return StringValue(vals[0].String()), nil
	}
	return Value{}, fmt.Errorf("unknown operator %d", x.Op)
}

// flatten 展开同一结合运算符的嵌套,求值与规范化共用,保证展平不改变语义
func flatten(op Op, args []Expr) []Expr {
	nested := false
	for _, a := range args {
		if ap, ok := a.(Apply); ok && ap.Op == op {
			nested = true
			break
		}
	}
	if !nested {
		return args
	}
	out := make([]Expr, 0, len(args)+2)
	for _, a := range args {
		if ap, ok := a.(Apply); ok && ap.Op == op {
			out = append(out, flatten(op, ap.Args)...)
		} else {
			out = append(out, a)
		}
	}
	return out
}

var (
	bigMaxInt64 = big.NewInt(math.MaxInt64)
	bigMinInt64 = big.NewInt(math.MinInt64)
)

func fromBig(r *big.Int) Value {
	if r.Cmp(bigMaxInt64) > 0 || r.Cmp(bigMinInt64) < 0 {
		return FaultValue(FaultOverflow)
	}
	return IntValue(r.Int64())
}

// exactSum n元加法按精确值计算后统一检查范围
func exactSum(vals []Value) Value {
	sum := new(big.Int)
	for _, v := range vals {
		sum.Add(sum, big.NewInt(v.Int))
	}
	return fromBig(sum)
}

func exactProduct(vals []Value) Value {
	prod := big.NewInt(1)
	for _, v := range vals {
		prod.Mul(prod, big.NewInt(v.Int))
	}
	return fromBig(prod)
}

// divide 截断除法(与C/Rust一致)
func divide(a, b int64) Value {
	if b == 0 {
		return FaultValue(FaultDivisionByZero)
	}
	if a == math.MinInt64 && b == -1 {
		return FaultValue(FaultOverflow)
	}
	return IntValue(a / b)
}

func modulo(a, b int64) Value {
	if b == 0 {
		return FaultValue(FaultDivisionByZero)
	}
	if a == math.MinInt64 && b == -1 {
		return FaultValue(FaultOverflow)
	}
	return IntValue(a % b)
}
