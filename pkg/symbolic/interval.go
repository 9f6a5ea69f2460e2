package symbolic

import (
	"fmt"
	"math/big"
)

// Tri 三值逻辑结果
type Tri int

const (
	TriFalse Tri = iota // 盒内所有点都不成立
	TriTrue             // 盒内所有点都成立
	TriMaybe            // 无法确定,需要继续切分
)

// String 返回三值结果名
func (t Tri) String() string {
	switch t {
	case TriFalse:
		return "false"
	case TriTrue:
		return "true"
	}
	return "maybe"
}

// abstract 区间抽象值:表达式在盒内所有可能取值的上近似
type abstract struct {
	ints   bool
	lo, hi int64

	canTrue, canFalse bool

	strs     bool
	strExact bool
	str      string

	void   bool
	faults uint8 // 1<<Fault 位集合
}

func faultBit(f Fault) uint8 { return 1 << uint(f) }

func fromValue(v Value) abstract {
	switch v.Kind {
	case KindInt:
		return abstract{ints: true, lo: v.Int, hi: v.Int}
	case KindBool:
		return abstract{canTrue: v.Bool, canFalse: !v.Bool}
	case KindString:
		return abstract{strs: true, strExact: true, str: v.Str}
	case KindVoid:
		return abstract{void: true}
	}
	return abstract{faults: faultBit(v.Fault)}
}

// single 抽象值恰好只含一个具体值时返回该值
func (a abstract) single() (Value, bool) {
	var candidates []Value
	if a.ints {
		if a.lo != a.hi {
			return Value{}, false
		}
		candidates = append(candidates, IntValue(a.lo))
	}
	if a.canTrue {
		candidates = append(candidates, BoolValue(true))
	}
	if a.canFalse {
		candidates = append(candidates, BoolValue(false))
	}
	if a.strs {
		if !a.strExact {
			return Value{}, false
		}
		candidates = append(candidates, StringValue(a.str))
	}
	if a.void {
		candidates = append(candidates, VoidValue())
	}
	for _, f := range []Fault{FaultDivisionByZero, FaultOverflow} {
		if a.faults&faultBit(f) != 0 {
			candidates = append(candidates, FaultValue(f))
		}
	}
	if len(candidates) != 1 {
		return Value{}, false
	}
	return candidates[0], true
}

func (a abstract) hasBools() bool { return a.canTrue || a.canFalse }

// EvalInterval 在盒上做抽象求值,判断布尔表达式是否恒真/恒假
func EvalInterval(e Expr, b Box) (Tri, error) {
	a, err := absEval(e, b)
	if err != nil {
		return TriMaybe, err
	}
	if a.ints || a.strs || a.void {
		return TriMaybe, fmt.Errorf("%w: %s is not boolean", ErrTypeMismatch, e)
	}
	switch {
	case !a.canTrue:
		return TriFalse, nil
	case !a.canFalse && a.faults == 0:
		return TriTrue, nil
	}
	return TriMaybe, nil
}

func absEval(e Expr, b Box) (abstract, error) {
	switch x := e.(type) {
	case Var:
		iv, ok := b.Get(x.Name)
		if !ok {
			return abstract{}, &UnboundVariableError{Name: x.Name}
		}
		return abstract{ints: true, lo: iv.Lo, hi: iv.Hi}, nil
	case Lit:
		return fromValue(x.Val), nil
	case Apply:
		return absApply(x, b)
	}
	return abstract{}, fmt.Errorf("unknown expression %T", e)
}

func absApply(x Apply, b Box) (abstract, error) {
	args := x.Args
	if x.Op.IsAssociative() {
		args = flatten(x.Op, args)
	}
	vals := make([]abstract, len(args))
	singles := make([]Expr, len(args))
	allSingle := true
	for i, arg := range args {
		a, err := absEval(arg, b)
		if err != nil {
			return abstract{}, err
		}
		vals[i] = a
		if v, ok := a.single(); ok {
			singles[i] = Lit{Val: v}
		} else {
			allSingle = false
		}
	}

	// 所有操作数都已确定时直接做具体求值,保证单点盒上的结果精确
	if allSingle {
		v, err := evalApply(Apply{Op: x.Op, Args: singles}, nil)
		if err != nil {
			return abstract{}, err
		}
		return fromValue(v), nil
	}

	var faults uint8
	for _, v := range vals {
		faults |= v.faults
	}

	switch x.Op {
	case OpEq, OpNe:
		r := absEqual(vals[0], vals[1])
		if x.Op == OpNe {
			r.canTrue, r.canFalse = r.canFalse, r.canTrue
		}
		return r, nil

	case OpAnd, OpOr, OpNot:
		for _, v := range vals {
			if v.ints || v.strs || v.void {
				return abstract{}, fmt.Errorf("%w: %q applied to non-boolean", ErrTypeMismatch, x.Op)
			}
		}
		return absLogic(x.Op, vals, faults), nil

	case OpConcat:
		r := abstract{faults: faults, strs: true, strExact: true}
		for _, v := range vals {
			if v.ints || v.hasBools() || v.void {
				return abstract{}, fmt.Errorf("%w: concat applied to non-string", ErrTypeMismatch)
			}
			if !v.strs {
				r.strs = false
			}
			if !v.strExact {
				r.strExact = false
			}
			r.str += v.str
		}
		if !r.strs || !r.strExact {
			r.strExact, r.str = false, ""
		}
		return r, nil
	}

	for _, v := range vals {
		if v.strs || v.hasBools() || v.void {
			return abstract{}, fmt.Errorf("%w: %q applied to non-integer", ErrTypeMismatch, x.Op)
		}
		if !v.ints {
			// 某个操作数只可能是故障,结果也只可能是故障
			return abstract{faults: faults}, nil
		}
	}

	switch x.Op {
	case OpLt, OpLe, OpGt, OpGe:
		l, r := vals[0], vals[1]
		if x.Op == OpGt || x.Op == OpGe {
			l, r = r, l
		}
		res := abstract{faults: faults}
		if x.Op == OpLt || x.Op == OpGt {
			res.canTrue = l.lo < r.hi
			res.canFalse = l.hi >= r.lo
		} else {
			res.canTrue = l.lo <= r.hi
			res.canFalse = l.hi > r.lo
		}
		return res, nil
	case OpStr:
		return abstract{strs: true, faults: faults}, nil
	}

	lo, hi, extra := absArith(x.Op, vals)
	return clampInts(lo, hi, faults|extra), nil
}

func absEqual(a, b abstract) abstract {
	sa, okA := a.single()
	sb, okB := b.single()
	if okA && okB {
		eq := sa.Equal(sb)
		return abstract{canTrue: eq, canFalse: !eq}
	}
	overlap := (a.ints && b.ints && a.lo <= b.hi && b.lo <= a.hi) ||
		(a.canTrue && b.canTrue) || (a.canFalse && b.canFalse) ||
		(a.strs && b.strs && (!a.strExact || !b.strExact || a.str == b.str)) ||
		(a.void && b.void) ||
		(a.faults&b.faults != 0)
	return abstract{canTrue: overlap, canFalse: true}
}

func absLogic(op Op, vals []abstract, faults uint8) abstract {
	if op == OpNot {
		v := vals[0]
		return abstract{canTrue: v.canFalse, canFalse: v.canTrue, faults: v.faults}
	}
	dominant := op == OpOr
	res := abstract{faults: faults}
	// 先按合取计算,析取通过对偶得到
	allNonDominant := true
	anyDominant := false
	for _, v := range vals {
		canDom, canNon := v.canFalse, v.canTrue
		if dominant {
			canDom, canNon = v.canTrue, v.canFalse
		}
		if canDom && !canNon && v.faults == 0 {
			return abstract{canTrue: dominant, canFalse: !dominant}
		}
		if canDom {
			anyDominant = true
		}
		if !canNon {
			allNonDominant = false
		}
	}
	if dominant {
		res.canTrue, res.canFalse = anyDominant, allNonDominant
	} else {
		res.canFalse, res.canTrue = anyDominant, allNonDominant
	}
	return res
}

// absArith 用大整数计算结果区间,返回值可能超出int64范围,由clampInts处理
func absArith(op Op, vals []abstract) (*big.Int, *big.Int, uint8) {
	var extra uint8
	lo := func(a abstract) *big.Int { return big.NewInt(a.lo) }
	hi := func(a abstract) *big.Int { return big.NewInt(a.hi) }

	switch op {
	case OpAdd:
		l, h := new(big.Int), new(big.Int)
		for _, v := range vals {
			l.Add(l, lo(v))
			h.Add(h, hi(v))
		}
		return l, h, 0
	case OpSub:
		a, b := vals[0], vals[1]
		return new(big.Int).Sub(lo(a), hi(b)), new(big.Int).Sub(hi(a), lo(b)), 0
	case OpNeg:
		a := vals[0]
		return new(big.Int).Neg(hi(a)), new(big.Int).Neg(lo(a)), 0
	case OpMul:
		l, h := big.NewInt(1), big.NewInt(1)
		for _, v := range vals {
			l, h = cornerRange(l, h, lo(v), hi(v), func(z, x, y *big.Int) *big.Int { return z.Mul(x, y) })
		}
		return l, h, 0
	case OpDiv, OpMod:
		a, b := vals[0], vals[1]
		if b.lo <= 0 && 0 <= b.hi {
			extra |= faultBit(FaultDivisionByZero)
		}
		if a.lo == minInt64 && b.lo <= -1 && -1 <= b.hi {
			extra |= faultBit(FaultOverflow)
		}
		var l, h *big.Int
		for _, part := range nonZeroParts(b) {
			var pl, ph *big.Int
			if op == OpDiv {
				pl, ph = cornerRange(lo(a), hi(a), big.NewInt(part.Lo), big.NewInt(part.Hi),
					func(z, x, y *big.Int) *big.Int { return z.Quo(x, y) })
			} else {
				pl, ph = modRange(a, part)
			}
			if l == nil || pl.Cmp(l) < 0 {
				l = pl
			}
			if h == nil || ph.Cmp(h) > 0 {
				h = ph
			}
		}
		if l == nil {
			// 除数只可能为0
			return big.NewInt(1), big.NewInt(0), extra
		}
		return l, h, extra
	}
	return big.NewInt(minInt64), big.NewInt(maxInt64), 0
}

const (
	maxInt64 = int64(^uint64(0) >> 1)
	minInt64 = -maxInt64 - 1
)

// cornerRange 对单调(分段单调)运算取四个角点的最小/最大值
func cornerRange(al, ah, bl, bh *big.Int, f func(z, x, y *big.Int) *big.Int) (*big.Int, *big.Int) {
	var l, h *big.Int
	for _, x := range []*big.Int{al, ah} {
		for _, y := range []*big.Int{bl, bh} {
			v := f(new(big.Int), x, y)
			if l == nil || v.Cmp(l) < 0 {
				l = v
			}
			if h == nil || v.Cmp(h) > 0 {
				h = v
			}
		}
	}
	return l, h
}

func nonZeroParts(b abstract) []Interval {
	var parts []Interval
	if b.lo <= -1 {
		parts = append(parts, Interval{Lo: b.lo, Hi: min(b.hi, -1)})
	}
	if b.hi >= 1 {
		parts = append(parts, Interval{Lo: max(b.lo, 1), Hi: b.hi})
	}
	return parts
}

// modRange 截断取余: |r| < |b|, 符号跟随被除数, |r| <= |a|
func modRange(a abstract, b Interval) (*big.Int, *big.Int) {
	m := new(big.Int).Abs(big.NewInt(b.Lo))
	if hb := new(big.Int).Abs(big.NewInt(b.Hi)); hb.Cmp(m) > 0 {
		m = hb
	}
	m.Sub(m, big.NewInt(1))

	l := big.NewInt(min(a.lo, 0))
	if neg := new(big.Int).Neg(m); neg.Cmp(l) > 0 {
		l = neg
	}
	h := big.NewInt(max(a.hi, 0))
	if m.Cmp(h) < 0 {
		h = m
	}
	return l, h
}

func clampInts(l, h *big.Int, faults uint8) abstract {
	if l.Cmp(h) > 0 {
		return abstract{faults: faults}
	}
	if l.Cmp(bigMaxInt64) > 0 || h.Cmp(bigMinInt64) < 0 {
		return abstract{faults: faults | faultBit(FaultOverflow)}
	}
	res := abstract{ints: true, faults: faults}
	if l.Cmp(bigMinInt64) < 0 {
		res.faults |= faultBit(FaultOverflow)
		l = bigMinInt64
	}
	if h.Cmp(bigMaxInt64) > 0 {
		res.faults |= faultBit(FaultOverflow)
		h = bigMaxInt64
	}
	res.lo, res.hi = l.Int64(), h.Int64()
	return res
}

// MayFault 判断表达式的任意子项在盒内是否可能出现除零/溢出
// 比较运算会吸收故障,因此需要逐个子项检查
func MayFault(e Expr, b Box) (bool, error) {
	ap, ok := e.(Apply)
	if !ok {
		return false, nil
	}
	a, err := absEval(ap, b)
	if err != nil {
		return false, err
	}
	if a.faults != 0 {
		return true, nil
	}
	for _, arg := range ap.Args {
		f, err := MayFault(arg, b)
		if err != nil || f {
			return f, err
		}
	}
	return false, nil
}
