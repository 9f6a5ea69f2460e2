package symbolic

import "sort"

// Normalize 将表达式化为规范形式
//   - 展平嵌套的结合运算 (+ * && || concat)
//   - 交换运算的操作数按规范文本排序
//   - 折叠常量子表达式(会产生故障的计算保持原样,留给求值报告)
//   - a > b 改写为 b < a, a >= b 改写为 b <= a, 消去双重取反
//
// 结果幂等: Normalize(Normalize(e)) 与 Normalize(e) 结构相同
func Normalize(e Expr) Expr {
	x, ok := e.(Apply)
	if !ok {
		return e
	}
	args := make([]Expr, len(x.Args))
	for i, a := range x.Args {
		args[i] = Normalize(a)
	}
	return normalizeApply(x.Op, args)
}

// Key 规范文本,作为交换运算排序的全序键
func Key(e Expr) string {
	return e.String()
}

func normalizeApply(op Op, args []Expr) Expr {
	switch op {
	case OpGt:
		return normalizeApply(OpLt, []Expr{args[1], args[0]})
	case OpGe:
		return normalizeApply(OpLe, []Expr{args[1], args[0]})
	case OpNot:
		return normalizeNot(args[0])
	case OpEq, OpNe:
		sortExprs(args)
		if Key(args[0]) == Key(args[1]) {
			return Bool(op == OpEq)
		}
	case OpAdd, OpMul, OpAnd, OpOr, OpConcat:
		return normalizeChain(op, flatten(op, args))
	}
	return foldConst(Apply{Op: op, Args: args})
}

func normalizeNot(a Expr) Expr {
	if lit, ok := a.(Lit); ok && lit.Val.Kind == KindBool {
		return Bool(!lit.Val.Bool)
	}
	if ap, ok := a.(Apply); ok {
		switch ap.Op {
		case OpNot:
			return ap.Args[0]
		case OpLt:
			return foldConst(Apply{Op: OpLe, Args: []Expr{ap.Args[1], ap.Args[0]}})
		case OpLe:
			return foldConst(Apply{Op: OpLt, Args: []Expr{ap.Args[1], ap.Args[0]}})
		case OpEq:
			return Apply{Op: OpNe, Args: ap.Args}
		case OpNe:
			return Apply{Op: OpEq, Args: ap.Args}
		}
	}
	return Apply{Op: OpNot, Args: []Expr{a}}
}

func normalizeChain(op Op, args []Expr) Expr {
	var out []Expr
	switch op {
	case OpAdd, OpMul:
		out = foldArith(op, args)
	case OpAnd, OpOr:
		// false 决定合取, true 决定析取
		dominant := op == OpOr
		for _, a := range args {
			if lit, ok := a.(Lit); ok && lit.Val.Kind == KindBool {
				if lit.Val.Bool == dominant {
					return Bool(dominant)
				}
				continue
			}
			out = append(out, a)
		}
	case OpConcat:
		out = mergeStrings(args)
	}

	if op.IsCommutative() {
		sortExprs(out)
		if op == OpAnd || op == OpOr {
			out = dedupe(out)
		}
	}

	switch len(out) {
	case 0:
		return identity(op)
	case 1:
		return out[0]
	}
	return Apply{Op: op, Args: out}
}

func identity(op Op) Expr {
	switch op {
	case OpAdd:
		return Int(0)
	case OpMul:
		return Int(1)
	case OpAnd:
		return True
	case OpOr:
		return False
	}
	return Str("")
}

// foldArith 合并整数字面量;合并结果溢出时保留原字面量
func foldArith(op Op, args []Expr) []Expr {
	var lits []Value
	var rest []Expr
	for _, a := range args {
		if lit, ok := a.(Lit); ok && lit.Val.Kind == KindInt {
			lits = append(lits, lit.Val)
			continue
		}
		rest = append(rest, a)
	}
	if len(lits) == 0 {
		return rest
	}
	var folded Value
	if op == OpAdd {
		folded = exactSum(lits)
	} else {
		folded = exactProduct(lits)
	}
	if folded.IsFault() {
		for _, v := range lits {
			rest = append(rest, Lit{Val: v})
		}
		return rest
	}
	neutral := int64(0)
	if op == OpMul {
		neutral = 1
	}
	if folded.Int == neutral && len(rest) > 0 {
		return rest
	}
	return append(rest, Lit{Val: folded})
}

func mergeStrings(args []Expr) []Expr {
	var out []Expr
	for _, a := range args {
		lit, ok := a.(Lit)
		if !ok || lit.Val.Kind != KindString {
			out = append(out, a)
			continue
		}
		if lit.Val.Str == "" {
			continue
		}
		if n := len(out); n > 0 {
			if prev, ok := out[n-1].(Lit); ok && prev.Val.Kind == KindString {
				out[n-1] = Str(prev.Val.Str + lit.Val.Str)
				continue
			}
		}
		out = append(out, a)
	}
	return out
}

// foldConst 所有操作数均为字面量且求值无故障时折叠为字面量
func foldConst(ap Apply) Expr {
	for _, a := range ap.Args {
		if _, ok := a.(Lit); !ok {
			return ap
		}
	}
	v, err := eval(ap, nil)
	if err != nil || v.IsFault() {
		return ap
	}
	return Lit{Val: v}
}

func sortExprs(args []Expr) {
	sort.SliceStable(args, func(i, j int) bool {
		return Key(args[i]) < Key(args[j])
	})
}

func dedupe(sorted []Expr) []Expr {
	out := make([]Expr, 0, len(sorted))
	for i, a := range sorted {
		if i > 0 && Key(a) == Key(sorted[i-1]) {
			continue
		}
		out = append(out, a)
	}
	return out
}
