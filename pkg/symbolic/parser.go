package symbolic

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strconv"
	"strings"
)

var binaryTokens = map[token.Token]Op{
	token.ADD: OpAdd, token.SUB: OpSub, token.MUL: OpMul, token.QUO: OpDiv, token.REM: OpMod,
	token.EQL: OpEq, token.NEQ: OpNe, token.LSS: OpLt, token.LEQ: OpLe, token.GTR: OpGt, token.GEQ: OpGe,
	token.LAND: OpAnd, token.LOR: OpOr,
}

// Parse 解析符号执行器输出的表达式文本
// 语法与Go表达式一致,例如 "x > 10"、"x + y"、"\"Hello\\n\""、"concat(\"v=\", str(x))"
// 空文本表示无返回值(void)
func Parse(src string) (Expr, error) {
	if strings.TrimSpace(src) == "" {
		return Void(), nil
	}
	node, err := parser.ParseExpr(src)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", src, err)
	}
	e, err := convert(node)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", src, err)
	}
	return e, nil
}

// MustParse 解析失败时panic,仅用于测试和常量
func MustParse(src string) Expr {
	e, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return e
}

func convert(node ast.Expr) (Expr, error) {
	switch n := node.(type) {
	case *ast.ParenExpr:
		return convert(n.X)

	case *ast.Ident:
		switch n.Name {
		case "true":
			return True, nil
		case "false":
			return False, nil
		}
		return V(n.Name), nil

	case *ast.BasicLit:
		switch n.Kind {
		case token.INT:
			v, err := strconv.ParseInt(n.Value, 0, 64)
			if err != nil {
				return nil, fmt.Errorf("integer literal %s: %w", n.Value, err)
			}
			return Int(v), nil
		case token.STRING, token.CHAR:
			s, err := strconv.Unquote(n.Value)
			if err != nil {
				return nil, fmt.Errorf("string literal %s: %w", n.Value, err)
			}
			return Str(s), nil
		}
		return nil, fmt.Errorf("unsupported literal %s", n.Value)

	case *ast.UnaryExpr:
		// -9223372036854775808 需要整体解析,否则正数部分溢出
		if lit, ok := n.X.(*ast.BasicLit); ok && n.Op == token.SUB && lit.Kind == token.INT {
			if v, err := strconv.ParseInt("-"+lit.Value, 0, 64); err == nil {
				return Int(v), nil
			}
		}
		x, err := convert(n.X)
		if err != nil {
			return nil, err
		}
		switch n.Op {
		case token.SUB:
			return Apply{Op: OpNeg, Args: []Expr{x}}, nil
		case token.ADD:
			return x, nil
		case token.NOT:
			return Not(x), nil
		}
		return nil, fmt.Errorf("unsupported unary operator %s", n.Op)

	case *ast.BinaryExpr:
		op, ok := binaryTokens[n.Op]
		if !ok {
			return nil, fmt.Errorf("unsupported operator %s", n.Op)
		}
		l, err := convert(n.X)
		if err != nil {
			return nil, err
		}
		r, err := convert(n.Y)
		if err != nil {
			return nil, err
		}
		return Binary(op, l, r), nil

	case *ast.CallExpr:
		fn, ok := n.Fun.(*ast.Ident)
		if !ok {
			return nil, fmt.Errorf("unsupported call target")
		}
		args := make([]Expr, 0, len(n.Args))
		for _, a := range n.Args {
			e, err := convert(a)
			if err != nil {
				return nil, err
			}
			args = append(args, e)
		}
		switch fn.Name {
		case "str":
			if len(args) != 1 {
				return nil, fmt.Errorf("str expects 1 argument, got %d", len(args))
			}
			return Apply{Op: OpStr, Args: args}, nil
		case "void":
			if len(args) != 0 {
				return nil, fmt.Errorf("void expects no arguments, got %d", len(args))
			}
			return Void(), nil
		case "concat":
			if len(args) == 0 {
				return Str(""), nil
			}
			return Apply{Op: OpConcat, Args: args}, nil
		}
		return nil, fmt.Errorf("unknown function %s", fn.Name)
	}
	return nil, fmt.Errorf("unsupported expression %T", node)
}

// ==================== 类型检查 ====================

// Check 静态检查表达式类型,变量一律为整数
func Check(e Expr) (Kind, error) {
	switch x := e.(type) {
	case Var:
		return KindInt, nil
	case Lit:
		return x.Val.Kind, nil
	case Apply:
		kinds := make([]Kind, len(x.Args))
		for i, a := range x.Args {
			k, err := Check(a)
			if err != nil {
				return 0, err
			}
			kinds[i] = k
		}
		want := func(k Kind) error {
			for i, got := range kinds {
				if got != k {
					return fmt.Errorf("%w: operand %s of %q is %s, want %s", ErrTypeMismatch, x.Args[i], x.Op, got, k)
				}
			}
			return nil
		}
		switch x.Op {
		case OpAdd, OpSub, OpMul, OpDiv, OpMod, OpNeg:
			return KindInt, want(KindInt)
		case OpLt, OpLe, OpGt, OpGe:
			return KindBool, want(KindInt)
		case OpEq, OpNe:
			return KindBool, nil
		case OpAnd, OpOr, OpNot:
			return KindBool, want(KindBool)
		case OpStr:
			return KindString, want(KindInt)
		case OpConcat:
			return KindString, want(KindString)
		}
		return 0, fmt.Errorf("unknown operator %d", x.Op)
	}
	return 0, fmt.Errorf("unknown expression %T", e)
}
