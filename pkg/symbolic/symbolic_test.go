package symbolic

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==================== 解析测试 ====================

func TestParse(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"x > 10", "(x > 10)"},
		{"x + y * 2", "(x + (y * 2))"},
		{"!(x == 1) && y != 2", "(!((x == 1)) && (y != 2))"},
		{`"Hello\n"`, `"Hello\n"`},
		{`concat("v=", str(x))`, `concat("v=", str(x))`},
		{"-9223372036854775808", "-9223372036854775808"},
		{"-x", "-(x)"},
		{"", "void()"},
		{"void()", "void()"},
	}

	for _, tt := range tests {
		got, err := Parse(tt.src)
		require.NoError(t, err, tt.src)
		assert.Equal(t, tt.want, got.String(), tt.src)
	}
}

func TestParseErrors(t *testing.T) {
	for _, src := range []string{"x <<", "f(x)", "x & 1", "99999999999999999999", "str(x, y)"} {
		_, err := Parse(src)
		assert.Error(t, err, src)
	}
}

func TestCheck(t *testing.T) {
	k, err := Check(MustParse("x + 1 > y"))
	require.NoError(t, err)
	assert.Equal(t, KindBool, k)

	k, err = Check(MustParse(`concat("a", str(x))`))
	require.NoError(t, err)
	assert.Equal(t, KindString, k)

	_, err = Check(MustParse(`x + "a"`))
	assert.ErrorIs(t, err, ErrTypeMismatch)

	_, err = Check(MustParse("x && true"))
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestFreeVars(t *testing.T) {
	assert.Equal(t, []string{"x", "y"}, FreeVars(MustParse("x + y > x")))
	assert.Empty(t, FreeVars(MustParse("1 + 2")))
}

// ==================== 范围测试 ====================

func TestParseBounds(t *testing.T) {
	d, err := ParseBounds("x:0:100, y:-5:5")
	require.NoError(t, err)
	assert.Equal(t, Domain{{Name: "x", Min: 0, Max: 100}, {Name: "y", Min: -5, Max: 5}}, d)

	_, err = ParseBounds("x:0")
	assert.Error(t, err)
	_, err = ParseBounds("x:5:1")
	assert.Error(t, err)
	_, err = ParseBounds("x:0:1,x:2:3")
	assert.Error(t, err)
	_, err = ParseBounds("x:a:1")
	assert.Error(t, err)
	_, err = ParseBounds("true:0:1")
	assert.ErrorContains(t, err, "reserved")
}

func TestBoxSplit(t *testing.T) {
	b := NewBox(Domain{{Name: "x", Min: 0, Max: 10}, {Name: "y", Min: 0, Max: 1}})
	lower, upper := b.Split()

	x, _ := lower.Get("x")
	assert.Equal(t, Interval{Lo: 0, Hi: 5}, x)
	x, _ = upper.Get("x")
	assert.Equal(t, Interval{Lo: 6, Hi: 10}, x)

	// 原盒不受影响
	x, _ = b.Get("x")
	assert.Equal(t, Interval{Lo: 0, Hi: 10}, x)
	assert.False(t, b.IsPoint())
	assert.Equal(t, Model{"x": 0, "y": 0}, b.Low())
}

func TestBoxSplitFullRange(t *testing.T) {
	b := NewBox(Domain{{Name: "x", Min: math.MinInt64, Max: math.MaxInt64}})
	lower, upper := b.Split()
	l, _ := lower.Get("x")
	u, _ := upper.Get("x")
	assert.Equal(t, int64(math.MinInt64), l.Lo)
	assert.Equal(t, l.Hi+1, u.Lo)
	assert.Equal(t, int64(math.MaxInt64), u.Hi)
}

// ==================== 求值测试 ====================

func TestSubstitute(t *testing.T) {
	v, err := Substitute(MustParse("x * 2 + y"), Model{"x": 3, "y": 4})
	require.NoError(t, err)
	assert.Equal(t, IntValue(10), v)

	v, err = Substitute(MustParse(`concat("v=", str(x))`), Model{"x": -7})
	require.NoError(t, err)
	assert.Equal(t, StringValue("v=-7"), v)

	v, err = Substitute(MustParse("-7 / 2"), nil)
	require.NoError(t, err)
	assert.Equal(t, IntValue(-3), v, "truncated division")

	v, err = Substitute(MustParse("-7 % 2"), nil)
	require.NoError(t, err)
	assert.Equal(t, IntValue(-1), v)
}

func TestSubstituteUnbound(t *testing.T) {
	_, err := Substitute(MustParse("x + y"), Model{"x": 1})
	var unbound *UnboundVariableError
	require.True(t, errors.As(err, &unbound))
	assert.Equal(t, "y", unbound.Name)
}

func TestSubstituteFaults(t *testing.T) {
	v, err := Substitute(MustParse("10 / x"), Model{"x": 0})
	assert.ErrorIs(t, err, ErrDivisionByZero)
	assert.Equal(t, FaultValue(FaultDivisionByZero), v)

	v, err = Substitute(MustParse("x % 0"), Model{"x": 3})
	assert.ErrorIs(t, err, ErrDivisionByZero)
	assert.True(t, v.IsFault())

	v, err = Substitute(MustParse("x + 1"), Model{"x": math.MaxInt64})
	assert.ErrorIs(t, err, ErrOverflow)
	assert.Equal(t, FaultValue(FaultOverflow), v)

	_, err = Substitute(MustParse("x * x"), Model{"x": math.MaxInt64})
	assert.ErrorIs(t, err, ErrOverflow)

	_, err = Substitute(MustParse("-x"), Model{"x": math.MinInt64})
	assert.ErrorIs(t, err, ErrOverflow)

	_, err = Substitute(MustParse("x / -1"), Model{"x": math.MinInt64})
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestChainedAddIsExact(t *testing.T) {
	// 中间结果越界但最终结果在范围内,不报溢出
	v, err := Substitute(MustParse("(x + 1) + -2"), Model{"x": math.MaxInt64})
	require.NoError(t, err)
	assert.Equal(t, IntValue(math.MaxInt64-1), v)
}

func TestFaultComparison(t *testing.T) {
	m := Model{"x": 0}
	ok, err := Holds(MustParse("1 / x == 2 / x"), m)
	require.NoError(t, err)
	assert.True(t, ok, "same fault kind compares equal")

	ok, err = Holds(MustParse("1 / x != 0"), m)
	require.NoError(t, err)
	assert.True(t, ok, "fault differs from any integer")

	ok, err = Holds(MustParse("1 / x < 3"), m)
	require.NoError(t, err)
	assert.False(t, ok, "faulting clause does not hold")

	ok, err = Holds(MustParse("1 / x < 3 || x == 0"), m)
	require.NoError(t, err)
	assert.True(t, ok)
}

// ==================== 规范化测试 ====================

func TestNormalizeCommutative(t *testing.T) {
	pairs := [][2]string{
		{"a + b", "b + a"},
		{"x * y * 3", "3 * (y * x)"},
		{"x > 5 && y < 2", "2 > y && 5 < x"},
		{"x == y", "y == x"},
		{"(a + b) + c", "a + (c + b)"},
	}
	for _, p := range pairs {
		assert.Equal(t, Key(Normalize(MustParse(p[0]))), Key(Normalize(MustParse(p[1]))), "%s vs %s", p[0], p[1])
	}
}

func TestNormalizeFolding(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"1 + 2 * 3", "7"},
		{"x + 0", "x"},
		{"x * 1", "x"},
		{"x + 1 + 2", "(3 + x)"},
		{"x > 3", "(3 < x)"},
		{"!(x < 3)", "(3 <= x)"},
		{"!!(x == 1)", "(1 == x)"},
		{"x + 1 == 1 + x", "true"},
		{"x != x", "false"},
		{"x > 1 && false", "false"},
		{"x > 1 || true", "true"},
		{"x > 1 && x > 1", "(1 < x)"},
		{`concat("a", "b", str(3), str(x))`, `concat("ab3", str(x))`},
		{"1 / 0", "(1 / 0)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(MustParse(tt.src)).String(), tt.src)
	}
}

func TestVoidDistinctFromVariable(t *testing.T) {
	// 名为 void 的输入变量与无返回值不是同一个表达式
	assert.NotEqual(t, Key(Void()), Key(V("void")))
	_, folded := Normalize(Ne(Void(), V("void"))).(Lit)
	assert.False(t, folded)

	ok, err := Holds(Normalize(Ne(Void(), V("void"))), Model{"void": 3})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNormalizeIdempotent(t *testing.T) {
	srcs := []string{
		"x + y * (z - 1) > 3 && !(x == 2) || y >= 4",
		"((a + 1) + (b + 2)) * (c * 4)",
		`concat(str(x), "", "-", str(y + 1))`,
		"!(!(x < y)) && (x != 3 || false)",
		"9223372036854775807 + 1 + x",
		"x / 0 == y % 0",
	}
	for _, src := range srcs {
		once := Normalize(MustParse(src))
		twice := Normalize(once)
		assert.Equal(t, once.String(), twice.String(), src)
	}
}

func TestNormalizePreservesValue(t *testing.T) {
	srcs := []string{
		"x + y * (z - 1)",
		"(x + 9223372036854775807) + -9223372036854775807",
		"x > y || z >= x",
		"!(x < y) && (1 / z == 0)",
		"x * y * 0",
	}
	models := []Model{
		{"x": 0, "y": 0, "z": 0},
		{"x": 3, "y": -2, "z": 7},
		{"x": math.MaxInt64, "y": 1, "z": -1},
	}
	for _, src := range srcs {
		e := MustParse(src)
		n := Normalize(e)
		for _, m := range models {
			a, _ := Substitute(e, m)
			b, _ := Substitute(n, m)
			assert.True(t, a.Equal(b), "%s at %v: %s vs %s", src, m, a, b)
		}
	}
}

// ==================== 区间求值测试 ====================

func TestEvalInterval(t *testing.T) {
	box := NewBox(Domain{{Name: "x", Min: 0, Max: 10}})
	tests := []struct {
		src  string
		want Tri
	}{
		{"x >= 0", TriTrue},
		{"x > 10", TriFalse},
		{"x > 5", TriMaybe},
		{"x + 1 > 0", TriTrue},
		{"x * x <= 100", TriTrue},
		{"x / 2 <= 5", TriTrue},
		{"x % 3 < 3", TriTrue},
		{"100 / x > 5", TriMaybe},
		{"x > 5 && x > 20", TriFalse},
		{"x > 5 && x < 3", TriMaybe},
		{"x > 20 || x >= 0", TriTrue},
	}
	for _, tt := range tests {
		got, err := EvalInterval(MustParse(tt.src), box)
		require.NoError(t, err, tt.src)
		assert.Equal(t, tt.want, got, tt.src)
	}
}

func TestEvalIntervalPointIsExact(t *testing.T) {
	box := NewBox(Domain{{Name: "x", Min: 6, Max: 6}})
	got, err := EvalInterval(MustParse("x + 1 != x"), box)
	require.NoError(t, err)
	assert.Equal(t, TriTrue, got)

	got, err = EvalInterval(MustParse(`concat("v", str(x)) == "v6"`), box)
	require.NoError(t, err)
	assert.Equal(t, TriTrue, got)
}

func TestEvalIntervalFaults(t *testing.T) {
	box := NewBox(Domain{{Name: "x", Min: 0, Max: 0}})
	got, err := EvalInterval(MustParse("10 / x == 1"), box)
	require.NoError(t, err)
	assert.Equal(t, TriFalse, got)

	box = NewBox(Domain{{Name: "x", Min: 9223372036854775800, Max: 9223372036854775807}})
	got, err = EvalInterval(MustParse("x + 10 > 0"), box)
	require.NoError(t, err)
	assert.Equal(t, TriFalse, got, "every point overflows")
}

func TestEvalIntervalUnbound(t *testing.T) {
	box := NewBox(Domain{{Name: "x", Min: 0, Max: 1}})
	_, err := EvalInterval(MustParse("y > 0"), box)
	var unbound *UnboundVariableError
	assert.True(t, errors.As(err, &unbound))
}
