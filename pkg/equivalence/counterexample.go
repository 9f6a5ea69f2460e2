package equivalence

import (
	"errors"
	"sort"
	"strconv"
	"strings"

	"equivcheck/pkg/summary"
	"equivcheck/pkg/symbolic"
)

// unwritten 只有一方写入的全局变量在另一方的展示值
const unwritten = "<unwritten>"

// behavior 具体输入下的行为(值形式,用于比较)
type behavior struct {
	ret     symbolic.Value
	stdout  []symbolic.Value
	stderr  []symbolic.Value
	globals map[string]symbolic.Value
	fileOps []fileOpValue
}

type fileOpValue struct {
	kind     summary.FileOpKind
	filename string
	data     *symbolic.Value
}

func (f fileOpValue) equal(o fileOpValue) bool {
	if f.kind != o.kind || f.filename != o.filename {
		return false
	}
	if f.data == nil || o.data == nil {
		return f.data == nil && o.data == nil
	}
	return f.data.Equal(*o.data)
}

// BuildCounterexample 把模型代入两条路径,逐通道比较行为
// 模型缺少任何声明的输入时返回 ModelIncompleteError
func BuildCounterexample(domain symbolic.Domain, model symbolic.Model, first, second *summary.PathSummary) (*Counterexample, error) {
	inputs := make(map[string]int64, len(domain))
	for _, b := range domain {
		v, ok := model[b.Name]
		if !ok {
			return nil, &ModelIncompleteError{Missing: b.Name}
		}
		inputs[b.Name] = v
	}

	fb, err := replay(first, inputs)
	if err != nil {
		return nil, err
	}
	sb, err := replay(second, inputs)
	if err != nil {
		return nil, err
	}

	return &Counterexample{
		Inputs:         inputs,
		FirstPath:      first.ID,
		SecondPath:     second.ID,
		FirstBehavior:  fb.snapshot(),
		SecondBehavior: sb.snapshot(),
		Differences:    diff(fb, sb),
	}, nil
}

// replay 代入模型;除零/溢出作为行为值保留
func replay(p *summary.PathSummary, m symbolic.Model) (*behavior, error) {
	b := &behavior{globals: make(map[string]symbolic.Value, len(p.GlobalWrites))}

	var err error
	if b.ret, err = concrete(p.ReturnExpr, m); err != nil {
		return nil, err
	}
	if b.stdout, err = concreteAll(p.StdoutLog, m); err != nil {
		return nil, err
	}
	if b.stderr, err = concreteAll(p.StderrLog, m); err != nil {
		return nil, err
	}
	for name, e := range p.GlobalWrites {
		v, err := concrete(e, m)
		if err != nil {
			return nil, err
		}
		b.globals[name] = v
	}
	for _, op := range p.FileOps {
		fv := fileOpValue{kind: op.Kind, filename: op.Filename}
		if op.Data != nil {
			v, err := concrete(op.Data, m)
			if err != nil {
				return nil, err
			}
			fv.data = &v
		}
		b.fileOps = append(b.fileOps, fv)
	}
	return b, nil
}

func concrete(e symbolic.Expr, m symbolic.Model) (symbolic.Value, error) {
	v, err := symbolic.Substitute(e, m)
	if err != nil && !errors.Is(err, symbolic.ErrDivisionByZero) && !errors.Is(err, symbolic.ErrOverflow) {
		return symbolic.Value{}, err
	}
	return v, nil
}

func concreteAll(es []symbolic.Expr, m symbolic.Model) ([]symbolic.Value, error) {
	vals := make([]symbolic.Value, len(es))
	for i, e := range es {
		v, err := concrete(e, m)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return vals, nil
}

// ==================== 快照与比较 ====================

func (b *behavior) snapshot() BehaviorSnapshot {
	s := BehaviorSnapshot{
		ReturnValue: b.ret.String(),
		Stdout:      renderLog(b.stdout),
		Stderr:      renderLog(b.stderr),
		Globals:     make([]GlobalValue, 0, len(b.globals)),
		FileOps:     make([]FileOpRecord, 0, len(b.fileOps)),
	}
	for _, name := range sortedKeys(b.globals) {
		s.Globals = append(s.Globals, GlobalValue{Name: name, Value: b.globals[name].String()})
	}
	for _, op := range b.fileOps {
		s.FileOps = append(s.FileOps, op.record())
	}
	return s
}

func (f fileOpValue) record() FileOpRecord {
	r := FileOpRecord{OpType: string(f.kind), Filename: f.filename}
	if f.data != nil {
		d := f.data.String()
		r.Data = &d
	}
	return r
}

// renderLog 日志行按原文展示,故障显示为 <division by zero> / <overflow>
func renderLog(vals []symbolic.Value) []string {
	lines := make([]string, len(vals))
	for i, v := range vals {
		if v.Kind == symbolic.KindString {
			lines[i] = v.Str
		} else {
			lines[i] = v.String()
		}
	}
	return lines
}

func formatLog(lines []string) string {
	quoted := make([]string, len(lines))
	for i, l := range lines {
		quoted[i] = strconv.Quote(l)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

func formatFileOps(ops []fileOpValue) string {
	parts := make([]string, len(ops))
	for i, op := range ops {
		parts[i] = op.record().String()
	}
	return "[" + strings.Join(parts, "; ") + "]"
}

func valuesEqual(a, b []symbolic.Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// diff 按通道顺序列出实际不同的通道
func diff(a, b *behavior) []Difference {
	var diffs []Difference

	if !a.ret.Equal(b.ret) {
		diffs = append(diffs, Difference{Kind: DiffReturnValue, FirstValue: a.ret.String(), SecondValue: b.ret.String()})
	}
	if !valuesEqual(a.stdout, b.stdout) {
		diffs = append(diffs, Difference{Kind: DiffStdout,
			FirstValue: formatLog(renderLog(a.stdout)), SecondValue: formatLog(renderLog(b.stdout))})
	}
	if !valuesEqual(a.stderr, b.stderr) {
		diffs = append(diffs, Difference{Kind: DiffStderr,
			FirstValue: formatLog(renderLog(a.stderr)), SecondValue: formatLog(renderLog(b.stderr))})
	}

	names := make(map[string]bool)
	for n := range a.globals {
		names[n] = true
	}
	for n := range b.globals {
		names[n] = true
	}
	for _, name := range sortedKeys(names) {
		av, aok := a.globals[name]
		bv, bok := b.globals[name]
		if aok && bok && av.Equal(bv) {
			continue
		}
		d := Difference{Kind: DiffGlobalVariable, Variable: name, FirstValue: unwritten, SecondValue: unwritten}
		if aok {
			d.FirstValue = av.String()
		}
		if bok {
			d.SecondValue = bv.String()
		}
		diffs = append(diffs, d)
	}

	sameOps := len(a.fileOps) == len(b.fileOps)
	for i := 0; sameOps && i < len(a.fileOps); i++ {
		sameOps = a.fileOps[i].equal(b.fileOps[i])
	}
	if !sameOps {
		diffs = append(diffs, Difference{Kind: DiffFileOperation,
			FirstValue: formatFileOps(a.fileOps), SecondValue: formatFileOps(b.fileOps)})
	}

	return diffs
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
