package summary

import (
	"fmt"

	"equivcheck/pkg/symbolic"
)

// Validate 检查摘要与输入域是否一致
// 路径ID唯一;所有自由变量都在输入域中声明;路径条件子句为布尔,日志为字符串
func (s *Store) Validate(domain symbolic.Domain) error {
	if err := domain.Validate(); err != nil {
		return err
	}

	seen := make(map[string]Origin)
	for _, side := range [][]*PathSummary{s.First, s.Second} {
		for _, p := range side {
			if prev, dup := seen[p.ID]; dup {
				return fmt.Errorf("duplicate path id %q (%s and %s)", p.ID, prev, p.Origin)
			}
			seen[p.ID] = p.Origin
			if err := p.validate(domain); err != nil {
				return fmt.Errorf("%s path %s: %w", p.Origin, p.ID, err)
			}
		}
	}
	return nil
}

func (p *PathSummary) validate(domain symbolic.Domain) error {
	check := func(what string, e symbolic.Expr, want ...symbolic.Kind) error {
		for _, name := range symbolic.FreeVars(e) {
			if _, ok := domain.Lookup(name); !ok {
				return fmt.Errorf("%s: %w", what, &symbolic.UnboundVariableError{Name: name})
			}
		}
		k, err := symbolic.Check(e)
		if err != nil {
			return fmt.Errorf("%s: %w", what, err)
		}
		if len(want) > 0 && k != want[0] {
			return fmt.Errorf("%s: %w: %s is %s, want %s", what, symbolic.ErrTypeMismatch, e, k, want[0])
		}
		return nil
	}

	for i, c := range p.PathCondition {
		if err := check(fmt.Sprintf("path_condition[%d]", i), c, symbolic.KindBool); err != nil {
			return err
		}
	}
	if err := check("return_expr", p.ReturnExpr); err != nil {
		return err
	}
	for i, e := range p.StdoutLog {
		if err := check(fmt.Sprintf("stdout_log[%d]", i), e, symbolic.KindString); err != nil {
			return err
		}
	}
	for i, e := range p.StderrLog {
		if err := check(fmt.Sprintf("stderr_log[%d]", i), e, symbolic.KindString); err != nil {
			return err
		}
	}
	for _, name := range p.GlobalNames() {
		if err := check("global_writes["+name+"]", p.GlobalWrites[name]); err != nil {
			return err
		}
	}
	for i, op := range p.FileOps {
		if op.Data == nil {
			continue
		}
		if err := check(fmt.Sprintf("file_ops[%d].data", i), op.Data); err != nil {
			return err
		}
	}
	return nil
}
