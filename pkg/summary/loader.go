package summary

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"equivcheck/pkg/symbolic"
)

// rawFile 摘要文件的JSON结构
type rawFile struct {
	Function string    `json:"function"`
	First    []rawPath `json:"first"`
	Second   []rawPath `json:"second"`
}

// rawPath 符号执行器输出的单条路径,表达式均为文本
type rawPath struct {
	ID            string      `json:"id"`
	PathCondition []string    `json:"path_condition"`
	ReturnExpr    string      `json:"return_expr"`
	StdoutLog     []string    `json:"stdout_log"`
	StderrLog     []string    `json:"stderr_log"`
	GlobalWrites  [][2]string `json:"global_writes"`
	FileOps       []rawFileOp `json:"file_ops"`
}

type rawFileOp struct {
	OpType   string  `json:"op_type"`
	Filename string  `json:"filename"`
	Data     *string `json:"data,omitempty"`
}

// Load 从文件加载路径摘要
func Load(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open summaries: %w", err)
	}
	defer f.Close()

	store, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return store, nil
}

// Decode 解析摘要JSON并把表达式文本转换为符号表达式
func Decode(r io.Reader) (*Store, error) {
	var raw rawFile
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode summaries: %w", err)
	}

	store := &Store{Function: raw.Function}
	var err error
	if store.First, err = convertPaths(raw.First, FirstProgram); err != nil {
		return nil, err
	}
	if store.Second, err = convertPaths(raw.Second, SecondProgram); err != nil {
		return nil, err
	}
	return store, nil
}

func convertPaths(raws []rawPath, origin Origin) ([]*PathSummary, error) {
	paths := make([]*PathSummary, 0, len(raws))
	for i, rp := range raws {
		p, err := convertPath(rp, origin)
		if err != nil {
			id := rp.ID
			if id == "" {
				id = fmt.Sprintf("#%d", i)
			}
			return nil, fmt.Errorf("%s path %s: %w", origin, id, err)
		}
		paths = append(paths, p)
	}
	return paths, nil
}

func convertPath(rp rawPath, origin Origin) (*PathSummary, error) {
	if rp.ID == "" {
		return nil, fmt.Errorf("missing id")
	}
	p := &PathSummary{
		ID:           rp.ID,
		Origin:       origin,
		GlobalWrites: make(map[string]symbolic.Expr, len(rp.GlobalWrites)),
	}

	var err error
	if p.PathCondition, err = parseAll("path_condition", rp.PathCondition); err != nil {
		return nil, err
	}
	if p.ReturnExpr, err = symbolic.Parse(rp.ReturnExpr); err != nil {
		return nil, fmt.Errorf("return_expr: %w", err)
	}
	if p.StdoutLog, err = parseAll("stdout_log", rp.StdoutLog); err != nil {
		return nil, err
	}
	if p.StderrLog, err = parseAll("stderr_log", rp.StderrLog); err != nil {
		return nil, err
	}

	for _, w := range rp.GlobalWrites {
		if w[0] == "" {
			return nil, fmt.Errorf("global_writes: empty variable name")
		}
		e, err := symbolic.Parse(w[1])
		if err != nil {
			return nil, fmt.Errorf("global_writes[%s]: %w", w[0], err)
		}
		p.GlobalWrites[w[0]] = e
	}

	for i, op := range rp.FileOps {
		kind := FileOpKind(op.OpType)
		if !kind.Valid() {
			return nil, fmt.Errorf("file_ops[%d]: unknown op_type %q", i, op.OpType)
		}
		fo := FileOperation{Kind: kind, Filename: op.Filename}
		if op.Data != nil {
			if fo.Data, err = symbolic.Parse(*op.Data); err != nil {
				return nil, fmt.Errorf("file_ops[%d].data: %w", i, err)
			}
		}
		p.FileOps = append(p.FileOps, fo)
	}

	return p, nil
}

func parseAll(field string, srcs []string) ([]symbolic.Expr, error) {
	exprs := make([]symbolic.Expr, len(srcs))
	for i, src := range srcs {
		e, err := symbolic.Parse(src)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", field, i, err)
		}
		exprs[i] = e
	}
	return exprs, nil
}
