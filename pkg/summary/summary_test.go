package summary

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equivcheck/pkg/symbolic"
)

const sampleJSON = `{
  "function": "compute",
  "first": [
    {
      "id": "C-1",
      "path_condition": ["x > 10", "y >= 0"],
      "return_expr": "x + y",
      "stdout_log": ["\"big\\n\""],
      "stderr_log": [],
      "global_writes": [["counter", "1"], ["counter", "x"]],
      "file_ops": [
        {"op_type": "open", "filename": "out.txt"},
        {"op_type": "write", "filename": "out.txt", "data": "str(x)"},
        {"op_type": "close", "filename": "out.txt"}
      ]
    }
  ],
  "second": [
    {
      "id": "R-1",
      "path_condition": ["x > 10"],
      "return_expr": "y + x"
    }
  ]
}`

func TestDecode(t *testing.T) {
	store, err := Decode(strings.NewReader(sampleJSON))
	require.NoError(t, err)

	assert.Equal(t, "compute", store.Function)
	require.Len(t, store.First, 1)
	require.Len(t, store.Second, 1)

	c := store.First[0]
	assert.Equal(t, FirstProgram, c.Origin)
	assert.Equal(t, "((x > 10) && (y >= 0))", c.Condition().String())
	assert.Equal(t, "(x + y)", c.ReturnExpr.String())
	require.Len(t, c.StdoutLog, 1)
	assert.Equal(t, `"big\n"`, c.StdoutLog[0].String())

	// 最后一次写入生效
	require.Contains(t, c.GlobalWrites, "counter")
	assert.Equal(t, "x", c.GlobalWrites["counter"].String())

	require.Len(t, c.FileOps, 3)
	assert.Equal(t, FileOpen, c.FileOps[0].Kind)
	assert.Nil(t, c.FileOps[0].Data)
	assert.Equal(t, "str(x)", c.FileOps[1].Data.String())

	r := store.Second[0]
	assert.Equal(t, SecondProgram, r.Origin)
	assert.Empty(t, r.StdoutLog)
	assert.Empty(t, r.GlobalWrites)
	assert.Equal(t, store.Second, store.Side(SecondProgram))
}

func TestDecodeErrors(t *testing.T) {
	cases := map[string]string{
		"bad json":      `{"first": [`,
		"unknown field": `{"first": [], "second": [], "extra": 1}`,
		"missing id":    `{"first": [{"return_expr": "1"}]}`,
		"bad expr":      `{"first": [{"id": "a", "path_condition": ["x >"]}]}`,
		"bad file op":   `{"second": [{"id": "a", "file_ops": [{"op_type": "delete", "filename": "f"}]}]}`,
	}
	for name, src := range cases {
		_, err := Decode(strings.NewReader(src))
		assert.Error(t, err, name)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summaries.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleJSON), 0o644))

	store, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "compute", store.Function)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	store, err := Decode(strings.NewReader(sampleJSON))
	require.NoError(t, err)

	domain := symbolic.Domain{{Name: "x", Min: 0, Max: 100}, {Name: "y", Min: 0, Max: 100}}
	assert.NoError(t, store.Validate(domain))

	// y 未声明
	err = store.Validate(symbolic.Domain{{Name: "x", Min: 0, Max: 100}})
	var unbound *symbolic.UnboundVariableError
	require.True(t, errors.As(err, &unbound))
	assert.Equal(t, "y", unbound.Name)
}

func TestValidateKinds(t *testing.T) {
	domain := symbolic.Domain{{Name: "x", Min: 0, Max: 10}}
	cases := map[string]string{
		"int clause":      `{"first": [{"id": "a", "path_condition": ["x + 1"]}]}`,
		"int stdout":      `{"first": [{"id": "a", "stdout_log": ["x"]}]}`,
		"ill typed":       `{"first": [{"id": "a", "return_expr": "x + \"s\""}]}`,
		"duplicate ids":   `{"first": [{"id": "a"}], "second": [{"id": "a"}]}`,
		"void condition":  `{"first": [{"id": "a", "path_condition": [""]}]}`,
		"unbound in data": `{"first": [{"id": "a", "file_ops": [{"op_type": "write", "filename": "f", "data": "str(z)"}]}]}`,
	}
	for name, src := range cases {
		store, err := Decode(strings.NewReader(src))
		require.NoError(t, err, name)
		assert.Error(t, store.Validate(domain), name)
	}
}
