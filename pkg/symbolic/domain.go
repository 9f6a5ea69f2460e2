package symbolic

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// InputBound 单个输入变量的取值范围 [Min, Max]
type InputBound struct {
	Name string `yaml:"name" json:"name"`
	Min  int64  `yaml:"min" json:"min"`
	Max  int64  `yaml:"max" json:"max"`
}

// String 返回 name:min:max 形式
func (b InputBound) String() string {
	return fmt.Sprintf("%s:%d:%d", b.Name, b.Min, b.Max)
}

// Domain 所有输入变量的取值范围,定义待检查的矩形输入域
type Domain []InputBound

// ParseBounds 解析 "x:0:100,y:0:100" 格式的范围字符串
func ParseBounds(s string) (Domain, error) {
	var d Domain
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.Split(part, ":")
		if len(fields) != 3 {
			return nil, fmt.Errorf("invalid bounds format '%s'. Use: name:min:max", part)
		}
		min, err := strconv.ParseInt(strings.TrimSpace(fields[1]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid min for '%s': %w", fields[0], err)
		}
		max, err := strconv.ParseInt(strings.TrimSpace(fields[2]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid max for '%s': %w", fields[0], err)
		}
		d = append(d, InputBound{Name: strings.TrimSpace(fields[0]), Min: min, Max: max})
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// reservedNames 表达式文本中表示字面量的标识符,不能用作变量名
var reservedNames = map[string]bool{"true": true, "false": true}

// Validate 检查 min <= max 且变量名唯一
func (d Domain) Validate() error {
	if len(d) == 0 {
		return fmt.Errorf("no input bounds declared")
	}
	seen := make(map[string]bool, len(d))
	for _, b := range d {
		if b.Name == "" {
			return fmt.Errorf("input bound with empty name")
		}
		if reservedNames[b.Name] {
			return fmt.Errorf("input bound name %q is reserved", b.Name)
		}
		if seen[b.Name] {
			return fmt.Errorf("duplicate input bound %q", b.Name)
		}
		seen[b.Name] = true
		if b.Min > b.Max {
			return fmt.Errorf("input bound %q has min %d > max %d", b.Name, b.Min, b.Max)
		}
	}
	return nil
}

// Lookup 按名称查找
func (d Domain) Lookup(name string) (InputBound, bool) {
	for _, b := range d {
		if b.Name == name {
			return b, true
		}
	}
	return InputBound{}, false
}

// Contains 检查模型是否给每个变量赋值且在范围内
func (d Domain) Contains(m Model) bool {
	for _, b := range d {
		v, ok := m[b.Name]
		if !ok || v < b.Min || v > b.Max {
			return false
		}
	}
	return true
}

// String 返回规范文本(用作缓存键的一部分)
func (d Domain) String() string {
	parts := make([]string, len(d))
	for i, b := range d {
		parts[i] = b.String()
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

// ==================== 区间盒 ====================

// Interval 闭区间
type Interval struct {
	Lo, Hi int64
}

// Box 每个变量的当前区间,分支定界求解的搜索单元
type Box struct {
	names []string
	ivs   []Interval
}

// NewBox 由输入域构造初始盒
func NewBox(d Domain) Box {
	b := Box{names: make([]string, len(d)), ivs: make([]Interval, len(d))}
	for i, bound := range d {
		b.names[i] = bound.Name
		b.ivs[i] = Interval{Lo: bound.Min, Hi: bound.Max}
	}
	return b
}

// Get 查询变量区间
func (b Box) Get(name string) (Interval, bool) {
	for i, n := range b.names {
		if n == name {
			return b.ivs[i], true
		}
	}
	return Interval{}, false
}

// IsPoint 所有变量都已确定为单点
func (b Box) IsPoint() bool {
	for _, iv := range b.ivs {
		if iv.Lo != iv.Hi {
			return false
		}
	}
	return true
}

// Low 返回盒的下角点
func (b Box) Low() Model {
	m := make(Model, len(b.names))
	for i, n := range b.names {
		m[n] = b.ivs[i].Lo
	}
	return m
}

// Split 沿最宽的变量对半切分,返回 (下半, 上半)
func (b Box) Split() (Box, Box) {
	widest := 0
	var width uint64
	for i, iv := range b.ivs {
		if w := uint64(iv.Hi - iv.Lo); w > width {
			width = w
			widest = i
		}
	}
	iv := b.ivs[widest]
	mid := iv.Lo + int64(uint64(iv.Hi-iv.Lo)/2)

	lower := b.clone()
	upper := b.clone()
	lower.ivs[widest] = Interval{Lo: iv.Lo, Hi: mid}
	upper.ivs[widest] = Interval{Lo: mid + 1, Hi: iv.Hi}
	return lower, upper
}

func (b Box) clone() Box {
	c := Box{names: b.names, ivs: make([]Interval, len(b.ivs))}
	copy(c.ivs, b.ivs)
	return c
}
