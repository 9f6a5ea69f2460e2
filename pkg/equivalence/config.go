package equivalence

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"equivcheck/pkg/solver"
)

// Config 等价性检查配置
type Config struct {
	MaxPaths  int                 `yaml:"max_paths" json:"max_paths"`   // 路径预算,<0 表示不限
	Timeout   string              `yaml:"timeout" json:"timeout"`       // 整次运行的时间预算,"0" 表示不限
	Workers   int                 `yaml:"workers" json:"workers"`       // 并发求解的worker数
	ReportDir string              `yaml:"report_dir" json:"report_dir"` // 默认报告目录
	Solver    solver.SolverConfig `yaml:"solver" json:"solver"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		MaxPaths:  100,
		Timeout:   "60s",
		Workers:   runtime.NumCPU(),
		ReportDir: "./equivalence_reports",
		Solver:    *solver.DefaultSolverConfig(),
	}
}

// MergeWithDefaults 合并用户配置与默认配置
// MaxPaths 为0是合法的预算,不会被默认值覆盖
func (c *Config) MergeWithDefaults() {
	defaults := DefaultConfig()

	if c.Timeout == "" {
		c.Timeout = defaults.Timeout
	}
	if c.Workers <= 0 {
		c.Workers = defaults.Workers
	}
	if c.ReportDir == "" {
		c.ReportDir = defaults.ReportDir
	}
	c.Solver.MergeWithDefaults()
}

// GetTimeoutDuration 解析时间预算,0 表示不限
func (c *Config) GetTimeoutDuration() time.Duration {
	if c.Timeout == "0" {
		return 0
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		// 兼容纯数字秒数
		if secs, convErr := strconv.Atoi(c.Timeout); convErr == nil {
			return time.Duration(secs) * time.Second
		}
		return 60 * time.Second
	}
	return d
}

// Validate 检查配置
func (c *Config) Validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.Timeout != "0" {
		if _, err := time.ParseDuration(c.Timeout); err != nil {
			if _, convErr := strconv.Atoi(c.Timeout); convErr != nil {
				return fmt.Errorf("invalid timeout %q: %w", c.Timeout, err)
			}
		}
	}
	return c.Solver.Validate()
}

// LoadConfig 从YAML文件加载配置,文件中未出现的字段保持默认值
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var yamlConfig struct {
		Equivcheck *Config `yaml:"equivcheck"`
	}
	yamlConfig.Equivcheck = DefaultConfig()
	if err := yaml.Unmarshal(data, &yamlConfig); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	config := yamlConfig.Equivcheck
	if config == nil {
		config = DefaultConfig()
	}
	config.MergeWithDefaults()
	return config, nil
}

// ApplyEnv 使用 EQUIVCHECK_* 环境变量覆盖配置
// (.env 文件由调用方通过 godotenv 预先加载)
func (c *Config) ApplyEnv() error {
	if v := strings.TrimSpace(os.Getenv("EQUIVCHECK_MAX_PATHS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("EQUIVCHECK_MAX_PATHS: %w", err)
		}
		c.MaxPaths = n
	}
	if v := strings.TrimSpace(os.Getenv("EQUIVCHECK_TIMEOUT")); v != "" {
		c.Timeout = v
	}
	if v := strings.TrimSpace(os.Getenv("EQUIVCHECK_WORKERS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("EQUIVCHECK_WORKERS: %w", err)
		}
		c.Workers = n
	}
	if v := strings.TrimSpace(os.Getenv("EQUIVCHECK_SOLVER")); v != "" {
		c.Solver.Strategy = v
	}
	if v := strings.TrimSpace(os.Getenv("EQUIVCHECK_REPORT_DIR")); v != "" {
		c.ReportDir = v
	}
	return nil
}
