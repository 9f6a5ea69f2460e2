package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"equivcheck/pkg/equivalence"
	"equivcheck/pkg/summary"
	"equivcheck/pkg/symbolic"
)

// 命令行参数
var (
	summariesPath = flag.String("summaries", "", "Path summary file produced by the symbolic executor (required)")
	functionName  = flag.String("function", "", "Function name to check (default: taken from the summary file)")
	bounds        = flag.String("bounds", "x:0:100", `Input bounds, e.g. "x:0:100,y:0:100"`)
	maxPaths      = flag.Int("max-paths", 100, "Maximum number of divergence queries; preflight overlap/coverage queries are not counted (negative = unlimited)")
	timeout       = flag.String("timeout", "60s", `Time budget for the whole run ("0" = unlimited, plain number = seconds)`)
	workers       = flag.Int("workers", 0, "Number of concurrent solver workers (default: number of CPUs)")
	solverName    = flag.String("solver", "", "Solver strategy: local, z3, hybrid (overrides config)")
	configPath    = flag.String("config", "./config/equivcheck.yaml", "Configuration file path")
	outputPath    = flag.String("output", "", "Output file path (default: <report_dir>/<timestamp>_<function>.json)")
	verbose       = flag.Bool("verbose", false, "Enable verbose logging")
)

// 退出码
const (
	exitEquivalent    = 0
	exitError         = 1
	exitNotEquivalent = 2
	exitUnknown       = 3
)

func main() {
	flag.Parse()

	// 设置日志
	if *verbose {
		log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	} else {
		log.SetFlags(log.LstdFlags)
	}

	// 验证必需参数
	if *summariesPath == "" {
		fmt.Fprintf(os.Stderr, "Error: Missing required parameter --summaries\n\n")
		flag.Usage()
		os.Exit(exitError)
	}

	// .env 不存在时忽略
	_ = godotenv.Load()

	config, err := equivalence.LoadConfig(*configPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("Warning: Failed to load config file, using defaults: %v", err)
		}
		config = equivalence.DefaultConfig()
	}
	if err := config.ApplyEnv(); err != nil {
		log.Fatalf("Invalid environment override: %v", err)
	}
	applyFlags(config)
	if err := config.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	domain, err := symbolic.ParseBounds(*bounds)
	if err != nil {
		log.Fatalf("Invalid bounds: %v", err)
	}

	out := newPrinter(os.Stdout)
	out.banner()

	// Step 1: 加载路径摘要
	out.step(1, "Loading path summaries...")
	store, err := summary.Load(*summariesPath)
	if err != nil {
		out.fail(err.Error())
		os.Exit(exitError)
	}
	if err := resolveFunction(store, *functionName); err != nil {
		out.fail(err.Error())
		os.Exit(exitError)
	}
	out.ok(fmt.Sprintf("Function: %s", out.yellow(store.Function)))
	out.ok(fmt.Sprintf("First program paths:  %d", len(store.First)))
	out.ok(fmt.Sprintf("Second program paths: %d", len(store.Second)))
	out.ok(fmt.Sprintf("Input domain: %s", out.cyan(domain.String())))
	printConfig(config)

	// Step 2: 等价性检查
	out.step(2, "Checking equivalence...")
	checker, err := equivalence.NewChecker(config)
	if err != nil {
		log.Fatalf("Failed to create checker: %v", err)
	}
	defer checker.Close()

	// 设置信号处理
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("\nReceived interrupt signal, stopping...")
		cancel()
	}()

	progress := make(chan equivalence.Progress, 16)
	sub := checker.SubscribeProgress(progress)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case p := <-progress:
				out.progress(p)
			case <-sub.Err():
				// 打印退订前已投递的事件
				for {
					select {
					case p := <-progress:
						out.progress(p)
					default:
						return
					}
				}
			}
		}
	}()

	result, err := checker.Check(ctx, store, domain)
	sub.Unsubscribe()
	<-done
	if err != nil {
		out.fail(err.Error())
		os.Exit(exitError)
	}

	out.verdict(result)
	printStatistics(checker.SolverStatistics())

	// Step 3: 保存报告
	out.step(3, "Generating report...")
	outputFile := *outputPath
	if outputFile == "" {
		outputFile = generateOutputPath(config.ReportDir, store.Function)
	}
	if err := saveReport(result, outputFile); err != nil {
		log.Fatalf("Failed to save report: %v", err)
	}
	out.ok(fmt.Sprintf("Report saved to: %s", out.cyan(outputFile)))

	code := exitEquivalent
	switch result.Verdict {
	case equivalence.NotEquivalent:
		code = exitNotEquivalent
	case equivalence.Unknown:
		code = exitUnknown
	}
	cancel()
	checker.Close()
	os.Exit(code)
}

// applyFlags 显式给出的命令行参数覆盖配置文件和环境变量
func applyFlags(config *equivalence.Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "max-paths":
			config.MaxPaths = *maxPaths
		case "timeout":
			config.Timeout = *timeout
		case "workers":
			config.Workers = *workers
		case "solver":
			config.Solver.Strategy = *solverName
		}
	})
	config.MergeWithDefaults()
}

// resolveFunction 核对摘要文件中的函数名与命令行参数
func resolveFunction(store *summary.Store, name string) error {
	switch {
	case name == "":
		if store.Function == "" {
			return fmt.Errorf("summary file names no function; pass --function")
		}
	case store.Function == "":
		store.Function = name
	case store.Function != name:
		return fmt.Errorf("summary file is for function %q, not %q", store.Function, name)
	}
	return nil
}

// printConfig 打印配置信息
func printConfig(config *equivalence.Config) {
	if !*verbose {
		return
	}

	fmt.Println("\n=== Checker Configuration ===")
	fmt.Printf("Max Paths: %d\n", config.MaxPaths)
	fmt.Printf("Timeout: %v\n", config.GetTimeoutDuration())
	fmt.Printf("Workers: %d\n", config.Workers)
	fmt.Printf("Solver Strategy: %s\n", config.Solver.Strategy)
	fmt.Printf("Solver Max Steps: %d\n", config.Solver.MaxSteps)
	fmt.Printf("Outcome Cache: %t (size %d)\n", config.Solver.UseCache, config.Solver.CacheSize)
	fmt.Printf("Report Dir: %s\n", config.ReportDir)
	fmt.Println("=============================")
}

// printStatistics 打印求解器统计
func printStatistics(stats map[string]int64) {
	if !*verbose || len(stats) == 0 {
		return
	}

	fmt.Println("\n=== Solver Statistics ===")
	for _, key := range []string{"local_solves", "z3_solves", "fallback_solves", "cache_hits", "cache_misses", "cache_size"} {
		fmt.Printf("%s: %d\n", key, stats[key])
	}
	if _, ok := stats["z3_total"]; ok {
		fmt.Printf("z3 sat/unsat/unknown: %d/%d/%d of %d (%dms)\n",
			stats["z3_sat"], stats["z3_unsat"], stats["z3_unknown"], stats["z3_total"], stats["z3_time_ms"])
	}
	fmt.Println("=========================")
}

// generateOutputPath 生成输出文件路径
func generateOutputPath(dir, function string) string {
	timestamp := time.Now().Format("20060102_150405")
	name := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == ' ' {
			return '_'
		}
		return r
	}, function)

	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Printf("Warning: Failed to create output directory: %v", err)
		dir = "."
	}

	return filepath.Join(dir, fmt.Sprintf("%s_%s.json", timestamp, name))
}

// saveReport 保存JSON报告
func saveReport(result *equivalence.EquivalenceResult, path string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	// 确保目录存在
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}
