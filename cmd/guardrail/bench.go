package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"originware/guardrail/pkg/cli"
	"originware/guardrail/pkg/engine"
	"originware/guardrail/pkg/rule"
	"originware/guardrail/pkg/rule/parser"
)

var benchFlags struct {
	packFile     string
	ruleType     string
	area         string
	datasetsFile string
	iterations   int
	concurrency  int
}

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Measure rule set evaluation throughput",
	Long: `Evaluate a rule set repeatedly and report latency statistics.

The bench command loads a rule pack and a dataset bundle, then runs the
evaluation in-process across concurrent workers. Use it to size a rule
set before shipping it: a gate that costs milliseconds per loan file
behaves very differently at pipeline volume.

Metrics Collected:
  - Evaluation throughput (evaluations/sec)
  - Latency percentiles (p50, p95, p99, max)

Examples:
  # Single-worker baseline
  guardrail bench --pack rules.yaml --datasets loan.json

  # Pipeline-volume simulation
  guardrail bench --pack rules.yaml --datasets loan.json --iterations 100000 --concurrency 8`,
	RunE:         runBench,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(benchCmd)

	benchCmd.Flags().StringVarP(&benchFlags.packFile, "pack", "p", "", "rule pack file")
	benchCmd.Flags().StringVarP(&benchFlags.ruleType, "type", "t", "", "rule type (for multi-set packs)")
	benchCmd.Flags().StringVarP(&benchFlags.area, "area", "a", "", "business area (for multi-set packs)")
	benchCmd.Flags().StringVarP(&benchFlags.datasetsFile, "datasets", "d", "", "datasets JSON file")
	benchCmd.Flags().IntVar(&benchFlags.iterations, "iterations", 10000, "total evaluations to run")
	benchCmd.Flags().IntVar(&benchFlags.concurrency, "concurrency", 1, "concurrent workers")

	if err := benchCmd.MarkFlagRequired("pack"); err != nil {
		panic(fmt.Sprintf("failed to mark pack flag as required: %v", err))
	}
	if err := benchCmd.MarkFlagRequired("datasets"); err != nil {
		panic(fmt.Sprintf("failed to mark datasets flag as required: %v", err))
	}
}

func runBench(cmd *cobra.Command, args []string) error {
	if benchFlags.iterations <= 0 {
		return cli.NewCommandError("bench", fmt.Errorf("--iterations must be positive"))
	}
	if benchFlags.concurrency <= 0 {
		return cli.NewCommandError("bench", fmt.Errorf("--concurrency must be positive"))
	}

	pack, err := parser.New().Parse(benchFlags.packFile)
	if err != nil {
		return cli.NewCommandError("bench", fmt.Errorf("failed to load rule pack: %w", err))
	}
	set, err := selectPackSet(pack, benchFlags.ruleType, benchFlags.area)
	if err != nil {
		return cli.NewCommandError("bench", err)
	}
	datasets, err := loadDatasets(benchFlags.datasetsFile)
	if err != nil {
		return cli.NewCommandError("bench", err)
	}

	// Suppress engine traces; at bench volume they drown the run.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
	eng, err := engine.New(&engine.Config{Logger: logger})
	if err != nil {
		return cli.NewCommandError("bench", err)
	}

	fmt.Println("Guardrail Bench")
	fmt.Println("===============")
	fmt.Printf("Rule Set: %s/%s (%d rules)\n", set.Type, set.Area, set.Len())
	fmt.Printf("Iterations: %d\n", benchFlags.iterations)
	fmt.Printf("Concurrency: %d\n", benchFlags.concurrency)
	fmt.Println()

	results, err := runEvaluationLoad(eng, set, datasets)
	if err != nil {
		return cli.NewCommandError("bench", err)
	}

	displayBenchResults(results)
	return nil
}

type benchResults struct {
	iterations int
	duration   time.Duration
	latencies  []time.Duration
}

// runEvaluationLoad drives the configured number of evaluations through
// a worker pool and records per-evaluation latency. The first engine
// error aborts the run; a rule set that cannot evaluate once will not
// evaluate a hundred thousand times either.
func runEvaluationLoad(eng *engine.Engine, set *rule.RuleSet, datasets engine.Datasets) (*benchResults, error) {
	results := &benchResults{
		iterations: benchFlags.iterations,
		latencies:  make([]time.Duration, benchFlags.iterations),
	}

	progress := cli.NewProgressReporter(nil)
	progress.Start(int64(benchFlags.iterations))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		wg      sync.WaitGroup
		errOnce sync.Once
		evalErr error
	)
	work := make(chan int)

	for w := 0; w < benchFlags.concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				iterStart := time.Now()
				if _, err := eng.Evaluate(ctx, set, datasets); err != nil {
					errOnce.Do(func() {
						evalErr = err
						cancel()
					})
					return
				}
				results.latencies[i] = time.Since(iterStart)
				progress.Increment()
			}
		}()
	}

	start := time.Now()
dispatch:
	for i := 0; i < benchFlags.iterations; i++ {
		select {
		case work <- i:
		case <-ctx.Done():
			break dispatch
		}
	}
	close(work)
	wg.Wait()
	results.duration = time.Since(start)

	if evalErr != nil {
		progress.Error(evalErr)
		return nil, fmt.Errorf("evaluation aborted: %w", evalErr)
	}
	progress.Finish()

	return results, nil
}

func displayBenchResults(results *benchResults) {
	fmt.Println()
	fmt.Println("Results:")
	fmt.Println("--------")
	fmt.Printf("Evaluations:     %d\n", results.iterations)
	fmt.Printf("Duration:        %.2fs\n", results.duration.Seconds())
	fmt.Printf("Throughput:      %.0f evaluations/sec\n",
		float64(results.iterations)/results.duration.Seconds())

	if len(results.latencies) == 0 {
		return
	}

	min, mean, median, p95, p99, max := calculatePercentiles(results.latencies)

	fmt.Println()
	fmt.Println("Latency:")
	fmt.Printf("  Min:     %s\n", min)
	fmt.Printf("  Mean:    %s\n", mean)
	fmt.Printf("  Median:  %s\n", median)
	fmt.Printf("  p95:     %s\n", p95)
	fmt.Printf("  p99:     %s\n", p99)
	fmt.Printf("  Max:     %s\n", max)
}

func calculatePercentiles(latencies []time.Duration) (min, mean, median, p95, p99, max time.Duration) {
	if len(latencies) == 0 {
		return
	}

	sorted := make([]time.Duration, len(latencies))
	copy(sorted, latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	min = sorted[0]
	max = sorted[len(sorted)-1]

	var sum time.Duration
	for _, lat := range sorted {
		sum += lat
	}
	mean = sum / time.Duration(len(sorted))

	median = sorted[len(sorted)/2]
	p95 = sorted[percentileIndex(len(sorted), 0.95)]
	p99 = sorted[percentileIndex(len(sorted), 0.99)]

	return
}

func percentileIndex(n int, pct float64) int {
	idx := int(float64(n) * pct)
	if idx >= n {
		idx = n - 1
	}
	return idx
}
