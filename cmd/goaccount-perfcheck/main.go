// Command goaccount-perfcheck gates the hot account paths against benchmark
// regressions. It reads two `go test -bench -count=N` outputs, takes the
// median of every budgeted benchmark/unit pair and fails when the candidate
// exceeds the pair's allowed growth over the baseline.
//
// Budgets default to the ones below and can be replaced with a YAML file:
//
//	- benchmark: BenchmarkAuthenticate
//	  unit: ns/op
//	  max_growth: 0.5
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// budget caps how much one benchmark unit may grow, as a ratio of the baseline
// median (0.30 allows +30%).
type budget struct {
	Benchmark string  `yaml:"benchmark"`
	Unit      string  `yaml:"unit"`
	MaxGrowth float64 `yaml:"max_growth"`
}

// Authenticate time is dominated by the password KDF. Counter increments must
// stay allocation free.
var defaultBudgets = []budget{
	{Benchmark: "BenchmarkAuthenticate", Unit: "ns/op", MaxGrowth: 0.50},
	{Benchmark: "BenchmarkAccountFromAccessToken", Unit: "ns/op", MaxGrowth: 0.30},
	{Benchmark: "BenchmarkAccountFromAccessToken", Unit: "allocs/op", MaxGrowth: 0.10},
	{Benchmark: "BenchmarkMetricsInc", Unit: "ns/op", MaxGrowth: 0.30},
	{Benchmark: "BenchmarkMetricsInc", Unit: "allocs/op", MaxGrowth: 0},
}

// samples maps benchmark name to unit to every observed value.
type samples map[string]map[string][]float64

type verdict struct {
	budget    budget
	baseline  float64
	candidate float64
	growth    float64
	problem   string
}

func (v verdict) failed() bool {
	return v.problem != "" || v.growth > v.budget.MaxGrowth
}

func main() {
	var (
		baselinePath  string
		candidatePath string
		budgetsPath   string
	)
	flag.StringVar(&baselinePath, "baseline", "", "benchmark output of the reference build")
	flag.StringVar(&candidatePath, "candidate", "", "benchmark output of the build under test")
	flag.StringVar(&budgetsPath, "budgets", "", "optional YAML list of {benchmark, unit, max_growth}")
	flag.Parse()

	if baselinePath == "" || candidatePath == "" {
		fmt.Fprintln(os.Stderr, "-baseline and -candidate are required")
		os.Exit(2)
	}

	budgets := defaultBudgets
	if budgetsPath != "" {
		loaded, err := loadBudgets(budgetsPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "budgets: %v\n", err)
			os.Exit(2)
		}
		budgets = loaded
	}

	baseline, err := readSamples(baselinePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "baseline: %v\n", err)
		os.Exit(1)
	}
	candidate, err := readSamples(candidatePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "candidate: %v\n", err)
		os.Exit(1)
	}

	verdicts := compare(budgets, baseline, candidate)
	if report(os.Stdout, verdicts) {
		os.Exit(1)
	}
}

func loadBudgets(path string) ([]budget, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var budgets []budget
	if err := yaml.Unmarshal(raw, &budgets); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(budgets) == 0 {
		return nil, errors.New("no budgets defined")
	}
	for _, b := range budgets {
		if b.Benchmark == "" || b.Unit == "" || b.MaxGrowth < 0 {
			return nil, fmt.Errorf("invalid budget %+v", b)
		}
	}
	return budgets, nil
}

func readSamples(path string) (samples, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseSamples(f)
}

// parseSamples collects every value of every benchmark line. Lines look like
// "BenchmarkX-8  100  1234 ns/op  56 B/op  7 allocs/op".
func parseSamples(r io.Reader) (samples, error) {
	out := samples{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 || !strings.HasPrefix(fields[0], "Benchmark") {
			continue
		}
		name := trimProcs(fields[0])
		units, ok := out[name]
		if !ok {
			units = map[string][]float64{}
			out[name] = units
		}
		for i := 2; i+1 < len(fields); i += 2 {
			v, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				continue
			}
			units[fields[i+1]] = append(units[fields[i+1]], v)
		}
	}
	return out, scanner.Err()
}

// trimProcs drops the GOMAXPROCS suffix go test appends to benchmark names.
func trimProcs(name string) string {
	i := strings.LastIndexByte(name, '-')
	if i <= 0 {
		return name
	}
	if _, err := strconv.Atoi(name[i+1:]); err != nil {
		return name
	}
	return name[:i]
}

func compare(budgets []budget, baseline, candidate samples) []verdict {
	verdicts := make([]verdict, 0, len(budgets))
	for _, b := range budgets {
		v := verdict{budget: b}
		base, cand := baseline[b.Benchmark][b.Unit], candidate[b.Benchmark][b.Unit]
		switch {
		case len(base) == 0:
			v.problem = "no baseline samples"
		case len(cand) == 0:
			v.problem = "no candidate samples"
		default:
			v.baseline, v.candidate = median(base), median(cand)
			v.growth = growth(v.baseline, v.candidate)
		}
		verdicts = append(verdicts, v)
	}
	return verdicts
}

// growth is the relative change from base to cand. A zero baseline only
// tolerates a zero candidate, which matters for allocs/op.
func growth(base, cand float64) float64 {
	if base == 0 {
		if cand == 0 {
			return 0
		}
		return cand
	}
	return (cand - base) / base
}

// report prints one row per budget and reports whether any failed.
func report(w io.Writer, verdicts []verdict) bool {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "BENCHMARK\tUNIT\tBASELINE\tCANDIDATE\tGROWTH\tLIMIT\tRESULT")
	failed := false
	for _, v := range verdicts {
		result := "ok"
		if v.failed() {
			failed = true
			result = "FAIL"
			if v.problem != "" {
				result = "FAIL: " + v.problem
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%.1f\t%.1f\t%+.1f%%\t%+.0f%%\t%s\n",
			v.budget.Benchmark, v.budget.Unit, v.baseline, v.candidate, v.growth*100, v.budget.MaxGrowth*100, result)
	}
	_ = tw.Flush()
	return failed
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
