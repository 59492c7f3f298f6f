// Command linkauth-perfcheck compares two `go test -bench` outputs and fails when a
// tracked benchmark regresses past the threshold.
//
//	go test -run '^$' -bench . -count 5 ./... > new.txt
//	linkauth-perfcheck -baseline old.txt -candidate new.txt
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

const defaultThreshold = 0.30

// tracked lists the benchmarks on the login hot paths and the units gated for each.
var tracked = map[string][]string{
	"BenchmarkAuthenticateOTP":    {"ns/op", "allocs/op"},
	"BenchmarkCompleteMagicLink":  {"ns/op", "allocs/op"},
	"BenchmarkMatchOTP":           {"ns/op"},
	"BenchmarkMetricsIncParallel": {"ns/op"},
}

// samples maps benchmark name to unit to observed values across -count runs.
type samples map[string]map[string][]float64

type delta struct {
	benchmark string
	unit      string
	baseline  float64
	candidate float64
	ratio     float64
}

func main() {
	var (
		baselinePath  string
		candidatePath string
		threshold     float64
	)

	flag.StringVar(&baselinePath, "baseline", "", "path to baseline benchmark output")
	flag.StringVar(&candidatePath, "candidate", "", "path to candidate benchmark output")
	flag.Float64Var(&threshold, "threshold", defaultThreshold, "maximum allowed regression ratio (0.30 = +30%)")
	flag.Parse()

	if baselinePath == "" || candidatePath == "" {
		fmt.Fprintln(os.Stderr, "-baseline and -candidate are required")
		os.Exit(2)
	}
	if threshold < 0 {
		fmt.Fprintln(os.Stderr, "-threshold must be >= 0")
		os.Exit(2)
	}

	baseline, err := parseFile(baselinePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse baseline: %v\n", err)
		os.Exit(1)
	}
	candidate, err := parseFile(candidatePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse candidate: %v\n", err)
		os.Exit(1)
	}

	deltas, failures := compare(baseline, candidate, threshold)
	fmt.Println("perf regression check:")
	fmt.Println("benchmark unit baseline candidate delta")
	for _, d := range deltas {
		fmt.Printf("%s %s %.3f %.3f %+0.2f%%\n", d.benchmark, d.unit, d.baseline, d.candidate, d.ratio*100)
	}

	if len(failures) > 0 {
		fmt.Fprintln(os.Stderr, "performance regression threshold exceeded:")
		for _, failure := range failures {
			fmt.Fprintf(os.Stderr, "  - %s\n", failure)
		}
		os.Exit(1)
	}
}

// compare returns per-unit median deltas in stable order, and a failure line for
// every regression above threshold or missing sample.
func compare(baseline, candidate samples, threshold float64) ([]delta, []string) {
	names := make([]string, 0, len(tracked))
	for name := range tracked {
		names = append(names, name)
	}
	sort.Strings(names)

	var (
		deltas   []delta
		failures []string
	)
	for _, name := range names {
		for _, unit := range tracked[name] {
			base := baseline[name][unit]
			cand := candidate[name][unit]
			if len(base) == 0 || len(cand) == 0 {
				failures = append(failures, fmt.Sprintf("missing samples for %s %s", name, unit))
				continue
			}

			baseMedian := median(base)
			candMedian := median(cand)
			if baseMedian <= 0 {
				// allocs/op of zero cannot regress proportionally; any allocation is a failure.
				if candMedian > 0 {
					failures = append(failures, fmt.Sprintf("%s %s went from 0 to %.0f", name, unit, candMedian))
				}
				continue
			}

			d := delta{
				benchmark: name,
				unit:      unit,
				baseline:  baseMedian,
				candidate: candMedian,
				ratio:     (candMedian - baseMedian) / baseMedian,
			}
			deltas = append(deltas, d)
			if d.ratio > threshold {
				failures = append(failures, fmt.Sprintf("%s %s regressed by %+0.2f%% (limit %+0.2f%%)", name, unit, d.ratio*100, threshold*100))
			}
		}
	}
	return deltas, failures
}

func parseFile(path string) (samples, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return parse(file)
}

// parse reads benchmark result lines such as
// "BenchmarkMatchOTP-8  1000000  1042 ns/op  96 B/op  2 allocs/op".
func parse(r io.Reader) (samples, error) {
	out := samples{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 || !strings.HasPrefix(fields[0], "Benchmark") {
			continue
		}

		name := trimProcs(fields[0])
		if _, ok := tracked[name]; !ok {
			continue
		}
		if out[name] == nil {
			out[name] = map[string][]float64{}
		}

		for i := 2; i+1 < len(fields); i += 2 {
			value, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				continue
			}
			out[name][fields[i+1]] = append(out[name][fields[i+1]], value)
		}
	}
	return out, scanner.Err()
}

// trimProcs drops the -GOMAXPROCS suffix the test runner appends.
func trimProcs(raw string) string {
	if idx := strings.LastIndexByte(raw, '-'); idx > 0 {
		if _, err := strconv.Atoi(raw[idx+1:]); err == nil {
			return raw[:idx]
		}
	}
	return raw
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
