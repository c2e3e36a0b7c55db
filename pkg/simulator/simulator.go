// Package simulator runs Monte-Carlo draws over a pipeline DAG to turn
// point estimates into a duration distribution. Runs are independent;
// each worker owns RNG state split from the top-level seed, and results
// reduce in run-index order so a given seed always produces identical
// output.
package simulator

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sort"
	"strconv"

	"github.com/sourcegraph/conc/pool"

	"github.com/pipelinex/pipelinex/pkg/dag"
	"github.com/pipelinex/pipelinex/pkg/logger"
)

var log = logger.New("simulator:run")

// defaultSigmaFraction is the documented default spread: each job's
// realized duration draws from a log-normal with sigma = 0.2 x mean.
const defaultSigmaFraction = 0.2

// histogramBuckets is the fixed bucket count of the result histogram.
const histogramBuckets = 6

// InvalidSeedError reports a malformed seed string.
type InvalidSeedError struct {
	Raw string
	Err error
}

func (e *InvalidSeedError) Error() string {
	return fmt.Sprintf("invalid seed %q: %v", e.Raw, e.Err)
}

func (e *InvalidSeedError) Unwrap() error { return e.Err }

// ParseSeed parses a decimal seed string.
func ParseSeed(raw string) (uint64, error) {
	seed, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, &InvalidSeedError{Raw: raw, Err: err}
	}
	return seed, nil
}

// Options controls one simulation.
type Options struct {
	Runs int

	// Seed drives the whole simulation; SeedSet distinguishes 0 from unset.
	Seed    uint64
	SeedSet bool

	// Workers bounds the worker pool; 0 means one per CPU.
	Workers int

	// VarianceOverride maps job id to an absolute sigma in seconds,
	// normally derived from historical variance.
	VarianceOverride map[string]float64
}

// JobTiming is the per-job breakdown of a simulation.
type JobTiming struct {
	MeanSeconds float64 `json:"mean_seconds"`

	// CriticalFraction is the fraction of runs on which the job lay on
	// the realized critical path.
	CriticalFraction float64 `json:"critical_fraction"`
}

// HistogramBucket counts runs whose total fell inside [Lo, Hi); the last
// bucket also counts the maximum total.
type HistogramBucket struct {
	Lo    float64 `json:"lo"`
	Hi    float64 `json:"hi"`
	Count int     `json:"count"`
}

// Result is the simulation output.
type Result struct {
	Runs   int     `json:"runs"`
	Seed   uint64  `json:"seed"`
	Min    float64 `json:"min"`
	P50    float64 `json:"p50"`
	P90    float64 `json:"p90"`
	P99    float64 `json:"p99"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`

	Histogram []HistogramBucket    `json:"histogram"`
	PerJob    map[string]JobTiming `json:"per_job"`
}

// Simulate draws opts.Runs realizations of the pipeline and aggregates
// them. Deterministic for a given seed regardless of worker count.
func Simulate(ctx context.Context, p *dag.Pipeline, opts Options) (*Result, error) {
	if opts.Runs <= 0 {
		opts.Runs = 1000
	}
	seed := opts.Seed
	if !opts.SeedSet {
		seed = 42
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	order := p.TopologicalOrder()
	jobIDs := p.JobIDs()
	log.Printf("simulating %d runs over %d jobs with %d workers", opts.Runs, len(jobIDs), workers)

	type runOutcome struct {
		total    float64
		critical []string
		perJob   map[string]float64
	}
	outcomes := make([]runOutcome, opts.Runs)

	// Stable reduction: workers write into their own run slot; nothing
	// is aggregated until every run has finished.
	workerPool := pool.New().WithMaxGoroutines(workers)
	cancelled := false
	for i := 0; i < opts.Runs; i++ {
		if err := ctx.Err(); err != nil {
			cancelled = true
			break
		}
		run := i
		workerPool.Go(func() {
			rng := rand.New(rand.NewSource(int64(splitmix64(seed + uint64(run)))))
			realized := make(map[string]float64, len(jobIDs))
			for _, id := range jobIDs {
				job, _ := p.Job(id)
				realized[id] = drawDuration(rng, job, opts.VarianceOverride)
			}
			total, critical := realizedLongestPath(p, order, realized)
			outcomes[run] = runOutcome{total: total, critical: critical, perJob: realized}
		})
	}
	workerPool.Wait()
	if cancelled {
		return nil, ctx.Err()
	}

	totals := make([]float64, opts.Runs)
	jobSums := make(map[string]float64, len(jobIDs))
	criticalCounts := make(map[string]int, len(jobIDs))
	for i, outcome := range outcomes {
		totals[i] = outcome.total
		for id, d := range outcome.perJob {
			jobSums[id] += d
		}
		for _, id := range outcome.critical {
			criticalCounts[id]++
		}
	}

	result := &Result{Runs: opts.Runs, Seed: seed, PerJob: make(map[string]JobTiming, len(jobIDs))}
	summarize(result, totals)
	for _, id := range jobIDs {
		result.PerJob[id] = JobTiming{
			MeanSeconds:      jobSums[id] / float64(opts.Runs),
			CriticalFraction: float64(criticalCounts[id]) / float64(opts.Runs),
		}
	}
	return result, nil
}

// splitmix64 advances the SplitMix64 sequence, the standard way to
// derive independent streams from one seed.
func splitmix64(x uint64) uint64 {
	x += 0x9E3779B97F4A7C15
	z := x
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

// drawDuration samples one job's realized duration from a log-normal
// whose linear-space mean is the estimate and whose linear-space sigma
// is 0.2 x mean, unless history supplies an absolute override.
func drawDuration(rng *rand.Rand, job *dag.Job, overrides map[string]float64) float64 {
	mean := job.Duration()
	if mean <= 0 {
		return 0
	}
	sigma := mean * defaultSigmaFraction
	if override, ok := overrides[job.ID]; ok && override > 0 {
		sigma = override
	}
	// Convert the linear-space moments to log-space parameters.
	cv2 := (sigma / mean) * (sigma / mean)
	logSigma := math.Sqrt(math.Log(1 + cv2))
	logMu := math.Log(mean) - logSigma*logSigma/2
	return math.Exp(logMu + logSigma*rng.NormFloat64())
}

// realizedLongestPath recomputes the critical path under realized
// weights.
func realizedLongestPath(p *dag.Pipeline, order []string, realized map[string]float64) (float64, []string) {
	dist := make(map[string]float64, len(order))
	prev := make(map[string]string, len(order))
	for _, id := range order {
		dist[id] = realized[id]
		for _, pred := range p.Predecessors(id) {
			if candidate := dist[pred] + realized[id]; candidate > dist[id] {
				dist[id] = candidate
				prev[id] = pred
			}
		}
	}
	var endID string
	var best float64
	for _, id := range order {
		if dist[id] > best || endID == "" {
			best = dist[id]
			endID = id
		}
	}
	var path []string
	for id := endID; id != ""; id = prev[id] {
		path = append(path, id)
	}
	return best, path
}

// summarize fills the distribution fields from the per-run totals.
func summarize(result *Result, totals []float64) {
	sorted := append([]float64(nil), totals...)
	sort.Float64s(sorted)

	n := len(sorted)
	result.Min = sorted[0]
	result.Max = sorted[n-1]
	result.P50 = percentile(sorted, 0.50)
	result.P90 = percentile(sorted, 0.90)
	result.P99 = percentile(sorted, 0.99)

	var sum float64
	for _, t := range sorted {
		sum += t
	}
	result.Mean = sum / float64(n)
	var variance float64
	for _, t := range sorted {
		variance += (t - result.Mean) * (t - result.Mean)
	}
	result.StdDev = math.Sqrt(variance / float64(n))

	width := (result.Max - result.Min) / histogramBuckets
	if width == 0 {
		width = 1
	}
	result.Histogram = make([]HistogramBucket, histogramBuckets)
	for i := range result.Histogram {
		result.Histogram[i].Lo = result.Min + float64(i)*width
		result.Histogram[i].Hi = result.Min + float64(i+1)*width
	}
	for _, t := range sorted {
		idx := int((t - result.Min) / width)
		if idx >= histogramBuckets {
			idx = histogramBuckets - 1
		}
		result.Histogram[idx].Count++
	}
}

func percentile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(q * float64(len(sorted)-1))
	return sorted[idx]
}
