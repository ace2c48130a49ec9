package keyfinder

import (
	"context"
	"runtime"
	"sync"
)

// Loader produces the waveform of one track. It runs on a worker goroutine.
type Loader func(ctx context.Context) (waveform []float64, sampleRate int, err error)

// CacheFunc answers a job from a cache or falls through to analyze.
// cached reports whether analyze was skipped.
type CacheFunc func(ctx context.Context, analyze func(context.Context) (*KeyEstimate, error)) (est *KeyEstimate, cached bool, err error)

// Job is one track of a batch.
type Job struct {
	Name  string
	Load  Loader
	Cache CacheFunc // optional
}

// Result is the outcome of one Job.
type Result struct {
	Name     string
	Estimate *KeyEstimate
	Cached   bool
	Err      error
}

// ProgressFunc is called once per finished job, from a single goroutine.
type ProgressFunc func(done, total int, result Result)

// Batch analyzes independent tracks on a bounded worker pool. Each worker
// owns the waveform of the track it is processing.
type Batch struct {
	analyzer *Analyzer
	workers  int
	progress ProgressFunc
}

// NewBatch creates a batch runner. workers <= 0 means the analyzer's
// configured worker count, or one per CPU when that is zero too.
func NewBatch(analyzer *Analyzer, workers int) *Batch {
	if workers <= 0 {
		workers = analyzer.config.Workers
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Batch{analyzer: analyzer, workers: workers}
}

// OnProgress registers fn to be told about each finished job.
func (b *Batch) OnProgress(fn ProgressFunc) {
	b.progress = fn
}

// Run processes jobs and returns their results in input order. Jobs not
// started before ctx is cancelled report ctx.Err().
func (b *Batch) Run(ctx context.Context, jobs []Job) []Result {
	results := make([]Result, len(jobs))
	if len(jobs) == 0 {
		return results
	}

	type done struct {
		index  int
		result Result
	}
	queue := make(chan int, len(jobs))
	finished := make(chan done, len(jobs))

	var wg sync.WaitGroup
	for range min(b.workers, len(jobs)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range queue {
				finished <- done{index: i, result: b.runJob(ctx, jobs[i])}
			}
		}()
	}

	for i := range jobs {
		queue <- i
	}
	close(queue)

	go func() {
		wg.Wait()
		close(finished)
	}()

	count := 0
	for d := range finished {
		results[d.index] = d.result
		count++
		if b.progress != nil {
			b.progress(count, len(jobs), d.result)
		}
	}
	return results
}

func (b *Batch) runJob(ctx context.Context, job Job) Result {
	result := Result{Name: job.Name}
	if err := ctx.Err(); err != nil {
		result.Err = err
		return result
	}

	analyze := func(ctx context.Context) (*KeyEstimate, error) {
		waveform, sampleRate, err := job.Load(ctx)
		if err != nil {
			return nil, err
		}
		return b.analyzer.EstimateKey(ctx, waveform, sampleRate)
	}
	if job.Cache != nil {
		result.Estimate, result.Cached, result.Err = job.Cache(ctx, analyze)
		return result
	}
	result.Estimate, result.Err = analyze(ctx)
	return result
}
