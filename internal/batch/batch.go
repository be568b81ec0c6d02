// Package batch runs an unreliable per-key call over many keys with a bounded
// worker pool, per-call pacing and retry passes for failed or throttled keys.
package batch

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/mishannn/torgiparser-go/internal/logger"
	"github.com/mishannn/torgiparser-go/internal/utils"
)

type Options struct {
	Name string `yaml:"-"`
	// Workers is the pool size of the first pass.
	Workers int `yaml:"workers"`
	// MaxInFlight caps concurrent calls below Workers, 0 means no extra cap.
	MaxInFlight int `yaml:"max_in_flight"`
	// GroupSize splits keys into groups processed one after another, 0 means one group.
	GroupSize int `yaml:"group_size"`
	// Delay is slept by a worker before every call.
	Delay time.Duration `yaml:"delay"`

	RetryPasses      int           `yaml:"retry_passes"`
	RetryWorkers     int           `yaml:"retry_workers"`
	RetryDelay       time.Duration `yaml:"retry_delay"`
	RetryBackoff     time.Duration `yaml:"retry_backoff"`
	RateLimitBackoff time.Duration `yaml:"rate_limit_backoff"`

	IsRateLimited func(error) bool `yaml:"-"`
	// IsPermanent marks errors that are not retried.
	IsPermanent func(error) bool `yaml:"-"`
	// OnProgress is called from the orchestrating goroutine after each call of the first pass.
	OnProgress func(done, total int) `yaml:"-"`
}

func (o *Options) applyDefaults() {
	if o.Name == "" {
		o.Name = "batch"
	}
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.RetryPasses < 0 {
		o.RetryPasses = 0
	}
	if o.RetryWorkers <= 0 {
		o.RetryWorkers = max(1, o.Workers/2)
	}
	if o.IsRateLimited == nil {
		o.IsRateLimited = func(error) bool { return false }
	}
	if o.IsPermanent == nil {
		o.IsPermanent = func(error) bool { return false }
	}
}

// backoff is the pause before retry pass number pass (1-based).
func (o *Options) backoff(pass int, rateLimited bool) time.Duration {
	if rateLimited {
		return o.RateLimitBackoff * time.Duration(pass)
	}
	return o.RetryBackoff
}

type Report struct {
	Name        string
	Total       int
	Succeeded   int
	Failed      int
	RateLimited int
	Retried     int
	Passes      int
	Elapsed     time.Duration
	// MedianLatency is the median duration of a single call over all passes.
	MedianLatency time.Duration
}

// Run calls work once per unique key and returns the values of keys that resolved.
// Keys missing from the map failed every pass. The error is non-nil only when ctx is done,
// in that case the partial map is discarded.
func Run[K comparable, V any](ctx context.Context, keys []K, work func(ctx context.Context, key K) (V, error), opts Options, log *slog.Logger) (map[K]V, Report, error) {
	opts.applyDefaults()
	if log == nil {
		log = logger.Discard()
	}
	log = log.With("component", "batch", "batch", opts.Name)

	started := time.Now()
	pending := utils.RemoveDuplicates(keys)

	results := make(map[K]V, len(pending))
	report := Report{Name: opts.Name, Total: len(pending)}
	latencies := make([]float64, 0, len(pending))
	lastRateLimited := 0

	for pass := 0; pass <= opts.RetryPasses && len(pending) > 0; pass++ {
		workers, delay := opts.Workers, opts.Delay
		var onProgress func(done, total int)

		if pass == 0 {
			onProgress = opts.OnProgress
		} else {
			wait := opts.backoff(pass, lastRateLimited > 0)
			log.Info("retrying failed items", "pass", pass, "items", len(pending), "backoff", wait)

			if err := utils.Sleep(ctx, wait); err != nil {
				return nil, report, err
			}
			workers, delay = opts.RetryWorkers, opts.Delay+opts.RetryDelay
			report.Retried += len(pending)
		}

		report.Passes++

		var retry []K
		passRateLimited := 0
		done := 0
		for _, group := range utils.Chunks(pending, opts.GroupSize) {
			pool := utils.NewWorkerPool(work, workers)
			pool.DelayEach(delay)
			if pass == 0 {
				pool.LimitInFlight(opts.MaxInFlight)
			}
			if onProgress != nil {
				offset := done
				pool.OnProgress(func(current, _ int) {
					onProgress(offset+current, len(pending))
				})
			}

			outputs, err := pool.Map(ctx, group)
			if err != nil {
				log.Info("batch cancelled", "pass", pass, "resolved", len(results))
				return nil, report, err
			}

			for i, output := range outputs {
				latencies = append(latencies, output.Elapsed.Seconds())

				if output.Err == nil {
					results[group[i]] = output.Value
					continue
				}

				if opts.IsRateLimited(output.Err) {
					passRateLimited++
				} else if opts.IsPermanent(output.Err) {
					continue
				}
				retry = append(retry, group[i])
			}
			done += len(group)
		}

		report.RateLimited += passRateLimited
		lastRateLimited = passRateLimited
		pending = retry
	}

	report.Succeeded = len(results)
	report.Failed = report.Total - report.Succeeded
	report.Elapsed = time.Since(started)
	report.MedianLatency = median(latencies)

	log.Info("batch finished",
		"total", report.Total,
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"retried", report.Retried,
		"passes", report.Passes,
		"elapsed", report.Elapsed.Round(time.Millisecond),
		"median_latency", report.MedianLatency.Round(time.Millisecond),
	)

	return results, report, nil
}

func median(seconds []float64) time.Duration {
	if len(seconds) == 0 {
		return 0
	}

	sorted := append([]float64(nil), seconds...)
	sort.Float64s(sorted)

	return time.Duration(stat.Quantile(0.5, stat.Empirical, sorted, nil) * float64(time.Second))
}
