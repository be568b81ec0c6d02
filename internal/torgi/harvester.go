package torgi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/mishannn/torgiparser-go/internal/logger"
	"github.com/mishannn/torgiparser-go/internal/utils"
)

// ErrFirstPage means the listing could not be reached at all, nothing was harvested.
var ErrFirstPage = errors.New("can't fetch first search page")

// ProgressFunc receives the number of processed pages and the total page count.
type ProgressFunc func(done, total int)

type PageFetcher interface {
	FetchPage(ctx context.Context, filter Filter, page int) PageResult
	PageSize() int
}

type HarvesterOptions struct {
	// Concurrency is the number of pages fetched at once within a batch.
	Concurrency int `yaml:"concurrency"`
	// BatchDelay is slept between batches so the API does not start throttling.
	BatchDelay time.Duration `yaml:"batch_delay"`
	// Progress is reported on the first batch, every ProgressEveryPages pages
	// or when ProgressInterval has passed since the previous report.
	ProgressEveryPages int           `yaml:"progress_every_pages"`
	ProgressInterval   time.Duration `yaml:"progress_interval"`
}

func (o *HarvesterOptions) applyDefaults() {
	if o.Concurrency <= 0 {
		o.Concurrency = 5
	}
	if o.BatchDelay < 0 {
		o.BatchDelay = 0
	}
	if o.ProgressEveryPages <= 0 {
		o.ProgressEveryPages = 20
	}
	if o.ProgressInterval <= 0 {
		o.ProgressInterval = 2 * time.Second
	}
}

type HarvestResult struct {
	Lots []Lot
	// NoData is set when the filter legitimately matches nothing.
	NoData        bool
	TotalElements int
	TotalPages    int
	FailedPages   int
}

type Harvester struct {
	fetcher PageFetcher
	opts    HarvesterOptions
	logger  *slog.Logger
}

func NewHarvester(fetcher PageFetcher, opts HarvesterOptions, log *slog.Logger) *Harvester {
	opts.applyDefaults()
	if log == nil {
		log = logger.Discard()
	}

	return &Harvester{
		fetcher: fetcher,
		opts:    opts,
		logger:  log.With("component", "harvester"),
	}
}

// Harvest collects every page for filter. A failed page other than the first one
// is skipped; a cancelled ctx discards everything collected so far.
func (h *Harvester) Harvest(ctx context.Context, filter Filter, onProgress ProgressFunc) (*HarvestResult, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	started := time.Now()

	first := h.fetcher.FetchPage(ctx, filter, 0)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if first.Err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFirstPage, first.Err)
	}

	if first.TotalElements == 0 {
		h.logger.Info("no lots found", "subjects", filter.Subjects, "statuses", filter.Statuses)
		return &HarvestResult{NoData: true}, nil
	}

	// page 0 is the only source of the page count
	totalPages := TotalPages(first.TotalElements, h.fetcher.PageSize())
	if first.TotalPages != 0 && first.TotalPages != totalPages {
		h.logger.Warn("reported page count differs from computed one", "reported", first.TotalPages, "computed", totalPages)
	}

	result := &HarvestResult{
		Lots:          append(make([]Lot, 0, first.TotalElements), first.Items...),
		TotalElements: first.TotalElements,
		TotalPages:    totalPages,
	}

	progress := newProgressReporter(totalPages, h.opts, onProgress)
	progress.report(ctx, 1)

	if totalPages > 1 {
		h.logger.Info("multiple pages detected", "total_pages", totalPages, "total_elements", first.TotalElements)
	}

	for start := 1; start < totalPages; start += h.opts.Concurrency {
		end := min(start+h.opts.Concurrency, totalPages)
		pages := make([]PageResult, end-start)

		var g errgroup.Group
		for i := range pages {
			page := start + i
			g.Go(func() error {
				pages[page-start] = h.fetcher.FetchPage(ctx, filter, page)
				return nil
			})
		}
		_ = g.Wait()

		if err := ctx.Err(); err != nil {
			h.logger.Info("harvest cancelled", "pages_done", start, "total_pages", totalPages)
			return nil, err
		}

		for i, page := range pages {
			if page.Err != nil {
				result.FailedPages++
				h.logger.Warn("page skipped", "page", start+i, logger.Err(page.Err))
				continue
			}
			result.Lots = append(result.Lots, page.Items...)
		}

		progress.report(ctx, end)

		if end < totalPages {
			if err := utils.Sleep(ctx, h.opts.BatchDelay); err != nil {
				return nil, err
			}
		}
	}

	h.logger.Info("total lots collected",
		"count", len(result.Lots),
		"total_pages", totalPages,
		"failed_pages", result.FailedPages,
		"elapsed", time.Since(started).Round(time.Millisecond),
	)

	return result, nil
}

// progressReporter throttles progress callbacks. It is used from a single goroutine.
type progressReporter struct {
	total     int
	last      int
	f         ProgressFunc
	sometimes *rate.Sometimes
}

func newProgressReporter(total int, opts HarvesterOptions, f ProgressFunc) *progressReporter {
	every := max(1, opts.ProgressEveryPages/opts.Concurrency)

	return &progressReporter{
		total:     total,
		f:         f,
		sometimes: &rate.Sometimes{Every: every, Interval: opts.ProgressInterval},
	}
}

func (r *progressReporter) report(ctx context.Context, done int) {
	if r.f == nil || ctx.Err() != nil {
		return
	}

	if done >= r.total {
		if r.last < r.total {
			r.last = r.total
			r.f(r.total, r.total)
		}
		return
	}

	r.sometimes.Do(func() {
		r.last = done
		r.f(done, r.total)
	})
}
