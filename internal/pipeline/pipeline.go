// Package pipeline runs one harvest: search pages, enrichment and reshaping into export rows.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mishannn/torgiparser-go/internal/batch"
	"github.com/mishannn/torgiparser-go/internal/logger"
	"github.com/mishannn/torgiparser-go/internal/nspd"
	"github.com/mishannn/torgiparser-go/internal/torgi"
	"github.com/mishannn/torgiparser-go/internal/transform"
)

type Stage string

const (
	StageGeocoding Stage = "geocoding"
	StageDetails   Stage = "details"
)

// StageProgressFunc reports enrichment progress in unique items of a stage.
type StageProgressFunc func(stage Stage, done, total int)

// Source is the torgi API: search pages, lot cards and public links.
type Source interface {
	torgi.PageFetcher
	GetLotDetail(ctx context.Context, lotID string) (torgi.LotDetail, error)
	Links() torgi.Links
}

type Geocoder interface {
	Geocode(ctx context.Context, cadastralNumber string) (nspd.GeoResult, error)
}

type SubjectNamer interface {
	SubjectName(rfCode string) string
}

type Options struct {
	Harvester torgi.HarvesterOptions `yaml:"harvester"`
	Geocoding batch.Options          `yaml:"geocoding"`
	Details   batch.Options          `yaml:"details"`
}

// DefaultOptions are the presets for the public endpoints.
func DefaultOptions() Options {
	return Options{
		Harvester: torgi.HarvesterOptions{
			Concurrency:        5,
			BatchDelay:         500 * time.Millisecond,
			ProgressEveryPages: 20,
			ProgressInterval:   2 * time.Second,
		},
		Geocoding: batch.Options{
			Workers:          5,
			MaxInFlight:      3,
			GroupSize:        20,
			Delay:            300 * time.Millisecond,
			RetryPasses:      1,
			RetryWorkers:     2,
			RetryDelay:       500 * time.Millisecond,
			RetryBackoff:     time.Second,
			RateLimitBackoff: 5 * time.Second,
		},
		Details: batch.Options{
			Workers:      10,
			MaxInFlight:  10,
			RetryPasses:  1,
			RetryWorkers: 3,
			RetryBackoff: time.Second,
		},
	}
}

type Result struct {
	RunID string
	// NoData is set when the filter matched no lots.
	NoData bool

	Records []transform.Record
	Columns []transform.Column

	Harvest      *torgi.HarvestResult
	GeoReport    batch.Report
	DetailReport batch.Report
	Elapsed      time.Duration
}

func (r *Result) Header() []string {
	return transform.Titles(r.Columns)
}

func (r *Result) Rows() [][]string {
	rows := make([][]string, 0, len(r.Records))
	for _, record := range r.Records {
		rows = append(rows, transform.Row(record, r.Columns))
	}
	return rows
}

type Pipeline struct {
	source    Source
	geocoder  Geocoder
	subjects  SubjectNamer
	harvester *torgi.Harvester
	opts      Options
	logger    *slog.Logger
}

func New(source Source, geocoder Geocoder, subjects SubjectNamer, opts Options, log *slog.Logger) *Pipeline {
	if log == nil {
		log = logger.Discard()
	}

	opts.Geocoding.Name = string(StageGeocoding)
	opts.Geocoding.IsRateLimited = nspd.IsRateLimited
	opts.Geocoding.IsPermanent = nspd.IsPermanent
	opts.Details.Name = string(StageDetails)

	return &Pipeline{
		source:    source,
		geocoder:  geocoder,
		subjects:  subjects,
		harvester: torgi.NewHarvester(source, opts.Harvester, log),
		opts:      opts,
		logger:    log,
	}
}

// Run harvests lots for filter and enriches them. onProgress receives harvested pages,
// onStage receives enrichment progress; both may be nil. Per-lot failures leave the
// affected fields empty, only validation, first page and ctx errors are returned.
func (p *Pipeline) Run(ctx context.Context, filter torgi.Filter, onProgress torgi.ProgressFunc, onStage StageProgressFunc) (*Result, error) {
	started := time.Now()
	result := &Result{
		RunID:   uuid.NewString(),
		Columns: transform.Columns(filter.ComputeCoordinates),
	}
	log := p.logger.With("run_id", result.RunID)

	log.Info("run started",
		"subjects", filter.Subjects,
		"statuses", filter.Statuses,
		"coordinates", filter.ComputeCoordinates,
	)

	harvest, err := p.harvester.Harvest(ctx, filter, onProgress)
	if err != nil {
		log.Error("harvest failed", logger.Err(err))
		return nil, err
	}
	result.Harvest = harvest

	if harvest.NoData {
		result.NoData = true
		result.Elapsed = time.Since(started)
		log.Info("run finished without data")
		return result, nil
	}

	links := p.source.Links()
	records := make([]transform.Record, 0, len(harvest.Lots))
	for _, lot := range harvest.Lots {
		records = append(records, transform.Basic(lot, links, p.subjects.SubjectName(string(lot.SubjectRFCode))))
	}

	if filter.ComputeCoordinates {
		geo, report, err := p.geocode(ctx, records, onStage, log)
		if err != nil {
			return nil, err
		}
		result.GeoReport = report

		for i := range records {
			if location, ok := geo[records[i].CadastralNumber]; ok {
				transform.ApplyGeo(&records[i], &location)
			}
		}
	}

	details, report, err := p.fetchDetails(ctx, records, onStage, log)
	if err != nil {
		return nil, err
	}
	result.DetailReport = report

	for i := range records {
		if detail, ok := details[records[i].ID]; ok {
			transform.ApplyDetail(&records[i], detail)
		}
	}

	result.Records = records
	result.Elapsed = time.Since(started)

	log.Info("run finished",
		"records", len(records),
		"failed_pages", harvest.FailedPages,
		"geocoded", result.GeoReport.Succeeded,
		"details", result.DetailReport.Succeeded,
		"elapsed", result.Elapsed.Round(time.Millisecond),
	)

	return result, nil
}

func (p *Pipeline) geocode(ctx context.Context, records []transform.Record, onStage StageProgressFunc, log *slog.Logger) (map[string]nspd.GeoResult, batch.Report, error) {
	keys := make([]string, 0, len(records))
	for _, record := range records {
		keys = append(keys, record.CadastralNumber)
	}

	opts := p.opts.Geocoding
	opts.OnProgress = stageProgress(StageGeocoding, onStage)

	return batch.Run(ctx, keys, p.geocoder.Geocode, opts, log)
}

func (p *Pipeline) fetchDetails(ctx context.Context, records []transform.Record, onStage StageProgressFunc, log *slog.Logger) (map[string]torgi.LotDetail, batch.Report, error) {
	keys := make([]string, 0, len(records))
	for _, record := range records {
		keys = append(keys, record.ID)
	}

	opts := p.opts.Details
	opts.OnProgress = stageProgress(StageDetails, onStage)

	return batch.Run(ctx, keys, p.source.GetLotDetail, opts, log)
}

func stageProgress(stage Stage, onStage StageProgressFunc) func(done, total int) {
	if onStage == nil {
		return nil
	}
	return func(done, total int) {
		onStage(stage, done, total)
	}
}
