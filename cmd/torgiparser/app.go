package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/mishannn/torgiparser-go/internal/export"
	"github.com/mishannn/torgiparser-go/internal/pipeline"
	"github.com/mishannn/torgiparser-go/internal/refdata"
	"github.com/mishannn/torgiparser-go/internal/torgi"
)

// runOutcome is what a front-end needs to report a finished run.
type runOutcome struct {
	NoData  bool
	Path    string
	Records int
}

type runner interface {
	run(ctx context.Context, filter torgi.Filter, onProgress torgi.ProgressFunc, onStage pipeline.StageProgressFunc) (*runOutcome, error)
}

// app runs the pipeline and writes its result to an xlsx file in exportDir.
type app struct {
	pipeline  *pipeline.Pipeline
	catalog   *refdata.Catalog
	statistic *statisticSaver
	exportDir string
	logger    *slog.Logger
}

func (a *app) run(ctx context.Context, filter torgi.Filter, onProgress torgi.ProgressFunc, onStage pipeline.StageProgressFunc) (*runOutcome, error) {
	result, err := a.pipeline.Run(ctx, filter, onProgress, onStage)
	if err != nil {
		return nil, err
	}

	if result.NoData {
		return &runOutcome{NoData: true}, nil
	}

	if err := os.MkdirAll(a.exportDir, 0o755); err != nil {
		return nil, fmt.Errorf("can't create export dir: %w", err)
	}

	now := time.Now()
	fileName := export.FileName(a.catalog.SubjectNames(filter.Subjects), filter.Statuses, now)
	path := filepath.Join(a.exportDir, fileName)

	if err := export.XLSX(path, result.Header(), result.Rows()); err != nil {
		return nil, fmt.Errorf("can't export result: %w", err)
	}

	a.logger.Info("result exported", "run_id", result.RunID, "path", path, "records", len(result.Records))

	a.statistic.save(ctx, now, result.Records)

	return &runOutcome{Path: path, Records: len(result.Records)}, nil
}
