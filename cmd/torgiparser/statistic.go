package main

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/pressly/goose/v3"
	"gonum.org/v1/gonum/stat"

	"github.com/mishannn/torgiparser-go/internal/export"
	"github.com/mishannn/torgiparser-go/internal/logger"
	"github.com/mishannn/torgiparser-go/internal/transform"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

func upMigrations(db *sql.DB) error {
	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect("clickhouse"); err != nil {
		return fmt.Errorf("can't set dialect for migrations: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("can't up migrations: %w", err)
	}

	return nil
}

type lotKey struct {
	Subject  string
	Category string
}

type lotStatItem struct {
	Subject     string  `json:"subject"`
	Category    string  `json:"category"`
	LotsCount   int     `json:"lots_count"`
	MedianPrice float64 `json:"median_price"`
}

// getLotStatistic is the median start price per square metre by subject and category.
// Lots without a price or a numeric area are skipped.
func getLotStatistic(records []transform.Record, log *slog.Logger) []lotStatItem {
	groupedLots := make(map[lotKey][]float64)
	for _, record := range records {
		if record.PriceMin == nil {
			continue
		}

		area, ok := transform.ParseNumber(record.Area)
		if !ok || area <= 0 {
			log.Debug("can't parse lot area", "lot_id", record.ID, "area", record.Area)
			continue
		}

		key := lotKey{Subject: record.Subject, Category: record.Category}
		groupedLots[key] = append(groupedLots[key], *record.PriceMin/area)
	}

	lotsWithMedianPricePerMeter := make([]lotStatItem, 0, len(groupedLots))
	for key, value := range groupedLots {
		sort.Float64s(value)

		lotsWithMedianPricePerMeter = append(lotsWithMedianPricePerMeter, lotStatItem{
			Subject:     key.Subject,
			Category:    key.Category,
			LotsCount:   len(value),
			MedianPrice: stat.Quantile(0.5, stat.Empirical, value, nil),
		})
	}

	sort.Slice(lotsWithMedianPricePerMeter, func(i, j int) bool {
		a, b := lotsWithMedianPricePerMeter[i], lotsWithMedianPricePerMeter[j]
		if a.Subject != b.Subject {
			return a.Subject < b.Subject
		}
		return a.Category < b.Category
	})

	return lotsWithMedianPricePerMeter
}

func saveStatistic(db *sql.DB, timestamp time.Time, statistic []lotStatItem) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("can't begin statistic tx: %w", err)
	}
	defer tx.Rollback()

	batch, err := tx.Prepare("INSERT INTO lot_median_price (date_time, subject, category, lots_count, price_per_meter) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("can't prepare statistic SQL: %w", err)
	}

	for _, row := range statistic {
		_, err := batch.Exec(timestamp.UTC(), row.Subject, row.Category, uint32(row.LotsCount), row.MedianPrice)
		if err != nil {
			return fmt.Errorf("can't write statistic row: %w", err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("can't write statistic data: %w", err)
	}

	return nil
}

func statisticSheetRows(t time.Time, statistic []lotStatItem) [][]any {
	rows := make([][]any, 0, len(statistic))
	for _, row := range statistic {
		rows = append(rows, []any{
			t.UTC().Format(time.DateTime),
			row.Subject,
			row.Category,
			row.LotsCount,
			row.MedianPrice,
		})
	}
	return rows
}

// statisticSaver stores run statistics in ClickHouse and Google Sheets, both optional.
type statisticSaver struct {
	db     *sql.DB
	sheets *export.SheetsWriter
	logger *slog.Logger
}

func (s *statisticSaver) enabled() bool {
	return s != nil && (s.db != nil || s.sheets != nil)
}

func (s *statisticSaver) save(ctx context.Context, t time.Time, records []transform.Record) {
	if !s.enabled() {
		return
	}

	statistic := getLotStatistic(records, s.logger)
	if len(statistic) == 0 {
		s.logger.Info("no lots with price and area, statistic skipped")
		return
	}

	if s.db != nil {
		if err := saveStatistic(s.db, t, statistic); err != nil {
			s.logger.Error("can't save statistic to database", logger.Err(err))
		}
	}

	if s.sheets != nil {
		if err := s.sheets.Append(ctx, statisticSheetRows(t, statistic)); err != nil {
			s.logger.Error("can't save statistic to sheets", logger.Err(err))
		}
	}

	s.logger.Info("statistic saved", "groups", len(statistic))
}
