package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mishannn/torgiparser-go/internal/logger"
	"github.com/mishannn/torgiparser-go/internal/transform"
)

func price(v float64) *float64 {
	return &v
}

func TestGetLotStatistic(t *testing.T) {
	records := []transform.Record{
		{ID: "1", Subject: "Москва", Category: "Земельные участки", Area: "100", PriceMin: price(1000)},
		{ID: "2", Subject: "Москва", Category: "Земельные участки", Area: "200", PriceMin: price(6000)},
		{ID: "3", Subject: "Москва", Category: "Земельные участки", Area: "10", PriceMin: price(200)},
		{ID: "4", Subject: "Москва", Category: "Земельные участки", Area: "", PriceMin: price(200)},
		{ID: "5", Subject: "Москва", Category: "Земельные участки", Area: "50", PriceMin: nil},
		{ID: "6", Subject: "Калужская область", Category: "Земельные участки", Area: "1 000,5", PriceMin: price(2001)},
		{ID: "7", Subject: "Москва", Category: "Аренда", Area: "0", PriceMin: price(10)},
	}

	stats := getLotStatistic(records, logger.Discard())
	require.Len(t, stats, 2)

	assert.Equal(t, lotStatItem{Subject: "Калужская область", Category: "Земельные участки", LotsCount: 1, MedianPrice: 2}, stats[0])

	assert.Equal(t, "Москва", stats[1].Subject)
	assert.Equal(t, 3, stats[1].LotsCount)
	assert.InDelta(t, 20, stats[1].MedianPrice, 1e-9)
}

func TestStatisticSheetRows(t *testing.T) {
	ts := time.Date(2024, 6, 1, 12, 30, 0, 0, time.UTC)

	rows := statisticSheetRows(ts, []lotStatItem{{Subject: "Москва", Category: "Земельные участки", LotsCount: 3, MedianPrice: 20}})
	assert.Equal(t, [][]any{{"2024-06-01 12:30:00", "Москва", "Земельные участки", 3, 20.0}}, rows)
}

func TestStatisticSaverDisabled(t *testing.T) {
	var nilSaver *statisticSaver
	assert.False(t, nilSaver.enabled())
	assert.False(t, (&statisticSaver{logger: logger.Discard()}).enabled())

	assert.NotPanics(t, func() {
		nilSaver.save(context.Background(), time.Now(), []transform.Record{{PriceMin: price(1), Area: "1"}})
	})
}
