package queries

import (
	"context"

	"go.uber.org/zap"

	"github.com/lox/weatherqueries/internal/apperr"
	"github.com/lox/weatherqueries/internal/models"
	"github.com/lox/weatherqueries/internal/store"
)

// HistoryFetcher returns daily temperature statistics for a point and an
// inclusive date range. An empty result is valid.
type HistoryFetcher interface {
	DailyHistory(ctx context.Context, lat, lon float64, start, end models.Date) ([]models.DailyStats, error)
}

// Synchronizer materialises provider history as observation rows. Fetch and
// Store are separate so the provider call happens before the unit of work
// that writes the rows is opened.
type Synchronizer struct {
	history HistoryFetcher
	log     *zap.Logger
}

func NewSynchronizer(history HistoryFetcher, log *zap.Logger) *Synchronizer {
	return &Synchronizer{history: history, log: log}
}

// Fetch asks the provider for the range. It touches no storage.
func (s *Synchronizer) Fetch(ctx context.Context, lat, lon float64, start, end models.Date) ([]models.DailyStats, error) {
	days, err := s.history.DailyHistory(ctx, lat, lon, start, end)
	if err != nil {
		return nil, apperr.Upstream("historical data request failed", err)
	}
	return days, nil
}

// Store inserts one observation per fetched day for queryID. It never
// deletes: callers clear existing rows first, in the same tx, to get
// full-replace semantics. Days with an unparseable date are skipped. Returns
// the number of rows written.
func (s *Synchronizer) Store(ctx context.Context, tx *store.Tx, queryID int64, days []models.DailyStats) (int, error) {
	stored, skipped := 0, 0
	for _, day := range days {
		date, ok := models.ParseDate(day.Date)
		if !ok {
			skipped++
			continue
		}
		obs := models.Observation{
			QueryID: queryID,
			Date:    date,
			TMin:    day.TMin,
			TMax:    day.TMax,
			TMean:   day.TMean,
		}
		if err := tx.InsertObservation(ctx, &obs); err != nil {
			return stored, err
		}
		stored++
	}

	if skipped > 0 {
		s.log.Warn("skipped days with unparseable dates",
			zap.Int64("query_id", queryID),
			zap.Int("skipped", skipped))
	}
	return stored, nil
}
