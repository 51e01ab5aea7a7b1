package store

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/lox/weatherqueries/internal/models"
)

const tableObservations = "observations"

var observationColumns = []string{"id", "query_id", "date", "t_min", "t_max", "t_mean"}

// InsertObservation stores obs and sets its ID.
func (o ops) InsertObservation(ctx context.Context, obs *models.Observation) error {
	result, err := o.exec(ctx, builder().Insert(tableObservations).
		Columns("query_id", "date", "t_min", "t_max", "t_mean").
		Values(obs.QueryID, obs.Date, obs.TMin, obs.TMax, obs.TMean))
	if err != nil {
		return fmt.Errorf("insert observation: %w", err)
	}
	obs.ID, err = result.LastInsertId()
	return err
}

// DeleteObservations removes every observation owned by queryID.
func (o ops) DeleteObservations(ctx context.Context, queryID int64) (int64, error) {
	result, err := o.exec(ctx, builder().Delete(tableObservations).Where(sq.Eq{"query_id": queryID}))
	if err != nil {
		return 0, fmt.Errorf("delete observations for query %d: %w", queryID, err)
	}
	return result.RowsAffected()
}

// ListObservations returns the observations for queryID ordered by date.
func (o ops) ListObservations(ctx context.Context, queryID int64) ([]models.Observation, error) {
	byQuery, err := o.ObservationsForQueries(ctx, []int64{queryID})
	if err != nil {
		return nil, err
	}
	if obs := byQuery[queryID]; obs != nil {
		return obs, nil
	}
	return []models.Observation{}, nil
}

// ObservationsForQueries loads observations for several queries at once,
// keyed by query id and ordered by date within each query.
func (o ops) ObservationsForQueries(ctx context.Context, queryIDs []int64) (map[int64][]models.Observation, error) {
	out := make(map[int64][]models.Observation, len(queryIDs))
	if len(queryIDs) == 0 {
		return out, nil
	}

	rows, err := o.query(ctx, builder().Select(observationColumns...).
		From(tableObservations).
		Where(sq.Eq{"query_id": queryIDs}).
		OrderBy("query_id", "date", "id"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var obs models.Observation
		if err := rows.Scan(&obs.ID, &obs.QueryID, &obs.Date, &obs.TMin, &obs.TMax, &obs.TMean); err != nil {
			return nil, err
		}
		out[obs.QueryID] = append(out[obs.QueryID], obs)
	}
	return out, rows.Err()
}

func (o ops) CountObservations(ctx context.Context, queryID int64) (int, error) {
	row, err := o.queryRow(ctx, builder().Select("COUNT(*)").
		From(tableObservations).
		Where(sq.Eq{"query_id": queryID}))
	if err != nil {
		return 0, err
	}
	var n int
	return n, row.Scan(&n)
}

// TotalObservations counts observation rows across all queries.
func (o ops) TotalObservations(ctx context.Context) (int, error) {
	row, err := o.queryRow(ctx, builder().Select("COUNT(*)").From(tableObservations))
	if err != nil {
		return 0, err
	}
	var n int
	return n, row.Scan(&n)
}
