package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/lox/weatherqueries/internal/models"
)

const tableQueries = "queries"

func selectQueries() sq.SelectBuilder {
	return builder().Select(
		"q.id", "q.location_id", "q.start_date", "q.end_date", "q.created_at",
		"l.id", "l.name", "l.country", "l.latitude", "l.longitude",
	).
		From(tableQueries + " q").
		Join(tableLocations + " l ON l.id = q.location_id")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuery(row rowScanner) (models.Query, error) {
	var (
		q         models.Query
		createdAt string
		country   sql.NullString
	)
	err := row.Scan(&q.ID, &q.LocationID, &q.StartDate, &q.EndDate, &createdAt,
		&q.Location.ID, &q.Location.Name, &country, &q.Location.Latitude, &q.Location.Longitude)
	if err != nil {
		return q, err
	}
	if country.Valid {
		q.Location.Country = &country.String
	}
	q.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return q, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	return q, nil
}

// GetQuery returns the query with its location, or nil if it does not exist.
func (o ops) GetQuery(ctx context.Context, id int64) (*models.Query, error) {
	row, err := o.queryRow(ctx, selectQueries().Where(sq.Eq{"q.id": id}))
	if err != nil {
		return nil, err
	}
	q, err := scanQuery(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// RecentQueries returns queries newest-created first. A limit <= 0 returns all.
func (o ops) RecentQueries(ctx context.Context, limit int) ([]models.Query, error) {
	b := selectQueries().OrderBy("q.created_at DESC", "q.id DESC")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	return o.listQueries(ctx, b)
}

// QueriesByID returns every query in ascending id order.
func (o ops) QueriesByID(ctx context.Context) ([]models.Query, error) {
	return o.listQueries(ctx, selectQueries().OrderBy("q.id ASC"))
}

func (o ops) listQueries(ctx context.Context, b sq.SelectBuilder) ([]models.Query, error) {
	rows, err := o.query(ctx, b)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	queries := []models.Query{}
	for rows.Next() {
		q, err := scanQuery(rows)
		if err != nil {
			return nil, err
		}
		queries = append(queries, q)
	}
	return queries, rows.Err()
}

// InsertQuery stores q and sets its ID. CreatedAt must already be set.
func (o ops) InsertQuery(ctx context.Context, q *models.Query) error {
	result, err := o.exec(ctx, builder().Insert(tableQueries).
		Columns("location_id", "start_date", "end_date", "created_at").
		Values(q.LocationID, q.StartDate, q.EndDate, q.CreatedAt.UTC().Format(timestampLayout)))
	if err != nil {
		return fmt.Errorf("insert query: %w", err)
	}
	q.ID, err = result.LastInsertId()
	return err
}

// UpdateQuery writes the mutable fields of q. created_at is never changed.
func (o ops) UpdateQuery(ctx context.Context, q *models.Query) error {
	_, err := o.exec(ctx, builder().Update(tableQueries).
		Set("location_id", q.LocationID).
		Set("start_date", q.StartDate).
		Set("end_date", q.EndDate).
		Where(sq.Eq{"id": q.ID}))
	if err != nil {
		return fmt.Errorf("update query %d: %w", q.ID, err)
	}
	return nil
}

// DeleteQuery removes the query row and reports whether it existed.
func (o ops) DeleteQuery(ctx context.Context, id int64) (bool, error) {
	result, err := o.exec(ctx, builder().Delete(tableQueries).Where(sq.Eq{"id": id}))
	if err != nil {
		return false, fmt.Errorf("delete query %d: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
