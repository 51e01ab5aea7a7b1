package store

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/lox/weatherqueries/internal/models"
)

const tableLocations = "locations"

var locationColumns = []string{"id", "name", "country", "latitude", "longitude"}

// FindLocationByCoords returns the location stored at exactly (lat, lon), or
// nil if there is none.
func (o ops) FindLocationByCoords(ctx context.Context, lat, lon float64) (*models.Location, error) {
	row, err := o.queryRow(ctx, builder().Select(locationColumns...).
		From(tableLocations).
		Where(sq.Eq{"latitude": lat, "longitude": lon}).
		Limit(1))
	if err != nil {
		return nil, err
	}
	return scanLocation(row)
}

func (o ops) GetLocation(ctx context.Context, id int64) (*models.Location, error) {
	row, err := o.queryRow(ctx, builder().Select(locationColumns...).
		From(tableLocations).
		Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, err
	}
	return scanLocation(row)
}

// InsertLocation stores loc and sets its ID.
func (o ops) InsertLocation(ctx context.Context, loc *models.Location) error {
	var country sql.NullString
	if loc.Country != nil {
		country = sql.NullString{String: *loc.Country, Valid: true}
	}
	result, err := o.exec(ctx, builder().Insert(tableLocations).
		Columns("name", "country", "latitude", "longitude").
		Values(loc.Name, country, loc.Latitude, loc.Longitude))
	if err != nil {
		return fmt.Errorf("insert location: %w", err)
	}
	loc.ID, err = result.LastInsertId()
	return err
}

func (o ops) CountLocations(ctx context.Context) (int, error) {
	row, err := o.queryRow(ctx, builder().Select("COUNT(*)").From(tableLocations))
	if err != nil {
		return 0, err
	}
	var n int
	return n, row.Scan(&n)
}

func scanLocation(row *sql.Row) (*models.Location, error) {
	var loc models.Location
	var country sql.NullString
	err := row.Scan(&loc.ID, &loc.Name, &country, &loc.Latitude, &loc.Longitude)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if country.Valid {
		loc.Country = &country.String
	}
	return &loc, nil
}
