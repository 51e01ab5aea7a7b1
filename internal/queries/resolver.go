package queries

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/lox/weatherqueries/internal/apperr"
	"github.com/lox/weatherqueries/internal/metrics"
	"github.com/lox/weatherqueries/internal/models"
	"github.com/lox/weatherqueries/internal/store"
)

// Geocoder turns free text into the single best matching place. A nil place
// with a nil error means no match.
type Geocoder interface {
	Geocode(ctx context.Context, name string) (*models.Place, error)
}

// statusCoder is implemented by geocoder errors that carry the provider's
// HTTP status. Any such answer means the provider could not resolve the text.
type statusCoder interface {
	StatusCode() int
}

// Resolver turns location text or coordinates into places, and places into
// stored locations deduplicated by exact coordinates.
type Resolver struct {
	geocoder Geocoder
	log      *zap.Logger
}

func NewResolver(geocoder Geocoder, log *zap.Logger) *Resolver {
	return &Resolver{geocoder: geocoder, log: log}
}

// Lookup resolves text (preferred) or explicit coordinates without touching
// storage. Explicit coordinates skip the geocoder and carry no name.
func (r *Resolver) Lookup(ctx context.Context, text string, lat, lon *float64) (models.Place, error) {
	text = strings.TrimSpace(text)
	if text == "" && (lat == nil || lon == nil) {
		return models.Place{}, apperr.Input("Provide ?q=location OR ?lat=..&lon=..")
	}
	if text == "" {
		return models.Place{Latitude: *lat, Longitude: *lon}, nil
	}

	place, err := r.geocoder.Geocode(ctx, text)
	if err != nil {
		var rejected statusCoder
		if errors.As(err, &rejected) {
			r.log.Info("geocoder rejected lookup",
				zap.String("text", text),
				zap.Int("status", rejected.StatusCode()))
			return models.Place{}, apperr.NotFound("Location not found")
		}
		return models.Place{}, apperr.Upstream("geocoding request failed", err)
	}
	if place == nil {
		return models.Place{}, apperr.NotFound("Location not found")
	}
	return *place, nil
}

// Upsert returns the location stored at exactly place's coordinates or
// inserts a new one. Existing locations are never modified. fallbackName is
// used when the place has no name of its own.
func (r *Resolver) Upsert(ctx context.Context, tx *store.Tx, place models.Place, fallbackName string) (*models.Location, error) {
	existing, err := tx.FindLocationByCoords(ctx, place.Latitude, place.Longitude)
	if err != nil {
		return nil, fmt.Errorf("find location: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	loc := &models.Location{
		Name:      place.Name,
		Latitude:  place.Latitude,
		Longitude: place.Longitude,
	}
	if loc.Name == "" {
		loc.Name = fallbackName
	}
	if loc.Name == "" {
		loc.Name = fmt.Sprintf("%g,%g", place.Latitude, place.Longitude)
	}
	if place.Country != "" {
		country := place.Country
		loc.Country = &country
	}

	if err := tx.InsertLocation(ctx, loc); err != nil {
		return nil, err
	}
	metrics.LocationsCreated.Inc()
	r.log.Debug("location created",
		zap.Int64("location_id", loc.ID),
		zap.String("name", loc.Name),
		zap.Float64("latitude", loc.Latitude),
		zap.Float64("longitude", loc.Longitude))
	return loc, nil
}
