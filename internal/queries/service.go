// Package queries owns the query lifecycle: resolving locations, validating
// date ranges and keeping each query's observations in step with its
// current location and range.
package queries

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lox/weatherqueries/internal/apperr"
	"github.com/lox/weatherqueries/internal/metrics"
	"github.com/lox/weatherqueries/internal/models"
	"github.com/lox/weatherqueries/internal/store"
)

type CreateInput struct {
	Location  string `json:"location"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// UpdateInput fields left nil (or empty) keep the query's current value.
type UpdateInput struct {
	Location  *string `json:"location"`
	StartDate *string `json:"start_date"`
	EndDate   *string `json:"end_date"`
}

type DeleteResult struct {
	Status string `json:"status"`
	ID     int64  `json:"id"`
}

type Service struct {
	store    *store.Store
	resolver *Resolver
	sync     *Synchronizer
	log      *zap.Logger
	maxDays  int
	now      func() time.Time
}

type Option func(*Service)

func WithMaxRangeDays(days int) Option {
	return func(s *Service) {
		if days > 0 {
			s.maxDays = days
		}
	}
}

// WithClock overrides the clock used for created_at.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(st *store.Store, geocoder Geocoder, history HistoryFetcher, log *zap.Logger, opts ...Option) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{
		store:    st,
		resolver: NewResolver(geocoder, log),
		sync:     NewSynchronizer(history, log),
		log:      log,
		maxDays:  DefaultMaxRangeDays,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Resolver exposes the location resolver for read-only lookups.
func (s *Service) Resolver() *Resolver { return s.resolver }

// MaxRangeDays is the configured maximum query span.
func (s *Service) MaxRangeDays() int { return s.maxDays }

// Create resolves the location, stores the query and its observations as
// one unit of work. Provider calls are made before the unit of work opens, so
// no database connection or write lock is held while they are in flight.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.QueryWithObservations, error) {
	text := strings.TrimSpace(in.Location)
	if text == "" {
		return nil, s.record("create", 0, apperr.Input("location is required"))
	}

	start, _ := models.ParseDate(in.StartDate)
	end, _ := models.ParseDate(in.EndDate)
	if err := ValidateDateRange(start, end, s.maxDays); err != nil {
		return nil, s.record("create", 0, err)
	}

	place, err := s.resolver.Lookup(ctx, text, nil, nil)
	if err != nil {
		return nil, s.record("create", 0, err)
	}
	days, err := s.sync.Fetch(ctx, place.Latitude, place.Longitude, start, end)
	if err != nil {
		return nil, s.record("create", 0, err)
	}

	var (
		out    *models.QueryWithObservations
		stored int
	)
	err = s.store.InTx(ctx, func(tx *store.Tx) error {
		loc, err := s.resolver.Upsert(ctx, tx, place, text)
		if err != nil {
			return err
		}

		q := &models.Query{
			LocationID: loc.ID,
			Location:   *loc,
			StartDate:  start,
			EndDate:    end,
			CreatedAt:  s.now(),
		}
		if err := tx.InsertQuery(ctx, q); err != nil {
			return err
		}

		stored, err = s.sync.Store(ctx, tx, q.ID, days)
		if err != nil {
			return err
		}

		out, err = load(ctx, tx, q.ID)
		return err
	})
	if err != nil {
		return nil, s.record("create", 0, err)
	}

	s.record("create", stored, nil)
	s.log.Info("query created",
		zap.Int64("query_id", out.ID),
		zap.String("location", out.Location.Name),
		zap.Stringer("start_date", out.StartDate),
		zap.Stringer("end_date", out.EndDate),
		zap.Int("observations", stored))
	return out, nil
}

// Get returns one query with its observations.
func (s *Service) Get(ctx context.Context, id int64) (*models.QueryWithObservations, error) {
	return load(ctx, s.store, id)
}

// List returns every query, newest first, without observations.
func (s *Service) List(ctx context.Context) ([]models.Query, error) {
	return s.store.RecentQueries(ctx, 0)
}

// Recent returns at most limit queries, newest first.
func (s *Service) Recent(ctx context.Context, limit int) ([]models.Query, error) {
	return s.store.RecentQueries(ctx, limit)
}

// Update changes any of location, start and end, then replaces the query's
// observations with a fresh fetch. The new state is computed from a snapshot
// of the query and fetched before the unit of work opens; the unit of work
// then writes location, dates and observations together. Any failure leaves
// the stored query and its observations as they were.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (*models.QueryWithObservations, error) {
	current, err := s.store.GetQuery(ctx, id)
	if err != nil {
		return nil, s.record("update", 0, fmt.Errorf("get query %d: %w", id, err))
	}
	if current == nil {
		return nil, s.record("update", 0, apperr.NotFound("Not found"))
	}

	var (
		place    *models.Place
		fallback string
	)
	lat, lon := current.Location.Latitude, current.Location.Longitude
	if in.Location != nil && strings.TrimSpace(*in.Location) != "" {
		fallback = strings.TrimSpace(*in.Location)
		p, err := s.resolver.Lookup(ctx, fallback, nil, nil)
		if err != nil {
			return nil, s.record("update", 0, err)
		}
		place = &p
		lat, lon = p.Latitude, p.Longitude
	}

	start := effectiveDate(in.StartDate, current.StartDate)
	end := effectiveDate(in.EndDate, current.EndDate)
	if err := ValidateDateRange(start, end, s.maxDays); err != nil {
		return nil, s.record("update", 0, err)
	}

	days, err := s.sync.Fetch(ctx, lat, lon, start, end)
	if err != nil {
		return nil, s.record("update", 0, err)
	}

	var (
		out    *models.QueryWithObservations
		stored int
	)
	err = s.store.InTx(ctx, func(tx *store.Tx) error {
		q, err := tx.GetQuery(ctx, id)
		if err != nil {
			return fmt.Errorf("get query %d: %w", id, err)
		}
		if q == nil {
			return apperr.NotFound("Not found")
		}

		// Write the location the observations were fetched for, even if a
		// concurrent update moved the query in the meantime.
		q.LocationID, q.Location = current.LocationID, current.Location
		if place != nil {
			loc, err := s.resolver.Upsert(ctx, tx, *place, fallback)
			if err != nil {
				return err
			}
			q.LocationID, q.Location = loc.ID, *loc
		}
		q.StartDate, q.EndDate = start, end

		if err := tx.UpdateQuery(ctx, q); err != nil {
			return err
		}
		if _, err := tx.DeleteObservations(ctx, q.ID); err != nil {
			return err
		}
		stored, err = s.sync.Store(ctx, tx, q.ID, days)
		if err != nil {
			return err
		}

		out, err = load(ctx, tx, q.ID)
		return err
	})
	if err != nil {
		return nil, s.record("update", 0, err)
	}

	s.record("update", stored, nil)
	s.log.Info("query updated",
		zap.Int64("query_id", out.ID),
		zap.String("location", out.Location.Name),
		zap.Stringer("start_date", out.StartDate),
		zap.Stringer("end_date", out.EndDate),
		zap.Int("observations", stored))
	return out, nil
}

// Delete removes the query and its observations. The location is kept.
func (s *Service) Delete(ctx context.Context, id int64) (*DeleteResult, error) {
	err := s.store.InTx(ctx, func(tx *store.Tx) error {
		q, err := tx.GetQuery(ctx, id)
		if err != nil {
			return fmt.Errorf("get query %d: %w", id, err)
		}
		if q == nil {
			return apperr.NotFound("Not found")
		}
		if _, err := tx.DeleteObservations(ctx, id); err != nil {
			return err
		}
		_, err = tx.DeleteQuery(ctx, id)
		return err
	})
	if err != nil {
		return nil, s.record("delete", 0, err)
	}

	s.record("delete", 0, nil)
	s.log.Info("query deleted", zap.Int64("query_id", id))
	return &DeleteResult{Status: "deleted", ID: id}, nil
}

// ExportAll returns every query with its observations, ordered by id, read
// from a single snapshot.
func (s *Service) ExportAll(ctx context.Context) ([]models.QueryWithObservations, error) {
	var out []models.QueryWithObservations
	err := s.store.ReadTx(ctx, func(tx *store.Tx) error {
		qs, err := tx.QueriesByID(ctx)
		if err != nil {
			return fmt.Errorf("list queries: %w", err)
		}

		ids := make([]int64, len(qs))
		for i, q := range qs {
			ids[i] = q.ID
		}
		byQuery, err := tx.ObservationsForQueries(ctx, ids)
		if err != nil {
			return fmt.Errorf("list observations: %w", err)
		}

		out = make([]models.QueryWithObservations, len(qs))
		for i, q := range qs {
			obs := byQuery[q.ID]
			if obs == nil {
				obs = []models.Observation{}
			}
			out[i] = models.QueryWithObservations{Query: q, Observations: obs}
		}
		return nil
	})
	return out, err
}

type aggregateReader interface {
	GetQuery(ctx context.Context, id int64) (*models.Query, error)
	ListObservations(ctx context.Context, queryID int64) ([]models.Observation, error)
}

func load(ctx context.Context, r aggregateReader, id int64) (*models.QueryWithObservations, error) {
	q, err := r.GetQuery(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get query %d: %w", id, err)
	}
	if q == nil {
		return nil, apperr.NotFound("Not found")
	}
	obs, err := r.ListObservations(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list observations for query %d: %w", id, err)
	}
	return &models.QueryWithObservations{Query: *q, Observations: obs}, nil
}

// effectiveDate returns the parsed replacement if one was given and parses,
// otherwise current.
func effectiveDate(replacement *string, current models.Date) models.Date {
	if replacement == nil {
		return current
	}
	if d, ok := models.ParseDate(*replacement); ok {
		return d
	}
	return current
}

// record updates mutation metrics and passes err through.
func (s *Service) record(op string, stored int, err error) error {
	result := "ok"
	if err != nil {
		result = string(apperr.KindOf(err))
	}
	metrics.QueryMutations.WithLabelValues(op, result).Inc()
	if stored > 0 {
		metrics.ObservationsStored.Add(float64(stored))
	}
	return err
}
