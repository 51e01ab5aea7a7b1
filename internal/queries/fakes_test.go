package queries

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lox/weatherqueries/internal/models"
	"github.com/lox/weatherqueries/internal/store"
)

type fakeGeocoder struct {
	mu     sync.Mutex
	places map[string]models.Place
	err    error
	calls  int
}

func newFakeGeocoder() *fakeGeocoder {
	return &fakeGeocoder{places: map[string]models.Place{
		"Berlin":     {Name: "Berlin", Country: "Germany", Latitude: 52.52437, Longitude: 13.41053},
		"Berlin, DE": {Name: "Berlin", Country: "Germany", Latitude: 52.52437, Longitude: 13.41053},
		"Paris":      {Name: "Paris", Country: "France", Latitude: 48.85341, Longitude: 2.3488},
		"Nameless":   {Latitude: 10.5, Longitude: -20.25},
	}}
}

func (f *fakeGeocoder) Geocode(ctx context.Context, name string) (*models.Place, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	place, ok := f.places[name]
	if !ok {
		return nil, nil
	}
	return &place, nil
}

// fakeHistory returns one record per day in the requested range, with t_min
// set to the day's offset from start.
type fakeHistory struct {
	mu    sync.Mutex
	err   error
	calls int
	// override, if set, replaces the generated records.
	override []models.DailyStats
	// entered, if set, is signalled on each call. block, if set, holds the
	// call until it is closed or ctx ends.
	entered chan struct{}
	block   chan struct{}
}

var errProviderDown = errors.New("archive unavailable")

func (f *fakeHistory) DailyHistory(ctx context.Context, lat, lon float64, start, end models.Date) ([]models.DailyStats, error) {
	f.mu.Lock()
	f.calls++
	err, override, entered, block := f.err, f.override, f.entered, f.block
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if override != nil {
		return override, nil
	}
	var days []models.DailyStats
	for i := 0; !start.AddDays(i).After(end.Time); i++ {
		days = append(days, models.DailyStats{
			Date:  start.AddDays(i).String(),
			TMin:  models.TempOf(float64(i)),
			TMax:  models.TempOf(float64(i) + 5),
			TMean: models.NoTemp,
		})
	}
	return days, nil
}

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := store.OpenDB(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s := store.New(db, nil)
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

// steppingClock returns a clock that advances one second per call.
func steppingClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}
