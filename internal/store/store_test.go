package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/lox/weatherqueries/internal/models"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := OpenDB(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store := New(db, nil)
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func strPtr(s string) *string { return &s }

func insertTestQuery(t *testing.T, s *Store, loc *models.Location, start, end models.Date, createdAt time.Time) *models.Query {
	t.Helper()
	ctx := context.Background()
	q := &models.Query{StartDate: start, EndDate: end, CreatedAt: createdAt}
	err := s.InTx(ctx, func(tx *Tx) error {
		if loc.ID == 0 {
			if err := tx.InsertLocation(ctx, loc); err != nil {
				return err
			}
		}
		q.LocationID = loc.ID
		return tx.InsertQuery(ctx, q)
	})
	if err != nil {
		t.Fatalf("insert query: %v", err)
	}
	return q
}

func TestMigrate_Idempotent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	version, err := s.MigrationVersion(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if version != len(migrations) {
		t.Errorf("version = %d, want %d", version, len(migrations))
	}
}

func TestFindLocationByCoords(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	loc := &models.Location{Name: "Berlin", Country: strPtr("Germany"), Latitude: 52.52437, Longitude: 13.41053}
	if err := s.InTx(ctx, func(tx *Tx) error { return tx.InsertLocation(ctx, loc) }); err != nil {
		t.Fatalf("InsertLocation: %v", err)
	}
	if loc.ID == 0 {
		t.Fatal("expected ID to be set")
	}

	found, err := s.FindLocationByCoords(ctx, 52.52437, 13.41053)
	if err != nil {
		t.Fatal(err)
	}
	if found == nil || found.ID != loc.ID {
		t.Fatalf("FindLocationByCoords = %+v, want id %d", found, loc.ID)
	}
	if found.Country == nil || *found.Country != "Germany" {
		t.Errorf("Country = %v, want Germany", found.Country)
	}

	// Exact match only: a coordinate differing in the last digit is a
	// different location.
	near, err := s.FindLocationByCoords(ctx, 52.52438, 13.41053)
	if err != nil {
		t.Fatal(err)
	}
	if near != nil {
		t.Errorf("expected no match for nearby coordinates, got %+v", near)
	}
}

func TestInsertLocation_UniqueCoords(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	first := &models.Location{Name: "Paris", Latitude: 48.85341, Longitude: 2.3488}
	if err := s.InTx(ctx, func(tx *Tx) error { return tx.InsertLocation(ctx, first) }); err != nil {
		t.Fatal(err)
	}
	dup := &models.Location{Name: "Paris again", Latitude: 48.85341, Longitude: 2.3488}
	if err := s.InTx(ctx, func(tx *Tx) error { return tx.InsertLocation(ctx, dup) }); err == nil {
		t.Fatal("expected unique constraint violation")
	}

	n, err := s.CountLocations(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("CountLocations = %d, want 1", n)
	}
}

func TestInTx_RollbackOnError(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.InTx(ctx, func(tx *Tx) error {
		if err := tx.InsertLocation(ctx, &models.Location{Name: "Oslo", Latitude: 59.91, Longitude: 10.75}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("InTx error = %v, want boom", err)
	}

	n, err := s.CountLocations(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("CountLocations after rollback = %d, want 0", n)
	}
}

func TestQueryRoundTrip(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	created := time.Date(2024, 5, 1, 12, 30, 0, 123, time.UTC)
	loc := &models.Location{Name: "Berlin", Latitude: 52.52, Longitude: 13.41}
	q := insertTestQuery(t, s, loc, models.NewDate(2024, 1, 1), models.NewDate(2024, 1, 3), created)

	got, err := s.GetQuery(ctx, q.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("GetQuery returned nil")
	}
	if got.StartDate.String() != "2024-01-01" || got.EndDate.String() != "2024-01-03" {
		t.Errorf("dates = %s..%s", got.StartDate, got.EndDate)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, created)
	}
	if got.Location.Name != "Berlin" || got.Location.Country != nil {
		t.Errorf("Location = %+v", got.Location)
	}

	missing, err := s.GetQuery(ctx, q.ID+100)
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Errorf("expected nil for missing query, got %+v", missing)
	}
}

func TestRecentQueries_NewestFirst(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	loc := &models.Location{Name: "Rome", Latitude: 41.89, Longitude: 12.51}
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var ids []int64
	for i := 0; i < 3; i++ {
		q := insertTestQuery(t, s, loc, models.NewDate(2024, 1, 1), models.NewDate(2024, 1, 2), base.Add(time.Duration(i)*time.Second))
		ids = append(ids, q.ID)
	}

	recent, err := s.RecentQueries(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 3 {
		t.Fatalf("len = %d, want 3", len(recent))
	}
	if recent[0].ID != ids[2] || recent[2].ID != ids[0] {
		t.Errorf("order = %d,%d,%d", recent[0].ID, recent[1].ID, recent[2].ID)
	}

	limited, err := s.RecentQueries(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 2 {
		t.Errorf("len(limited) = %d, want 2", len(limited))
	}

	byID, err := s.QueriesByID(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if byID[0].ID != ids[0] {
		t.Errorf("QueriesByID first = %d, want %d", byID[0].ID, ids[0])
	}
}

func TestObservations_InsertListDelete(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	loc := &models.Location{Name: "Madrid", Latitude: 40.41, Longitude: -3.7}
	q := insertTestQuery(t, s, loc, models.NewDate(2024, 1, 1), models.NewDate(2024, 1, 2), time.Now())

	err := s.InTx(ctx, func(tx *Tx) error {
		for _, obs := range []models.Observation{
			{QueryID: q.ID, Date: models.NewDate(2024, 1, 2), TMin: models.TempOf(1), TMax: models.NoTemp, TMean: models.TempOf(0)},
			{QueryID: q.ID, Date: models.NewDate(2024, 1, 1), TMin: models.TempOf(-2.5), TMax: models.TempOf(4), TMean: models.TempOf(0.75)},
		} {
			if err := tx.InsertObservation(ctx, &obs); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	obs, err := s.ListObservations(ctx, q.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(obs) != 2 {
		t.Fatalf("len = %d, want 2", len(obs))
	}
	if obs[0].Date.String() != "2024-01-01" {
		t.Errorf("first date = %s, want 2024-01-01", obs[0].Date)
	}
	if obs[1].TMax.Valid() {
		t.Error("absent t_max should round-trip as absent")
	}
	if v, ok := obs[1].TMean.Get(); !ok || v != 0 {
		t.Errorf("t_mean = (%v, %v), want measured zero", v, ok)
	}

	var deleted int64
	err = s.InTx(ctx, func(tx *Tx) error {
		var err error
		deleted, err = tx.DeleteObservations(ctx, q.ID)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}
	n, err := s.CountObservations(ctx, q.ID)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("CountObservations = %d, want 0", n)
	}
}

func TestDeleteQuery_KeepsLocation(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	loc := &models.Location{Name: "Lisbon", Latitude: 38.72, Longitude: -9.13}
	q := insertTestQuery(t, s, loc, models.NewDate(2024, 1, 1), models.NewDate(2024, 1, 1), time.Now())

	var existed bool
	if err := s.InTx(ctx, func(tx *Tx) error {
		var err error
		existed, err = tx.DeleteQuery(ctx, q.ID)
		return err
	}); err != nil {
		t.Fatal(err)
	}
	if !existed {
		t.Error("DeleteQuery reported missing row")
	}

	stillThere, err := s.GetLocation(ctx, loc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stillThere == nil {
		t.Error("location should survive query deletion")
	}
}

func setupFileStore(t *testing.T) *Store {
	t.Helper()
	db, err := OpenDB(filepath.Join(t.TempDir(), "weather.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store := New(db, nil)
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func TestFileStore_ReadsProceedDuringWrite(t *testing.T) {
	s := setupFileStore(t)
	ctx := context.Background()

	err := s.InTx(ctx, func(tx *Tx) error {
		if err := tx.InsertLocation(ctx, &models.Location{Name: "Oslo", Latitude: 59.91, Longitude: 10.75}); err != nil {
			return err
		}

		readCtx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		n, err := s.CountLocations(readCtx)
		if err != nil {
			return fmt.Errorf("read during write: %w", err)
		}
		if n != 0 {
			t.Errorf("CountLocations during write = %d, want 0 (uncommitted)", n)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	n, err := s.CountLocations(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("CountLocations after commit = %d, want 1", n)
	}
}

func TestFileStore_ForeignKeysEnforced(t *testing.T) {
	s := setupFileStore(t)
	ctx := context.Background()

	// Hold one connection so the insert runs on another.
	err := s.ReadTx(ctx, func(*Tx) error {
		return s.InTx(ctx, func(tx *Tx) error {
			return tx.InsertQuery(ctx, &models.Query{
				LocationID: 999,
				StartDate:  models.NewDate(2024, time.January, 1),
				EndDate:    models.NewDate(2024, time.January, 2),
				CreatedAt:  time.Now().UTC(),
			})
		})
	})
	if err == nil {
		t.Fatal("expected foreign key violation for unknown location")
	}
}
