package openweather

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestCurrent_Reshapes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/weather" {
			t.Errorf("path = %s, want /weather", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("appid") != "key" || q.Get("units") != "metric" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"coord":{"lon":13.41,"lat":52.52},"weather":[{"main":"Clouds"}],
			"main":{"temp":3.2},"name":"Berlin","dt":1704067200,"visibility":10000}`))
	}))
	defer srv.Close()

	client := NewClient("key", time.Second).WithBaseURL(srv.URL)
	cur, err := client.Current(context.Background(), 52.52, 13.41)
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if cur.Provider != "openweather" {
		t.Errorf("Provider = %q", cur.Provider)
	}
	if cur.Name == nil || *cur.Name != "Berlin" {
		t.Errorf("Name = %v", cur.Name)
	}
	if string(cur.Wind) != "{}" {
		t.Errorf("missing wind should default to {}, got %s", cur.Wind)
	}
	if !strings.Contains(string(cur.Main), `"temp":3.2`) {
		t.Errorf("Main = %s", cur.Main)
	}
}

func TestFetch_RetriesRateLimit(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"list":[]}`))
	}))
	defer srv.Close()

	client := NewClient("key", time.Second).WithBaseURL(srv.URL)
	fc, err := client.Forecast(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if string(fc) != `{"list":[]}` {
		t.Errorf("Forecast = %s", fc)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
}

func TestFetch_NoRetryOnServerError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewClient("key", time.Second).WithBaseURL(srv.URL)
	if _, err := client.Forecast(context.Background(), 1, 2); err == nil {
		t.Fatal("expected error")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestFetch_MissingKey(t *testing.T) {
	client := NewClient("", time.Second)
	if _, err := client.Current(context.Background(), 0, 0); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("err = %v, want ErrMissingAPIKey", err)
	}
}
