package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/lox/weatherqueries/internal/apperr"
	"github.com/lox/weatherqueries/internal/openweather"
)

var validate = validator.New()

// coordsQuery holds the optional explicit coordinates of a passthrough
// request.
type coordsQuery struct {
	Lat *float64 `validate:"omitempty,latitude"`
	Lon *float64 `validate:"omitempty,longitude"`
}

func parseCoordsQuery(r *http.Request) (coordsQuery, error) {
	var c coordsQuery
	for _, p := range []struct {
		name string
		dst  **float64
	}{
		{"lat", &c.Lat},
		{"lon", &c.Lon},
	} {
		raw := strings.TrimSpace(r.URL.Query().Get(p.name))
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return c, apperr.Input(p.name + " must be a number")
		}
		*p.dst = &v
	}
	if err := validate.Struct(c); err != nil {
		return c, apperr.Input("lat must be within [-90, 90] and lon within [-180, 180]")
	}
	return c, nil
}

// resolvePassthrough finds the coordinates for a current/forecast request and
// checks the provider is configured.
func (s *Server) resolvePassthrough(ctx context.Context, r *http.Request) (lat, lon float64, err error) {
	c, err := parseCoordsQuery(r)
	if err != nil {
		return 0, 0, err
	}
	place, err := s.queries.Resolver().Lookup(ctx, r.URL.Query().Get("q"), c.Lat, c.Lon)
	if err != nil {
		return 0, 0, err
	}
	if s.weather == nil || !s.weather.Configured() {
		return 0, 0, &apperr.Error{Kind: apperr.KindInternal, Message: "Missing OPENWEATHER_API_KEY"}
	}
	return place.Latitude, place.Longitude, nil
}

func passthroughError(msg string, err error) error {
	if errors.Is(err, openweather.ErrMissingAPIKey) {
		return &apperr.Error{Kind: apperr.KindInternal, Message: "Missing OPENWEATHER_API_KEY", Err: err}
	}
	return apperr.Upstream(msg, err)
}

func (s *Server) handleWeatherCurrent(w http.ResponseWriter, r *http.Request) {
	lat, lon, err := s.resolvePassthrough(r.Context(), r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	data, err := s.weather.Current(r.Context(), lat, lon)
	if err != nil {
		s.writeError(w, r, passthroughError("current weather request failed", err))
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (s *Server) handleWeatherForecast(w http.ResponseWriter, r *http.Request) {
	lat, lon, err := s.resolvePassthrough(r.Context(), r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	data, err := s.weather.Forecast(r.Context(), lat, lon)
	if err != nil {
		s.writeError(w, r, passthroughError("forecast request failed", err))
		return
	}
	writeJSON(w, http.StatusOK, data)
}
