package api

import (
	"context"
	"encoding/json"
	"html/template"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/lox/weatherqueries/internal/openweather"
	"github.com/lox/weatherqueries/internal/queries"
	"github.com/lox/weatherqueries/internal/store"
)

// WeatherProvider serves the current-weather and forecast passthrough
// endpoints.
type WeatherProvider interface {
	Configured() bool
	Current(ctx context.Context, lat, lon float64) (*openweather.Current, error)
	Forecast(ctx context.Context, lat, lon float64) (json.RawMessage, error)
}

type Server struct {
	store   *store.Store
	queries *queries.Service
	weather WeatherProvider
	port    string
	log     *zap.Logger
	tmpl    *template.Template
}

func NewServer(st *store.Store, svc *queries.Service, weather WeatherProvider, port string, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		store:   st,
		queries: svc,
		weather: weather,
		port:    port,
		log:     log,
		tmpl:    newTemplates(),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /{file}", s.handleExport)

	mux.HandleFunc("GET /api/weather/current", s.handleWeatherCurrent)
	mux.HandleFunc("GET /api/weather/forecast", s.handleWeatherForecast)

	mux.HandleFunc("POST /api/queries", s.handleCreateQuery)
	mux.HandleFunc("GET /api/queries", s.handleListQueries)
	mux.HandleFunc("GET /api/queries/{id}", s.handleGetQuery)
	mux.HandleFunc("PUT /api/queries/{id}", s.handleUpdateQuery)
	mux.HandleFunc("DELETE /api/queries/{id}", s.handleDeleteQuery)

	return s.requestLogger(mux)
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.log.Warn("shutdown", zap.Error(err))
		}
	}()

	s.log.Info("listening", zap.String("addr", server.Addr))
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
