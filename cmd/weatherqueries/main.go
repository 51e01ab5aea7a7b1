package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"
	"go.uber.org/zap"

	"github.com/lox/weatherqueries/internal/api"
	"github.com/lox/weatherqueries/internal/export"
	"github.com/lox/weatherqueries/internal/httputil"
	"github.com/lox/weatherqueries/internal/openmeteo"
	"github.com/lox/weatherqueries/internal/openweather"
	"github.com/lox/weatherqueries/internal/queries"
	"github.com/lox/weatherqueries/internal/store"
)

type Globals struct {
	DB           string        `help:"Path to SQLite database." default:"data/weather.db" env:"WEATHER_DB"`
	LogLevel     string        `help:"Log level (debug, info, warn, error)." default:"info" env:"LOG_LEVEL"`
	LogFormat    string        `help:"Log format." enum:"json,console" default:"json" env:"LOG_FORMAT"`
	MaxRangeDays int           `help:"Maximum query span in days." default:"1095" env:"MAX_RANGE_DAYS"`
	HTTPTimeout  time.Duration `help:"Timeout for calls to weather providers." default:"20s" env:"HTTP_TIMEOUT"`
}

type CLI struct {
	Globals

	Serve  ServeCmd  `cmd:"" default:"1" help:"Run the HTTP server."`
	DBInit DBInitCmd `cmd:"" name:"db-init" help:"Create the database tables."`
	Export ExportCmd `cmd:"" help:"Write every query with its observations to a file."`
}

// app holds what every command needs once the database is open.
type app struct {
	log   *zap.Logger
	store *store.Store
}

func (g *Globals) open() (*app, error) {
	log, err := newLogger(g.LogLevel, g.LogFormat)
	if err != nil {
		return nil, err
	}

	db, err := store.OpenDB(g.DB)
	if err != nil {
		return nil, err
	}
	st := store.New(db, log)
	if err := st.Migrate(context.Background()); err != nil {
		st.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &app{log: log, store: st}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.log.Warn("close database", zap.Error(err))
	}
	a.log.Sync()
}

func (g *Globals) service(a *app) *queries.Service {
	meteo := openmeteo.NewClient(openmeteo.WithHTTPClient(httputil.NewClient(g.HTTPTimeout)))
	return queries.NewService(a.store, meteo, meteo, a.log, queries.WithMaxRangeDays(g.MaxRangeDays))
}

type ServeCmd struct {
	Port              string `help:"HTTP server port." default:"8080" env:"PORT"`
	OpenWeatherAPIKey string `name:"openweather-api-key" help:"API key for current weather and forecasts." env:"OPENWEATHER_API_KEY"`
}

func (c *ServeCmd) Run(g *Globals) error {
	a, err := g.open()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	weather := openweather.NewClient(c.OpenWeatherAPIKey, g.HTTPTimeout)
	if !weather.Configured() {
		a.log.Warn("OPENWEATHER_API_KEY not set; current weather and forecast endpoints will fail")
	}

	server := api.NewServer(a.store, g.service(a), weather, c.Port, a.log)
	return server.Run(ctx)
}

type DBInitCmd struct{}

func (c *DBInitCmd) Run(g *Globals) error {
	a, err := g.open()
	if err != nil {
		return err
	}
	defer a.close()

	fmt.Println("Database initialized.")
	return nil
}

type ExportCmd struct {
	Format string `help:"Output format." enum:"json,csv" default:"json"`
	Out    string `help:"Output file; stdout if empty." type:"path"`
}

func (c *ExportCmd) Run(g *Globals) error {
	a, err := g.open()
	if err != nil {
		return err
	}
	defer a.close()

	format, err := export.ParseFormat(c.Format)
	if err != nil {
		return err
	}
	items, err := g.service(a).ExportAll(context.Background())
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if c.Out != "" {
		f, err := os.Create(c.Out)
		if err != nil {
			return fmt.Errorf("create %s: %w", c.Out, err)
		}
		defer f.Close()
		w = f
	}
	if err := export.Write(w, format, items); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	a.log.Info("export written", zap.String("format", c.Format), zap.Int("queries", len(items)))
	return nil
}

func newLogger(level, format string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	cfg := zap.NewProductionConfig()
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = lvl
	return cfg.Build()
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("weatherqueries"),
		kong.Description("Record weather queries and their historical temperatures."),
		kong.Configuration(kongdotenv.ENVFileReader, ".env"),
		kong.UsageOnError(),
	)
	ctx.FatalIfErrorf(ctx.Run(&cli.Globals))
}
