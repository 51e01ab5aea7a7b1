package models

import "time"

// Location is a stored geographic point. Locations are shared between
// queries and are never updated or deleted once created.
type Location struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Country   *string `json:"country"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Query is a location plus an inclusive date range.
type Query struct {
	ID         int64     `json:"id"`
	LocationID int64     `json:"-"`
	Location   Location  `json:"location"`
	StartDate  Date      `json:"start_date"`
	EndDate    Date      `json:"end_date"`
	CreatedAt  time.Time `json:"created_at"`
}

// QueryWithObservations is the full aggregate returned by single-query reads
// and bulk exports.
type QueryWithObservations struct {
	Query
	Observations []Observation `json:"observations"`
}

// Observation is one day of temperature statistics owned by a Query.
type Observation struct {
	ID      int64 `json:"id"`
	QueryID int64 `json:"-"`
	Date    Date  `json:"date"`
	TMin    Temp  `json:"t_min"`
	TMax    Temp  `json:"t_max"`
	TMean   Temp  `json:"t_mean"`
}

// DailyStats is one day as reported by the historical data provider.
type DailyStats struct {
	Date  string
	TMin  Temp
	TMax  Temp
	TMean Temp
}

// Place is a resolved location that has not necessarily been stored.
type Place struct {
	Name      string
	Country   string
	Latitude  float64
	Longitude float64
}
