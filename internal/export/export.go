// Package export serializes stored queries and their observations for bulk
// download.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/lox/weatherqueries/internal/models"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ParseFormat accepts json or csv in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatJSON, FormatCSV:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv; charset=utf-8"
	}
	return "application/json"
}

// Filename is the suggested download name.
func (f Format) Filename() string {
	return "export." + string(f)
}

// Write serializes items in the given format.
func Write(w io.Writer, f Format, items []models.QueryWithObservations) error {
	switch f {
	case FormatJSON:
		return WriteJSON(w, items)
	case FormatCSV:
		return WriteCSV(w, items)
	default:
		return fmt.Errorf("unsupported export format %q", f)
	}
}

// WriteJSON writes items as an indented JSON array. Each element has the same
// shape as a single-query read.
func WriteJSON(w io.Writer, items []models.QueryWithObservations) error {
	if items == nil {
		items = []models.QueryWithObservations{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(items)
}

var csvHeader = []string{
	"query_id", "location_name", "country", "lat", "lon",
	"start_date", "end_date", "query_date", "t_min", "t_max", "t_mean",
}

// WriteCSV writes one row per observation. Queries without observations
// produce no rows. Absent values are empty cells.
func WriteCSV(w io.Writer, items []models.QueryWithObservations) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	for _, q := range items {
		country := ""
		if q.Location.Country != nil {
			country = *q.Location.Country
		}
		for _, o := range q.Observations {
			record := []string{
				strconv.FormatInt(q.ID, 10),
				q.Location.Name,
				country,
				formatFloat(q.Location.Latitude),
				formatFloat(q.Location.Longitude),
				q.StartDate.String(),
				q.EndDate.String(),
				o.Date.String(),
				o.TMin.String(),
				o.TMax.String(),
				o.TMean.String(),
			}
			if err := cw.Write(record); err != nil {
				return err
			}
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
