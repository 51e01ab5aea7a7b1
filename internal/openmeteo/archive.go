package openmeteo

import (
	"context"
	"net/url"

	"github.com/lox/weatherqueries/internal/models"
)

const dailyFields = "temperature_2m_min,temperature_2m_max,temperature_2m_mean"

// archiveResponse mirrors the column-oriented "daily" block: one array per
// field, aligned by index with Time.
type archiveResponse struct {
	Daily struct {
		Time  []string      `json:"time"`
		TMin  []models.Temp `json:"temperature_2m_min"`
		TMax  []models.Temp `json:"temperature_2m_max"`
		TMean []models.Temp `json:"temperature_2m_mean"`
	} `json:"daily"`
}

// DailyHistory returns one record per day in [start, end]. Missing or
// non-numeric values come back as absent temperatures.
func (c *Client) DailyHistory(ctx context.Context, lat, lon float64, start, end models.Date) ([]models.DailyStats, error) {
	params := url.Values{}
	params.Set("latitude", formatCoord(lat))
	params.Set("longitude", formatCoord(lon))
	params.Set("start_date", start.String())
	params.Set("end_date", end.String())
	params.Set("daily", dailyFields)
	params.Set("timezone", "auto")

	var data archiveResponse
	if err := c.getJSON(ctx, c.archBreaker, "archive", c.archiveURL+"?"+params.Encode(), &data); err != nil {
		return nil, err
	}

	days := make([]models.DailyStats, 0, len(data.Daily.Time))
	for i, date := range data.Daily.Time {
		days = append(days, models.DailyStats{
			Date:  date,
			TMin:  at(data.Daily.TMin, i),
			TMax:  at(data.Daily.TMax, i),
			TMean: at(data.Daily.TMean, i),
		})
	}
	return days, nil
}

func at(temps []models.Temp, i int) models.Temp {
	if i < len(temps) {
		return temps[i]
	}
	return models.NoTemp
}
