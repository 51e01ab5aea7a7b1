package openmeteo

import (
	"context"
	"net/url"

	"github.com/lox/weatherqueries/internal/models"
)

type geocodingResponse struct {
	Results []struct {
		Name      string   `json:"name"`
		Country   string   `json:"country"`
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	} `json:"results"`
}

// Geocode returns the top match for name, or nil when there is no match.
func (c *Client) Geocode(ctx context.Context, name string) (*models.Place, error) {
	params := url.Values{}
	params.Set("name", name)
	params.Set("count", "1")
	params.Set("language", "en")
	params.Set("format", "json")

	var data geocodingResponse
	if err := c.getJSON(ctx, c.geoBreaker, "geocoding", c.geocodingURL+"?"+params.Encode(), &data); err != nil {
		return nil, err
	}

	if len(data.Results) == 0 {
		return nil, nil
	}
	top := data.Results[0]
	if top.Latitude == nil || top.Longitude == nil {
		return nil, nil
	}
	return &models.Place{
		Name:      top.Name,
		Country:   top.Country,
		Latitude:  *top.Latitude,
		Longitude: *top.Longitude,
	}, nil
}
