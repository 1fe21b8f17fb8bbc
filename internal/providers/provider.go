package providers

import (
	"context"
	"errors"
)

// RawChurch is an unnormalized place record as returned by a provider,
// already mapped into the shared schema. Providers drop records missing a
// name or coordinates before returning them.
type RawChurch struct {
	Name         string  `json:"name"`
	Address      string  `json:"address,omitempty"`
	City         string  `json:"city,omitempty"`
	State        string  `json:"state,omitempty"`
	StateAbbr    string  `json:"state_abbr,omitempty"`
	Zip          string  `json:"zip,omitempty"`
	Latitude     float64 `json:"lat"`
	Longitude    float64 `json:"lng"`
	Phone        string  `json:"phone,omitempty"`
	Email        string  `json:"email,omitempty"`
	Website      string  `json:"website,omitempty"`
	Denomination string  `json:"denomination,omitempty"`
	SourceID     string  `json:"source_id"`
	Source       string  `json:"source"`
}

// SearchParams locates a search either by city+state or by a radius around
// a coordinate.
type SearchParams struct {
	City        string  `json:"city,omitempty"`
	State       string  `json:"state,omitempty"`
	Latitude    float64 `json:"lat,omitempty"`
	Longitude   float64 `json:"lng,omitempty"`
	RadiusMiles float64 `json:"radius_miles,omitempty"`
	Limit       int     `json:"limit,omitempty"`
}

var ErrMissingLocation = errors.New("search requires either city+state or lat+lng")

func (p SearchParams) Validate() error {
	if p.City != "" && p.State != "" {
		return nil
	}
	if p.Latitude != 0 || p.Longitude != 0 {
		return nil
	}
	return ErrMissingLocation
}

// SearchResult is one page of provider output. A non-empty NextCursor means
// more pages are available; draining is the caller's responsibility.
type SearchResult struct {
	Churches   []RawChurch `json:"churches"`
	NextCursor string      `json:"next_cursor,omitempty"`
}

// Provider is an external source of church place records.
type Provider interface {
	Name() string
	Search(ctx context.Context, params SearchParams, cursor string) (*SearchResult, error)
	GetByID(ctx context.Context, externalID string) (*RawChurch, error)
}
