package ingest

import (
	"context"
	_ "embed"
	"fmt"
	"log"

	"github.com/derek/church-finder/internal/providers"
	"gopkg.in/yaml.v3"
)

//go:embed config/locations.yaml
var locationsYAML []byte

// SeedLocation is one city-level search in the embedded seed registry.
type SeedLocation struct {
	City  string `yaml:"city" json:"city"`
	State string `yaml:"state" json:"state"`
}

type seedRegistry struct {
	Locations []SeedLocation `yaml:"locations"`
}

// SeedLocations parses the embedded registry.
func SeedLocations() ([]SeedLocation, error) {
	var reg seedRegistry
	if err := yaml.Unmarshal(locationsYAML, &reg); err != nil {
		return nil, fmt.Errorf("parsing seed locations: %w", err)
	}
	return reg.Locations, nil
}

// ImportSeeds runs one import per embedded seed location. A failing
// location is recorded and skipped; the rest still run.
func (s *Service) ImportSeeds(ctx context.Context, opts ImportOptions) (*ImportResult, error) {
	locations, err := SeedLocations()
	if err != nil {
		return nil, err
	}

	total := &ImportResult{}
	for _, loc := range locations {
		log.Printf("[Ingest] Seed import: %s, %s", loc.City, loc.State)
		res, err := s.ImportFromProvider(ctx, providers.SearchParams{City: loc.City, State: loc.State}, opts)
		if err != nil {
			total.Errors = append(total.Errors, ImportError{
				Name:  fmt.Sprintf("%s, %s", loc.City, loc.State),
				Error: err.Error(),
			})
			continue
		}
		total.Fetched += res.Fetched
		total.Imported += res.Imported
		total.Updated += res.Updated
		total.Skipped += res.Skipped
		total.Duplicates += res.Duplicates
		total.Enqueued += res.Enqueued
		total.Churches = append(total.Churches, res.Churches...)
		total.Errors = append(total.Errors, res.Errors...)
	}
	return total, nil
}
