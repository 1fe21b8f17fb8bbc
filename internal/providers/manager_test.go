package providers

import (
	"context"
	"errors"
	"testing"

	"github.com/derek/church-finder/internal/config"
)

type stubProvider struct {
	name string
	err  error
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Search(ctx context.Context, params SearchParams, cursor string) (*SearchResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &SearchResult{Churches: []RawChurch{{Name: "From " + s.name, Latitude: 1, Longitude: 1, Source: s.name, SourceID: "x"}}}, nil
}

func (s *stubProvider) GetByID(ctx context.Context, externalID string) (*RawChurch, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &RawChurch{Name: "From " + s.name, SourceID: externalID, Source: s.name}, nil
}

func TestManager_DefaultAndNamedDispatch(t *testing.T) {
	m := NewManager("a", &stubProvider{name: "a"}, &stubProvider{name: "b"})

	result, err := m.Search(context.Background(), "", SearchParams{City: "X", State: "Y"}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Churches[0].Source != "a" {
		t.Fatalf("default dispatch went to %q", result.Churches[0].Source)
	}

	result, err = m.Search(context.Background(), "b", SearchParams{City: "X", State: "Y"}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Churches[0].Source != "b" {
		t.Fatalf("named dispatch went to %q", result.Churches[0].Source)
	}
}

func TestManager_UnknownProvider(t *testing.T) {
	m := NewManager("a", &stubProvider{name: "a"})

	_, err := m.Search(context.Background(), "nope", SearchParams{}, "")
	var notConfigured *ErrProviderNotConfigured
	if !errors.As(err, &notConfigured) {
		t.Fatalf("expected ErrProviderNotConfigured, got %v", err)
	}
	if notConfigured.Name != "nope" {
		t.Fatalf("error names %q", notConfigured.Name)
	}
}

func TestManager_SearchAllIsolatesFailures(t *testing.T) {
	m := NewManager("a",
		&stubProvider{name: "a", err: errors.New("down")},
		&stubProvider{name: "b"},
	)

	results := m.SearchAll(context.Background(), SearchParams{City: "X", State: "Y"})
	if len(results) != 2 {
		t.Fatalf("expected a slot per provider, got %d", len(results))
	}

	byName := map[string]ProviderResult{}
	for _, r := range results {
		byName[r.Provider] = r
	}
	if byName["a"].Err == nil {
		t.Fatal("expected error recorded for failing provider")
	}
	if byName["b"].Err != nil || len(byName["b"].Result.Churches) != 1 {
		t.Fatal("expected healthy provider to still return results")
	}
}

func TestManager_Available(t *testing.T) {
	m := NewManager("b", &stubProvider{name: "b"}, &stubProvider{name: "a"})
	names := m.Available()
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Fatalf("got %v", names)
	}
}

func TestFromConfig(t *testing.T) {
	m := FromConfig(&config.Config{OverpassBaseURL: "http://example.org"})
	if len(m.Available()) != 1 || m.Available()[0] != SourceOpenStreetMap {
		t.Fatalf("expected overpass only, got %v", m.Available())
	}
	if m.Default() != SourceOpenStreetMap {
		t.Fatalf("default = %q", m.Default())
	}

	m = FromConfig(&config.Config{GooglePlacesAPIKey: "k", DefaultProvider: SourceGooglePlaces})
	names := m.Available()
	if len(names) != 2 {
		t.Fatalf("expected both providers, got %v", names)
	}
	if m.Default() != SourceGooglePlaces {
		t.Fatalf("default = %q", m.Default())
	}
}

func TestSearchParamsValidate(t *testing.T) {
	if err := (SearchParams{City: "Nashville", State: "TN"}).Validate(); err != nil {
		t.Fatalf("city+state should validate: %v", err)
	}
	if err := (SearchParams{Latitude: 36.1, Longitude: -86.7}).Validate(); err != nil {
		t.Fatalf("coords should validate: %v", err)
	}
	if err := (SearchParams{City: "Nashville"}).Validate(); !errors.Is(err, ErrMissingLocation) {
		t.Fatalf("expected ErrMissingLocation, got %v", err)
	}
}

func TestStateForms(t *testing.T) {
	tests := []struct {
		in       string
		wantName string
		wantAbbr string
	}{
		{"TN", "Tennessee", "TN"},
		{"tn", "Tennessee", "TN"},
		{"Tennessee", "Tennessee", "TN"},
		{"tennessee", "Tennessee", "TN"},
		{"District of Columbia", "District of Columbia", "DC"},
		{"Ontario", "Ontario", "Ontario"},
		{"", "", ""},
	}

	for _, tt := range tests {
		name, abbr := stateForms(tt.in)
		if name != tt.wantName || abbr != tt.wantAbbr {
			t.Errorf("stateForms(%q) = (%q, %q), want (%q, %q)", tt.in, name, abbr, tt.wantName, tt.wantAbbr)
		}
	}
}
