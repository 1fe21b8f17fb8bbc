package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const SourceOpenStreetMap = "openstreetmap"

// OverpassProvider queries OpenStreetMap through the Overpass API for
// tagged places of worship. Overpass returns a full result set in one shot,
// so Search never emits a cursor.
type OverpassProvider struct {
	BaseURL string
	Client  *http.Client
}

func NewOverpassProvider(baseURL string) *OverpassProvider {
	if baseURL == "" {
		baseURL = "https://overpass-api.de/api/interpreter"
	}
	return &OverpassProvider{
		BaseURL: baseURL,
		Client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (p *OverpassProvider) Name() string { return SourceOpenStreetMap }

type overpassResponse struct {
	Elements []overpassElement `json:"elements"`
}

type overpassElement struct {
	Type   string            `json:"type"`
	ID     int64             `json:"id"`
	Lat    float64           `json:"lat"`
	Lon    float64           `json:"lon"`
	Center *overpassCenter   `json:"center"`
	Tags   map[string]string `json:"tags"`
}

type overpassCenter struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (p *OverpassProvider) Search(ctx context.Context, params SearchParams, cursor string) (*SearchResult, error) {
	if cursor != "" {
		return &SearchResult{}, nil
	}

	limit := params.Limit
	if limit <= 0 || limit > 200 {
		limit = 200
	}
	query := buildOverpassQuery(params, limit)

	form := url.Values{"data": {query}}
	req, err := http.NewRequestWithContext(ctx, "POST", p.BaseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	log.Printf("[Overpass] Querying for churches (city=%q)", params.City)

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API returned %d: %s", resp.StatusCode, string(body))
	}

	var apiResp overpassResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	result := &SearchResult{}
	for _, el := range apiResp.Elements {
		if rec, ok := transformElement(el, params); ok {
			result.Churches = append(result.Churches, rec)
		}
	}

	log.Printf("[Overpass] %d elements, %d usable", len(apiResp.Elements), len(result.Churches))
	return result, nil
}

// GetByID resolves a single OSM element. IDs look like "node/123456" or
// "way/123456", matching the SourceID format Search produces.
func (p *OverpassProvider) GetByID(ctx context.Context, externalID string) (*RawChurch, error) {
	elType, elID, ok := strings.Cut(externalID, "/")
	if !ok {
		return nil, fmt.Errorf("malformed OSM id %q, want type/number", externalID)
	}
	if _, err := strconv.ParseInt(elID, 10, 64); err != nil {
		return nil, fmt.Errorf("malformed OSM id %q: %w", externalID, err)
	}

	query := fmt.Sprintf("[out:json][timeout:25];%s(%s);out center 1;", elType, elID)
	form := url.Values{"data": {query}}
	req, err := http.NewRequestWithContext(ctx, "POST", p.BaseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API returned %d: %s", resp.StatusCode, string(body))
	}

	var apiResp overpassResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if len(apiResp.Elements) == 0 {
		return nil, nil
	}

	rec, ok := transformElement(apiResp.Elements[0], SearchParams{})
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// buildOverpassQuery assembles an Overpass QL query scoped either to a named
// area or a radius around a coordinate.
func buildOverpassQuery(params SearchParams, limit int) string {
	filter := `["amenity"="place_of_worship"]["religion"="christian"]["name"]`

	if params.City != "" {
		area := params.City
		if params.State != "" {
			name, _ := stateForms(params.State)
			area = fmt.Sprintf(`%s, %s`, params.City, name)
		}
		return fmt.Sprintf(
			"[out:json][timeout:60];area[name=%q]->.a;nwr%s(area.a);out center %d;",
			area, filter, limit,
		)
	}

	radius := params.RadiusMiles
	if radius <= 0 {
		radius = 10
	}
	meters := int(radius * 1609.34)
	return fmt.Sprintf(
		"[out:json][timeout:60];nwr%s(around:%d,%f,%f);out center %d;",
		filter, meters, params.Latitude, params.Longitude, limit,
	)
}

// osmTag returns the first non-empty value among alias keys. OSM data uses
// both plain and contact:-prefixed keys for the same concept.
func osmTag(tags map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(tags[k]); v != "" {
			return v
		}
	}
	return ""
}

func transformElement(el overpassElement, params SearchParams) (RawChurch, bool) {
	name := osmTag(el.Tags, "name")
	if name == "" {
		return RawChurch{}, false
	}

	lat, lon := el.Lat, el.Lon
	if el.Center != nil {
		lat, lon = el.Center.Lat, el.Center.Lon
	}
	if lat == 0 && lon == 0 {
		return RawChurch{}, false
	}

	rec := RawChurch{
		Name:         name,
		Latitude:     lat,
		Longitude:    lon,
		Phone:        osmTag(el.Tags, "phone", "contact:phone"),
		Email:        osmTag(el.Tags, "email", "contact:email"),
		Website:      osmTag(el.Tags, "website", "contact:website"),
		Denomination: osmTag(el.Tags, "denomination"),
		Address:      osmTag(el.Tags, "addr:street"),
		City:         osmTag(el.Tags, "addr:city"),
		Zip:          osmTag(el.Tags, "addr:postcode"),
		SourceID:     fmt.Sprintf("%s/%d", el.Type, el.ID),
		Source:       SourceOpenStreetMap,
	}

	if num := osmTag(el.Tags, "addr:housenumber"); num != "" && rec.Address != "" {
		rec.Address = num + " " + rec.Address
	}

	state := osmTag(el.Tags, "addr:state")
	if state == "" {
		state = params.State
	}
	if state != "" {
		rec.State, rec.StateAbbr = stateForms(state)
	}
	if rec.City == "" {
		rec.City = params.City
	}

	return rec, true
}
