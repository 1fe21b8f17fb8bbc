package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

const SourceGooglePlaces = "google_places"

// googlePageSize is the fixed page size for text search requests.
const googlePageSize = 20

const googleFieldMask = "places.id,places.displayName,places.formattedAddress,places.addressComponents," +
	"places.location,places.nationalPhoneNumber,places.websiteUri,nextPageToken"

// GooglePlacesProvider searches the Google Places text-search API. Results
// are paginated; the API's nextPageToken is surfaced verbatim as the cursor.
type GooglePlacesProvider struct {
	APIKey  string
	BaseURL string
	Client  *http.Client
}

func NewGooglePlacesProvider(apiKey string) *GooglePlacesProvider {
	return &GooglePlacesProvider{
		APIKey:  apiKey,
		BaseURL: "https://places.googleapis.com/v1",
		Client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (p *GooglePlacesProvider) Name() string { return SourceGooglePlaces }

type googleSearchRequest struct {
	TextQuery    string              `json:"textQuery"`
	PageSize     int                 `json:"pageSize"`
	PageToken    string              `json:"pageToken,omitempty"`
	LocationBias *googleLocationBias `json:"locationBias,omitempty"`
}

type googleLocationBias struct {
	Circle googleCircle `json:"circle"`
}

type googleCircle struct {
	Center googleLatLng `json:"center"`
	Radius float64      `json:"radius"` // meters
}

type googleLatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type googleSearchResponse struct {
	Places        []googlePlace `json:"places"`
	NextPageToken string        `json:"nextPageToken"`
}

type googlePlace struct {
	ID          string `json:"id"`
	DisplayName struct {
		Text string `json:"text"`
	} `json:"displayName"`
	FormattedAddress  string        `json:"formattedAddress"`
	AddressComponents []googleAddr  `json:"addressComponents"`
	Location          *googleLatLng `json:"location"`
	NationalPhone     string        `json:"nationalPhoneNumber"`
	WebsiteURI        string        `json:"websiteUri"`
}

type googleAddr struct {
	LongText  string   `json:"longText"`
	ShortText string   `json:"shortText"`
	Types     []string `json:"types"`
}

func (p *GooglePlacesProvider) Search(ctx context.Context, params SearchParams, cursor string) (*SearchResult, error) {
	searchReq := googleSearchRequest{
		TextQuery: buildTextQuery(params),
		PageSize:  googlePageSize,
		PageToken: cursor,
	}
	if params.City == "" && (params.Latitude != 0 || params.Longitude != 0) {
		radius := params.RadiusMiles
		if radius <= 0 {
			radius = 10
		}
		searchReq.LocationBias = &googleLocationBias{
			Circle: googleCircle{
				Center: googleLatLng{Latitude: params.Latitude, Longitude: params.Longitude},
				Radius: radius * 1609.34,
			},
		}
	}

	jsonBody, err := json.Marshal(searchReq)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.BaseURL+"/places:searchText", strings.NewReader(string(jsonBody)))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", p.APIKey)
	req.Header.Set("X-Goog-FieldMask", googleFieldMask)

	log.Printf("[GooglePlaces] Searching %q (cursor=%t)", searchReq.TextQuery, cursor != "")

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API returned %d: %s", resp.StatusCode, string(body))
	}

	var apiResp googleSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	result := &SearchResult{NextCursor: apiResp.NextPageToken}
	for _, place := range apiResp.Places {
		if rec, ok := p.transformPlace(place); ok {
			result.Churches = append(result.Churches, rec)
		}
	}

	return result, nil
}

// GetByID resolves a single place by its Google place ID.
func (p *GooglePlacesProvider) GetByID(ctx context.Context, externalID string) (*RawChurch, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", p.BaseURL+"/places/"+externalID, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("X-Goog-Api-Key", p.APIKey)
	req.Header.Set("X-Goog-FieldMask", strings.ReplaceAll(strings.ReplaceAll(googleFieldMask, "places.", ""), ",nextPageToken", ""))

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API returned %d: %s", resp.StatusCode, string(body))
	}

	var place googlePlace
	if err := json.NewDecoder(resp.Body).Decode(&place); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if place.ID == "" {
		place.ID = externalID
	}

	rec, ok := p.transformPlace(place)
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// transformPlace maps a Google place into a RawChurch. Records without a
// name or coordinates are dropped here, before they reach the caller.
func (p *GooglePlacesProvider) transformPlace(place googlePlace) (RawChurch, bool) {
	name := strings.TrimSpace(place.DisplayName.Text)
	if name == "" || place.Location == nil {
		return RawChurch{}, false
	}

	rec := RawChurch{
		Name:      name,
		Address:   place.FormattedAddress,
		Latitude:  place.Location.Latitude,
		Longitude: place.Location.Longitude,
		Phone:     place.NationalPhone,
		Website:   place.WebsiteURI,
		SourceID:  place.ID,
		Source:    SourceGooglePlaces,
	}

	var street, streetNumber string
	for _, comp := range place.AddressComponents {
		for _, t := range comp.Types {
			switch t {
			case "street_number":
				streetNumber = comp.LongText
			case "route":
				street = comp.LongText
			case "locality":
				rec.City = comp.LongText
			case "administrative_area_level_1":
				rec.State, rec.StateAbbr = stateForms(comp.LongText)
			case "postal_code":
				rec.Zip = comp.LongText
			}
		}
	}
	if street != "" {
		rec.Address = strings.TrimSpace(streetNumber + " " + street)
	}

	return rec, true
}

func buildTextQuery(params SearchParams) string {
	if params.City != "" {
		if params.State != "" {
			return fmt.Sprintf("churches in %s, %s", params.City, params.State)
		}
		return fmt.Sprintf("churches in %s", params.City)
	}
	return "churches"
}
