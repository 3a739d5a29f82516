package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sort"
	"time"

	"nexus/models"
	"nexus/utils"

	"go.uber.org/zap"
)

const placesSearchURL = "https://maps.googleapis.com/maps/api/place/textsearch/json"

// PlacesDirectory resolves candidates through the Google Places text search
// API, ranked nearest-first from the campaign origin. Wrap it with a
// FallbackDirectory fallthrough via NewDirectoryWithFallback for resilience.
type PlacesDirectory struct {
	apiKey string
	origin models.GeoPoint
	http   *http.Client
}

func NewPlacesDirectory(apiKey string, origin models.GeoPoint) *PlacesDirectory {
	return &PlacesDirectory{
		apiKey: apiKey,
		origin: origin,
		http:   &http.Client{Timeout: 5 * time.Second},
	}
}

func (d *PlacesDirectory) Search(ctx context.Context, serviceType, location string, limit int) ([]models.Provider, error) {
	if d.apiKey == "" {
		return nil, fmt.Errorf("places directory: no API key configured")
	}

	q := url.Values{}
	q.Set("query", fmt.Sprintf("%s near %s", serviceType, location))
	q.Set("key", d.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, placesSearchURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := d.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("places search failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("places search returned %d", resp.StatusCode)
	}

	var body struct {
		Status  string `json:"status"`
		Results []struct {
			PlaceID          string  `json:"place_id"`
			Name             string  `json:"name"`
			FormattedAddress string  `json:"formatted_address"`
			Rating           float64 `json:"rating"`
			UserRatingsTotal int     `json:"user_ratings_total"`
			Geometry         struct {
				Location struct {
					Lat float64 `json:"lat"`
					Lng float64 `json:"lng"`
				} `json:"location"`
			} `json:"geometry"`
			FormattedPhoneNumber string `json:"formatted_phone_number"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("places search decode failed: %w", err)
	}
	if body.Status != "OK" && body.Status != "ZERO_RESULTS" {
		return nil, fmt.Errorf("places search status %s", body.Status)
	}

	providers := make([]models.Provider, 0, len(body.Results))
	for _, r := range body.Results {
		if r.FormattedPhoneNumber == "" {
			// A candidate we cannot call is no candidate.
			continue
		}
		loc := models.GeoPoint{Lat: r.Geometry.Location.Lat, Lng: r.Geometry.Location.Lng}
		providers = append(providers, models.Provider{
			ID:          r.PlaceID,
			Name:        r.Name,
			Phone:       r.FormattedPhoneNumber,
			Type:        serviceType,
			Address:     r.FormattedAddress,
			Rating:      r.Rating,
			RatingCount: r.UserRatingsTotal,
			Location:    loc,
			DistanceKm:  Haversine(d.origin, loc),
		})
	}

	sort.Slice(providers, func(i, j int) bool {
		return providers[i].DistanceKm < providers[j].DistanceKm
	})
	if len(providers) > limit {
		providers = providers[:limit]
	}
	return providers, nil
}

// Haversine is the great-circle distance between two points, in km.
func Haversine(a, b models.GeoPoint) float64 {
	const earthRadiusKm = 6371
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180
	aLat := a.Lat * math.Pi / 180
	bLat := b.Lat * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(aLat)*math.Cos(bLat)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusKm * c
}

// DirectoryWithFallback tries the primary directory and falls through to the
// secondary on error or an empty result.
type DirectoryWithFallback struct {
	Primary   Service
	Secondary Service
}

func NewDirectoryWithFallback(primary, secondary Service) *DirectoryWithFallback {
	return &DirectoryWithFallback{Primary: primary, Secondary: secondary}
}

func (d *DirectoryWithFallback) Search(ctx context.Context, serviceType, location string, limit int) ([]models.Provider, error) {
	providers, err := d.Primary.Search(ctx, serviceType, location, limit)
	if err == nil && len(providers) > 0 {
		return providers, nil
	}
	if err != nil {
		utils.GetLogger().Warn("Primary directory lookup failed, using fallback",
			zap.String("serviceType", serviceType), zap.Error(err))
	}
	return d.Secondary.Search(ctx, serviceType, location, limit)
}
