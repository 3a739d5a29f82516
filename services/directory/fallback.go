package directory

import (
	"context"

	"nexus/models"
)

// FallbackDirectory serves a fixed roster of candidates so a campaign can
// run end to end when no live directory is wired in.
type FallbackDirectory struct{}

func NewFallbackDirectory() *FallbackDirectory {
	return &FallbackDirectory{}
}

var fallbackSlots = []models.AvailableSlot{
	{Date: "2026-02-10", Time: "09:00", DurationMin: 30, Doctor: "Dr. Smith"},
	{Date: "2026-02-10", Time: "14:00", DurationMin: 30, Doctor: "Dr. Smith"},
	{Date: "2026-02-11", Time: "10:00", DurationMin: 30, Doctor: "Dr. Jones"},
}

var fallbackRoster = []models.Provider{
	{ID: "mock-001", Name: "Downtown Dental Care", Phone: "+15551234001", Rating: 4.8, RatingCount: 120, Location: models.GeoPoint{Lat: 37.7749, Lng: -122.4194}},
	{ID: "mock-002", Name: "Smile Plus Clinic", Phone: "+15551234002", Rating: 4.5, RatingCount: 85, Location: models.GeoPoint{Lat: 37.7849, Lng: -122.4094}},
	{ID: "mock-003", Name: "Quick Fix Dental", Phone: "+15551234003", Rating: 3.4, RatingCount: 30, Location: models.GeoPoint{Lat: 37.7649, Lng: -122.4294}},
	{ID: "mock-004", Name: "Elite Dental Studio", Phone: "+15551234004", Rating: 4.9, RatingCount: 200, Location: models.GeoPoint{Lat: 37.7699, Lng: -122.4144}},
	{ID: "mock-005", Name: "Budget Dental Co", Phone: "+15551234005", Rating: 2.8, RatingCount: 15, Location: models.GeoPoint{Lat: 37.7599, Lng: -122.4244}},
	{ID: "mock-006", Name: "Central Care", Phone: "+15551234006", Rating: 4.2, RatingCount: 90, Location: models.GeoPoint{Lat: 37.7700, Lng: -122.4200}},
	{ID: "mock-007", Name: "Westside Dental", Phone: "+15551234007", Rating: 4.6, RatingCount: 110, Location: models.GeoPoint{Lat: 37.7750, Lng: -122.4300}},
	{ID: "mock-008", Name: "East End Dental", Phone: "+15551234008", Rating: 3.8, RatingCount: 45, Location: models.GeoPoint{Lat: 37.7600, Lng: -122.4100}},
	{ID: "mock-009", Name: "North Park Dental", Phone: "+15551234009", Rating: 4.0, RatingCount: 60, Location: models.GeoPoint{Lat: 37.7800, Lng: -122.4150}},
	{ID: "mock-010", Name: "South Bay Dental", Phone: "+15551234010", Rating: 4.7, RatingCount: 95, Location: models.GeoPoint{Lat: 37.7550, Lng: -122.4250}},
	{ID: "mock-011", Name: "Metro Dental", Phone: "+15551234011", Rating: 3.6, RatingCount: 40, Location: models.GeoPoint{Lat: 37.7720, Lng: -122.4180}},
	{ID: "mock-012", Name: "Valley View Dental", Phone: "+15551234012", Rating: 4.3, RatingCount: 75, Location: models.GeoPoint{Lat: 37.7680, Lng: -122.4320}},
	{ID: "mock-013", Name: "Hillside Dental", Phone: "+15551234013", Rating: 3.9, RatingCount: 55, Location: models.GeoPoint{Lat: 37.7820, Lng: -122.4080}},
	{ID: "mock-014", Name: "Riverside Dental", Phone: "+15551234014", Rating: 4.4, RatingCount: 80, Location: models.GeoPoint{Lat: 37.7610, Lng: -122.4220}},
	{ID: "mock-015", Name: "Summit Dental", Phone: "+15551234015", Rating: 4.1, RatingCount: 65, Location: models.GeoPoint{Lat: 37.7780, Lng: -122.4120}},
}

func (d *FallbackDirectory) Search(_ context.Context, serviceType, location string, limit int) ([]models.Provider, error) {
	if serviceType == "" {
		serviceType = "dentist"
	}
	if location == "" {
		location = "123 Main St"
	}
	out := make([]models.Provider, 0, limit)
	for _, p := range fallbackRoster {
		if len(out) >= limit {
			break
		}
		p.Type = serviceType
		p.Address = location
		p.Timezone = "America/Los_Angeles"
		p.DistanceKm = 5.0
		p.AvailableSlots = fallbackSlots
		out = append(out, p)
	}
	return out, nil
}
