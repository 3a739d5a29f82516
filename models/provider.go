package models

// Provider is a candidate business the swarm may call. Sourced from the
// directory collaborator (live lookup or static fallback roster).
type Provider struct {
	ID             string          `bson:"id" json:"id"`
	Name           string          `bson:"name" json:"name"`
	Phone          string          `bson:"phone" json:"phone"`
	Type           string          `bson:"type" json:"type"` // Service category, e.g. "dentist"
	Address        string          `bson:"address" json:"address"`
	Rating         float64         `bson:"rating" json:"rating"` // 0..5
	RatingCount    int             `bson:"rating_count" json:"rating_count"`
	Location       GeoPoint        `bson:"location" json:"location"`
	DistanceKm     float64         `bson:"distance_km,omitempty" json:"distance_km,omitempty"` // From the campaign origin
	TravelTimeMin  int             `bson:"travel_time_min,omitempty" json:"travel_time_min,omitempty"`
	Timezone       string          `bson:"timezone,omitempty" json:"timezone,omitempty"`
	AvailableSlots []AvailableSlot `bson:"available_slots,omitempty" json:"available_slots,omitempty"`
}

// GeoPoint is a WGS84 coordinate pair.
type GeoPoint struct {
	Lat float64 `bson:"lat" json:"lat"`
	Lng float64 `bson:"lng" json:"lng"`
}

// AvailableSlot is a slot a provider is believed to have open. Advisory only;
// the call agent still negotiates the real slot with the receptionist.
type AvailableSlot struct {
	Date        string `bson:"date" json:"date"`
	Time        string `bson:"time" json:"time"`
	DurationMin int    `bson:"duration_min" json:"duration_min"`
	Doctor      string `bson:"doctor,omitempty" json:"doctor,omitempty"`
}
