package model

type Station struct {
	ID           int      `json:"id" bson:"_id"`
	Name         string   `json:"name" bson:"name"`
	Location     string   `json:"location" bson:"location"`
	Image        string   `json:"image" bson:"image"`
	ChargerTypes []string `json:"chargerTypes" bson:"charger_types"`
	PricePerKwh  float64  `json:"pricePerKwh" bson:"price_per_kwh"`
	Latitude     float64  `json:"latitude" bson:"latitude"`
	Longitude    float64  `json:"longitude" bson:"longitude"`
}

type StationAvailability struct {
	StationID   int      `json:"stationId"`
	Date        string   `json:"date"`
	BookedSlots []string `json:"bookedSlots"`
}

type AvailabilityLevel string

const (
	AvailabilityHigh   AvailabilityLevel = "High Availability"
	AvailabilityMedium AvailabilityLevel = "Medium Availability"
	AvailabilityLow    AvailabilityLevel = "Low Availability"
)

// StationSummary is one row of the daily availability overview.
type StationSummary struct {
	ID          int               `json:"id"`
	Name        string            `json:"name"`
	Location    string            `json:"location"`
	TotalSlots  int               `json:"totalSlots"`
	BookedSlots int               `json:"bookedSlots"`
	Status      AvailabilityLevel `json:"status"`
}

// SlotState is the live occupancy of one physical charging bay.
type SlotState struct {
	SlotID     int  `json:"slotId"`
	IsOccupied bool `json:"isOccupied"`
}

// DefaultStations is the catalogue the service starts with.
func DefaultStations() []*Station {
	return []*Station{
		{
			ID:           1,
			Name:         "Indiranagar Power Hub",
			Location:     "100 Feet Rd, Indiranagar, Bengaluru",
			Image:        "/assets/generated_images/indiranagar.png",
			ChargerTypes: []string{"Level 2", "DC Fast"},
			PricePerKwh:  15.00,
			Latitude:     12.9716,
			Longitude:    77.6412,
		},
		{
			ID:           2,
			Name:         "Koramangala Charging Point",
			Location:     "Forum Mall, Koramangala, Bengaluru",
			Image:        "/assets/generated_images/koramangala.png",
			ChargerTypes: []string{"DC Fast", "Tesla"},
			PricePerKwh:  18.50,
			Latitude:     12.9352,
			Longitude:    77.6245,
		},
		{
			ID:           3,
			Name:         "Whitefield Tech Charge",
			Location:     "ITPL Main Rd, Whitefield, Bengaluru",
			Image:        "/assets/generated_images/whitefield.png",
			ChargerTypes: []string{"Level 2"},
			PricePerKwh:  12.00,
			Latitude:     12.9698,
			Longitude:    77.7500,
		},
	}
}
