package models

import "time"

// Strategy selects how listing URLs are discovered.
type Strategy string

const (
	// StrategyBrowser drives a headless browser through scroll pagination.
	StrategyBrowser Strategy = "browser"
	// StrategyHTTP fetches the server-rendered search page directly.
	StrategyHTTP Strategy = "http"
)

// FetchMethod tags a RawContent payload with how it was acquired.
type FetchMethod string

const (
	FetchBrowser FetchMethod = "browser"
	FetchDirect  FetchMethod = "direct"
)

// RawContent is the markup acquired for one URL, before parsing.
type RawContent struct {
	URL       string
	Body      string
	Method    FetchMethod
	FetchedAt time.Time
}

// Listing is the normalized record extracted from one listing or building
// page. Optional fields are pointers: nil means the field was never observed
// and is omitted from the persisted JSON; an observed empty value is kept.
type Listing struct {
	ID             string      `json:"id"`
	URL            string      `json:"url"`
	Title          *string     `json:"title,omitempty"`
	Price          *string     `json:"price,omitempty"`
	Bedrooms       *string     `json:"bedrooms,omitempty"`
	Bathrooms      *string     `json:"bathrooms,omitempty"`
	SquareFeet     *string     `json:"square_feet,omitempty"`
	Address        *string     `json:"address,omitempty"`
	Neighborhood   *string     `json:"neighborhood,omitempty"`
	Description    *string     `json:"description,omitempty"`
	Amenities      []string    `json:"amenities,omitempty"`
	ImageCount     *int        `json:"image_count,omitempty"`
	Floorplans     []Floorplan `json:"floorplans,omitempty"`
	AvailableUnits []Unit      `json:"available_units,omitempty"`
	LastScraped    time.Time   `json:"last_scraped"`
}

// Floorplan is a layout offered by a building. It belongs to exactly one
// Listing.
type Floorplan struct {
	ID                  string   `json:"id"`
	Name                *string  `json:"name,omitempty"`
	Bedrooms            *float64 `json:"bedrooms,omitempty"`
	Bathrooms           *float64 `json:"bathrooms,omitempty"`
	MinSquareFeet       *float64 `json:"min_square_feet,omitempty"`
	MaxSquareFeet       *float64 `json:"max_square_feet,omitempty"`
	MinPrice            *float64 `json:"min_price,omitempty"`
	MaxPrice            *float64 `json:"max_price,omitempty"`
	AvailableUnitsCount int      `json:"available_units_count"`
}

// Unit is one rentable unit inside a Listing. FloorplanID is a back-reference
// by id, not a pointer into the Floorplans slice.
type Unit struct {
	FloorplanID   string     `json:"floorplan_id"`
	Title         *string    `json:"title,omitempty"`
	Bedrooms      *float64   `json:"bedrooms,omitempty"`
	Bathrooms     *float64   `json:"bathrooms,omitempty"`
	SquareFeet    *float64   `json:"square_feet,omitempty"`
	Price         *float64   `json:"price,omitempty"`
	AvailableDate *string    `json:"available_date,omitempty"`
	IsAvailable   bool       `json:"is_available"`
	Features      []string   `json:"features,omitempty"`
	UnitAmenities []string   `json:"unit_amenities,omitempty"`
	LeaseTerms    LeaseTerms `json:"lease_terms"`
}

// LeaseTerms bounds the lease length for a unit, in days.
type LeaseTerms struct {
	MinLeaseDays *float64 `json:"min_lease_days,omitempty"`
	MaxLeaseDays *float64 `json:"max_lease_days,omitempty"`
}

// BatchReport holds the statistics computed over one run's batch.
type BatchReport struct {
	TotalListings   int
	TotalBuildings  int
	PricedListings  int
	MinPrice        float64
	MaxPrice        float64
	AveragePrice    float64
	BedroomCounts   map[string]int
	Neighborhoods   []string
	TopAmenities    []AmenityCount
	FloorplansTotal int
	AvailableUnits  int
}

// AmenityCount pairs an amenity tag with how many listings carry it.
type AmenityCount struct {
	Name  string
	Count int
}
