package padmapper

import (
	"fmt"
	"reflect"
	"testing"
	"time"

	"padmapper-scraper/models"
	"padmapper-scraper/utils"
)

const statePage = `<html><head><script>
window.__PRELOADED_STATE__ = {"listables": {"listables": [{
	"listing_id": 987654,
	"padmapper_url": "https://www.padmapper.com/buildings/p987654",
	"title": "The Grand",
	"address": "123 Main St",
	"neighborhood_name": "Downtown",
	"max_price": 2500,
	"max_bedrooms": 2,
	"max_bathrooms": 2,
	"max_square_feet": 1100,
	"short_description": "Spacious corner units.",
	"amenity_tags": ["Pool", "Gym"],
	"image_ids": [11, 12, 13],
	"floorplan_count": 2,
	"floorplans": [
		{"id": 1, "name": "A1", "bedrooms": 1, "bathrooms": 1, "min_price": 1800, "max_price": 2000, "available_units_count": 2},
		{"id": 2, "name": "B2", "bedrooms": 2, "bathrooms": 2, "min_price": 2300, "max_price": 2500, "available_units_count": 1}
	],
	"units": [
		{"floorplan_id": 1, "title": "Unit 101", "price": 1850, "is_available": true, "min_lease_days": 180, "max_lease_days": 365, "features": ["Balcony"]},
		{"floorplan_id": 1, "title": "Unit 102", "price": 1900, "is_available": false},
		{"floorplan_id": 2, "title": "Unit 201", "price": 2450, "is_available": true, "unit_amenities": ["In-unit laundry"]}
	]
}]}};
</script></head><body></body></html>`

func rawContent(body string) *models.RawContent {
	return &models.RawContent{
		URL:       "https://www.padmapper.com/buildings/p987654",
		Body:      body,
		Method:    models.FetchDirect,
		FetchedAt: time.Now(),
	}
}

func TestParsePrimaryPath(t *testing.T) {
	p := NewParser(utils.NewLogger())
	listing := p.Parse(rawContent(statePage))
	if listing == nil {
		t.Fatal("Parse returned nil for a valid state page")
	}

	if listing.ID != "987654" {
		t.Errorf("ID = %q, want 987654", listing.ID)
	}
	if listing.Price == nil || *listing.Price != "2500" {
		t.Errorf("Price = %v, want 2500", listing.Price)
	}
	if listing.Bedrooms == nil || *listing.Bedrooms != "2" {
		t.Errorf("Bedrooms = %v, want 2", listing.Bedrooms)
	}
	if listing.Title == nil || *listing.Title != "The Grand" {
		t.Errorf("Title = %v, want The Grand", listing.Title)
	}
	if listing.Neighborhood == nil || *listing.Neighborhood != "Downtown" {
		t.Errorf("Neighborhood = %v, want Downtown", listing.Neighborhood)
	}
	if listing.ImageCount == nil || *listing.ImageCount != 3 {
		t.Errorf("ImageCount = %v, want 3", listing.ImageCount)
	}
	if got := listing.Amenities; len(got) != 2 || got[0] != "Pool" {
		t.Errorf("Amenities = %v, want [Pool Gym]", got)
	}
}

func TestParseExpandsFloorplansAndFiltersUnits(t *testing.T) {
	p := NewParser(utils.NewLogger())
	listing := p.Parse(rawContent(statePage))
	if listing == nil {
		t.Fatal("Parse returned nil")
	}

	if len(listing.Floorplans) != 2 {
		t.Fatalf("got %d floorplans, want 2", len(listing.Floorplans))
	}
	if listing.Floorplans[0].ID != "1" || listing.Floorplans[1].ID != "2" {
		t.Errorf("floorplan ids = %s, %s", listing.Floorplans[0].ID, listing.Floorplans[1].ID)
	}

	if len(listing.AvailableUnits) != 2 {
		t.Fatalf("got %d available units, want 2 (one of 3 is unavailable)", len(listing.AvailableUnits))
	}
	for _, u := range listing.AvailableUnits {
		if !u.IsAvailable {
			t.Errorf("unit %v is flagged unavailable but was kept", u.Title)
		}
	}
	first := listing.AvailableUnits[0]
	if first.FloorplanID != "1" {
		t.Errorf("FloorplanID = %q, want 1", first.FloorplanID)
	}
	if first.LeaseTerms.MinLeaseDays == nil || *first.LeaseTerms.MinLeaseDays != 180 {
		t.Errorf("MinLeaseDays = %v, want 180", first.LeaseTerms.MinLeaseDays)
	}
	if first.LeaseTerms.MaxLeaseDays == nil || *first.LeaseTerms.MaxLeaseDays != 365 {
		t.Errorf("MaxLeaseDays = %v, want 365", first.LeaseTerms.MaxLeaseDays)
	}
}

func TestParseFallbackChain(t *testing.T) {
	page := `<html><body>
		<h1 class="listing-title"> Cozy   Studio </h1>
		<div data-testid="listing-price">$1,250/mo</div>
		<div data-testid="listing-bedroom">1 bed</div>
		<div data-testid="listing-bathroom">1 bath</div>
		<div data-testid="listing-specification-2">480 sqft</div>
		<div class="ListingAddress">42 Elm St, Los Angeles</div>
		<div class="amenities-section">
			<div class="amenity-item">Parking</div>
			<div class="amenity-item">Laundry</div>
		</div>
		<img src="https://img.padmapper.com/1.jpg"><img src="https://img.padmapper.com/2.jpg">
	</body></html>`

	p := NewParser(utils.NewLogger())
	listing := p.Parse(rawContent(page))
	if listing == nil {
		t.Fatal("Parse returned nil for fallback-only page")
	}

	if listing.Title == nil || *listing.Title != "Cozy Studio" {
		t.Errorf("Title = %v, want whitespace-collapsed Cozy Studio", listing.Title)
	}
	if listing.Price == nil || *listing.Price != "1250" {
		t.Errorf("Price = %v, want 1250", listing.Price)
	}
	if listing.Bedrooms == nil || *listing.Bedrooms != "1" {
		t.Errorf("Bedrooms = %v, want 1", listing.Bedrooms)
	}
	if listing.SquareFeet == nil || *listing.SquareFeet != "480" {
		t.Errorf("SquareFeet = %v, want 480", listing.SquareFeet)
	}
	if listing.Address == nil || *listing.Address != "42 Elm St, Los Angeles" {
		t.Errorf("Address = %v", listing.Address)
	}
	if len(listing.Amenities) != 2 {
		t.Errorf("Amenities = %v, want 2 entries", listing.Amenities)
	}
	if listing.ImageCount == nil || *listing.ImageCount != 2 {
		t.Errorf("ImageCount = %v, want 2", listing.ImageCount)
	}
}

func TestParseIdempotent(t *testing.T) {
	p := NewParser(utils.NewLogger())
	content := rawContent(statePage)

	a := p.Parse(content)
	b := p.Parse(content)
	if a == nil || b == nil {
		t.Fatal("Parse returned nil")
	}

	a.LastScraped = time.Time{}
	b.LastScraped = time.Time{}
	if !reflect.DeepEqual(a, b) {
		t.Errorf("parsing identical content twice differed:\n%+v\n%+v", a, b)
	}
}

func TestParseNothingObserved(t *testing.T) {
	p := NewParser(utils.NewLogger())
	listing := p.Parse(rawContent(`<html><body><div>nothing here</div></body></html>`))
	if listing != nil {
		t.Errorf("Parse = %+v, want nil when no field is extractable", listing)
	}
}

func TestParseUnobservedFieldsStayNil(t *testing.T) {
	// State with only an id and title: every other optional field must stay
	// nil so it is omitted from the persisted record.
	page := fmt.Sprintf(`<html><script>window.__PRELOADED_STATE__ = %s;</script></html>`,
		`{"listables": {"listables": [{"listing_id": 5, "title": "Bare"}]}}`)

	p := NewParser(utils.NewLogger())
	listing := p.Parse(rawContent(page))
	if listing == nil {
		t.Fatal("Parse returned nil")
	}
	if listing.Price != nil || listing.Bedrooms != nil || listing.Address != nil {
		t.Errorf("unobserved fields should be nil: %+v", listing)
	}
	if listing.Amenities != nil || listing.ImageCount != nil {
		t.Errorf("unobserved collections should be nil: %+v", listing)
	}
}
