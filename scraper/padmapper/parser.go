package padmapper

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/PuerkitoBio/goquery"

	"padmapper-scraper/models"
	"padmapper-scraper/utils"
)

var (
	// priceRegexp captures a dollar amount like $1,200
	priceRegexp = regexp.MustCompile(`\$[\d,]+`)
	// digitsRegexp captures the first run of digits in a field
	digitsRegexp = regexp.MustCompile(`\d+`)
)

// preloadedState is the external shape of the embedded page state, narrowed
// to the parts the parser consumes.
type preloadedState struct {
	Listables struct {
		Listables []listable `json:"listables"`
	} `json:"listables"`
}

// listable is the site's record for one rental listing inside the embedded
// state. Numerics decode as json.Number so absent fields stay absent instead
// of becoming zero.
type listable struct {
	ListingID        json.Number     `json:"listing_id"`
	PadmapperURL     string          `json:"padmapper_url"`
	Title            string          `json:"title"`
	Address          string          `json:"address"`
	NeighborhoodName string          `json:"neighborhood_name"`
	MaxPrice         json.Number     `json:"max_price"`
	MaxBedrooms      json.Number     `json:"max_bedrooms"`
	MaxBathrooms     json.Number     `json:"max_bathrooms"`
	MaxSquareFeet    json.Number     `json:"max_square_feet"`
	ShortDescription string          `json:"short_description"`
	AmenityTags      []string        `json:"amenity_tags"`
	ImageIDs         []json.Number   `json:"image_ids"`
	FloorplanCount   *int            `json:"floorplan_count"`
	Floorplans       []stateFloorplan `json:"floorplans"`
	Units            []stateUnit     `json:"units"`
}

type stateFloorplan struct {
	ID                  json.Number `json:"id"`
	Name                *string     `json:"name"`
	Bedrooms            *float64    `json:"bedrooms"`
	Bathrooms           *float64    `json:"bathrooms"`
	MinSquareFeet       *float64    `json:"min_square_feet"`
	MaxSquareFeet       *float64    `json:"max_square_feet"`
	MinPrice            *float64    `json:"min_price"`
	MaxPrice            *float64    `json:"max_price"`
	AvailableUnitsCount int         `json:"available_units_count"`
}

type stateUnit struct {
	FloorplanID   json.Number `json:"floorplan_id"`
	Title         *string     `json:"title"`
	Bedrooms      *float64    `json:"bedrooms"`
	Bathrooms     *float64    `json:"bathrooms"`
	SquareFeet    *float64    `json:"square_feet"`
	Price         *float64    `json:"price"`
	AvailableDate *string     `json:"available_date"`
	IsAvailable   bool        `json:"is_available"`
	Features      []string    `json:"features"`
	UnitAmenities []string    `json:"unit_amenities"`
	MinLeaseDays  *float64    `json:"min_lease_days"`
	MaxLeaseDays  *float64    `json:"max_lease_days"`
}

// Parser maps acquired content into a normalized Listing. The embedded page
// state is the primary source; rendered markup selectors fill the gaps.
type Parser struct {
	logger    *utils.Logger
	extractor *StateExtractor
}

// NewParser returns a Parser logging through logger.
func NewParser(logger *utils.Logger) *Parser {
	return &Parser{logger: logger, extractor: NewStateExtractor(logger)}
}

// Parse builds a Listing from content, or nil when nothing usable could be
// extracted. A parse failure never escalates past this boundary.
func (p *Parser) Parse(content *models.RawContent) *models.Listing {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content.Body))
	if err != nil {
		p.logger.Error("[parser] parse markup for %s: %v", content.URL, err)
		return nil
	}

	listing := &models.Listing{
		ID:          listingIDFromURL(content.URL),
		URL:         content.URL,
		LastScraped: time.Now(),
	}

	populated := false
	if raw, ok := p.extractor.Extract(content.Body); ok {
		populated = p.applyState(listing, raw)
	}
	p.applyFallbacks(listing, doc)

	if !populated && !anyFieldObserved(listing) {
		p.logger.Warn("[parser] no extractable data for %s", content.URL)
		return nil
	}

	p.logger.Info("[parser] parsed listing %s with %d floorplans and %d available units",
		listing.ID, len(listing.Floorplans), len(listing.AvailableUnits))
	return listing
}

// applyState maps the first listable of the embedded state onto listing.
// Returns false when the state holds no listables.
func (p *Parser) applyState(listing *models.Listing, raw json.RawMessage) bool {
	var state preloadedState
	if err := json.Unmarshal(raw, &state); err != nil {
		p.logger.Warn("[parser] decode preloaded state: %v", err)
		return false
	}
	if len(state.Listables.Listables) == 0 {
		p.logger.Debug("[parser] preloaded state holds no listables")
		return false
	}

	l := state.Listables.Listables[0]

	if id := l.ListingID.String(); id != "" {
		listing.ID = id
	}
	if l.PadmapperURL != "" {
		listing.URL = l.PadmapperURL
	}
	setString(&listing.Title, l.Title)
	setString(&listing.Address, l.Address)
	setString(&listing.Neighborhood, l.NeighborhoodName)
	setString(&listing.Description, l.ShortDescription)
	setNumber(&listing.Price, l.MaxPrice)
	setNumber(&listing.Bedrooms, l.MaxBedrooms)
	setNumber(&listing.Bathrooms, l.MaxBathrooms)
	setNumber(&listing.SquareFeet, l.MaxSquareFeet)

	if l.AmenityTags != nil {
		listing.Amenities = append([]string(nil), l.AmenityTags...)
	}
	if l.ImageIDs != nil {
		n := len(l.ImageIDs)
		listing.ImageCount = &n
	}

	if l.FloorplanCount != nil {
		for _, fp := range l.Floorplans {
			listing.Floorplans = append(listing.Floorplans, models.Floorplan{
				ID:                  fp.ID.String(),
				Name:                fp.Name,
				Bedrooms:            fp.Bedrooms,
				Bathrooms:           fp.Bathrooms,
				MinSquareFeet:       fp.MinSquareFeet,
				MaxSquareFeet:       fp.MaxSquareFeet,
				MinPrice:            fp.MinPrice,
				MaxPrice:            fp.MaxPrice,
				AvailableUnitsCount: fp.AvailableUnitsCount,
			})
		}
	}

	for _, u := range l.Units {
		if !u.IsAvailable {
			continue
		}
		listing.AvailableUnits = append(listing.AvailableUnits, models.Unit{
			FloorplanID:   u.FloorplanID.String(),
			Title:         u.Title,
			Bedrooms:      u.Bedrooms,
			Bathrooms:     u.Bathrooms,
			SquareFeet:    u.SquareFeet,
			Price:         u.Price,
			AvailableDate: u.AvailableDate,
			IsAvailable:   true,
			Features:      u.Features,
			UnitAmenities: u.UnitAmenities,
			LeaseTerms: models.LeaseTerms{
				MinLeaseDays: u.MinLeaseDays,
				MaxLeaseDays: u.MaxLeaseDays,
			},
		})
	}

	return true
}

// fallbackChains lists, per field, the selectors probed in order when the
// primary path left the field unpopulated. First non-empty match wins.
var fallbackChains = struct {
	title       []string
	price       []string
	bedrooms    []string
	bathrooms   []string
	squareFeet  []string
	address     []string
	description []string
	amenities   []string
}{
	title:       []string{"h1.listing-title", "h1", "title"},
	price:       []string{"[data-testid='listing-price']", ".ListingPrice"},
	bedrooms:    []string{"[data-testid='listing-bedroom']", ".ListingBedrooms"},
	bathrooms:   []string{"[data-testid='listing-bathroom']", ".ListingBathrooms"},
	squareFeet:  []string{"[data-testid='listing-specification-2']", ".ListingSquareFeet"},
	address:     []string{"[data-testid='listing-address']", ".ListingAddress", "div.listing-address"},
	description: []string{"[data-testid='listing-description']", ".ListingDescription"},
	amenities:   []string{"[data-testid='listing-amenity-item']", ".ListingAmenity", "div.amenities-section div.amenity-item"},
}

// applyFallbacks probes the rendered document for every field the primary
// path did not populate.
func (p *Parser) applyFallbacks(listing *models.Listing, doc *goquery.Document) {
	if listing.Title == nil {
		if text, ok := firstText(doc, fallbackChains.title); ok {
			listing.Title = &text
		}
	}
	if listing.Price == nil {
		if text, ok := firstText(doc, fallbackChains.price); ok {
			if m := priceRegexp.FindString(text); m != "" {
				price := strings.NewReplacer("$", "", ",", "").Replace(m)
				listing.Price = &price
			}
		}
	}
	if listing.Bedrooms == nil {
		listing.Bedrooms = firstDigits(doc, fallbackChains.bedrooms)
	}
	if listing.Bathrooms == nil {
		listing.Bathrooms = firstDigits(doc, fallbackChains.bathrooms)
	}
	if listing.SquareFeet == nil {
		listing.SquareFeet = firstDigits(doc, fallbackChains.squareFeet)
	}
	if listing.Address == nil {
		if text, ok := firstText(doc, fallbackChains.address); ok {
			listing.Address = &text
		}
	}
	if listing.Description == nil {
		if text, ok := firstText(doc, fallbackChains.description); ok {
			listing.Description = &text
		}
	}
	if listing.Amenities == nil {
		for _, selector := range fallbackChains.amenities {
			var items []string
			doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
				if text := normaliseText(sel.Text()); text != "" {
					items = append(items, text)
				}
			})
			if len(items) > 0 {
				listing.Amenities = items
				break
			}
		}
	}
	if listing.ImageCount == nil {
		if n := doc.Find("img[src*='padmapper']").Length(); n > 0 {
			listing.ImageCount = &n
		}
	}
}

// firstText returns the normalized text of the first selector in chain that
// matches a non-empty element.
func firstText(doc *goquery.Document, chain []string) (string, bool) {
	for _, selector := range chain {
		text := normaliseText(doc.Find(selector).First().Text())
		if text != "" {
			return text, true
		}
	}
	return "", false
}

// firstDigits runs the chain and extracts the first digit run from the
// matched text.
func firstDigits(doc *goquery.Document, chain []string) *string {
	text, ok := firstText(doc, chain)
	if !ok {
		return nil
	}
	if m := digitsRegexp.FindString(text); m != "" {
		return &m
	}
	return nil
}

// listingIDFromURL falls back to the last path segment as the listing id.
func listingIDFromURL(url string) string {
	url = strings.TrimRight(url, "/")
	if i := strings.LastIndexByte(url, '/'); i >= 0 {
		return url[i+1:]
	}
	return url
}

// setString stores a non-empty value into an unset optional field.
func setString(dst **string, val string) {
	if *dst == nil && val != "" {
		v := val
		*dst = &v
	}
}

// setNumber stores a numeric state field as its string form, leaving the
// field unset when the state never carried it.
func setNumber(dst **string, num json.Number) {
	if *dst == nil && num.String() != "" {
		v := num.String()
		*dst = &v
	}
}

// anyFieldObserved reports whether the parse observed anything beyond the
// id/url derived from the request itself.
func anyFieldObserved(l *models.Listing) bool {
	return l.Title != nil || l.Price != nil || l.Bedrooms != nil ||
		l.Bathrooms != nil || l.SquareFeet != nil || l.Address != nil ||
		l.Description != nil || l.Amenities != nil || l.ImageCount != nil ||
		len(l.Floorplans) > 0 || len(l.AvailableUnits) > 0
}

// normaliseText strips leading/trailing whitespace and collapses internal
// whitespace.
func normaliseText(s string) string {
	fields := strings.FieldsFunc(strings.TrimSpace(s), func(r rune) bool {
		return unicode.IsSpace(r)
	})
	return strings.Join(fields, " ")
}
