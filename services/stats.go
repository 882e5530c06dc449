package services

import (
	"math"
	"sort"
	"strconv"

	"padmapper-scraper/models"
	"padmapper-scraper/utils"
)

// topAmenityCount bounds the amenity frequency list logged per run.
const topAmenityCount = 10

// StatsService computes and logs batch statistics over a run's listings.
type StatsService struct {
	logger *utils.Logger
}

// NewStatsService creates a StatsService with the given logger.
func NewStatsService(logger *utils.Logger) *StatsService {
	return &StatsService{logger: logger}
}

// Generate computes the batch report for a run.
func (s *StatsService) Generate(listings []*models.Listing) *models.BatchReport {
	report := &models.BatchReport{
		BedroomCounts: make(map[string]int),
	}
	if len(listings) == 0 {
		return report
	}

	report.TotalListings = len(listings)

	buildings := make(map[string]struct{})
	neighborhoods := make(map[string]struct{})
	amenityCounts := make(map[string]int)

	var priceSum float64
	for _, l := range listings {
		buildings[l.ID] = struct{}{}

		if l.Price != nil {
			if price, err := strconv.ParseFloat(*l.Price, 64); err == nil && price > 0 {
				if report.PricedListings == 0 {
					report.MinPrice = price
					report.MaxPrice = price
				}
				report.MinPrice = math.Min(report.MinPrice, price)
				report.MaxPrice = math.Max(report.MaxPrice, price)
				priceSum += price
				report.PricedListings++
			}
		}

		if l.Bedrooms != nil {
			report.BedroomCounts[*l.Bedrooms]++
		}
		if l.Neighborhood != nil && *l.Neighborhood != "" {
			neighborhoods[*l.Neighborhood] = struct{}{}
		}
		for _, amenity := range l.Amenities {
			amenityCounts[amenity]++
		}
		report.FloorplansTotal += len(l.Floorplans)
		report.AvailableUnits += len(l.AvailableUnits)
	}

	report.TotalBuildings = len(buildings)
	if report.PricedListings > 0 {
		report.AveragePrice = round2(priceSum / float64(report.PricedListings))
		report.MinPrice = round2(report.MinPrice)
		report.MaxPrice = round2(report.MaxPrice)
	}

	for hood := range neighborhoods {
		report.Neighborhoods = append(report.Neighborhoods, hood)
	}
	sort.Strings(report.Neighborhoods)

	for name, count := range amenityCounts {
		report.TopAmenities = append(report.TopAmenities, models.AmenityCount{Name: name, Count: count})
	}
	sort.Slice(report.TopAmenities, func(i, j int) bool {
		if report.TopAmenities[i].Count != report.TopAmenities[j].Count {
			return report.TopAmenities[i].Count > report.TopAmenities[j].Count
		}
		return report.TopAmenities[i].Name < report.TopAmenities[j].Name
	})
	if len(report.TopAmenities) > topAmenityCount {
		report.TopAmenities = report.TopAmenities[:topAmenityCount]
	}

	return report
}

// Log writes the batch report to the log stream.
func (s *StatsService) Log(r *models.BatchReport) {
	s.logger.Info("[stats] %d listings across %d buildings", r.TotalListings, r.TotalBuildings)
	s.logger.Info("[stats] %d floorplans, %d available units", r.FloorplansTotal, r.AvailableUnits)

	if r.PricedListings > 0 {
		s.logger.Info("[stats] price range: $%.2f - $%.2f", r.MinPrice, r.MaxPrice)
		s.logger.Info("[stats] average price: $%.2f", r.AveragePrice)
	}

	if len(r.BedroomCounts) > 0 {
		s.logger.Info("[stats] bedroom distribution:")
		beds := make([]string, 0, len(r.BedroomCounts))
		for b := range r.BedroomCounts {
			beds = append(beds, b)
		}
		sort.Strings(beds)
		for _, b := range beds {
			s.logger.Info("[stats]   %s bedroom(s): %d listings", b, r.BedroomCounts[b])
		}
	}

	if len(r.Neighborhoods) > 0 {
		s.logger.Info("[stats] listings in %d neighborhoods:", len(r.Neighborhoods))
		for _, hood := range r.Neighborhoods {
			s.logger.Info("[stats]   - %s", hood)
		}
	}

	if len(r.TopAmenities) > 0 {
		s.logger.Info("[stats] top amenities:")
		for _, a := range r.TopAmenities {
			s.logger.Info("[stats]   - %s: %d listings", a.Name, a.Count)
		}
	}
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
