package storage

import "padmapper-scraper/models"

// RunWriter persists the artifacts of one scraping run.
type RunWriter interface {
	// WriteListing persists one listing as an individual artifact.
	WriteListing(l *models.Listing) error
	// WriteBatch persists the full batch as one aggregate artifact.
	WriteBatch(batch []*models.Listing) error
	// WriteSnapshot persists a timestamped snapshot of a raw payload.
	WriteSnapshot(name string, payload any) error
}

// BatchWriter is the interface any downstream storage backend must satisfy.
type BatchWriter interface {
	Write(listings []*models.Listing) error
	Close() error
}
