package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"padmapper-scraper/models"
)

// PostgresWriter persists scraped listings to PostgreSQL. It is an optional
// downstream sink; the JSON artifacts remain the primary output.
type PostgresWriter struct {
	db *sql.DB
}

// NewPostgresWriter opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresWriter.
func NewPostgresWriter(dsn string) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	pw := &PostgresWriter{db: db}
	if err := pw.migrate(); err != nil {
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return pw, nil
}

func (pw *PostgresWriter) migrate() error {
	_, err := pw.db.Exec(`
		CREATE TABLE IF NOT EXISTS listings (
			listing_id   TEXT        PRIMARY KEY,
			url          TEXT        NOT NULL,
			title        TEXT,
			price        TEXT,
			bedrooms     TEXT,
			bathrooms    TEXT,
			square_feet  TEXT,
			address      TEXT,
			neighborhood TEXT,
			amenities    JSONB       NOT NULL DEFAULT '[]',
			floorplans   JSONB       NOT NULL DEFAULT '[]',
			units        JSONB       NOT NULL DEFAULT '[]',
			last_scraped TIMESTAMPTZ NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_listings_neighborhood ON listings(neighborhood);
		CREATE INDEX IF NOT EXISTS idx_listings_last_scraped ON listings(last_scraped);
	`)
	return err
}

// Write upserts the batch, the latest scrape winning per listing id.
func (pw *PostgresWriter) Write(listings []*models.Listing) error {
	if len(listings) == 0 {
		return nil
	}

	const batchSize = 50
	for i := 0; i < len(listings); i += batchSize {
		end := i + batchSize
		if end > len(listings) {
			end = len(listings)
		}
		if err := pw.insertBatch(listings[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func (pw *PostgresWriter) insertBatch(batch []*models.Listing) error {
	const cols = 13
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*cols)

	for idx, l := range batch {
		base := idx * cols
		placeholders := make([]string, cols)
		for c := 0; c < cols; c++ {
			placeholders[c] = fmt.Sprintf("$%d", base+c+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(placeholders, ",")+")")

		amenities, err := json.Marshal(orEmpty(l.Amenities))
		if err != nil {
			return fmt.Errorf("postgres: marshal amenities: %w", err)
		}
		fps := l.Floorplans
		if fps == nil {
			fps = []models.Floorplan{}
		}
		floorplans, err := json.Marshal(fps)
		if err != nil {
			return fmt.Errorf("postgres: marshal floorplans: %w", err)
		}
		us := l.AvailableUnits
		if us == nil {
			us = []models.Unit{}
		}
		units, err := json.Marshal(us)
		if err != nil {
			return fmt.Errorf("postgres: marshal units: %w", err)
		}

		valueArgs = append(valueArgs,
			l.ID, l.URL, l.Title, l.Price, l.Bedrooms, l.Bathrooms,
			l.SquareFeet, l.Address, l.Neighborhood,
			string(amenities), string(floorplans), string(units), l.LastScraped)
	}

	query := fmt.Sprintf(`
		INSERT INTO listings (listing_id, url, title, price, bedrooms, bathrooms,
			square_feet, address, neighborhood, amenities, floorplans, units, last_scraped)
		VALUES %s
		ON CONFLICT (listing_id) DO UPDATE SET
			url = EXCLUDED.url,
			title = EXCLUDED.title,
			price = EXCLUDED.price,
			bedrooms = EXCLUDED.bedrooms,
			bathrooms = EXCLUDED.bathrooms,
			square_feet = EXCLUDED.square_feet,
			address = EXCLUDED.address,
			neighborhood = EXCLUDED.neighborhood,
			amenities = EXCLUDED.amenities,
			floorplans = EXCLUDED.floorplans,
			units = EXCLUDED.units,
			last_scraped = EXCLUDED.last_scraped
	`, strings.Join(valueStrings, ","))

	_, err := pw.db.Exec(query, valueArgs...)
	return err
}

func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
