package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"padmapper-scraper/models"
)

func strPtr(s string) *string { return &s }

func TestWriteListingOmitsUnobservedFields(t *testing.T) {
	dir := t.TempDir()
	store, err := NewJSONStore(dir)
	if err != nil {
		t.Fatalf("NewJSONStore: %v", err)
	}

	l := &models.Listing{
		ID:          "123",
		URL:         "https://www.padmapper.com/buildings/p123",
		Title:       strPtr("The Grand"),
		Description: strPtr(""), // observed as empty, must be preserved
		LastScraped: time.Now(),
	}
	if err := store.WriteListing(l); err != nil {
		t.Fatalf("WriteListing: %v", err)
	}

	b, err := os.ReadFile(filepath.Join(store.RunDir(), "listing_123.json"))
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	content := string(b)

	if strings.Contains(content, `"price"`) {
		t.Error("unobserved price should be omitted")
	}
	if strings.Contains(content, `"bedrooms"`) {
		t.Error("unobserved bedrooms should be omitted")
	}
	if !strings.Contains(content, `"title": "The Grand"`) {
		t.Error("title missing from artifact")
	}
	if !strings.Contains(content, `"description": ""`) {
		t.Error("explicitly observed empty description should be preserved")
	}
}

func TestWriteBatchReadBatchRoundTrip(t *testing.T) {
	store, err := NewJSONStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewJSONStore: %v", err)
	}

	batch := []*models.Listing{
		{ID: "1", URL: "https://www.padmapper.com/buildings/p1", Price: strPtr("1200"), LastScraped: time.Now()},
		{ID: "2", URL: "https://www.padmapper.com/buildings/p2", LastScraped: time.Now()},
	}
	if err := store.WriteBatch(batch); err != nil {
		t.Fatalf("WriteBatch: %v", err)
	}

	got, err := store.ReadBatch()
	if err != nil {
		t.Fatalf("ReadBatch: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ReadBatch returned %d listings, want 2", len(got))
	}
	if got[0].ID != "1" || got[0].Price == nil || *got[0].Price != "1200" {
		t.Errorf("round trip lost data: %+v", got[0])
	}
	if got[1].Price != nil {
		t.Errorf("round trip invented a price: %+v", got[1])
	}
}

func TestWriteSnapshot(t *testing.T) {
	dir := t.TempDir()
	store, err := NewJSONStore(dir)
	if err != nil {
		t.Fatalf("NewJSONStore: %v", err)
	}

	payload := map[string]any{"strategy": "browser", "urls": []string{"a", "b"}}
	if err := store.WriteSnapshot("discovery", payload); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "discovery_*.json"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("expected one snapshot file, got %v (err %v)", matches, err)
	}

	b, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("snapshot is not valid JSON: %v", err)
	}
	if decoded["strategy"] != "browser" {
		t.Errorf("snapshot lost payload: %v", decoded)
	}
}
