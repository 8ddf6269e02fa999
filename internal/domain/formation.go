package domain

import (
	"strings"
	"time"
)

// ScrapedCourse is one row of the formations cache as written by the scraper.
// Every text field is untrusted and may carry escaped Unicode.
type ScrapedCourse struct {
	ID           string
	Titre        string
	Lieu         string
	Organisateur string
	Debut        string // ISO-8601 date (YYYY-MM-DD)
	Places       string
	PlacesStatus string
	PlacesColor  string
	URL          string
	Active       bool
}

// Formation is the client-facing representation of a cached course.
type Formation struct {
	ID           string `json:"id"`
	Titre        string `json:"titre"`
	Lieu         string `json:"lieu"`
	Organisateur string `json:"organisateur"`
	Date         string `json:"date"`
	Places       string `json:"places"`
	PlacesColor  string `json:"placesColor"`
	URL          string `json:"url"`
	Description  string `json:"description"`
}

// Filters narrows the cache read by free-text substrings.
type Filters struct {
	Region string `json:"region,omitempty"`
	Type   string `json:"type,omitempty"`
}

// Normalize trims both filters; blank values mean "no filter".
func (f Filters) Normalize() Filters {
	return Filters{
		Region: strings.TrimSpace(f.Region),
		Type:   strings.TrimSpace(f.Type),
	}
}

// PlacesColor is the availability indicator shown next to a course.
type PlacesColor string

const (
	PlacesRed    PlacesColor = "red"
	PlacesOrange PlacesColor = "orange"
	PlacesGreen  PlacesColor = "green"
	PlacesGray   PlacesColor = "gray"
)

// ParsePlacesColor maps a raw indicator to a known colour, defaulting to green.
func ParsePlacesColor(raw string) PlacesColor {
	switch c := PlacesColor(strings.ToLower(strings.TrimSpace(raw))); c {
	case PlacesRed, PlacesOrange, PlacesGreen, PlacesGray:
		return c
	case "grey":
		return PlacesGray
	default:
		return PlacesGreen
	}
}

// IngestReport summarises one scrape-and-store run.
type IngestReport struct {
	StartedAt   time.Time
	Scraped     int
	Upserted    int
	Deactivated int
	InvalidURLs int
}
