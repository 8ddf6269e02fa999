package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePlacesColor(t *testing.T) {
	t.Parallel()

	cases := map[string]PlacesColor{
		"red":      PlacesRed,
		" Orange ": PlacesOrange,
		"GREEN":    PlacesGreen,
		"gray":     PlacesGray,
		"grey":     PlacesGray,
		"Grey":     PlacesGray,
		"":         PlacesGreen,
		"blue":     PlacesGreen,
		"complet":  PlacesGreen,
	}

	for raw, want := range cases {
		assert.Equal(t, want, ParsePlacesColor(raw), "raw %q", raw)
	}
}

func TestFiltersNormalize(t *testing.T) {
	t.Parallel()

	got := Filters{Region: "  Valais ", Type: "\tski\n"}.Normalize()
	assert.Equal(t, Filters{Region: "Valais", Type: "ski"}, got)
}
