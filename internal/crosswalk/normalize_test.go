package crosswalk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Patrick Mahomes", "PATRICK MAHOMES"},
		{"  patrick   mahomes  ", "PATRICK MAHOMES"},
		{"Odell Beckham Jr.", "ODELL BECKHAM"},
		{"Marvin Harrison Sr", "MARVIN HARRISON"},
		{"Robert Griffin III", "ROBERT GRIFFIN"},
		{"A.J. Brown", "AJ BROWN"},
		{"Ja'Marr Chase", "JAMARR CHASE"},
		{"Amon-Ra St. Brown", "AMON RA ST BROWN"},
		{"D'Andre Swift", "DANDRE SWIFT"},
		{"São Paulo", "SAO PAULO"},
		{"", ""},
		{"   ", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeName(tc.in), "input %q", tc.in)
	}
}

func TestNormalizeName_ConvergesAcrossProviders(t *testing.T) {
	// The same player as three providers spell him.
	a := NormalizeName("Odell Beckham Jr.")
	b := NormalizeName("odell beckham")
	c := NormalizeName("BECKHAM JR, ODELL") // comma form differs, must not panic
	assert.Equal(t, a, b)
	assert.NotEmpty(t, c)
}

func TestCompositeKey(t *testing.T) {
	key := CompositeKey("Odell Beckham Jr.", "bal", "wr")
	assert.Equal(t, "ODELL BECKHAM|BAL|WR", key)

	// Missing team and position still produce a stable key shape.
	assert.Equal(t, "ODELL BECKHAM||", CompositeKey("Odell Beckham Jr.", "", ""))
}
