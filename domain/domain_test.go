package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLocationValidatesCoordinates(t *testing.T) {
	data := []struct {
		lat, lon float64
		valid    bool
	}{
		{47.904175, 18.849911, true},
		{90, 180, true},
		{-90, -180, true},
		{90.0001, 0, false},
		{-91, 0, false},
		{0, 180.5, false},
		{0, -181, false},
	}
	for _, d := range data {
		loc, err := NewLocation(d.lat, d.lon)
		if d.valid {
			require.NoError(t, err)
			assert.NotEmpty(t, loc.ID)
			assert.False(t, loc.Busy)
		} else {
			require.Error(t, err)
			assert.IsType(t, InvalidCoordinates{}, err)
		}
	}
}

func TestHashOfIsStable(t *testing.T) {
	a := HashOf([]byte("payload"))
	b := HashOf([]byte("payload"))
	c := HashOf([]byte("other payload"))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestDetectFormat(t *testing.T) {
	jpeg := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}
	format := DetectFormat(jpeg)
	assert.Equal(t, "jpg", format.ID)
	assert.Equal(t, "image/jpeg", format.Mime)

	format = DetectFormat([]byte("not an image"))
	assert.Equal(t, "bin", format.ID)
	assert.Equal(t, "application/octet-stream", format.Mime)
}
