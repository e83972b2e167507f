// Package domain holds the entities shared by the store, the sync
// engine and the REST layer: pinned locations, their photos and the
// change events emitted when either of them is mutated.
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// LocationID is the unique identifier of a Location
type LocationID string

// Location is a user-pinned geo-coordinate owning a set of photos.
// TotalPages is the number of result pages the remote search reported
// for this coordinate, 0 while unknown. Busy is true while a populate
// cycle is in flight for this location; it is a persisted projection
// of the sync engine's in-memory guard.
type Location struct {
	ID         LocationID `json:"id"`
	Latitude   float64    `json:"lat"`
	Longitude  float64    `json:"lon"`
	TotalPages int        `json:"totalPages"`
	Busy       bool       `json:"busy"`
	Created    time.Time  `json:"created"`
}

type InvalidCoordinates struct {
	Lat, Lon float64
}

func (err InvalidCoordinates) Error() string {
	return fmt.Sprintf("invalid coordinates (%f,%f)", err.Lat, err.Lon)
}

func NewLocation(lat, lon float64) (*Location, error) {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil, InvalidCoordinates{Lat: lat, Lon: lon}
	}
	return &Location{
		ID:        LocationID(uuid.New().String()),
		Latitude:  lat,
		Longitude: lon,
		Created:   time.Now(),
	}, nil
}
