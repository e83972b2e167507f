// Package album defines the persistent store of pinned locations and
// their photos. Implementations must make every mutation atomic with
// respect to readers and emit a change event after each commit.
package album

import (
	"context"

	"bitbucket.org/kleinnic74/pinboard/domain"
)

// ChangeFunc is invoked after each committed mutation
type ChangeFunc func(domain.Change)

// Store is the persistent storage of locations and photos. Photos are
// exclusively owned by their location, deleting a location cascades to
// its photos. ListLocations is ordered by latitude descending,
// ListPhotos by insertion order.
type Store interface {
	CreateLocation(ctx context.Context, lat, lon float64) (*domain.Location, error)
	GetLocation(ctx context.Context, id domain.LocationID) (*domain.Location, error)
	ListLocations(ctx context.Context) ([]*domain.Location, error)
	DeleteLocation(ctx context.Context, id domain.LocationID) error
	SetBusy(ctx context.Context, id domain.LocationID, busy bool) error
	SetTotalPages(ctx context.Context, id domain.LocationID, pages int) error

	AddPhoto(ctx context.Context, location domain.LocationID, content []byte) (*domain.Photo, error)
	GetPhoto(ctx context.Context, id domain.PhotoID) (*domain.Photo, error)
	// Content returns the binary payload of the given photo along with
	// its meta-data
	Content(ctx context.Context, id domain.PhotoID) ([]byte, *domain.Photo, error)
	ListPhotos(ctx context.Context, location domain.LocationID) ([]*domain.Photo, error)
	DeletePhoto(ctx context.Context, id domain.PhotoID) error
	DeleteAllPhotos(ctx context.Context, location domain.LocationID) error

	// ResetBusy clears the busy flag on every location still marked
	// busy, returning their ids. Used by the startup reconciliation
	// pass, a crash mid-cycle leaves the persisted flag stuck.
	ResetBusy(ctx context.Context) ([]domain.LocationID, error)

	// OnChange registers the change callback, must be set before the
	// store is shared between goroutines
	OnChange(ChangeFunc)
}

// ClosableStore is a Store that can be closed
type ClosableStore interface {
	Store

	Close()
}
