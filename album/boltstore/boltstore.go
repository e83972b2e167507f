// Package boltstore is an implementation of the album store using
// BoltDB for storing locations and photos persistently
package boltstore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"sort"
	"time"

	"bitbucket.org/kleinnic74/pinboard/album"
	"bitbucket.org/kleinnic74/pinboard/domain"
	"bitbucket.org/kleinnic74/pinboard/logging"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
)

var (
	locationsBucket = []byte("locations")
	photosBucket    = []byte("photos")
	contentBucket   = []byte("content")
	byLocBucket     = []byte("byloc")
	hashesBucket    = []byte("hashes")
)

// BoltStore uses BoltDB as the storage implementation for locations
// and their photos. All mutations run in a single update transaction,
// readers never observe partial writes.
type BoltStore struct {
	db       *bolt.DB
	onChange album.ChangeFunc
}

// storedPhoto carries the per-location insertion sequence along with
// the photo meta-data
type storedPhoto struct {
	domain.Photo
	Seq uint64 `json:"seq"`
}

// NewBoltStore creates a new store on the given BoltDB instance
func NewBoltStore(db *bolt.DB) (album.ClosableStore, error) {
	for _, name := range [][]byte{locationsBucket, photosBucket, contentBucket, byLocBucket, hashesBucket} {
		if err := createBucket(db, name); err != nil {
			return nil, err
		}
	}
	return &BoltStore{db: db}, nil
}

func createBucket(db *bolt.DB, name []byte) error {
	return db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(name)
		return err
	})
}

// Close closes this store
func (store *BoltStore) Close() {
	store.db.Close()
}

func (store *BoltStore) OnChange(f album.ChangeFunc) {
	store.onChange = f
}

func (store *BoltStore) publish(changes []domain.Change) {
	if store.onChange == nil {
		return
	}
	for _, c := range changes {
		store.onChange(c)
	}
}

func (store *BoltStore) CreateLocation(ctx context.Context, lat, lon float64) (*domain.Location, error) {
	loc, err := domain.NewLocation(lat, lon)
	if err != nil {
		return nil, err
	}
	encoded, err := json.Marshal(loc)
	if err != nil {
		return nil, err
	}
	err = store.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(locationsBucket).Put([]byte(loc.ID), encoded)
	})
	if err != nil {
		return nil, err
	}
	store.publish([]domain.Change{{Entity: domain.EntityLocation, Op: domain.OpCreated, ID: string(loc.ID)}})
	return loc, nil
}

func (store *BoltStore) GetLocation(ctx context.Context, id domain.LocationID) (*domain.Location, error) {
	var found *domain.Location
	err := store.db.View(func(tx *bolt.Tx) error {
		loc, err := getLocation(tx, id)
		if err != nil {
			return err
		}
		found = loc
		return nil
	})
	return found, err
}

func getLocation(tx *bolt.Tx, id domain.LocationID) (*domain.Location, error) {
	data := tx.Bucket(locationsBucket).Get([]byte(id))
	if data == nil {
		return nil, album.NotFound(string(id))
	}
	var loc domain.Location
	if err := json.Unmarshal(data, &loc); err != nil {
		return nil, err
	}
	return &loc, nil
}

// ListLocations returns all locations ordered by latitude descending
func (store *BoltStore) ListLocations(ctx context.Context) ([]*domain.Location, error) {
	found := make([]*domain.Location, 0)
	err := store.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(locationsBucket).ForEach(func(k, v []byte) error {
			var loc domain.Location
			if err := json.Unmarshal(v, &loc); err != nil {
				return err
			}
			found = append(found, &loc)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(found, func(i, j int) bool {
		if found[i].Latitude != found[j].Latitude {
			return found[i].Latitude > found[j].Latitude
		}
		return found[i].Created.Before(found[j].Created)
	})
	return found, nil
}

// DeleteLocation removes the location and cascades to all its photos
func (store *BoltStore) DeleteLocation(ctx context.Context, id domain.LocationID) error {
	changes := []domain.Change{{Entity: domain.EntityLocation, Op: domain.OpDeleted, ID: string(id)}}
	err := store.db.Update(func(tx *bolt.Tx) error {
		if _, err := getLocation(tx, id); err != nil {
			return err
		}
		if _, err := deletePhotosOf(tx, id); err != nil {
			return err
		}
		return tx.Bucket(locationsBucket).Delete([]byte(id))
	})
	if err != nil {
		return err
	}
	store.publish(changes)
	return nil
}

func (store *BoltStore) updateLocation(ctx context.Context, id domain.LocationID, f func(*domain.Location)) error {
	err := store.db.Update(func(tx *bolt.Tx) error {
		loc, err := getLocation(tx, id)
		if err != nil {
			return err
		}
		f(loc)
		encoded, err := json.Marshal(loc)
		if err != nil {
			return err
		}
		return tx.Bucket(locationsBucket).Put([]byte(id), encoded)
	})
	if err != nil {
		return err
	}
	store.publish([]domain.Change{{Entity: domain.EntityLocation, Op: domain.OpUpdated, ID: string(id)}})
	return nil
}

func (store *BoltStore) SetBusy(ctx context.Context, id domain.LocationID, busy bool) error {
	return store.updateLocation(ctx, id, func(loc *domain.Location) {
		loc.Busy = busy
	})
}

func (store *BoltStore) SetTotalPages(ctx context.Context, id domain.LocationID, pages int) error {
	return store.updateLocation(ctx, id, func(loc *domain.Location) {
		loc.TotalPages = pages
	})
}

// AddPhoto stores a fully downloaded payload as a new photo of the
// given location. A payload already stored for this location is
// rejected with PhotoAlreadyExists.
func (store *BoltStore) AddPhoto(ctx context.Context, location domain.LocationID, content []byte) (*domain.Photo, error) {
	photo := storedPhoto{
		Photo: domain.Photo{
			ID:       domain.PhotoID(uuid.New().String()),
			Location: location,
			Format:   domain.DetectFormat(content),
			Size:     int64(len(content)),
			Hash:     domain.HashOf(content),
			Added:    time.Now(),
		},
	}
	err := store.db.Update(func(tx *bolt.Tx) error {
		if _, err := getLocation(tx, location); err != nil {
			return err
		}
		hashes, err := tx.Bucket(hashesBucket).CreateBucketIfNotExists([]byte(location))
		if err != nil {
			return err
		}
		if existing := hashes.Get([]byte(photo.Hash)); existing != nil {
			return album.PhotoAlreadyExists(string(existing))
		}
		byLoc, err := tx.Bucket(byLocBucket).CreateBucketIfNotExists([]byte(location))
		if err != nil {
			return err
		}
		photo.Seq, err = byLoc.NextSequence()
		if err != nil {
			return err
		}
		if err := byLoc.Put(seqKey(photo.Seq), []byte(photo.ID)); err != nil {
			return err
		}
		encoded, err := json.Marshal(&photo)
		if err != nil {
			return err
		}
		if err := tx.Bucket(photosBucket).Put([]byte(photo.ID), encoded); err != nil {
			return err
		}
		if err := tx.Bucket(contentBucket).Put([]byte(photo.ID), content); err != nil {
			return err
		}
		return hashes.Put([]byte(photo.Hash), []byte(photo.ID))
	})
	if err != nil {
		return nil, err
	}
	store.publish([]domain.Change{{Entity: domain.EntityPhoto, Op: domain.OpCreated, ID: string(photo.ID), Location: location}})
	return &photo.Photo, nil
}

func (store *BoltStore) GetPhoto(ctx context.Context, id domain.PhotoID) (*domain.Photo, error) {
	var found *domain.Photo
	err := store.db.View(func(tx *bolt.Tx) error {
		photo, err := getPhoto(tx, id)
		if err != nil {
			return err
		}
		found = &photo.Photo
		return nil
	})
	return found, err
}

func getPhoto(tx *bolt.Tx, id domain.PhotoID) (*storedPhoto, error) {
	data := tx.Bucket(photosBucket).Get([]byte(id))
	if data == nil {
		return nil, album.NotFound(string(id))
	}
	var photo storedPhoto
	if err := json.Unmarshal(data, &photo); err != nil {
		return nil, err
	}
	return &photo, nil
}

func (store *BoltStore) Content(ctx context.Context, id domain.PhotoID) ([]byte, *domain.Photo, error) {
	var content []byte
	var found *domain.Photo
	err := store.db.View(func(tx *bolt.Tx) error {
		photo, err := getPhoto(tx, id)
		if err != nil {
			return err
		}
		data := tx.Bucket(contentBucket).Get([]byte(id))
		if data == nil {
			return album.NotFound(string(id))
		}
		content = make([]byte, len(data))
		copy(content, data)
		found = &photo.Photo
		return nil
	})
	return content, found, err
}

// ListPhotos returns the photos of the given location in insertion
// order
func (store *BoltStore) ListPhotos(ctx context.Context, location domain.LocationID) ([]*domain.Photo, error) {
	logger := logging.From(ctx).Named("boltstore")
	found := make([]*domain.Photo, 0)
	err := store.db.View(func(tx *bolt.Tx) error {
		if _, err := getLocation(tx, location); err != nil {
			return err
		}
		byLoc := tx.Bucket(byLocBucket).Bucket([]byte(location))
		if byLoc == nil {
			return nil
		}
		return byLoc.ForEach(func(k, v []byte) error {
			photo, err := getPhoto(tx, domain.PhotoID(v))
			if err != nil {
				logger.Warn("Dangling photo reference", zap.String("photo", string(v)))
				return nil
			}
			found = append(found, &photo.Photo)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// DeletePhoto removes one photo and its payload
func (store *BoltStore) DeletePhoto(ctx context.Context, id domain.PhotoID) error {
	var location domain.LocationID
	err := store.db.Update(func(tx *bolt.Tx) error {
		photo, err := getPhoto(tx, id)
		if err != nil {
			return err
		}
		location = photo.Location
		return deletePhoto(tx, photo)
	})
	if err != nil {
		return err
	}
	store.publish([]domain.Change{{Entity: domain.EntityPhoto, Op: domain.OpDeleted, ID: string(id), Location: location}})
	return nil
}

func deletePhoto(tx *bolt.Tx, photo *storedPhoto) error {
	if err := tx.Bucket(photosBucket).Delete([]byte(photo.ID)); err != nil {
		return err
	}
	if err := tx.Bucket(contentBucket).Delete([]byte(photo.ID)); err != nil {
		return err
	}
	if byLoc := tx.Bucket(byLocBucket).Bucket([]byte(photo.Location)); byLoc != nil {
		if err := byLoc.Delete(seqKey(photo.Seq)); err != nil {
			return err
		}
	}
	if hashes := tx.Bucket(hashesBucket).Bucket([]byte(photo.Location)); hashes != nil {
		if err := hashes.Delete([]byte(photo.Hash)); err != nil {
			return err
		}
	}
	return nil
}

// DeleteAllPhotos removes every photo of the location in one
// transaction, a no-op if there are none
func (store *BoltStore) DeleteAllPhotos(ctx context.Context, location domain.LocationID) error {
	var deleted []domain.PhotoID
	err := store.db.Update(func(tx *bolt.Tx) error {
		if _, err := getLocation(tx, location); err != nil {
			return err
		}
		var err error
		deleted, err = deletePhotosOf(tx, location)
		return err
	})
	if err != nil {
		return err
	}
	changes := make([]domain.Change, 0, len(deleted))
	for _, id := range deleted {
		changes = append(changes, domain.Change{Entity: domain.EntityPhoto, Op: domain.OpDeleted, ID: string(id), Location: location})
	}
	store.publish(changes)
	return nil
}

func deletePhotosOf(tx *bolt.Tx, location domain.LocationID) ([]domain.PhotoID, error) {
	var deleted []domain.PhotoID
	byLoc := tx.Bucket(byLocBucket).Bucket([]byte(location))
	if byLoc == nil {
		return nil, nil
	}
	if err := byLoc.ForEach(func(k, v []byte) error {
		id := domain.PhotoID(v)
		if err := tx.Bucket(photosBucket).Delete([]byte(id)); err != nil {
			return err
		}
		if err := tx.Bucket(contentBucket).Delete([]byte(id)); err != nil {
			return err
		}
		deleted = append(deleted, id)
		return nil
	}); err != nil {
		return nil, err
	}
	if err := tx.Bucket(byLocBucket).DeleteBucket([]byte(location)); err != nil {
		return nil, err
	}
	if hashes := tx.Bucket(hashesBucket).Bucket([]byte(location)); hashes != nil {
		if err := tx.Bucket(hashesBucket).DeleteBucket([]byte(location)); err != nil {
			return nil, err
		}
	}
	return deleted, nil
}

// ResetBusy clears the busy flag on all locations, returning the ids
// that were still marked busy
func (store *BoltStore) ResetBusy(ctx context.Context) ([]domain.LocationID, error) {
	var stuck []domain.LocationID
	err := store.db.Update(func(tx *bolt.Tx) error {
		locations := tx.Bucket(locationsBucket)
		// collect first, a bucket must not be modified while iterating
		var busy []*domain.Location
		if err := locations.ForEach(func(k, v []byte) error {
			var loc domain.Location
			if err := json.Unmarshal(v, &loc); err != nil {
				return err
			}
			if loc.Busy {
				busy = append(busy, &loc)
			}
			return nil
		}); err != nil {
			return err
		}
		for _, loc := range busy {
			loc.Busy = false
			encoded, err := json.Marshal(loc)
			if err != nil {
				return err
			}
			if err := locations.Put([]byte(loc.ID), encoded); err != nil {
				return err
			}
			stuck = append(stuck, loc.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	changes := make([]domain.Change, 0, len(stuck))
	for _, id := range stuck {
		changes = append(changes, domain.Change{Entity: domain.EntityLocation, Op: domain.OpUpdated, ID: string(id)})
	}
	store.publish(changes)
	return stuck, nil
}

func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}
