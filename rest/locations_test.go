package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"bitbucket.org/kleinnic74/pinboard/album"
	"bitbucket.org/kleinnic74/pinboard/domain"
	"bitbucket.org/kleinnic74/pinboard/syncer"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory album.Store for handler tests
type memStore struct {
	mu        sync.Mutex
	locations map[domain.LocationID]*domain.Location
	photos    map[domain.PhotoID]*domain.Photo
	content   map[domain.PhotoID][]byte
	order     map[domain.LocationID][]domain.PhotoID
	onChange  album.ChangeFunc
}

func newMemStore() *memStore {
	return &memStore{
		locations: make(map[domain.LocationID]*domain.Location),
		photos:    make(map[domain.PhotoID]*domain.Photo),
		content:   make(map[domain.PhotoID][]byte),
		order:     make(map[domain.LocationID][]domain.PhotoID),
	}
}

func (s *memStore) OnChange(f album.ChangeFunc) {
	s.onChange = f
}

func (s *memStore) CreateLocation(ctx context.Context, lat, lon float64) (*domain.Location, error) {
	loc, err := domain.NewLocation(lat, lon)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locations[loc.ID] = loc
	return loc, nil
}

func (s *memStore) GetLocation(ctx context.Context, id domain.LocationID) (*domain.Location, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	loc, ok := s.locations[id]
	if !ok {
		return nil, album.NotFound(string(id))
	}
	copied := *loc
	return &copied, nil
}

func (s *memStore) ListLocations(ctx context.Context) ([]*domain.Location, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	found := make([]*domain.Location, 0, len(s.locations))
	for _, loc := range s.locations {
		copied := *loc
		found = append(found, &copied)
	}
	return found, nil
}

func (s *memStore) DeleteLocation(ctx context.Context, id domain.LocationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.locations[id]; !ok {
		return album.NotFound(string(id))
	}
	for _, photoID := range s.order[id] {
		delete(s.photos, photoID)
		delete(s.content, photoID)
	}
	delete(s.order, id)
	delete(s.locations, id)
	return nil
}

func (s *memStore) SetBusy(ctx context.Context, id domain.LocationID, busy bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	loc, ok := s.locations[id]
	if !ok {
		return album.NotFound(string(id))
	}
	loc.Busy = busy
	return nil
}

func (s *memStore) SetTotalPages(ctx context.Context, id domain.LocationID, pages int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	loc, ok := s.locations[id]
	if !ok {
		return album.NotFound(string(id))
	}
	loc.TotalPages = pages
	return nil
}

func (s *memStore) AddPhoto(ctx context.Context, location domain.LocationID, content []byte) (*domain.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.locations[location]; !ok {
		return nil, album.NotFound(string(location))
	}
	photo := &domain.Photo{
		ID:       domain.PhotoID(time.Now().Format(time.RFC3339Nano)),
		Location: location,
		Format:   domain.DetectFormat(content),
		Size:     int64(len(content)),
		Hash:     domain.HashOf(content),
		Added:    time.Now(),
	}
	s.photos[photo.ID] = photo
	s.content[photo.ID] = content
	s.order[location] = append(s.order[location], photo.ID)
	return photo, nil
}

func (s *memStore) GetPhoto(ctx context.Context, id domain.PhotoID) (*domain.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	photo, ok := s.photos[id]
	if !ok {
		return nil, album.NotFound(string(id))
	}
	copied := *photo
	return &copied, nil
}

func (s *memStore) Content(ctx context.Context, id domain.PhotoID) ([]byte, *domain.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	photo, ok := s.photos[id]
	if !ok {
		return nil, nil, album.NotFound(string(id))
	}
	copied := *photo
	return s.content[id], &copied, nil
}

func (s *memStore) ListPhotos(ctx context.Context, location domain.LocationID) ([]*domain.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.locations[location]; !ok {
		return nil, album.NotFound(string(location))
	}
	found := make([]*domain.Photo, 0, len(s.order[location]))
	for _, id := range s.order[location] {
		copied := *s.photos[id]
		found = append(found, &copied)
	}
	return found, nil
}

func (s *memStore) DeletePhoto(ctx context.Context, id domain.PhotoID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	photo, ok := s.photos[id]
	if !ok {
		return album.NotFound(string(id))
	}
	delete(s.photos, id)
	delete(s.content, id)
	order := s.order[photo.Location]
	for i, photoID := range order {
		if photoID == id {
			s.order[photo.Location] = append(order[:i], order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *memStore) DeleteAllPhotos(ctx context.Context, location domain.LocationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.locations[location]; !ok {
		return album.NotFound(string(location))
	}
	for _, id := range s.order[location] {
		delete(s.photos, id)
		delete(s.content, id)
	}
	delete(s.order, location)
	return nil
}

func (s *memStore) ResetBusy(ctx context.Context) ([]domain.LocationID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var stuck []domain.LocationID
	for id, loc := range s.locations {
		if loc.Busy {
			loc.Busy = false
			stuck = append(stuck, id)
		}
	}
	return stuck, nil
}

type nullSearch struct{}

func (nullSearch) Search(ctx context.Context, lat, lon float64, page int) (*domain.PhotoPage, error) {
	return &domain.PhotoPage{TotalPages: 1}, nil
}

type nullFetcher struct{}

func (nullFetcher) Fetch(ctx context.Context, ref domain.PhotoRef) ([]byte, error) {
	return []byte(ref.RemoteID), nil
}

func newTestRouter(store album.Store) *mux.Router {
	engine := syncer.NewEngine(store, nullSearch{}, nullFetcher{}, nil, syncer.Config{})
	router := mux.NewRouter()
	NewLocationsHandler(store, engine).InitRoutes(router)
	NewPhotosHandler(store).InitRoutes(router)
	return router
}

func doRequest(router *mux.Router, method, path string, body []byte) *http.Response {
	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr.Result()
}

func checkResponseCode(t *testing.T, expected int, response *http.Response) {
	t.Helper()
	if expected != response.StatusCode {
		t.Fatalf("Bad response code: expected %d, got %d (%s)", expected, response.StatusCode, response.Status)
	}
}

func TestCreateAndListLocations(t *testing.T) {
	store := newMemStore()
	router := newTestRouter(store)

	res := doRequest(router, http.MethodPost, "/locations", []byte(`{"lat":47.9,"lon":18.8}`))
	checkResponseCode(t, http.StatusCreated, res)
	var created domain.Location
	require.NoError(t, json.NewDecoder(res.Body).Decode(&created))
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.Busy)

	res = doRequest(router, http.MethodGet, "/locations", nil)
	checkResponseCode(t, http.StatusOK, res)
	var listed []domain.Location
	require.NoError(t, json.NewDecoder(res.Body).Decode(&listed))
	assert.Len(t, listed, 1)
}

func TestCreateLocationRejectsInvalidCoordinates(t *testing.T) {
	router := newTestRouter(newMemStore())
	res := doRequest(router, http.MethodPost, "/locations", []byte(`{"lat":95.0,"lon":18.8}`))
	checkResponseCode(t, http.StatusBadRequest, res)
}

func TestDeleteLocation(t *testing.T) {
	store := newMemStore()
	router := newTestRouter(store)
	loc, err := store.CreateLocation(context.Background(), 47.9, 18.8)
	require.NoError(t, err)

	checkResponseCode(t, http.StatusNoContent, doRequest(router, http.MethodDelete, "/locations/"+string(loc.ID), nil))
	checkResponseCode(t, http.StatusNotFound, doRequest(router, http.MethodDelete, "/locations/"+string(loc.ID), nil))
}

func TestPopulateAccepted(t *testing.T) {
	store := newMemStore()
	router := newTestRouter(store)
	loc, err := store.CreateLocation(context.Background(), 47.9, 18.8)
	require.NoError(t, err)

	res := doRequest(router, http.MethodPost, "/locations/"+string(loc.ID)+"/photos", []byte(`{"page":2}`))
	checkResponseCode(t, http.StatusAccepted, res)
}

func TestPopulateUnknownLocation(t *testing.T) {
	router := newTestRouter(newMemStore())
	res := doRequest(router, http.MethodPost, "/locations/unknown/photos", nil)
	checkResponseCode(t, http.StatusNotFound, res)
}

func TestPhotoLifecycle(t *testing.T) {
	store := newMemStore()
	router := newTestRouter(store)
	ctx := context.Background()
	loc, err := store.CreateLocation(ctx, 47.9, 18.8)
	require.NoError(t, err)
	payload := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}
	photo, err := store.AddPhoto(ctx, loc.ID, payload)
	require.NoError(t, err)

	res := doRequest(router, http.MethodGet, "/locations/"+string(loc.ID)+"/photos", nil)
	checkResponseCode(t, http.StatusOK, res)
	var listed []domain.Photo
	require.NoError(t, json.NewDecoder(res.Body).Decode(&listed))
	require.Len(t, listed, 1)

	res = doRequest(router, http.MethodGet, "/photos/"+string(photo.ID)+"/view", nil)
	checkResponseCode(t, http.StatusOK, res)
	assert.Equal(t, "image/jpeg", res.Header.Get("Content-Type"))

	checkResponseCode(t, http.StatusNoContent, doRequest(router, http.MethodDelete, "/photos/"+string(photo.ID), nil))
	checkResponseCode(t, http.StatusNotFound, doRequest(router, http.MethodDelete, "/photos/"+string(photo.ID), nil))
}
