package rest

import (
	"encoding/json"
	"net/http"

	"bitbucket.org/kleinnic74/pinboard/album"
	"bitbucket.org/kleinnic74/pinboard/domain"
	"bitbucket.org/kleinnic74/pinboard/syncer"
	"github.com/gorilla/mux"
)

// LocationsHandler exposes pinned locations and their populate
// operations. Populate and refresh are fire-and-forget, completion is
// observable on the event stream.
type LocationsHandler struct {
	store  album.Store
	engine *syncer.Engine
}

func NewLocationsHandler(store album.Store, engine *syncer.Engine) *LocationsHandler {
	return &LocationsHandler{store: store, engine: engine}
}

func (h *LocationsHandler) InitRoutes(r *mux.Router) {
	r.HandleFunc("/locations", h.createLocation).Methods(http.MethodPost)
	r.HandleFunc("/locations", h.listLocations).Methods(http.MethodGet)
	r.HandleFunc("/locations/{id}", h.deleteLocation).Methods(http.MethodDelete)
	r.HandleFunc("/locations/{id}/photos", h.listPhotos).Methods(http.MethodGet)
	r.HandleFunc("/locations/{id}/photos", h.populate).Methods(http.MethodPost)
	r.HandleFunc("/locations/{id}/refresh", h.refresh).Methods(http.MethodPost)
}

type newLocation struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

func (h *LocationsHandler) createLocation(w http.ResponseWriter, r *http.Request) {
	var body newLocation
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondWithError(w, http.StatusBadRequest, err)
		return
	}
	loc, err := h.store.CreateLocation(r.Context(), body.Latitude, body.Longitude)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, loc)
}

func (h *LocationsHandler) listLocations(w http.ResponseWriter, r *http.Request) {
	locations, err := h.store.ListLocations(r.Context())
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err)
		return
	}
	respondWithJSON(w, http.StatusOK, locations)
}

func (h *LocationsHandler) deleteLocation(w http.ResponseWriter, r *http.Request) {
	id := domain.LocationID(mux.Vars(r)["id"])
	if err := h.store.DeleteLocation(r.Context(), id); err != nil {
		respondWithError(w, statusOf(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *LocationsHandler) listPhotos(w http.ResponseWriter, r *http.Request) {
	id := domain.LocationID(mux.Vars(r)["id"])
	photos, err := h.store.ListPhotos(r.Context(), id)
	if err != nil {
		respondWithError(w, statusOf(err), err)
		return
	}
	respondWithJSON(w, http.StatusOK, photos)
}

type populateRequest struct {
	Page int `json:"page"`
}

func (h *LocationsHandler) populate(w http.ResponseWriter, r *http.Request) {
	id := domain.LocationID(mux.Vars(r)["id"])
	body := populateRequest{Page: 1}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			respondWithError(w, http.StatusBadRequest, err)
			return
		}
	}
	if body.Page < 1 {
		body.Page = 1
	}
	if err := h.engine.Populate(r.Context(), id, body.Page); err != nil {
		respondWithError(w, statusOf(err), err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *LocationsHandler) refresh(w http.ResponseWriter, r *http.Request) {
	id := domain.LocationID(mux.Vars(r)["id"])
	if err := h.engine.ReplaceCollection(r.Context(), id); err != nil {
		respondWithError(w, statusOf(err), err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func statusOf(err error) int {
	switch {
	case album.IsNotFound(err):
		return http.StatusNotFound
	case syncer.IsAlreadyInProgress(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
