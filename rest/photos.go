package rest

import (
	"bytes"
	"net/http"

	"bitbucket.org/kleinnic74/pinboard/album"
	"bitbucket.org/kleinnic74/pinboard/domain"
	"github.com/gorilla/mux"
)

// PhotosHandler serves individual photos and their payloads
type PhotosHandler struct {
	store album.Store
}

func NewPhotosHandler(store album.Store) *PhotosHandler {
	return &PhotosHandler{store: store}
}

func (h *PhotosHandler) InitRoutes(r *mux.Router) {
	r.HandleFunc("/photos/{id}/view", h.getPhotoImage).Methods(http.MethodGet)
	r.HandleFunc("/photos/{id}", h.getPhoto).Methods(http.MethodGet)
	r.HandleFunc("/photos/{id}", h.deletePhoto).Methods(http.MethodDelete)
}

func (h *PhotosHandler) getPhoto(w http.ResponseWriter, r *http.Request) {
	id := domain.PhotoID(mux.Vars(r)["id"])
	photo, err := h.store.GetPhoto(r.Context(), id)
	if err != nil {
		respondWithError(w, statusOf(err), err)
		return
	}
	respondWithJSON(w, http.StatusOK, photo)
}

func (h *PhotosHandler) getPhotoImage(w http.ResponseWriter, r *http.Request) {
	id := domain.PhotoID(mux.Vars(r)["id"])
	content, photo, err := h.store.Content(r.Context(), id)
	if err != nil {
		respondWithError(w, statusOf(err), err)
		return
	}
	respondWithBinary(w, photo.Format.Mime, photo.Size, bytes.NewReader(content))
}

func (h *PhotosHandler) deletePhoto(w http.ResponseWriter, r *http.Request) {
	id := domain.PhotoID(mux.Vars(r)["id"])
	if err := h.store.DeletePhoto(r.Context(), id); err != nil {
		respondWithError(w, statusOf(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
