package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/littlewalk/go-walk/models"
)

type breedsResponse struct {
	Breeds []*models.Breed `json:"breeds"`
	Total  int64           `json:"total"`
}

type portraitRequest struct {
	PortraitId string `json:"portraitId"`
}

func (s *server) createBreed(w http.ResponseWriter, r *http.Request) {
	var create models.BreedCreate
	if err := decodeBody(w, r, &create); err != nil {
		writeError(w, s.Logger, err)
		return
	}
	breed, err := s.Catalog.CreateBreed(r.Context(), create)
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, breed)
}

func (s *server) queryBreeds(w http.ResponseWriter, r *http.Request) {
	query := models.BreedQuery{Id: optionalString(r, "id"), Name: optionalString(r, "name")}
	if category := optionalString(r, "category"); category != nil {
		c := models.Category(*category)
		query.Category = &c
	}
	breeds, total, err := s.Catalog.QueryBreeds(r.Context(), query)
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, breedsResponse{breeds, total})
}

func (s *server) deleteBreed(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	deleted, err := s.Catalog.DeleteBreed(r.Context(), id)
	if err != nil {
		writeError(w, s.Logger, err)
		return
	} else if !deleted {
		writeError(w, s.Logger, fmt.Errorf("breed %s: %w", id, models.ErrNotFound))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) createDog(w http.ResponseWriter, r *http.Request) {
	var create models.DogCreate
	if err := decodeBody(w, r, &create); err != nil {
		writeError(w, s.Logger, err)
		return
	}
	create.OwnerId = actorId(r.Context())
	dog, err := s.Catalog.CreateDog(r.Context(), create)
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, dog)
}

func (s *server) myDogs(w http.ResponseWriter, r *http.Request) {
	page, err := pagination(r)
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}
	dogs, err := s.Catalog.MyDogs(r.Context(), actorId(r.Context()), page)
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dogs)
}

func (s *server) updateDog(w http.ResponseWriter, r *http.Request) {
	var update models.DogUpdate
	if err := decodeBody(w, r, &update); err != nil {
		writeError(w, s.Logger, err)
		return
	}
	dog, err := s.Catalog.UpdateDog(r.Context(), actorId(r.Context()), chi.URLParam(r, "id"), update)
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dog)
}

func (s *server) updateDogPortrait(w http.ResponseWriter, r *http.Request) {
	var body portraitRequest
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, s.Logger, err)
		return
	}
	dog, err := s.Catalog.UpdateDogPortrait(r.Context(), actorId(r.Context()), chi.URLParam(r, "id"), body.PortraitId)
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dog)
}

func (s *server) deleteDog(w http.ResponseWriter, r *http.Request) {
	if err := s.Catalog.DeleteDog(r.Context(), actorId(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, s.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
