package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/littlewalk/go-walk/models"
)

var _ models.BreedRepository = &CatalogStore{}
var _ models.DogRepository = &CatalogStore{}

// CatalogStore holds the dog and breed reference collections.
type CatalogStore struct {
	mu     sync.RWMutex
	breeds map[string]*models.Breed
	dogs   map[string]*models.Dog
	// Insertion order, for deterministic listings.
	dogOrder []string
}

func NewCatalogStore() *CatalogStore {
	return &CatalogStore{
		breeds: make(map[string]*models.Breed),
		dogs:   make(map[string]*models.Dog),
	}
}

func (s *CatalogStore) CreateBreed(ctx context.Context, breed *models.Breed) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *breed
	s.breeds[breed.Id] = &stored
	return nil
}

func (s *CatalogStore) DeleteBreed(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, found := s.breeds[id]; !found {
		return false, nil
	}
	delete(s.breeds, id)
	return true, nil
}

func (s *CatalogStore) QueryBreeds(ctx context.Context, query models.BreedQuery) ([]*models.Breed, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	breeds := make([]*models.Breed, 0)
	for _, breed := range s.breeds {
		if query.Matches(breed) {
			found := *breed
			breeds = append(breeds, &found)
		}
	}
	sort.Slice(breeds, func(i, j int) bool {
		if breeds[i].Name == breeds[j].Name {
			return breeds[i].Id < breeds[j].Id
		}
		return breeds[i].Name < breeds[j].Name
	})
	return breeds, int64(len(breeds)), nil
}

func (s *CatalogStore) CreateDog(ctx context.Context, dog *models.Dog) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := dog.Clone()
	if _, found := s.dogs[dog.Id]; !found {
		s.dogOrder = append(s.dogOrder, dog.Id)
	}
	s.dogs[dog.Id] = &stored
	return nil
}

func (s *CatalogStore) UpdateDog(ctx context.Context, id string, update models.DogUpdate) (*models.Dog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	dog, found := s.dogs[id]
	if !found {
		return nil, models.ErrNotFound
	}
	update.Apply(dog)
	updated := dog.Clone()
	return &updated, nil
}

func (s *CatalogStore) DeleteDog(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, found := s.dogs[id]; !found {
		return false, nil
	}
	delete(s.dogs, id)
	for idx, dogId := range s.dogOrder {
		if dogId == id {
			s.dogOrder = append(s.dogOrder[:idx], s.dogOrder[idx+1:]...)
			break
		}
	}
	return true, nil
}

func (s *CatalogStore) QueryDogs(ctx context.Context, query models.DogQuery) ([]*models.Dog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	dogs := make([]*models.Dog, 0)
	for _, id := range s.dogOrder {
		if dog := s.dogs[id]; query.Matches(dog) {
			found := dog.Clone()
			dogs = append(dogs, &found)
		}
	}
	return models.Paginate(dogs, query.Pagination), nil
}

func (s *CatalogStore) ExistsDog(ctx context.Context, query models.DogQuery) (bool, error) {
	query.Pagination = &models.Pagination{Limit: 1}
	if dogs, err := s.QueryDogs(ctx, query); err != nil {
		return false, err
	} else {
		return len(dogs) > 0, nil
	}
}
