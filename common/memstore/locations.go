package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/littlewalk/go-walk/models"
)

var _ models.WalkingLocationRepository = &WalkingLocationStore{}

type WalkingLocationStore struct {
	mu        sync.RWMutex
	byRequest map[string][]*models.WalkingLocation
	now       func() time.Time
}

func NewWalkingLocationStore() *WalkingLocationStore {
	return &WalkingLocationStore{
		byRequest: make(map[string][]*models.WalkingLocation),
		now:       time.Now,
	}
}

func (s *WalkingLocationStore) CreateWalkingLocation(ctx context.Context, create *models.WalkingLocationCreate) (*models.WalkingLocation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	location := &models.WalkingLocation{
		Id:            uuid.New().String(),
		WalkRequestId: create.WalkRequestId,
		Longitude:     create.Longitude,
		Latitude:      create.Latitude,
		CreatedAt:     s.now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.byRequest[create.WalkRequestId] = append(s.byRequest[create.WalkRequestId], location)
	stored := *location
	return &stored, nil
}

func (s *WalkingLocationStore) QueryWalkingLocations(ctx context.Context, walkRequestId string) ([]*models.WalkingLocation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	samples := s.byRequest[walkRequestId]
	locations := make([]*models.WalkingLocation, len(samples))
	for idx, sample := range samples {
		location := *sample
		locations[idx] = &location
	}
	sort.SliceStable(locations, func(i, j int) bool {
		return locations[i].CreatedAt.Before(locations[j].CreatedAt)
	})
	return locations, nil
}
