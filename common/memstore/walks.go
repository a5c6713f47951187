package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/littlewalk/go-walk/models"
)

var _ models.WalkRequestRepository = &WalkRequestStore{}

// WalkRequestStore keeps walk requests in process. Every conditional update runs under one mutex, which gives the
// same per-record atomicity the database backends provide.
type WalkRequestStore struct {
	mu    sync.Mutex
	order []string
	byId  map[string]*models.WalkRequest
	now   func() time.Time
}

func NewWalkRequestStore() *WalkRequestStore {
	return &WalkRequestStore{
		byId: make(map[string]*models.WalkRequest),
		now:  time.Now,
	}
}

func (s *WalkRequestStore) CreateWalkRequest(ctx context.Context, create *models.WalkRequestCreate) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	walkRequest := models.NewWalkRequest(uuid.New().String(), create, s.now())

	s.mu.Lock()
	defer s.mu.Unlock()

	s.byId[walkRequest.Id] = walkRequest
	s.order = append(s.order, walkRequest.Id)
	return walkRequest.Id, nil
}

func (s *WalkRequestStore) GetWalkRequest(ctx context.Context, id string) (*models.WalkRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if walkRequest, found := s.byId[id]; found {
		return walkRequest.Clone(), nil
	}
	return nil, models.ErrNotFound
}

func (s *WalkRequestStore) UpdateWalkRequest(ctx context.Context, query models.WalkRequestQuery, update models.WalkRequestUpdate) (*models.WalkRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, walkRequest := range s.candidates(query) {
		if query.Matches(walkRequest) {
			update.Apply(walkRequest, s.now())
			return walkRequest.Clone(), nil
		}
	}
	return nil, models.ErrNotFound
}

func (s *WalkRequestStore) UpdateWalkRequests(ctx context.Context, query models.WalkRequestQuery, update models.WalkRequestUpdate) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched int64
	now := s.now()
	for _, walkRequest := range s.candidates(query) {
		if query.Matches(walkRequest) {
			update.Apply(walkRequest, now)
			matched++
		}
	}
	return matched, nil
}

func (s *WalkRequestStore) QueryWalkRequests(ctx context.Context, query models.WalkRequestQuery, sortBy *models.SortBy, page *models.Pagination) ([]*models.WalkRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	return models.SelectWalkRequests(s.candidates(query), query, sortBy, page), nil
}

// candidates narrows by id when the query carries one, otherwise returns every record in insertion order.
func (s *WalkRequestStore) candidates(query models.WalkRequestQuery) []*models.WalkRequest {
	if query.Id != nil {
		if walkRequest, found := s.byId[*query.Id]; found {
			return []*models.WalkRequest{walkRequest}
		}
		return nil
	}
	all := make([]*models.WalkRequest, len(s.order))
	for idx, id := range s.order {
		all[idx] = s.byId[id]
	}
	return all
}
