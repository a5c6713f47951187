package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/littlewalk/go-walk/common/loggers"
	"github.com/littlewalk/go-walk/common/memstore"
	"github.com/littlewalk/go-walk/models"
)

var testLogger = loggers.NewTestLogger()

type FakePublisher struct {
	messages chan any
	fail     bool
}

func (f *FakePublisher) SendMessage(ctx context.Context, event any) (string, error) {
	if f.fail {
		return "", errors.New("test error")
	}
	select {
	case <-ctx.Done():
		return "", errors.New("context cancelled")
	case f.messages <- event:
		return "msgId", nil
	}
}

func waitForMesssages(messageChannel chan any, n int) []any {
	messages := make([]any, n)
	for i := 0; i < n; i++ {
		select {
		case message := <-messageChannel:
			messages[i] = message
		case <-time.After(5 * time.Second):
			return messages[:i]
		}
	}
	return messages
}

type MockMetricService struct {
	mu     sync.Mutex
	counts map[models.MetricName]int
}

func (m *MockMetricService) Count(ctx context.Context, name models.MetricName, val int, attrs ...models.MetricAttribute) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = make(map[models.MetricName]int)
	}
	m.counts[name] += val
	return nil
}

func (m *MockMetricService) Distribution(ctx context.Context, name models.MetricName, val int, attrs ...models.MetricAttribute) error {
	return nil
}

func (m *MockMetricService) QueueGauge(ctx context.Context, queueName string, monitor models.QueueMonitor) error {
	return nil
}

func (m *MockMetricService) Shutdown(ctx context.Context) {}

func (m *MockMetricService) getCount(name models.MetricName) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[name]
}

type SpyNotifier struct {
	mu     sync.Mutex
	alerts []string
}

func (s *SpyNotifier) SendAlert(title, desc string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, desc)
	return nil
}

func (s *SpyNotifier) getNumAlerts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.alerts)
}

// FailingWalkRequestRepository fails every call with a transport error.
type FailingWalkRequestRepository struct {
	models.WalkRequestRepository
}

var errConnectionReset = errors.New("connection reset by peer")

func (f *FailingWalkRequestRepository) GetWalkRequest(ctx context.Context, id string) (*models.WalkRequest, error) {
	return nil, models.NewBackendError("get walk request", errConnectionReset)
}

func (f *FailingWalkRequestRepository) UpdateWalkRequest(ctx context.Context, query models.WalkRequestQuery, update models.WalkRequestUpdate) (*models.WalkRequest, error) {
	return nil, errConnectionReset
}

func (f *FailingWalkRequestRepository) UpdateWalkRequests(ctx context.Context, query models.WalkRequestQuery, update models.WalkRequestUpdate) (int64, error) {
	return 0, errConnectionReset
}

type SpyKeyValueRepository struct {
	mu     sync.Mutex
	stored map[string]interface{}
}

func (s *SpyKeyValueRepository) Store(ctx context.Context, key string, value interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stored == nil {
		s.stored = make(map[string]interface{})
	}
	s.stored[key] = value
	return nil
}

type testEnv struct {
	walkRequests  *memstore.WalkRequestStore
	catalog       *memstore.CatalogStore
	locations     *memstore.WalkingLocationStore
	publisher     *FakePublisher
	metricService *MockMetricService
	coordinator   *Coordinator
}

const (
	testOwner   = "owner"
	testWalkerX = "walker-x"
	testWalkerY = "walker-y"
	testWalkerZ = "walker-z"
	testDogId   = "dog-1"
)

func newTestEnv() *testEnv {
	env := &testEnv{
		walkRequests:  memstore.NewWalkRequestStore(),
		catalog:       memstore.NewCatalogStore(),
		locations:     memstore.NewWalkingLocationStore(),
		publisher:     &FakePublisher{messages: make(chan any, 100)},
		metricService: &MockMetricService{},
	}
	_ = env.catalog.CreateDog(context.Background(), &models.Dog{
		Id:      testDogId,
		Name:    "Rex",
		Gender:  models.Gender_Male,
		Breed:   models.Breed{Id: "breed-1", Category: models.Category_Medium, Name: "Beagle"},
		OwnerId: testOwner,
	})
	env.coordinator = NewCoordinator(env.walkRequests, env.catalog, env.publisher, nil, env.metricService, testLogger)
	return env
}

func (e *testEnv) createRequest(lng, lat float64) *models.WalkRequest {
	walkRequest, err := e.coordinator.CreateWalkRequest(context.Background(), testOwner, CreateWalkRequestInput{
		DogIds:    []string{testDogId},
		Longitude: lng,
		Latitude:  lat,
	})
	if err != nil {
		panic(err)
	}
	return walkRequest
}
