package models

import (
	"context"
)

// WalkRequestRepository is the persistence port for walk requests. A single UpdateWalkRequest or UpdateWalkRequests
// call must be atomic with respect to every other caller; nothing above this interface locks.
type WalkRequestRepository interface {
	CreateWalkRequest(ctx context.Context, create *WalkRequestCreate) (string, error)
	// GetWalkRequest returns ErrNotFound when the id does not exist.
	GetWalkRequest(ctx context.Context, id string) (*WalkRequest, error)
	// UpdateWalkRequest applies the update to at most one record matching the query and returns the record after the
	// update, or ErrNotFound when nothing matched.
	UpdateWalkRequest(ctx context.Context, query WalkRequestQuery, update WalkRequestUpdate) (*WalkRequest, error)
	// UpdateWalkRequests returns the number of records that matched the query.
	UpdateWalkRequests(ctx context.Context, query WalkRequestQuery, update WalkRequestUpdate) (int64, error)
	QueryWalkRequests(ctx context.Context, query WalkRequestQuery, sortBy *SortBy, page *Pagination) ([]*WalkRequest, error)
}

type WalkingLocationRepository interface {
	CreateWalkingLocation(ctx context.Context, create *WalkingLocationCreate) (*WalkingLocation, error)
	// QueryWalkingLocations returns samples oldest first.
	QueryWalkingLocations(ctx context.Context, walkRequestId string) ([]*WalkingLocation, error)
}

type BreedRepository interface {
	CreateBreed(ctx context.Context, breed *Breed) error
	DeleteBreed(ctx context.Context, id string) (bool, error)
	QueryBreeds(ctx context.Context, query BreedQuery) ([]*Breed, int64, error)
}

type DogRepository interface {
	CreateDog(ctx context.Context, dog *Dog) error
	UpdateDog(ctx context.Context, id string, update DogUpdate) (*Dog, error)
	DeleteDog(ctx context.Context, id string) (bool, error)
	QueryDogs(ctx context.Context, query DogQuery) ([]*Dog, error)
	ExistsDog(ctx context.Context, query DogQuery) (bool, error)
}

type KeyValueRepository interface {
	Store(ctx context.Context, key string, value interface{}) error
}

type QueuePublisher interface {
	SendMessage(ctx context.Context, event any) (string, error)
}

type QueueMonitor interface {
	GetUtilization(ctx context.Context) (int, int, error)
}

type Notifier interface {
	SendAlert(title, desc string) error
}

type MetricAttribute struct {
	Key   string
	Value string
}

func VerbAttribute(verb Verb) MetricAttribute {
	return MetricAttribute{Key: "verb", Value: string(verb)}
}

type MetricService interface {
	Count(ctx context.Context, name MetricName, val int, attrs ...MetricAttribute) error
	Distribution(ctx context.Context, name MetricName, val int, attrs ...MetricAttribute) error
	QueueGauge(ctx context.Context, queueName string, monitor QueueMonitor) error
	Shutdown(ctx context.Context)
}

type Logger interface {
	Debugf(template string, args ...interface{})
	Debugw(msg string, args ...interface{})
	Errorf(template string, args ...interface{})
	Errorw(msg string, args ...interface{})
	Fatalf(template string, args ...interface{})
	Infof(template string, args ...interface{})
	Infow(msg string, args ...interface{})
	Infoln(args ...interface{})
	Warnf(template string, args ...interface{})
	Sync() error
}
