package services

import (
	"context"
	"os"
	"strconv"

	"github.com/littlewalk/go-walk/models"
)

// ListingService serves the read paths over walk requests.
type ListingService struct {
	walkRequests  models.WalkRequestRepository
	metricService models.MetricService
	logger        models.Logger
	defaultLimit  int64
	maxLimit      int64
}

func NewListingService(walkRequests models.WalkRequestRepository, metricService models.MetricService, logger models.Logger) *ListingService {
	defaultLimit := int64(models.DefaultPageLimit)
	if configDefaultLimit, found := os.LookupEnv(models.Env_DefaultPageLimit); found {
		if parsedDefaultLimit, err := strconv.ParseInt(configDefaultLimit, 10, 64); err == nil && parsedDefaultLimit > 0 {
			defaultLimit = parsedDefaultLimit
		}
	}
	maxLimit := int64(models.MaxPageLimit)
	if configMaxLimit, found := os.LookupEnv(models.Env_MaxPageLimit); found {
		if parsedMaxLimit, err := strconv.ParseInt(configMaxLimit, 10, 64); err == nil && parsedMaxLimit > 0 {
			maxLimit = parsedMaxLimit
		}
	}
	if defaultLimit > maxLimit {
		defaultLimit = maxLimit
	}
	return &ListingService{walkRequests, metricService, logger, defaultLimit, maxLimit}
}

func (l *ListingService) GetWalkRequest(ctx context.Context, id string) (*models.WalkRequest, error) {
	if err := requireId("walkRequestId", id); err != nil {
		return nil, err
	}
	return l.walkRequests.GetWalkRequest(ctx, id)
}

// NearbyWalkRequests lists unclaimed requests within radius meters of the origin, nearest first, canceled ones included. The nearby
// parameter must be exactly [longitude, latitude, radius].
func (l *ListingService) NearbyWalkRequests(ctx context.Context, nearby []float64, page *models.Pagination) ([]*models.WalkRequest, error) {
	proximity, err := models.ParseNearby(nearby)
	if err != nil {
		return nil, err
	}
	walkRequests, err := l.walkRequests.QueryWalkRequests(
		ctx,
		models.WalkRequestQuery{AcceptedByIsNull: boolPtr(true), Nearby: proximity},
		nil,
		l.page(page),
	)
	if err != nil {
		return nil, err
	}
	if l.metricService != nil {
		_ = l.metricService.Count(ctx, models.MetricName_NearbyQuery, 1)
		_ = l.metricService.Distribution(ctx, models.MetricName_NearbyResultCount, len(walkRequests))
	}
	return walkRequests, nil
}

// MyWalkRequests lists the owner's requests, newest first.
func (l *ListingService) MyWalkRequests(ctx context.Context, ownerId string, page *models.Pagination) ([]*models.WalkRequest, error) {
	if err := requireActor(ownerId); err != nil {
		return nil, err
	}
	return l.walkRequests.QueryWalkRequests(
		ctx,
		models.WalkRequestQuery{CreatedBy: &ownerId},
		&models.SortBy{Field: models.SortField_CreatedAt, Order: models.Order_Desc},
		l.page(page),
	)
}

// QueryWalkRequests runs an arbitrary filter. Distance sorting needs a proximity clause.
func (l *ListingService) QueryWalkRequests(ctx context.Context, query models.WalkRequestQuery, sortBy *models.SortBy, page *models.Pagination) ([]*models.WalkRequest, error) {
	if query.Nearby != nil {
		if err := query.Nearby.Validate(); err != nil {
			return nil, err
		}
	}
	if sortBy != nil {
		if err := sortBy.Validate(); err != nil {
			return nil, err
		} else if sortBy.Field == models.SortField_Distance && query.Nearby == nil {
			return nil, &models.ValidationError{Field: "sort", Reason: "distance sort requires a nearby clause"}
		}
	}
	return l.walkRequests.QueryWalkRequests(ctx, query, sortBy, l.page(page))
}

func (l *ListingService) page(page *models.Pagination) *models.Pagination {
	normalized := models.Pagination{Limit: l.defaultLimit}
	if page != nil {
		normalized = *page
	}
	if normalized.Limit <= 0 {
		normalized.Limit = l.defaultLimit
	} else if normalized.Limit > l.maxLimit {
		normalized.Limit = l.maxLimit
	}
	if normalized.Skip < 0 {
		normalized.Skip = 0
	}
	return &normalized
}
