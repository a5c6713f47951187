package services

import (
	"context"
	"fmt"

	"github.com/littlewalk/go-walk/models"
)

// TrackingService writes and reads the breadcrumb samples recorded during a walk.
type TrackingService struct {
	walkRequests  models.WalkRequestRepository
	locations     models.WalkingLocationRepository
	archive       models.KeyValueRepository
	metricService models.MetricService
	logger        models.Logger
}

// TrackArchive is the document stored for a finished walk.
type TrackArchive struct {
	WalkRequest *models.WalkRequest       `json:"walkRequest"`
	Status      models.WalkStatus         `json:"status"`
	Locations   []*models.WalkingLocation `json:"locations"`
}

func NewTrackingService(
	walkRequests models.WalkRequestRepository,
	locations models.WalkingLocationRepository,
	archive models.KeyValueRepository,
	metricService models.MetricService,
	logger models.Logger,
) *TrackingService {
	return &TrackingService{walkRequests, locations, archive, metricService, logger}
}

// RecordLocation appends a sample. Samples never contend with each other, so there is no precondition beyond the
// request existing.
func (t *TrackingService) RecordLocation(ctx context.Context, walkerId, walkRequestId string, longitude, latitude float64) (*models.WalkingLocation, error) {
	create := models.WalkingLocationCreate{WalkRequestId: walkRequestId, Longitude: longitude, Latitude: latitude}
	if err := requireActor(walkerId); err != nil {
		return nil, err
	} else if err = validateInput(create); err != nil {
		return nil, err
	}
	if _, err := t.walkRequests.GetWalkRequest(ctx, walkRequestId); err != nil {
		return nil, err
	}
	location, err := t.locations.CreateWalkingLocation(ctx, &create)
	if err != nil {
		return nil, err
	}
	if t.metricService != nil {
		_ = t.metricService.Count(ctx, models.MetricName_LocationRecorded, 1)
	}
	return location, nil
}

// Track returns the samples of a walk, oldest first.
func (t *TrackingService) Track(ctx context.Context, walkRequestId string) ([]*models.WalkingLocation, error) {
	if err := requireId("walkRequestId", walkRequestId); err != nil {
		return nil, err
	}
	if _, err := t.walkRequests.GetWalkRequest(ctx, walkRequestId); err != nil {
		return nil, err
	}
	return t.locations.QueryWalkingLocations(ctx, walkRequestId)
}

// ArchiveTrack stores the request together with its samples. It is a no-op when no archive is configured.
func (t *TrackingService) ArchiveTrack(ctx context.Context, walkRequestId string) error {
	if t.archive == nil {
		return nil
	}
	walkRequest, err := t.walkRequests.GetWalkRequest(ctx, walkRequestId)
	if err != nil {
		return err
	}
	locations, err := t.locations.QueryWalkingLocations(ctx, walkRequestId)
	if err != nil {
		return err
	}
	key := TrackArchiveKey(walkRequestId)
	if err = t.archive.Store(ctx, key, TrackArchive{walkRequest, walkRequest.Status(), locations}); err != nil {
		return models.NewBackendError("archive track", err)
	}
	if t.metricService != nil {
		_ = t.metricService.Count(ctx, models.MetricName_TrackArchived, 1)
	}
	t.logger.Infof("tracking: archived %d samples for %s", len(locations), walkRequestId)
	return nil
}

func TrackArchiveKey(walkRequestId string) string {
	return fmt.Sprintf("tracks/%s.json", walkRequestId)
}
