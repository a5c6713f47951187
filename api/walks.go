package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/littlewalk/go-walk/models"
	"github.com/littlewalk/go-walk/services"
)

type walkRequestResponse struct {
	*models.WalkRequest
	Status models.WalkStatus `json:"status"`
}

type walkerRequest struct {
	WalkerId string `json:"walkerId"`
}

type locationRequest struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

func toWalkRequestResponse(walkRequest *models.WalkRequest) walkRequestResponse {
	if walkRequest.Acceptances == nil {
		walkRequest.Acceptances = []string{}
	}
	return walkRequestResponse{walkRequest, walkRequest.Status()}
}

func toWalkRequestResponses(walkRequests []*models.WalkRequest) []walkRequestResponse {
	responses := make([]walkRequestResponse, len(walkRequests))
	for idx, walkRequest := range walkRequests {
		responses[idx] = toWalkRequestResponse(walkRequest)
	}
	return responses
}

func (s *server) createWalkRequest(w http.ResponseWriter, r *http.Request) {
	var input services.CreateWalkRequestInput
	if err := decodeBody(w, r, &input); err != nil {
		writeError(w, s.Logger, err)
		return
	}
	walkRequest, err := s.Coordinator.CreateWalkRequest(r.Context(), actorId(r.Context()), input)
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toWalkRequestResponse(walkRequest))
}

func (s *server) getWalkRequest(w http.ResponseWriter, r *http.Request) {
	walkRequest, err := s.Listing.GetWalkRequest(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toWalkRequestResponse(walkRequest))
}

func (s *server) nearbyWalkRequests(w http.ResponseWriter, r *http.Request) {
	nearby := make([]float64, 3)
	for idx, name := range []string{"lng", "lat", "radius"} {
		value, err := queryFloat(r, name)
		if err != nil {
			writeError(w, s.Logger, err)
			return
		}
		nearby[idx] = value
	}
	page, err := pagination(r)
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}
	walkRequests, err := s.Listing.NearbyWalkRequests(r.Context(), nearby, page)
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toWalkRequestResponses(walkRequests))
}

func (s *server) myWalkRequests(w http.ResponseWriter, r *http.Request) {
	page, err := pagination(r)
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}
	walkRequests, err := s.Listing.MyWalkRequests(r.Context(), actorId(r.Context()), page)
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toWalkRequestResponses(walkRequests))
}

func (s *server) claim(w http.ResponseWriter, r *http.Request) {
	s.walkRequestVerb(w, r, s.Coordinator.Claim)
}

func (s *server) startWalk(w http.ResponseWriter, r *http.Request) {
	s.walkRequestVerb(w, r, s.Coordinator.StartWalk)
}

func (s *server) finishWalk(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	walkRequest, err := s.Coordinator.FinishWalk(ctx, actorId(ctx), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}
	// The walk is finished either way; a failed archive only gets logged.
	if err = s.Tracking.ArchiveTrack(ctx, walkRequest.Id); err != nil {
		s.Logger.Errorf("api: error archiving track for %s: %v", walkRequest.Id, err)
	}
	writeJSON(w, http.StatusOK, toWalkRequestResponse(walkRequest))
}

func (s *server) joinBids(w http.ResponseWriter, r *http.Request) {
	s.verb(w, r, s.Coordinator.JoinBids)
}

func (s *server) withdrawBid(w http.ResponseWriter, r *http.Request) {
	s.verb(w, r, s.Coordinator.WithdrawBid)
}

func (s *server) resign(w http.ResponseWriter, r *http.Request) {
	s.verb(w, r, s.Coordinator.Resign)
}

func (s *server) assign(w http.ResponseWriter, r *http.Request) {
	s.ownerVerb(w, r, s.Coordinator.Assign)
}

func (s *server) dismiss(w http.ResponseWriter, r *http.Request) {
	s.ownerVerb(w, r, s.Coordinator.Dismiss)
}

// cancel withdraws an unclaimed request, or a claimed one when the body names its walker.
func (s *server) cancel(w http.ResponseWriter, r *http.Request) {
	var body walkerRequest
	if r.ContentLength != 0 {
		if err := decodeBody(w, r, &body); err != nil {
			writeError(w, s.Logger, err)
			return
		}
	}
	ctx := r.Context()
	var err error
	if len(body.WalkerId) == 0 {
		err = s.Coordinator.CancelUnclaimed(ctx, actorId(ctx), chi.URLParam(r, "id"))
	} else {
		err = s.Coordinator.CancelClaimed(ctx, actorId(ctx), chi.URLParam(r, "id"), body.WalkerId)
	}
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) recordLocation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	walkerId := actorId(ctx)
	if err := s.LocationLimiter.Allow(walkerId, time.Now()); err != nil {
		if errors.Is(err, models.ErrRateLimited) && s.MetricService != nil {
			_ = s.MetricService.Count(ctx, models.MetricName_LocationRateLimited, 1)
		}
		writeError(w, s.Logger, err)
		return
	}
	var body locationRequest
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, s.Logger, err)
		return
	}
	location, err := s.Tracking.RecordLocation(ctx, walkerId, chi.URLParam(r, "id"), body.Longitude, body.Latitude)
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, location)
}

func (s *server) track(w http.ResponseWriter, r *http.Request) {
	locations, err := s.Tracking.Track(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, locations)
}

func (s *server) walkRequestVerb(
	w http.ResponseWriter,
	r *http.Request,
	verb func(ctx context.Context, actorId, walkRequestId string) (*models.WalkRequest, error),
) {
	ctx := r.Context()
	walkRequest, err := verb(ctx, actorId(ctx), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toWalkRequestResponse(walkRequest))
}

func (s *server) verb(w http.ResponseWriter, r *http.Request, verb func(ctx context.Context, actorId, walkRequestId string) error) {
	ctx := r.Context()
	if err := verb(ctx, actorId(ctx), chi.URLParam(r, "id")); err != nil {
		writeError(w, s.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) ownerVerb(
	w http.ResponseWriter,
	r *http.Request,
	verb func(ctx context.Context, ownerId, walkRequestId, walkerId string) error,
) {
	var body walkerRequest
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, s.Logger, err)
		return
	}
	ctx := r.Context()
	if err := verb(ctx, actorId(ctx), chi.URLParam(r, "id"), body.WalkerId); err != nil {
		writeError(w, s.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
