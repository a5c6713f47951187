package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/littlewalk/go-walk/common"
	"github.com/littlewalk/go-walk/models"
)

// Coordinator runs every lifecycle transition as a single conditional update: the precondition becomes the query,
// the transition becomes the update, and zero matched records is reported as a conflict. It never retries; a caller
// that wants to try again must re-read and re-decide.
type Coordinator struct {
	walkRequests  models.WalkRequestRepository
	dogs          models.DogRepository
	publisher     models.QueuePublisher
	notifier      models.Notifier
	metricService models.MetricService
	logger        models.Logger
	now           func() time.Time
	publishes     sync.WaitGroup
}

type CreateWalkRequestInput struct {
	DogIds            []string   `json:"dogIds" validate:"required,min=1,max=8,dive,required"`
	ShouldStartAfter  *time.Time `json:"shouldStartAfter,omitempty"`
	ShouldStartBefore *time.Time `json:"shouldStartBefore,omitempty"`
	ShouldEndAfter    *time.Time `json:"shouldEndAfter,omitempty"`
	ShouldEndBefore   *time.Time `json:"shouldEndBefore,omitempty"`
	Longitude         float64    `json:"longitude" validate:"gte=-180,lte=180"`
	Latitude          float64    `json:"latitude" validate:"gte=-90,lte=90"`
}

// transition is one row of the lifecycle table.
type transition struct {
	verb          models.Verb
	actorId       string
	walkRequestId string
	subjectId     *string
	ownerVerb     bool
	query         models.WalkRequestQuery
	update        models.WalkRequestUpdate
	reason        string
}

func NewCoordinator(
	walkRequests models.WalkRequestRepository,
	dogs models.DogRepository,
	publisher models.QueuePublisher,
	notifier models.Notifier,
	metricService models.MetricService,
	logger models.Logger,
) *Coordinator {
	return &Coordinator{
		walkRequests:  walkRequests,
		dogs:          dogs,
		publisher:     publisher,
		notifier:      notifier,
		metricService: metricService,
		logger:        logger,
		now:           time.Now,
	}
}

// CreateWalkRequest snapshots the owner's dogs by value into a new Waiting request.
func (c *Coordinator) CreateWalkRequest(ctx context.Context, ownerId string, input CreateWalkRequestInput) (*models.WalkRequest, error) {
	start := c.now()
	if err := requireActor(ownerId); err != nil {
		return nil, err
	} else if err = validateInput(input); err != nil {
		return nil, err
	}
	dogs, err := c.ownedDogs(ctx, ownerId, input.DogIds)
	if err != nil {
		return nil, c.failed(ctx, models.Verb_Create, err)
	}
	id, err := c.walkRequests.CreateWalkRequest(ctx, &models.WalkRequestCreate{
		Dogs:              dogs,
		ShouldStartAfter:  input.ShouldStartAfter,
		ShouldStartBefore: input.ShouldStartBefore,
		ShouldEndAfter:    input.ShouldEndAfter,
		ShouldEndBefore:   input.ShouldEndBefore,
		Longitude:         input.Longitude,
		Latitude:          input.Latitude,
		CreatedBy:         ownerId,
	})
	if err != nil {
		return nil, c.failed(ctx, models.Verb_Create, err)
	}
	walkRequest, err := c.walkRequests.GetWalkRequest(ctx, id)
	if err != nil {
		return nil, c.failed(ctx, models.Verb_Create, err)
	}
	c.succeeded(ctx, transition{verb: models.Verb_Create, actorId: ownerId, walkRequestId: id}, start)
	return walkRequest, nil
}

// Claim assigns the request to the calling walker if nobody holds it yet.
func (c *Coordinator) Claim(ctx context.Context, walkerId, walkRequestId string) (*models.WalkRequest, error) {
	now := c.now()
	return c.updateOne(ctx, transition{
		verb:          models.Verb_Claim,
		actorId:       walkerId,
		walkRequestId: walkRequestId,
		query: models.WalkRequestQuery{
			Id:               &walkRequestId,
			AcceptedByIsNull: boolPtr(true),
			CanceledAtIsNull: boolPtr(true),
		},
		update: models.WalkRequestUpdate{AcceptedBy: &walkerId, AcceptedAt: &now},
		reason: "already claimed",
	})
}

// JoinBids adds the walker to the bid pool. Joining again is a no-op success.
func (c *Coordinator) JoinBids(ctx context.Context, walkerId, walkRequestId string) error {
	return c.updateMany(ctx, transition{
		verb:          models.Verb_JoinBids,
		actorId:       walkerId,
		walkRequestId: walkRequestId,
		query: models.WalkRequestQuery{
			Id:               &walkRequestId,
			CanceledAtIsNull: boolPtr(true),
		},
		update: models.WalkRequestUpdate{AddToAcceptances: &walkerId},
		reason: "request not open for bids",
	})
}

func (c *Coordinator) WithdrawBid(ctx context.Context, walkerId, walkRequestId string) error {
	return c.updateMany(ctx, transition{
		verb:          models.Verb_WithdrawBid,
		actorId:       walkerId,
		walkRequestId: walkRequestId,
		query: models.WalkRequestQuery{
			Id:               &walkRequestId,
			AcceptedByNeq:    &walkerId,
			CanceledAtIsNull: boolPtr(true),
		},
		update: models.WalkRequestUpdate{RemoveFromAcceptances: &walkerId},
		reason: "already confirmed by owner",
	})
}

// Assign promotes a walker from the bid pool to the claim.
func (c *Coordinator) Assign(ctx context.Context, ownerId, walkRequestId, walkerId string) error {
	now := c.now()
	return c.updateMany(ctx, transition{
		verb:          models.Verb_Assign,
		actorId:       ownerId,
		walkRequestId: walkRequestId,
		subjectId:     &walkerId,
		ownerVerb:     true,
		query: models.WalkRequestQuery{
			Id:                     &walkRequestId,
			CreatedBy:              &ownerId,
			AcceptedByIsNull:       boolPtr(true),
			AcceptancesIncludesAll: []string{walkerId},
			CanceledAtIsNull:       boolPtr(true),
		},
		update: models.WalkRequestUpdate{AcceptedBy: &walkerId, AcceptedAt: &now},
		reason: "bid withdrawn or request already claimed",
	})
}

// Dismiss vacates the claim held by the given walker. The walker stays in the bid pool.
func (c *Coordinator) Dismiss(ctx context.Context, ownerId, walkRequestId, walkerId string) error {
	return c.updateMany(ctx, transition{
		verb:          models.Verb_Dismiss,
		actorId:       ownerId,
		walkRequestId: walkRequestId,
		subjectId:     &walkerId,
		ownerVerb:     true,
		query: models.WalkRequestQuery{
			Id:               &walkRequestId,
			CreatedBy:        &ownerId,
			AcceptedBy:       &walkerId,
			CanceledAtIsNull: boolPtr(true),
		},
		update: models.WalkRequestUpdate{UnsetAcceptedBy: true, UnsetAcceptedAt: true},
		reason: "claim already vacated",
	})
}

// Resign gives up the walker's own claim and leaves the bid pool.
func (c *Coordinator) Resign(ctx context.Context, walkerId, walkRequestId string) error {
	return c.updateMany(ctx, transition{
		verb:          models.Verb_Resign,
		actorId:       walkerId,
		walkRequestId: walkRequestId,
		query: models.WalkRequestQuery{
			Id:               &walkRequestId,
			AcceptedBy:       &walkerId,
			CanceledAtIsNull: boolPtr(true),
		},
		update: models.WalkRequestUpdate{
			UnsetAcceptedBy:       true,
			UnsetAcceptedAt:       true,
			RemoveFromAcceptances: &walkerId,
		},
		reason: "already dismissed by owner",
	})
}

func (c *Coordinator) CancelUnclaimed(ctx context.Context, ownerId, walkRequestId string) error {
	now := c.now()
	return c.updateMany(ctx, transition{
		verb:          models.Verb_CancelUnclaimed,
		actorId:       ownerId,
		walkRequestId: walkRequestId,
		ownerVerb:     true,
		query: models.WalkRequestQuery{
			Id:               &walkRequestId,
			CreatedBy:        &ownerId,
			AcceptedByIsNull: boolPtr(true),
			CanceledAtIsNull: boolPtr(true),
		},
		update: models.WalkRequestUpdate{CanceledAt: &now},
		reason: "already claimed",
	})
}

// CancelClaimed cancels a request the owner knows to be held by walkerId. It fails if the claim moved in between.
func (c *Coordinator) CancelClaimed(ctx context.Context, ownerId, walkRequestId, walkerId string) error {
	now := c.now()
	return c.updateMany(ctx, transition{
		verb:          models.Verb_CancelClaimed,
		actorId:       ownerId,
		walkRequestId: walkRequestId,
		subjectId:     &walkerId,
		ownerVerb:     true,
		query: models.WalkRequestQuery{
			Id:               &walkRequestId,
			CreatedBy:        &ownerId,
			AcceptedBy:       &walkerId,
			CanceledAtIsNull: boolPtr(true),
		},
		update: models.WalkRequestUpdate{CanceledAt: &now},
		reason: "not claimed by that walker",
	})
}

// StartWalk stamps started_at for the walker holding the claim. A walker who takes over a started walk starts it again.
func (c *Coordinator) StartWalk(ctx context.Context, walkerId, walkRequestId string) (*models.WalkRequest, error) {
	now := c.now()
	return c.updateOne(ctx, transition{
		verb:          models.Verb_Start,
		actorId:       walkerId,
		walkRequestId: walkRequestId,
		query: models.WalkRequestQuery{
			Id:               &walkRequestId,
			AcceptedBy:       &walkerId,
			CanceledAtIsNull: boolPtr(true),
		},
		update: models.WalkRequestUpdate{StartedAt: &now},
		reason: "not the assigned walker",
	})
}

func (c *Coordinator) FinishWalk(ctx context.Context, walkerId, walkRequestId string) (*models.WalkRequest, error) {
	now := c.now()
	return c.updateOne(ctx, transition{
		verb:          models.Verb_Finish,
		actorId:       walkerId,
		walkRequestId: walkRequestId,
		query: models.WalkRequestQuery{
			Id:               &walkRequestId,
			AcceptedBy:       &walkerId,
			CanceledAtIsNull: boolPtr(true),
		},
		update: models.WalkRequestUpdate{FinishedAt: &now},
		reason: "not the assigned walker",
	})
}

func (c *Coordinator) updateOne(ctx context.Context, t transition) (*models.WalkRequest, error) {
	start := c.now()
	if err := c.checkTransition(t); err != nil {
		return nil, err
	}
	walkRequest, err := c.walkRequests.UpdateWalkRequest(ctx, t.query, t.update)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, c.conflict(ctx, t)
		}
		return nil, c.failed(ctx, t.verb, err)
	}
	c.succeeded(ctx, t, start)
	return walkRequest, nil
}

func (c *Coordinator) updateMany(ctx context.Context, t transition) error {
	start := c.now()
	if err := c.checkTransition(t); err != nil {
		return err
	}
	matched, err := c.walkRequests.UpdateWalkRequests(ctx, t.query, t.update)
	if err != nil {
		return c.failed(ctx, t.verb, err)
	} else if matched == 0 {
		return c.conflict(ctx, t)
	}
	if matched > 1 {
		c.logger.Warnf("coordinator: %s matched %d records for %s", t.verb, matched, t.walkRequestId)
	}
	c.succeeded(ctx, t, start)
	return nil
}

func (c *Coordinator) checkTransition(t transition) error {
	if err := requireActor(t.actorId); err != nil {
		return err
	} else if err = requireId("walkRequestId", t.walkRequestId); err != nil {
		return err
	} else if t.subjectId != nil {
		return requireId("walkerId", *t.subjectId)
	}
	return nil
}

// conflict turns a zero-match into NotFound or a PreconditionFailed carrying the verb's reason. The extra read only
// explains the failure; the update did not apply either way.
func (c *Coordinator) conflict(ctx context.Context, t transition) error {
	walkRequest, err := c.walkRequests.GetWalkRequest(ctx, t.walkRequestId)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.count(ctx, models.MetricName_VerbNotFound, t.verb)
			return fmt.Errorf("%s: walk request %s: %w", t.verb, t.walkRequestId, models.ErrNotFound)
		}
		return c.failed(ctx, t.verb, err)
	}
	reason := t.reason
	switch {
	case walkRequest.CanceledAt != nil:
		reason = "request already canceled"
	case t.ownerVerb && walkRequest.CreatedBy != t.actorId:
		reason = "not the owner of the request"
	}
	c.count(ctx, models.MetricName_VerbConflicted, t.verb)
	c.logger.Debugf("coordinator: %s on %s by %s rejected: %s", t.verb, t.walkRequestId, t.actorId, reason)
	return &models.ConflictError{Verb: t.verb, Reason: reason}
}

// failed passes taxonomy errors through and wraps anything else as a backend failure, alerting on the latter.
func (c *Coordinator) failed(ctx context.Context, verb models.Verb, err error) error {
	if models.KindOf(err) != models.ErrorKind_BackendUnavailable {
		return err
	}
	var backendErr *models.BackendError
	if !errors.As(err, &backendErr) {
		err = models.NewBackendError(string(verb), err)
	}
	c.count(ctx, models.MetricName_VerbFailed, verb)
	c.logger.Errorf("coordinator: %s failed: %v", verb, err)
	// Abandoned calls are not backend outages.
	if c.notifier != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		desc := fmt.Sprintf(models.ErrorMessageFmt_Backend, verb, err)
		if alertErr := c.notifier.SendAlert(models.AlertTitle, fmt.Sprintf(models.AlertFmt_Backend, models.AlertDesc_Backend, desc)); alertErr != nil {
			c.logger.Errorf("coordinator: error sending alert: %v", alertErr)
		}
	}
	return err
}

func (c *Coordinator) succeeded(ctx context.Context, t transition, start time.Time) {
	c.count(ctx, models.MetricName_VerbSucceeded, t.verb)
	if c.metricService != nil {
		_ = c.metricService.Distribution(ctx, models.MetricName_VerbLatencyMs, int(c.now().Sub(start).Milliseconds()), models.VerbAttribute(t.verb))
	}
	c.logger.Debugf("coordinator: %s on %s by %s applied", t.verb, t.walkRequestId, t.actorId)
	if eventType, found := t.verb.EventType(); found && c.publisher != nil {
		event := models.WalkEvent{
			Type:          eventType,
			WalkRequestId: t.walkRequestId,
			ActorId:       t.actorId,
			SubjectId:     t.subjectId,
			Timestamp:     c.now().UTC(),
		}
		// The transition already applied, so a publish failure is only logged and counted.
		c.publishes.Add(1)
		go func() {
			defer c.publishes.Done()
			c.publish(event)
		}()
	}
}

// Drain waits for in-flight event publishes until ctx is done.
func (c *Coordinator) Drain(ctx context.Context) error {
	drained := make(chan struct{})
	go func() {
		c.publishes.Wait()
		close(drained)
	}()
	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) publish(event models.WalkEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), common.DefaultRpcWaitTime)
	defer cancel()

	if _, err := c.publisher.SendMessage(ctx, event); err != nil {
		c.logger.Errorf("coordinator: failed to publish %s event for %s: %v", event.Type, event.WalkRequestId, err)
		c.count(ctx, models.MetricName_EventPublishFailed, "")
		return
	}
	c.count(ctx, models.MetricName_EventPublished, "")
}

func (c *Coordinator) count(ctx context.Context, name models.MetricName, verb models.Verb) {
	if c.metricService == nil {
		return
	}
	var err error
	if len(verb) > 0 {
		err = c.metricService.Count(ctx, name, 1, models.VerbAttribute(verb))
	} else {
		err = c.metricService.Count(ctx, name, 1)
	}
	if err != nil {
		c.logger.Debugf("coordinator: error recording %s: %v", name, err)
	}
}

// ownedDogs resolves dog ids in the order given and requires every dog to belong to the owner.
func (c *Coordinator) ownedDogs(ctx context.Context, ownerId string, dogIds []string) ([]models.Dog, error) {
	found, err := c.dogs.QueryDogs(ctx, models.DogQuery{IdIn: dogIds, OwnerId: &ownerId})
	if err != nil {
		return nil, err
	}
	byId := make(map[string]*models.Dog, len(found))
	for _, dog := range found {
		byId[dog.Id] = dog
	}
	dogs := make([]models.Dog, 0, len(dogIds))
	seen := make(map[string]bool, len(dogIds))
	for _, dogId := range dogIds {
		if seen[dogId] {
			continue
		}
		seen[dogId] = true
		dog, ok := byId[dogId]
		if !ok {
			return nil, &models.ValidationError{Field: "dogIds", Reason: fmt.Sprintf("dog %s not found among the owner's dogs", dogId)}
		}
		dogs = append(dogs, dog.Clone())
	}
	return dogs, nil
}

func boolPtr(b bool) *bool {
	return &b
}
