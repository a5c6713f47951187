package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/littlewalk/go-walk/common/memstore"
	"github.com/littlewalk/go-walk/models"
)

func conflictReason(t *testing.T, err error) string {
	t.Helper()
	var conflictErr *models.ConflictError
	if !errors.As(err, &conflictErr) {
		t.Fatalf("should have received a conflict, got %v", err)
	}
	if !errors.Is(err, models.ErrPreconditionFailed) {
		t.Fatalf("conflict should match ErrPreconditionFailed")
	}
	return conflictErr.Reason
}

func TestClaimDismissReclaim(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	a := env.createRequest(0, 0)

	claimed, err := env.coordinator.Claim(ctx, testWalkerX, a.Id)
	if err != nil {
		t.Fatalf("unexpected error received %v", err)
	}
	if claimed.AcceptedBy == nil || *claimed.AcceptedBy != testWalkerX || claimed.AcceptedAt == nil {
		t.Errorf("claim should set accepted_by and accepted_at: %+v", claimed)
	}

	_, err = env.coordinator.Claim(ctx, testWalkerY, a.Id)
	if reason := conflictReason(t, err); reason != "already claimed" {
		t.Errorf("unexpected reason: %s", reason)
	}

	if err = env.coordinator.Dismiss(ctx, testOwner, a.Id, testWalkerX); err != nil {
		t.Fatalf("unexpected error received %v", err)
	}
	dismissed, _ := env.walkRequests.GetWalkRequest(ctx, a.Id)
	if dismissed.AcceptedBy != nil || dismissed.AcceptedAt != nil {
		t.Errorf("dismiss should clear the claim: %+v", dismissed)
	}

	reclaimed, err := env.coordinator.Claim(ctx, testWalkerY, a.Id)
	if err != nil {
		t.Fatalf("unexpected error received %v", err)
	}
	if *reclaimed.AcceptedBy != testWalkerY {
		t.Errorf("unexpected claimant: %s", *reclaimed.AcceptedBy)
	}
}

func TestAssignFromBidPool(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	b := env.createRequest(0, 0)
	for _, walker := range []string{testWalkerX, testWalkerY} {
		if err := env.coordinator.JoinBids(ctx, walker, b.Id); err != nil {
			t.Fatalf("unexpected error received %v", err)
		}
	}

	err := env.coordinator.Assign(ctx, testOwner, b.Id, testWalkerZ)
	conflictReason(t, err)

	if err = env.coordinator.Assign(ctx, testOwner, b.Id, testWalkerX); err != nil {
		t.Fatalf("unexpected error received %v", err)
	}
	assigned, _ := env.walkRequests.GetWalkRequest(ctx, b.Id)
	if assigned.AcceptedBy == nil || *assigned.AcceptedBy != testWalkerX {
		t.Errorf("walker x should hold the claim: %+v", assigned.AcceptedBy)
	}

	// Only the owner may assign.
	other := env.createRequest(0, 0)
	_ = env.coordinator.JoinBids(ctx, testWalkerX, other.Id)
	err = env.coordinator.Assign(ctx, "someone-else", other.Id, testWalkerX)
	if reason := conflictReason(t, err); reason != "not the owner of the request" {
		t.Errorf("unexpected reason: %s", reason)
	}
}

func TestSingleClaimUnderContention(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	a := env.createRequest(0, 0)

	const numWalkers = 50
	results := make([]error, numWalkers)
	wg := sync.WaitGroup{}
	wg.Add(numWalkers)
	for i := 0; i < numWalkers; i++ {
		go func(idx int) {
			defer wg.Done()
			_, results[idx] = env.coordinator.Claim(ctx, "walker-"+string(rune('a'+idx)), a.Id)
		}(i)
	}
	wg.Wait()

	numSucceeded := 0
	for _, err := range results {
		if err == nil {
			numSucceeded++
		} else if !errors.Is(err, models.ErrPreconditionFailed) {
			t.Errorf("losing claims should fail their precondition, got %v", err)
		}
	}
	if numSucceeded != 1 {
		t.Errorf("exactly one claim should succeed, found %d", numSucceeded)
	}
}

func TestJoinBidsIsIdempotent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	a := env.createRequest(0, 0)

	for i := 0; i < 2; i++ {
		if err := env.coordinator.JoinBids(ctx, testWalkerX, a.Id); err != nil {
			t.Fatalf("unexpected error received %v", err)
		}
	}
	joined, _ := env.walkRequests.GetWalkRequest(ctx, a.Id)
	if len(joined.Acceptances) != 1 || joined.Acceptances[0] != testWalkerX {
		t.Errorf("walker should be in the bid pool exactly once: %v", joined.Acceptances)
	}
}

func TestTerminalMonotonicity(t *testing.T) {
	ctx := context.Background()
	tests := map[string]struct {
		verb func(c *Coordinator, id string) error
	}{
		"claim": {verb: func(c *Coordinator, id string) error {
			_, err := c.Claim(ctx, testWalkerX, id)
			return err
		}},
		"join bids": {verb: func(c *Coordinator, id string) error {
			return c.JoinBids(ctx, testWalkerY, id)
		}},
		"withdraw bid": {verb: func(c *Coordinator, id string) error {
			return c.WithdrawBid(ctx, testWalkerY, id)
		}},
		"assign": {verb: func(c *Coordinator, id string) error {
			return c.Assign(ctx, testOwner, id, testWalkerY)
		}},
		"dismiss": {verb: func(c *Coordinator, id string) error {
			return c.Dismiss(ctx, testOwner, id, testWalkerX)
		}},
		"resign": {verb: func(c *Coordinator, id string) error {
			return c.Resign(ctx, testWalkerX, id)
		}},
		"cancel unclaimed": {verb: func(c *Coordinator, id string) error {
			return c.CancelUnclaimed(ctx, testOwner, id)
		}},
		"cancel claimed": {verb: func(c *Coordinator, id string) error {
			return c.CancelClaimed(ctx, testOwner, id, testWalkerX)
		}},
		"start": {verb: func(c *Coordinator, id string) error {
			_, err := c.StartWalk(ctx, testWalkerX, id)
			return err
		}},
		"finish": {verb: func(c *Coordinator, id string) error {
			_, err := c.FinishWalk(ctx, testWalkerX, id)
			return err
		}},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			env := newTestEnv()
			unclaimed := env.createRequest(0, 0)
			_ = env.coordinator.JoinBids(ctx, testWalkerY, unclaimed.Id)
			if err := env.coordinator.CancelUnclaimed(ctx, testOwner, unclaimed.Id); err != nil {
				t.Fatalf("unexpected error received %v", err)
			}
			claimed := env.createRequest(0, 0)
			if _, err := env.coordinator.Claim(ctx, testWalkerX, claimed.Id); err != nil {
				t.Fatalf("unexpected error received %v", err)
			}
			if err := env.coordinator.CancelClaimed(ctx, testOwner, claimed.Id, testWalkerX); err != nil {
				t.Fatalf("unexpected error received %v", err)
			}

			for _, id := range []string{unclaimed.Id, claimed.Id} {
				err := test.verb(env.coordinator, id)
				if reason := conflictReason(t, err); reason != "request already canceled" {
					t.Errorf("unexpected reason: %s", reason)
				}
				walkRequest, _ := env.walkRequests.GetWalkRequest(ctx, id)
				if walkRequest.Status() != models.WalkStatus_Canceled {
					t.Errorf("request should stay canceled")
				}
			}
		})
	}
}

func TestResignDismissSymmetry(t *testing.T) {
	ctx := context.Background()
	tests := map[string]struct {
		relinquish func(c *Coordinator, id string) error
	}{
		"walker resigns": {relinquish: func(c *Coordinator, id string) error {
			return c.Resign(ctx, testWalkerX, id)
		}},
		"owner dismisses": {relinquish: func(c *Coordinator, id string) error {
			return c.Dismiss(ctx, testOwner, id, testWalkerX)
		}},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			env := newTestEnv()
			a := env.createRequest(0, 0)
			_ = env.coordinator.JoinBids(ctx, testWalkerX, a.Id)
			if err := env.coordinator.Assign(ctx, testOwner, a.Id, testWalkerX); err != nil {
				t.Fatalf("unexpected error received %v", err)
			}

			if err := test.relinquish(env.coordinator, a.Id); err != nil {
				t.Fatalf("unexpected error received %v", err)
			}
			vacated, _ := env.walkRequests.GetWalkRequest(ctx, a.Id)
			if vacated.AcceptedBy != nil || vacated.AcceptedAt != nil {
				t.Errorf("claim should be fully cleared: %+v", vacated)
			}
			if vacated.Status() != models.WalkStatus_Waiting {
				t.Errorf("request should be waiting again, found %s", vacated.Status())
			}

			conflictReason(t, test.relinquish(env.coordinator, a.Id))
		})
	}

	// Resigning also leaves the bid pool, dismissal does not.
	env := newTestEnv()
	a := env.createRequest(0, 0)
	_ = env.coordinator.JoinBids(ctx, testWalkerX, a.Id)
	_ = env.coordinator.Assign(ctx, testOwner, a.Id, testWalkerX)
	_ = env.coordinator.Resign(ctx, testWalkerX, a.Id)
	if resigned, _ := env.walkRequests.GetWalkRequest(ctx, a.Id); resigned.HasBid(testWalkerX) {
		t.Errorf("resigning walker should leave the bid pool")
	}
	b := env.createRequest(0, 0)
	_ = env.coordinator.JoinBids(ctx, testWalkerX, b.Id)
	_ = env.coordinator.Assign(ctx, testOwner, b.Id, testWalkerX)
	_ = env.coordinator.Dismiss(ctx, testOwner, b.Id, testWalkerX)
	if dismissed, _ := env.walkRequests.GetWalkRequest(ctx, b.Id); !dismissed.HasBid(testWalkerX) {
		t.Errorf("dismissed walker should stay in the bid pool")
	}
}

func TestVerbPreconditions(t *testing.T) {
	ctx := context.Background()
	tests := map[string]struct {
		setup          func(env *testEnv, id string)
		verb           func(c *Coordinator, id string) error
		expectedReason string
	}{
		"withdraw bid by the confirmed walker": {
			setup: func(env *testEnv, id string) {
				_ = env.coordinator.JoinBids(ctx, testWalkerX, id)
				_ = env.coordinator.Assign(ctx, testOwner, id, testWalkerX)
			},
			verb: func(c *Coordinator, id string) error {
				return c.WithdrawBid(ctx, testWalkerX, id)
			},
			expectedReason: "already confirmed by owner",
		},
		"withdraw bid by another walker": {
			setup: func(env *testEnv, id string) {
				_ = env.coordinator.JoinBids(ctx, testWalkerY, id)
				_ = env.coordinator.JoinBids(ctx, testWalkerX, id)
				_ = env.coordinator.Assign(ctx, testOwner, id, testWalkerX)
			},
			verb: func(c *Coordinator, id string) error {
				return c.WithdrawBid(ctx, testWalkerY, id)
			},
		},
		"assign after the bid was withdrawn": {
			setup: func(env *testEnv, id string) {
				_ = env.coordinator.JoinBids(ctx, testWalkerX, id)
				_ = env.coordinator.WithdrawBid(ctx, testWalkerX, id)
			},
			verb: func(c *Coordinator, id string) error {
				return c.Assign(ctx, testOwner, id, testWalkerX)
			},
			expectedReason: "bid withdrawn or request already claimed",
		},
		"cancel unclaimed after a claim": {
			setup: func(env *testEnv, id string) {
				_, _ = env.coordinator.Claim(ctx, testWalkerX, id)
			},
			verb: func(c *Coordinator, id string) error {
				return c.CancelUnclaimed(ctx, testOwner, id)
			},
			expectedReason: "already claimed",
		},
		"cancel unclaimed by a stranger": {
			verb: func(c *Coordinator, id string) error {
				return c.CancelUnclaimed(ctx, "stranger", id)
			},
			expectedReason: "not the owner of the request",
		},
		"cancel claimed naming the wrong walker": {
			setup: func(env *testEnv, id string) {
				_, _ = env.coordinator.Claim(ctx, testWalkerX, id)
			},
			verb: func(c *Coordinator, id string) error {
				return c.CancelClaimed(ctx, testOwner, id, testWalkerY)
			},
			expectedReason: "not claimed by that walker",
		},
		"cancel claimed": {
			setup: func(env *testEnv, id string) {
				_, _ = env.coordinator.Claim(ctx, testWalkerX, id)
			},
			verb: func(c *Coordinator, id string) error {
				return c.CancelClaimed(ctx, testOwner, id, testWalkerX)
			},
		},
		"start by someone other than the claimant": {
			setup: func(env *testEnv, id string) {
				_, _ = env.coordinator.Claim(ctx, testWalkerX, id)
			},
			verb: func(c *Coordinator, id string) error {
				_, err := c.StartWalk(ctx, testWalkerY, id)
				return err
			},
			expectedReason: "not the assigned walker",
		},
		"start twice": {
			setup: func(env *testEnv, id string) {
				_, _ = env.coordinator.Claim(ctx, testWalkerX, id)
				_, _ = env.coordinator.StartWalk(ctx, testWalkerX, id)
			},
			verb: func(c *Coordinator, id string) error {
				_, err := c.StartWalk(ctx, testWalkerX, id)
				return err
			},
		},
		"start a started walk after resign and reclaim": {
			setup: func(env *testEnv, id string) {
				_, _ = env.coordinator.Claim(ctx, testWalkerX, id)
				_, _ = env.coordinator.StartWalk(ctx, testWalkerX, id)
				_ = env.coordinator.Resign(ctx, testWalkerX, id)
				_, _ = env.coordinator.Claim(ctx, testWalkerY, id)
			},
			verb: func(c *Coordinator, id string) error {
				started, err := c.StartWalk(ctx, testWalkerY, id)
				if err != nil {
					return err
				}
				if started.AcceptedBy == nil || *started.AcceptedBy != testWalkerY || started.StartedAt == nil {
					return errors.New("walk should be started by the new claimant")
				}
				_, err = c.FinishWalk(ctx, testWalkerY, id)
				return err
			},
		},
		"start a started walk after dismiss and reassign": {
			setup: func(env *testEnv, id string) {
				_ = env.coordinator.JoinBids(ctx, testWalkerX, id)
				_ = env.coordinator.JoinBids(ctx, testWalkerY, id)
				_ = env.coordinator.Assign(ctx, testOwner, id, testWalkerX)
				_, _ = env.coordinator.StartWalk(ctx, testWalkerX, id)
				_ = env.coordinator.Dismiss(ctx, testOwner, id, testWalkerX)
				_ = env.coordinator.Assign(ctx, testOwner, id, testWalkerY)
			},
			verb: func(c *Coordinator, id string) error {
				if _, err := c.StartWalk(ctx, testWalkerY, id); err != nil {
					return err
				}
				_, err := c.FinishWalk(ctx, testWalkerY, id)
				return err
			},
		},
		"start by the resigned walker after reclaim": {
			setup: func(env *testEnv, id string) {
				_, _ = env.coordinator.Claim(ctx, testWalkerX, id)
				_, _ = env.coordinator.StartWalk(ctx, testWalkerX, id)
				_ = env.coordinator.Resign(ctx, testWalkerX, id)
				_, _ = env.coordinator.Claim(ctx, testWalkerY, id)
			},
			verb: func(c *Coordinator, id string) error {
				_, err := c.StartWalk(ctx, testWalkerX, id)
				return err
			},
			expectedReason: "not the assigned walker",
		},
		"start and finish": {
			setup: func(env *testEnv, id string) {
				_, _ = env.coordinator.Claim(ctx, testWalkerX, id)
				_, _ = env.coordinator.StartWalk(ctx, testWalkerX, id)
			},
			verb: func(c *Coordinator, id string) error {
				finished, err := c.FinishWalk(ctx, testWalkerX, id)
				if err == nil && (finished.StartedAt == nil || finished.FinishedAt == nil) {
					return errors.New("walk timestamps missing")
				}
				return err
			},
		},
		"finish after resigning": {
			setup: func(env *testEnv, id string) {
				_, _ = env.coordinator.Claim(ctx, testWalkerX, id)
				_ = env.coordinator.Resign(ctx, testWalkerX, id)
			},
			verb: func(c *Coordinator, id string) error {
				_, err := c.FinishWalk(ctx, testWalkerX, id)
				return err
			},
			expectedReason: "not the assigned walker",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			env := newTestEnv()
			walkRequest := env.createRequest(0, 0)
			if test.setup != nil {
				test.setup(env, walkRequest.Id)
			}
			err := test.verb(env.coordinator, walkRequest.Id)
			if len(test.expectedReason) == 0 {
				if err != nil {
					t.Errorf("unexpected error received %v", err)
				}
				return
			}
			if reason := conflictReason(t, err); reason != test.expectedReason {
				t.Errorf("unexpected reason: found=%q, expected=%q", reason, test.expectedReason)
			}
		})
	}
}

func TestVerbOnMissingRequest(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	if _, err := env.coordinator.Claim(ctx, testWalkerX, "missing"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("should have received not found, got %v", err)
	}
	if err := env.coordinator.JoinBids(ctx, testWalkerX, "missing"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("should have received not found, got %v", err)
	}
	if err := env.coordinator.CancelUnclaimed(ctx, testOwner, "missing"); errors.Is(err, models.ErrPreconditionFailed) {
		t.Errorf("a missing request is not a precondition failure")
	}
	if env.metricService.getCount(models.MetricName_VerbNotFound) != 3 {
		t.Errorf("not found outcomes should be counted")
	}
}

func TestMissingActorIsValidationError(t *testing.T) {
	env := newTestEnv()
	a := env.createRequest(0, 0)
	if _, err := env.coordinator.Claim(context.Background(), "", a.Id); !errors.Is(err, models.ErrValidation) {
		t.Errorf("should have received validation error, got %v", err)
	}
	if err := env.coordinator.Assign(context.Background(), testOwner, a.Id, ""); !errors.Is(err, models.ErrValidation) {
		t.Errorf("should have received validation error, got %v", err)
	}
}

func TestBackendFailure(t *testing.T) {
	ctx := context.Background()
	notifier := &SpyNotifier{}
	metricService := &MockMetricService{}
	coordinator := NewCoordinator(&FailingWalkRequestRepository{}, memstore.NewCatalogStore(), nil, notifier, metricService, testLogger)

	_, err := coordinator.Claim(ctx, testWalkerX, "req")
	if !errors.Is(err, models.ErrBackendUnavailable) {
		t.Errorf("should have received backend unavailable, got %v", err)
	}
	if !errors.Is(err, errConnectionReset) {
		t.Errorf("original cause should be preserved")
	}
	if err = coordinator.Resign(ctx, testWalkerX, "req"); !errors.Is(err, models.ErrBackendUnavailable) {
		t.Errorf("should have received backend unavailable, got %v", err)
	}
	if notifier.getNumAlerts() != 2 {
		t.Errorf("backend failures should raise alerts, found %d", notifier.getNumAlerts())
	}
	if metricService.getCount(models.MetricName_VerbFailed) != 2 {
		t.Errorf("backend failures should be counted")
	}
}

func TestCreateWalkRequest(t *testing.T) {
	ctx := context.Background()
	tests := map[string]struct {
		ownerId     string
		input       CreateWalkRequestInput
		shouldError bool
	}{
		"snapshot of an owned dog": {
			ownerId: testOwner,
			input:   CreateWalkRequestInput{DogIds: []string{testDogId}, Longitude: 10, Latitude: 20},
		},
		"no dogs": {
			ownerId:     testOwner,
			input:       CreateWalkRequestInput{Longitude: 10, Latitude: 20},
			shouldError: true,
		},
		"someone else's dog": {
			ownerId:     "stranger",
			input:       CreateWalkRequestInput{DogIds: []string{testDogId}},
			shouldError: true,
		},
		"unknown dog": {
			ownerId:     testOwner,
			input:       CreateWalkRequestInput{DogIds: []string{"nope"}},
			shouldError: true,
		},
		"latitude out of range": {
			ownerId:     testOwner,
			input:       CreateWalkRequestInput{DogIds: []string{testDogId}, Latitude: 95},
			shouldError: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			env := newTestEnv()
			walkRequest, err := env.coordinator.CreateWalkRequest(ctx, test.ownerId, test.input)
			if err != nil && !test.shouldError {
				t.Fatalf("unexpected error received %v", err)
			} else if err == nil && test.shouldError {
				t.Fatalf("should have received error")
			}
			if test.shouldError {
				if !errors.Is(err, models.ErrValidation) {
					t.Errorf("should have received validation error, got %v", err)
				}
				return
			}
			if walkRequest.Status() != models.WalkStatus_Waiting || walkRequest.CreatedBy != test.ownerId {
				t.Errorf("unexpected request: %+v", walkRequest)
			}
			if len(walkRequest.Dogs) != 1 || walkRequest.Dogs[0].Name != "Rex" {
				t.Fatalf("dog should be embedded: %+v", walkRequest.Dogs)
			}

			// Later edits to the dog do not reach the request.
			newName := "Max"
			if _, err = env.catalog.UpdateDog(ctx, testDogId, models.DogUpdate{Name: &newName}); err != nil {
				t.Fatalf("unexpected error received %v", err)
			}
			stored, _ := env.walkRequests.GetWalkRequest(ctx, walkRequest.Id)
			if stored.Dogs[0].Name != "Rex" {
				t.Errorf("snapshot should not follow dog edits")
			}
		})
	}
}

func TestLifecycleEvents(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	a := env.createRequest(0, 0)
	_ = env.coordinator.JoinBids(ctx, testWalkerX, a.Id)
	_ = env.coordinator.Assign(ctx, testOwner, a.Id, testWalkerX)
	_, _ = env.coordinator.Claim(ctx, testWalkerY, a.Id) // conflict, no event

	messages := waitForMesssages(env.publisher.messages, 3)
	if len(messages) != 3 {
		t.Fatalf("unexpected number of events: %d", len(messages))
	}
	types := make(map[models.WalkEventType]models.WalkEvent)
	for _, message := range messages {
		event := message.(models.WalkEvent)
		if event.WalkRequestId != a.Id {
			t.Errorf("unexpected request id on event: %s", event.WalkRequestId)
		}
		types[event.Type] = event
	}
	for _, expected := range []models.WalkEventType{models.WalkEventType_Created, models.WalkEventType_BidJoined, models.WalkEventType_Assigned} {
		if _, found := types[expected]; !found {
			t.Errorf("missing %s event", expected)
		}
	}
	if assigned := types[models.WalkEventType_Assigned]; assigned.ActorId != testOwner || assigned.SubjectId == nil || *assigned.SubjectId != testWalkerX {
		t.Errorf("assigned event should name owner and walker: %+v", assigned)
	}
	select {
	case extra := <-env.publisher.messages:
		t.Errorf("conflicting claim should not publish: %+v", extra)
	default:
	}
}

func TestDrainWaitsForPublishes(t *testing.T) {
	env := newTestEnv()
	// Unbuffered, so the publish stays in flight until the event is read.
	env.publisher.messages = make(chan any)
	a := env.createRequest(0, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := env.coordinator.Drain(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("drain should wait for the pending publish, got %v", err)
	}

	messages := waitForMesssages(env.publisher.messages, 1)
	if len(messages) != 1 || messages[0].(models.WalkEvent).WalkRequestId != a.Id {
		t.Fatalf("unexpected events: %v", messages)
	}
	ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := env.coordinator.Drain(ctx); err != nil {
		t.Errorf("unexpected error received %v", err)
	}
}
