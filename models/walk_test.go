package models

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"
)

func TestStatus(t *testing.T) {
	now := time.Now()
	tests := map[string]struct {
		walkRequest WalkRequest
		expected    WalkStatus
	}{
		"fresh request is waiting": {
			walkRequest: WalkRequest{},
			expected:    WalkStatus_Waiting,
		},
		"accepted": {
			walkRequest: WalkRequest{AcceptedAt: &now},
			expected:    WalkStatus_Accepted,
		},
		"canceled wins over everything": {
			walkRequest: WalkRequest{CanceledAt: &now, AcceptedAt: &now, StartedAt: &now, FinishedAt: &now},
			expected:    WalkStatus_Canceled,
		},
		"accepted hides started": {
			walkRequest: WalkRequest{AcceptedAt: &now, StartedAt: &now},
			expected:    WalkStatus_Accepted,
		},
		"accepted hides finished": {
			walkRequest: WalkRequest{AcceptedAt: &now, StartedAt: &now, FinishedAt: &now},
			expected:    WalkStatus_Accepted,
		},
		"started without accepted_at": {
			walkRequest: WalkRequest{StartedAt: &now, FinishedAt: &now},
			expected:    WalkStatus_Started,
		},
		"finished only": {
			walkRequest: WalkRequest{FinishedAt: &now},
			expected:    WalkStatus_Finished,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			if status := test.walkRequest.Status(); status != test.expected {
				t.Errorf("unexpected status: found=%s, expected=%s", status, test.expected)
			}
		})
	}
}

func TestNewWalkRequestSnapshotsDogs(t *testing.T) {
	portrait := "portrait"
	dog := Dog{Id: "dog1", Name: "Rex", Tags: []string{"calm"}, PortraitId: &portrait}
	walkRequest := NewWalkRequest("req1", &WalkRequestCreate{Dogs: []Dog{dog, dog}, CreatedBy: "owner"}, time.Now())

	dog.Name = "Max"
	dog.Tags[0] = "wild"
	*dog.PortraitId = "changed"

	if walkRequest.Dogs[0].Name != "Rex" || walkRequest.Dogs[0].Tags[0] != "calm" || *walkRequest.Dogs[0].PortraitId != "portrait" {
		t.Errorf("snapshot followed the live dog record: %+v", walkRequest.Dogs[0])
	}
	if !reflect.DeepEqual(walkRequest.DogIds, []string{"dog1"}) {
		t.Errorf("dog ids should be deduplicated: %v", walkRequest.DogIds)
	}
	if walkRequest.Status() != WalkStatus_Waiting {
		t.Errorf("new request should be waiting")
	}
	if len(walkRequest.Acceptances) != 0 {
		t.Errorf("new request should have an empty bid pool")
	}
}

func TestUpdateApply(t *testing.T) {
	walker := "walker"
	other := "other"
	now := time.Now()
	tests := map[string]struct {
		initial  WalkRequest
		update   WalkRequestUpdate
		expected WalkRequest
	}{
		"claim": {
			initial:  WalkRequest{},
			update:   WalkRequestUpdate{AcceptedBy: &walker, AcceptedAt: &now},
			expected: WalkRequest{AcceptedBy: &walker, AcceptedAt: &now},
		},
		"unset claim": {
			initial:  WalkRequest{AcceptedBy: &walker, AcceptedAt: &now},
			update:   WalkRequestUpdate{UnsetAcceptedBy: true, UnsetAcceptedAt: true},
			expected: WalkRequest{},
		},
		"add to acceptances is a set add": {
			initial:  WalkRequest{Acceptances: []string{walker}},
			update:   WalkRequestUpdate{AddToAcceptances: &walker},
			expected: WalkRequest{Acceptances: []string{walker}},
		},
		"add a new bidder": {
			initial:  WalkRequest{Acceptances: []string{walker}},
			update:   WalkRequestUpdate{AddToAcceptances: &other},
			expected: WalkRequest{Acceptances: []string{walker, other}},
		},
		"remove from acceptances": {
			initial:  WalkRequest{Acceptances: []string{walker, other}},
			update:   WalkRequestUpdate{RemoveFromAcceptances: &walker},
			expected: WalkRequest{Acceptances: []string{other}},
		},
		"resign clears claim and bid": {
			initial:  WalkRequest{AcceptedBy: &walker, AcceptedAt: &now, Acceptances: []string{walker}},
			update:   WalkRequestUpdate{UnsetAcceptedBy: true, UnsetAcceptedAt: true, RemoveFromAcceptances: &walker},
			expected: WalkRequest{Acceptances: []string{}},
		},
		"cancel": {
			initial:  WalkRequest{},
			update:   WalkRequestUpdate{CanceledAt: &now},
			expected: WalkRequest{CanceledAt: &now},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			walkRequest := test.initial.Clone()
			test.update.Apply(walkRequest, now)
			if !walkRequest.UpdatedAt.Equal(now) {
				t.Errorf("updated_at should be stamped")
			}
			if (walkRequest.AcceptedBy == nil) != (test.expected.AcceptedBy == nil) ||
				(walkRequest.AcceptedBy != nil && *walkRequest.AcceptedBy != *test.expected.AcceptedBy) {
				t.Errorf("unexpected accepted_by: found=%v, expected=%v", walkRequest.AcceptedBy, test.expected.AcceptedBy)
			}
			if (walkRequest.AcceptedAt == nil) != (test.expected.AcceptedAt == nil) {
				t.Errorf("accepted_at should be set iff accepted_by is set")
			}
			if (walkRequest.CanceledAt == nil) != (test.expected.CanceledAt == nil) {
				t.Errorf("unexpected canceled_at: %v", walkRequest.CanceledAt)
			}
			if len(walkRequest.Acceptances) != len(test.expected.Acceptances) ||
				(len(test.expected.Acceptances) > 0 && !reflect.DeepEqual(walkRequest.Acceptances, test.expected.Acceptances)) {
				t.Errorf("unexpected acceptances: found=%v, expected=%v", walkRequest.Acceptances, test.expected.Acceptances)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	tests := map[string]struct {
		err      error
		expected ErrorKind
	}{
		"nil":          {err: nil, expected: ErrorKind_None},
		"not found":    {err: fmt.Errorf("get: %w", ErrNotFound), expected: ErrorKind_NotFound},
		"conflict":     {err: &ConflictError{Verb: Verb_Claim, Reason: "already claimed"}, expected: ErrorKind_PreconditionFailed},
		"validation":   {err: &ValidationError{Field: "nearby", Reason: "bad"}, expected: ErrorKind_Validation},
		"backend":      {err: NewBackendError("update", errors.New("connection reset")), expected: ErrorKind_BackendUnavailable},
		"unclassified": {err: errors.New("boom"), expected: ErrorKind_BackendUnavailable},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			if kind := KindOf(test.err); kind != test.expected {
				t.Errorf("unexpected kind: found=%s, expected=%s", kind, test.expected)
			}
		})
	}
}

func TestBackendErrorKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("claim: %w", NewBackendError("update walk request", cause))
	if !errors.Is(err, cause) {
		t.Errorf("cause should be preserved")
	}
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Errorf("should classify as backend unavailable")
	}
}
