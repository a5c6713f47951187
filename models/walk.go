package models

import (
	"time"
)

type WalkStatus string

const (
	WalkStatus_Canceled WalkStatus = "Canceled"
	WalkStatus_Accepted WalkStatus = "Accepted"
	WalkStatus_Started  WalkStatus = "Started"
	WalkStatus_Finished WalkStatus = "Finished"
	WalkStatus_Waiting  WalkStatus = "Waiting"
)

type WalkRequest struct {
	Id                string     `json:"id" dynamodbav:"id"`
	Dogs              []Dog      `json:"dogs" dynamodbav:"dogs"`
	DogIds            []string   `json:"-" dynamodbav:"dog_ids,stringset,omitempty"`
	ShouldStartAfter  *time.Time `json:"shouldStartAfter,omitempty" dynamodbav:"should_start_after,omitempty"`
	ShouldStartBefore *time.Time `json:"shouldStartBefore,omitempty" dynamodbav:"should_start_before,omitempty"`
	ShouldEndAfter    *time.Time `json:"shouldEndAfter,omitempty" dynamodbav:"should_end_after,omitempty"`
	ShouldEndBefore   *time.Time `json:"shouldEndBefore,omitempty" dynamodbav:"should_end_before,omitempty"`
	Longitude         float64    `json:"longitude" dynamodbav:"longitude"`
	Latitude          float64    `json:"latitude" dynamodbav:"latitude"`
	// Only populated by proximity queries, in meters.
	Distance    *float64   `json:"distance,omitempty" dynamodbav:"-"`
	CreatedBy   string     `json:"createdBy" dynamodbav:"created_by"`
	CreatedAt   time.Time  `json:"createdAt" dynamodbav:"created_at"`
	UpdatedAt   time.Time  `json:"updatedAt" dynamodbav:"updated_at"`
	AcceptedBy  *string    `json:"acceptedBy,omitempty" dynamodbav:"accepted_by,omitempty"`
	AcceptedAt  *time.Time `json:"acceptedAt,omitempty" dynamodbav:"accepted_at,omitempty"`
	Acceptances []string   `json:"acceptances" dynamodbav:"acceptances,stringset,omitempty"`
	CanceledAt  *time.Time `json:"canceledAt,omitempty" dynamodbav:"canceled_at,omitempty"`
	StartedAt   *time.Time `json:"startedAt,omitempty" dynamodbav:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finishedAt,omitempty" dynamodbav:"finished_at,omitempty"`
}

// Status is derived on read and never stored. The checks run in strict priority order, so a request that has been
// accepted keeps reporting Accepted after it is started or finished because accepted_at stays set.
func (w *WalkRequest) Status() WalkStatus {
	switch {
	case w.CanceledAt != nil:
		return WalkStatus_Canceled
	case w.AcceptedAt != nil:
		return WalkStatus_Accepted
	case w.StartedAt != nil:
		return WalkStatus_Started
	case w.FinishedAt != nil:
		return WalkStatus_Finished
	default:
		return WalkStatus_Waiting
	}
}

func (w *WalkRequest) HasBid(walkerId string) bool {
	return contains(w.Acceptances, walkerId)
}

func (w *WalkRequest) Clone() *WalkRequest {
	clone := *w
	if w.Dogs != nil {
		clone.Dogs = make([]Dog, len(w.Dogs))
		for idx, dog := range w.Dogs {
			clone.Dogs[idx] = dog.Clone()
		}
	}
	if w.DogIds != nil {
		clone.DogIds = append([]string{}, w.DogIds...)
	}
	if w.Acceptances != nil {
		clone.Acceptances = append([]string{}, w.Acceptances...)
	}
	clone.ShouldStartAfter = cloneTime(w.ShouldStartAfter)
	clone.ShouldStartBefore = cloneTime(w.ShouldStartBefore)
	clone.ShouldEndAfter = cloneTime(w.ShouldEndAfter)
	clone.ShouldEndBefore = cloneTime(w.ShouldEndBefore)
	clone.AcceptedAt = cloneTime(w.AcceptedAt)
	clone.CanceledAt = cloneTime(w.CanceledAt)
	clone.StartedAt = cloneTime(w.StartedAt)
	clone.FinishedAt = cloneTime(w.FinishedAt)
	if w.AcceptedBy != nil {
		acceptedBy := *w.AcceptedBy
		clone.AcceptedBy = &acceptedBy
	}
	if w.Distance != nil {
		distance := *w.Distance
		clone.Distance = &distance
	}
	return &clone
}

// WalkRequestCreate is the backend-facing create record. Dogs are snapshots taken by the caller.
type WalkRequestCreate struct {
	Dogs              []Dog
	ShouldStartAfter  *time.Time
	ShouldStartBefore *time.Time
	ShouldEndAfter    *time.Time
	ShouldEndBefore   *time.Time
	Longitude         float64
	Latitude          float64
	CreatedBy         string
}

// NewWalkRequest builds the stored form of a create record.
func NewWalkRequest(id string, create *WalkRequestCreate, now time.Time) *WalkRequest {
	now = now.UTC()
	dogs := make([]Dog, len(create.Dogs))
	dogIds := make([]string, len(create.Dogs))
	for idx, dog := range create.Dogs {
		dogs[idx] = dog.Clone()
		dogIds[idx] = dog.Id
	}
	return &WalkRequest{
		Id:                id,
		Dogs:              dogs,
		DogIds:            uniqueStrings(dogIds),
		ShouldStartAfter:  utcTime(create.ShouldStartAfter),
		ShouldStartBefore: utcTime(create.ShouldStartBefore),
		ShouldEndAfter:    utcTime(create.ShouldEndAfter),
		ShouldEndBefore:   utcTime(create.ShouldEndBefore),
		Longitude:         create.Longitude,
		Latitude:          create.Latitude,
		CreatedBy:         create.CreatedBy,
		CreatedAt:         now,
		UpdatedAt:         now,
		Acceptances:       []string{},
	}
}

// WalkingLocation is an append-only breadcrumb sample.
type WalkingLocation struct {
	Id            string    `json:"id" dynamodbav:"id"`
	WalkRequestId string    `json:"walkRequestId" dynamodbav:"walk_request_id"`
	Longitude     float64   `json:"longitude" dynamodbav:"longitude"`
	Latitude      float64   `json:"latitude" dynamodbav:"latitude"`
	CreatedAt     time.Time `json:"createdAt" dynamodbav:"created_at"`
}

type WalkingLocationCreate struct {
	WalkRequestId string  `validate:"required"`
	Longitude     float64 `validate:"gte=-180,lte=180"`
	Latitude      float64 `validate:"gte=-90,lte=90"`
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	clone := *t
	return &clone
}

func utcTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	utc := t.UTC()
	return &utc
}

func uniqueStrings(values []string) []string {
	unique := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, value := range values {
		if !seen[value] {
			seen[value] = true
			unique = append(unique, value)
		}
	}
	return unique
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
