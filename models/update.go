package models

import (
	"time"
)

// WalkRequestUpdate is a partial update. A nil field leaves the stored value unchanged, the Unset flags clear the claim
// fields, and the acceptance fields add to or remove from the bid pool as a set.
type WalkRequestUpdate struct {
	AcceptedBy            *string
	AcceptedAt            *time.Time
	CanceledAt            *time.Time
	StartedAt             *time.Time
	FinishedAt            *time.Time
	UnsetAcceptedBy       bool
	UnsetAcceptedAt       bool
	AddToAcceptances      *string
	RemoveFromAcceptances *string
}

func (u WalkRequestUpdate) IsEmpty() bool {
	return u.AcceptedBy == nil &&
		u.AcceptedAt == nil &&
		u.CanceledAt == nil &&
		u.StartedAt == nil &&
		u.FinishedAt == nil &&
		!u.UnsetAcceptedBy &&
		!u.UnsetAcceptedAt &&
		u.AddToAcceptances == nil &&
		u.RemoveFromAcceptances == nil
}

// Apply mutates the record in place and stamps updated_at.
func (u WalkRequestUpdate) Apply(w *WalkRequest, now time.Time) {
	if u.AcceptedBy != nil {
		acceptedBy := *u.AcceptedBy
		w.AcceptedBy = &acceptedBy
	}
	if u.AcceptedAt != nil {
		w.AcceptedAt = utcTime(u.AcceptedAt)
	}
	if u.CanceledAt != nil {
		w.CanceledAt = utcTime(u.CanceledAt)
	}
	if u.StartedAt != nil {
		w.StartedAt = utcTime(u.StartedAt)
	}
	if u.FinishedAt != nil {
		w.FinishedAt = utcTime(u.FinishedAt)
	}
	if u.UnsetAcceptedBy {
		w.AcceptedBy = nil
	}
	if u.UnsetAcceptedAt {
		w.AcceptedAt = nil
	}
	if u.AddToAcceptances != nil && !contains(w.Acceptances, *u.AddToAcceptances) {
		w.Acceptances = append(w.Acceptances, *u.AddToAcceptances)
	}
	if u.RemoveFromAcceptances != nil {
		remaining := make([]string, 0, len(w.Acceptances))
		for _, walkerId := range w.Acceptances {
			if walkerId != *u.RemoveFromAcceptances {
				remaining = append(remaining, walkerId)
			}
		}
		w.Acceptances = remaining
	}
	w.UpdatedAt = now.UTC()
}
