package models

import (
	"fmt"
	"sort"
	"time"

	"github.com/littlewalk/go-walk/common/geo"
)

type Pagination struct {
	Limit int64 `json:"limit"`
	Skip  int64 `json:"skip"`
}

type Order string

const (
	Order_Asc  Order = "asc"
	Order_Desc Order = "desc"
)

type SortField string

const (
	SortField_CreatedAt  SortField = "created_at"
	SortField_UpdatedAt  SortField = "updated_at"
	SortField_AcceptedAt SortField = "accepted_at"
	SortField_Distance   SortField = "distance"
)

type SortBy struct {
	Field SortField
	Order Order
}

func (s SortBy) Validate() error {
	switch s.Field {
	case SortField_CreatedAt, SortField_UpdatedAt, SortField_AcceptedAt, SortField_Distance:
	default:
		return &ValidationError{Field: "sort", Reason: fmt.Sprintf("unsupported sort field %q", s.Field)}
	}
	switch s.Order {
	case Order_Asc, Order_Desc:
	default:
		return &ValidationError{Field: "order", Reason: fmt.Sprintf("unsupported sort order %q", s.Order)}
	}
	return nil
}

// Nearby is a proximity clause: an origin point and a radius in meters.
type Nearby struct {
	Longitude float64
	Latitude  float64
	Radius    float64
}

// ParseNearby accepts exactly a [longitude, latitude, radius] triple.
func ParseNearby(triple []float64) (*Nearby, error) {
	if len(triple) != 3 {
		return nil, &ValidationError{Field: "nearby", Reason: "expected [longitude, latitude, radius]"}
	}
	nearby := &Nearby{Longitude: triple[0], Latitude: triple[1], Radius: triple[2]}
	if err := nearby.Validate(); err != nil {
		return nil, err
	}
	return nearby, nil
}

func (n Nearby) Validate() error {
	if n.Longitude < -180 || n.Longitude > 180 {
		return &ValidationError{Field: "nearby", Reason: "longitude out of range"}
	}
	if n.Latitude < -90 || n.Latitude > 90 {
		return &ValidationError{Field: "nearby", Reason: "latitude out of range"}
	}
	if n.Radius < 0 {
		return &ValidationError{Field: "nearby", Reason: "radius must not be negative"}
	}
	return nil
}

func (n Nearby) DistanceTo(w *WalkRequest) float64 {
	return geo.Distance(n.Longitude, n.Latitude, w.Longitude, w.Latitude)
}

// WalkRequestQuery is a conjunction: every non-nil term must hold.
type WalkRequestQuery struct {
	Id                     *string
	CreatedBy              *string
	AcceptedBy             *string
	AcceptedByNeq          *string
	AcceptedByIsNull       *bool
	CanceledAtIsNull       *bool
	StartedAtIsNull        *bool
	FinishedAtIsNull       *bool
	DogIdsIncludesAll      []string
	DogIdsIncludesAny      []string
	AcceptancesIncludesAll []string
	AcceptancesIncludesAny []string
	Nearby                 *Nearby
}

// Matches evaluates every term, including proximity, against a single record.
func (q WalkRequestQuery) Matches(w *WalkRequest) bool {
	if !q.MatchesState(w) {
		return false
	}
	if q.Nearby != nil && q.Nearby.DistanceTo(w) > q.Nearby.Radius {
		return false
	}
	return true
}

// MatchesState evaluates every term except proximity.
func (q WalkRequestQuery) MatchesState(w *WalkRequest) bool {
	if q.Id != nil && *q.Id != w.Id {
		return false
	}
	if q.CreatedBy != nil && *q.CreatedBy != w.CreatedBy {
		return false
	}
	if q.AcceptedBy != nil && (w.AcceptedBy == nil || *w.AcceptedBy != *q.AcceptedBy) {
		return false
	}
	// An absent accepted_by differs from any walker.
	if q.AcceptedByNeq != nil && w.AcceptedBy != nil && *w.AcceptedBy == *q.AcceptedByNeq {
		return false
	}
	if q.AcceptedByIsNull != nil && (w.AcceptedBy == nil) != *q.AcceptedByIsNull {
		return false
	}
	if q.CanceledAtIsNull != nil && (w.CanceledAt == nil) != *q.CanceledAtIsNull {
		return false
	}
	if q.StartedAtIsNull != nil && (w.StartedAt == nil) != *q.StartedAtIsNull {
		return false
	}
	if q.FinishedAtIsNull != nil && (w.FinishedAt == nil) != *q.FinishedAtIsNull {
		return false
	}
	dogIds := w.DogIds
	if len(dogIds) == 0 && len(w.Dogs) > 0 {
		dogIds = make([]string, len(w.Dogs))
		for idx, dog := range w.Dogs {
			dogIds[idx] = dog.Id
		}
	}
	if len(q.DogIdsIncludesAll) > 0 && !includesAll(dogIds, q.DogIdsIncludesAll) {
		return false
	}
	if len(q.DogIdsIncludesAny) > 0 && !includesAny(dogIds, q.DogIdsIncludesAny) {
		return false
	}
	if len(q.AcceptancesIncludesAll) > 0 && !includesAll(w.Acceptances, q.AcceptancesIncludesAll) {
		return false
	}
	if len(q.AcceptancesIncludesAny) > 0 && !includesAny(w.Acceptances, q.AcceptancesIncludesAny) {
		return false
	}
	return true
}

// SelectWalkRequests filters candidates with the query, annotates distance when a proximity clause is present,
// orders the result and applies pagination. Backends without native support for a term share this path. Records
// are cloned, so the candidates are never modified.
func SelectWalkRequests(candidates []*WalkRequest, query WalkRequestQuery, sortBy *SortBy, page *Pagination) []*WalkRequest {
	selected := make([]*WalkRequest, 0)
	for _, candidate := range candidates {
		if !query.MatchesState(candidate) {
			continue
		}
		walkRequest := candidate.Clone()
		walkRequest.Distance = nil
		if query.Nearby != nil {
			distance := query.Nearby.DistanceTo(candidate)
			if distance > query.Nearby.Radius {
				continue
			}
			walkRequest.Distance = &distance
		}
		selected = append(selected, walkRequest)
	}
	if sortBy != nil {
		SortWalkRequests(selected, *sortBy)
	} else if query.Nearby != nil {
		SortWalkRequests(selected, SortBy{Field: SortField_Distance, Order: Order_Asc})
	}
	return Paginate(selected, page)
}

// SortWalkRequests is stable and breaks ties by id so that pages are deterministic.
func SortWalkRequests(walkRequests []*WalkRequest, sortBy SortBy) {
	sort.SliceStable(walkRequests, func(i, j int) bool {
		cmp := compareWalkRequests(walkRequests[i], walkRequests[j], sortBy.Field)
		if cmp == 0 {
			return walkRequests[i].Id < walkRequests[j].Id
		}
		if sortBy.Order == Order_Desc {
			return cmp > 0
		}
		return cmp < 0
	})
}

func Paginate[T any](items []T, page *Pagination) []T {
	if page == nil {
		return items
	}
	skip := page.Skip
	if skip < 0 {
		skip = 0
	}
	if skip >= int64(len(items)) {
		return items[:0]
	}
	items = items[skip:]
	if page.Limit > 0 && page.Limit < int64(len(items)) {
		items = items[:page.Limit]
	}
	return items
}

func compareWalkRequests(a, b *WalkRequest, field SortField) int {
	switch field {
	case SortField_UpdatedAt:
		return compareTimes(&a.UpdatedAt, &b.UpdatedAt)
	case SortField_AcceptedAt:
		return compareTimes(a.AcceptedAt, b.AcceptedAt)
	case SortField_Distance:
		return compareFloats(a.Distance, b.Distance)
	default:
		return compareTimes(&a.CreatedAt, &b.CreatedAt)
	}
}

// Unset values sort before set ones.
func compareTimes(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	case a.Before(*b):
		return -1
	case a.After(*b):
		return 1
	}
	return 0
}

func compareFloats(a, b *float64) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	case *a < *b:
		return -1
	case *a > *b:
		return 1
	}
	return 0
}

func includesAll(values, required []string) bool {
	for _, r := range required {
		if !contains(values, r) {
			return false
		}
	}
	return true
}

func includesAny(values, candidates []string) bool {
	for _, c := range candidates {
		if contains(values, c) {
			return true
		}
	}
	return false
}
