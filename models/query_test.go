package models

import (
	"errors"
	"testing"
	"time"
)

func TestQueryMatches(t *testing.T) {
	walker := "walker"
	other := "other"
	owner := "owner"
	yes := true
	no := false
	now := time.Now()
	claimed := &WalkRequest{
		Id:          "claimed",
		CreatedBy:   owner,
		Dogs:        []Dog{{Id: "dog1"}, {Id: "dog2"}},
		DogIds:      []string{"dog1", "dog2"},
		AcceptedBy:  &walker,
		AcceptedAt:  &now,
		Acceptances: []string{walker, other},
	}
	open := &WalkRequest{
		Id:          "open",
		CreatedBy:   owner,
		Dogs:        []Dog{{Id: "dog3"}},
		Acceptances: []string{other},
	}
	tests := map[string]struct {
		query    WalkRequestQuery
		target   *WalkRequest
		expected bool
	}{
		"empty query matches everything": {
			target:   claimed,
			expected: true,
		},
		"id mismatch": {
			query:    WalkRequestQuery{Id: &open.Id},
			target:   claimed,
			expected: false,
		},
		"accepted_by equals": {
			query:    WalkRequestQuery{AcceptedBy: &walker},
			target:   claimed,
			expected: true,
		},
		"accepted_by equals on unclaimed": {
			query:    WalkRequestQuery{AcceptedBy: &walker},
			target:   open,
			expected: false,
		},
		"accepted_by not-equals holds when unclaimed": {
			query:    WalkRequestQuery{AcceptedByNeq: &walker},
			target:   open,
			expected: true,
		},
		"accepted_by not-equals fails for the claimant": {
			query:    WalkRequestQuery{AcceptedByNeq: &walker},
			target:   claimed,
			expected: false,
		},
		"accepted_by not-equals holds for someone else": {
			query:    WalkRequestQuery{AcceptedByNeq: &other},
			target:   claimed,
			expected: true,
		},
		"accepted_by is null": {
			query:    WalkRequestQuery{AcceptedByIsNull: &yes},
			target:   claimed,
			expected: false,
		},
		"accepted_by is not null": {
			query:    WalkRequestQuery{AcceptedByIsNull: &no},
			target:   claimed,
			expected: true,
		},
		"dog ids includes all": {
			query:    WalkRequestQuery{DogIdsIncludesAll: []string{"dog1", "dog2"}},
			target:   claimed,
			expected: true,
		},
		"dog ids includes all with one missing": {
			query:    WalkRequestQuery{DogIdsIncludesAll: []string{"dog1", "dog3"}},
			target:   claimed,
			expected: false,
		},
		"dog ids includes any falls back to embedded dogs": {
			query:    WalkRequestQuery{DogIdsIncludesAny: []string{"dog9", "dog3"}},
			target:   open,
			expected: true,
		},
		"acceptances includes all": {
			query:    WalkRequestQuery{AcceptancesIncludesAll: []string{walker}},
			target:   open,
			expected: false,
		},
		"acceptances includes any": {
			query:    WalkRequestQuery{AcceptancesIncludesAny: []string{walker, other}},
			target:   open,
			expected: true,
		},
		"conjunction": {
			query:    WalkRequestQuery{Id: &claimed.Id, CreatedBy: &owner, AcceptedBy: &walker, CanceledAtIsNull: &yes},
			target:   claimed,
			expected: true,
		},
		"canceled requests fail canceled_at is null": {
			query:    WalkRequestQuery{CanceledAtIsNull: &yes},
			target:   &WalkRequest{CanceledAt: &now},
			expected: false,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			if matches := test.query.Matches(test.target); matches != test.expected {
				t.Errorf("unexpected match result: found=%v, expected=%v", matches, test.expected)
			}
		})
	}
}

func TestParseNearby(t *testing.T) {
	tests := map[string]struct {
		triple      []float64
		shouldError bool
	}{
		"valid triple":      {triple: []float64{0, 0, 1000}},
		"too short":         {triple: []float64{0, 0}, shouldError: true},
		"too long":          {triple: []float64{0, 0, 1, 2}, shouldError: true},
		"empty":             {triple: nil, shouldError: true},
		"latitude too big":  {triple: []float64{0, 91, 10}, shouldError: true},
		"negative radius":   {triple: []float64{0, 0, -1}, shouldError: true},
		"longitude too big": {triple: []float64{181, 0, 10}, shouldError: true},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			nearby, err := ParseNearby(test.triple)
			if err != nil && !test.shouldError {
				t.Errorf("unexpected error received %v", err)
			} else if err == nil && test.shouldError {
				t.Errorf("should have received error")
			}
			if err != nil && !errors.Is(err, ErrValidation) {
				t.Errorf("error should be a validation error: %v", err)
			}
			if err == nil && nearby.Radius != test.triple[2] {
				t.Errorf("unexpected radius: %v", nearby.Radius)
			}
		})
	}
}

func TestSelectWalkRequestsByProximity(t *testing.T) {
	walker := "walker"
	c := &WalkRequest{Id: "C", Longitude: 0, Latitude: 0}
	d := &WalkRequest{Id: "D", Longitude: 10, Latitude: 10}
	e := &WalkRequest{Id: "E", Longitude: 0.005, Latitude: 0}
	claimed := &WalkRequest{Id: "F", Longitude: 0, Latitude: 0.001, AcceptedBy: &walker}
	yes := true

	query := WalkRequestQuery{AcceptedByIsNull: &yes, Nearby: &Nearby{Radius: 1000}}
	selected := SelectWalkRequests([]*WalkRequest{d, e, claimed, c}, query, nil, nil)

	if len(selected) != 2 {
		t.Fatalf("unexpected result count: %d", len(selected))
	}
	// Nearest first when no sort is supplied.
	if selected[0].Id != "C" || selected[1].Id != "E" {
		t.Errorf("unexpected order: %s, %s", selected[0].Id, selected[1].Id)
	}
	for _, walkRequest := range selected {
		if walkRequest.Distance == nil {
			t.Fatalf("distance should be annotated on %s", walkRequest.Id)
		}
		if *walkRequest.Distance > 1000 {
			t.Errorf("%s is outside the radius: %v", walkRequest.Id, *walkRequest.Distance)
		}
	}
	if c.Distance != nil {
		t.Errorf("candidates should not be modified")
	}
}

func TestSelectWalkRequestsSortAndPage(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	candidates := make([]*WalkRequest, 0)
	for i, id := range []string{"a", "b", "c", "d", "e"} {
		candidates = append(candidates, &WalkRequest{Id: id, CreatedAt: base.Add(time.Duration(i) * time.Hour)})
	}
	tests := map[string]struct {
		sortBy   *SortBy
		page     *Pagination
		expected []string
	}{
		"no sort no page keeps input order": {
			expected: []string{"a", "b", "c", "d", "e"},
		},
		"created_at descending": {
			sortBy:   &SortBy{Field: SortField_CreatedAt, Order: Order_Desc},
			expected: []string{"e", "d", "c", "b", "a"},
		},
		"skip is an offset, not the limit": {
			sortBy:   &SortBy{Field: SortField_CreatedAt, Order: Order_Desc},
			page:     &Pagination{Limit: 2, Skip: 1},
			expected: []string{"d", "c"},
		},
		"skip past the end": {
			page:     &Pagination{Limit: 2, Skip: 10},
			expected: []string{},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			selected := SelectWalkRequests(candidates, WalkRequestQuery{}, test.sortBy, test.page)
			if len(selected) != len(test.expected) {
				t.Fatalf("unexpected result count: found=%d, expected=%d", len(selected), len(test.expected))
			}
			for idx, walkRequest := range selected {
				if walkRequest.Id != test.expected[idx] {
					t.Errorf("unexpected id at %d: found=%s, expected=%s", idx, walkRequest.Id, test.expected[idx])
				}
			}
		})
	}
}
