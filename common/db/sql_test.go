package db

import (
	"strings"
	"testing"
	"time"

	"github.com/littlewalk/go-walk/models"
)

func TestWhere(t *testing.T) {
	id := "req1"
	walker := "walker"
	owner := "owner"
	yes := true
	tests := map[string]struct {
		query        models.WalkRequestQuery
		expected     string
		expectedArgs int
	}{
		"empty query": {
			expected:     "TRUE",
			expectedArgs: 0,
		},
		"claim": {
			query:        models.WalkRequestQuery{Id: &id, AcceptedByIsNull: &yes, CanceledAtIsNull: &yes},
			expected:     "id = $1 AND accepted_by IS NULL AND canceled_at IS NULL",
			expectedArgs: 1,
		},
		"withdraw": {
			query:        models.WalkRequestQuery{Id: &id, AcceptedByNeq: &walker},
			expected:     "id = $1 AND (accepted_by IS NULL OR accepted_by <> $2)",
			expectedArgs: 2,
		},
		"assign": {
			query:        models.WalkRequestQuery{CreatedBy: &owner, AcceptancesIncludesAll: []string{walker}},
			expected:     "created_by = $1 AND acceptances @> $2::text[]",
			expectedArgs: 2,
		},
		"dog ids any": {
			query:        models.WalkRequestQuery{DogIdsIncludesAny: []string{"a", "b"}},
			expected:     "dog_ids && $1::text[]",
			expectedArgs: 1,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			builder := sqlBuilder{}
			if where := builder.where(test.query); where != test.expected {
				t.Errorf("unexpected where: found=%q, expected=%q", where, test.expected)
			}
			if len(builder.args) != test.expectedArgs {
				t.Errorf("unexpected arg count: found=%d, expected=%d", len(builder.args), test.expectedArgs)
			}
		})
	}
}

func TestWhereNearby(t *testing.T) {
	builder := sqlBuilder{}
	where := builder.where(models.WalkRequestQuery{Nearby: &models.Nearby{Longitude: 1, Latitude: 2, Radius: 1000}})
	if !strings.Contains(where, "6378100.0") {
		t.Errorf("distance should use the earth radius: %s", where)
	}
	if !strings.HasSuffix(where, "<= $3") {
		t.Errorf("radius should be the last argument: %s", where)
	}
	if builder.args[0] != 1.0 || builder.args[1] != 2.0 || builder.args[2] != 1000.0 {
		t.Errorf("unexpected args: %v", builder.args)
	}
}

func TestSet(t *testing.T) {
	walker := "walker"
	now := time.Now()
	tests := map[string]struct {
		update   models.WalkRequestUpdate
		expected string
	}{
		"claim": {
			update:   models.WalkRequestUpdate{AcceptedBy: &walker, AcceptedAt: &now},
			expected: "updated_at = $1, accepted_by = $2, accepted_at = $3",
		},
		"dismiss": {
			update:   models.WalkRequestUpdate{UnsetAcceptedBy: true, UnsetAcceptedAt: true},
			expected: "updated_at = $1, accepted_by = NULL, accepted_at = NULL",
		},
		"join": {
			update:   models.WalkRequestUpdate{AddToAcceptances: &walker},
			expected: "updated_at = $1, acceptances = CASE WHEN $2::text = ANY(acceptances) THEN acceptances ELSE array_append(acceptances, $2::text) END",
		},
		"resign": {
			update:   models.WalkRequestUpdate{UnsetAcceptedBy: true, UnsetAcceptedAt: true, RemoveFromAcceptances: &walker},
			expected: "updated_at = $1, accepted_by = NULL, accepted_at = NULL, acceptances = array_remove(acceptances, $2::text)",
		},
		"finish": {
			update:   models.WalkRequestUpdate{FinishedAt: &now},
			expected: "updated_at = $1, finished_at = $2",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			builder := sqlBuilder{}
			if set := builder.set(test.update, now); set != test.expected {
				t.Errorf("unexpected set: found=%q, expected=%q", set, test.expected)
			}
		})
	}
}

func TestSelectWalkRequests(t *testing.T) {
	owner := "owner"
	tests := map[string]struct {
		query    models.WalkRequestQuery
		sortBy   *models.SortBy
		page     *models.Pagination
		contains []string
	}{
		"my requests": {
			query:    models.WalkRequestQuery{CreatedBy: &owner},
			sortBy:   &models.SortBy{Field: models.SortField_CreatedAt, Order: models.Order_Desc},
			page:     &models.Pagination{Limit: 20, Skip: 40},
			contains: []string{"NULL::float8 AS distance", "WHERE created_by = $1", "ORDER BY created_at DESC NULLS LAST, id ASC", "LIMIT $2 OFFSET $3"},
		},
		"nearby defaults to nearest first": {
			query:    models.WalkRequestQuery{Nearby: &models.Nearby{Radius: 10}},
			page:     &models.Pagination{Limit: 5},
			contains: []string{") AS distance", "ORDER BY distance ASC, id ASC", "LIMIT $"},
		},
		"no page": {
			contains: []string{"WHERE TRUE ORDER BY created_at ASC, id ASC"},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			builder := sqlBuilder{}
			sql := builder.selectWalkRequests(test.query, test.sortBy, test.page)
			for _, fragment := range test.contains {
				if !strings.Contains(sql, fragment) {
					t.Errorf("statement should contain %q: %s", fragment, sql)
				}
			}
		})
	}
}
