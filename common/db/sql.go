package db

import (
	"fmt"
	"strings"
	"time"

	"github.com/littlewalk/go-walk/common/geo"
	"github.com/littlewalk/go-walk/models"
)

const walkRequestColumns = "id, dogs, dog_ids, should_start_after, should_start_before, should_end_after, should_end_before, " +
	"longitude, latitude, created_by, created_at, updated_at, accepted_by, accepted_at, acceptances, canceled_at, " +
	"started_at, finished_at"

// sqlBuilder renders walk request predicates and updates with positional arguments.
type sqlBuilder struct {
	args []any
}

func (b *sqlBuilder) arg(value any) string {
	b.args = append(b.args, value)
	return fmt.Sprintf("$%d", len(b.args))
}

// where renders the query as a conjunction. An empty query renders as TRUE.
func (b *sqlBuilder) where(query models.WalkRequestQuery) string {
	terms := make([]string, 0)
	if query.Id != nil {
		terms = append(terms, "id = "+b.arg(*query.Id))
	}
	if query.CreatedBy != nil {
		terms = append(terms, "created_by = "+b.arg(*query.CreatedBy))
	}
	if query.AcceptedBy != nil {
		terms = append(terms, "accepted_by = "+b.arg(*query.AcceptedBy))
	}
	if query.AcceptedByNeq != nil {
		terms = append(terms, fmt.Sprintf("(accepted_by IS NULL OR accepted_by <> %s)", b.arg(*query.AcceptedByNeq)))
	}
	terms = nullTerm(terms, "accepted_by", query.AcceptedByIsNull)
	terms = nullTerm(terms, "canceled_at", query.CanceledAtIsNull)
	terms = nullTerm(terms, "started_at", query.StartedAtIsNull)
	terms = nullTerm(terms, "finished_at", query.FinishedAtIsNull)
	if len(query.DogIdsIncludesAll) > 0 {
		terms = append(terms, fmt.Sprintf("dog_ids @> %s::text[]", b.arg(query.DogIdsIncludesAll)))
	}
	if len(query.DogIdsIncludesAny) > 0 {
		terms = append(terms, fmt.Sprintf("dog_ids && %s::text[]", b.arg(query.DogIdsIncludesAny)))
	}
	if len(query.AcceptancesIncludesAll) > 0 {
		terms = append(terms, fmt.Sprintf("acceptances @> %s::text[]", b.arg(query.AcceptancesIncludesAll)))
	}
	if len(query.AcceptancesIncludesAny) > 0 {
		terms = append(terms, fmt.Sprintf("acceptances && %s::text[]", b.arg(query.AcceptancesIncludesAny)))
	}
	if query.Nearby != nil {
		terms = append(terms, fmt.Sprintf("%s <= %s", b.distance(*query.Nearby), b.arg(query.Nearby.Radius)))
	}
	if len(terms) == 0 {
		return "TRUE"
	}
	return strings.Join(terms, " AND ")
}

func nullTerm(terms []string, column string, isNull *bool) []string {
	if isNull == nil {
		return terms
	}
	if *isNull {
		return append(terms, column+" IS NULL")
	}
	return append(terms, column+" IS NOT NULL")
}

// distance renders the haversine great-circle distance in meters from the origin to the row's location.
func (b *sqlBuilder) distance(nearby models.Nearby) string {
	lng := b.arg(nearby.Longitude)
	lat := b.arg(nearby.Latitude)
	return fmt.Sprintf(
		"(2 * %.1f * asin(sqrt(least(1, power(sin(radians(latitude - %s::float8) / 2), 2) + "+
			"cos(radians(%s::float8)) * cos(radians(latitude)) * power(sin(radians(longitude - %s::float8) / 2), 2)))))",
		geo.EarthRadiusMeters, lat, lat, lng,
	)
}

// set renders the assignments of a partial update. updated_at is always stamped.
func (b *sqlBuilder) set(update models.WalkRequestUpdate, now time.Time) string {
	assignments := []string{"updated_at = " + b.arg(now.UTC())}
	if update.AcceptedBy != nil {
		assignments = append(assignments, "accepted_by = "+b.arg(*update.AcceptedBy))
	} else if update.UnsetAcceptedBy {
		assignments = append(assignments, "accepted_by = NULL")
	}
	if update.AcceptedAt != nil {
		assignments = append(assignments, "accepted_at = "+b.arg(update.AcceptedAt.UTC()))
	} else if update.UnsetAcceptedAt {
		assignments = append(assignments, "accepted_at = NULL")
	}
	if update.CanceledAt != nil {
		assignments = append(assignments, "canceled_at = "+b.arg(update.CanceledAt.UTC()))
	}
	if update.StartedAt != nil {
		assignments = append(assignments, "started_at = "+b.arg(update.StartedAt.UTC()))
	}
	if update.FinishedAt != nil {
		assignments = append(assignments, "finished_at = "+b.arg(update.FinishedAt.UTC()))
	}
	if update.AddToAcceptances != nil {
		walker := b.arg(*update.AddToAcceptances)
		assignments = append(assignments, fmt.Sprintf(
			"acceptances = CASE WHEN %s::text = ANY(acceptances) THEN acceptances ELSE array_append(acceptances, %s::text) END",
			walker, walker,
		))
	} else if update.RemoveFromAcceptances != nil {
		assignments = append(assignments, fmt.Sprintf("acceptances = array_remove(acceptances, %s::text)", b.arg(*update.RemoveFromAcceptances)))
	}
	return strings.Join(assignments, ", ")
}

// orderBy mirrors models.SortWalkRequests: unset values first in ascending order, ties broken by id. Without an
// explicit sort, proximity queries are nearest first and everything else is in creation order.
func (b *sqlBuilder) orderBy(sortBy *models.SortBy, distance string) string {
	if sortBy == nil {
		if len(distance) > 0 {
			return " ORDER BY distance ASC, id ASC"
		}
		return " ORDER BY created_at ASC, id ASC"
	}
	column := string(sortBy.Field)
	if sortBy.Field == models.SortField_Distance && len(distance) == 0 {
		column = string(models.SortField_CreatedAt)
	}
	if sortBy.Order == models.Order_Desc {
		return fmt.Sprintf(" ORDER BY %s DESC NULLS LAST, id ASC", column)
	}
	return fmt.Sprintf(" ORDER BY %s ASC NULLS FIRST, id ASC", column)
}

func (b *sqlBuilder) page(page *models.Pagination) string {
	if page == nil {
		return ""
	}
	clause := ""
	if page.Limit > 0 {
		clause += " LIMIT " + b.arg(page.Limit)
	}
	if page.Skip > 0 {
		clause += " OFFSET " + b.arg(page.Skip)
	}
	return clause
}

// selectWalkRequests renders the full listing statement.
func (b *sqlBuilder) selectWalkRequests(query models.WalkRequestQuery, sortBy *models.SortBy, page *models.Pagination) string {
	distance := ""
	distanceColumn := "NULL::float8 AS distance"
	if query.Nearby != nil {
		distance = b.distance(*query.Nearby)
		distanceColumn = distance + " AS distance"
	}
	where := b.where(query)
	return "SELECT " + walkRequestColumns + ", " + distanceColumn + " FROM walk_request WHERE " + where +
		b.orderBy(sortBy, distance) + b.page(page)
}
