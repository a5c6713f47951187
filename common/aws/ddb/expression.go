package ddb

import (
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/littlewalk/go-walk/models"
)

// Attribute names of the walk request table.
const (
	attr_Id          = "id"
	attr_CreatedBy   = "created_by"
	attr_CreatedAt   = "created_at"
	attr_UpdatedAt   = "updated_at"
	attr_AcceptedBy  = "accepted_by"
	attr_AcceptedAt  = "accepted_at"
	attr_Acceptances = "acceptances"
	attr_DogIds      = "dog_ids"
	attr_CanceledAt  = "canceled_at"
	attr_StartedAt   = "started_at"
	attr_FinishedAt  = "finished_at"
)

// expressionBuilder collects placeholder names and values shared by the condition, filter and update expressions of
// a single request.
type expressionBuilder struct {
	names  map[string]string
	values map[string]types.AttributeValue
}

func newExpressionBuilder() *expressionBuilder {
	return &expressionBuilder{
		names:  make(map[string]string),
		values: make(map[string]types.AttributeValue),
	}
}

func (b *expressionBuilder) name(attr string) string {
	placeholder := "#" + attr
	b.names[placeholder] = attr
	return placeholder
}

func (b *expressionBuilder) value(av types.AttributeValue) string {
	placeholder := fmt.Sprintf(":v%d", len(b.values))
	b.values[placeholder] = av
	return placeholder
}

func (b *expressionBuilder) stringValue(s string) string {
	return b.value(&types.AttributeValueMemberS{Value: s})
}

func (b *expressionBuilder) timeValue(t time.Time) (string, error) {
	// Same encoding attributevalue uses for stored records, so comparisons stay lexical on one format.
	av, err := attributevalue.Marshal(t.UTC())
	if err != nil {
		return "", err
	}
	return b.value(av), nil
}

// attributeNames and attributeValues return nil when empty; DynamoDB rejects empty maps.
func (b *expressionBuilder) attributeNames() map[string]string {
	if len(b.names) == 0 {
		return nil
	}
	return b.names
}

func (b *expressionBuilder) attributeValues() map[string]types.AttributeValue {
	if len(b.values) == 0 {
		return nil
	}
	return b.values
}

// condition renders every term of the query except proximity, which DynamoDB cannot evaluate. The id term is
// skipped when skipId is set because the id is already the item key.
func (b *expressionBuilder) condition(query models.WalkRequestQuery, skipId bool) string {
	terms := make([]string, 0)
	if query.Id != nil && !skipId {
		terms = append(terms, fmt.Sprintf("%s = %s", b.name(attr_Id), b.stringValue(*query.Id)))
	}
	if query.CreatedBy != nil {
		terms = append(terms, fmt.Sprintf("%s = %s", b.name(attr_CreatedBy), b.stringValue(*query.CreatedBy)))
	}
	if query.AcceptedBy != nil {
		terms = append(terms, fmt.Sprintf("%s = %s", b.name(attr_AcceptedBy), b.stringValue(*query.AcceptedBy)))
	}
	if query.AcceptedByNeq != nil {
		acceptedBy := b.name(attr_AcceptedBy)
		terms = append(terms, fmt.Sprintf("(attribute_not_exists(%s) OR %s <> %s)", acceptedBy, acceptedBy, b.stringValue(*query.AcceptedByNeq)))
	}
	terms = b.nullTerm(terms, attr_AcceptedBy, query.AcceptedByIsNull)
	terms = b.nullTerm(terms, attr_CanceledAt, query.CanceledAtIsNull)
	terms = b.nullTerm(terms, attr_StartedAt, query.StartedAtIsNull)
	terms = b.nullTerm(terms, attr_FinishedAt, query.FinishedAtIsNull)
	terms = b.containsTerm(terms, attr_DogIds, query.DogIdsIncludesAll, " AND ")
	terms = b.containsTerm(terms, attr_DogIds, query.DogIdsIncludesAny, " OR ")
	terms = b.containsTerm(terms, attr_Acceptances, query.AcceptancesIncludesAll, " AND ")
	terms = b.containsTerm(terms, attr_Acceptances, query.AcceptancesIncludesAny, " OR ")
	return strings.Join(terms, " AND ")
}

func (b *expressionBuilder) nullTerm(terms []string, attr string, isNull *bool) []string {
	if isNull == nil {
		return terms
	}
	if *isNull {
		return append(terms, fmt.Sprintf("attribute_not_exists(%s)", b.name(attr)))
	}
	return append(terms, fmt.Sprintf("attribute_exists(%s)", b.name(attr)))
}

func (b *expressionBuilder) containsTerm(terms []string, attr string, members []string, join string) []string {
	if len(members) == 0 {
		return terms
	}
	placeholder := b.name(attr)
	contains := make([]string, len(members))
	for idx, member := range members {
		contains[idx] = fmt.Sprintf("contains(%s, %s)", placeholder, b.stringValue(member))
	}
	return append(terms, "("+strings.Join(contains, join)+")")
}

// update renders the SET, REMOVE, ADD and DELETE clauses of a partial update. updated_at is always stamped.
func (b *expressionBuilder) update(update models.WalkRequestUpdate, now time.Time) (string, error) {
	set := make([]string, 0)
	setTime := func(attr string, t *time.Time) error {
		if t == nil {
			return nil
		}
		placeholder, err := b.timeValue(*t)
		if err != nil {
			return err
		}
		set = append(set, fmt.Sprintf("%s = %s", b.name(attr), placeholder))
		return nil
	}
	if err := setTime(attr_UpdatedAt, &now); err != nil {
		return "", err
	}
	if update.AcceptedBy != nil {
		set = append(set, fmt.Sprintf("%s = %s", b.name(attr_AcceptedBy), b.stringValue(*update.AcceptedBy)))
	}
	for _, field := range []struct {
		attr string
		t    *time.Time
	}{
		{attr_AcceptedAt, update.AcceptedAt},
		{attr_CanceledAt, update.CanceledAt},
		{attr_StartedAt, update.StartedAt},
		{attr_FinishedAt, update.FinishedAt},
	} {
		if err := setTime(field.attr, field.t); err != nil {
			return "", err
		}
	}

	remove := make([]string, 0)
	if update.UnsetAcceptedBy {
		remove = append(remove, b.name(attr_AcceptedBy))
	}
	if update.UnsetAcceptedAt {
		remove = append(remove, b.name(attr_AcceptedAt))
	}

	clauses := []string{"SET " + strings.Join(set, ", ")}
	if len(remove) > 0 {
		clauses = append(clauses, "REMOVE "+strings.Join(remove, ", "))
	}
	// ADD and DELETE on a string set are set operations, so re-adding an existing member is a no-op.
	if update.AddToAcceptances != nil {
		member := b.value(&types.AttributeValueMemberSS{Value: []string{*update.AddToAcceptances}})
		clauses = append(clauses, fmt.Sprintf("ADD %s %s", b.name(attr_Acceptances), member))
	}
	if update.RemoveFromAcceptances != nil {
		member := b.value(&types.AttributeValueMemberSS{Value: []string{*update.RemoveFromAcceptances}})
		clauses = append(clauses, fmt.Sprintf("DELETE %s %s", b.name(attr_Acceptances), member))
	}
	return strings.Join(clauses, " "), nil
}
