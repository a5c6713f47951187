package ddb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/littlewalk/go-walk"
	"github.com/littlewalk/go-walk/common"
	"github.com/littlewalk/go-walk/models"
)

const createdByIndex = "created_by-created_at-index"

var _ models.WalkRequestRepository = &WalkRequestDatabase{}

// WalkRequestDatabase stores walk requests in DynamoDB. Conditional updates go through UpdateItem with a
// ConditionExpression, so the precondition check and the write are one atomic operation on the item.
type WalkRequestDatabase struct {
	client *dynamodb.Client
	logger models.Logger
	table  string
	now    func() time.Time
}

func NewWalkRequestDb(ctx context.Context, logger models.Logger, client *dynamodb.Client) *WalkRequestDatabase {
	wdb := WalkRequestDatabase{
		client: client,
		logger: logger,
		table:  TablePrefix() + "walk-request",
		now:    time.Now,
	}
	if err := wdb.createTable(ctx); err != nil {
		logger.Fatalf("walks: table creation failed: %v", err)
	}
	return &wdb
}

// TablePrefix is shared by every table of the deployment environment.
func TablePrefix() string {
	env, found := os.LookupEnv(walk.Env_Env)
	if !found || len(env) == 0 {
		env = walk.DefaultEnv
	}
	return "walk-" + env + "-"
}

func (wdb *WalkRequestDatabase) createTable(ctx context.Context) error {
	createTableInput := dynamodb.CreateTableInput{
		AttributeDefinitions: []types.AttributeDefinition{
			{
				AttributeName: aws.String(attr_Id),
				AttributeType: "S",
			},
			{
				AttributeName: aws.String(attr_CreatedBy),
				AttributeType: "S",
			},
			{
				AttributeName: aws.String(attr_CreatedAt),
				AttributeType: "S",
			},
		},
		KeySchema: []types.KeySchemaElement{
			{
				AttributeName: aws.String(attr_Id),
				KeyType:       "HASH",
			},
		},
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
			{
				IndexName: aws.String(createdByIndex),
				KeySchema: []types.KeySchemaElement{
					{
						AttributeName: aws.String(attr_CreatedBy),
						KeyType:       "HASH",
					},
					{
						AttributeName: aws.String(attr_CreatedAt),
						KeyType:       "RANGE",
					},
				},
				Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
				ProvisionedThroughput: &types.ProvisionedThroughput{
					ReadCapacityUnits:  aws.Int64(1),
					WriteCapacityUnits: aws.Int64(1),
				},
			},
		},
		TableName: aws.String(wdb.table),
		ProvisionedThroughput: &types.ProvisionedThroughput{
			ReadCapacityUnits:  aws.Int64(1),
			WriteCapacityUnits: aws.Int64(1),
		},
	}
	return createTable(ctx, wdb.logger, wdb.client, &createTableInput)
}

func (wdb *WalkRequestDatabase) CreateWalkRequest(ctx context.Context, create *models.WalkRequestCreate) (string, error) {
	walkRequest := models.NewWalkRequest(uuid.New().String(), create, wdb.now())
	attributeValues, err := attributevalue.MarshalMap(walkRequest)
	if err != nil {
		return "", err
	}
	putItemIn := dynamodb.PutItemInput{
		TableName:                aws.String(wdb.table),
		ConditionExpression:      aws.String("attribute_not_exists(#id)"),
		ExpressionAttributeNames: map[string]string{"#id": attr_Id},
		Item:                     attributeValues,
	}

	httpCtx, httpCancel := context.WithTimeout(ctx, common.DefaultRpcWaitTime)
	defer httpCancel()

	if _, err = wdb.client.PutItem(httpCtx, &putItemIn); err != nil {
		wdb.logger.Errorf("walks: error writing to db: %v", err)
		return "", models.NewBackendError("create walk request", err)
	}
	return walkRequest.Id, nil
}

func (wdb *WalkRequestDatabase) GetWalkRequest(ctx context.Context, id string) (*models.WalkRequest, error) {
	getItemIn := dynamodb.GetItemInput{
		Key:            wdb.key(id),
		TableName:      aws.String(wdb.table),
		ConsistentRead: aws.Bool(true),
	}

	httpCtx, httpCancel := context.WithTimeout(ctx, common.DefaultRpcWaitTime)
	defer httpCancel()

	getItemOut, err := wdb.client.GetItem(httpCtx, &getItemIn)
	if err != nil {
		return nil, models.NewBackendError("get walk request", err)
	}
	if getItemOut.Item == nil {
		return nil, models.ErrNotFound
	}
	return unmarshalWalkRequest(getItemOut.Item)
}

// UpdateWalkRequest needs the query to name an id: DynamoDB can only condition a write on a keyed item.
func (wdb *WalkRequestDatabase) UpdateWalkRequest(ctx context.Context, query models.WalkRequestQuery, update models.WalkRequestUpdate) (*models.WalkRequest, error) {
	if query.Id == nil {
		ids, err := wdb.matchingIds(ctx, query)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			keyed := query
			keyed.Id = &id
			if walkRequest, err := wdb.updateItem(ctx, keyed, update); err == nil {
				return walkRequest, nil
			} else if !errors.Is(err, models.ErrNotFound) {
				return nil, err
			}
		}
		return nil, models.ErrNotFound
	}
	return wdb.updateItem(ctx, query, update)
}

// UpdateWalkRequests applies the update item by item. Each item is conditioned independently, so the count is the
// number of items whose condition held at the time of their own write.
func (wdb *WalkRequestDatabase) UpdateWalkRequests(ctx context.Context, query models.WalkRequestQuery, update models.WalkRequestUpdate) (int64, error) {
	ids := make([]string, 0, 1)
	if query.Id != nil {
		ids = append(ids, *query.Id)
	} else {
		var err error
		if ids, err = wdb.matchingIds(ctx, query); err != nil {
			return 0, err
		}
	}
	var matched int64
	for _, id := range ids {
		keyed := query
		keyed.Id = &id
		if _, err := wdb.updateItem(ctx, keyed, update); err == nil {
			matched++
		} else if !errors.Is(err, models.ErrNotFound) {
			return matched, err
		}
	}
	return matched, nil
}

func (wdb *WalkRequestDatabase) updateItem(ctx context.Context, query models.WalkRequestQuery, update models.WalkRequestUpdate) (*models.WalkRequest, error) {
	if query.Nearby != nil {
		return nil, &models.ValidationError{Field: "nearby", Reason: "proximity cannot condition an update"}
	}
	builder := newExpressionBuilder()
	condition := fmt.Sprintf("attribute_exists(%s)", builder.name(attr_Id))
	if terms := builder.condition(query, true); len(terms) > 0 {
		condition += " AND " + terms
	}
	updateExpression, err := builder.update(update, wdb.now())
	if err != nil {
		return nil, err
	}
	updateItemIn := dynamodb.UpdateItemInput{
		Key:                       wdb.key(*query.Id),
		TableName:                 aws.String(wdb.table),
		ConditionExpression:       aws.String(condition),
		ExpressionAttributeNames:  builder.attributeNames(),
		ExpressionAttributeValues: builder.attributeValues(),
		UpdateExpression:          aws.String(updateExpression),
		ReturnValues:              types.ReturnValueAllNew,
	}

	httpCtx, httpCancel := context.WithTimeout(ctx, common.DefaultRpcWaitTime)
	defer httpCancel()

	updateItemOut, err := wdb.client.UpdateItem(httpCtx, &updateItemIn)
	if err != nil {
		var condUpdErr *types.ConditionalCheckFailedException
		if errors.As(err, &condUpdErr) {
			// Not an error, the item is absent or its state did not satisfy the condition
			return nil, models.ErrNotFound
		}
		wdb.logger.Errorf("walks: error updating %s: %v", *query.Id, err)
		return nil, models.NewBackendError("update walk request", err)
	}
	return unmarshalWalkRequest(updateItemOut.Attributes)
}

// QueryWalkRequests pushes every term except proximity down as a filter, then applies proximity, sorting and paging
// to the candidates. An owner query reads the created_by index instead of scanning the table.
func (wdb *WalkRequestDatabase) QueryWalkRequests(ctx context.Context, query models.WalkRequestQuery, sortBy *models.SortBy, page *models.Pagination) ([]*models.WalkRequest, error) {
	if query.Id != nil {
		walkRequest, err := wdb.GetWalkRequest(ctx, *query.Id)
		if errors.Is(err, models.ErrNotFound) {
			return []*models.WalkRequest{}, nil
		} else if err != nil {
			return nil, err
		}
		return models.SelectWalkRequests([]*models.WalkRequest{walkRequest}, query, sortBy, page), nil
	}
	candidates, err := wdb.candidates(ctx, query)
	if err != nil {
		return nil, err
	}
	return models.SelectWalkRequests(candidates, query, sortBy, page), nil
}

func (wdb *WalkRequestDatabase) matchingIds(ctx context.Context, query models.WalkRequestQuery) ([]string, error) {
	candidates, err := wdb.candidates(ctx, query)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(candidates))
	for _, walkRequest := range models.SelectWalkRequests(candidates, query, nil, nil) {
		ids = append(ids, walkRequest.Id)
	}
	return ids, nil
}

func (wdb *WalkRequestDatabase) candidates(ctx context.Context, query models.WalkRequestQuery) ([]*models.WalkRequest, error) {
	builder := newExpressionBuilder()
	items := make([]map[string]types.AttributeValue, 0)
	if query.CreatedBy != nil {
		keyCondition := fmt.Sprintf("%s = %s", builder.name(attr_CreatedBy), builder.stringValue(*query.CreatedBy))
		filtered := query
		filtered.CreatedBy = nil
		queryIn := dynamodb.QueryInput{
			TableName:              aws.String(wdb.table),
			IndexName:              aws.String(createdByIndex),
			KeyConditionExpression: aws.String(keyCondition),
		}
		if filter := builder.condition(filtered, false); len(filter) > 0 {
			queryIn.FilterExpression = aws.String(filter)
		}
		queryIn.ExpressionAttributeNames = builder.attributeNames()
		queryIn.ExpressionAttributeValues = builder.attributeValues()

		paginator := dynamodb.NewQueryPaginator(wdb.client, &queryIn)
		for paginator.HasMorePages() {
			if err := wdb.nextPage(ctx, func(httpCtx context.Context) ([]map[string]types.AttributeValue, error) {
				out, err := paginator.NextPage(httpCtx)
				if err != nil {
					return nil, err
				}
				return out.Items, nil
			}, &items); err != nil {
				return nil, err
			}
		}
	} else {
		scanIn := dynamodb.ScanInput{
			TableName:      aws.String(wdb.table),
			ConsistentRead: aws.Bool(true),
		}
		if filter := builder.condition(query, false); len(filter) > 0 {
			scanIn.FilterExpression = aws.String(filter)
			scanIn.ExpressionAttributeNames = builder.attributeNames()
			scanIn.ExpressionAttributeValues = builder.attributeValues()
		}

		paginator := dynamodb.NewScanPaginator(wdb.client, &scanIn)
		for paginator.HasMorePages() {
			if err := wdb.nextPage(ctx, func(httpCtx context.Context) ([]map[string]types.AttributeValue, error) {
				out, err := paginator.NextPage(httpCtx)
				if err != nil {
					return nil, err
				}
				return out.Items, nil
			}, &items); err != nil {
				return nil, err
			}
		}
	}
	walkRequests := make([]*models.WalkRequest, 0, len(items))
	if err := attributevalue.UnmarshalListOfMaps(items, &walkRequests); err != nil {
		return nil, err
	}
	for _, walkRequest := range walkRequests {
		if walkRequest.Acceptances == nil {
			walkRequest.Acceptances = []string{}
		}
	}
	return walkRequests, nil
}

func (wdb *WalkRequestDatabase) nextPage(
	ctx context.Context,
	fetch func(context.Context) ([]map[string]types.AttributeValue, error),
	items *[]map[string]types.AttributeValue,
) error {
	httpCtx, httpCancel := context.WithTimeout(ctx, common.DefaultRpcWaitTime)
	defer httpCancel()

	page, err := fetch(httpCtx)
	if err != nil {
		wdb.logger.Errorf("walks: error reading from db: %v", err)
		return models.NewBackendError("query walk requests", err)
	}
	*items = append(*items, page...)
	return nil
}

func (wdb *WalkRequestDatabase) key(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attr_Id: &types.AttributeValueMemberS{Value: id},
	}
}

func unmarshalWalkRequest(item map[string]types.AttributeValue) (*models.WalkRequest, error) {
	walkRequest := new(models.WalkRequest)
	if err := attributevalue.UnmarshalMap(item, walkRequest); err != nil {
		return nil, err
	}
	if walkRequest.Acceptances == nil {
		walkRequest.Acceptances = []string{}
	}
	return walkRequest, nil
}
