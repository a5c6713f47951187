package ddb

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/abevier/tsk/batch"
	"github.com/abevier/tsk/results"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/littlewalk/go-walk/common"
	"github.com/littlewalk/go-walk/models"
)

const (
	attr_WalkRequestId = "walk_request_id"
	// Sort key: zero-padded creation time in nanoseconds followed by the sample id.
	attr_Seq = "seq"
)

// Retries for items DynamoDB hands back as unprocessed.
const unprocessedRetries = 3

var _ models.WalkingLocationRepository = &WalkingLocationDatabase{}

// WalkingLocationDatabase appends samples through a batcher that coalesces concurrent writes into BatchWriteItem calls.
type WalkingLocationDatabase struct {
	client        *dynamodb.Client
	logger        models.Logger
	metricService models.MetricService
	table         string
	batcher       *batch.Executor[*models.WalkingLocation, *models.WalkingLocation]
	now           func() time.Time
}

func NewWalkingLocationDb(ctx context.Context, logger models.Logger, client *dynamodb.Client, metricService models.MetricService) *WalkingLocationDatabase {
	batchSize := models.DefaultLocationBatchSize
	if configBatchSize, found := os.LookupEnv(models.Env_LocationBatchSize); found {
		// BatchWriteItem takes at most 25 items
		if parsedBatchSize, err := strconv.Atoi(configBatchSize); err == nil && parsedBatchSize > 0 && parsedBatchSize <= 25 {
			batchSize = parsedBatchSize
		}
	}
	batchLinger := models.DefaultLocationBatchLinger
	if configBatchLinger, found := os.LookupEnv(models.Env_LocationBatchLinger); found {
		if parsedBatchLinger, err := time.ParseDuration(configBatchLinger); err == nil {
			batchLinger = parsedBatchLinger
		}
	}
	ldb := WalkingLocationDatabase{
		client:        client,
		logger:        logger,
		metricService: metricService,
		table:         TablePrefix() + "walking-location",
		now:           time.Now,
	}
	beOpts := batch.Opts{MaxSize: batchSize, MaxLinger: batchLinger}
	ldb.batcher = batch.New[*models.WalkingLocation, *models.WalkingLocation](beOpts, ldb.writeBatch)
	if err := ldb.createTable(ctx); err != nil {
		logger.Fatalf("locations: table creation failed: %v", err)
	}
	return &ldb
}

func (ldb *WalkingLocationDatabase) createTable(ctx context.Context) error {
	createTableInput := dynamodb.CreateTableInput{
		AttributeDefinitions: []types.AttributeDefinition{
			{
				AttributeName: aws.String(attr_WalkRequestId),
				AttributeType: "S",
			},
			{
				AttributeName: aws.String(attr_Seq),
				AttributeType: "S",
			},
		},
		KeySchema: []types.KeySchemaElement{
			{
				AttributeName: aws.String(attr_WalkRequestId),
				KeyType:       "HASH",
			},
			{
				AttributeName: aws.String(attr_Seq),
				KeyType:       "RANGE",
			},
		},
		TableName: aws.String(ldb.table),
		ProvisionedThroughput: &types.ProvisionedThroughput{
			ReadCapacityUnits:  aws.Int64(1),
			WriteCapacityUnits: aws.Int64(1),
		},
	}
	return createTable(ctx, ldb.logger, ldb.client, &createTableInput)
}

func (ldb *WalkingLocationDatabase) CreateWalkingLocation(ctx context.Context, create *models.WalkingLocationCreate) (*models.WalkingLocation, error) {
	location := &models.WalkingLocation{
		Id:            uuid.New().String(),
		WalkRequestId: create.WalkRequestId,
		Longitude:     create.Longitude,
		Latitude:      create.Latitude,
		CreatedAt:     ldb.now().UTC(),
	}
	return ldb.batcher.Submit(ctx, location)
}

func (ldb *WalkingLocationDatabase) writeBatch(locations []*models.WalkingLocation) ([]results.Result[*models.WalkingLocation], error) {
	writeRequests := make([]types.WriteRequest, len(locations))
	for idx, location := range locations {
		item, err := attributevalue.MarshalMap(location)
		if err != nil {
			return nil, err
		}
		item[attr_Seq] = &types.AttributeValueMemberS{Value: locationSeq(location)}
		writeRequests[idx] = types.WriteRequest{PutRequest: &types.PutRequest{Item: item}}
	}

	ctx, cancel := context.WithTimeout(context.Background(), common.DefaultRpcWaitTime)
	defer cancel()

	pending := map[string][]types.WriteRequest{ldb.table: writeRequests}
	for i := 0; i <= unprocessedRetries && len(pending[ldb.table]) > 0; i++ {
		out, err := ldb.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
		if err != nil {
			ldb.logger.Errorf("locations: error writing batch of %d: %v", len(locations), err)
			return nil, models.NewBackendError("write walking locations", err)
		}
		pending = out.UnprocessedItems
	}
	if unprocessed := len(pending[ldb.table]); unprocessed > 0 {
		return nil, models.NewBackendError("write walking locations", fmt.Errorf("%d samples left unprocessed", unprocessed))
	}

	if ldb.metricService != nil {
		_ = ldb.metricService.Count(ctx, models.MetricName_LocationBatchWritten, 1)
		_ = ldb.metricService.Distribution(ctx, models.MetricName_LocationBatchSize, len(locations))
	}
	batchResults := make([]results.Result[*models.WalkingLocation], len(locations))
	for idx, location := range locations {
		batchResults[idx] = results.New[*models.WalkingLocation](location, nil)
	}
	return batchResults, nil
}

func (ldb *WalkingLocationDatabase) QueryWalkingLocations(ctx context.Context, walkRequestId string) ([]*models.WalkingLocation, error) {
	queryIn := dynamodb.QueryInput{
		TableName:                aws.String(ldb.table),
		KeyConditionExpression:   aws.String("#rid = :rid"),
		ExpressionAttributeNames: map[string]string{"#rid": attr_WalkRequestId},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":rid": &types.AttributeValueMemberS{Value: walkRequestId},
		},
		ScanIndexForward: aws.Bool(true),
		ConsistentRead:   aws.Bool(true),
	}
	locations := make([]*models.WalkingLocation, 0)
	paginator := dynamodb.NewQueryPaginator(ldb.client, &queryIn)
	for paginator.HasMorePages() {
		httpCtx, httpCancel := context.WithTimeout(ctx, common.DefaultRpcWaitTime)
		out, err := paginator.NextPage(httpCtx)
		httpCancel()
		if err != nil {
			return nil, models.NewBackendError("query walking locations", err)
		}
		page := make([]*models.WalkingLocation, 0, len(out.Items))
		if err = attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, err
		}
		locations = append(locations, page...)
	}
	return locations, nil
}

func locationSeq(location *models.WalkingLocation) string {
	return fmt.Sprintf("%020d#%s", location.CreatedAt.UnixNano(), location.Id)
}
