package ddb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/littlewalk/go-walk/common"
	"github.com/littlewalk/go-walk/models"
)

const (
	attr_OwnerId  = "owner_id"
	attr_Category = "category"
	attr_Name     = "name"
)

const ownerIndex = "owner_id-index"

var _ models.BreedRepository = &CatalogDatabase{}
var _ models.DogRepository = &CatalogDatabase{}

type CatalogDatabase struct {
	client     *dynamodb.Client
	logger     models.Logger
	breedTable string
	dogTable   string
}

func NewCatalogDb(ctx context.Context, logger models.Logger, client *dynamodb.Client) *CatalogDatabase {
	cdb := CatalogDatabase{
		client:     client,
		logger:     logger,
		breedTable: TablePrefix() + "breed",
		dogTable:   TablePrefix() + "dog",
	}
	if err := cdb.createBreedTable(ctx); err != nil {
		logger.Fatalf("catalog: breed table creation failed: %v", err)
	} else if err = cdb.createDogTable(ctx); err != nil {
		logger.Fatalf("catalog: dog table creation failed: %v", err)
	}
	return &cdb
}

func (cdb *CatalogDatabase) createBreedTable(ctx context.Context) error {
	createTableInput := dynamodb.CreateTableInput{
		AttributeDefinitions: []types.AttributeDefinition{
			{
				AttributeName: aws.String(attr_Id),
				AttributeType: "S",
			},
		},
		KeySchema: []types.KeySchemaElement{
			{
				AttributeName: aws.String(attr_Id),
				KeyType:       "HASH",
			},
		},
		TableName: aws.String(cdb.breedTable),
		ProvisionedThroughput: &types.ProvisionedThroughput{
			ReadCapacityUnits:  aws.Int64(1),
			WriteCapacityUnits: aws.Int64(1),
		},
	}
	return createTable(ctx, cdb.logger, cdb.client, &createTableInput)
}

func (cdb *CatalogDatabase) createDogTable(ctx context.Context) error {
	createTableInput := dynamodb.CreateTableInput{
		AttributeDefinitions: []types.AttributeDefinition{
			{
				AttributeName: aws.String(attr_Id),
				AttributeType: "S",
			},
			{
				AttributeName: aws.String(attr_OwnerId),
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
				IndexName: aws.String(ownerIndex),
				KeySchema: []types.KeySchemaElement{
					{
						AttributeName: aws.String(attr_OwnerId),
						KeyType:       "HASH",
					},
				},
				Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
				ProvisionedThroughput: &types.ProvisionedThroughput{
					ReadCapacityUnits:  aws.Int64(1),
					WriteCapacityUnits: aws.Int64(1),
				},
			},
		},
		TableName: aws.String(cdb.dogTable),
		ProvisionedThroughput: &types.ProvisionedThroughput{
			ReadCapacityUnits:  aws.Int64(1),
			WriteCapacityUnits: aws.Int64(1),
		},
	}
	return createTable(ctx, cdb.logger, cdb.client, &createTableInput)
}

func (cdb *CatalogDatabase) CreateBreed(ctx context.Context, breed *models.Breed) error {
	return cdb.putItem(ctx, cdb.breedTable, breed, "attribute_not_exists(#id)")
}

func (cdb *CatalogDatabase) DeleteBreed(ctx context.Context, id string) (bool, error) {
	return cdb.deleteItem(ctx, cdb.breedTable, id)
}

func (cdb *CatalogDatabase) QueryBreeds(ctx context.Context, query models.BreedQuery) ([]*models.Breed, int64, error) {
	builder := newExpressionBuilder()
	terms := make([]string, 0)
	if query.Id != nil {
		terms = append(terms, fmt.Sprintf("%s = %s", builder.name(attr_Id), builder.stringValue(*query.Id)))
	}
	if query.Category != nil {
		terms = append(terms, fmt.Sprintf("%s = %s", builder.name(attr_Category), builder.stringValue(string(*query.Category))))
	}
	if query.Name != nil {
		terms = append(terms, fmt.Sprintf("%s = %s", builder.name(attr_Name), builder.stringValue(*query.Name)))
	}
	scanIn := dynamodb.ScanInput{TableName: aws.String(cdb.breedTable)}
	if len(terms) > 0 {
		scanIn.FilterExpression = aws.String(strings.Join(terms, " AND "))
		scanIn.ExpressionAttributeNames = builder.attributeNames()
		scanIn.ExpressionAttributeValues = builder.attributeValues()
	}
	breeds := make([]*models.Breed, 0)
	paginator := dynamodb.NewScanPaginator(cdb.client, &scanIn)
	for paginator.HasMorePages() {
		httpCtx, httpCancel := context.WithTimeout(ctx, common.DefaultRpcWaitTime)
		out, err := paginator.NextPage(httpCtx)
		httpCancel()
		if err != nil {
			return nil, 0, models.NewBackendError("query breeds", err)
		}
		page := make([]*models.Breed, 0, len(out.Items))
		if err = attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, 0, err
		}
		breeds = append(breeds, page...)
	}
	sort.Slice(breeds, func(i, j int) bool {
		if breeds[i].Name == breeds[j].Name {
			return breeds[i].Id < breeds[j].Id
		}
		return breeds[i].Name < breeds[j].Name
	})
	return breeds, int64(len(breeds)), nil
}

func (cdb *CatalogDatabase) CreateDog(ctx context.Context, dog *models.Dog) error {
	return cdb.putItem(ctx, cdb.dogTable, dog, "attribute_not_exists(#id)")
}

// UpdateDog is a read-modify-write. Dogs have a single writer, their owner, so it is not conditioned on prior state.
func (cdb *CatalogDatabase) UpdateDog(ctx context.Context, id string, update models.DogUpdate) (*models.Dog, error) {
	dogs, err := cdb.QueryDogs(ctx, models.DogQuery{Id: &id})
	if err != nil {
		return nil, err
	} else if len(dogs) == 0 {
		return nil, models.ErrNotFound
	}
	dog := dogs[0]
	update.Apply(dog)
	if err = cdb.putItem(ctx, cdb.dogTable, dog, "attribute_exists(#id)"); err != nil {
		return nil, err
	}
	return dog, nil
}

func (cdb *CatalogDatabase) DeleteDog(ctx context.Context, id string) (bool, error) {
	return cdb.deleteItem(ctx, cdb.dogTable, id)
}

func (cdb *CatalogDatabase) QueryDogs(ctx context.Context, query models.DogQuery) ([]*models.Dog, error) {
	items := make([]map[string]types.AttributeValue, 0)
	if query.Id != nil {
		getItemIn := dynamodb.GetItemInput{
			Key:            map[string]types.AttributeValue{attr_Id: &types.AttributeValueMemberS{Value: *query.Id}},
			TableName:      aws.String(cdb.dogTable),
			ConsistentRead: aws.Bool(true),
		}
		httpCtx, httpCancel := context.WithTimeout(ctx, common.DefaultRpcWaitTime)
		defer httpCancel()

		out, err := cdb.client.GetItem(httpCtx, &getItemIn)
		if err != nil {
			return nil, models.NewBackendError("get dog", err)
		} else if out.Item != nil {
			items = append(items, out.Item)
		}
	} else if query.OwnerId != nil {
		queryIn := dynamodb.QueryInput{
			TableName:                aws.String(cdb.dogTable),
			IndexName:                aws.String(ownerIndex),
			KeyConditionExpression:   aws.String("#owner_id = :owner_id"),
			ExpressionAttributeNames: map[string]string{"#owner_id": attr_OwnerId},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":owner_id": &types.AttributeValueMemberS{Value: *query.OwnerId},
			},
		}
		paginator := dynamodb.NewQueryPaginator(cdb.client, &queryIn)
		for paginator.HasMorePages() {
			httpCtx, httpCancel := context.WithTimeout(ctx, common.DefaultRpcWaitTime)
			out, err := paginator.NextPage(httpCtx)
			httpCancel()
			if err != nil {
				return nil, models.NewBackendError("query dogs", err)
			}
			items = append(items, out.Items...)
		}
	} else {
		paginator := dynamodb.NewScanPaginator(cdb.client, &dynamodb.ScanInput{TableName: aws.String(cdb.dogTable)})
		for paginator.HasMorePages() {
			httpCtx, httpCancel := context.WithTimeout(ctx, common.DefaultRpcWaitTime)
			out, err := paginator.NextPage(httpCtx)
			httpCancel()
			if err != nil {
				return nil, models.NewBackendError("scan dogs", err)
			}
			items = append(items, out.Items...)
		}
	}
	found := make([]*models.Dog, 0, len(items))
	if err := attributevalue.UnmarshalListOfMaps(items, &found); err != nil {
		return nil, err
	}
	dogs := make([]*models.Dog, 0, len(found))
	for _, dog := range found {
		if query.Matches(dog) {
			dogs = append(dogs, dog)
		}
	}
	sort.SliceStable(dogs, func(i, j int) bool {
		return dogs[i].Id < dogs[j].Id
	})
	return models.Paginate(dogs, query.Pagination), nil
}

func (cdb *CatalogDatabase) ExistsDog(ctx context.Context, query models.DogQuery) (bool, error) {
	dogs, err := cdb.QueryDogs(ctx, query)
	if err != nil {
		return false, err
	}
	return len(dogs) > 0, nil
}

func (cdb *CatalogDatabase) putItem(ctx context.Context, table string, item interface{}, condition string) error {
	attributeValues, err := attributevalue.MarshalMap(item)
	if err != nil {
		return err
	}
	putItemIn := dynamodb.PutItemInput{
		TableName:                aws.String(table),
		ConditionExpression:      aws.String(condition),
		ExpressionAttributeNames: map[string]string{"#id": attr_Id},
		Item:                     attributeValues,
	}

	httpCtx, httpCancel := context.WithTimeout(ctx, common.DefaultRpcWaitTime)
	defer httpCancel()

	if _, err = cdb.client.PutItem(httpCtx, &putItemIn); err != nil {
		var condUpdErr *types.ConditionalCheckFailedException
		if errors.As(err, &condUpdErr) {
			return models.ErrNotFound
		}
		cdb.logger.Errorf("catalog: error writing to %s: %v", table, err)
		return models.NewBackendError("write "+table, err)
	}
	return nil
}

func (cdb *CatalogDatabase) deleteItem(ctx context.Context, table, id string) (bool, error) {
	deleteItemIn := dynamodb.DeleteItemInput{
		TableName:                aws.String(table),
		Key:                      map[string]types.AttributeValue{attr_Id: &types.AttributeValueMemberS{Value: id}},
		ConditionExpression:      aws.String("attribute_exists(#id)"),
		ExpressionAttributeNames: map[string]string{"#id": attr_Id},
	}

	httpCtx, httpCancel := context.WithTimeout(ctx, common.DefaultRpcWaitTime)
	defer httpCancel()

	if _, err := cdb.client.DeleteItem(httpCtx, &deleteItemIn); err != nil {
		var condUpdErr *types.ConditionalCheckFailedException
		if errors.As(err, &condUpdErr) {
			return false, nil
		}
		return false, models.NewBackendError("delete from "+table, err)
	}
	return true, nil
}
