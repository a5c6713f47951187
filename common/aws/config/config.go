package config

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"

	"github.com/littlewalk/go-walk"
	"github.com/littlewalk/go-walk/common"
)

func AwsConfigWithOverride(ctx context.Context, customEndpoint string) (aws.Config, error) {
	endpointResolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{
			PartitionID:   "aws",
			URL:           customEndpoint,
			SigningRegion: os.Getenv(walk.Env_AwsRegion),
		}, nil
	})

	httpCtx, httpCancel := context.WithTimeout(ctx, common.DefaultRpcWaitTime)
	defer httpCancel()

	return config.LoadDefaultConfig(
		httpCtx,
		config.WithRegion(os.Getenv(walk.Env_AwsRegion)),
		config.WithEndpointResolverWithOptions(endpointResolver),
	)
}

func AwsConfig(ctx context.Context) (aws.Config, error) {
	awsEndpoint := os.Getenv(walk.Env_AwsEndpoint)
	if len(awsEndpoint) > 0 {
		log.Printf("config: using custom global aws endpoint: %s", awsEndpoint)
		return AwsConfigWithOverride(ctx, awsEndpoint)
	}

	httpCtx, httpCancel := context.WithTimeout(ctx, common.DefaultRpcWaitTime)
	defer httpCancel()

	// Load the default configuration
	return config.LoadDefaultConfig(httpCtx, config.WithRegion(os.Getenv(walk.Env_AwsRegion)))
}

// DynamoDbConfig lets the walk store point at a local DynamoDB while other clients keep using the regular endpoints.
func DynamoDbConfig(ctx context.Context, awsCfg aws.Config) (aws.Config, error) {
	dbEndpoint := os.Getenv(walk.Env_DbAwsEndpoint)
	if len(dbEndpoint) > 0 {
		log.Printf("config: using custom dynamodb endpoint: %s", dbEndpoint)
		return AwsConfigWithOverride(ctx, dbEndpoint)
	}
	return awsCfg, nil
}
