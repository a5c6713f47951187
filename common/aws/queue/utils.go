package queue

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/littlewalk/go-walk"
	"github.com/littlewalk/go-walk/common"
	"github.com/littlewalk/go-walk/models"
)

func CreateQueue(ctx context.Context, sqsClient *sqs.Client, opts Opts) (string, string, error) {
	visibilityTimeout := models.QueueDefaultVisibilityTimeout
	if opts.VisibilityTimeout != nil {
		visibilityTimeout = *opts.VisibilityTimeout
	}
	name := queueName(opts.QueueType)
	createQueueIn := sqs.CreateQueueInput{
		QueueName: aws.String(name),
		Attributes: map[string]string{
			string(types.QueueAttributeNameVisibilityTimeout): strconv.Itoa(int(visibilityTimeout.Seconds())),
		},
	}

	httpCtx, httpCancel := context.WithTimeout(ctx, common.DefaultRpcWaitTime)
	defer httpCancel()

	if createQueueOut, err := sqsClient.CreateQueue(httpCtx, &createQueueIn); err != nil {
		return "", "", err
	} else {
		return *createQueueOut.QueueUrl, name, nil
	}
}

func GetQueueUtilization(ctx context.Context, queueUrl string, sqsClient *sqs.Client) (int, int, error) {
	if queueAttr, err := getQueueAttributes(ctx, queueUrl, sqsClient); err != nil {
		return 0, 0, err
	} else if numMsgsUnprocessedStr, found := queueAttr[string(types.QueueAttributeNameApproximateNumberOfMessages)]; found {
		if numMsgsUnprocessed, err := strconv.Atoi(numMsgsUnprocessedStr); err != nil {
			return 0, 0, err
		} else if numMsgsInFlightStr, found := queueAttr[string(types.QueueAttributeNameApproximateNumberOfMessagesNotVisible)]; found {
			if numMsgsInFlight, err := strconv.Atoi(numMsgsInFlightStr); err != nil {
				return 0, 0, err
			} else {
				return numMsgsUnprocessed, numMsgsInFlight, nil
			}
		}
	}
	return 0, 0, nil
}

func getQueueAttributes(ctx context.Context, queueUrl string, sqsClient *sqs.Client) (map[string]string, error) {
	getQueueAttrIn := sqs.GetQueueAttributesInput{
		QueueUrl:       aws.String(queueUrl),
		AttributeNames: []types.QueueAttributeName{types.QueueAttributeNameAll},
	}

	httpCtx, httpCancel := context.WithTimeout(ctx, common.DefaultRpcWaitTime)
	defer httpCancel()

	if getQueueAttrOut, err := sqsClient.GetQueueAttributes(httpCtx, &getQueueAttrIn); err != nil {
		return nil, err
	} else {
		return getQueueAttrOut.Attributes, nil
	}
}

func queueName(queueType models.QueueType) string {
	env := os.Getenv(walk.Env_Env)
	if len(env) == 0 {
		env = walk.DefaultEnv
	}
	return fmt.Sprintf("walk-%s-%s", env, string(queueType))
}
