package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/abevier/go-sqs/gosqs"

	"github.com/littlewalk/go-walk/models"
)

var _ models.QueuePublisher = &Queue{}

type Opts struct {
	QueueType         models.QueueType
	VisibilityTimeout *time.Duration
}

// Queue publishes JSON messages to an SQS queue, lingering briefly so that concurrent sends go out as one batch.
type Queue struct {
	queueType models.QueueType
	url       string
	publisher *gosqs.SQSPublisher
	monitor   models.QueueMonitor
	logger    models.Logger
}

func NewQueue(
	ctx context.Context,
	metricService models.MetricService,
	logger models.Logger,
	sqsClient *sqs.Client,
	opts Opts,
) (*Queue, error) {
	// Create the queue if it didn't already exist
	url, name, err := CreateQueue(ctx, sqsClient, opts)
	if err != nil {
		return nil, err
	}
	monitor := NewMonitor(url, sqsClient)
	if metricService != nil {
		if err = metricService.QueueGauge(ctx, name, monitor); err != nil {
			logger.Errorf("queue: error creating gauge for %s: %v", name, err)
		}
	}
	logger.Infof("queue: %s ready at %s", opts.QueueType, url)
	return &Queue{
		opts.QueueType,
		url,
		gosqs.NewPublisher(sqsClient, url, models.QueueMaxLinger),
		monitor,
		logger,
	}, nil
}

func (q *Queue) SendMessage(ctx context.Context, event any) (string, error) {
	if eventBody, err := json.Marshal(event); err != nil {
		return "", err
	} else if msgId, err := q.publisher.SendMessage(ctx, string(eventBody)); err != nil {
		return "", models.NewBackendError("send "+string(q.queueType)+" message", err)
	} else {
		return msgId, nil
	}
}

func (q *Queue) Monitor() models.QueueMonitor {
	return q.monitor
}
