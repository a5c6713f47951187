package queue

import (
	"math"

	"github.com/abevier/go-sqs/gosqs"

	"github.com/littlewalk/go-walk/models"
)

const defaultNumConsumerWorkers = 10

// Consumer receives messages from a Queue and hands each body to the callback. A message is deleted only when the
// callback returns nil.
type Consumer struct {
	queueType models.QueueType
	consumer  *gosqs.SQSConsumer
	logger    models.Logger
}

func NewConsumer(q *Queue, callback gosqs.MessageCallbackFunc, numWorkers *int) *Consumer {
	var maxWorkers float64 = defaultNumConsumerWorkers
	if numWorkers != nil {
		// Don't go below the default number of workers
		maxWorkers = math.Max(maxWorkers, float64(*numWorkers))
	}
	maxReceivedMessages := math.Ceil(maxWorkers * 1.2)
	maxInflightRequests := math.Ceil(maxReceivedMessages / 10)
	qOpts := gosqs.Opts{
		MaxReceivedMessages:               int(maxReceivedMessages),
		MaxWorkers:                        int(maxWorkers),
		MaxInflightReceiveMessageRequests: int(maxInflightRequests),
	}
	return &Consumer{q.queueType, gosqs.NewConsumer(qOpts, q.publisher, callback), q.logger}
}

func (c *Consumer) Start() {
	c.consumer.Start()
	c.logger.Infof("%s: consumer started", c.queueType)
}

func (c *Consumer) Shutdown() {
	c.consumer.Shutdown()
	c.logger.Infof("%s: consumer stopped", c.queueType)
}
