package models

import "time"

type QueueType string

const (
	QueueType_Events QueueType = "events"
)

const QueueMaxLinger = 250 * time.Millisecond
const QueueDefaultVisibilityTimeout = 5 * time.Minute
