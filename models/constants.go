package models

import "time"

const DefaultPageLimit = 20
const MaxPageLimit = 100

const DefaultLocationBatchSize = 25 // BatchWriteItem limit
const DefaultLocationBatchLinger = 100 * time.Millisecond

const DefaultLocationRateLimit = 1.0
const DefaultLocationRateBurst = 5
const DefaultLocationRateIdleTtl = 10 * time.Minute

const (
	Env_DefaultPageLimit    = "DEFAULT_PAGE_LIMIT"
	Env_MaxPageLimit        = "MAX_PAGE_LIMIT"
	Env_LocationBatchSize   = "LOCATION_BATCH_SIZE"
	Env_LocationBatchLinger = "LOCATION_BATCH_LINGER"
	Env_LocationRateLimit   = "LOCATION_RATE_LIMIT"
	Env_LocationRateBurst   = "LOCATION_RATE_BURST"
	Env_LocationRateIdleTtl = "LOCATION_RATE_IDLE_TTL"
	Env_EventQueueEnabled   = "EVENT_QUEUE_ENABLED"
	Env_TrackArchiveEnabled = "TRACK_ARCHIVE_ENABLED"
)
