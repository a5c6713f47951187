package models

type MetricName string

// Counts
const (
	MetricName_VerbSucceeded        MetricName = "verb_succeeded"
	MetricName_VerbConflicted       MetricName = "verb_conflicted"
	MetricName_VerbNotFound         MetricName = "verb_not_found"
	MetricName_VerbFailed           MetricName = "verb_failed"
	MetricName_EventPublished       MetricName = "event_published"
	MetricName_EventPublishFailed   MetricName = "event_publish_failed"
	MetricName_LocationRecorded     MetricName = "location_recorded"
	MetricName_LocationRateLimited  MetricName = "location_rate_limited"
	MetricName_TrackArchived        MetricName = "track_archived"
	MetricName_NearbyQuery          MetricName = "nearby_query"
	MetricName_LocationBatchWritten MetricName = "location_batch_written"
)

// Distributions
const (
	MetricName_VerbLatencyMs     MetricName = "verb_latency_ms"
	MetricName_NearbyResultCount MetricName = "nearby_result_count"
	MetricName_LocationBatchSize MetricName = "location_batch_size"
)

const MetricsCallerName = "go-walk"
