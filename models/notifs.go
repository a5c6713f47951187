package models

const AlertTitle = "Walk Coordinator Alert"

const (
	AlertDesc_Backend = "Backend Unavailable"
)

const (
	AlertFmt_Backend string = "%s:\n%s"
)
