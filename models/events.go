package models

import (
	"time"
)

// Verb names a lifecycle transition.
type Verb string

const (
	Verb_Create          Verb = "create"
	Verb_Claim           Verb = "claim"
	Verb_JoinBids        Verb = "join_bids"
	Verb_WithdrawBid     Verb = "withdraw_bid"
	Verb_Assign          Verb = "assign"
	Verb_Dismiss         Verb = "dismiss"
	Verb_Resign          Verb = "resign"
	Verb_CancelUnclaimed Verb = "cancel_unclaimed"
	Verb_CancelClaimed   Verb = "cancel_claimed"
	Verb_Start           Verb = "start"
	Verb_Finish          Verb = "finish"
	Verb_RecordLocation  Verb = "record_location"
)

type WalkEventType string

const (
	WalkEventType_Created      WalkEventType = "created"
	WalkEventType_Claimed      WalkEventType = "claimed"
	WalkEventType_BidJoined    WalkEventType = "bid_joined"
	WalkEventType_BidWithdrawn WalkEventType = "bid_withdrawn"
	WalkEventType_Assigned     WalkEventType = "assigned"
	WalkEventType_Dismissed    WalkEventType = "dismissed"
	WalkEventType_Resigned     WalkEventType = "resigned"
	WalkEventType_Canceled     WalkEventType = "canceled"
	WalkEventType_Started      WalkEventType = "started"
	WalkEventType_Finished     WalkEventType = "finished"
)

var verbEvents = map[Verb]WalkEventType{
	Verb_Create:          WalkEventType_Created,
	Verb_Claim:           WalkEventType_Claimed,
	Verb_JoinBids:        WalkEventType_BidJoined,
	Verb_WithdrawBid:     WalkEventType_BidWithdrawn,
	Verb_Assign:          WalkEventType_Assigned,
	Verb_Dismiss:         WalkEventType_Dismissed,
	Verb_Resign:          WalkEventType_Resigned,
	Verb_CancelUnclaimed: WalkEventType_Canceled,
	Verb_CancelClaimed:   WalkEventType_Canceled,
	Verb_Start:           WalkEventType_Started,
	Verb_Finish:          WalkEventType_Finished,
}

func (v Verb) EventType() (WalkEventType, bool) {
	eventType, found := verbEvents[v]
	return eventType, found
}

type WalkEvent struct {
	Type          WalkEventType `json:"type"`
	WalkRequestId string        `json:"rid"`
	ActorId       string        `json:"aid"`
	// Walker targeted by an owner verb, when different from the actor.
	SubjectId *string   `json:"sid,omitempty"`
	Timestamp time.Time `json:"ts"`
}
