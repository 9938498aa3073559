package domain

import "encoding/json"

// Event kinds published on per-bet topics. Stats events come from the change
// detector; metadata events come from lifecycle transitions. Payloads carry
// no state: receivers refetch the authoritative record, which makes
// duplicate or out-of-order delivery harmless.
const (
	EventStatsChanged = "stats_changed"
	EventBetUpdated   = "bet_updated"
)

// StatsTopic is the pub/sub channel for wagering-activity events on a bet.
func StatsTopic(betID string) string { return "bet:stats:" + betID }

// MetaTopic is the pub/sub channel for bet metadata changes (title, close
// time, status).
func MetaTopic(betID string) string { return "bet:meta:" + betID }

// BetEvent is the wire form of a per-bet notification.
type BetEvent struct {
	Type  string `json:"type"`
	BetID string `json:"bet_id"`
}

// EncodeEvent marshals a BetEvent for publishing.
func EncodeEvent(kind, betID string) []byte {
	data, _ := json.Marshal(BetEvent{Type: kind, BetID: betID})
	return data
}

// DecodeEvent unmarshals a payload received from a per-bet topic.
func DecodeEvent(data []byte) (BetEvent, error) {
	var ev BetEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return BetEvent{}, err
	}
	return ev, nil
}

// Topic returns the channel this event is published on, derived from its
// type. Unknown types map to the metadata topic.
func (e BetEvent) Topic() string {
	if e.Type == EventStatsChanged {
		return StatsTopic(e.BetID)
	}
	return MetaTopic(e.BetID)
}
