package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventRoundTrip(t *testing.T) {
	data := EncodeEvent(EventStatsChanged, "bet-7")
	ev, err := DecodeEvent(data)
	require.NoError(t, err)
	assert.Equal(t, EventStatsChanged, ev.Type)
	assert.Equal(t, "bet-7", ev.BetID)
}

func TestDecodeEventRejectsGarbage(t *testing.T) {
	_, err := DecodeEvent([]byte("not json"))
	assert.Error(t, err)
}

func TestEventTopicByType(t *testing.T) {
	stats := BetEvent{Type: EventStatsChanged, BetID: "b1"}
	assert.Equal(t, "bet:stats:b1", stats.Topic())

	meta := BetEvent{Type: EventBetUpdated, BetID: "b1"}
	assert.Equal(t, "bet:meta:b1", meta.Topic())

	unknown := BetEvent{Type: "mystery", BetID: "b1"}
	assert.Equal(t, "bet:meta:b1", unknown.Topic())
}
