package models

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenID_RoundTrip(t *testing.T) {
	cases := []TokenParts{
		{},
		{Category: CategoryEventTicket, EventID: 1, TierID: 0, Serial: 1},
		{Category: CategoryAttendanceBadge, EventID: 42, TierID: 7, Serial: 99},
		{Category: CategoryOrganizerCred, EventID: math.MaxUint64, TierID: math.MaxUint32, Serial: math.MaxUint64,
			Metadata: [MetadataLength]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}},
		{Category: TokenCategory(0xff), EventID: 1 << 63, TierID: 1 << 31, Serial: 1 << 40,
			Metadata: [MetadataLength]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}},
	}

	for _, parts := range cases {
		id := parts.Pack()
		assert.Equal(t, parts, id.Unpack())
		assert.Equal(t, parts.Category, id.Category())
		assert.Equal(t, parts.EventID, id.EventID())
		assert.Equal(t, parts.TierID, id.TierID())
		assert.Equal(t, parts.Serial, id.Serial())
	}
}

func TestTokenID_Layout(t *testing.T) {
	id := TicketID(0x0102030405060708, 0x0a0b0c0d, 0x1112131415161718)

	assert.Equal(t, byte(CategoryEventTicket), id[0])
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, id[1:9])
	assert.Equal(t, []byte{0x0a, 0x0b, 0x0c, 0x0d}, id[9:13])
	assert.Equal(t, []byte{0x11, 0x12, 0x13, 0x14, 0x15, 0x16, 0x17, 0x18}, id[13:21])
	assert.Equal(t, make([]byte, MetadataLength), id[21:])
}

func TestTokenID_BelongsTo(t *testing.T) {
	id := TicketID(5, 1, 3)
	assert.True(t, id.BelongsTo(5))
	assert.False(t, id.BelongsTo(6))
	assert.True(t, OrganizerCredID(9).BelongsTo(9))
}

func TestTokenID_TextRoundTrip(t *testing.T) {
	id := BadgeID(3, 2, 1)

	text, err := id.MarshalText()
	require.NoError(t, err)

	var parsed TokenID
	require.NoError(t, parsed.UnmarshalText(text))
	assert.Equal(t, id, parsed)

	_, err = ParseTokenID("0x1234")
	assert.Error(t, err)
	_, err = ParseTokenID("zz" + string(text[4:]))
	assert.Error(t, err)
}

func TestTokenCategory_Transferable(t *testing.T) {
	assert.True(t, CategoryEventTicket.Transferable())
	assert.True(t, CategoryNone.Transferable())
	assert.False(t, CategoryAttendanceBadge.Transferable())
	assert.False(t, CategoryOrganizerCred.Transferable())
	assert.Equal(t, "ATTENDANCE_BADGE", CategoryAttendanceBadge.String())
}

func TestAddress_Parse(t *testing.T) {
	a, err := ParseAddress("0x00000000000000000000000000000000000000aa")
	require.NoError(t, err)
	assert.Equal(t, byte(0xaa), a[19])
	assert.False(t, a.IsZero())
	assert.Equal(t, "0x00000000000000000000000000000000000000aa", a.String())

	b, err := ParseAddress("00000000000000000000000000000000000000AA")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	_, err = ParseAddress("0xabc")
	assert.Error(t, err)
	_, err = ParseAddress("0xgg000000000000000000000000000000000000aa")
	assert.Error(t, err)

	assert.True(t, ZeroAddress.IsZero())
	assert.Panics(t, func() { MustAddress("nope") })
}

func TestEvent_JSONSerialization(t *testing.T) {
	start := time.Date(2030, 1, 2, 20, 0, 0, 0, time.UTC)
	event := Event{
		ID:           7,
		Organizer:    MustAddress("0x1111111111111111111111111111111111111111"),
		Name:         "Test Concert",
		BasePrice:    decimal.NewFromInt(100),
		StartTime:    start,
		EndTime:      start.Add(2 * time.Hour),
		Capacity:     1000,
		Visibility:   VisibilityInviteOnly,
		Status:       EventCancelled,
		PaymentAsset: ZeroAddress,
	}

	jsonData, err := json.Marshal(event)
	require.NoError(t, err)
	assert.Contains(t, string(jsonData), `"visibility":"INVITE_ONLY"`)
	assert.Contains(t, string(jsonData), `"status":"CANCELLED"`)

	var unmarshaled Event
	require.NoError(t, json.Unmarshal(jsonData, &unmarshaled))

	assert.Equal(t, event.ID, unmarshaled.ID)
	assert.Equal(t, event.Organizer, unmarshaled.Organizer)
	assert.True(t, event.BasePrice.Equal(unmarshaled.BasePrice))
	assert.Equal(t, event.Visibility, unmarshaled.Visibility)
	assert.Equal(t, event.Status, unmarshaled.Status)
	assert.True(t, unmarshaled.UsesNativeAsset())
	assert.WithinDuration(t, event.StartTime, unmarshaled.StartTime, time.Second)
}

func TestEventStatus_UnknownName(t *testing.T) {
	var s EventStatus
	assert.Error(t, s.UnmarshalText([]byte("DONE")))
	var v Visibility
	assert.Error(t, v.UnmarshalText([]byte("SECRET")))
}

func TestTicketTier_Window(t *testing.T) {
	start := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	tier := TicketTier{MaxSupply: 3, Sold: 1, SaleStart: start, SaleEnd: start.Add(time.Hour)}

	assert.Equal(t, uint64(2), tier.Remaining())
	assert.True(t, tier.OnSale(start))
	assert.True(t, tier.OnSale(start.Add(time.Hour)))
	assert.False(t, tier.OnSale(start.Add(-time.Second)))
	assert.False(t, tier.OnSale(start.Add(time.Hour+time.Second)))

	tier.Sold = 3
	assert.Equal(t, uint64(0), tier.Remaining())
}

func TestEnvelope_Audience(t *testing.T) {
	buyer := MustAddress("0x2222222222222222222222222222222222222222")
	other := MustAddress("0x3333333333333333333333333333333333333333")

	minted := Envelope{Event: BalanceTransfer{To: buyer}}
	assert.Equal(t, []Address{buyer}, minted.Audience())

	moved := Envelope{Event: BalanceTransfer{From: buyer, To: other}}
	assert.Equal(t, []Address{buyer, other}, moved.Audience())

	assert.Nil(t, Envelope{Event: ProtocolFeeUpdated{}}.Audience())
	assert.Equal(t, TopicRefundClaimed, RefundClaimed{}.Topic())
}

func TestCancellationRecorded_DistinctFromStatus(t *testing.T) {
	organizer := MustAddress("0x4444444444444444444444444444444444444444")
	ev := CancellationRecorded{EventID: 9, Organizer: organizer}

	assert.Equal(t, TopicEventCancelled, ev.Topic())
	assert.Equal(t, []Address{organizer}, Envelope{Event: ev}.Audience())
	assert.Equal(t, "CANCELLED", EventCancelled.String())
}
