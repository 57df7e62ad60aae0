package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticket-ledger/models"
)

var (
	organizer = models.MustAddress("0x0a00000000000000000000000000000000000004")
	buyer     = models.MustAddress("0xb100000000000000000000000000000000000005")
	seller    = models.MustAddress("0xb200000000000000000000000000000000000006")
	at        = time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
)

func purchase() models.Envelope {
	ev := models.TicketPurchased{EventID: 1, Buyer: buyer, Quantity: 2, TotalPrice: decimal.NewFromInt(200)}
	return models.Envelope{Seq: 7, Topic: ev.Topic(), At: at, Event: ev}
}

func TestStream_Publish(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer mock.ClearExpect()
	stream := NewStream(db, "ledger:events", 1000)

	env := purchase()
	payload, err := json.Marshal(env.Event)
	require.NoError(t, err)

	mock.ExpectXAdd(&redis.XAddArgs{
		Stream: "ledger:events",
		MaxLen: 1000,
		Approx: true,
		Values: []interface{}{
			"seq", "7",
			"topic", models.TopicTicketPurchased,
			"at", "1893499200000",
			"event", string(payload),
		},
	}).SetVal("1-0")

	require.NoError(t, stream.Publish(context.Background(), env))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStream_PublishError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer mock.ClearExpect()
	stream := NewStream(db, "ledger:events", 0)

	args, err := streamArgs("ledger:events", 0, purchase())
	require.NoError(t, err)
	assert.False(t, args.Approx)
	mock.ExpectXAdd(args).SetErr(errors.New("connection refused"))

	err = stream.Publish(context.Background(), purchase())
	assert.ErrorContains(t, err, "connection refused")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStream_Recent(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer mock.ClearExpect()
	stream := NewStream(db, "ledger:events", 1000)

	mock.ExpectXRevRangeN("ledger:events", "+", "-", 2).SetVal([]redis.XMessage{
		{ID: "2-0", Values: map[string]interface{}{"seq": "2", "topic": "funds-claimed", "at": "10", "event": `{"amount":"5"}`}},
		{ID: "1-0", Values: map[string]interface{}{"seq": "1", "topic": "event-created", "at": "9", "event": `{}`}},
	})

	entries, err := stream.Recent(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, uint64(2), entries[0].Seq)
	assert.Equal(t, "funds-claimed", entries[0].Topic)
	assert.Equal(t, int64(10), entries[0].At)
	assert.JSONEq(t, `{"amount":"5"}`, string(entries[0].Event))
	assert.NoError(t, mock.ExpectationsWereMet())
}

type published struct {
	channel string
	message any
}

type fakePublisher struct {
	mu   sync.Mutex
	err  error
	sent []published
}

func (f *fakePublisher) Publish(_ context.Context, channel string, message any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, published{channel: channel, message: message})
	return f.err
}

func TestRealtime_PublishesToAudience(t *testing.T) {
	pub := &fakePublisher{}
	rt := NewRealtime(pub, "wallet-")

	require.NoError(t, rt.Publish(context.Background(), purchase()))
	require.Len(t, pub.sent, 1)
	assert.Equal(t, "wallet-"+buyer.String(), pub.sent[0].channel)
	msg := pub.sent[0].message.(Message)
	assert.Equal(t, models.TopicTicketPurchased, msg.Type)
	assert.Equal(t, uint64(7), msg.Seq)

	transfer := models.BalanceTransfer{Operator: buyer, From: buyer, To: seller, Amount: 1}
	require.NoError(t, rt.Publish(context.Background(), models.Envelope{Seq: 8, Topic: transfer.Topic(), At: at, Event: transfer}))
	require.Len(t, pub.sent, 3)
	assert.Equal(t, rt.Channel(buyer), pub.sent[1].channel)
	assert.Equal(t, rt.Channel(seller), pub.sent[2].channel)
}

func TestRealtime_SkipsEventsWithoutAudience(t *testing.T) {
	pub := &fakePublisher{}
	rt := NewRealtime(pub, "wallet-")

	ev := models.ProtocolFeeUpdated{OldBps: 1, NewBps: 2}
	require.NoError(t, rt.Publish(context.Background(), models.Envelope{Seq: 1, Topic: ev.Topic(), At: at, Event: ev}))
	assert.Empty(t, pub.sent)
}

func TestRealtime_ReportsPublishFailure(t *testing.T) {
	pub := &fakePublisher{err: errors.New("403 forbidden")}
	rt := NewRealtime(pub, "wallet-")

	created := models.EventCreated{EventID: 1, Organizer: organizer, StartTime: at}
	err := rt.Publish(context.Background(), models.Envelope{Seq: 1, Topic: created.Topic(), At: at, Event: created})
	assert.ErrorContains(t, err, "403 forbidden")
}
