package journal

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"ticket-ledger/models"
)

var (
	organizer = models.MustAddress("0x0a00000000000000000000000000000000000004")
	buyer     = models.MustAddress("0xb100000000000000000000000000000000000005")
	at        = time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
)

func envelopes() []models.Envelope {
	events := []models.DomainEvent{
		models.EventCreated{EventID: 1, Organizer: organizer, StartTime: at.Add(time.Hour)},
		models.TicketPurchased{EventID: 1, TierID: 0, Buyer: buyer, Quantity: 2, TotalPrice: decimal.NewFromInt(200)},
		models.CancellationRecorded{EventID: 1, Organizer: organizer, Timestamp: at},
	}
	out := make([]models.Envelope, len(events))
	for i, ev := range events {
		out[i] = models.Envelope{Seq: uint64(i + 1), Topic: ev.Topic(), At: at, Event: ev}
	}
	return out
}

func openTemp(t *testing.T) (*Journal, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j, path
}

func TestJournal_AppendAndVerify(t *testing.T) {
	ctx := context.Background()
	j, _ := openTemp(t)
	assert.Equal(t, Hash{}, j.Head())

	for _, env := range envelopes() {
		require.NoError(t, j.Publish(ctx, env))
	}

	rows, err := j.Entries(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, models.TopicEventCreated, rows[0].Topic)
	assert.Equal(t, int64(3), rows[2].Seq)
	assert.Equal(t, j.Run(), rows[1].Run)
	assert.Equal(t, at, rows[0].Time())
	assert.Equal(t, rows[0].Hash, rows[1].PrevHash)

	decoded, err := rows[1].Decode()
	require.NoError(t, err)
	assert.Equal(t, buyer.String(), decoded["buyer"])
	assert.Contains(t, decoded, "total_price")

	n, err := j.Verify(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	page, err := j.Entries(ctx, rows[0].Position, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, rows[1].ID, page[0].ID)
}

func TestJournal_SameEventSameHash(t *testing.T) {
	ctx := context.Background()
	a, _ := openTemp(t)
	b, _ := openTemp(t)
	for _, env := range envelopes() {
		require.NoError(t, a.Publish(ctx, env))
		require.NoError(t, b.Publish(ctx, env))
	}
	assert.Equal(t, a.Head(), b.Head())
	assert.NotEqual(t, a.Run(), b.Run())
}

func TestJournal_ResumesChainAcrossRuns(t *testing.T) {
	ctx := context.Background()
	j, path := openTemp(t)
	envs := envelopes()
	require.NoError(t, j.Publish(ctx, envs[0]))
	head := j.Head()
	require.NoError(t, j.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, head, reopened.Head())

	// sequence numbers restart with a new run
	require.NoError(t, reopened.Publish(ctx, envs[0]))
	n, err := reopened.Verify(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestJournal_DetectsTampering(t *testing.T) {
	ctx := context.Background()
	j, path := openTemp(t)
	for _, env := range envelopes() {
		require.NoError(t, j.Publish(ctx, env))
	}

	raw, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer raw.Close()
	_, err = raw.Exec(`UPDATE journal SET topic = 'funds-claimed' WHERE seq = 2`)
	require.NoError(t, err)

	n, err := j.Verify(ctx)
	assert.ErrorIs(t, err, ErrChainBroken)
	assert.Equal(t, 1, n)
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open("  ")
	assert.Error(t, err)
}
