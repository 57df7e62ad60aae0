package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticket-ledger/internal/chain"
	"ticket-ledger/internal/status"
	"ticket-ledger/models"
)

// Two tickets at 100 with a 0.5% protocol fee sell out the tier.
func TestPurchase_SellsOutTier(t *testing.T) {
	f := newFixture(t, 50)
	eventID := f.createEvent(f.params(), tier(100, 2))
	f.fund(buyer, 200)
	f.fund(buyer2, 100)

	receipt, err := f.buy(buyer, eventID, 2, 200)
	require.NoError(t, err)
	assertAmount(t, 200, receipt.TotalPrice)
	assertAmount(t, 1, receipt.Distribution.ProtocolFee)
	assertAmount(t, 199, receipt.Distribution.Net)

	tr, err := f.engine.Tier(f.ctx, eventID, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), tr.Sold)

	_, err = f.buy(buyer2, eventID, 1, 100)
	assert.ErrorIs(t, err, status.ErrCapacityExceeded)
	assertAmount(t, 100, f.bank.BalanceOf(buyer2))

	assertAmount(t, 1, f.engine.PendingWithdrawal(f.ctx, models.ZeroAddress, feeRecipient))
	assertAmount(t, 139, f.engine.PendingWithdrawal(f.ctx, models.ZeroAddress, splitA))
	assertAmount(t, 59, f.engine.PendingWithdrawal(f.ctx, models.ZeroAddress, splitB))
	assertAmount(t, 1, f.engine.RetainedResidue(f.ctx, models.ZeroAddress))
	assertAmount(t, 200, f.engine.TicketPayment(f.ctx, eventID, buyer))
}

func TestPurchase_SerialsAreContiguous(t *testing.T) {
	f := newFixture(t, 0)
	eventID := f.createEvent(f.params(), tier(10, 10))
	f.fund(buyer, 100)
	f.fund(buyer2, 100)

	first, err := f.buy(buyer, eventID, 3, 30)
	require.NoError(t, err)
	second, err := f.buy(buyer2, eventID, 2, 20)
	require.NoError(t, err)

	var serials []uint64
	for _, id := range append(first.TokenIDs, second.TokenIDs...) {
		assert.Equal(t, models.CategoryEventTicket, id.Category())
		assert.True(t, id.BelongsTo(eventID))
		assert.Equal(t, uint32(0), id.TierID())
		serials = append(serials, id.Serial())
	}
	assert.Equal(t, []uint64{1, 2, 3, 4, 5}, serials)

	for _, id := range first.TokenIDs {
		assert.Equal(t, uint64(1), f.engine.BalanceOf(f.ctx, buyer, id))
		assert.Equal(t, uint64(1), f.engine.TotalSupply(f.ctx, id))
	}
	assert.NoError(t, f.engine.Audit(f.ctx))
}

func TestPurchase_RefundsOverpayment(t *testing.T) {
	f := newFixture(t, 0)
	eventID := f.createEvent(f.params(), tier(100, 10))
	f.fund(buyer, 500)

	receipt, err := f.buy(buyer, eventID, 1, 500)
	require.NoError(t, err)
	assertAmount(t, 400, receipt.Refunded)
	assertAmount(t, 400, f.bank.BalanceOf(buyer))
	assertAmount(t, 100, f.bank.BalanceOf(engineAddr))
	assertAmount(t, 100, f.engine.TicketPayment(f.ctx, eventID, buyer))
}

func TestPurchase_FreeTierCostsOneUnit(t *testing.T) {
	f := newFixture(t, 0)
	eventID := f.createEvent(f.params(), tier(0, 10))
	f.fund(buyer, 5)

	_, err := f.buy(buyer, eventID, 3, 0)
	assert.ErrorIs(t, err, status.ErrInsufficientPayment)

	receipt, err := f.buy(buyer, eventID, 3, 1)
	require.NoError(t, err)
	assertAmount(t, 1, receipt.TotalPrice)
	assert.Len(t, receipt.TokenIDs, 3)
	assertAmount(t, 4, f.bank.BalanceOf(buyer))
}

// A platform fee above the maximum fails before any mutation.
func TestPurchase_PlatformFeeAboveMaximum(t *testing.T) {
	f := newFixture(t, 50)
	eventID := f.createEvent(f.params(), tier(100, 10))
	f.fund(buyer, 100)

	before := f.snapshot(eventID, buyer)
	_, err := f.engine.PurchaseTickets(f.ctx, Call{Caller: buyer, Value: d(100)}, PurchaseRequest{
		EventID:        eventID,
		Quantity:       1,
		Referrer:       referrer,
		PlatformFeeBps: 600,
	})
	assert.ErrorIs(t, err, status.ErrPlatformFeeTooHigh)
	f.assertUnchanged(before, eventID, buyer)
	assert.True(t, f.engine.ReferrerEarnings(f.ctx, models.ZeroAddress, referrer).IsZero())
}

func TestPurchase_PlatformFeeToReferrer(t *testing.T) {
	f := newFixture(t, 100)
	eventID := f.createEvent(f.params(), tier(1000, 10))
	f.fund(buyer, 1000)

	receipt, err := f.engine.PurchaseTickets(f.ctx, Call{Caller: buyer, Value: d(1000)}, PurchaseRequest{
		EventID:        eventID,
		Quantity:       1,
		Referrer:       referrer,
		PlatformFeeBps: 500,
	})
	require.NoError(t, err)

	// 1000 gross: 50 platform, 9 protocol (1% of 950), 941 net
	assertAmount(t, 50, receipt.Distribution.PlatformFee)
	assertAmount(t, 9, receipt.Distribution.ProtocolFee)
	assertAmount(t, 941, receipt.Distribution.Net)
	assertAmount(t, 50, f.engine.PendingWithdrawal(f.ctx, models.ZeroAddress, referrer))
	assertAmount(t, 50, f.engine.ReferrerEarnings(f.ctx, models.ZeroAddress, referrer))
	assertAmount(t, 9, f.engine.PendingWithdrawal(f.ctx, models.ZeroAddress, feeRecipient))
	assertAmount(t, 658, f.engine.PendingWithdrawal(f.ctx, models.ZeroAddress, splitA))
	assertAmount(t, 282, f.engine.PendingWithdrawal(f.ctx, models.ZeroAddress, splitB))
	assertAmount(t, 1, f.engine.RetainedResidue(f.ctx, models.ZeroAddress))

	var platformEvents int
	for _, env := range f.engine.Events(f.ctx, 0, 0) {
		if ev, ok := env.Event.(models.PlatformFeeAllocated); ok {
			platformEvents++
			assert.Equal(t, referrer, ev.Referrer)
			assert.Equal(t, uint32(500), ev.Bps)
		}
	}
	assert.Equal(t, 1, platformEvents)
}

func TestPurchase_InvalidReferrer(t *testing.T) {
	f := newFixture(t, 0)
	eventID := f.createEvent(f.params(), tier(100, 10))
	f.fund(buyer, 100)

	for _, ref := range []models.Address{models.ZeroAddress, buyer} {
		_, err := f.engine.PurchaseTickets(f.ctx, Call{Caller: buyer, Value: d(100)}, PurchaseRequest{
			EventID: eventID, Quantity: 1, Referrer: ref, PlatformFeeBps: 100,
		})
		assert.ErrorIs(t, err, status.ErrInvalidReferrer)
	}
}

func TestPurchase_Preconditions(t *testing.T) {
	f := newFixture(t, 0)
	eventID := f.createEvent(f.params(), tier(100, 10))
	f.fund(buyer, 10000)

	tests := []struct {
		name string
		req  PurchaseRequest
		val  int64
		want error
	}{
		{"zero quantity", PurchaseRequest{EventID: eventID, Quantity: 0}, 100, status.ErrInvalidQuantity},
		{"quantity above maximum", PurchaseRequest{EventID: eventID, Quantity: MaxTicketQuantity + 1}, 10000, status.ErrInvalidQuantity},
		{"unknown event", PurchaseRequest{EventID: 99, Quantity: 1}, 100, status.ErrEventNotFound},
		{"unknown tier", PurchaseRequest{EventID: eventID, TierID: 4, Quantity: 1}, 100, status.ErrTierNotFound},
		{"underpayment", PurchaseRequest{EventID: eventID, Quantity: 2}, 199, status.ErrInsufficientPayment},
		{"over supply", PurchaseRequest{EventID: eventID, Quantity: 11}, 1100, status.ErrCapacityExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := f.snapshot(eventID, buyer)
			_, err := f.engine.PurchaseTickets(f.ctx, Call{Caller: buyer, Value: d(tt.val)}, tt.req)
			assert.ErrorIs(t, err, tt.want)
			f.assertUnchanged(before, eventID, buyer)
		})
	}
}

func TestPurchase_SaleWindow(t *testing.T) {
	f := newFixture(t, 0)
	later := tier(100, 10)
	later.SaleStart = t0.Add(24 * time.Hour)
	later.SaleEnd = t0.Add(48 * time.Hour)
	eventID := f.createEvent(f.params(), later)
	f.fund(buyer, 1000)

	_, err := f.buy(buyer, eventID, 1, 100)
	assert.ErrorIs(t, err, status.ErrSaleNotStarted)

	f.clock.Advance(24 * time.Hour)
	_, err = f.buy(buyer, eventID, 1, 100)
	assert.NoError(t, err, "sale start is inclusive")

	f.clock.Advance(24 * time.Hour)
	_, err = f.buy(buyer, eventID, 1, 100)
	assert.NoError(t, err, "sale end is inclusive")

	f.clock.Advance(time.Second)
	_, err = f.buy(buyer, eventID, 1, 100)
	assert.ErrorIs(t, err, status.ErrSaleEnded)
}

type staticInvites map[models.Address]bool

func (s staticInvites) IsInvited(_ uint64, who models.Address) bool {
	return s[who]
}

func TestPurchase_InviteOnly(t *testing.T) {
	f := newFixture(t, 0, WithInviteList(staticInvites{buyer2: true}))
	params := f.params()
	params.Visibility = models.VisibilityInviteOnly
	eventID := f.createEvent(params, tier(10, 10))
	f.fund(buyer, 100)
	f.fund(buyer2, 100)

	_, err := f.buy(buyer, eventID, 1, 10)
	assert.ErrorIs(t, err, status.ErrNotInvited)
	assert.Equal(t, status.KindAuth, status.KindOf(err))

	_, err = f.buy(buyer2, eventID, 1, 10)
	assert.NoError(t, err, "external invite list is honoured")

	require.NoError(t, f.engine.SetInvites(f.ctx, Call{Caller: organizer}, eventID, []models.Address{buyer}, true))
	_, err = f.buy(buyer, eventID, 1, 10)
	assert.NoError(t, err)
}

func TestPurchase_PrivateEventIsOpenToDirectBuyers(t *testing.T) {
	f := newFixture(t, 0)
	params := f.params()
	params.Visibility = models.VisibilityPrivate
	eventID := f.createEvent(params, tier(10, 10))
	f.fund(buyer, 10)

	_, err := f.buy(buyer, eventID, 1, 10)
	assert.NoError(t, err)
}

func TestPurchase_CancelledEvent(t *testing.T) {
	f := newFixture(t, 0)
	eventID := f.createEvent(f.params(), tier(10, 10))
	require.NoError(t, f.engine.CancelEvent(f.ctx, Call{Caller: organizer}, eventID))
	f.fund(buyer, 10)

	_, err := f.buy(buyer, eventID, 1, 10)
	assert.ErrorIs(t, err, status.ErrEventNotActive)
}

func (f *fixture) createAssetEvent(price int64, supply uint64) uint64 {
	f.t.Helper()
	params := f.params()
	params.PaymentAsset = assetAddr
	return f.createEvent(params, tier(price, supply))
}

func TestPurchaseWithAsset(t *testing.T) {
	for _, mode := range []chain.ReturnMode{chain.ReturnsBool, chain.ReturnsNothing} {
		f := newFixture(t, 50)
		f.token = chain.NewMemoryToken(mode)
		require.NoError(t, f.assets.Register(assetAddr, f.token))
		eventID := f.createAssetEvent(100, 10)

		f.token.Mint(buyer, d(1000))
		f.token.Approve(buyer, engineAddr, d(200))

		receipt, err := f.engine.PurchaseTicketsWithAsset(f.ctx, Call{Caller: buyer}, PurchaseRequest{EventID: eventID, Quantity: 2})
		require.NoError(t, err)
		assertAmount(t, 200, receipt.TotalPrice)
		assertAmount(t, 800, f.token.BalanceOf(buyer))
		assertAmount(t, 200, f.token.BalanceOf(engineAddr))
		assertAmount(t, 1, f.engine.PendingWithdrawal(f.ctx, assetAddr, feeRecipient))
		assert.True(t, f.engine.PendingWithdrawal(f.ctx, models.ZeroAddress, feeRecipient).IsZero())

		// allowance exhausted: the pull fails and the whole purchase reverts
		before := f.snapshot(eventID, buyer)
		_, err = f.engine.PurchaseTicketsWithAsset(f.ctx, Call{Caller: buyer}, PurchaseRequest{EventID: eventID, Quantity: 1})
		assert.ErrorIs(t, err, status.ErrAssetTransfer)
		f.assertUnchanged(before, eventID, buyer)
		assertAmount(t, 200, f.engine.TicketPayment(f.ctx, eventID, buyer))
	}
}

func TestPurchase_AssetVariantMismatch(t *testing.T) {
	f := newFixture(t, 0)
	nativeEvent := f.createEvent(f.params(), tier(10, 10))
	assetEvent := f.createAssetEvent(10, 10)
	f.fund(buyer, 10)

	_, err := f.buy(buyer, assetEvent, 1, 10)
	assert.ErrorIs(t, err, status.ErrAssetMismatch)

	_, err = f.engine.PurchaseTicketsWithAsset(f.ctx, Call{Caller: buyer}, PurchaseRequest{EventID: nativeEvent, Quantity: 1})
	assert.ErrorIs(t, err, status.ErrAssetMismatch)

	_, err = f.engine.PurchaseTicketsWithAsset(f.ctx, Call{Caller: buyer, Value: d(1)}, PurchaseRequest{EventID: assetEvent, Quantity: 1})
	assert.ErrorIs(t, err, status.ErrUnexpectedValue)
}

func TestSoldNeverExceedsMaxSupply(t *testing.T) {
	f := newFixture(t, 0)
	eventID := f.createEvent(f.params(), tier(1, 7))
	f.fund(buyer, 1000)

	var last uint64
	for i := 0; i < 10; i++ {
		_, _ = f.buy(buyer, eventID, uint32(i%3+1), 3)
		tr, err := f.engine.Tier(f.ctx, eventID, 0)
		require.NoError(t, err)
		assert.LessOrEqual(t, tr.Sold, tr.MaxSupply)
		assert.GreaterOrEqual(t, tr.Sold, last)
		last = tr.Sold
	}
	assert.Equal(t, uint64(7), last)
}
