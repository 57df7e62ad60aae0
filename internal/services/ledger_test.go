package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticket-ledger/internal/status"
	"ticket-ledger/internal/store"
	"ticket-ledger/models"
)

func (f *fixture) ticketFor(who models.Address) (uint64, models.TokenID) {
	f.t.Helper()
	eventID := f.createEvent(f.params(), tier(10, 10))
	f.fund(who, 10)
	receipt, err := f.buy(who, eventID, 1, 10)
	require.NoError(f.t, err)
	return eventID, receipt.TokenIDs[0]
}

func TestSafeTransferFrom_ByOwner(t *testing.T) {
	f := newFixture(t, 0)
	_, ticket := f.ticketFor(buyer)

	require.NoError(t, f.engine.SafeTransferFrom(f.ctx, Call{Caller: buyer}, buyer, buyer2, ticket, 1))
	assert.Equal(t, uint64(0), f.engine.BalanceOf(f.ctx, buyer, ticket))
	assert.Equal(t, uint64(1), f.engine.BalanceOf(f.ctx, buyer2, ticket))
	assert.Equal(t, uint64(1), f.engine.TotalSupply(f.ctx, ticket))
	assert.NoError(t, f.engine.Audit(f.ctx))

	all := f.engine.Events(f.ctx, 0, 0)
	transfer := all[len(all)-1].Event.(models.BalanceTransfer)
	assert.Equal(t, buyer, transfer.Operator)
	assert.Equal(t, buyer2, transfer.To)
}

func TestSafeTransferFrom_InsufficientBalance(t *testing.T) {
	f := newFixture(t, 0)
	_, ticket := f.ticketFor(buyer)

	err := f.engine.SafeTransferFrom(f.ctx, Call{Caller: buyer}, buyer, buyer2, ticket, 2)
	assert.ErrorIs(t, err, status.ErrInsufficientBalance)
	assert.Equal(t, uint64(1), f.engine.BalanceOf(f.ctx, buyer, ticket))
	assert.Equal(t, uint64(0), f.engine.BalanceOf(f.ctx, buyer2, ticket))
}

func TestSafeTransferFrom_Allowance(t *testing.T) {
	f := newFixture(t, 0)
	_, ticket := f.ticketFor(buyer)
	spender := referrer

	err := f.engine.SafeTransferFrom(f.ctx, Call{Caller: spender}, buyer, buyer2, ticket, 1)
	assert.ErrorIs(t, err, status.ErrNotAuthorized)

	require.NoError(t, f.engine.Approve(f.ctx, Call{Caller: buyer}, spender, ticket, 1))
	assert.Equal(t, uint64(1), f.engine.Allowance(f.ctx, buyer, spender, ticket))

	require.NoError(t, f.engine.SafeTransferFrom(f.ctx, Call{Caller: spender}, buyer, buyer2, ticket, 1))
	assert.Equal(t, uint64(0), f.engine.Allowance(f.ctx, buyer, spender, ticket))
	assert.Equal(t, uint64(1), f.engine.BalanceOf(f.ctx, buyer2, ticket))

	// allowance spent, a second move is refused even though buyer2 now owns it
	err = f.engine.SafeTransferFrom(f.ctx, Call{Caller: spender}, buyer2, buyer, ticket, 1)
	assert.ErrorIs(t, err, status.ErrNotAuthorized)
}

func TestSafeTransferFrom_FailedTransferKeepsAllowance(t *testing.T) {
	f := newFixture(t, 0)
	_, ticket := f.ticketFor(buyer)
	require.NoError(t, f.engine.Approve(f.ctx, Call{Caller: buyer}, referrer, ticket, 5))

	err := f.engine.SafeTransferFrom(f.ctx, Call{Caller: referrer}, buyer, buyer2, ticket, 3)
	assert.ErrorIs(t, err, status.ErrInsufficientBalance)
	assert.Equal(t, uint64(5), f.engine.Allowance(f.ctx, buyer, referrer, ticket))
}

func TestSafeTransferFrom_Operator(t *testing.T) {
	f := newFixture(t, 0)
	_, ticket := f.ticketFor(buyer)

	require.NoError(t, f.engine.SetOperator(f.ctx, Call{Caller: buyer}, referrer, true))
	assert.True(t, f.engine.IsOperator(f.ctx, buyer, referrer))

	require.NoError(t, f.engine.SafeTransferFrom(f.ctx, Call{Caller: referrer}, buyer, buyer2, ticket, 1))
	assert.Equal(t, uint64(0), f.engine.Allowance(f.ctx, buyer, referrer, ticket))

	require.NoError(t, f.engine.SetOperator(f.ctx, Call{Caller: buyer}, referrer, false))
	assert.False(t, f.engine.IsOperator(f.ctx, buyer, referrer))

	assert.ErrorIs(t, f.engine.SetOperator(f.ctx, Call{Caller: buyer}, models.ZeroAddress, true), status.ErrZeroAddress)
}

func TestSafeTransferFrom_ZeroAddress(t *testing.T) {
	f := newFixture(t, 0)
	_, ticket := f.ticketFor(buyer)

	err := f.engine.SafeTransferFrom(f.ctx, Call{Caller: buyer}, buyer, models.ZeroAddress, ticket, 1)
	assert.ErrorIs(t, err, status.ErrZeroAddress)
	assert.ErrorIs(t, f.engine.Approve(f.ctx, Call{Caller: buyer}, models.ZeroAddress, ticket, 1), status.ErrZeroAddress)
}

func TestSafeTransferFrom_SoulboundTokens(t *testing.T) {
	f := newFixture(t, 0)
	eventID, _ := f.ticketFor(buyer)
	cred := models.OrganizerCredID(eventID)

	err := f.engine.SafeTransferFrom(f.ctx, Call{Caller: organizer}, organizer, buyer, cred, 1)
	assert.ErrorIs(t, err, status.ErrSoulbound)
	assert.Equal(t, uint64(1), f.engine.BalanceOf(f.ctx, organizer, cred))

	badge := models.BadgeID(eventID, 0, 1)
	err = f.engine.SafeTransferFrom(f.ctx, Call{Caller: buyer}, buyer, buyer2, badge, 1)
	assert.ErrorIs(t, err, status.ErrSoulbound)
}

func TestHoldings(t *testing.T) {
	f := newFixture(t, 0)
	eventID, ticket := f.ticketFor(buyer)

	assert.Equal(t, map[models.TokenID]uint64{ticket: 1}, f.engine.Holdings(f.ctx, buyer))
	assert.Equal(t, map[models.TokenID]uint64{models.OrganizerCredID(eventID): 1}, f.engine.Holdings(f.ctx, organizer))

	require.NoError(t, f.engine.SafeTransferFrom(f.ctx, Call{Caller: buyer}, buyer, buyer2, ticket, 1))
	assert.Empty(t, f.engine.Holdings(f.ctx, buyer))
}

func TestAudit_DetectsSupplyDrift(t *testing.T) {
	f := newFixture(t, 0)
	_, ticket := f.ticketFor(buyer)
	require.NoError(t, f.engine.Audit(f.ctx))

	// corrupt committed state directly
	tx := store.Begin()
	f.engine.st.supply.Put(tx, ticket, 2)
	require.NoError(t, tx.Commit())

	assert.Error(t, f.engine.Audit(f.ctx))
}
