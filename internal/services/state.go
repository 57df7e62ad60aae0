package services

import (
	"github.com/shopspring/decimal"

	"ticket-ledger/internal/store"
	"ticket-ledger/models"
)

// Fixed configuration.
const (
	MaxPaymentSplits  = 20
	MaxTicketQuantity = 50
	MaxProtocolFeeBps = 1000
	MaxPlatformFeeBps = 500
)

type tierKey struct {
	EventID uint64
	TierID  uint32
}

type holdingKey struct {
	Holder  models.Address
	TokenID models.TokenID
}

type allowanceKey struct {
	Owner   models.Address
	Spender models.Address
	TokenID models.TokenID
}

type operatorKey struct {
	Owner    models.Address
	Operator models.Address
}

// assetKey addresses a pending or accumulated amount in one asset.
// The zero asset is the native asset.
type assetKey struct {
	Asset  models.Address
	Holder models.Address
}

type paymentKey struct {
	EventID uint64
	User    models.Address
}

type feeConfig struct {
	ProtocolFeeBps uint32
	FeeRecipient   models.Address
	FeeAdmin       models.Address
}

type state struct {
	eventIDs       *store.Counter
	events         *store.Table[uint64, models.Event]
	tierCounts     *store.Table[uint64, uint32]
	tiers          *store.Table[tierKey, models.TicketTier]
	splits         *store.Table[uint64, []models.PaymentSplit]
	cancellations  *store.Table[uint64, models.Cancellation]
	invites        *store.Table[paymentKey, bool]
	balances       *store.Table[holdingKey, uint64]
	supply         *store.Table[models.TokenID, uint64]
	allowances     *store.Table[allowanceKey, uint64]
	operators      *store.Table[operatorKey, bool]
	checkIns       *store.Table[models.TokenID, bool]
	pending        *store.Table[assetKey, decimal.Decimal]
	referrals      *store.Table[assetKey, decimal.Decimal]
	residue        *store.Table[models.Address, decimal.Decimal]
	ticketPayments *store.Table[paymentKey, decimal.Decimal]
	tipPayments    *store.Table[paymentKey, decimal.Decimal]
	fees           *store.Table[struct{}, feeConfig]
}

func newState() *state {
	return &state{
		eventIDs:       store.NewCounter("event_ids"),
		events:         store.NewTable[uint64, models.Event]("events"),
		tierCounts:     store.NewTable[uint64, uint32]("tier_counts"),
		tiers:          store.NewTable[tierKey, models.TicketTier]("tiers"),
		splits:         store.NewTable[uint64, []models.PaymentSplit]("splits"),
		cancellations:  store.NewTable[uint64, models.Cancellation]("cancellations"),
		invites:        store.NewTable[paymentKey, bool]("invites"),
		balances:       store.NewTable[holdingKey, uint64]("balances"),
		supply:         store.NewTable[models.TokenID, uint64]("supply"),
		allowances:     store.NewTable[allowanceKey, uint64]("allowances"),
		operators:      store.NewTable[operatorKey, bool]("operators"),
		checkIns:       store.NewTable[models.TokenID, bool]("check_ins"),
		pending:        store.NewTable[assetKey, decimal.Decimal]("pending_withdrawals"),
		referrals:      store.NewTable[assetKey, decimal.Decimal]("referrer_earnings"),
		residue:        store.NewTable[models.Address, decimal.Decimal]("retained_residue"),
		ticketPayments: store.NewTable[paymentKey, decimal.Decimal]("ticket_payments"),
		tipPayments:    store.NewTable[paymentKey, decimal.Decimal]("tip_payments"),
		fees:           store.NewTable[struct{}, feeConfig]("fees"),
	}
}

// addAmount adds delta to the decimal stored under k.
func addAmount[K comparable](tx *store.Tx, t *store.Table[K, decimal.Decimal], k K, delta decimal.Decimal) {
	cur, _ := t.Get(tx, k)
	t.Put(tx, k, cur.Add(delta))
}

// takeAmount zeroes the decimal under k and returns what it held.
func takeAmount[K comparable](tx *store.Tx, t *store.Table[K, decimal.Decimal], k K) decimal.Decimal {
	cur, ok := t.Get(tx, k)
	if !ok || cur.IsZero() {
		return decimal.Zero
	}
	t.Delete(tx, k)
	return cur
}
