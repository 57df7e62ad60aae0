package services

import (
	"context"

	"github.com/shopspring/decimal"

	"ticket-ledger/internal/status"
	"ticket-ledger/models"
)

type PurchaseRequest struct {
	EventID        uint64         `json:"event_id"`
	TierID         uint32         `json:"tier_id"`
	Quantity       uint32         `json:"quantity"`
	Referrer       models.Address `json:"referrer"`
	PlatformFeeBps uint32         `json:"platform_fee_bps"`
}

// quote validates a purchase against the catalog and returns the event,
// the tier and the price. Nothing is written.
func (e *Engine) quote(x *execution, req PurchaseRequest, native bool) (models.Event, models.TicketTier, decimal.Decimal, error) {
	var (
		tier  models.TicketTier
		price decimal.Decimal
	)
	if req.Quantity == 0 || req.Quantity > MaxTicketQuantity {
		return models.Event{}, tier, price, status.ErrInvalidQuantity
	}
	if err := validateReferral(x.call.Caller, req.Referrer, req.PlatformFeeBps); err != nil {
		return models.Event{}, tier, price, err
	}
	ev, err := e.loadEvent(x, req.EventID)
	if err != nil {
		return ev, tier, price, err
	}
	if ev.Status != models.EventActive {
		return ev, tier, price, status.ErrEventNotActive
	}
	if ev.UsesNativeAsset() != native {
		return ev, tier, price, status.ErrAssetMismatch
	}

	tier, ok := e.st.tiers.Get(x.tx, tierKey{EventID: ev.ID, TierID: req.TierID})
	if !ok {
		return ev, tier, price, status.ErrTierNotFound
	}
	if !tier.OnSale(x.at) {
		if x.at.Before(tier.SaleStart) {
			return ev, tier, price, status.ErrSaleNotStarted
		}
		return ev, tier, price, status.ErrSaleEnded
	}
	if uint64(req.Quantity) > tier.Remaining() {
		return ev, tier, price, status.ErrCapacityExceeded
	}
	if ev.Visibility == models.VisibilityInviteOnly && !e.invited(x, ev.ID, x.call.Caller) {
		return ev, tier, price, status.ErrNotInvited
	}

	price = tier.Price.Mul(decimal.NewFromInt(int64(req.Quantity)))
	if price.IsZero() {
		// free tiers still cost the smallest unit
		price = decimal.NewFromInt(1)
	}
	return ev, tier, price, nil
}

// sell applies the bookkeeping of a validated purchase: sold count, the
// refund accumulator, the minted tickets and the fee cascade.
func (e *Engine) sell(x *execution, ev models.Event, tier models.TicketTier, req PurchaseRequest, price decimal.Decimal) (*models.PurchaseReceipt, error) {
	previous := tier.Sold
	tier.Sold += uint64(req.Quantity)
	e.st.tiers.Put(x.tx, tierKey{EventID: ev.ID, TierID: req.TierID}, tier)

	addAmount(x.tx, e.st.ticketPayments, paymentKey{EventID: ev.ID, User: x.call.Caller}, price)

	ids := make([]models.TokenID, 0, req.Quantity)
	for i := uint64(0); i < uint64(req.Quantity); i++ {
		id := models.TicketID(ev.ID, req.TierID, previous+i+1)
		if err := e.mint(x, x.call.Caller, id, 1); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	d, err := e.distribute(x, ev, price, req.Referrer, req.PlatformFeeBps)
	if err != nil {
		return nil, err
	}
	x.emit(models.TicketPurchased{
		EventID:    ev.ID,
		TierID:     req.TierID,
		Buyer:      x.call.Caller,
		Quantity:   req.Quantity,
		TotalPrice: price,
	})
	return &models.PurchaseReceipt{
		EventID:      ev.ID,
		TierID:       req.TierID,
		Buyer:        x.call.Caller,
		Quantity:     req.Quantity,
		TotalPrice:   price,
		TokenIDs:     ids,
		Distribution: d,
		Refunded:     decimal.Zero,
	}, nil
}

// PurchaseTickets buys tickets with the attached native value. Overpayment
// is sent back to the caller after all bookkeeping.
func (e *Engine) PurchaseTickets(ctx context.Context, call Call, req PurchaseRequest) (*models.PurchaseReceipt, error) {
	var receipt *models.PurchaseReceipt
	err := e.exec(ctx, "purchaseTickets", call, true, func(x *execution) error {
		ev, tier, price, err := e.quote(x, req, true)
		if err != nil {
			return err
		}
		if x.call.Value.LessThan(price) {
			return status.ErrInsufficientPayment
		}
		if receipt, err = e.sell(x, ev, tier, req, price); err != nil {
			return err
		}

		excess := x.call.Value.Sub(price)
		if excess.IsPositive() {
			receipt.Refunded = excess
			return e.payout(x, models.ZeroAddress, x.call.Caller, excess)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// PurchaseTicketsWithAsset buys tickets of an event priced in an external
// asset. The exact price is pulled from the caller's allowance last.
func (e *Engine) PurchaseTicketsWithAsset(ctx context.Context, call Call, req PurchaseRequest) (*models.PurchaseReceipt, error) {
	var receipt *models.PurchaseReceipt
	err := e.exec(ctx, "purchaseTicketsWithAsset", call, false, func(x *execution) error {
		ev, tier, price, err := e.quote(x, req, false)
		if err != nil {
			return err
		}
		if receipt, err = e.sell(x, ev, tier, req, price); err != nil {
			return err
		}
		return e.collect(x, ev.PaymentAsset, price)
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}
