package services

import (
	"context"

	"github.com/shopspring/decimal"

	"ticket-ledger/internal/chain"
	"ticket-ledger/internal/status"
	"ticket-ledger/models"
)

type TipRequest struct {
	EventID        uint64          `json:"event_id"`
	Referrer       models.Address  `json:"referrer"`
	PlatformFeeBps uint32          `json:"platform_fee_bps"`
	Amount         decimal.Decimal `json:"amount"` // external asset variant only
}

func validateReferral(caller, referrer models.Address, bps uint32) error {
	if bps > MaxPlatformFeeBps {
		return status.ErrPlatformFeeTooHigh
	}
	if bps > 0 && (referrer.IsZero() || referrer == caller) {
		return status.ErrInvalidReferrer
	}
	return nil
}

// distribute queues gross into pending withdrawals through the fee cascade.
// Residue left by floor rounding stays in custody and is only tracked.
func (e *Engine) distribute(x *execution, ev models.Event, gross decimal.Decimal, referrer models.Address, platformFeeBps uint32) (models.Distribution, error) {
	splits, ok := e.st.splits.Get(x.tx, ev.ID)
	if !ok {
		return models.Distribution{}, status.ErrEventNotFound
	}
	if referrer.IsZero() {
		platformFeeBps = 0
	}
	fees, _ := e.st.fees.Get(x.tx, struct{}{})
	d := ComputeDistribution(gross, platformFeeBps, fees.ProtocolFeeBps, splits)
	asset := ev.PaymentAsset

	if d.PlatformFee.IsPositive() {
		k := assetKey{Asset: asset, Holder: referrer}
		addAmount(x.tx, e.st.pending, k, d.PlatformFee)
		addAmount(x.tx, e.st.referrals, k, d.PlatformFee)
		x.emit(models.PlatformFeeAllocated{EventID: ev.ID, Referrer: referrer, Amount: d.PlatformFee, Bps: platformFeeBps})
	}
	if d.ProtocolFee.IsPositive() {
		addAmount(x.tx, e.st.pending, assetKey{Asset: asset, Holder: fees.FeeRecipient}, d.ProtocolFee)
	}
	for _, a := range d.Splits {
		if !a.Amount.IsPositive() {
			continue
		}
		addAmount(x.tx, e.st.pending, assetKey{Asset: asset, Holder: a.Recipient}, a.Amount)
		x.emit(models.PaymentAllocated{EventID: ev.ID, Recipient: a.Recipient, Amount: a.Amount})
	}
	if d.Residue.IsPositive() {
		addAmount(x.tx, e.st.residue, asset, d.Residue)
	}
	return d, nil
}

// payout sends amount out of custody as the last step of an operation.
func (e *Engine) payout(x *execution, asset, to models.Address, amount decimal.Decimal) error {
	if asset.IsZero() {
		return e.callOut(func() error {
			return e.bank.Transfer(x.ctx, e.address, to, amount)
		})
	}
	token, ok := e.assets.Lookup(asset)
	if !ok {
		return status.ErrUnknownAsset
	}
	return e.callOut(func() error {
		return chain.SafeTransfer(x.ctx, token, e.address, to, amount)
	})
}

// collect pulls amount of an external asset from the caller into custody.
func (e *Engine) collect(x *execution, asset models.Address, amount decimal.Decimal) error {
	token, ok := e.assets.Lookup(asset)
	if !ok {
		return status.ErrUnknownAsset
	}
	return e.callOut(func() error {
		return chain.SafeTransferFrom(x.ctx, token, e.address, x.call.Caller, e.address, amount)
	})
}

func (e *Engine) loadTippable(x *execution, eventID uint64, native bool) (models.Event, error) {
	ev, err := e.loadEvent(x, eventID)
	if err != nil {
		return ev, err
	}
	if ev.Status != models.EventActive {
		return ev, status.ErrEventNotActive
	}
	if ev.UsesNativeAsset() != native {
		return ev, status.ErrAssetMismatch
	}
	return ev, nil
}

func (e *Engine) tip(x *execution, ev models.Event, req TipRequest, amount decimal.Decimal) (*models.TipReceipt, error) {
	k := paymentKey{EventID: ev.ID, User: x.call.Caller}
	addAmount(x.tx, e.st.tipPayments, k, amount)
	d, err := e.distribute(x, ev, amount, req.Referrer, req.PlatformFeeBps)
	if err != nil {
		return nil, err
	}
	x.emit(models.EventTipped{EventID: ev.ID, Tipper: x.call.Caller, Amount: amount})
	return &models.TipReceipt{EventID: ev.ID, Tipper: x.call.Caller, Amount: amount, Distribution: d}, nil
}

// TipEvent pays the attached native value through the fee cascade.
func (e *Engine) TipEvent(ctx context.Context, call Call, req TipRequest) (*models.TipReceipt, error) {
	var receipt *models.TipReceipt
	err := e.exec(ctx, "tipEvent", call, true, func(x *execution) error {
		if err := validateReferral(x.call.Caller, req.Referrer, req.PlatformFeeBps); err != nil {
			return err
		}
		if !x.call.Value.IsPositive() {
			return status.ErrZeroTip
		}
		ev, err := e.loadTippable(x, req.EventID, true)
		if err != nil {
			return err
		}
		receipt, err = e.tip(x, ev, req, x.call.Value)
		return err
	})
	return receipt, err
}

// TipEventWithAsset pulls req.Amount of the event's external asset.
func (e *Engine) TipEventWithAsset(ctx context.Context, call Call, req TipRequest) (*models.TipReceipt, error) {
	var receipt *models.TipReceipt
	err := e.exec(ctx, "tipEventWithAsset", call, false, func(x *execution) error {
		if err := validateReferral(x.call.Caller, req.Referrer, req.PlatformFeeBps); err != nil {
			return err
		}
		if !validAmount(req.Amount) {
			return status.ErrInvalidAmount
		}
		if !req.Amount.IsPositive() {
			return status.ErrZeroTip
		}
		ev, err := e.loadTippable(x, req.EventID, false)
		if err != nil {
			return err
		}
		if receipt, err = e.tip(x, ev, req, req.Amount); err != nil {
			return err
		}
		return e.collect(x, ev.PaymentAsset, req.Amount)
	})
	return receipt, err
}

func (e *Engine) claim(x *execution, asset models.Address) (decimal.Decimal, error) {
	amount := takeAmount(x.tx, e.st.pending, assetKey{Asset: asset, Holder: x.call.Caller})
	if amount.IsZero() {
		return amount, status.ErrNoFunds
	}
	x.emit(models.FundsClaimed{Asset: asset, Recipient: x.call.Caller, Amount: amount})
	if err := e.payout(x, asset, x.call.Caller, amount); err != nil {
		return amount, err
	}
	return amount, nil
}

// ClaimFunds withdraws the caller's pending native balance.
func (e *Engine) ClaimFunds(ctx context.Context, call Call) (decimal.Decimal, error) {
	var amount decimal.Decimal
	err := e.exec(ctx, "claimFunds", call, false, func(x *execution) error {
		var err error
		amount, err = e.claim(x, models.ZeroAddress)
		return err
	})
	if err != nil {
		return decimal.Zero, err
	}
	return amount, nil
}

// ClaimAssetFunds withdraws the caller's pending balance in an external asset.
func (e *Engine) ClaimAssetFunds(ctx context.Context, call Call, asset models.Address) (decimal.Decimal, error) {
	var amount decimal.Decimal
	err := e.exec(ctx, "claimAssetFunds", call, false, func(x *execution) error {
		if asset.IsZero() {
			return status.ErrZeroAddress
		}
		var err error
		amount, err = e.claim(x, asset)
		return err
	})
	if err != nil {
		return decimal.Zero, err
	}
	return amount, nil
}

func (e *Engine) readAmount(ctx context.Context, read func() (decimal.Decimal, bool)) decimal.Decimal {
	var v decimal.Decimal
	e.view(ctx, func() {
		v, _ = read()
	})
	return v
}

func (e *Engine) PendingWithdrawal(ctx context.Context, asset, holder models.Address) decimal.Decimal {
	return e.readAmount(ctx, func() (decimal.Decimal, bool) {
		return e.st.pending.Get(nil, assetKey{Asset: asset, Holder: holder})
	})
}

func (e *Engine) ReferrerEarnings(ctx context.Context, asset, referrer models.Address) decimal.Decimal {
	return e.readAmount(ctx, func() (decimal.Decimal, bool) {
		return e.st.referrals.Get(nil, assetKey{Asset: asset, Holder: referrer})
	})
}

// RetainedResidue is the rounding leftover of split distribution held in
// custody for asset. It is owned by nobody and cannot be withdrawn.
func (e *Engine) RetainedResidue(ctx context.Context, asset models.Address) decimal.Decimal {
	return e.readAmount(ctx, func() (decimal.Decimal, bool) {
		return e.st.residue.Get(nil, asset)
	})
}

func (e *Engine) TicketPayment(ctx context.Context, eventID uint64, user models.Address) decimal.Decimal {
	return e.readAmount(ctx, func() (decimal.Decimal, bool) {
		return e.st.ticketPayments.Get(nil, paymentKey{EventID: eventID, User: user})
	})
}

func (e *Engine) TipPayment(ctx context.Context, eventID uint64, user models.Address) decimal.Decimal {
	return e.readAmount(ctx, func() (decimal.Decimal, bool) {
		return e.st.tipPayments.Get(nil, paymentKey{EventID: eventID, User: user})
	})
}
