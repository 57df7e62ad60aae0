package services

import (
	"context"

	"ticket-ledger/internal/status"
	"ticket-ledger/models"
)

// SetProtocolFee changes the protocol fee rate, bounded by MaxProtocolFeeBps.
func (e *Engine) SetProtocolFee(ctx context.Context, call Call, bps uint32) error {
	return e.exec(ctx, "setProtocolFee", call, false, func(x *execution) error {
		if err := e.requireFeeAdmin(x); err != nil {
			return err
		}
		if bps > MaxProtocolFeeBps {
			return status.ErrProtocolFeeTooHigh
		}
		fees, _ := e.st.fees.Get(x.tx, struct{}{})
		old := fees.ProtocolFeeBps
		fees.ProtocolFeeBps = bps
		e.st.fees.Put(x.tx, struct{}{}, fees)
		x.emit(models.ProtocolFeeUpdated{OldBps: old, NewBps: bps})
		return nil
	})
}

func (e *Engine) SetFeeRecipient(ctx context.Context, call Call, recipient models.Address) error {
	return e.exec(ctx, "setFeeRecipient", call, false, func(x *execution) error {
		if err := e.requireFeeAdmin(x); err != nil {
			return err
		}
		if recipient.IsZero() {
			return status.ErrZeroAddress
		}
		fees, _ := e.st.fees.Get(x.tx, struct{}{})
		old := fees.FeeRecipient
		fees.FeeRecipient = recipient
		e.st.fees.Put(x.tx, struct{}{}, fees)
		x.emit(models.FeeRecipientUpdated{Old: old, New: recipient})
		return nil
	})
}

// SetFeeAdmin hands the fee administrator role to a new address.
func (e *Engine) SetFeeAdmin(ctx context.Context, call Call, admin models.Address) error {
	return e.exec(ctx, "setFeeAdmin", call, false, func(x *execution) error {
		if err := e.requireFeeAdmin(x); err != nil {
			return err
		}
		if admin.IsZero() {
			return status.ErrZeroAddress
		}
		fees, _ := e.st.fees.Get(x.tx, struct{}{})
		old := fees.FeeAdmin
		fees.FeeAdmin = admin
		e.st.fees.Put(x.tx, struct{}{}, fees)
		x.emit(models.FeeAdminUpdated{Old: old, New: admin})
		return nil
	})
}

type FeeSettings struct {
	ProtocolFeeBps uint32         `json:"protocol_fee_bps"`
	FeeRecipient   models.Address `json:"fee_recipient"`
	FeeAdmin       models.Address `json:"fee_admin"`
	Admin          models.Address `json:"admin"`
}

func (e *Engine) FeeSettings(ctx context.Context) FeeSettings {
	var fees feeConfig
	e.view(ctx, func() {
		fees, _ = e.st.fees.Get(nil, struct{}{})
	})
	return FeeSettings{
		ProtocolFeeBps: fees.ProtocolFeeBps,
		FeeRecipient:   fees.FeeRecipient,
		FeeAdmin:       fees.FeeAdmin,
		Admin:          e.admin,
	}
}
