package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"ticket-ledger/internal/status"
	"ticket-ledger/internal/store"
	"ticket-ledger/models"
)

const RefundClaimWindow = 90 * 24 * time.Hour

// CancelEvent moves an ACTIVE event to CANCELLED and opens the refund window.
// Only the organizer may cancel, and only before the event starts.
func (e *Engine) CancelEvent(ctx context.Context, call Call, eventID uint64) error {
	return e.exec(ctx, "cancelEvent", call, false, func(x *execution) error {
		ev, err := e.loadEvent(x, eventID)
		if err != nil {
			return err
		}
		if err := e.requireOrganizer(x, ev); err != nil {
			return err
		}
		switch ev.Status {
		case models.EventActive:
		case models.EventCancelled:
			return status.ErrAlreadyCancelled
		default:
			return status.ErrEventNotActive
		}
		if !x.at.Before(ev.StartTime) {
			return status.ErrEventStarted
		}

		ev.Status = models.EventCancelled
		e.st.events.Put(x.tx, eventID, ev)
		e.st.cancellations.Put(x.tx, eventID, models.Cancellation{
			EventID:     eventID,
			CancelledAt: x.at,
			Deadline:    x.at.Add(RefundClaimWindow),
		})
		x.emit(models.CancellationRecorded{EventID: eventID, Organizer: ev.Organizer, Timestamp: x.at})
		return nil
	})
}

func (e *Engine) refundable(x *execution, eventID uint64) (models.Event, models.Cancellation, error) {
	ev, err := e.loadEvent(x, eventID)
	if err != nil {
		return ev, models.Cancellation{}, err
	}
	c, ok := e.st.cancellations.Get(x.tx, eventID)
	if !ok {
		return ev, c, status.ErrNotCancelled
	}
	return ev, c, nil
}

func (e *Engine) claimRefund(ctx context.Context, op string, call Call, eventID uint64, kind models.RefundKind) (decimal.Decimal, error) {
	accumulator := e.st.ticketPayments
	if kind == models.RefundTip {
		accumulator = e.st.tipPayments
	}

	var amount decimal.Decimal
	err := e.exec(ctx, op, call, false, func(x *execution) error {
		ev, c, err := e.refundable(x, eventID)
		if err != nil {
			return err
		}
		if x.at.After(c.Deadline) {
			return status.ErrRefundExpired
		}
		amount = takeAmount(x.tx, accumulator, paymentKey{EventID: eventID, User: x.call.Caller})
		if amount.IsZero() {
			return status.ErrNoRefund
		}
		x.emit(models.RefundClaimed{EventID: eventID, User: x.call.Caller, Amount: amount, Kind: kind})
		return e.payout(x, ev.PaymentAsset, x.call.Caller, amount)
	})
	if err != nil {
		return decimal.Zero, err
	}
	return amount, nil
}

// ClaimTicketRefund returns the caller's ticket payments for a cancelled event.
func (e *Engine) ClaimTicketRefund(ctx context.Context, call Call, eventID uint64) (decimal.Decimal, error) {
	return e.claimRefund(ctx, "claimTicketRefund", call, eventID, models.RefundTicket)
}

// ClaimTipRefund returns the caller's tips for a cancelled event.
func (e *Engine) ClaimTipRefund(ctx context.Context, call Call, eventID uint64) (decimal.Decimal, error) {
	return e.claimRefund(ctx, "claimTipRefund", call, eventID, models.RefundTip)
}

// SweepExpiredRefunds zeroes the unclaimed accumulators of users once the
// refund window has closed and credits the total to the fee recipient.
func (e *Engine) SweepExpiredRefunds(ctx context.Context, call Call, eventID uint64, users []models.Address) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := e.exec(ctx, "sweepExpiredRefunds", call, false, func(x *execution) error {
		if err := e.requireAdmin(x); err != nil {
			return err
		}
		ev, c, err := e.refundable(x, eventID)
		if err != nil {
			return err
		}
		if !x.at.After(c.Deadline) {
			return status.ErrRefundWindowOpen
		}

		total = decimal.Zero
		for _, u := range users {
			k := paymentKey{EventID: eventID, User: u}
			total = total.Add(takeAmount(x.tx, e.st.ticketPayments, k))
			total = total.Add(takeAmount(x.tx, e.st.tipPayments, k))
		}

		fees, _ := e.st.fees.Get(x.tx, struct{}{})
		if total.IsPositive() {
			addAmount(x.tx, e.st.pending, assetKey{Asset: ev.PaymentAsset, Holder: fees.FeeRecipient}, total)
		}
		x.emit(models.RefundsSwept{EventID: eventID, Recipient: fees.FeeRecipient, Amount: total, Users: len(users)})
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

func (e *Engine) Cancellation(ctx context.Context, eventID uint64) (models.Cancellation, bool) {
	var (
		c  models.Cancellation
		ok bool
	)
	e.view(ctx, func() {
		c, ok = e.st.cancellations.Get(nil, eventID)
	})
	return c, ok
}

// unclaimed sums the open refund accumulators of an event.
func unclaimed(t *store.Table[paymentKey, decimal.Decimal], eventID uint64) decimal.Decimal {
	sum := decimal.Zero
	t.Range(func(k paymentKey, v decimal.Decimal) bool {
		if k.EventID == eventID {
			sum = sum.Add(v)
		}
		return true
	})
	return sum
}

// OutstandingRefunds is the total still claimable for a cancelled event.
func (e *Engine) OutstandingRefunds(ctx context.Context, eventID uint64) decimal.Decimal {
	var sum decimal.Decimal
	e.view(ctx, func() {
		if _, ok := e.st.cancellations.Get(nil, eventID); !ok {
			sum = decimal.Zero
			return
		}
		sum = unclaimed(e.st.ticketPayments, eventID).Add(unclaimed(e.st.tipPayments, eventID))
	})
	return sum
}
