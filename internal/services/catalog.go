package services

import (
	"context"

	"github.com/shopspring/decimal"

	"ticket-ledger/internal/status"
	"ticket-ledger/models"
)

func validAmount(amount decimal.Decimal) bool {
	return !amount.IsNegative() && amount.IsInteger()
}

// validateSplits requires 1..MaxPaymentSplits unique non-zero recipients
// whose basis points sum to exactly 10000.
func validateSplits(splits []models.PaymentSplit) error {
	if len(splits) == 0 {
		return status.ErrEmptySplits
	}
	if len(splits) > MaxPaymentSplits {
		return status.ErrTooManySplits
	}
	seen := make(map[models.Address]struct{}, len(splits))
	var total uint64
	for _, s := range splits {
		if s.Recipient.IsZero() {
			return status.ErrZeroAddress
		}
		if _, dup := seen[s.Recipient]; dup {
			return status.ErrDuplicateRecipient
		}
		seen[s.Recipient] = struct{}{}
		total += uint64(s.Bps)
	}
	if total != models.BasisPoints {
		return status.ErrBpsMismatch
	}
	return nil
}

func (e *Engine) validateEvent(x *execution, params models.EventParams, tiers []models.TicketTier, splits []models.PaymentSplit) error {
	if !params.StartTime.After(x.at) {
		return status.ErrStartInPast
	}
	if !params.EndTime.After(params.StartTime) {
		return status.ErrInvalidTimeWindow
	}
	if len(tiers) == 0 {
		return status.ErrNoTiers
	}
	if params.Capacity == 0 {
		return status.ErrZeroCapacity
	}
	if !validAmount(params.BasePrice) {
		return status.ErrInvalidAmount
	}
	for _, t := range tiers {
		if t.MaxSupply == 0 {
			return status.ErrZeroMaxSupply
		}
		if t.SaleStart.After(t.SaleEnd) {
			return status.ErrInvalidSaleWindow
		}
		if !validAmount(t.Price) {
			return status.ErrInvalidAmount
		}
	}
	if err := validateSplits(splits); err != nil {
		return err
	}
	if !params.PaymentAsset.IsZero() {
		if _, ok := e.assets.Lookup(params.PaymentAsset); !ok {
			return status.ErrUnknownAsset
		}
	}
	return nil
}

// CreateEvent registers a new event owned by the caller and mints the
// organizer credential.
func (e *Engine) CreateEvent(ctx context.Context, call Call, params models.EventParams, tiers []models.TicketTier, splits []models.PaymentSplit) (uint64, error) {
	var eventID uint64
	err := e.exec(ctx, "createEvent", call, false, func(x *execution) error {
		if err := e.validateEvent(x, params, tiers, splits); err != nil {
			return err
		}

		eventID = e.st.eventIDs.Next(x.tx)
		e.st.events.Put(x.tx, eventID, models.Event{
			ID:           eventID,
			Organizer:    x.call.Caller,
			Name:         params.Name,
			BasePrice:    params.BasePrice,
			StartTime:    params.StartTime,
			EndTime:      params.EndTime,
			Capacity:     params.Capacity,
			Visibility:   params.Visibility,
			Status:       models.EventActive,
			PaymentAsset: params.PaymentAsset,
			CreatedAt:    x.at,
		})
		for i, t := range tiers {
			t.Sold = 0
			e.st.tiers.Put(x.tx, tierKey{EventID: eventID, TierID: uint32(i)}, t)
		}
		e.st.tierCounts.Put(x.tx, eventID, uint32(len(tiers)))
		e.st.splits.Put(x.tx, eventID, append([]models.PaymentSplit(nil), splits...))

		if err := e.mint(x, x.call.Caller, models.OrganizerCredID(eventID), 1); err != nil {
			return err
		}
		x.emit(models.EventCreated{EventID: eventID, Organizer: x.call.Caller, StartTime: params.StartTime})
		return nil
	})
	if err != nil {
		return 0, err
	}
	return eventID, nil
}

func (e *Engine) loadEvent(x *execution, eventID uint64) (models.Event, error) {
	ev, ok := e.st.events.Get(x.tx, eventID)
	if !ok {
		return ev, status.ErrEventNotFound
	}
	return ev, nil
}

func (e *Engine) Event(ctx context.Context, eventID uint64) (models.Event, error) {
	var (
		ev models.Event
		ok bool
	)
	e.view(ctx, func() {
		ev, ok = e.st.events.Get(nil, eventID)
	})
	if !ok {
		return ev, status.ErrEventNotFound
	}
	return ev, nil
}

func (e *Engine) Tiers(ctx context.Context, eventID uint64) ([]models.TicketTier, error) {
	var (
		tiers []models.TicketTier
		ok    bool
	)
	e.view(ctx, func() {
		var n uint32
		n, ok = e.st.tierCounts.Get(nil, eventID)
		for i := uint32(0); i < n; i++ {
			t, _ := e.st.tiers.Get(nil, tierKey{EventID: eventID, TierID: i})
			tiers = append(tiers, t)
		}
	})
	if !ok {
		return nil, status.ErrEventNotFound
	}
	return tiers, nil
}

func (e *Engine) Tier(ctx context.Context, eventID uint64, tierID uint32) (models.TicketTier, error) {
	var (
		t  models.TicketTier
		ok bool
	)
	e.view(ctx, func() {
		t, ok = e.st.tiers.Get(nil, tierKey{EventID: eventID, TierID: tierID})
	})
	if !ok {
		return t, status.ErrTierNotFound
	}
	return t, nil
}

func (e *Engine) PaymentSplits(ctx context.Context, eventID uint64) ([]models.PaymentSplit, error) {
	var (
		splits []models.PaymentSplit
		ok     bool
	)
	e.view(ctx, func() {
		var stored []models.PaymentSplit
		stored, ok = e.st.splits.Get(nil, eventID)
		splits = append(splits, stored...)
	})
	if !ok {
		return nil, status.ErrEventNotFound
	}
	return splits, nil
}

func (e *Engine) EventCount(ctx context.Context) uint64 {
	var n uint64
	e.view(ctx, func() {
		n = e.st.eventIDs.Current(nil)
	})
	return n
}

// SetInvites adds or removes addresses on the event's invite list.
func (e *Engine) SetInvites(ctx context.Context, call Call, eventID uint64, addrs []models.Address, allowed bool) error {
	return e.exec(ctx, "setInvites", call, false, func(x *execution) error {
		ev, err := e.loadEvent(x, eventID)
		if err != nil {
			return err
		}
		if err := e.requireOrganizer(x, ev); err != nil {
			return err
		}
		for _, a := range addrs {
			if a.IsZero() {
				return status.ErrZeroAddress
			}
			k := paymentKey{EventID: eventID, User: a}
			if allowed {
				e.st.invites.Put(x.tx, k, true)
			} else {
				e.st.invites.Delete(x.tx, k)
			}
		}
		x.emit(models.InvitesUpdated{EventID: eventID, Count: len(addrs), Allowed: allowed})
		return nil
	})
}

func (e *Engine) invited(x *execution, eventID uint64, who models.Address) bool {
	if ok, _ := e.st.invites.Get(x.tx, paymentKey{EventID: eventID, User: who}); ok {
		return true
	}
	return e.inviteList != nil && e.inviteList.IsInvited(eventID, who)
}

func (e *Engine) IsInvited(ctx context.Context, eventID uint64, who models.Address) bool {
	var ok bool
	e.view(ctx, func() {
		ok, _ = e.st.invites.Get(nil, paymentKey{EventID: eventID, User: who})
	})
	return ok || (e.inviteList != nil && e.inviteList.IsInvited(eventID, who))
}
