package services

import (
	"context"

	"ticket-ledger/internal/status"
	"ticket-ledger/models"
)

// CheckIn records that attendee used ticketID at the event and mints them a
// soulbound attendance badge carrying the ticket's tier and serial. Each
// ticket serial checks in once, whoever holds it later.
func (e *Engine) CheckIn(ctx context.Context, call Call, eventID uint64, ticketID models.TokenID, attendee models.Address) (models.TokenID, error) {
	var badge models.TokenID
	err := e.exec(ctx, "checkIn", call, false, func(x *execution) error {
		ev, err := e.loadEvent(x, eventID)
		if err != nil {
			return err
		}
		if err := e.requireOrganizer(x, ev); err != nil {
			return err
		}
		if ev.Status != models.EventActive {
			return status.ErrEventNotActive
		}
		if ticketID.Category() != models.CategoryEventTicket {
			return status.ErrNotATicket
		}
		if !ticketID.BelongsTo(eventID) {
			return status.ErrTicketNotForEvent
		}
		if bal, _ := e.st.balances.Get(x.tx, holdingKey{Holder: attendee, TokenID: ticketID}); bal == 0 {
			return status.ErrInsufficientBalance
		}
		if done, _ := e.st.checkIns.Get(x.tx, ticketID); done {
			return status.ErrAlreadyCheckedIn
		}

		e.st.checkIns.Put(x.tx, ticketID, true)
		badge = models.BadgeID(eventID, ticketID.TierID(), ticketID.Serial())
		if err := e.mint(x, attendee, badge, 1); err != nil {
			return err
		}
		x.emit(models.AttendanceRecorded{EventID: eventID, Attendee: attendee, TicketID: ticketID, BadgeID: badge})
		return nil
	})
	if err != nil {
		return models.TokenID{}, err
	}
	return badge, nil
}

func (e *Engine) CheckedIn(ctx context.Context, ticketID models.TokenID) bool {
	var done bool
	e.view(ctx, func() {
		done, _ = e.st.checkIns.Get(nil, ticketID)
	})
	return done
}
