package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Topics of the append-only domain event stream.
const (
	TopicEventCreated         = "event-created"
	TopicTicketPurchased      = "ticket-purchased"
	TopicEventTipped          = "event-tipped"
	TopicEventCancelled       = "event-cancelled"
	TopicRefundClaimed        = "refund-claimed"
	TopicBalanceTransfer      = "balance-transfer"
	TopicPaymentAllocated     = "payment-allocated"
	TopicPlatformFeeAllocated = "platform-fee-allocated"
	TopicFundsClaimed         = "funds-claimed"
	TopicApproval             = "approval"
	TopicOperatorSet          = "operator-set"
	TopicProtocolFeeUpdated   = "protocol-fee-updated"
	TopicFeeRecipientUpdated  = "fee-recipient-updated"
	TopicFeeAdminUpdated      = "fee-admin-updated"
	TopicRefundsSwept         = "refunds-swept"
	TopicAttendanceRecorded   = "attendance-recorded"
	TopicInvitesUpdated       = "invites-updated"
)

type DomainEvent interface {
	Topic() string
}

// Envelope is a committed domain event with its position in the log.
type Envelope struct {
	Seq   uint64      `json:"seq"`
	Topic string      `json:"topic"`
	At    time.Time   `json:"at"`
	Event DomainEvent `json:"event"`
}

// Audience lists the addresses a realtime notification for the event should reach.
func (e Envelope) Audience() []Address {
	switch ev := e.Event.(type) {
	case EventCreated:
		return []Address{ev.Organizer}
	case TicketPurchased:
		return []Address{ev.Buyer}
	case EventTipped:
		return []Address{ev.Tipper}
	case CancellationRecorded:
		return []Address{ev.Organizer}
	case RefundClaimed:
		return []Address{ev.User}
	case FundsClaimed:
		return []Address{ev.Recipient}
	case PaymentAllocated:
		return []Address{ev.Recipient}
	case PlatformFeeAllocated:
		return []Address{ev.Referrer}
	case AttendanceRecorded:
		return []Address{ev.Attendee}
	case BalanceTransfer:
		if ev.From.IsZero() {
			return []Address{ev.To}
		}
		return []Address{ev.From, ev.To}
	}
	return nil
}

type EventCreated struct {
	EventID   uint64    `json:"event_id"`
	Organizer Address   `json:"organizer"`
	StartTime time.Time `json:"start_time"`
}

func (EventCreated) Topic() string { return TopicEventCreated }

type TicketPurchased struct {
	EventID    uint64          `json:"event_id"`
	TierID     uint32          `json:"tier_id"`
	Buyer      Address         `json:"buyer"`
	Quantity   uint32          `json:"quantity"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

func (TicketPurchased) Topic() string { return TopicTicketPurchased }

type EventTipped struct {
	EventID uint64          `json:"event_id"`
	Tipper  Address         `json:"tipper"`
	Amount  decimal.Decimal `json:"amount"`
}

func (EventTipped) Topic() string { return TopicEventTipped }

type CancellationRecorded struct {
	EventID   uint64    `json:"event_id"`
	Organizer Address   `json:"organizer"`
	Timestamp time.Time `json:"timestamp"`
}

func (CancellationRecorded) Topic() string { return TopicEventCancelled }

type RefundClaimed struct {
	EventID uint64          `json:"event_id"`
	User    Address         `json:"user"`
	Amount  decimal.Decimal `json:"amount"`
	Kind    RefundKind      `json:"kind"`
}

func (RefundClaimed) Topic() string { return TopicRefundClaimed }

type BalanceTransfer struct {
	Operator Address `json:"operator"`
	From     Address `json:"from"`
	To       Address `json:"to"`
	TokenID  TokenID `json:"token_id"`
	Amount   uint64  `json:"amount"`
}

func (BalanceTransfer) Topic() string { return TopicBalanceTransfer }

type PaymentAllocated struct {
	EventID   uint64          `json:"event_id"`
	Recipient Address         `json:"recipient"`
	Amount    decimal.Decimal `json:"amount"`
}

func (PaymentAllocated) Topic() string { return TopicPaymentAllocated }

type PlatformFeeAllocated struct {
	EventID  uint64          `json:"event_id"`
	Referrer Address         `json:"referrer"`
	Amount   decimal.Decimal `json:"amount"`
	Bps      uint32          `json:"bps"`
}

func (PlatformFeeAllocated) Topic() string { return TopicPlatformFeeAllocated }

type FundsClaimed struct {
	Asset     Address         `json:"asset"`
	Recipient Address         `json:"recipient"`
	Amount    decimal.Decimal `json:"amount"`
}

func (FundsClaimed) Topic() string { return TopicFundsClaimed }

type Approval struct {
	Owner   Address `json:"owner"`
	Spender Address `json:"spender"`
	TokenID TokenID `json:"token_id"`
	Amount  uint64  `json:"amount"`
}

func (Approval) Topic() string { return TopicApproval }

type OperatorSet struct {
	Owner    Address `json:"owner"`
	Operator Address `json:"operator"`
	Approved bool    `json:"approved"`
}

func (OperatorSet) Topic() string { return TopicOperatorSet }

type ProtocolFeeUpdated struct {
	OldBps uint32 `json:"old_bps"`
	NewBps uint32 `json:"new_bps"`
}

func (ProtocolFeeUpdated) Topic() string { return TopicProtocolFeeUpdated }

type FeeRecipientUpdated struct {
	Old Address `json:"old"`
	New Address `json:"new"`
}

func (FeeRecipientUpdated) Topic() string { return TopicFeeRecipientUpdated }

type FeeAdminUpdated struct {
	Old Address `json:"old"`
	New Address `json:"new"`
}

func (FeeAdminUpdated) Topic() string { return TopicFeeAdminUpdated }

type RefundsSwept struct {
	EventID   uint64          `json:"event_id"`
	Recipient Address         `json:"recipient"`
	Amount    decimal.Decimal `json:"amount"`
	Users     int             `json:"users"`
}

func (RefundsSwept) Topic() string { return TopicRefundsSwept }

type AttendanceRecorded struct {
	EventID  uint64  `json:"event_id"`
	Attendee Address `json:"attendee"`
	TicketID TokenID `json:"ticket_id"`
	BadgeID  TokenID `json:"badge_id"`
}

func (AttendanceRecorded) Topic() string { return TopicAttendanceRecorded }

type InvitesUpdated struct {
	EventID uint64 `json:"event_id"`
	Count   int    `json:"count"`
	Allowed bool   `json:"allowed"`
}

func (InvitesUpdated) Topic() string { return TopicInvitesUpdated }
