package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Visibility uint8

const (
	VisibilityPublic Visibility = iota
	VisibilityPrivate
	VisibilityInviteOnly
)

var visibilityNames = map[Visibility]string{
	VisibilityPublic:     "PUBLIC",
	VisibilityPrivate:    "PRIVATE",
	VisibilityInviteOnly: "INVITE_ONLY",
}

func (v Visibility) String() string {
	if name, ok := visibilityNames[v]; ok {
		return name
	}
	return fmt.Sprintf("Visibility(%d)", uint8(v))
}

func (v Visibility) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

func (v *Visibility) UnmarshalText(text []byte) error {
	for k, name := range visibilityNames {
		if name == string(text) {
			*v = k
			return nil
		}
	}
	return fmt.Errorf("unknown visibility %q", text)
}

type EventStatus uint8

const (
	EventActive EventStatus = iota
	EventCancelled
	// EventCompleted is reserved. Nothing in the engine transitions to it.
	EventCompleted
)

var statusNames = map[EventStatus]string{
	EventActive:    "ACTIVE",
	EventCancelled: "CANCELLED",
	EventCompleted: "COMPLETED",
}

func (s EventStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("EventStatus(%d)", uint8(s))
}

func (s EventStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *EventStatus) UnmarshalText(text []byte) error {
	for k, name := range statusNames {
		if name == string(text) {
			*s = k
			return nil
		}
	}
	return fmt.Errorf("unknown event status %q", text)
}

type Event struct {
	ID           uint64          `json:"id"`
	Organizer    Address         `json:"organizer"`
	Name         string          `json:"name"`
	BasePrice    decimal.Decimal `json:"base_price"`
	StartTime    time.Time       `json:"start_time"`
	EndTime      time.Time       `json:"end_time"`
	Capacity     uint64          `json:"capacity"`
	Visibility   Visibility      `json:"visibility"`
	Status       EventStatus     `json:"status"`
	PaymentAsset Address         `json:"payment_asset"` // zero address = native
	CreatedAt    time.Time       `json:"created_at"`
}

// UsesNativeAsset reports whether tickets and tips are paid in the native asset.
func (e Event) UsesNativeAsset() bool {
	return e.PaymentAsset.IsZero()
}

type EventParams struct {
	Name         string          `json:"name"`
	BasePrice    decimal.Decimal `json:"base_price"`
	StartTime    time.Time       `json:"start_time"`
	EndTime      time.Time       `json:"end_time"`
	Capacity     uint64          `json:"capacity"`
	Visibility   Visibility      `json:"visibility"`
	PaymentAsset Address         `json:"payment_asset"`
}

type TicketTier struct {
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	MaxSupply uint64          `json:"max_supply"`
	Sold      uint64          `json:"sold"` // monotonic
	SaleStart time.Time       `json:"sale_start"`
	SaleEnd   time.Time       `json:"sale_end"`
}

// Remaining is the number of tickets still purchasable in the tier.
func (t TicketTier) Remaining() uint64 {
	if t.Sold >= t.MaxSupply {
		return 0
	}
	return t.MaxSupply - t.Sold
}

// OnSale reports whether at lies inside the inclusive sale window.
func (t TicketTier) OnSale(at time.Time) bool {
	return !at.Before(t.SaleStart) && !at.After(t.SaleEnd)
}

type Cancellation struct {
	EventID     uint64    `json:"event_id"`
	CancelledAt time.Time `json:"cancelled_at"`
	Deadline    time.Time `json:"deadline"`
}
