package models

import (
	"github.com/shopspring/decimal"
)

const BasisPoints = 10000

type PaymentSplit struct {
	Recipient Address `json:"recipient"`
	Bps       uint32  `json:"bps"`
}

type RefundKind uint8

const (
	RefundTicket RefundKind = iota
	RefundTip
)

func (k RefundKind) String() string {
	if k == RefundTip {
		return "TIP"
	}
	return "TICKET"
}

func (k RefundKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Allocation is one credit queued by the fee cascade.
type Allocation struct {
	Recipient Address         `json:"recipient"`
	Amount    decimal.Decimal `json:"amount"`
}

// Distribution is the outcome of running a gross payment through the fee cascade.
type Distribution struct {
	Gross       decimal.Decimal `json:"gross"`
	PlatformFee decimal.Decimal `json:"platform_fee"`
	ProtocolFee decimal.Decimal `json:"protocol_fee"`
	Net         decimal.Decimal `json:"net"`
	Splits      []Allocation    `json:"splits"`
	Residue     decimal.Decimal `json:"residue"` // retained, owned by nobody
}

type PurchaseReceipt struct {
	EventID      uint64          `json:"event_id"`
	TierID       uint32          `json:"tier_id"`
	Buyer        Address         `json:"buyer"`
	Quantity     uint32          `json:"quantity"`
	TotalPrice   decimal.Decimal `json:"total_price"`
	Refunded     decimal.Decimal `json:"refunded"`
	TokenIDs     []TokenID       `json:"token_ids"`
	Distribution Distribution    `json:"distribution"`
}

type TipReceipt struct {
	EventID      uint64          `json:"event_id"`
	Tipper       Address         `json:"tipper"`
	Amount       decimal.Decimal `json:"amount"`
	Distribution Distribution    `json:"distribution"`
}

// LedgerStats is a point-in-time summary used by monitoring.
type LedgerStats struct {
	Events         uint64 `json:"events"`
	CancelledCount uint64 `json:"cancelled_count"`
	TicketsSold    uint64 `json:"tickets_sold"`
	LogLength      uint64 `json:"log_length"`
}
