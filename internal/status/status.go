package status

import (
	"errors"
	"net/http"
)

type Kind uint8

const (
	KindUnknown Kind = iota
	KindValidation
	KindState
	KindAuth
	KindPayment
	KindReentrancy
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindState:
		return "state"
	case KindAuth:
		return "auth"
	case KindPayment:
		return "payment"
	case KindReentrancy:
		return "reentrancy"
	}
	return "unknown"
}

// HTTPStatus maps the kind onto the response code used by the API.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindState:
		return http.StatusConflict
	case KindAuth:
		return http.StatusForbidden
	case KindPayment:
		return http.StatusPaymentRequired
	case KindReentrancy:
		return http.StatusLocked
	}
	return http.StatusInternalServerError
}

// Error is a ledger failure with a stable code. Sentinels are compared by
// identity, so wrap them with fmt.Errorf("op: %w") to add context.
type Error struct {
	Kind Kind
	Code string
	Msg  string
}

func (e *Error) Error() string {
	return e.Kind.String() + ": " + e.Msg
}

func newErr(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Msg: msg}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// CodeOf returns the stable code of the first *Error in err's chain.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "internal"
}

var (
	ErrZeroAddress         = newErr(KindValidation, "zero_address", "zero address")
	ErrStartInPast         = newErr(KindValidation, "start_in_past", "start time must be in the future")
	ErrInvalidTimeWindow   = newErr(KindValidation, "invalid_time_window", "end time must be after start time")
	ErrNoTiers             = newErr(KindValidation, "no_tiers", "at least one tier is required")
	ErrZeroCapacity        = newErr(KindValidation, "zero_capacity", "capacity must be positive")
	ErrZeroMaxSupply       = newErr(KindValidation, "zero_max_supply", "tier max supply must be positive")
	ErrInvalidSaleWindow   = newErr(KindValidation, "invalid_sale_window", "tier sale start after sale end")
	ErrInvalidAmount       = newErr(KindValidation, "invalid_amount", "amount must be a non-negative integer")
	ErrEmptySplits         = newErr(KindValidation, "empty_splits", "payment splits are empty")
	ErrTooManySplits       = newErr(KindValidation, "too_many_splits", "too many payment splits")
	ErrDuplicateRecipient  = newErr(KindValidation, "duplicate_recipient", "duplicate split recipient")
	ErrBpsMismatch         = newErr(KindValidation, "bps_mismatch", "split basis points must sum to 10000")
	ErrInvalidQuantity     = newErr(KindValidation, "invalid_quantity", "quantity out of range")
	ErrPlatformFeeTooHigh  = newErr(KindValidation, "platform_fee_too_high", "platform fee above maximum")
	ErrProtocolFeeTooHigh  = newErr(KindValidation, "protocol_fee_too_high", "protocol fee above maximum")
	ErrInvalidReferrer     = newErr(KindValidation, "invalid_referrer", "referrer must be non-zero and not the caller")
	ErrUnknownAsset        = newErr(KindValidation, "unknown_asset", "payment asset is not registered")
	ErrAssetMismatch       = newErr(KindValidation, "asset_mismatch", "payment variant does not match event asset")
	ErrZeroTip             = newErr(KindValidation, "zero_tip", "tip amount must be positive")
	ErrAmountOverflow      = newErr(KindValidation, "amount_overflow", "token amount overflow")
	ErrTicketNotForEvent   = newErr(KindValidation, "ticket_not_for_event", "ticket does not belong to event")
	ErrNotATicket          = newErr(KindValidation, "not_a_ticket", "token is not an event ticket")
	ErrEventNotFound       = newErr(KindState, "event_not_found", "event not found")
	ErrTierNotFound        = newErr(KindState, "tier_not_found", "tier not found")
	ErrEventNotActive      = newErr(KindState, "event_not_active", "event is not active")
	ErrSaleNotStarted      = newErr(KindState, "sale_not_started", "sale has not started")
	ErrSaleEnded           = newErr(KindState, "sale_ended", "sale has ended")
	ErrCapacityExceeded    = newErr(KindState, "capacity_exceeded", "tier sold out")
	ErrAlreadyCancelled    = newErr(KindState, "already_cancelled", "event already cancelled")
	ErrEventStarted        = newErr(KindState, "event_started", "event has already started")
	ErrNotCancelled        = newErr(KindState, "not_cancelled", "event is not cancelled")
	ErrRefundExpired       = newErr(KindState, "refund_expired", "refund window has closed")
	ErrRefundWindowOpen    = newErr(KindState, "refund_window_open", "refund window still open")
	ErrNoRefund            = newErr(KindState, "no_refund", "nothing to refund")
	ErrNoFunds             = newErr(KindState, "no_funds", "no funds to claim")
	ErrInsufficientBalance = newErr(KindState, "insufficient_balance", "insufficient token balance")
	ErrAlreadyCheckedIn    = newErr(KindState, "already_checked_in", "ticket already checked in")
	ErrSoulbound           = newErr(KindState, "soulbound", "token is soulbound")
	ErrNotOrganizer        = newErr(KindAuth, "not_organizer", "caller is not the organizer")
	ErrNotAdmin            = newErr(KindAuth, "not_admin", "caller is not the admin")
	ErrNotFeeAdmin         = newErr(KindAuth, "not_fee_admin", "caller is not the fee admin")
	ErrNotAuthorized       = newErr(KindAuth, "not_authorized", "caller may not move these tokens")
	ErrNotInvited          = newErr(KindAuth, "not_invited", "caller is not on the invite list")
	ErrInsufficientPayment = newErr(KindPayment, "insufficient_payment", "insufficient payment")
	ErrInsufficientValue   = newErr(KindPayment, "insufficient_value", "insufficient native balance")
	ErrNativeTransfer      = newErr(KindPayment, "native_transfer_failed", "native transfer failed")
	ErrAssetTransfer       = newErr(KindPayment, "asset_transfer_failed", "asset transfer failed")
	ErrUnexpectedValue     = newErr(KindPayment, "unexpected_value", "operation does not accept native value")
	ErrReentrantCall       = newErr(KindReentrancy, "reentrant_call", "reentrant call")
)
