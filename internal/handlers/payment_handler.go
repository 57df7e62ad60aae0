package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v5"
	"github.com/shopspring/decimal"

	"ticket-ledger/internal/services"
	"ticket-ledger/models"
	"ticket-ledger/security"
)

type PurchaseRequest struct {
	TierID         uint32          `json:"tier_id"`
	Quantity       uint32          `json:"quantity"`
	Referrer       models.Address  `json:"referrer"`
	PlatformFeeBps uint32          `json:"platform_fee_bps"`
	Value          decimal.Decimal `json:"value"` // native events only
}

// Purchase sells tickets in the event's payment asset. Native events are
// paid from value and refunded any overpayment; asset events are pulled
// through the buyer's allowance.
func (h *Handler) Purchase(c echo.Context) error {
	id, err := eventID(c)
	if err != nil {
		return badRequest(c, "Invalid event id")
	}
	var req PurchaseRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request")
	}
	ctx := c.Request().Context()
	ev, err := h.engine.Event(ctx, id)
	if err != nil {
		return apiError(c, err)
	}

	value := decimal.Zero
	if ev.UsesNativeAsset() {
		value = req.Value
	}
	call, err := callWith(c, value)
	if err != nil {
		return badRequest(c, "missing or invalid "+security.CallerHeader)
	}

	purchase := services.PurchaseRequest{
		EventID:        id,
		TierID:         req.TierID,
		Quantity:       req.Quantity,
		Referrer:       req.Referrer,
		PlatformFeeBps: req.PlatformFeeBps,
	}
	var receipt *models.PurchaseReceipt
	if ev.UsesNativeAsset() {
		receipt, err = h.engine.PurchaseTickets(ctx, call, purchase)
	} else {
		receipt, err = h.engine.PurchaseTicketsWithAsset(ctx, call, purchase)
	}
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusOK, receipt)
}

func (h *Handler) GetRefunds(c echo.Context) error {
	id, err := eventID(c)
	if err != nil {
		return badRequest(c, "Invalid event id")
	}
	ctx := c.Request().Context()
	if _, err := h.engine.Event(ctx, id); err != nil {
		return apiError(c, err)
	}

	resp := map[string]any{
		"event_id":    id,
		"outstanding": h.engine.OutstandingRefunds(ctx, id),
	}
	if cancellation, ok := h.engine.Cancellation(ctx, id); ok {
		resp["cancellation"] = cancellation
	}
	if raw := c.QueryParam("user"); raw != "" {
		user, err := models.ParseAddress(raw)
		if err != nil {
			return badRequest(c, "Invalid user address")
		}
		resp["ticket_payment"] = h.engine.TicketPayment(ctx, id, user)
		resp["tip_payment"] = h.engine.TipPayment(ctx, id, user)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) ClaimTicketRefund(c echo.Context) error {
	return h.claimRefund(c, h.engine.ClaimTicketRefund)
}

func (h *Handler) ClaimTipRefund(c echo.Context) error {
	return h.claimRefund(c, h.engine.ClaimTipRefund)
}

type refundFunc func(ctx context.Context, call services.Call, eventID uint64) (decimal.Decimal, error)

func (h *Handler) claimRefund(c echo.Context, claim refundFunc) error {
	id, err := eventID(c)
	if err != nil {
		return badRequest(c, "Invalid event id")
	}
	call, err := callWith(c, decimal.Zero)
	if err != nil {
		return badRequest(c, "missing or invalid "+security.CallerHeader)
	}
	amount, err := claim(c.Request().Context(), call, id)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"event_id": id,
		"user":     call.Caller,
		"amount":   amount,
	})
}

type ClaimRequest struct {
	Asset models.Address `json:"asset"` // zero address claims native funds
}

func (h *Handler) ClaimFunds(c echo.Context) error {
	var req ClaimRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request")
	}
	call, err := callWith(c, decimal.Zero)
	if err != nil {
		return badRequest(c, "missing or invalid "+security.CallerHeader)
	}

	ctx := c.Request().Context()
	var amount decimal.Decimal
	if req.Asset.IsZero() {
		amount, err = h.engine.ClaimFunds(ctx, call)
	} else {
		amount, err = h.engine.ClaimAssetFunds(ctx, call, req.Asset)
	}
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"recipient": call.Caller,
		"asset":     req.Asset,
		"amount":    amount,
	})
}

func (h *Handler) GetAccount(c echo.Context) error {
	who, err := models.ParseAddress(c.PathParam("address"))
	if err != nil {
		return badRequest(c, "Invalid address")
	}
	asset := models.ZeroAddress
	if raw := c.QueryParam("asset"); raw != "" {
		if asset, err = models.ParseAddress(raw); err != nil {
			return badRequest(c, "Invalid asset address")
		}
	}

	ctx := c.Request().Context()
	resp := map[string]any{
		"address":           who,
		"asset":             asset,
		"pending":           h.engine.PendingWithdrawal(ctx, asset, who),
		"referral_earnings": h.engine.ReferrerEarnings(ctx, asset, who),
	}
	if h.bank != nil {
		resp["native_balance"] = h.bank.BalanceOf(who)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetHoldings(c echo.Context) error {
	who, err := models.ParseAddress(c.PathParam("address"))
	if err != nil {
		return badRequest(c, "Invalid address")
	}
	ctx := c.Request().Context()

	holdings := h.engine.Holdings(ctx, who)
	tokens := make([]map[string]any, 0, len(holdings))
	for id, balance := range holdings {
		tokens = append(tokens, map[string]any{
			"token_id":   id,
			"category":   id.Category().String(),
			"event_id":   id.EventID(),
			"balance":    balance,
			"checked_in": h.engine.CheckedIn(ctx, id),
		})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"address": who,
		"tokens":  tokens,
		"count":   len(tokens),
	})
}
