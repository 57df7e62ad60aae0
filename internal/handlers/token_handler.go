package handlers

import (
	"net/http"

	"github.com/labstack/echo/v5"
	"github.com/shopspring/decimal"

	"ticket-ledger/models"
	"ticket-ledger/security"
)

func (h *Handler) GetToken(c echo.Context) error {
	id, err := models.ParseTokenID(c.PathParam("id"))
	if err != nil {
		return badRequest(c, "Invalid token id")
	}
	ctx := c.Request().Context()
	parts := id.Unpack()
	return c.JSON(http.StatusOK, map[string]any{
		"token_id":     id,
		"category":     parts.Category.String(),
		"event_id":     parts.EventID,
		"tier_id":      parts.TierID,
		"serial":       parts.Serial,
		"transferable": parts.Category.Transferable(),
		"total_supply": h.engine.TotalSupply(ctx, id),
		"checked_in":   h.engine.CheckedIn(ctx, id),
	})
}

type TransferRequest struct {
	From    models.Address `json:"from"`
	To      models.Address `json:"to"`
	TokenID models.TokenID `json:"token_id"`
	Amount  uint64         `json:"amount"`
}

func (h *Handler) TransferToken(c echo.Context) error {
	var req TransferRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request")
	}
	call, err := callWith(c, decimal.Zero)
	if err != nil {
		return badRequest(c, "missing or invalid "+security.CallerHeader)
	}
	if req.From.IsZero() {
		req.From = call.Caller
	}
	if err := h.engine.SafeTransferFrom(c.Request().Context(), call, req.From, req.To, req.TokenID, req.Amount); err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusOK, req)
}

type ApproveRequest struct {
	Spender models.Address `json:"spender"`
	TokenID models.TokenID `json:"token_id"`
	Amount  uint64         `json:"amount"`
}

func (h *Handler) ApproveToken(c echo.Context) error {
	var req ApproveRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request")
	}
	call, err := callWith(c, decimal.Zero)
	if err != nil {
		return badRequest(c, "missing or invalid "+security.CallerHeader)
	}
	if err := h.engine.Approve(c.Request().Context(), call, req.Spender, req.TokenID, req.Amount); err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"owner":    call.Caller,
		"spender":  req.Spender,
		"token_id": req.TokenID,
		"amount":   req.Amount,
	})
}

type OperatorRequest struct {
	Operator models.Address `json:"operator"`
	Approved bool           `json:"approved"`
}

func (h *Handler) SetOperator(c echo.Context) error {
	var req OperatorRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request")
	}
	call, err := callWith(c, decimal.Zero)
	if err != nil {
		return badRequest(c, "missing or invalid "+security.CallerHeader)
	}
	if err := h.engine.SetOperator(c.Request().Context(), call, req.Operator, req.Approved); err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"owner":    call.Caller,
		"operator": req.Operator,
		"approved": req.Approved,
	})
}

// ListEvents pages through the committed event log by sequence number.
func (h *Handler) ListEvents(c echo.Context) error {
	after := uint64(queryInt(c, "after", 0))
	limit := int(queryInt(c, "limit", 100))
	events := h.engine.Events(c.Request().Context(), after, limit)
	return c.JSON(http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}

func (h *Handler) RecentStream(c echo.Context) error {
	if h.stream == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"error":   "stream_disabled",
			"message": "event stream is not configured",
		})
	}
	entries, err := h.stream.Recent(c.Request().Context(), queryInt(c, "count", 50))
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}
