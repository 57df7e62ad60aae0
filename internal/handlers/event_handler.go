package handlers

import (
	"net/http"

	"github.com/labstack/echo/v5"
	"github.com/shopspring/decimal"

	"ticket-ledger/internal/services"
	"ticket-ledger/models"
	"ticket-ledger/security"
)

type CreateEventRequest struct {
	models.EventParams
	Tiers  []models.TicketTier   `json:"tiers"`
	Splits []models.PaymentSplit `json:"splits"`
}

func (h *Handler) CreateEvent(c echo.Context) error {
	var req CreateEventRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request")
	}
	call, err := callWith(c, decimal.Zero)
	if err != nil {
		return badRequest(c, "missing or invalid "+security.CallerHeader)
	}

	id, err := h.engine.CreateEvent(c.Request().Context(), call, req.EventParams, req.Tiers, req.Splits)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]any{
		"event_id":  id,
		"organizer": call.Caller,
	})
}

type EventResponse struct {
	Event        models.Event          `json:"event"`
	Tiers        []models.TicketTier   `json:"tiers"`
	Splits       []models.PaymentSplit `json:"splits"`
	Cancellation *models.Cancellation  `json:"cancellation,omitempty"`
}

func (h *Handler) GetEvent(c echo.Context) error {
	id, err := eventID(c)
	if err != nil {
		return badRequest(c, "Invalid event id")
	}
	ctx := c.Request().Context()

	ev, err := h.engine.Event(ctx, id)
	if err != nil {
		return apiError(c, err)
	}
	tiers, err := h.engine.Tiers(ctx, id)
	if err != nil {
		return apiError(c, err)
	}
	splits, err := h.engine.PaymentSplits(ctx, id)
	if err != nil {
		return apiError(c, err)
	}
	resp := EventResponse{Event: ev, Tiers: tiers, Splits: splits}
	if cancellation, ok := h.engine.Cancellation(ctx, id); ok {
		resp.Cancellation = &cancellation
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) CancelEvent(c echo.Context) error {
	id, err := eventID(c)
	if err != nil {
		return badRequest(c, "Invalid event id")
	}
	call, err := callWith(c, decimal.Zero)
	if err != nil {
		return badRequest(c, "missing or invalid "+security.CallerHeader)
	}
	if err := h.engine.CancelEvent(c.Request().Context(), call, id); err != nil {
		return apiError(c, err)
	}
	cancellation, _ := h.engine.Cancellation(c.Request().Context(), id)
	return c.JSON(http.StatusOK, cancellation)
}

type InvitesRequest struct {
	Addresses []models.Address `json:"addresses"`
	Allowed   bool             `json:"allowed"`
}

func (h *Handler) SetInvites(c echo.Context) error {
	id, err := eventID(c)
	if err != nil {
		return badRequest(c, "Invalid event id")
	}
	var req InvitesRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request")
	}
	call, err := callWith(c, decimal.Zero)
	if err != nil {
		return badRequest(c, "missing or invalid "+security.CallerHeader)
	}
	if err := h.engine.SetInvites(c.Request().Context(), call, id, req.Addresses, req.Allowed); err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"event_id": id,
		"count":    len(req.Addresses),
		"allowed":  req.Allowed,
	})
}

func (h *Handler) GetInvite(c echo.Context) error {
	id, err := eventID(c)
	if err != nil {
		return badRequest(c, "Invalid event id")
	}
	who, err := models.ParseAddress(c.PathParam("address"))
	if err != nil {
		return badRequest(c, "Invalid address")
	}
	return c.JSON(http.StatusOK, map[string]any{
		"event_id": id,
		"address":  who,
		"invited":  h.engine.IsInvited(c.Request().Context(), id, who),
	})
}

type TipRequest struct {
	Value          decimal.Decimal `json:"value"`
	Referrer       models.Address  `json:"referrer"`
	PlatformFeeBps uint32          `json:"platform_fee_bps"`
}

// Tip pays the event in its own asset: attached value for native events,
// an allowance pull of the same amount otherwise.
func (h *Handler) Tip(c echo.Context) error {
	id, err := eventID(c)
	if err != nil {
		return badRequest(c, "Invalid event id")
	}
	var req TipRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request")
	}
	ctx := c.Request().Context()
	ev, err := h.engine.Event(ctx, id)
	if err != nil {
		return apiError(c, err)
	}

	tip := services.TipRequest{EventID: id, Referrer: req.Referrer, PlatformFeeBps: req.PlatformFeeBps}
	var receipt *models.TipReceipt
	if ev.UsesNativeAsset() {
		call, err := callWith(c, req.Value)
		if err != nil {
			return badRequest(c, "missing or invalid "+security.CallerHeader)
		}
		receipt, err = h.engine.TipEvent(ctx, call, tip)
		if err != nil {
			return apiError(c, err)
		}
	} else {
		call, err := callWith(c, decimal.Zero)
		if err != nil {
			return badRequest(c, "missing or invalid "+security.CallerHeader)
		}
		tip.Amount = req.Value
		receipt, err = h.engine.TipEventWithAsset(ctx, call, tip)
		if err != nil {
			return apiError(c, err)
		}
	}
	return c.JSON(http.StatusOK, receipt)
}

func (h *Handler) CheckIn(c echo.Context) error {
	id, err := eventID(c)
	if err != nil {
		return badRequest(c, "Invalid event id")
	}
	var req struct {
		TicketID models.TokenID `json:"ticket_id"`
		Attendee models.Address `json:"attendee"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request")
	}
	call, err := callWith(c, decimal.Zero)
	if err != nil {
		return badRequest(c, "missing or invalid "+security.CallerHeader)
	}
	badge, err := h.engine.CheckIn(c.Request().Context(), call, id, req.TicketID, req.Attendee)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"event_id":  id,
		"ticket_id": req.TicketID,
		"badge_id":  badge,
		"attendee":  req.Attendee,
	})
}
