package handlers

import (
	"net/http"

	"github.com/labstack/echo/v5"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"ticket-ledger/logger"
	"ticket-ledger/models"
	"ticket-ledger/security"
)

// requireAdminKey gates operator routes behind the bcrypt hashed admin key.
// The ledger still checks the caller header against its own admin roles.
func (h *Handler) requireAdminKey(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		key := c.Request().Header.Get(AdminKeyHeader)
		if len(h.adminKeyHash) == 0 || key == "" {
			return c.JSON(http.StatusForbidden, map[string]string{
				"error":   "forbidden",
				"message": "Admin access required",
			})
		}
		if err := bcrypt.CompareHashAndPassword(h.adminKeyHash, []byte(key)); err != nil {
			logger.Warnf(c.Request().Context(), "rejected admin key from %s", c.RealIP())
			return c.JSON(http.StatusForbidden, map[string]string{
				"error":   "forbidden",
				"message": "Admin access required",
			})
		}
		return next(c)
	}
}

func (h *Handler) GetFees(c echo.Context) error {
	ctx := c.Request().Context()
	return c.JSON(http.StatusOK, map[string]any{
		"settings": h.engine.FeeSettings(ctx),
		"residue":  h.engine.RetainedResidue(ctx, models.ZeroAddress),
	})
}

func (h *Handler) SetProtocolFee(c echo.Context) error {
	var req struct {
		Bps uint32 `json:"bps"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request")
	}
	call, err := callWith(c, decimal.Zero)
	if err != nil {
		return badRequest(c, "missing or invalid "+security.CallerHeader)
	}
	ctx := c.Request().Context()
	if err := h.engine.SetProtocolFee(ctx, call, req.Bps); err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusOK, h.engine.FeeSettings(ctx))
}

type AddressRequest struct {
	Address models.Address `json:"address"`
}

func (h *Handler) SetFeeRecipient(c echo.Context) error {
	var req AddressRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request")
	}
	call, err := callWith(c, decimal.Zero)
	if err != nil {
		return badRequest(c, "missing or invalid "+security.CallerHeader)
	}
	ctx := c.Request().Context()
	if err := h.engine.SetFeeRecipient(ctx, call, req.Address); err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusOK, h.engine.FeeSettings(ctx))
}

func (h *Handler) SetFeeAdmin(c echo.Context) error {
	var req AddressRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request")
	}
	call, err := callWith(c, decimal.Zero)
	if err != nil {
		return badRequest(c, "missing or invalid "+security.CallerHeader)
	}
	ctx := c.Request().Context()
	if err := h.engine.SetFeeAdmin(ctx, call, req.Address); err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusOK, h.engine.FeeSettings(ctx))
}

func (h *Handler) SweepRefunds(c echo.Context) error {
	id, err := eventID(c)
	if err != nil {
		return badRequest(c, "Invalid event id")
	}
	var req struct {
		Users []models.Address `json:"users"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request")
	}
	call, err := callWith(c, decimal.Zero)
	if err != nil {
		return badRequest(c, "missing or invalid "+security.CallerHeader)
	}
	swept, err := h.engine.SweepExpiredRefunds(c.Request().Context(), call, id, req.Users)
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"event_id": id,
		"users":    len(req.Users),
		"swept":    swept,
	})
}

func (h *Handler) Audit(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.engine.Audit(ctx); err != nil {
		logger.Errorf(ctx, "audit failed: %v", err)
		return c.JSON(http.StatusConflict, map[string]any{
			"ok":      false,
			"message": err.Error(),
		})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"ok":    true,
		"stats": h.engine.Stats(ctx),
	})
}

func (h *Handler) journalDisabled(c echo.Context) error {
	return c.JSON(http.StatusServiceUnavailable, map[string]string{
		"error":   "journal_disabled",
		"message": "event journal is not configured",
	})
}

func (h *Handler) ListJournal(c echo.Context) error {
	if h.journal == nil {
		return h.journalDisabled(c)
	}
	rows, err := h.journal.Entries(c.Request().Context(), queryInt(c, "after", 0), int(queryInt(c, "limit", 100)))
	if err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"entries": rows,
		"count":   len(rows),
	})
}

func (h *Handler) VerifyJournal(c echo.Context) error {
	if h.journal == nil {
		return h.journalDisabled(c)
	}
	n, err := h.journal.Verify(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusConflict, map[string]any{
			"ok":       false,
			"verified": n,
			"message":  err.Error(),
		})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"ok":       true,
		"verified": n,
	})
}

type FaucetRequest struct {
	Address models.Address  `json:"address"`
	Amount  decimal.Decimal `json:"amount"`
	Asset   bool            `json:"asset"` // mint the development token instead
}

// Faucet credits test funds. Only mounted in development.
func (h *Handler) Faucet(c echo.Context) error {
	var req FaucetRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request")
	}
	if req.Address.IsZero() || !req.Amount.IsPositive() {
		return badRequest(c, "address and a positive amount are required")
	}

	if req.Asset {
		if h.devAsset == nil {
			return badRequest(c, "no development asset configured")
		}
		h.devAsset.Mint(req.Address, req.Amount)
		return c.JSON(http.StatusOK, map[string]any{
			"address": req.Address,
			"balance": h.devAsset.BalanceOf(req.Address),
		})
	}

	if h.bank == nil {
		return badRequest(c, "no bank configured")
	}
	if err := h.bank.Deposit(req.Address, req.Amount); err != nil {
		return apiError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"address": req.Address,
		"balance": h.bank.BalanceOf(req.Address),
	})
}
