package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v5"
	"github.com/shopspring/decimal"

	"ticket-ledger/internal/chain"
	"ticket-ledger/internal/journal"
	"ticket-ledger/internal/notify"
	"ticket-ledger/internal/services"
	"ticket-ledger/internal/status"
	"ticket-ledger/logger"
	"ticket-ledger/models"
	"ticket-ledger/security"
	"ticket-ledger/utils"
)

const (
	AdminKeyHeader  = "X-Admin-Key"
	RequestIDHeader = "X-Request-ID"
)

// JournalReader is the read side of the persisted event journal.
type JournalReader interface {
	Entries(ctx context.Context, after int64, limit int) ([]journal.Entry, error)
	Verify(ctx context.Context) (int, error)
}

// StreamReader reads back the Redis event stream.
type StreamReader interface {
	Recent(ctx context.Context, count int64) ([]notify.StreamEntry, error)
}

type Options struct {
	Bank         *chain.Bank
	AdminKeyHash string
	Development  bool
	Journal      JournalReader
	Stream       StreamReader
	// DevAsset is minted by the faucet in development.
	DevAsset *chain.MemoryToken
}

type Handler struct {
	engine       *services.Engine
	bank         *chain.Bank
	adminKeyHash []byte
	development  bool
	journal      JournalReader
	stream       StreamReader
	devAsset     *chain.MemoryToken
}

func NewHandler(engine *services.Engine, opts Options) *Handler {
	return &Handler{
		engine:       engine,
		bank:         opts.Bank,
		adminKeyHash: []byte(opts.AdminKeyHash),
		development:  opts.Development,
		journal:      opts.Journal,
		stream:       opts.Stream,
		devAsset:     opts.DevAsset,
	}
}

// Register mounts the ledger API on e.
func Register(e *echo.Echo, h *Handler) {
	e.GET("/health", h.Health)

	api := e.Group("/api/v1")
	api.POST("/events", h.CreateEvent)
	api.GET("/events/:id", h.GetEvent)
	api.POST("/events/:id/cancel", h.CancelEvent)
	api.POST("/events/:id/invites", h.SetInvites)
	api.GET("/events/:id/invites/:address", h.GetInvite)
	api.POST("/events/:id/purchase", h.Purchase)
	api.POST("/events/:id/tip", h.Tip)
	api.GET("/events/:id/refunds", h.GetRefunds)
	api.POST("/events/:id/refunds/tickets", h.ClaimTicketRefund)
	api.POST("/events/:id/refunds/tips", h.ClaimTipRefund)
	api.POST("/events/:id/check-in", h.CheckIn)

	api.POST("/claims", h.ClaimFunds)
	api.GET("/accounts/:address", h.GetAccount)
	api.GET("/accounts/:address/holdings", h.GetHoldings)

	api.GET("/tokens/:id", h.GetToken)
	api.POST("/tokens/transfer", h.TransferToken)
	api.POST("/tokens/approve", h.ApproveToken)
	api.POST("/tokens/operators", h.SetOperator)

	api.GET("/ledger/events", h.ListEvents)
	api.GET("/ledger/stream", h.RecentStream)

	admin := e.Group("/api/v1/admin", h.requireAdminKey)
	admin.GET("/fees", h.GetFees)
	admin.POST("/fees/protocol", h.SetProtocolFee)
	admin.POST("/fees/recipient", h.SetFeeRecipient)
	admin.POST("/fees/admin", h.SetFeeAdmin)
	admin.POST("/events/:id/sweep", h.SweepRefunds)
	admin.GET("/audit", h.Audit)
	admin.GET("/journal", h.ListJournal)
	admin.GET("/journal/verify", h.VerifyJournal)

	if h.development {
		e.POST("/dev/faucet", h.Faucet)
	}
}

// CorrelationID tags every request context and response with a request id.
func CorrelationID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get(RequestIDHeader)
			if id == "" {
				code, err := utils.GenerateCode(8)
				if err != nil {
					return err
				}
				id = code
			}
			ctx := logger.WithCorrelationID(c.Request().Context(), id)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Response().Header().Set(RequestIDHeader, id)
			return next(c)
		}
	}
}

func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":  "ok",
		"engine":  h.engine.Address(),
		"stats":   h.engine.Stats(c.Request().Context()),
		"service": "ticket-ledger",
	})
}

// apiError writes a ledger failure as {"error": code, "message": text}.
func apiError(c echo.Context, err error) error {
	ctx := c.Request().Context()
	kind := status.KindOf(err)
	if kind == status.KindUnknown {
		logger.Errorf(ctx, "%s %s: %v", c.Request().Method, c.Request().URL.Path, err)
	} else {
		logger.Debugf(ctx, "%s %s: %v", c.Request().Method, c.Request().URL.Path, err)
	}
	return c.JSON(kind.HTTPStatus(), map[string]string{
		"error":   status.CodeOf(err),
		"message": err.Error(),
	})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, map[string]string{
		"error":   "bad_request",
		"message": msg,
	})
}

// caller reads the authenticated wallet from the gateway header.
func caller(c echo.Context) (models.Address, error) {
	raw := strings.TrimSpace(c.Request().Header.Get(security.CallerHeader))
	if raw == "" {
		return models.ZeroAddress, status.ErrZeroAddress
	}
	return models.ParseAddress(raw)
}

func callWith(c echo.Context, value decimal.Decimal) (services.Call, error) {
	who, err := caller(c)
	if err != nil {
		return services.Call{}, err
	}
	return services.Call{Caller: who, Value: value}, nil
}

func eventID(c echo.Context) (uint64, error) {
	return strconv.ParseUint(c.PathParam("id"), 10, 64)
}

func queryInt(c echo.Context, name string, def int64) int64 {
	v, err := strconv.ParseInt(c.QueryParam(name), 10, 64)
	if err != nil || v < 0 {
		return def
	}
	return v
}
