package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"ticket-ledger/internal/chain"
	"ticket-ledger/internal/status"
	"ticket-ledger/internal/store"
	"ticket-ledger/models"
)

// Observer receives the outcome of every guarded operation.
type Observer interface {
	ObserveOperation(op string, err error, elapsed time.Duration)
}

// InviteList is the social-graph lookup consulted for INVITE_ONLY events in
// addition to the invites stored by SetInvites.
type InviteList interface {
	IsInvited(eventID uint64, who models.Address) bool
}

type EngineConfig struct {
	// Address holds native value and external assets in custody.
	Address        models.Address
	Admin          models.Address
	FeeAdmin       models.Address
	FeeRecipient   models.Address
	ProtocolFeeBps uint32
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

func WithDispatcher(d *Dispatcher) Option {
	return func(e *Engine) { e.dispatcher = d }
}

func WithInviteList(l InviteList) Option {
	return func(e *Engine) { e.inviteList = l }
}

// Engine is the singleton ticket ledger. Every exported mutating method is
// an atomic, serialized operation guarded against re-entry.
type Engine struct {
	// mu serializes operations. stateMu guards committed tables and the log
	// and is held for writing only while a commit applies.
	mu      sync.Mutex
	stateMu sync.RWMutex
	calling atomic.Bool

	address models.Address
	admin   models.Address

	bank       *chain.Bank
	assets     *chain.Registry
	inviteList InviteList
	observer   Observer
	dispatcher *Dispatcher
	now        func() time.Time

	st  *state
	log []models.Envelope
}

func NewEngine(cfg EngineConfig, bank *chain.Bank, assets *chain.Registry, opts ...Option) (*Engine, error) {
	for _, addr := range []models.Address{cfg.Address, cfg.Admin, cfg.FeeAdmin, cfg.FeeRecipient} {
		if addr.IsZero() {
			return nil, fmt.Errorf("newEngine: %w", status.ErrZeroAddress)
		}
	}
	if cfg.ProtocolFeeBps > MaxProtocolFeeBps {
		return nil, fmt.Errorf("newEngine: %w", status.ErrProtocolFeeTooHigh)
	}

	e := &Engine{
		address: cfg.Address,
		admin:   cfg.Admin,
		bank:    bank,
		assets:  assets,
		now:     time.Now,
		st:      newState(),
	}
	for _, opt := range opts {
		opt(e)
	}

	tx := store.Begin()
	e.st.fees.Put(tx, struct{}{}, feeConfig{
		ProtocolFeeBps: cfg.ProtocolFeeBps,
		FeeRecipient:   cfg.FeeRecipient,
		FeeAdmin:       cfg.FeeAdmin,
	})
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("newEngine: %w", err)
	}
	return e, nil
}

func (e *Engine) Address() models.Address {
	return e.address
}

func (e *Engine) Admin() models.Address {
	return e.admin
}

// Events returns committed envelopes with Seq > after, at most limit of them.
func (e *Engine) Events(ctx context.Context, after uint64, limit int) []models.Envelope {
	var out []models.Envelope
	e.view(ctx, func() {
		if after >= uint64(len(e.log)) {
			return
		}
		rest := e.log[after:]
		if limit > 0 && len(rest) > limit {
			rest = rest[:limit]
		}
		out = make([]models.Envelope, len(rest))
		copy(out, rest)
	})
	return out
}

func (e *Engine) Stats(ctx context.Context) models.LedgerStats {
	var s models.LedgerStats
	e.view(ctx, func() {
		s.Events = e.st.eventIDs.Current(nil)
		s.CancelledCount = uint64(e.st.cancellations.Len())
		e.st.tiers.Range(func(_ tierKey, t models.TicketTier) bool {
			s.TicketsSold += t.Sold
			return true
		})
		s.LogLength = uint64(len(e.log))
	})
	return s
}
