package services

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"ticket-ledger/internal/status"
	"ticket-ledger/internal/store"
	"ticket-ledger/logger"
	"ticket-ledger/models"
)

// Call is the inbound envelope of a state-changing operation: who is calling
// and how much native value they attached.
type Call struct {
	Caller models.Address
	Value  decimal.Decimal
}

type execKey struct{}

// execution is the scope of one guarded operation. Writes go to tx and
// events are buffered until commit.
type execution struct {
	ctx    context.Context
	tx     *store.Tx
	call   Call
	at     time.Time
	events []models.DomainEvent

	committed bool
}

func (x *execution) emit(ev models.DomainEvent) {
	x.events = append(x.events, ev)
}

func inExecution(ctx context.Context) bool {
	return ctx.Value(execKey{}) != nil
}

// exec runs fn as one all-or-nothing operation. A call made while another
// operation is out on an external call is a re-entry and fails without
// waiting for the lock, whether or not its ctx carries the execution.
// Attached native value is taken into custody up front and handed back if
// fn fails.
func (e *Engine) exec(ctx context.Context, op string, call Call, payable bool, fn func(x *execution) error) (err error) {
	if inExecution(ctx) {
		return fmt.Errorf("%s: %w", op, status.ErrReentrantCall)
	}
	started := time.Now()
	defer func() {
		if e.observer != nil {
			e.observer.ObserveOperation(op, err, time.Since(started))
		}
	}()

	if call.Caller.IsZero() {
		return fmt.Errorf("%s: %w", op, status.ErrZeroAddress)
	}
	if call.Value.IsNegative() || !call.Value.IsInteger() {
		return fmt.Errorf("%s: %w", op, status.ErrInvalidAmount)
	}
	if !payable && !call.Value.IsZero() {
		return fmt.Errorf("%s: %w", op, status.ErrUnexpectedValue)
	}

	if err := e.run(ctx, call, fn); err != nil {
		logger.Debugf(ctx, "%s by %s reverted: %v", op, call.Caller, err)
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (e *Engine) lock() error {
	if e.mu.TryLock() {
		return nil
	}
	if e.calling.Load() {
		return status.ErrReentrantCall
	}
	e.mu.Lock()
	return nil
}

func (e *Engine) run(ctx context.Context, call Call, fn func(x *execution) error) (err error) {
	if err := e.lock(); err != nil {
		return err
	}
	defer e.mu.Unlock()

	x := &execution{tx: store.Begin(), call: call, at: e.now()}
	x.ctx = context.WithValue(ctx, execKey{}, x)

	charged := call.Value.IsPositive()
	if charged {
		if err := e.bank.Move(call.Caller, e.address, call.Value); err != nil {
			return err
		}
	}

	rollback := func() {
		x.tx.Discard()
		if !charged {
			return
		}
		if rerr := e.bank.Move(e.address, call.Caller, call.Value); rerr != nil {
			logger.Errorf(ctx, "return of %s to %s failed: %v", call.Value, call.Caller, rerr)
		}
	}
	defer func() {
		if r := recover(); r != nil {
			if x.committed {
				logger.Errorf(ctx, "panic after commit, value stays in custody: %v", r)
			} else {
				rollback()
			}
			panic(r)
		}
	}()

	if err := fn(x); err != nil {
		rollback()
		return err
	}
	envs, err := e.commit(x)
	if err != nil {
		rollback()
		return err
	}
	if e.dispatcher != nil {
		e.dispatcher.enqueue(envs)
	}
	return nil
}

// commit applies the staged writes and appends the buffered events to the
// log under the state lock, so views never see one without the other.
func (e *Engine) commit(x *execution) ([]models.Envelope, error) {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	if err := x.tx.Commit(); err != nil {
		return nil, err
	}
	x.committed = true

	envs := make([]models.Envelope, 0, len(x.events))
	for _, ev := range x.events {
		env := models.Envelope{
			Seq:   uint64(len(e.log)) + 1,
			Topic: ev.Topic(),
			At:    x.at,
			Event: ev,
		}
		e.log = append(e.log, env)
		envs = append(envs, env)
	}
	return envs, nil
}

// callOut runs an external call. Until it returns, any entry into the
// engine fails as re-entrant.
func (e *Engine) callOut(fn func() error) error {
	e.calling.Store(true)
	defer e.calling.Store(false)
	return fn()
}

// view runs fn against committed state. It only waits for a commit in
// progress, never for a whole operation, so receivers may read back during
// an external call.
func (e *Engine) view(_ context.Context, fn func()) {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	fn()
}

func (e *Engine) requireAdmin(x *execution) error {
	if x.call.Caller != e.admin {
		return status.ErrNotAdmin
	}
	return nil
}

func (e *Engine) requireOrganizer(x *execution, ev models.Event) error {
	if x.call.Caller != ev.Organizer {
		return status.ErrNotOrganizer
	}
	return nil
}

func (e *Engine) requireFeeAdmin(x *execution) error {
	fees, _ := e.st.fees.Get(x.tx, struct{}{})
	if x.call.Caller != fees.FeeAdmin {
		return status.ErrNotFeeAdmin
	}
	return nil
}
