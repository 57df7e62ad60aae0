// Package chain models the host the ledger runs on: native value balances
// with receiver callbacks, and the boundary to external asset contracts.
package chain

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"ticket-ledger/internal/status"
	"ticket-ledger/models"
)

// Receiver is invoked after native value lands on a registered address.
// Returning an error rejects the payment and the transfer is reversed.
type Receiver interface {
	OnReceive(ctx context.Context, from models.Address, amount decimal.Decimal) error
}

type ReceiverFunc func(ctx context.Context, from models.Address, amount decimal.Decimal) error

func (f ReceiverFunc) OnReceive(ctx context.Context, from models.Address, amount decimal.Decimal) error {
	return f(ctx, from, amount)
}

// Bank holds native asset balances.
type Bank struct {
	mu        sync.Mutex
	balances  map[models.Address]decimal.Decimal
	receivers map[models.Address]Receiver
}

func NewBank() *Bank {
	return &Bank{
		balances:  make(map[models.Address]decimal.Decimal),
		receivers: make(map[models.Address]Receiver),
	}
}

func validAmount(amount decimal.Decimal) bool {
	return !amount.IsNegative() && amount.IsInteger()
}

// Deposit credits fresh value to an address. It backs the dev faucet.
func (b *Bank) Deposit(to models.Address, amount decimal.Decimal) error {
	if to.IsZero() {
		return fmt.Errorf("deposit: %w", status.ErrZeroAddress)
	}
	if !validAmount(amount) {
		return fmt.Errorf("deposit: %w", status.ErrInvalidAmount)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances[to] = b.balances[to].Add(amount)
	return nil
}

func (b *Bank) BalanceOf(addr models.Address) decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balances[addr]
}

// SetReceiver registers or, with a nil r, removes the callback for addr.
func (b *Bank) SetReceiver(addr models.Address, r Receiver) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if r == nil {
		delete(b.receivers, addr)
		return
	}
	b.receivers[addr] = r
}

// Move shifts value without invoking receiver callbacks.
func (b *Bank) Move(from, to models.Address, amount decimal.Decimal) error {
	if !validAmount(amount) {
		return fmt.Errorf("move: %w", status.ErrInvalidAmount)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.move(from, to, amount)
}

func (b *Bank) move(from, to models.Address, amount decimal.Decimal) error {
	if amount.IsZero() {
		return nil
	}
	bal := b.balances[from]
	if bal.LessThan(amount) {
		return status.ErrInsufficientValue
	}
	b.balances[from] = bal.Sub(amount)
	b.balances[to] = b.balances[to].Add(amount)
	return nil
}

// Transfer moves value and then runs the recipient's callback with ctx.
// The lock is released before the callback so it may call back into the
// bank. A failing callback reverses the move.
func (b *Bank) Transfer(ctx context.Context, from, to models.Address, amount decimal.Decimal) error {
	if to.IsZero() {
		return fmt.Errorf("transfer: %w", status.ErrZeroAddress)
	}
	if !validAmount(amount) {
		return fmt.Errorf("transfer: %w", status.ErrInvalidAmount)
	}

	b.mu.Lock()
	if err := b.move(from, to, amount); err != nil {
		b.mu.Unlock()
		return fmt.Errorf("transfer: %w", err)
	}
	r := b.receivers[to]
	b.mu.Unlock()

	if r == nil {
		return nil
	}
	if err := r.OnReceive(ctx, from, amount); err != nil {
		b.mu.Lock()
		revertErr := b.move(to, from, amount)
		b.mu.Unlock()
		if revertErr != nil {
			return fmt.Errorf("transfer: %w: receiver spent funds before failing: %v", status.ErrNativeTransfer, revertErr)
		}
		return fmt.Errorf("transfer: %w: %w", status.ErrNativeTransfer, err)
	}
	return nil
}
