package chain

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"ticket-ledger/internal/status"
	"ticket-ledger/models"
)

// TokenContract is an external fungible asset. Calls return the raw return
// data; an error means the call reverted.
type TokenContract interface {
	Transfer(ctx context.Context, caller, to models.Address, amount decimal.Decimal) ([]byte, error)
	TransferFrom(ctx context.Context, caller, from, to models.Address, amount decimal.Decimal) ([]byte, error)
}

var (
	abiTrue  = append(make([]byte, 31), 1)
	abiFalse = make([]byte, 32)
)

// returnedSuccess applies the boolean-or-empty convention: no return data or
// an ABI encoded true both count as success.
func returnedSuccess(ret []byte) bool {
	return len(ret) == 0 || bytes.Equal(ret, abiTrue)
}

// SafeTransfer sends amount of the asset held by caller to to.
func SafeTransfer(ctx context.Context, token TokenContract, caller, to models.Address, amount decimal.Decimal) error {
	ret, err := token.Transfer(ctx, caller, to, amount)
	if err != nil {
		return fmt.Errorf("safeTransfer: %w: %w", status.ErrAssetTransfer, err)
	}
	if !returnedSuccess(ret) {
		return fmt.Errorf("safeTransfer: %w", status.ErrAssetTransfer)
	}
	return nil
}

// SafeTransferFrom pulls amount from from to to using caller's allowance.
func SafeTransferFrom(ctx context.Context, token TokenContract, caller, from, to models.Address, amount decimal.Decimal) error {
	ret, err := token.TransferFrom(ctx, caller, from, to, amount)
	if err != nil {
		return fmt.Errorf("safeTransferFrom: %w: %w", status.ErrAssetTransfer, err)
	}
	if !returnedSuccess(ret) {
		return fmt.Errorf("safeTransferFrom: %w", status.ErrAssetTransfer)
	}
	return nil
}

// Registry maps asset addresses to their contracts.
type Registry struct {
	mu     sync.RWMutex
	assets map[models.Address]TokenContract
}

func NewRegistry() *Registry {
	return &Registry{assets: make(map[models.Address]TokenContract)}
}

func (r *Registry) Register(addr models.Address, token TokenContract) error {
	if addr.IsZero() {
		return fmt.Errorf("register asset: %w", status.ErrZeroAddress)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assets[addr] = token
	return nil
}

func (r *Registry) Lookup(addr models.Address) (TokenContract, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	token, ok := r.assets[addr]
	return token, ok
}
