package chain

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"

	"ticket-ledger/models"
)

// ReturnMode selects how MemoryToken reports success.
type ReturnMode uint8

const (
	ReturnsBool    ReturnMode = iota // ABI encoded true, false on failure
	ReturnsNothing                   // empty data, reverts on failure
)

var (
	errTokenBalance   = errors.New("token: transfer amount exceeds balance")
	errTokenAllowance = errors.New("token: insufficient allowance")
)

// MemoryToken is an in-process fungible asset used for the external payment
// variant in development and tests.
type MemoryToken struct {
	mu         sync.Mutex
	mode       ReturnMode
	balances   map[models.Address]decimal.Decimal
	allowances map[[2]models.Address]decimal.Decimal
}

func NewMemoryToken(mode ReturnMode) *MemoryToken {
	return &MemoryToken{
		mode:       mode,
		balances:   make(map[models.Address]decimal.Decimal),
		allowances: make(map[[2]models.Address]decimal.Decimal),
	}
}

func (t *MemoryToken) Mint(to models.Address, amount decimal.Decimal) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.balances[to] = t.balances[to].Add(amount)
}

func (t *MemoryToken) BalanceOf(addr models.Address) decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.balances[addr]
}

func (t *MemoryToken) Approve(owner, spender models.Address, amount decimal.Decimal) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.allowances[[2]models.Address{owner, spender}] = amount
}

func (t *MemoryToken) Allowance(owner, spender models.Address) decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.allowances[[2]models.Address{owner, spender}]
}

func (t *MemoryToken) fail(err error) ([]byte, error) {
	if t.mode == ReturnsBool {
		return abiFalse, nil
	}
	return nil, err
}

func (t *MemoryToken) ok() ([]byte, error) {
	if t.mode == ReturnsBool {
		return abiTrue, nil
	}
	return nil, nil
}

func (t *MemoryToken) Transfer(_ context.Context, caller, to models.Address, amount decimal.Decimal) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.balances[caller].LessThan(amount) {
		return t.fail(errTokenBalance)
	}
	t.balances[caller] = t.balances[caller].Sub(amount)
	t.balances[to] = t.balances[to].Add(amount)
	return t.ok()
}

func (t *MemoryToken) TransferFrom(_ context.Context, caller, from, to models.Address, amount decimal.Decimal) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := [2]models.Address{from, caller}
	if t.allowances[key].LessThan(amount) {
		return t.fail(errTokenAllowance)
	}
	if t.balances[from].LessThan(amount) {
		return t.fail(errTokenBalance)
	}
	t.allowances[key] = t.allowances[key].Sub(amount)
	t.balances[from] = t.balances[from].Sub(amount)
	t.balances[to] = t.balances[to].Add(amount)
	return t.ok()
}
