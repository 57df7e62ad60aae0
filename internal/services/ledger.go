package services

import (
	"context"
	"fmt"
	"math"

	"ticket-ledger/internal/status"
	"ticket-ledger/models"
)

// mint credits amount of id to to and grows total supply.
func (e *Engine) mint(x *execution, to models.Address, id models.TokenID, amount uint64) error {
	if to.IsZero() {
		return status.ErrZeroAddress
	}
	supply, _ := e.st.supply.Get(x.tx, id)
	if supply > math.MaxUint64-amount {
		return status.ErrAmountOverflow
	}
	k := holdingKey{Holder: to, TokenID: id}
	bal, _ := e.st.balances.Get(x.tx, k)

	e.st.supply.Put(x.tx, id, supply+amount)
	e.st.balances.Put(x.tx, k, bal+amount)
	x.emit(models.BalanceTransfer{
		Operator: x.call.Caller,
		From:     models.ZeroAddress,
		To:       to,
		TokenID:  id,
		Amount:   amount,
	})
	return nil
}

// SafeTransferFrom moves amount of id from from to to. The caller must be
// from, an approved operator of from, or hold a sufficient per-id allowance.
func (e *Engine) SafeTransferFrom(ctx context.Context, call Call, from, to models.Address, id models.TokenID, amount uint64) error {
	return e.exec(ctx, "safeTransferFrom", call, false, func(x *execution) error {
		if !id.Category().Transferable() {
			return status.ErrSoulbound
		}
		if from.IsZero() || to.IsZero() {
			return status.ErrZeroAddress
		}

		caller := x.call.Caller
		if caller != from {
			approved, _ := e.st.operators.Get(x.tx, operatorKey{Owner: from, Operator: caller})
			if !approved {
				ak := allowanceKey{Owner: from, Spender: caller, TokenID: id}
				allowed, _ := e.st.allowances.Get(x.tx, ak)
				if allowed < amount {
					return status.ErrNotAuthorized
				}
				e.st.allowances.Put(x.tx, ak, allowed-amount)
			}
		}

		fromKey := holdingKey{Holder: from, TokenID: id}
		fromBal, _ := e.st.balances.Get(x.tx, fromKey)
		if fromBal < amount {
			return status.ErrInsufficientBalance
		}
		e.st.balances.Put(x.tx, fromKey, fromBal-amount)

		toKey := holdingKey{Holder: to, TokenID: id}
		toBal, _ := e.st.balances.Get(x.tx, toKey)
		if toBal > math.MaxUint64-amount {
			return status.ErrAmountOverflow
		}
		e.st.balances.Put(x.tx, toKey, toBal+amount)

		x.emit(models.BalanceTransfer{Operator: caller, From: from, To: to, TokenID: id, Amount: amount})
		return nil
	})
}

// Approve overwrites the caller's allowance for spender on id.
func (e *Engine) Approve(ctx context.Context, call Call, spender models.Address, id models.TokenID, amount uint64) error {
	return e.exec(ctx, "approve", call, false, func(x *execution) error {
		if spender.IsZero() {
			return status.ErrZeroAddress
		}
		e.st.allowances.Put(x.tx, allowanceKey{Owner: x.call.Caller, Spender: spender, TokenID: id}, amount)
		x.emit(models.Approval{Owner: x.call.Caller, Spender: spender, TokenID: id, Amount: amount})
		return nil
	})
}

// SetOperator grants or revokes blanket transfer rights over every id the
// caller holds.
func (e *Engine) SetOperator(ctx context.Context, call Call, operator models.Address, approved bool) error {
	return e.exec(ctx, "setOperator", call, false, func(x *execution) error {
		if operator.IsZero() {
			return status.ErrZeroAddress
		}
		k := operatorKey{Owner: x.call.Caller, Operator: operator}
		if approved {
			e.st.operators.Put(x.tx, k, true)
		} else {
			e.st.operators.Delete(x.tx, k)
		}
		x.emit(models.OperatorSet{Owner: x.call.Caller, Operator: operator, Approved: approved})
		return nil
	})
}

func (e *Engine) BalanceOf(ctx context.Context, holder models.Address, id models.TokenID) uint64 {
	var bal uint64
	e.view(ctx, func() {
		bal, _ = e.st.balances.Get(nil, holdingKey{Holder: holder, TokenID: id})
	})
	return bal
}

func (e *Engine) TotalSupply(ctx context.Context, id models.TokenID) uint64 {
	var supply uint64
	e.view(ctx, func() {
		supply, _ = e.st.supply.Get(nil, id)
	})
	return supply
}

func (e *Engine) Allowance(ctx context.Context, owner, spender models.Address, id models.TokenID) uint64 {
	var allowed uint64
	e.view(ctx, func() {
		allowed, _ = e.st.allowances.Get(nil, allowanceKey{Owner: owner, Spender: spender, TokenID: id})
	})
	return allowed
}

func (e *Engine) IsOperator(ctx context.Context, owner, operator models.Address) bool {
	var approved bool
	e.view(ctx, func() {
		approved, _ = e.st.operators.Get(nil, operatorKey{Owner: owner, Operator: operator})
	})
	return approved
}

// Holdings lists every non-zero balance of holder.
func (e *Engine) Holdings(ctx context.Context, holder models.Address) map[models.TokenID]uint64 {
	out := make(map[models.TokenID]uint64)
	e.view(ctx, func() {
		e.st.balances.Range(func(k holdingKey, bal uint64) bool {
			if k.Holder == holder && bal > 0 {
				out[k.TokenID] = bal
			}
			return true
		})
	})
	return out
}

// Audit checks the ledger invariants against committed state: total supply
// equals the sum of holder balances for every id, and no tier is oversold.
func (e *Engine) Audit(ctx context.Context) error {
	var err error
	e.view(ctx, func() {
		sums := make(map[models.TokenID]uint64)
		e.st.balances.Range(func(k holdingKey, bal uint64) bool {
			sums[k.TokenID] += bal
			return true
		})
		e.st.supply.Range(func(id models.TokenID, supply uint64) bool {
			if sums[id] != supply {
				err = fmt.Errorf("audit: token %s supply %d, balances %d", id, supply, sums[id])
				return false
			}
			delete(sums, id)
			return true
		})
		if err != nil {
			return
		}
		for id, sum := range sums {
			if sum != 0 {
				err = fmt.Errorf("audit: token %s has balances %d without supply", id, sum)
				return
			}
		}
		e.st.tiers.Range(func(k tierKey, t models.TicketTier) bool {
			if t.Sold > t.MaxSupply {
				err = fmt.Errorf("audit: event %d tier %d sold %d of %d", k.EventID, k.TierID, t.Sold, t.MaxSupply)
				return false
			}
			return true
		})
	})
	return err
}
