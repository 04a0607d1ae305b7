package engine

import (
	"cosmossdk.io/errors"

	"github.com/openalpha/hourex/exchange/types"
)

// Legacy V1 path: a flat list of sell-only listings taken in full by id.
// V1 orders never match against the V2 books and are not durable; only
// the resulting trades reach the shared ledger.

// CreateV1Order lists a legacy sell offer and returns its id.
func (e *Engine) CreateV1Order(owner string, price, quantity int64) (string, error) {
	if quantity <= 0 {
		return "", errors.Wrap(types.ErrBadRequest, "quantity must be positive")
	}
	id := newID()
	err := e.mutate(func(st *tradingState, _ int64, _ *eventBuffer) error {
		st.v1Orders = append(st.v1Orders, &types.V1Order{
			OrderID:  id,
			Owner:    owner,
			Price:    price,
			Quantity: quantity,
			Active:   true,
		})
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// V1Orders returns the active legacy listings in listing order.
func (e *Engine) V1Orders() []types.V1Order {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := []types.V1Order{}
	for _, v := range e.st.v1Orders {
		if v.Active {
			out = append(out, *v)
		}
	}
	return out
}

// TakeV1Order buys a legacy listing in full. The trade reaches the
// shared ledger with source "v1" and no delivery window.
func (e *Engine) TakeV1Order(buyer, orderID string) (string, error) {
	tradeID := newID()
	var taken int64
	err := e.mutate(func(st *tradingState, now int64, _ *eventBuffer) error {
		for _, v := range st.v1Orders {
			if v.OrderID != orderID || !v.Active {
				continue
			}
			v.Active = false
			taken = v.Quantity
			st.applyTrade(&types.Trade{
				TradeID:   tradeID,
				BuyerID:   buyer,
				SellerID:  v.Owner,
				Price:     v.Price,
				Quantity:  v.Quantity,
				Timestamp: now,
				Source:    types.TradeSourceV1,
			})
			return nil
		}
		return types.ErrNotFound
	})
	if err != nil {
		return "", err
	}
	e.stats.RecordTrade(types.TradeSourceV1, taken)
	return tradeID, nil
}
