package engine

import (
	"strings"

	"cosmossdk.io/errors"
	"github.com/google/uuid"

	"github.com/openalpha/hourex/exchange/types"
)

// OrderResult is the outcome of a create or modify.
type OrderResult struct {
	OrderID        string
	Status         types.OrderStatus
	FilledQuantity int64
}

func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// createOrder admits, matches and books a new order. The order record is
// kept even when it terminates immediately.
func (st *tradingState) createOrder(owner string, req OrderRequest, now int64, buf *eventBuffer) (OrderResult, error) {
	o := &types.Order{
		OrderID:          newID(),
		Owner:            owner,
		Side:             req.Side,
		Price:            req.Price,
		Quantity:         req.Quantity,
		OriginalQuantity: req.Quantity,
		Status:           types.OrderStatusActive,
		Contract:         req.Contract,
		CreatedAt:        now,
	}
	if err := st.admitOrder(o, now, "", true); err != nil {
		return OrderResult{}, err
	}
	st.orders[o.OrderID] = o
	filled := st.executeOrder(o, req.Exec, now, buf)
	return OrderResult{OrderID: o.OrderID, Status: o.Status, FilledQuantity: filled}, nil
}

// executeOrder runs the matching loop for an admitted order and applies
// the execution-type semantics to the residual. Returns the quantity
// filled by this call's matching.
func (st *tradingState) executeOrder(o *types.Order, exec types.ExecutionType, now int64, buf *eventBuffer) int64 {
	bk := st.book(o.Contract)

	// FOK preflight: unless the whole quantity is crossable right now,
	// produce no trades and touch nothing.
	if exec == types.ExecFOK && bk.CrossableQty(o.Side, o.Price) < o.Quantity {
		o.Cancel()
		buf.execReport(o, 0)
		return 0
	}

	start := o.Quantity
	for o.Quantity > 0 {
		resting := bk.Peek(o.Side.Opposite())
		if resting == nil || !types.Crosses(o.Side, o.Price, resting.Price) {
			break
		}
		q := o.Quantity
		if resting.Quantity < q {
			q = resting.Quantity
		}
		buyer, seller := o.Owner, resting.Owner
		if o.Side == types.SideSell {
			buyer, seller = resting.Owner, o.Owner
		}
		// Maker price wins: the resting order sets the trade price.
		t := &types.Trade{
			TradeID:       newID(),
			BuyerID:       buyer,
			SellerID:      seller,
			Price:         resting.Price,
			Quantity:      q,
			Timestamp:     now,
			DeliveryStart: o.Contract.DeliveryStart,
			DeliveryEnd:   o.Contract.DeliveryEnd,
			Source:        types.TradeSourceV2,
		}
		o.Fill(q)
		resting.Fill(q)
		bk.Reduce(resting.OrderID, q)
		st.applyTrade(t)

		buf.trade(t)
		if resting.Quantity == 0 {
			buf.bookDelta(DeltaRemove, resting)
		} else {
			buf.bookDelta(DeltaModify, resting)
		}
		buf.execReport(resting, resting.FilledQuantity())
	}
	filled := start - o.Quantity
	totalFilled := o.OriginalQuantity - o.Quantity

	switch exec {
	case types.ExecGTC:
		if o.Quantity > 0 {
			bk.Add(o, st.nextSeq())
			buf.bookDelta(DeltaAdd, o)
		}
	default: // IOC, FOK
		if o.Quantity > 0 {
			o.Cancel()
		}
	}
	buf.execReport(o, totalFilled)
	return filled
}

// modifyOrder re-admits an ACTIVE order with a new price and quantity
// through the same pipeline as a fresh GTC order. All gates run before
// any mutation so a rejected modify leaves the order untouched. Time
// priority is kept only on a pure quantity reduction.
func (st *tradingState) modifyOrder(owner, orderID string, price, quantity, now int64, buf *eventBuffer) (OrderResult, error) {
	o, ok := st.orders[orderID]
	if !ok {
		return OrderResult{}, types.ErrNotFound
	}
	if o.Owner != owner {
		return OrderResult{}, types.ErrForbidden
	}
	if !o.IsActive() {
		return OrderResult{}, types.ErrNotFound
	}
	if quantity <= 0 {
		return OrderResult{}, errors.Wrap(types.ErrBadRequest, "quantity must be positive")
	}

	candidate := &types.Order{
		OrderID:  orderID,
		Owner:    owner,
		Side:     o.Side,
		Price:    price,
		Quantity: quantity,
		Contract: o.Contract,
	}
	if err := st.admitOrder(candidate, now, orderID, false); err != nil {
		return OrderResult{}, err
	}

	filledSoFar := o.FilledQuantity()
	deltaPrice := price - o.Price
	deltaQty := quantity - o.Quantity

	bk := st.book(o.Contract)
	seq, _ := bk.Seq(orderID)
	bk.Remove(orderID)

	o.Price = price
	o.Quantity = quantity
	o.OriginalQuantity = filledSoFar + quantity

	if deltaPrice == 0 && deltaQty < 0 {
		// Pure reduction keeps the original queue position.
		bk.Add(o, seq)
		buf.bookDelta(DeltaModify, o)
		buf.execReport(o, filledSoFar)
		return OrderResult{OrderID: orderID, Status: o.Status, FilledQuantity: filledSoFar}, nil
	}

	buf.bookDelta(DeltaRemove, o)
	o.CreatedAt = now
	filled := st.executeOrder(o, types.ExecGTC, now, buf)
	return OrderResult{OrderID: orderID, Status: o.Status, FilledQuantity: filledSoFar + filled}, nil
}

// cancelOrder terminates an ACTIVE order. A second cancel of the same id
// reports NOT_FOUND: terminal orders cannot be targeted.
func (st *tradingState) cancelOrder(owner, orderID string, buf *eventBuffer) error {
	o, ok := st.orders[orderID]
	if !ok {
		return types.ErrNotFound
	}
	if o.Owner != owner {
		return types.ErrForbidden
	}
	if !o.IsActive() {
		return types.ErrNotFound
	}
	st.book(o.Contract).Remove(orderID)
	filled := o.FilledQuantity()
	o.Cancel()
	buf.bookDelta(DeltaRemove, o)
	buf.execReport(o, filled)
	return nil
}
