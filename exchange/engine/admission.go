package engine

import (
	"cosmossdk.io/errors"

	"github.com/openalpha/hourex/exchange/types"
)

// OrderRequest is an order submission after wire decoding. The zero
// ExecutionType is GTC.
type OrderRequest struct {
	Side     types.Side
	Price    int64
	Quantity int64
	Contract types.Contract
	Exec     types.ExecutionType
}

// admitOrder runs the four admission gates in order: shape, trading
// window, self-match prevention, collateral. The first failure wins and
// nothing is mutated. excludeID names the order being replaced on a
// modify; checkWindow is skipped there because a modify only reshapes
// exposure the window already admitted.
func (st *tradingState) admitOrder(o *types.Order, now int64, excludeID string, checkWindow bool) error {
	if err := shapeCheck(o); err != nil {
		return err
	}
	if checkWindow {
		switch o.Contract.Window(now) {
		case types.WindowNotYetOpen:
			return types.ErrTooEarly
		case types.WindowClosed:
			return types.ErrTooLate
		}
	}
	if st.book(o.Contract).HasCrossableOwnedBy(o.Side, o.Price, o.Owner, excludeID) {
		return types.ErrSelfMatch
	}
	return st.checkCollateral(o, excludeID)
}

func shapeCheck(o *types.Order) error {
	if o.Side != types.SideBuy && o.Side != types.SideSell {
		return errors.Wrap(types.ErrBadRequest, "invalid side")
	}
	if o.Quantity <= 0 {
		return errors.Wrap(types.ErrBadRequest, "quantity must be positive")
	}
	if !o.Contract.Valid() {
		return errors.Wrap(types.ErrBadRequest, "contract must be hour-aligned and one hour wide")
	}
	return nil
}

// checkCollateral gates only liability-increasing orders: buys at a
// positive price and sells at a negative price. The order is admissible
// when the owner's potential balance after committing it stays at or
// above the negated collateral limit.
func (st *tradingState) checkCollateral(o *types.Order, excludeID string) error {
	increasing := (o.Side == types.SideBuy && o.Price > 0) ||
		(o.Side == types.SideSell && o.Price < 0)
	if !increasing {
		return nil
	}
	limit, ok := st.collateral[o.Owner]
	if !ok {
		return nil
	}
	if st.potentialBalance(o.Owner, excludeID)+o.SignedCommitment() < -limit {
		return types.ErrInsufficientCollateral
	}
	return nil
}
