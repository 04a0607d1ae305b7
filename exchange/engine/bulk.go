package engine

import (
	"cosmossdk.io/errors"

	"github.com/openalpha/hourex/exchange/types"
)

// Bulk operation types.
const (
	BulkOpCreate = "create"
	BulkOpModify = "modify"
	BulkOpCancel = "cancel"
)

// BulkOperation is one step of a bulk batch. Each operation carries its
// own participant token, so a batch can act for several users.
type BulkOperation struct {
	Type  string
	Token string

	// create
	Side     types.Side
	Price    int64
	Quantity int64
	Exec     types.ExecutionType

	// modify and cancel
	OrderID string
}

// BulkContract groups the operations of one contract.
type BulkContract struct {
	Contract   types.Contract
	Operations []BulkOperation
}

// BulkOpResult mirrors one operation's outcome, in request order.
type BulkOpResult struct {
	Type           string
	OrderID        string
	Status         types.OrderStatus
	FilledQuantity int64
}

// BulkOperations executes a batch all-or-nothing. The batch is simulated
// against a deep clone of the trading state using the same admission and
// matching code as the singleton paths; any failure aborts the whole
// batch with that failure and nothing is published. On success the clone
// becomes the live state and the buffered events flush in order.
func (e *Engine) BulkOperations(batch []BulkContract) ([]BulkOpResult, error) {
	size := 0
	for _, bc := range batch {
		size += len(bc.Operations)
	}

	buf := &eventBuffer{}
	e.mu.Lock()
	now := e.clk.Now()
	shadow := e.st.clone()
	results := make([]BulkOpResult, 0, size)

	var err error
loop:
	for _, bc := range batch {
		for _, op := range bc.Operations {
			user, ok := e.creds.Resolve(op.Token)
			if !ok {
				err = types.ErrUnauthorized
				break loop
			}
			var res BulkOpResult
			res, err = applyBulkOp(shadow, bc.Contract, user, op, now, buf)
			if err != nil {
				break loop
			}
			results = append(results, res)
		}
	}

	var snap *snapshotState
	if err == nil {
		e.st = shadow
		snap = e.captureLocked()
	}
	e.mu.Unlock()

	if err != nil {
		e.stats.RecordBulkBatch("aborted", size)
		return nil, err
	}
	e.bus.Publish(buf.batch)
	e.writeSnapshot(snap)
	e.recordTrades(buf)
	e.stats.RecordBulkBatch("committed", size)
	e.updateRestingGauge()
	return results, nil
}

func applyBulkOp(st *tradingState, c types.Contract, user string, op BulkOperation, now int64, buf *eventBuffer) (BulkOpResult, error) {
	switch op.Type {
	case BulkOpCreate:
		req := OrderRequest{
			Side:     op.Side,
			Price:    op.Price,
			Quantity: op.Quantity,
			Contract: c,
			Exec:     op.Exec,
		}
		res, err := st.createOrder(user, req, now, buf)
		if err != nil {
			return BulkOpResult{}, err
		}
		return BulkOpResult{Type: op.Type, OrderID: res.OrderID, Status: res.Status, FilledQuantity: res.FilledQuantity}, nil
	case BulkOpModify:
		res, err := st.modifyOrder(user, op.OrderID, op.Price, op.Quantity, now, buf)
		if err != nil {
			return BulkOpResult{}, err
		}
		return BulkOpResult{Type: op.Type, OrderID: res.OrderID, Status: res.Status, FilledQuantity: res.FilledQuantity}, nil
	case BulkOpCancel:
		if err := st.cancelOrder(user, op.OrderID, buf); err != nil {
			return BulkOpResult{}, err
		}
		return BulkOpResult{Type: op.Type, OrderID: op.OrderID, Status: types.OrderStatusCancelled}, nil
	default:
		return BulkOpResult{}, errors.Wrapf(types.ErrBadRequest, "unknown bulk operation type %q", op.Type)
	}
}
