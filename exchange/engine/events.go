package engine

import (
	"github.com/openalpha/hourex/exchange/events"
	"github.com/openalpha/hourex/exchange/types"
)

// Book delta actions.
const (
	DeltaAdd    = "ADD"
	DeltaModify = "MODIFY"
	DeltaRemove = "REMOVE"
)

// eventBuffer collects stream events produced inside the critical
// section. The engine publishes the batch after releasing its lock, so
// bus subscribers never observe a half-applied operation.
type eventBuffer struct {
	batch []events.Event
}

func (b *eventBuffer) trade(t *types.Trade) {
	b.batch = append(b.batch, events.Event{
		Topic: events.TopicTrades,
		Payload: map[string]any{
			"trade_id":       t.TradeID,
			"buyer_id":       t.BuyerID,
			"seller_id":      t.SellerID,
			"price":          t.Price,
			"quantity":       t.Quantity,
			"timestamp":      t.Timestamp,
			"delivery_start": t.DeliveryStart,
			"delivery_end":   t.DeliveryEnd,
		},
	})
}

func (b *eventBuffer) bookDelta(action string, o *types.Order) {
	b.batch = append(b.batch, events.Event{
		Topic: events.TopicOrderBook,
		Payload: map[string]any{
			"action":         action,
			"order_id":       o.OrderID,
			"side":           o.Side.String(),
			"price":          o.Price,
			"quantity":       o.Quantity,
			"delivery_start": o.Contract.DeliveryStart,
			"delivery_end":   o.Contract.DeliveryEnd,
		},
	})
}

// execReport publishes order progress to its owner. filled is passed in
// because terminal orders zero their remaining quantity.
func (b *eventBuffer) execReport(o *types.Order, filled int64) {
	b.batch = append(b.batch, events.Event{
		Topic: events.TopicExecReports,
		User:  o.Owner,
		Payload: map[string]any{
			"order_id":          o.OrderID,
			"status":            o.Status.String(),
			"side":              o.Side.String(),
			"price":             o.Price,
			"filled_quantity":   filled,
			"original_quantity": o.OriginalQuantity,
			"delivery_start":    o.Contract.DeliveryStart,
			"delivery_end":      o.Contract.DeliveryEnd,
		},
	})
}
