package book

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openalpha/hourex/exchange/types"
)

func order(id, owner string, side types.Side, price, qty int64) *types.Order {
	return &types.Order{
		OrderID:          id,
		Owner:            owner,
		Side:             side,
		Price:            price,
		Quantity:         qty,
		OriginalQuantity: qty,
		Status:           types.OrderStatusActive,
	}
}

func TestPriceTimePriority(t *testing.T) {
	b := New()

	b.Add(order("s1", "alice", types.SideSell, 50, 10), 1)
	b.Add(order("s2", "bob", types.SideSell, 40, 5), 2)
	b.Add(order("s3", "carol", types.SideSell, 40, 7), 3)
	b.Add(order("b1", "dave", types.SideBuy, 30, 4), 4)
	b.Add(order("b2", "erin", types.SideBuy, 35, 6), 5)

	// Best ask is the lowest price, oldest first within the level.
	best := b.Peek(types.SideSell)
	require.NotNil(t, best)
	assert.Equal(t, "s2", best.OrderID)

	// Best bid is the highest price.
	best = b.Peek(types.SideBuy)
	require.NotNil(t, best)
	assert.Equal(t, "b2", best.OrderID)

	asks := b.Orders(types.SideSell)
	ids := make([]string, 0, len(asks))
	for _, o := range asks {
		ids = append(ids, o.OrderID)
	}
	assert.Equal(t, []string{"s2", "s3", "s1"}, ids)

	bids := b.Orders(types.SideBuy)
	ids = ids[:0]
	for _, o := range bids {
		ids = append(ids, o.OrderID)
	}
	assert.Equal(t, []string{"b2", "b1"}, ids)
}

func TestRemove(t *testing.T) {
	b := New()
	b.Add(order("s1", "alice", types.SideSell, 40, 5), 1)
	b.Add(order("s2", "bob", types.SideSell, 40, 7), 2)

	removed := b.Remove("s1")
	require.NotNil(t, removed)
	assert.Equal(t, "s1", removed.OrderID)
	assert.Equal(t, 1, b.Len())
	assert.Nil(t, b.Remove("s1"))

	// Level survives while s2 rests, goes away with it.
	assert.Equal(t, "s2", b.Peek(types.SideSell).OrderID)
	b.Remove("s2")
	assert.Nil(t, b.Peek(types.SideSell))
	assert.Equal(t, 0, b.Len())
}

func TestReduceRemovesFilledOrders(t *testing.T) {
	b := New()
	o := order("s1", "alice", types.SideSell, 40, 5)
	b.Add(o, 1)

	o.Fill(2)
	b.Reduce("s1", 2)
	require.NotNil(t, b.Get("s1"))
	assert.Equal(t, int64(3), b.Get("s1").Quantity)
	assert.Equal(t, int64(3), b.CrossableQty(types.SideBuy, 40))

	o.Fill(3)
	b.Reduce("s1", 3)
	assert.Nil(t, b.Get("s1"))
	assert.Equal(t, 0, b.Len())
	assert.Nil(t, b.Peek(types.SideSell))
}

func TestCrossableQty(t *testing.T) {
	b := New()
	b.Add(order("s1", "alice", types.SideSell, 40, 5), 1)
	b.Add(order("s2", "bob", types.SideSell, 45, 3), 2)
	b.Add(order("s3", "carol", types.SideSell, 60, 9), 3)

	assert.Equal(t, int64(0), b.CrossableQty(types.SideBuy, 39))
	assert.Equal(t, int64(5), b.CrossableQty(types.SideBuy, 40))
	assert.Equal(t, int64(8), b.CrossableQty(types.SideBuy, 45))
	assert.Equal(t, int64(17), b.CrossableQty(types.SideBuy, 100))

	b.Add(order("b1", "dave", types.SideBuy, -5, 4), 4)
	// Negative prices cross the same way.
	assert.Equal(t, int64(4), b.CrossableQty(types.SideSell, -5))
	assert.Equal(t, int64(0), b.CrossableQty(types.SideSell, -4))
}

func TestHasCrossableOwnedBy(t *testing.T) {
	b := New()
	b.Add(order("s1", "alice", types.SideSell, 40, 5), 1)
	b.Add(order("s2", "bob", types.SideSell, 45, 3), 2)

	assert.True(t, b.HasCrossableOwnedBy(types.SideBuy, 40, "alice", ""))
	assert.False(t, b.HasCrossableOwnedBy(types.SideBuy, 39, "alice", ""))
	assert.False(t, b.HasCrossableOwnedBy(types.SideBuy, 40, "bob", ""))
	assert.True(t, b.HasCrossableOwnedBy(types.SideBuy, 45, "bob", ""))

	// A modify excludes the order being replaced.
	assert.False(t, b.HasCrossableOwnedBy(types.SideBuy, 40, "alice", "s1"))
}

func TestSeq(t *testing.T) {
	b := New()
	b.Add(order("s1", "alice", types.SideSell, 40, 5), 17)

	seq, ok := b.Seq("s1")
	require.True(t, ok)
	assert.Equal(t, uint64(17), seq)
	_, ok = b.Seq("missing")
	assert.False(t, ok)
}
