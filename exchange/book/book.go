// Package book implements the per-contract two-sided price-time-priority
// order book. Price levels live in a B-tree per side; within a level,
// orders queue in arrival order in a skip list keyed by the engine's
// admission sequence. Only ACTIVE orders are stored; terminal orders are
// removed.
package book

import (
	"github.com/google/btree"
	"github.com/huandu/skiplist"

	"github.com/openalpha/hourex/exchange/types"
)

const btreeDegree = 32

// seqKey orders a level's queue by admission sequence, ascending.
type seqKey struct{}

func (seqKey) Compare(lhs, rhs interface{}) int {
	l := lhs.(uint64)
	r := rhs.(uint64)
	switch {
	case l < r:
		return -1
	case l > r:
		return 1
	default:
		return 0
	}
}

func (seqKey) CalcScore(key interface{}) float64 {
	return float64(key.(uint64))
}

// level is one price level: a FIFO queue of orders plus the running
// total of their remaining quantities.
type level struct {
	price int64
	queue *skiplist.SkipList
	total int64
}

func newLevel(price int64) *level {
	return &level{price: price, queue: skiplist.New(seqKey{})}
}

func (l *level) empty() bool { return l.queue.Len() == 0 }

// front returns the oldest order at this level.
func (l *level) front() *types.Order {
	el := l.queue.Front()
	if el == nil {
		return nil
	}
	return el.Value.(*types.Order)
}

// levelItem wraps a level for the btree; the tree is always ascending by
// price, with the side deciding iteration direction.
type levelItem struct {
	price int64
	level *level
}

func (a *levelItem) Less(b btree.Item) bool {
	return a.price < b.(*levelItem).price
}

type bookSide struct {
	tree *btree.BTree
	desc bool // bids iterate descending, asks ascending
}

func newBookSide(desc bool) *bookSide {
	return &bookSide{tree: btree.New(btreeDegree), desc: desc}
}

func (s *bookSide) get(price int64) *level {
	item := s.tree.Get(&levelItem{price: price})
	if item == nil {
		return nil
	}
	return item.(*levelItem).level
}

func (s *bookSide) getOrCreate(price int64) *level {
	if l := s.get(price); l != nil {
		return l
	}
	l := newLevel(price)
	s.tree.ReplaceOrInsert(&levelItem{price: price, level: l})
	return l
}

func (s *bookSide) remove(price int64) {
	s.tree.Delete(&levelItem{price: price})
}

// best returns the best price level: highest for bids, lowest for asks.
func (s *bookSide) best() *level {
	var item btree.Item
	if s.desc {
		item = s.tree.Max()
	} else {
		item = s.tree.Min()
	}
	if item == nil {
		return nil
	}
	return item.(*levelItem).level
}

// iterate walks price levels best-first.
func (s *bookSide) iterate(fn func(*level) bool) {
	wrap := func(item btree.Item) bool {
		return fn(item.(*levelItem).level)
	}
	if s.desc {
		s.tree.Descend(wrap)
	} else {
		s.tree.Ascend(wrap)
	}
}

// position locates an order inside the book for O(log n) removal.
type position struct {
	side  types.Side
	price int64
	seq   uint64
}

// Book is one contract's two-sided book.
type Book struct {
	bids  *bookSide
	asks  *bookSide
	index map[string]position
}

func New() *Book {
	return &Book{
		bids:  newBookSide(true),
		asks:  newBookSide(false),
		index: make(map[string]position),
	}
}

func (b *Book) side(s types.Side) *bookSide {
	if s == types.SideBuy {
		return b.bids
	}
	return b.asks
}

// Len returns the number of resting orders.
func (b *Book) Len() int { return len(b.index) }

// Add inserts an ACTIVE order with its admission sequence, which fixes
// its place in the level's FIFO queue.
func (b *Book) Add(o *types.Order, seq uint64) {
	l := b.side(o.Side).getOrCreate(o.Price)
	l.queue.Set(seq, o)
	l.total += o.Quantity
	b.index[o.OrderID] = position{side: o.Side, price: o.Price, seq: seq}
}

// Get returns the resting order with the given id, or nil.
func (b *Book) Get(orderID string) *types.Order {
	pos, ok := b.index[orderID]
	if !ok {
		return nil
	}
	l := b.side(pos.side).get(pos.price)
	if l == nil {
		return nil
	}
	el := l.queue.Get(pos.seq)
	if el == nil {
		return nil
	}
	return el.Value.(*types.Order)
}

// Seq returns the admission sequence the order was booked with.
func (b *Book) Seq(orderID string) (uint64, bool) {
	pos, ok := b.index[orderID]
	return pos.seq, ok
}

// Remove takes an order out of the book and returns it, or nil if it is
// not resting.
func (b *Book) Remove(orderID string) *types.Order {
	pos, ok := b.index[orderID]
	if !ok {
		return nil
	}
	delete(b.index, orderID)

	s := b.side(pos.side)
	l := s.get(pos.price)
	if l == nil {
		return nil
	}
	el := l.queue.Remove(pos.seq)
	if el == nil {
		return nil
	}
	o := el.Value.(*types.Order)
	l.total -= o.Quantity
	if l.empty() {
		s.remove(pos.price)
	}
	return o
}

// Peek returns the best order on the given side: the front of the best
// price level.
func (b *Book) Peek(s types.Side) *types.Order {
	l := b.side(s).best()
	if l == nil {
		return nil
	}
	return l.front()
}

// Reduce records a partial or complete fill of a resting order whose
// Quantity has already been decremented by qty. Fully filled orders are
// removed from the book.
func (b *Book) Reduce(orderID string, qty int64) {
	pos, ok := b.index[orderID]
	if !ok {
		return
	}
	s := b.side(pos.side)
	l := s.get(pos.price)
	if l == nil {
		return
	}
	l.total -= qty
	el := l.queue.Get(pos.seq)
	if el == nil {
		return
	}
	if el.Value.(*types.Order).Quantity <= 0 {
		l.queue.Remove(pos.seq)
		delete(b.index, orderID)
		if l.empty() {
			s.remove(pos.price)
		}
	}
}

// CrossableQty sums the quantity on the opposite side that an incoming
// order at the given price would cross. Used by the FOK preflight.
func (b *Book) CrossableQty(incoming types.Side, price int64) int64 {
	var total int64
	b.side(incoming.Opposite()).iterate(func(l *level) bool {
		if !types.Crosses(incoming, price, l.price) {
			return false
		}
		total += l.total
		return true
	})
	return total
}

// HasCrossableOwnedBy reports whether the opposite side holds any
// crossable order owned by owner. excludeID skips the order being
// modified.
func (b *Book) HasCrossableOwnedBy(incoming types.Side, price int64, owner, excludeID string) bool {
	found := false
	b.side(incoming.Opposite()).iterate(func(l *level) bool {
		if !types.Crosses(incoming, price, l.price) {
			return false
		}
		for el := l.queue.Front(); el != nil; el = el.Next() {
			o := el.Value.(*types.Order)
			if o.Owner == owner && o.OrderID != excludeID {
				found = true
				return false
			}
		}
		return true
	})
	return found
}

// Orders returns one side's resting orders in priority order.
func (b *Book) Orders(s types.Side) []*types.Order {
	out := make([]*types.Order, 0, len(b.index))
	b.side(s).iterate(func(l *level) bool {
		for el := l.queue.Front(); el != nil; el = el.Next() {
			out = append(out, el.Value.(*types.Order))
		}
		return true
	})
	return out
}
