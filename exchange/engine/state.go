package engine

import (
	"sort"

	"github.com/openalpha/hourex/exchange/book"
	"github.com/openalpha/hourex/exchange/types"
)

// tradingState is everything the matching paths read and write: books,
// orders, balances, collateral limits and the trade log. It is only ever
// touched under the engine mutex. Bulk transactions simulate against a
// deep clone and adopt it on success.
type tradingState struct {
	books      map[types.Contract]*book.Book
	orders     map[string]*types.Order
	balances   map[string]int64
	collateral map[string]int64 // absent means unlimited
	trades     []*types.Trade
	v1Orders   []*types.V1Order
	seq        uint64
}

func newTradingState() *tradingState {
	return &tradingState{
		books:      make(map[types.Contract]*book.Book),
		orders:     make(map[string]*types.Order),
		balances:   make(map[string]int64),
		collateral: make(map[string]int64),
	}
}

// book returns the contract's book, creating it on first use.
func (st *tradingState) book(c types.Contract) *book.Book {
	bk, ok := st.books[c]
	if !ok {
		bk = book.New()
		st.books[c] = bk
	}
	return bk
}

// nextSeq issues the admission sequence that fixes FIFO position inside
// a price level.
func (st *tradingState) nextSeq() uint64 {
	st.seq++
	return st.seq
}

// restingCount is the number of orders across all books, for metrics.
func (st *tradingState) restingCount() int {
	n := 0
	for _, bk := range st.books {
		n += bk.Len()
	}
	return n
}

// clone produces a deep copy sharing nothing mutable with the original.
// Trades are immutable and shared; orders are copied and the books are
// rebuilt around the copies with their original sequences so FIFO
// position survives.
func (st *tradingState) clone() *tradingState {
	out := &tradingState{
		books:      make(map[types.Contract]*book.Book, len(st.books)),
		orders:     make(map[string]*types.Order, len(st.orders)),
		balances:   make(map[string]int64, len(st.balances)),
		collateral: make(map[string]int64, len(st.collateral)),
		trades:     append([]*types.Trade(nil), st.trades...),
		v1Orders:   make([]*types.V1Order, 0, len(st.v1Orders)),
		seq:        st.seq,
	}
	for id, o := range st.orders {
		cp := *o
		out.orders[id] = &cp
	}
	for u, b := range st.balances {
		out.balances[u] = b
	}
	for u, l := range st.collateral {
		out.collateral[u] = l
	}
	for _, v := range st.v1Orders {
		cp := *v
		out.v1Orders = append(out.v1Orders, &cp)
	}
	for c, bk := range st.books {
		nb := book.New()
		for _, side := range []types.Side{types.SideBuy, types.SideSell} {
			for _, o := range bk.Orders(side) {
				seq, _ := bk.Seq(o.OrderID)
				nb.Add(out.orders[o.OrderID], seq)
			}
		}
		out.books[c] = nb
	}
	return out
}

// applyTrade moves money and appends to the log: the buyer pays
// price*quantity, the seller receives it.
func (st *tradingState) applyTrade(t *types.Trade) {
	notional := t.Price * t.Quantity
	st.balances[t.BuyerID] -= notional
	st.balances[t.SellerID] += notional
	st.trades = append(st.trades, t)
}

// potentialBalance is the balance plus the signed commitments of the
// user's ACTIVE orders. excludeID leaves out the order being modified.
func (st *tradingState) potentialBalance(user, excludeID string) int64 {
	p := st.balances[user]
	for _, o := range st.orders {
		if o.Owner != user || !o.IsActive() || o.OrderID == excludeID {
			continue
		}
		p += o.SignedCommitment()
	}
	return p
}

// activeOrdersOf returns the user's ACTIVE orders, newest first.
func (st *tradingState) activeOrdersOf(user string) []types.Order {
	var out []types.Order
	for _, o := range st.orders {
		if o.Owner == user && o.IsActive() {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return out[i].OrderID > out[j].OrderID
	})
	return out
}
