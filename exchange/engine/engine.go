// Package engine owns all exchange state: the books, the ledger, the
// credential store and the collateral table. A single mutex serializes
// every read-modify-write; events are buffered inside the critical
// section and published after release, and snapshots are captured under
// the lock but written outside it.
package engine

import (
	"math"
	"path/filepath"
	"sort"
	"sync"

	"cosmossdk.io/log"

	"github.com/openalpha/hourex/exchange/auth"
	"github.com/openalpha/hourex/exchange/clock"
	"github.com/openalpha/hourex/exchange/events"
	"github.com/openalpha/hourex/exchange/types"
	"github.com/openalpha/hourex/metrics"
)

// Config carries engine settings.
type Config struct {
	// PersistentDir enables the snapshot file when non-empty.
	PersistentDir string
}

// DefaultConfig returns an engine configuration without persistence.
func DefaultConfig() Config {
	return Config{}
}

// Engine is the single owner of all mutable exchange state.
type Engine struct {
	mu     sync.Mutex
	logger log.Logger
	clk    clock.Clock
	bus    *events.Bus
	creds  *auth.Store
	stats  *metrics.Collector

	snapshotPath string
	st           *tradingState
}

// New constructs an engine and restores the snapshot if one exists.
func New(cfg Config, logger log.Logger, clk clock.Clock, bus *events.Bus) *Engine {
	e := &Engine{
		logger: logger.With("module", "engine"),
		clk:    clk,
		bus:    bus,
		creds:  auth.NewStore(),
		stats:  metrics.GetCollector(),
		st:     newTradingState(),
	}
	if cfg.PersistentDir != "" {
		e.snapshotPath = filepath.Join(cfg.PersistentDir, snapshotFileName)
		e.loadSnapshot()
	}
	return e
}

// mutate runs fn under the engine lock. On success it publishes the
// buffered events and writes a snapshot, both outside the critical
// section.
func (e *Engine) mutate(fn func(st *tradingState, now int64, buf *eventBuffer) error) error {
	buf := &eventBuffer{}
	e.mu.Lock()
	now := e.clk.Now()
	err := fn(e.st, now, buf)
	var snap *snapshotState
	if err == nil {
		snap = e.captureLocked()
	}
	e.mu.Unlock()
	if err != nil {
		return err
	}
	e.bus.Publish(buf.batch)
	e.writeSnapshot(snap)
	e.recordTrades(buf)
	return nil
}

// recordTrades counts the committed trades of one operation.
func (e *Engine) recordTrades(buf *eventBuffer) {
	for _, ev := range buf.batch {
		if ev.Topic != events.TopicTrades {
			continue
		}
		qty, _ := ev.Payload["quantity"].(int64)
		e.stats.RecordTrade(types.TradeSourceV2, qty)
	}
}

// ---- accounts ----

// Register creates a user account.
func (e *Engine) Register(username, password string) error {
	err := e.mutate(func(_ *tradingState, _ int64, _ *eventBuffer) error {
		return e.creds.Register(username, password)
	})
	if err == nil {
		e.mu.Lock()
		n := e.creds.UserCount()
		e.mu.Unlock()
		e.stats.RegisteredUsers.Set(float64(n))
	}
	return err
}

// Login mints a bearer token for a valid username/password pair.
func (e *Engine) Login(username, password string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.creds.Login(username, password)
}

// ChangePassword swaps the credential and revokes the user's tokens.
func (e *Engine) ChangePassword(username, oldPassword, newPassword string) error {
	return e.mutate(func(_ *tradingState, _ int64, _ *eventBuffer) error {
		return e.creds.ChangePassword(username, oldPassword, newPassword)
	})
}

// SubmitDNA stores a DNA reference sample for the user.
func (e *Engine) SubmitDNA(username, password, sample string) error {
	return e.mutate(func(_ *tradingState, _ int64, _ *eventBuffer) error {
		return e.creds.SubmitDNA(username, password, sample)
	})
}

// DNALogin mints a token when the sample matches a stored reference.
func (e *Engine) DNALogin(username, sample string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.creds.DNALogin(username, sample)
}

// Authenticate resolves a bearer token to its user.
func (e *Engine) Authenticate(token string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	user, ok := e.creds.Resolve(token)
	if !ok {
		return "", types.ErrUnauthorized
	}
	return user, nil
}

// ---- collateral and balance ----

// UnlimitedCollateral is reported when no limit is set.
const UnlimitedCollateral = int64(math.MaxInt64)

// SetCollateral sets the user's collateral limit. Admin gating happens
// at the transport edge.
func (e *Engine) SetCollateral(user string, limit int64) error {
	return e.mutate(func(st *tradingState, _ int64, _ *eventBuffer) error {
		st.collateral[user] = limit
		return nil
	})
}

// Balance reports the user's settled balance, potential balance and
// collateral limit.
func (e *Engine) Balance(user string) (balance, potential, collateral int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	balance = e.st.balances[user]
	potential = e.st.potentialBalance(user, "")
	collateral = UnlimitedCollateral
	if limit, ok := e.st.collateral[user]; ok {
		collateral = limit
	}
	return balance, potential, collateral
}

// ---- orders ----

// CreateOrder admits and matches a new order for owner.
func (e *Engine) CreateOrder(owner string, req OrderRequest) (OrderResult, error) {
	timer := metrics.NewTimer()
	var res OrderResult
	err := e.mutate(func(st *tradingState, now int64, buf *eventBuffer) error {
		var err error
		res, err = st.createOrder(owner, req, now, buf)
		return err
	})
	if err != nil {
		e.stats.RecordRejection(rejectionReason(err))
		return OrderResult{}, err
	}
	e.stats.RecordOrder(req.Side.String(), req.Exec.String(), res.Status.String())
	e.stats.RecordMatchingLatency("create", timer.ElapsedMs())
	e.updateRestingGauge()
	return res, nil
}

// ModifyOrder re-admits an existing order with a new price and quantity.
func (e *Engine) ModifyOrder(owner, orderID string, price, quantity int64) (OrderResult, error) {
	timer := metrics.NewTimer()
	var res OrderResult
	err := e.mutate(func(st *tradingState, now int64, buf *eventBuffer) error {
		var err error
		res, err = st.modifyOrder(owner, orderID, price, quantity, now, buf)
		return err
	})
	if err != nil {
		e.stats.RecordRejection(rejectionReason(err))
		return OrderResult{}, err
	}
	e.stats.RecordMatchingLatency("modify", timer.ElapsedMs())
	e.updateRestingGauge()
	return res, nil
}

// CancelOrder terminates an ACTIVE order owned by owner.
func (e *Engine) CancelOrder(owner, orderID string) error {
	err := e.mutate(func(st *tradingState, _ int64, buf *eventBuffer) error {
		return st.cancelOrder(owner, orderID, buf)
	})
	if err != nil {
		return err
	}
	e.updateRestingGauge()
	return nil
}

func (e *Engine) updateRestingGauge() {
	e.mu.Lock()
	n := e.st.restingCount()
	e.mu.Unlock()
	e.stats.OrdersResting.Set(float64(n))
}

// ---- views ----

// OrderBook returns the contract's resting orders in priority order.
// Outside the trading window the book reads as empty.
func (e *Engine) OrderBook(c types.Contract) (bids, asks []types.Order, err error) {
	if !c.Valid() {
		return nil, nil, types.ErrBadRequest
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if c.Window(e.clk.Now()) != types.WindowOpen {
		return []types.Order{}, []types.Order{}, nil
	}
	bk, ok := e.st.books[c]
	if !ok {
		return []types.Order{}, []types.Order{}, nil
	}
	for _, o := range bk.Orders(types.SideBuy) {
		bids = append(bids, *o)
	}
	for _, o := range bk.Orders(types.SideSell) {
		asks = append(asks, *o)
	}
	return bids, asks, nil
}

// MyOrders returns the owner's ACTIVE orders, newest first.
func (e *Engine) MyOrders(owner string) []types.Order {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.st.activeOrdersOf(owner)
}

// OwnTrade annotates a trade with the viewing user's role.
type OwnTrade struct {
	Trade        types.Trade
	Side         types.Side
	Counterparty string
}

// MyTrades returns the user's trades on one contract, newest first.
func (e *Engine) MyTrades(user string, c types.Contract) []OwnTrade {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := []OwnTrade{}
	for i := len(e.st.trades) - 1; i >= 0; i-- {
		t := e.st.trades[i]
		if t.Source != types.TradeSourceV2 ||
			t.DeliveryStart != c.DeliveryStart || t.DeliveryEnd != c.DeliveryEnd {
			continue
		}
		switch user {
		case t.BuyerID:
			out = append(out, OwnTrade{Trade: *t, Side: types.SideBuy, Counterparty: t.SellerID})
		case t.SellerID:
			out = append(out, OwnTrade{Trade: *t, Side: types.SideSell, Counterparty: t.BuyerID})
		}
	}
	return out
}

// ContractTrades returns the contract's trades, newest first.
func (e *Engine) ContractTrades(c types.Contract) []types.Trade {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := []types.Trade{}
	for i := len(e.st.trades) - 1; i >= 0; i-- {
		t := e.st.trades[i]
		if t.Source == types.TradeSourceV2 &&
			t.DeliveryStart == c.DeliveryStart && t.DeliveryEnd == c.DeliveryEnd {
			out = append(out, *t)
		}
	}
	return out
}

// AllTrades returns every trade, legacy included, newest first.
func (e *Engine) AllTrades() []types.Trade {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]types.Trade, 0, len(e.st.trades))
	for i := len(e.st.trades) - 1; i >= 0; i-- {
		out = append(out, *e.st.trades[i])
	}
	return out
}

// Order returns a copy of any order by id, for tests and diagnostics.
func (e *Engine) Order(orderID string) (types.Order, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	o, ok := e.st.orders[orderID]
	if !ok {
		return types.Order{}, false
	}
	return *o, true
}

func rejectionReason(err error) string {
	switch {
	case types.ErrBadRequest.Is(err):
		return "bad_request"
	case types.ErrTooEarly.Is(err):
		return "too_early"
	case types.ErrTooLate.Is(err):
		return "too_late"
	case types.ErrSelfMatch.Is(err):
		return "self_match"
	case types.ErrInsufficientCollateral.Is(err):
		return "insufficient_collateral"
	case types.ErrForbidden.Is(err):
		return "forbidden"
	case types.ErrNotFound.Is(err):
		return "not_found"
	default:
		return "other"
	}
}

// sortOrdersForSnapshot fixes a deterministic order for persisted
// orders: creation time, then id.
func sortOrdersForSnapshot(orders []*types.Order) {
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt != orders[j].CreatedAt {
			return orders[i].CreatedAt < orders[j].CreatedAt
		}
		return orders[i].OrderID < orders[j].OrderID
	})
}
