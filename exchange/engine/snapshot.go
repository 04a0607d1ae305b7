package engine

import (
	"encoding/json"
	"os"

	"github.com/openalpha/hourex/exchange/types"
	"github.com/openalpha/hourex/metrics"
)

const snapshotFileName = "exchange_state.json"

// snapshotState is the durable subset: users, DNA samples, collateral
// limits, every V2 order and the V2 trades. Balances are not stored;
// they are rebuilt by replaying the trades. Legacy V1 state and bearer
// tokens are intentionally not durable.
type snapshotState struct {
	Users            map[string]string   `json:"users"`
	DNASamples       map[string][]string `json:"dna_samples"`
	CollateralLimits map[string]int64    `json:"collateral_limits"`
	Orders           []*types.Order      `json:"orders"`
	Trades           []*types.Trade      `json:"trades"`
}

// captureLocked serializes the durable subset while the engine lock is
// held. Returns nil when persistence is disabled.
func (e *Engine) captureLocked() *snapshotState {
	if e.snapshotPath == "" {
		return nil
	}
	snap := &snapshotState{
		Users:            e.creds.Users(),
		DNASamples:       e.creds.DNASamples(),
		CollateralLimits: make(map[string]int64, len(e.st.collateral)),
		Orders:           make([]*types.Order, 0, len(e.st.orders)),
		Trades:           make([]*types.Trade, 0, len(e.st.trades)),
	}
	for u, l := range e.st.collateral {
		snap.CollateralLimits[u] = l
	}
	for _, o := range e.st.orders {
		cp := *o
		snap.Orders = append(snap.Orders, &cp)
	}
	sortOrdersForSnapshot(snap.Orders)
	for _, t := range e.st.trades {
		if t.Source == types.TradeSourceV2 {
			snap.Trades = append(snap.Trades, t)
		}
	}
	return snap
}

// writeSnapshot persists a captured state with an atomic replace. Write
// failures are logged and swallowed: the exchange stays live with
// degraded durability.
func (e *Engine) writeSnapshot(snap *snapshotState) {
	if snap == nil {
		return
	}
	timer := metrics.NewTimer()
	err := func() error {
		data, err := json.Marshal(snap)
		if err != nil {
			return err
		}
		tmp := e.snapshotPath + ".tmp"
		if err := os.WriteFile(tmp, data, 0o600); err != nil {
			return err
		}
		return os.Rename(tmp, e.snapshotPath)
	}()
	e.stats.RecordSnapshotWrite(timer.ElapsedMs(), err)
	if err != nil {
		e.logger.Error("snapshot write failed", "path", e.snapshotPath, "err", err)
	}
}

// loadSnapshot restores state from the snapshot file if one exists. A
// missing file is a fresh start; an unreadable one is logged and
// ignored.
func (e *Engine) loadSnapshot() {
	data, err := os.ReadFile(e.snapshotPath)
	if err != nil {
		if !os.IsNotExist(err) {
			e.logger.Error("snapshot read failed", "path", e.snapshotPath, "err", err)
		}
		return
	}
	var snap snapshotState
	if err := json.Unmarshal(data, &snap); err != nil {
		e.logger.Error("snapshot decode failed", "path", e.snapshotPath, "err", err)
		return
	}

	e.creds.Restore(snap.Users, snap.DNASamples)

	st := newTradingState()
	for u, l := range snap.CollateralLimits {
		st.collateral[u] = l
	}
	// Orders are persisted sorted by creation time, so re-adding in file
	// order rebuilds FIFO priority within each price level.
	for _, o := range snap.Orders {
		st.orders[o.OrderID] = o
		if o.IsActive() {
			st.book(o.Contract).Add(o, st.nextSeq())
		}
	}
	for _, t := range snap.Trades {
		st.applyTrade(t)
	}
	e.st = st

	e.logger.Info("snapshot restored",
		"path", e.snapshotPath,
		"users", len(snap.Users),
		"orders", len(snap.Orders),
		"trades", len(snap.Trades),
	)
}
