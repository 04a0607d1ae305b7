package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openalpha/hourex/exchange/types"
)

func TestV1Lifecycle(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.CreateV1Order("alice", 7, 0)
	assert.ErrorIs(t, err, types.ErrBadRequest)

	id, err := e.CreateV1Order("alice", 7, 3)
	require.NoError(t, err)

	listings := e.V1Orders()
	require.Len(t, listings, 1)
	assert.Equal(t, id, listings[0].OrderID)
	assert.Equal(t, int64(7), listings[0].Price)

	tradeID, err := e.TakeV1Order("bob", id)
	require.NoError(t, err)
	assert.NotEmpty(t, tradeID)
	assert.Empty(t, e.V1Orders())

	// Taken in full, exactly once.
	_, err = e.TakeV1Order("carol", id)
	assert.ErrorIs(t, err, types.ErrNotFound)

	aliceBal, _, _ := e.Balance("alice")
	bobBal, _, _ := e.Balance("bob")
	assert.Equal(t, int64(21), aliceBal)
	assert.Equal(t, int64(-21), bobBal)

	// The legacy trade shows in the shared log but not in V2 views.
	all := e.AllTrades()
	require.Len(t, all, 1)
	assert.Equal(t, types.TradeSourceV1, all[0].Source)
	assert.Empty(t, e.ContractTrades(testContract()))
}
