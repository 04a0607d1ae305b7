package engine

import (
	"testing"

	"cosmossdk.io/log"

	"github.com/openalpha/hourex/exchange/clock"
	"github.com/openalpha/hourex/exchange/events"
	"github.com/openalpha/hourex/exchange/types"
)

// Benchmarks exercise the hot path: admission plus matching under the
// engine mutex, without transport or persistence overhead.

func newBenchEngine(b *testing.B) (*Engine, *clock.Manual) {
	b.Helper()
	clk := clock.NewManual(testContract().DeliveryStart - 86_400_000)
	e := New(DefaultConfig(), log.NewNopLogger(), clk, events.NewBus())
	return e, clk
}

func BenchmarkRestingOrders(b *testing.B) {
	e, _ := newBenchEngine(b)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		// Spread prices so orders rest instead of crossing.
		_, err := e.CreateOrder("maker", req(types.SideBuy, int64(-1_000_000+i), 1, types.ExecGTC))
		if err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkMatchedPairs(b *testing.B) {
	e, _ := newBenchEngine(b)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := e.CreateOrder("maker", req(types.SideSell, 100, 1, types.ExecGTC)); err != nil {
			b.Fatal(err)
		}
		if _, err := e.CreateOrder("taker", req(types.SideBuy, 100, 1, types.ExecGTC)); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDeepBookSweep(b *testing.B) {
	e, _ := newBenchEngine(b)
	for i := 0; i < 1000; i++ {
		if _, err := e.CreateOrder("maker", req(types.SideSell, 100, 1, types.ExecGTC)); err != nil {
			b.Fatal(err)
		}
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		// IOC so the taker never rests regardless of remaining depth.
		if _, err := e.CreateOrder("taker", req(types.SideBuy, 100, 10, types.ExecIOC)); err != nil {
			b.Fatal(err)
		}
		if i%100 == 99 {
			b.StopTimer()
			for j := 0; j < 1000; j++ {
				if _, err := e.CreateOrder("maker", req(types.SideSell, 100, 1, types.ExecGTC)); err != nil {
					b.Fatal(err)
				}
			}
			b.StartTimer()
		}
	}
}
