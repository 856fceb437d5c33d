package marketdata

import (
	"context"
	"time"

	"exconnect/internal/adapters/exchanges"
	"exconnect/internal/metrics"
	"exconnect/internal/workers"
)

// MarketsRefresher reloads market definitions, which also refreshes the
// shared market cache behind the factory.
type MarketsRefresher struct {
	fanOut
}

func NewMarketsRefresher(factory exchanges.Factory, opts Options, interval time.Duration) *MarketsRefresher {
	return &MarketsRefresher{
		fanOut: newFanOut(workers.NewBaseWorker("markets_refresher", interval, true), factory, opts),
	}
}

func (r *MarketsRefresher) Run(ctx context.Context) error {
	total, err := r.each(ctx, "load_markets", func(ctx context.Context, ex exchanges.Exchange) (int, error) {
		markets, err := ex.LoadMarkets(ctx, true)
		if err != nil {
			return 0, err
		}
		metrics.RecordMarketsLoaded(ex.ID(), len(markets))
		return len(markets), nil
	})
	r.Log().Infow("Markets refreshed", "markets", total)
	return err
}
