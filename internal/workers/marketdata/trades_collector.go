package marketdata

import (
	"context"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"exconnect/internal/adapters/exchanges"
	"exconnect/internal/metrics"
	"exconnect/internal/workers"
	"exconnect/pkg/errors"
)

// TradesCollector polls public trades and forwards only those newer than
// the last trade it saw for the same exchange and symbol.
type TradesCollector struct {
	fanOut
	sink  Sink
	limit int

	mu     sync.Mutex
	cursor map[string]tradeCursor
}

type tradeCursor struct {
	at  time.Time
	ids map[string]struct{}
}

func NewTradesCollector(factory exchanges.Factory, sink Sink, opts Options, limit int, interval time.Duration) *TradesCollector {
	if limit <= 0 {
		limit = 100
	}
	return &TradesCollector{
		fanOut: newFanOut(workers.NewBaseWorker("trades_collector", interval, true), factory, opts),
		sink:   sink,
		limit:  limit,
		cursor: make(map[string]tradeCursor),
	}
}

func (c *TradesCollector) Run(ctx context.Context) error {
	total, err := c.each(ctx, "trades", c.collect)
	c.Log().Infow("Trades collection complete", "trades", humanize.Comma(int64(total)))
	return err
}

func (c *TradesCollector) collect(ctx context.Context, ex exchanges.Exchange) (int, error) {
	fetcher, ok := ex.(exchanges.TradesFetcher)
	if !ok {
		return 0, nil
	}
	symbols, err := c.symbolsFor(ctx, ex)
	if err != nil {
		return 0, err
	}

	n := 0
	var errs errors.MultiError
	for _, s := range symbols {
		key := ex.ID() + ":" + s
		since := c.since(key)

		trades, err := fetcher.FetchTrades(ctx, s, since, c.limit)
		if err != nil {
			errs.Add(errors.Wrapf(err, "trades %s", s))
			continue
		}
		fresh := c.advance(key, trades)
		if len(fresh) == 0 {
			continue
		}
		if err := c.sink.WriteTrades(ctx, ex.ID(), fresh); err != nil {
			errs.Add(errors.Wrapf(err, "write trades %s", s))
			continue
		}
		metrics.RecordNormalized(ex.ID(), "trade", len(fresh))
		n += len(fresh)
	}
	if n == 0 && errs.HasErrors() && len(errs.Errors) == len(symbols) {
		return 0, errs.ToError()
	}
	return n, nil
}

func (c *TradesCollector) since(key string) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursor[key].at
}

// advance filters out trades already forwarded and moves the cursor to
// the newest timestamp. Trades sharing the cursor timestamp are tracked
// by id so a since-inclusive endpoint does not repeat them.
func (c *TradesCollector) advance(key string, trades []*exchanges.Trade) []*exchanges.Trade {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur := c.cursor[key]
	fresh := make([]*exchanges.Trade, 0, len(trades))
	newest := cur.at
	for _, t := range trades {
		if t.Timestamp.Before(cur.at) {
			continue
		}
		if t.Timestamp.Equal(cur.at) {
			if _, seen := cur.ids[t.ID]; seen {
				continue
			}
		}
		fresh = append(fresh, t)
		if t.Timestamp.After(newest) {
			newest = t.Timestamp
		}
	}

	ids := make(map[string]struct{})
	if newest.Equal(cur.at) {
		for id := range cur.ids {
			ids[id] = struct{}{}
		}
	}
	for _, t := range fresh {
		if t.Timestamp.Equal(newest) {
			ids[t.ID] = struct{}{}
		}
	}
	c.cursor[key] = tradeCursor{at: newest, ids: ids}
	return fresh
}
