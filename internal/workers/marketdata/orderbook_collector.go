package marketdata

import (
	"context"
	"time"

	"exconnect/internal/adapters/exchanges"
	"exconnect/internal/metrics"
	"exconnect/internal/workers"
	"exconnect/pkg/errors"
)

// OrderBookCollector snapshots order books up to depth levels per side.
type OrderBookCollector struct {
	fanOut
	sink  Sink
	depth int
}

func NewOrderBookCollector(factory exchanges.Factory, sink Sink, opts Options, depth int, interval time.Duration) *OrderBookCollector {
	return &OrderBookCollector{
		fanOut: newFanOut(workers.NewBaseWorker("orderbook_collector", interval, true), factory, opts),
		sink:   sink,
		depth:  depth,
	}
}

func (c *OrderBookCollector) Run(ctx context.Context) error {
	total, err := c.each(ctx, "orderbook", c.collect)
	c.Log().Infow("Order book collection complete", "books", total)
	return err
}

func (c *OrderBookCollector) collect(ctx context.Context, ex exchanges.Exchange) (int, error) {
	fetcher, ok := ex.(exchanges.OrderBookFetcher)
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
		book, err := fetcher.FetchOrderBook(ctx, s, c.depth)
		if err != nil {
			errs.Add(errors.Wrapf(err, "orderbook %s", s))
			continue
		}
		if err := c.sink.WriteOrderBook(ctx, ex.ID(), book); err != nil {
			errs.Add(errors.Wrapf(err, "write orderbook %s", s))
			continue
		}
		metrics.RecordNormalized(ex.ID(), "orderbook", 1)
		n++
	}
	if n == 0 {
		return 0, errs.ToError()
	}
	return n, nil
}
