package marketdata

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"

	"exconnect/internal/adapters/exchanges"
	"exconnect/internal/metrics"
	"exconnect/internal/workers"
	"exconnect/pkg/errors"
)

// TickerCollector snapshots tickers for the configured symbols. Exchanges
// with a bulk endpoint are queried once, the rest once per symbol.
type TickerCollector struct {
	fanOut
	sink Sink
}

func NewTickerCollector(factory exchanges.Factory, sink Sink, opts Options, interval time.Duration) *TickerCollector {
	return &TickerCollector{
		fanOut: newFanOut(workers.NewBaseWorker("ticker_collector", interval, true), factory, opts),
		sink:   sink,
	}
}

func (c *TickerCollector) Run(ctx context.Context) error {
	start := time.Now()
	total, err := c.each(ctx, "tickers", c.collect)
	c.Log().Infow("Ticker collection complete",
		"tickers", humanize.Comma(int64(total)),
		"took", time.Since(start).Round(time.Millisecond),
	)
	return err
}

func (c *TickerCollector) collect(ctx context.Context, ex exchanges.Exchange) (int, error) {
	tickers, err := c.fetch(ctx, ex)
	if err != nil {
		return 0, err
	}
	if len(tickers) == 0 {
		return 0, nil
	}
	metrics.RecordNormalized(ex.ID(), "ticker", len(tickers))
	if err := c.sink.WriteTickers(ctx, ex.ID(), tickers); err != nil {
		return 0, errors.Wrap(err, "write tickers")
	}
	return len(tickers), nil
}

func (c *TickerCollector) fetch(ctx context.Context, ex exchanges.Exchange) ([]*exchanges.Ticker, error) {
	if bulk, ok := ex.(exchanges.TickersFetcher); ok {
		if _, err := ex.LoadMarkets(ctx, false); err != nil {
			return nil, err
		}
		bySymbol, err := bulk.FetchTickers(ctx, c.opts.Symbols)
		if err != nil {
			return nil, err
		}
		out := make([]*exchanges.Ticker, 0, len(bySymbol))
		for _, t := range bySymbol {
			out = append(out, t)
		}
		return out, nil
	}

	single, ok := ex.(exchanges.TickerFetcher)
	if !ok {
		return nil, nil
	}
	symbols, err := c.symbolsFor(ctx, ex)
	if err != nil {
		return nil, err
	}
	out := make([]*exchanges.Ticker, 0, len(symbols))
	var errs errors.MultiError
	for _, s := range symbols {
		t, err := single.FetchTicker(ctx, s)
		if err != nil {
			errs.Add(errors.Wrapf(err, "ticker %s", s))
			continue
		}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil, errs.ToError()
	}
	return out, nil
}
