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

// OHLCVCollector polls candles per symbol and timeframe. Each poll starts
// at the open time of the newest candle already forwarded, so the candle
// still in progress is sent again until it closes.
type OHLCVCollector struct {
	fanOut
	sink       Sink
	timeframes []string
	limit      int

	mu     sync.Mutex
	cursor map[string]time.Time
}

func NewOHLCVCollector(factory exchanges.Factory, sink Sink, opts Options, timeframes []string, limit int, interval time.Duration) *OHLCVCollector {
	if limit <= 0 {
		limit = 100
	}
	if len(timeframes) == 0 {
		timeframes = []string{"1m"}
	}
	return &OHLCVCollector{
		fanOut:     newFanOut(workers.NewBaseWorker("ohlcv_collector", interval, true), factory, opts),
		sink:       sink,
		timeframes: timeframes,
		limit:      limit,
		cursor:     make(map[string]time.Time),
	}
}

func (c *OHLCVCollector) Run(ctx context.Context) error {
	total, err := c.each(ctx, "ohlcv", c.collect)
	c.Log().Infow("OHLCV collection complete",
		"candles", humanize.Comma(int64(total)),
		"timeframes", c.timeframes,
	)
	return err
}

func (c *OHLCVCollector) collect(ctx context.Context, ex exchanges.Exchange) (int, error) {
	fetcher, ok := ex.(exchanges.OHLCVFetcher)
	if !ok {
		return 0, nil
	}
	symbols, err := c.symbolsFor(ctx, ex)
	if err != nil {
		return 0, err
	}

	n, attempts := 0, 0
	var errs errors.MultiError
	for _, s := range symbols {
		for _, tf := range c.timeframes {
			if ctx.Err() != nil {
				return n, ctx.Err()
			}
			attempts++
			key := ex.ID() + ":" + s + ":" + tf
			candles, err := fetcher.FetchOHLCV(ctx, s, tf, c.since(key), c.limit)
			if err != nil {
				errs.Add(errors.Wrapf(err, "ohlcv %s %s", s, tf))
				continue
			}
			fresh := c.advance(key, candles)
			if len(fresh) == 0 {
				continue
			}
			if err := c.sink.WriteOHLCV(ctx, ex.ID(), s, tf, fresh); err != nil {
				errs.Add(errors.Wrapf(err, "write ohlcv %s %s", s, tf))
				continue
			}
			metrics.RecordNormalized(ex.ID(), "ohlcv", len(fresh))
			n += len(fresh)
		}
	}
	if n == 0 && errs.HasErrors() && len(errs.Errors) == attempts {
		return 0, errs.ToError()
	}
	return n, nil
}

func (c *OHLCVCollector) since(key string) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursor[key]
}

// advance keeps candles opening at or after the cursor and moves the
// cursor to the newest open time.
func (c *OHLCVCollector) advance(key string, candles []*exchanges.OHLCV) []*exchanges.OHLCV {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur := c.cursor[key]
	fresh := make([]*exchanges.OHLCV, 0, len(candles))
	for _, k := range candles {
		if k == nil || k.Timestamp.Before(cur) {
			continue
		}
		fresh = append(fresh, k)
		if k.Timestamp.After(c.cursor[key]) {
			c.cursor[key] = k.Timestamp
		}
	}
	return fresh
}
