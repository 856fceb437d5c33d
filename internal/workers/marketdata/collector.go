package marketdata

import (
	"context"

	"golang.org/x/sync/errgroup"

	"exconnect/internal/adapters/exchanges"
	"exconnect/internal/workers"
	"exconnect/pkg/errors"
)

// Options are shared by every collector.
type Options struct {
	Exchanges      []string
	Symbols        []string
	MaxConcurrency int
	Outages        *OutageTracker
}

// fanOut holds the per-exchange iteration every collector runs.
type fanOut struct {
	*workers.BaseWorker
	factory exchanges.Factory
	opts    Options
}

func newFanOut(base *workers.BaseWorker, factory exchanges.Factory, opts Options) fanOut {
	if opts.MaxConcurrency < 1 {
		opts.MaxConcurrency = 1
	}
	if len(opts.Exchanges) == 0 {
		opts.Exchanges = factory.ListExchanges()
	}
	if opts.Outages == nil {
		opts.Outages = NewOutageTracker(1, nil)
	}
	return fanOut{BaseWorker: base, factory: factory, opts: opts}
}

// each runs fn for every exchange with at most MaxConcurrency in flight.
// Individual exchange failures never abort the others; the returned
// error is non-nil only when every exchange failed.
func (f *fanOut) each(ctx context.Context, operation string, fn func(ctx context.Context, ex exchanges.Exchange) (int, error)) (int, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.opts.MaxConcurrency)

	counts := make([]int, len(f.opts.Exchanges))
	errs := make([]error, len(f.opts.Exchanges))

	for i, id := range f.opts.Exchanges {
		i, id := i, id
		g.Go(func() error {
			if gctx.Err() != nil {
				errs[i] = gctx.Err()
				return nil
			}
			ex, err := f.factory.GetClient(gctx, id)
			if err == nil {
				counts[i], err = fn(gctx, ex)
			}
			if err != nil {
				errs[i] = errors.Wrapf(err, "%s %s", id, operation)
				if ctx.Err() == nil {
					f.opts.Outages.Failure(ctx, id, operation, err)
					f.Log().Debugw("Collection failed", "exchange", id, "operation", operation, "error", err)
				}
				return nil
			}
			f.opts.Outages.Success(ctx, id, operation)
			return nil
		})
	}
	_ = g.Wait()

	total := 0
	var failed errors.MultiError
	for i := range f.opts.Exchanges {
		total += counts[i]
		failed.Add(errs[i])
	}
	if len(failed.Errors) > 0 && len(failed.Errors) == len(f.opts.Exchanges) {
		return total, failed.ToError()
	}
	if failed.HasErrors() {
		f.Log().Warnw("Some exchanges failed", "operation", operation, "failed", len(failed.Errors), "error", failed.Errors[0])
	}
	return total, nil
}

// symbolsFor keeps the configured symbols the exchange actually lists.
func (f *fanOut) symbolsFor(ctx context.Context, ex exchanges.Exchange) ([]string, error) {
	if _, err := ex.LoadMarkets(ctx, false); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(f.opts.Symbols))
	for _, s := range f.opts.Symbols {
		if _, err := ex.Market(s); err == nil {
			out = append(out, s)
		}
	}
	return out, nil
}
