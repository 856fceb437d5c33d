// Command exfetch runs a single unified call against one exchange and
// prints the normalized result as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"exconnect/internal/adapters/config"
	"exconnect/internal/adapters/exchangefactory"
	"exconnect/internal/adapters/exchanges"
	"exconnect/internal/adapters/kafka"
	"exconnect/pkg/errors"
	"exconnect/pkg/logger"
)

type options struct {
	exchange  string
	op        string
	symbol    string
	timeframe string
	limit     int
	since     time.Duration
	topic     string
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("exfetch", flag.ContinueOnError)
	fs.StringVar(&o.exchange, "exchange", "", "exchange id: "+fmt.Sprint(exchangefactory.Supported()))
	fs.StringVar(&o.op, "op", "markets", "markets, ticker, tickers, orderbook, trades, ohlcv, balance, open-orders or stream")
	fs.StringVar(&o.symbol, "symbol", "", "unified symbol such as BTC/USDT")
	fs.StringVar(&o.timeframe, "timeframe", "1h", "candle timeframe for ohlcv")
	fs.IntVar(&o.limit, "limit", 0, "result limit, 0 for the exchange default")
	fs.DurationVar(&o.since, "since", 0, "only return records newer than now minus this duration")
	fs.StringVar(&o.topic, "topic", kafka.TopicTickers, "topic for stream mode")
	if err := fs.Parse(args); err != nil {
		return o, err
	}

	if o.op != "stream" {
		if o.exchange == "" {
			return o, errors.NewValidationError("exchange", "required", "")
		}
		if _, ok := exchangefactory.Lookup(o.exchange); !ok {
			return o, errors.Wrapf(errors.ErrUnknownExchange, "%s", o.exchange)
		}
	}
	switch o.op {
	case "ticker", "orderbook", "trades", "ohlcv":
		if o.symbol == "" {
			return o, errors.NewValidationError("symbol", "required for "+o.op, "")
		}
	}
	return o, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	_ = logger.Init("warn", "development")
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "exfetch:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, o options, out io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if o.op == "stream" {
		return stream(ctx, cfg, o, out)
	}

	factory, err := exchangefactory.FromConfig(cfg, nil, nil)
	if err != nil {
		return err
	}
	ex, err := factory.GetClient(ctx, o.exchange)
	if err != nil {
		return err
	}

	start := time.Now()
	result, n, err := call(ctx, ex, o)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return errors.Wrap(err, "encode result")
	}
	fmt.Fprintf(os.Stderr, "%s %s: %s records in %s\n", o.exchange, o.op, humanize.Comma(int64(n)), time.Since(start).Round(time.Millisecond))
	return nil
}

func call(ctx context.Context, ex exchanges.Exchange, o options) (interface{}, int, error) {
	var since time.Time
	if o.since > 0 {
		since = time.Now().Add(-o.since)
	}
	unsupported := errors.Wrapf(exchanges.ErrNotSupported, "%s does not support %s", ex.ID(), o.op)

	switch o.op {
	case "markets":
		m, err := ex.LoadMarkets(ctx, true)
		return m, len(m), err
	case "ticker":
		f, ok := ex.(exchanges.TickerFetcher)
		if !ok {
			return nil, 0, unsupported
		}
		t, err := f.FetchTicker(ctx, o.symbol)
		return t, 1, err
	case "tickers":
		f, ok := ex.(exchanges.TickersFetcher)
		if !ok {
			return nil, 0, unsupported
		}
		var symbols []string
		if o.symbol != "" {
			symbols = []string{o.symbol}
		}
		t, err := f.FetchTickers(ctx, symbols)
		return t, len(t), err
	case "orderbook":
		f, ok := ex.(exchanges.OrderBookFetcher)
		if !ok {
			return nil, 0, unsupported
		}
		b, err := f.FetchOrderBook(ctx, o.symbol, o.limit)
		if err != nil {
			return nil, 0, err
		}
		return b, len(b.Bids) + len(b.Asks), nil
	case "trades":
		f, ok := ex.(exchanges.TradesFetcher)
		if !ok {
			return nil, 0, unsupported
		}
		t, err := f.FetchTrades(ctx, o.symbol, since, o.limit)
		return t, len(t), err
	case "ohlcv":
		f, ok := ex.(exchanges.OHLCVFetcher)
		if !ok {
			return nil, 0, unsupported
		}
		c, err := f.FetchOHLCV(ctx, o.symbol, o.timeframe, since, o.limit)
		return c, len(c), err
	case "balance":
		f, ok := ex.(exchanges.BalanceFetcher)
		if !ok {
			return nil, 0, unsupported
		}
		b, err := f.FetchBalance(ctx)
		if err != nil {
			return nil, 0, err
		}
		return b, len(b.Currencies), nil
	case "open-orders":
		f, ok := ex.(exchanges.OpenOrdersFetcher)
		if !ok {
			return nil, 0, unsupported
		}
		orders, err := f.FetchOpenOrders(ctx, o.symbol, since, o.limit)
		return orders, len(orders), err
	}
	return nil, 0, errors.NewValidationError("op", "unknown operation", o.op)
}

// stream prints envelopes published by the daemon until interrupted.
func stream(ctx context.Context, cfg *config.Config, o options, out io.Writer) error {
	if !cfg.Kafka.Enabled() {
		return errors.Wrap(errors.ErrNotConfigured, "KAFKA_BROKERS")
	}
	consumer := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.TopicPrefix + o.topic,
	})
	defer func() { _ = consumer.Close() }()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	count := 0
	err := consumer.Consume(ctx, func(_ context.Context, env kafka.Envelope) error {
		if o.exchange != "" && env.Exchange != o.exchange {
			return nil
		}
		if o.symbol != "" && env.Symbol != o.symbol {
			return nil
		}
		count++
		fmt.Fprintf(out, "%s %-10s %-14s %s\n", env.CollectedAt.Format(time.TimeOnly), env.Exchange, env.Symbol, env.Data)
		if o.limit > 0 && count >= o.limit {
			cancel()
		}
		return nil
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
