package kafka

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"exconnect/internal/adapters/exchanges"
	"exconnect/internal/metrics"
	"exconnect/pkg/errors"
	"exconnect/pkg/logger"
)

// Envelope wraps every published record.
type Envelope struct {
	Exchange    string          `json:"exchange"`
	Kind        string          `json:"kind"`
	Symbol      string          `json:"symbol"`
	Timeframe   string          `json:"timeframe,omitempty"`
	CollectedAt time.Time       `json:"collectedAt"`
	Data        json.RawMessage `json:"data"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes normalized market data, one writer per topic.
type Producer struct {
	mu        sync.Mutex
	writers   map[string]messageWriter
	newWriter func(topic string) messageWriter
	prefix    string
	now       func() time.Time
	log       *logger.Logger
}

// ProducerConfig holds producer configuration
type ProducerConfig struct {
	Brokers     []string
	TopicPrefix string
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg ProducerConfig) *Producer {
	return &Producer{
		writers: make(map[string]messageWriter),
		newWriter: func(topic string) messageWriter {
			return &kafka.Writer{
				Addr:                   kafka.TCP(cfg.Brokers...),
				Topic:                  topic,
				Balancer:               &kafka.Hash{},
				AllowAutoTopicCreation: true,
			}
		},
		prefix: cfg.TopicPrefix,
		now:    time.Now,
		log:    logger.Get().Component("kafka_producer"),
	}
}

// getWriter returns or creates a writer for a topic
func (p *Producer) getWriter(topic string) messageWriter {
	p.mu.Lock()
	defer p.mu.Unlock()

	if w, ok := p.writers[topic]; ok {
		return w
	}
	w := p.newWriter(topic)
	p.writers[topic] = w
	return w
}

// WriteTickers publishes one message per ticker, keyed by exchange and symbol.
func (p *Producer) WriteTickers(ctx context.Context, exchange string, tickers []*exchanges.Ticker) error {
	msgs := make([]kafka.Message, 0, len(tickers))
	for _, t := range tickers {
		if t == nil {
			continue
		}
		msg, err := p.message(Envelope{Exchange: exchange, Kind: "ticker", Symbol: t.Symbol}, t)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	return p.publish(ctx, TopicTickers, msgs)
}

// WriteTrades publishes the trades of one fetch as a single batch.
func (p *Producer) WriteTrades(ctx context.Context, exchange string, trades []*exchanges.Trade) error {
	msgs := make([]kafka.Message, 0, len(trades))
	for _, t := range trades {
		if t == nil {
			continue
		}
		msg, err := p.message(Envelope{Exchange: exchange, Kind: "trade", Symbol: t.Symbol}, t)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	return p.publish(ctx, TopicTrades, msgs)
}

// WriteOrderBook publishes a book snapshot.
func (p *Producer) WriteOrderBook(ctx context.Context, exchange string, book *exchanges.OrderBook) error {
	if book == nil {
		return nil
	}
	msg, err := p.message(Envelope{Exchange: exchange, Kind: "orderbook", Symbol: book.Symbol}, book)
	if err != nil {
		return err
	}
	return p.publish(ctx, TopicOrderBooks, []kafka.Message{msg})
}

// WriteOHLCV publishes one message per candle; the envelope carries the timeframe.
func (p *Producer) WriteOHLCV(ctx context.Context, exchange, symbol, timeframe string, candles []*exchanges.OHLCV) error {
	msgs := make([]kafka.Message, 0, len(candles))
	for _, c := range candles {
		if c == nil {
			continue
		}
		msg, err := p.message(Envelope{Exchange: exchange, Kind: "ohlcv", Symbol: symbol, Timeframe: timeframe}, c)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	return p.publish(ctx, TopicOHLCV, msgs)
}

func (p *Producer) message(env Envelope, record interface{}) (kafka.Message, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return kafka.Message{}, errors.Wrapf(err, "encode %s", env.Kind)
	}
	env.CollectedAt = p.now().UTC()
	env.Data = data
	value, err := json.Marshal(env)
	if err != nil {
		return kafka.Message{}, errors.Wrapf(err, "encode %s envelope", env.Kind)
	}
	return kafka.Message{Key: []byte(env.Exchange + ":" + env.Symbol), Value: value}, nil
}

func (p *Producer) publish(ctx context.Context, topic string, msgs []kafka.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	topic = p.prefix + topic

	err := p.getWriter(topic).WriteMessages(ctx, msgs...)
	metrics.RecordKafkaMessages(topic, len(msgs), err)
	if err != nil {
		return errors.Wrapf(err, "publish %d messages to %s", len(msgs), topic)
	}

	p.log.Debugf("Published %d messages to %s", len(msgs), topic)
	return nil
}

// Close closes all writers
func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs errors.MultiError
	for topic, w := range p.writers {
		if err := w.Close(); err != nil {
			errs.Add(errors.Wrapf(err, "close writer for %s", topic))
		}
	}
	return errs.ToError()
}
