package kafka

// Topic definitions for normalized market data
const (
	TopicTickers    = "market.tickers"
	TopicTrades     = "market.trades"
	TopicOrderBooks = "market.orderbooks"
	TopicOHLCV      = "market.ohlcv"
)

// Topics lists every topic the producer writes.
var Topics = []string{TopicTickers, TopicTrades, TopicOrderBooks, TopicOHLCV}
