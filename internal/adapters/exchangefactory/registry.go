package exchangefactory

import (
	"sort"

	"exconnect/internal/adapters/exchanges"
	"exconnect/internal/adapters/exchanges/bcio"
	"exconnect/internal/adapters/exchanges/bitclude"
	"exconnect/internal/adapters/exchanges/bitforexfu"
	"exconnect/internal/adapters/exchanges/bitzfu"
	"exconnect/internal/adapters/exchanges/coin58"
	"exconnect/internal/adapters/exchanges/coinbene"
	"exconnect/internal/adapters/exchanges/coinsuper"
	"exconnect/internal/adapters/exchanges/felixo"
	"exconnect/internal/adapters/exchanges/gateiofu"
	"exconnect/internal/adapters/exchanges/primexbt"
	"exconnect/internal/adapters/exchanges/tradeogre"
)

// constructor adapts a concrete New func to exchanges.Constructor.
func constructor[C exchanges.Exchange](fn func(exchanges.Config) (C, error)) exchanges.Constructor {
	return func(cfg exchanges.Config) (exchanges.Exchange, error) {
		client, err := fn(cfg)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

var registry = map[string]exchanges.Constructor{
	"58coin":     constructor(coin58.New),
	"bcio":       constructor(bcio.New),
	"bitclude":   constructor(bitclude.New),
	"bitforexfu": constructor(bitforexfu.New),
	"bitzfu":     constructor(bitzfu.New),
	"coinbene":   constructor(coinbene.New),
	"coinsuper":  constructor(coinsuper.New),
	"felixo":     constructor(felixo.New),
	"gateiofu":   constructor(gateiofu.New),
	"primexbt":   constructor(primexbt.New),
	"tradeogre":  constructor(tradeogre.New),
}

// Supported lists every exchange id the registry can build, sorted.
func Supported() []string {
	ids := make([]string, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Lookup returns the constructor registered for id.
func Lookup(id string) (exchanges.Constructor, bool) {
	c, ok := registry[id]
	return c, ok
}
