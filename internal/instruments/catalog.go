package instruments

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"kraken-ladder-go/internal/models"
)

// ErrUnknownInstrument is returned when a pair or ticker is not in the catalog.
var ErrUnknownInstrument = errors.New("unknown instrument")

var builtin = []models.Instrument{
	{Pair: "BTC/USD", Symbol: "BTC", DisplayName: "Bitcoin", PriceDecimals: 1, MaxLeverage: 5, Default: true},
	{Pair: "ETH/USD", Symbol: "ETH", DisplayName: "Ethereum", PriceDecimals: 2, MaxLeverage: 5},
	{Pair: "XRP/USD", Symbol: "XRP", DisplayName: "Ripple", PriceDecimals: 5, MaxLeverage: 5},
	{Pair: "SUI/USD", Symbol: "SUI", DisplayName: "Sui", PriceDecimals: 4, MaxLeverage: 3},
	{Pair: "DOGE/USD", Symbol: "DOGE", DisplayName: "Dogecoin", PriceDecimals: 6, MaxLeverage: 5},
	{Pair: "SOL/USD", Symbol: "SOL", DisplayName: "Solana", PriceDecimals: 2, MaxLeverage: 4},
	{Pair: "LINK/USD", Symbol: "LINK", DisplayName: "Chainlink", PriceDecimals: 4, MaxLeverage: 3},
	{Pair: "PEPE/USD", Symbol: "PEPE", DisplayName: "Pepe", PriceDecimals: 8, MaxLeverage: 3},
	{Pair: "ADA/USD", Symbol: "ADA", DisplayName: "Cardano", PriceDecimals: 6, MaxLeverage: 3},
	{Pair: "XLM/USD", Symbol: "XLM", DisplayName: "Stellar", PriceDecimals: 6, MaxLeverage: 2},
}

// Catalog is an immutable lookup of instruments by pair or base ticker.
type Catalog struct {
	byPair   map[string]models.Instrument
	bySymbol map[string]models.Instrument
	ordered  []models.Instrument
	def      models.Instrument
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, _ := New(nil)
	return c
}

// New builds a catalog from the built-in pairs plus overrides. An override with
// the same pair replaces the built-in entry.
func New(overrides []models.Instrument) (*Catalog, error) {
	merged := make(map[string]models.Instrument, len(builtin)+len(overrides))
	for _, inst := range builtin {
		merged[inst.Pair] = inst
	}

	seen := make(map[string]bool, len(overrides))
	for _, inst := range overrides {
		inst.Pair = strings.ToUpper(strings.TrimSpace(inst.Pair))
		if err := validate(inst); err != nil {
			return nil, err
		}
		if seen[inst.Pair] {
			return nil, fmt.Errorf("instrument %s listed twice", inst.Pair)
		}
		seen[inst.Pair] = true
		if inst.Symbol == "" {
			inst.Symbol = strings.SplitN(inst.Pair, "/", 2)[0]
		}
		inst.Symbol = strings.ToUpper(inst.Symbol)
		if inst.DisplayName == "" {
			inst.DisplayName = inst.Symbol
		}
		merged[inst.Pair] = inst
	}

	c := &Catalog{
		byPair:   make(map[string]models.Instrument, len(merged)),
		bySymbol: make(map[string]models.Instrument, len(merged)),
	}

	// An override marked default takes the flag away from the built-in one.
	overrideDefault := ""
	for _, inst := range overrides {
		if inst.Default {
			overrideDefault = strings.ToUpper(strings.TrimSpace(inst.Pair))
		}
	}

	for pair, inst := range merged {
		if overrideDefault != "" {
			inst.Default = pair == overrideDefault
		}
		c.byPair[pair] = inst
		c.ordered = append(c.ordered, inst)
		if inst.Default {
			c.def = inst
		}
	}

	sort.Slice(c.ordered, func(i, j int) bool {
		if c.ordered[i].Default != c.ordered[j].Default {
			return c.ordered[i].Default
		}
		return c.ordered[i].Pair < c.ordered[j].Pair
	})
	if c.def.Pair == "" {
		c.def = c.ordered[0]
	}
	// A ticker quoted in several currencies resolves to the first pair in list order.
	for _, inst := range c.ordered {
		if _, ok := c.bySymbol[inst.Symbol]; !ok {
			c.bySymbol[inst.Symbol] = inst
		}
	}
	return c, nil
}

func validate(inst models.Instrument) error {
	if inst.Pair == "" || !strings.Contains(inst.Pair, "/") {
		return fmt.Errorf("instrument pair %q must look like BASE/QUOTE", inst.Pair)
	}
	if inst.PriceDecimals < 0 {
		return fmt.Errorf("instrument %s: price_decimals must be >= 0", inst.Pair)
	}
	if inst.MaxLeverage < 1 {
		return fmt.Errorf("instrument %s: max_leverage must be >= 1", inst.Pair)
	}
	return nil
}

// Get looks up "BTC/USD" or "BTC", case-insensitively.
func (c *Catalog) Get(symbol string) (models.Instrument, bool) {
	key := strings.ToUpper(strings.TrimSpace(symbol))
	if inst, ok := c.byPair[key]; ok {
		return inst, true
	}
	inst, ok := c.bySymbol[key]
	return inst, ok
}

// Lookup is Get returning ErrUnknownInstrument for unknown symbols.
func (c *Catalog) Lookup(symbol string) (models.Instrument, error) {
	inst, ok := c.Get(symbol)
	if !ok {
		return models.Instrument{}, fmt.Errorf("%w: %q", ErrUnknownInstrument, symbol)
	}
	return inst, nil
}

// List returns every instrument, default first, then by pair.
func (c *Catalog) List() []models.Instrument {
	out := make([]models.Instrument, len(c.ordered))
	copy(out, c.ordered)
	return out
}

// Default returns the default instrument.
func (c *Catalog) Default() models.Instrument {
	return c.def
}
