package instruments

import (
	"testing"

	"kraken-ladder-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()

	def := c.Default()
	assert.Equal(t, "BTC/USD", def.Pair)
	assert.Equal(t, 1, def.PriceDecimals)
	assert.Equal(t, 5, def.MaxLeverage)

	list := c.List()
	require.Len(t, list, 10)
	assert.Equal(t, "BTC/USD", list[0].Pair, "default pair is listed first")
	assert.Equal(t, "ADA/USD", list[1].Pair)
}

func TestGetByPairOrTicker(t *testing.T) {
	c := Default()

	tests := []struct {
		in       string
		pair     string
		decimals int
		maxLev   int
	}{
		{"PEPE/USD", "PEPE/USD", 8, 3},
		{"pepe", "PEPE/USD", 8, 3},
		{" xlm/usd ", "XLM/USD", 6, 2},
		{"SOL", "SOL/USD", 2, 4},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			inst, ok := c.Get(tt.in)
			require.True(t, ok)
			assert.Equal(t, tt.pair, inst.Pair)
			assert.Equal(t, tt.decimals, inst.PriceDecimals)
			assert.Equal(t, tt.maxLev, inst.MaxLeverage)
		})
	}
}

func TestUnknownInstrument(t *testing.T) {
	c := Default()

	_, ok := c.Get("FOO/USD")
	assert.False(t, ok)

	_, err := c.Lookup("FOO")
	assert.ErrorIs(t, err, ErrUnknownInstrument)
}

func TestOverrides(t *testing.T) {
	c, err := New([]models.Instrument{
		{Pair: "btc/usd", Symbol: "BTC", DisplayName: "Bitcoin", PriceDecimals: 2, MaxLeverage: 3},
		{Pair: "DOT/USD", PriceDecimals: 4, MaxLeverage: 2, Default: true},
	})
	require.NoError(t, err)

	btc, ok := c.Get("BTC")
	require.True(t, ok)
	assert.Equal(t, 2, btc.PriceDecimals)
	assert.Equal(t, 3, btc.MaxLeverage)

	dot, ok := c.Get("dot")
	require.True(t, ok)
	assert.Equal(t, "DOT", dot.DisplayName)
	assert.Equal(t, "DOT/USD", c.Default().Pair)
	assert.Equal(t, "DOT/USD", c.List()[0].Pair)
}

func TestOverrideValidation(t *testing.T) {
	tests := []struct {
		name string
		inst models.Instrument
	}{
		{"no quote", models.Instrument{Pair: "BTC", MaxLeverage: 1}},
		{"negative decimals", models.Instrument{Pair: "X/USD", PriceDecimals: -1, MaxLeverage: 1}},
		{"zero leverage", models.Instrument{Pair: "X/USD", PriceDecimals: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New([]models.Instrument{tt.inst})
			assert.Error(t, err)
		})
	}

	_, err := New([]models.Instrument{
		{Pair: "X/USD", MaxLeverage: 1},
		{Pair: "x/usd", MaxLeverage: 2},
	})
	assert.Error(t, err, "duplicate pairs are rejected")
}
