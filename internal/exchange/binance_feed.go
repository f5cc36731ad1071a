package exchange

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/adshao/go-binance/v2"
)

// BinancePriceFeed 从币安公共接口获取最新价，作为 Kraken 行情的备用来源。
type BinancePriceFeed struct {
	client *binance.Client
}

// NewBinancePriceFeed 创建一个新的价格源实例。baseURL 为空时使用库的默认地址。
func NewBinancePriceFeed(baseURL string) *BinancePriceFeed {
	client := binance.NewClient("", "") // 公共接口不需要API Key
	if baseURL != "" {
		client.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &BinancePriceFeed{client: client}
}

// BinanceSymbol 将 Kraken 交易对映射到币安的 USDT 市场: "BTC/USD" -> "BTCUSDT"。
func BinanceSymbol(pair string) string {
	base, quote, found := strings.Cut(strings.ToUpper(pair), "/")
	if !found {
		return strings.ToUpper(pair)
	}
	if base == "XBT" {
		base = "BTC"
	}
	if quote == "USD" {
		quote = "USDT"
	}
	return base + quote
}

// LastPrice 获取交易对在币安的最新价。
func (f *BinancePriceFeed) LastPrice(ctx context.Context, pair string) (float64, error) {
	symbol := BinanceSymbol(pair)
	prices, err := f.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("获取 %s 最新价失败: %w", symbol, err)
	}
	for _, p := range prices {
		if p.Symbol == symbol {
			return strconv.ParseFloat(p.Price, 64)
		}
	}
	return 0, fmt.Errorf("未找到交易对 %s 的价格", symbol)
}
