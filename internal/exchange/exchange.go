package exchange

import (
	"context"
	"errors"

	"kraken-ladder-go/internal/models"
)

var (
	// ErrNotConfigured 表示未配置 API Key，私有接口不可用。
	ErrNotConfigured = errors.New("kraken api credentials are not configured")
	// ErrBatchSize 表示 AddOrderBatch 的订单数不在 2-15 之间。
	ErrBatchSize = errors.New("order batch must contain between 2 and 15 orders")
)

const (
	MinOrdersPerBatch = 2
	MaxOrdersPerBatch = 15
)

// Exchange 定义了所有交易所实现必须提供的通用方法。
// 这使得中继服务可以在真实交易和模拟交易 (paper) 之间轻松切换。
type Exchange interface {
	Ticker(ctx context.Context, pair string) (float64, error)
	Balances(ctx context.Context) (map[string]string, error)
	TradeBalance(ctx context.Context, asset string) (*models.TradeBalance, error)
	OpenOrders(ctx context.Context) (map[string]models.OpenOrder, error)
	AddOrderBatch(ctx context.Context, pair string, orders []models.OrderRequest, validate bool) (*models.BatchResult, error)
	AddOrder(ctx context.Context, pair string, order models.OrderRequest, validate bool) (*models.AddOrderResult, error)
	CancelOrder(ctx context.Context, txid string) (*models.CancelResult, error)
	CancelOrderBatch(ctx context.Context, txids []string) (*models.CancelResult, error)
	CancelAll(ctx context.Context) (*models.CancelResult, error)
}

// PriceFeed 提供交易对的最新成交价。
type PriceFeed interface {
	LastPrice(ctx context.Context, pair string) (float64, error)
}

func checkBatchSize(n int) error {
	if n < MinOrdersPerBatch || n > MaxOrdersPerBatch {
		return ErrBatchSize
	}
	return nil
}
