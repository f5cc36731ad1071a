package exchange

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// NonceStore 持久化 nonce 的高水位。
type NonceStore interface {
	LoadNonce() (uint64, error)
	SaveNonce(nonce uint64) error
}

// NonceGenerator 生成严格递增的 nonce: max(当前微秒时间, 上一个+1)。
type NonceGenerator struct {
	mu     sync.Mutex
	last   uint64
	now    func() time.Time
	store  NonceStore
	logger *zap.Logger
}

// NewNonceGenerator 创建生成器，store 不为空时从中恢复高水位。
func NewNonceGenerator(store NonceStore, logger *zap.Logger) *NonceGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &NonceGenerator{now: time.Now, store: store, logger: logger}
	if store != nil {
		last, err := store.LoadNonce()
		if err != nil {
			logger.Warn("加载 nonce 高水位失败，从当前时间开始", zap.Error(err))
		}
		g.last = last
	}
	return g
}

// Next 返回下一个 nonce，并立即持久化。
func (g *NonceGenerator) Next() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	n := uint64(g.now().UnixMicro())
	if n <= g.last {
		n = g.last + 1
	}
	g.last = n

	if g.store != nil {
		if err := g.store.SaveNonce(n); err != nil {
			g.logger.Warn("保存 nonce 失败", zap.Uint64("nonce", n), zap.Error(err))
		}
	}
	return n
}
