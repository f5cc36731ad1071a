package exchange

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"
	"go.uber.org/zap"
)

// PriceUpdate 是 ticker 频道推送的一次最新成交价。
type PriceUpdate struct {
	Pair  string
	Price float64
	Time  time.Time
}

type wsRequest struct {
	Method string          `json:"method"`
	Params *wsSubscription `json:"params,omitempty"`
}

type wsSubscription struct {
	Channel string   `json:"channel"`
	Symbol  []string `json:"symbol"`
}

type wsMessage struct {
	Channel string `json:"channel"`
	Type    string `json:"type"`
	Method  string `json:"method"`
	Success *bool  `json:"success"`
	Error   string `json:"error"`
	Data    []struct {
		Symbol string  `json:"symbol"`
		Last   float64 `json:"last"`
	} `json:"data"`
}

// TickerStream 订阅 Kraken WebSocket v2 的 ticker 频道，缓存每个交易对的最新价。
type TickerStream struct {
	url          string
	pairs        []string
	pingInterval time.Duration
	dialer       *websocket.Dialer
	logger       *zap.Logger

	mu      sync.RWMutex
	last    map[string]PriceUpdate
	updates chan PriceUpdate
}

// NewTickerStream 为 pairs 创建行情流，需调用 Run 才会连接。
func NewTickerStream(url string, pairs []string, pingInterval time.Duration, logger *zap.Logger) *TickerStream {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pingInterval <= 0 {
		pingInterval = 20 * time.Second
	}
	return &TickerStream{
		url:          url,
		pairs:        pairs,
		pingInterval: pingInterval,
		dialer:       &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		logger:       logger,
		last:         make(map[string]PriceUpdate),
		updates:      make(chan PriceUpdate, 64),
	}
}

// Updates 推送价格变化。读取方跟不上时会丢弃更新，LastPrice 始终是最新值。
func (s *TickerStream) Updates() <-chan PriceUpdate {
	return s.updates
}

// LastPrice 返回缓存的最新价，收到第一条行情之前返回错误。
func (s *TickerStream) LastPrice(_ context.Context, pair string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.last[pair]
	if !ok {
		return 0, fmt.Errorf("尚未收到 %s 的行情", pair)
	}
	return u.Price, nil
}

// Run 保持订阅直到 ctx 取消，断线后按退避策略重连。
func (s *TickerStream) Run(ctx context.Context) error {
	b := &backoff.Backoff{Min: 500 * time.Millisecond, Max: 30 * time.Second, Factor: 2, Jitter: true}
	for {
		err := s.session(ctx, b)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		wait := b.Duration()
		s.logger.Warn("行情 WebSocket 断开，准备重连", zap.Error(err), zap.Duration("wait", wait))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// session 运行一次连接，订阅确认后重置 b。
func (s *TickerStream) session(ctx context.Context, b *backoff.Backoff) error {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("无法连接到 WebSocket: %w", err)
	}
	defer conn.Close()

	sub := wsRequest{Method: "subscribe", Params: &wsSubscription{Channel: "ticker", Symbol: s.pairs}}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("发送订阅请求失败: %w", err)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(s.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				// 关闭连接以解除 ReadMessage 的阻塞
				_ = conn.Close()
				return
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteJSON(wsRequest{Method: "ping"}); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Debug("忽略无法解析的消息", zap.ByteString("raw", data))
			continue
		}

		switch {
		case msg.Method == "subscribe":
			if msg.Success != nil && !*msg.Success {
				return fmt.Errorf("订阅失败: %s", msg.Error)
			}
			b.Reset()
			s.logger.Info("已订阅行情", zap.Strings("pairs", s.pairs))
		case msg.Channel == "ticker":
			s.publish(msg, time.Now())
		}
	}
}

func (s *TickerStream) publish(msg wsMessage, at time.Time) {
	for _, d := range msg.Data {
		if d.Symbol == "" || d.Last <= 0 {
			continue
		}
		u := PriceUpdate{Pair: d.Symbol, Price: d.Last, Time: at}

		s.mu.Lock()
		s.last[d.Symbol] = u
		s.mu.Unlock()

		select {
		case s.updates <- u:
		default:
		}
	}
}
