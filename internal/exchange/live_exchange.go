package exchange

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jpillora/backoff"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"kraken-ladder-go/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// 订单受理之前就被拒绝的 Kraken 错误码，重试不会重复下单。
var retryableCodes = []string{
	"EAPI:Invalid nonce",
	"EGeneral:Temporary lockout",
	"EService:Unavailable",
	"EService:Busy",
}

// envelope 是 Kraken 所有 REST 响应的外层结构。
type envelope struct {
	Error  []string            `json:"error"`
	Result jsoniter.RawMessage `json:"result"`
}

// KrakenExchange 实现了 Exchange 接口，用于与真实的 Kraken 交易所进行交互。
type KrakenExchange struct {
	apiKey     string
	secret     []byte
	baseURL    string
	httpClient *http.Client
	nonces     *NonceGenerator
	cfg        models.KrakenConfig
	logger     *zap.Logger
	now        func() time.Time
}

// NewKrakenExchange 创建一个新的 KrakenExchange 实例。apiSecret 为 Kraken 提供的 base64 私钥；
// 两者都为空时只能调用公共接口。
func NewKrakenExchange(cfg models.KrakenConfig, apiKey, apiSecret string, nonces *NonceGenerator, logger *zap.Logger) (*KrakenExchange, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if nonces == nil {
		nonces = NewNonceGenerator(nil, logger)
	}

	var secret []byte
	if apiSecret != "" {
		decoded, err := base64.StdEncoding.DecodeString(apiSecret)
		if err != nil {
			return nil, fmt.Errorf("解码 API secret 失败 (应为 base64): %w", err)
		}
		secret = decoded
	}

	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &KrakenExchange{
		apiKey:     apiKey,
		secret:     secret,
		baseURL:    strings.TrimRight(cfg.RESTURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		nonces:     nonces,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// sign 计算 API-Sign: base64(HMAC-SHA512(secret, path + SHA256(nonce + body)))。
func sign(secret []byte, path, nonce string, body []byte) string {
	sha := sha256.New()
	sha.Write([]byte(nonce))
	sha.Write(body)

	mac := hmac.New(sha512.New, secret)
	mac.Write([]byte(path))
	mac.Write(sha.Sum(nil))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// privateRequest 发送签名请求。payload 为 url.Values 时以表单提交，否则以 JSON 提交。
func (e *KrakenExchange) privateRequest(ctx context.Context, method string, payload interface{}, out interface{}) error {
	if e.apiKey == "" || len(e.secret) == 0 {
		return ErrNotConfigured
	}
	path := "/0/private/" + method

	return e.withRetry(ctx, method, func() ([]byte, error) {
		nonce := strconv.FormatUint(e.nonces.Next(), 10)

		var body []byte
		var contentType string
		switch p := payload.(type) {
		case url.Values:
			form := url.Values{}
			for k, v := range p {
				form[k] = v
			}
			form.Set("nonce", nonce)
			body = []byte(form.Encode())
			contentType = "application/x-www-form-urlencoded"
		case map[string]interface{}:
			m := make(map[string]interface{}, len(p)+1)
			for k, v := range p {
				m[k] = v
			}
			m["nonce"] = nonce
			var err error
			if body, err = json.Marshal(m); err != nil {
				return nil, fmt.Errorf("编码请求体失败: %w", err)
			}
			contentType = "application/json"
		default:
			body = []byte(url.Values{"nonce": {nonce}}.Encode())
			contentType = "application/x-www-form-urlencoded"
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("创建请求失败: %w", err)
		}
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("API-Key", e.apiKey)
		req.Header.Set("API-Sign", sign(e.secret, path, nonce, body))

		e.logger.Debug("发送私有请求", zap.String("path", path), zap.String("nonce", nonce))
		return e.do(req)
	}, out)
}

// publicRequest 发送无需签名的 GET 请求。
func (e *KrakenExchange) publicRequest(ctx context.Context, method string, params url.Values, out interface{}) error {
	return e.withRetry(ctx, method, func() ([]byte, error) {
		u := e.baseURL + "/0/public/" + method
		if len(params) > 0 {
			u += "?" + params.Encode()
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, fmt.Errorf("创建请求失败: %w", err)
		}
		return e.do(req)
	}, out)
}

func (e *KrakenExchange) do(req *http.Request) ([]byte, error) {
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("执行请求失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应体失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		// Kraken 有时在非 200 响应中也带有 error 数组，交给上层解析。
		var env envelope
		if json.Unmarshal(body, &env) == nil && len(env.Error) > 0 {
			return body, nil
		}
		return nil, fmt.Errorf("API请求失败, 状态码: %d, 响应: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// withRetry 执行 call 并将响应解析到 out。可重试的 Kraken 错误码按指数退避重试；
// 传输错误同样重试，但下单接口除外，见 isRetryable。
func (e *KrakenExchange) withRetry(ctx context.Context, method string, call func() ([]byte, error), out interface{}) error {
	initial := time.Duration(e.cfg.RetryInitialDelayMs) * time.Millisecond
	if initial <= 0 {
		initial = 250 * time.Millisecond
	}
	b := &backoff.Backoff{Min: initial, Max: 10 * initial, Factor: 2, Jitter: true}

	for {
		err := e.decode(method, call, out)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || !isRetryable(method, err) || int(b.Attempt()) >= e.cfg.RetryAttempts {
			return err
		}

		wait := b.Duration()
		e.logger.Warn("Kraken 请求失败，准备重试",
			zap.String("method", method),
			zap.Float64("attempt", b.Attempt()),
			zap.Duration("wait", wait),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (e *KrakenExchange) decode(method string, call func() ([]byte, error), out interface{}) error {
	body, err := call()
	if err != nil {
		return &TransportError{Method: method, Err: err}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("解析 %s 响应失败: %w", method, err)
	}
	if len(env.Error) > 0 {
		return &models.KrakenError{Endpoint: method, Messages: env.Error}
	}
	if out == nil || len(env.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("解析 %s 结果失败: %w", method, err)
	}
	return nil
}

// TransportError 包装未得到 Kraken 响应的失败。
type TransportError struct {
	Method string
	Err    error
}

func (e *TransportError) Error() string { return fmt.Sprintf("kraken %s: %v", e.Method, e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// 下单请求在服务端可能已经被接受，重发会重复下单。
var placesOrders = map[string]bool{
	"AddOrder":      true,
	"AddOrderBatch": true,
}

// isRetryable 判断 method 的 err 能否重试。下单接口只重试请求发出之前的失败:
// 受理前的 Kraken 错误码和建立连接 (dial) 时的错误。
func isRetryable(method string, err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false
		}
		if placesOrders[method] {
			var opErr *net.OpError
			return errors.As(err, &opErr) && opErr.Op == "dial"
		}
		return true
	}
	var ke *models.KrakenError
	if errors.As(err, &ke) {
		for _, code := range retryableCodes {
			if ke.Has(code) {
				return true
			}
		}
	}
	return false
}

// --- Exchange 接口实现 ---

// Ticker 获取指定交易对的最新成交价 (result[<key>].c[0])。
func (e *KrakenExchange) Ticker(ctx context.Context, pair string) (float64, error) {
	var result map[string]struct {
		C []string `json:"c"`
	}
	if err := e.publicRequest(ctx, "Ticker", url.Values{"pair": {pair}}, &result); err != nil {
		return 0, err
	}
	for key, t := range result {
		if len(t.C) == 0 {
			return 0, fmt.Errorf("交易对 %s 的行情缺少最新成交价", key)
		}
		return strconv.ParseFloat(t.C[0], 64)
	}
	return 0, fmt.Errorf("未找到交易对 %s 的行情", pair)
}

// LastPrice 使 KrakenExchange 实现 PriceFeed。
func (e *KrakenExchange) LastPrice(ctx context.Context, pair string) (float64, error) {
	return e.Ticker(ctx, pair)
}

// Balances 获取账户中所有资产的余额。
func (e *KrakenExchange) Balances(ctx context.Context) (map[string]string, error) {
	var balances map[string]string
	if err := e.privateRequest(ctx, "Balance", nil, &balances); err != nil {
		return nil, err
	}
	return balances, nil
}

// TradeBalance 获取以 asset 计价的保证金账户汇总，asset 为空时使用 ZUSD。
func (e *KrakenExchange) TradeBalance(ctx context.Context, asset string) (*models.TradeBalance, error) {
	if asset == "" {
		asset = "ZUSD"
	}
	var tb models.TradeBalance
	if err := e.privateRequest(ctx, "TradeBalance", url.Values{"asset": {asset}}, &tb); err != nil {
		return nil, err
	}
	return &tb, nil
}

// OpenOrders 获取所有挂单，按 txid 索引。
func (e *KrakenExchange) OpenOrders(ctx context.Context) (map[string]models.OpenOrder, error) {
	var res models.OpenOrdersResult
	if err := e.privateRequest(ctx, "OpenOrders", url.Values{}, &res); err != nil {
		return nil, err
	}
	if res.Open == nil {
		res.Open = map[string]models.OpenOrder{}
	}
	return res.Open, nil
}

// AddOrderBatch 批量下单 (2-15 笔)，结果顺序与请求顺序一致。
func (e *KrakenExchange) AddOrderBatch(ctx context.Context, pair string, orders []models.OrderRequest, validate bool) (*models.BatchResult, error) {
	if err := checkBatchSize(len(orders)); err != nil {
		return nil, err
	}
	payload := map[string]interface{}{
		"orders":   orders,
		"pair":     pair,
		"validate": validate,
	}
	if e.cfg.DeadlineSec > 0 {
		payload["deadline"] = e.now().UTC().Add(time.Duration(e.cfg.DeadlineSec) * time.Second).Format(time.RFC3339)
	}

	var res models.BatchResult
	if err := e.privateRequest(ctx, "AddOrderBatch", payload, &res); err != nil {
		e.logger.Error("批量下单失败", zap.String("pair", pair), zap.Int("orders", len(orders)), zap.Error(err))
		return nil, err
	}
	return &res, nil
}

// AddOrder 下单。
func (e *KrakenExchange) AddOrder(ctx context.Context, pair string, order models.OrderRequest, validate bool) (*models.AddOrderResult, error) {
	form := url.Values{}
	form.Set("pair", pair)
	form.Set("ordertype", order.OrderType)
	form.Set("type", order.Type)
	form.Set("price", order.Price)
	form.Set("volume", order.Volume)
	if order.TimeInForce != "" {
		form.Set("timeinforce", order.TimeInForce)
	}
	if order.Leverage != "" {
		form.Set("leverage", order.Leverage)
	}
	if order.ReduceOnly {
		form.Set("reduce_only", "true")
	}
	if order.ClOrdID != "" {
		form.Set("cl_ord_id", order.ClOrdID)
	}
	if order.Close != nil {
		form.Set("close[ordertype]", order.Close.OrderType)
		form.Set("close[price]", order.Close.Price)
	}
	if validate {
		form.Set("validate", "true")
	}

	var res models.AddOrderResult
	if err := e.privateRequest(ctx, "AddOrder", form, &res); err != nil {
		e.logger.Error("下单失败", zap.String("pair", pair), zap.String("price", order.Price), zap.Error(err))
		return nil, err
	}
	return &res, nil
}

// CancelOrder 取消订单。
func (e *KrakenExchange) CancelOrder(ctx context.Context, txid string) (*models.CancelResult, error) {
	var res models.CancelResult
	if err := e.privateRequest(ctx, "CancelOrder", url.Values{"txid": {txid}}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// CancelOrderBatch 批量取消订单。
func (e *KrakenExchange) CancelOrderBatch(ctx context.Context, txids []string) (*models.CancelResult, error) {
	var res models.CancelResult
	if err := e.privateRequest(ctx, "CancelOrderBatch", map[string]interface{}{"orders": txids}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// CancelAll 取消所有挂单。
func (e *KrakenExchange) CancelAll(ctx context.Context) (*models.CancelResult, error) {
	var res models.CancelResult
	if err := e.privateRequest(ctx, "CancelAll", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
