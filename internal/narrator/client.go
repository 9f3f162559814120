package narrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/wfunc/story-game/internal/config"
	"github.com/wfunc/story-game/internal/errors"
	"github.com/wfunc/story-game/internal/logger"
	"go.uber.org/zap"
)

// 降级兜底叙事，轮换使用
var fallbackNarrations = []string{
	"The world seems to hold its breath for a moment. Nothing stirs, but a sense of anticipation hangs in the air. The story waits for your next move.",
	"A strange silence settles over the scene. Whatever was about to happen slips away like mist, and the path ahead remains open.",
	"Time slows. The details of this moment blur, but your journey continues, and the next step is yours to take.",
}

// generateRequest 叙事服务请求体
type generateRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model,omitempty"`
}

// generateResponse 叙事服务响应体
type generateResponse struct {
	Text string `json:"text"`
}

// HTTPClient 基于HTTP的叙事服务客户端
type HTTPClient struct {
	endpoint   string
	model      string
	maxRetries int
	timeout    time.Duration
	httpClient *http.Client
	detector   Detector
	log        *zap.Logger

	fallbackIdx atomic.Uint32 // 兜底文本轮换游标
}

// Option 客户端选项
type Option func(*HTTPClient)

// WithDetector 替换控制信号检测器
func WithDetector(d Detector) Option {
	return func(c *HTTPClient) {
		c.detector = d
	}
}

// WithHTTPClient 替换底层HTTP客户端（测试用）
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) {
		c.httpClient = hc
	}
}

// NewHTTPClient 创建叙事服务客户端
func NewHTTPClient(cfg *config.NarratorConfig, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		endpoint:   cfg.Endpoint,
		model:      cfg.Model,
		maxRetries: cfg.MaxRetries,
		timeout:    cfg.RequestTimeout,
		httpClient: &http.Client{},
		detector:   NewTokenDetector(),
		log:        logger.GetModuleLogger("narrator"),
	}
	if c.maxRetries <= 0 {
		c.maxRetries = 3
	}
	if c.timeout <= 0 {
		c.timeout = 20 * time.Second
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate 请求一段叙事。重试耗尽后返回降级结果而不是错误，
// 保证回合状态机永远不会被叙事服务故障卡住。
func (c *HTTPClient) Generate(ctx context.Context, nc *Context) (*Result, error) {
	prompt := BuildPrompt(nc)
	start := time.Now()

	var (
		lastErr  error
		attempts int
	)
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		attempts = attempt
		text, err := c.request(ctx, prompt)
		if err == nil {
			clean, sig := c.detector.Detect(text)
			result := &Result{
				Text:      clean,
				GameEnded: sig.GameEnded,
				Attempts:  attempt,
			}
			if sig.Death {
				result.DeathOf = nc.CurrentPlayer
			}

			c.log.Info("叙事生成成功",
				zap.Int("attempt", attempt),
				zap.Duration("elapsed", time.Since(start)),
				zap.Bool("death", sig.Death),
				zap.Bool("game_ended", sig.GameEnded),
			)
			return result, nil
		}

		lastErr = err
		c.log.Warn("叙事生成失败",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", c.maxRetries),
			zap.Error(err),
		)

		// 空响应、解析失败等非瞬时错误重试无意义
		if !errors.IsRetryable(err) {
			break
		}
		// 上层取消时不再重试
		if ctx.Err() != nil {
			break
		}
	}

	// 重试耗尽，降级为兜底叙事
	c.log.Error("叙事服务不可用，使用兜底文本",
		zap.Int("attempts", attempts),
		zap.Error(lastErr),
	)

	return &Result{
		Text:     c.nextFallback(),
		Degraded: true,
		Attempts: attempts,
	}, nil
}

// request 执行单次请求，带单次超时
func (c *HTTPClient) request(ctx context.Context, prompt string) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(&generateRequest{Prompt: prompt, Model: c.model})
	if err != nil {
		return "", errors.Wrap(err, errors.ErrNarratorRequest)
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, errors.ErrNarratorRequest)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if reqCtx.Err() == context.DeadlineExceeded {
			return "", errors.Wrap(err, errors.ErrNarratorTimeout)
		}
		return "", errors.Wrap(err, errors.ErrNarratorRequest)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// 读掉响应体以便连接复用
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", errors.Newf(errors.ErrNarratorStatus, "status=%d", resp.StatusCode)
	}

	var gr generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return "", errors.Wrap(err, errors.ErrNarratorDecode)
	}

	// 成功但文本为空与服务故障是两种结果
	if strings.TrimSpace(gr.Text) == "" {
		return "", errors.New(errors.ErrNarratorEmpty)
	}

	return gr.Text, nil
}

// nextFallback 轮换取下一条兜底叙事
func (c *HTTPClient) nextFallback() string {
	idx := c.fallbackIdx.Add(1) - 1
	return fallbackNarrations[int(idx)%len(fallbackNarrations)]
}

// String 便于日志排查
func (c *HTTPClient) String() string {
	return fmt.Sprintf("narrator(%s, retries=%d, timeout=%s)", c.endpoint, c.maxRetries, c.timeout)
}
