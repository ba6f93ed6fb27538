package radio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WebhookUplink Webhook 请求体
type WebhookUplink struct {
	ID        string `json:"id"`
	DeviceID  string `json:"deviceId"`
	Port      uint8  `json:"port"`
	Confirmed bool   `json:"confirmed"`
	Payload   []byte `json:"payload"` // base64
	Timestamp int64  `json:"timestamp"`
}

// Webhook 以签名 HTTP POST 投递上行
type Webhook struct {
	Client   *http.Client
	Endpoint string
	APIKey   string
	Secret   string
	Retries  int
	Backoff  []time.Duration
	DeviceID string

	provisioned bool
	logger      *zap.Logger
	now         func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWebhook 创建 Webhook 上行
func NewWebhook(client *http.Client, endpoint, apiKey, secret, deviceID string, provisioned bool, logger *zap.Logger) *Webhook {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Webhook{
		Client:      client,
		Endpoint:    endpoint,
		APIKey:      apiKey,
		Secret:      secret,
		Retries:     3,
		Backoff:     []time.Duration{100 * time.Millisecond, 500 * time.Millisecond, time.Second, 2 * time.Second},
		DeviceID:    deviceID,
		provisioned: provisioned,
		logger:      logger,
		now:         time.Now,
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (w *Webhook) IsProvisioned() bool { return w.provisioned }

func (w *Webhook) SendFrame(frame []byte, onDone func(bool), confirmed bool, port uint8) bool {
	if w.ctx.Err() != nil {
		return false
	}
	up := &WebhookUplink{
		ID:        uuid.NewString(),
		DeviceID:  w.DeviceID,
		Port:      port,
		Confirmed: confirmed,
		Payload:   append([]byte(nil), frame...),
		Timestamp: w.now().Unix(),
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		code, err := w.SendJSON(w.ctx, up)
		if err != nil {
			w.logger.Error("webhook uplink failed", zap.String("id", up.ID), zap.Int("status", code), zap.Error(err))
			onDone(false)
			return
		}
		onDone(true)
	}()
	return true
}

// Close 取消在途请求并等待回调完成
func (w *Webhook) Close() error {
	w.cancel()
	w.wg.Wait()
	return nil
}

// SendJSON 发送 JSON，自动添加签名头；5xx 与网络错误重试
func (w *Webhook) SendJSON(ctx context.Context, payload any) (int, error) {
	u, err := url.Parse(w.Endpoint)
	if err != nil {
		return 0, err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}
	ts := w.now().Unix()
	nonce := uuid.NewString()
	sig := SignHMAC(w.Secret, buildCanonical(http.MethodPost, u.Path, ts, nonce, hashHex(body)))

	var code int
	var lastErr error
	for attempt := 0; attempt <= w.Retries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.Endpoint, bytes.NewReader(body))
		if err != nil {
			return 0, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Api-Key", w.APIKey)
		req.Header.Set("X-Signature", sig)
		req.Header.Set("X-Timestamp", strconv.FormatInt(ts, 10))
		req.Header.Set("X-Nonce", nonce)

		resp, err := w.Client.Do(req)
		if err != nil {
			lastErr = err
		} else {
			code = resp.StatusCode
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			if code >= 200 && code < 300 {
				return code, nil
			}
			// 非2xx：仅对5xx重试
			if code < 500 {
				return code, fmt.Errorf("http %d", code)
			}
			lastErr = fmt.Errorf("http %d", code)
		}
		if attempt == w.Retries {
			break
		}
		backoff := w.Backoff[min(attempt, len(w.Backoff)-1)]
		select {
		case <-ctx.Done():
			return code, ctx.Err()
		case <-time.After(backoff):
		}
	}
	if lastErr == nil {
		lastErr = errors.New("webhook: no attempt made")
	}
	return code, lastErr
}
