package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/swarmpush/swarmpush/internal/api/models"
	"github.com/swarmpush/swarmpush/internal/device"
	"github.com/swarmpush/swarmpush/internal/provider/resilience"
)

const (
	devicesPath = "/v1/devices"
	streamPath  = "/v1/devices/stream"

	// streamReadWait must exceed the server's ping period.
	streamReadWait = 60 * time.Second
)

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPClientConfig configures an HTTPClient.
type HTTPClientConfig struct {
	// BaseURL of the registry API, e.g. "https://push.example.com".
	BaseURL string

	// HTTPClient defaults to a resilient client with retries; registration
	// upserts are idempotent.
	HTTPClient HTTPDoer

	// Dialer defaults to websocket.DefaultDialer.
	Dialer *websocket.Dialer

	// Registry receives health records for the default HTTP client.
	Registry *resilience.Registry

	// MaxBackoff caps the delay between stream reconnects. Default: 30s
	MaxBackoff time.Duration

	Logger zerolog.Logger
}

// HTTPClient is a Store talking to a remote registry API.
type HTTPClient struct {
	baseURL    string
	httpClient HTTPDoer
	dialer     *websocket.Dialer
	maxBackoff time.Duration
	logger     zerolog.Logger
}

// NewHTTPClient creates a remote registry client.
func NewHTTPClient(cfg HTTPClientConfig) *HTTPClient {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		rc := resilience.DefaultClientConfig("registry")
		rc.Registry = cfg.Registry
		httpClient = resilience.NewClient(rc)
	}
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	maxBackoff := cfg.MaxBackoff
	if maxBackoff == 0 {
		maxBackoff = 30 * time.Second
	}

	return &HTTPClient{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: httpClient,
		dialer:     dialer,
		maxBackoff: maxBackoff,
		logger:     cfg.Logger,
	}
}

// StatusError is a non-success answer from the registry API.
type StatusError struct {
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("registry: status %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("registry: status %d", e.StatusCode)
}

// Upsert posts the registration and returns the record echoed by the server.
func (c *HTTPClient) Upsert(ctx context.Context, reg device.Registration) (*device.Registration, error) {
	payload, err := json.Marshal(models.DeviceRegisterRequest{
		PushToken:  reg.PushToken,
		DeviceID:   reg.DeviceID,
		Brand:      reg.Brand,
		DeviceName: reg.DeviceName,
		UserName:   reg.UserName,
	})
	if err != nil {
		return nil, fmt.Errorf("encode registration: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+devicesPath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("register device: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, decodeStatusError(resp)
	}

	var out models.DeviceRegisterResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode registration response: %w", err)
	}
	if out.DeviceInfo == nil {
		return nil, fmt.Errorf("decode registration response: missing deviceInfo")
	}
	return out.DeviceInfo, nil
}

// Subscribe streams snapshots over a websocket, redialling with exponential
// backoff whenever the stream drops.
func (c *HTTPClient) Subscribe(ctx context.Context) (*Subscription, error) {
	url, err := c.streamURL()
	if err != nil {
		return nil, err
	}

	sub := newSubscription(ctx, func(ctx context.Context, sub *Subscription) error {
		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = 250 * time.Millisecond
		bo.MaxInterval = c.maxBackoff
		bo.MaxElapsedTime = 0

		err := backoff.RetryNotify(func() error {
			err := c.stream(ctx, url, sub, bo.Reset)
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}, backoff.WithContext(bo, ctx), func(err error, wait time.Duration) {
			c.logger.Warn().Err(err).Dur("retry_in", wait).Msg("device stream dropped, resubscribing")
		})
		if ctx.Err() != nil {
			return nil
		}
		return err
	})
	return sub, nil
}

func (c *HTTPClient) stream(ctx context.Context, url string, sub *Subscription, connected func()) error {
	conn, resp, err := c.dialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("dial device stream: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	connected()
	c.logger.Debug().Str("url", url).Msg("device stream connected")

	_ = conn.SetReadDeadline(time.Now().Add(streamReadWait))
	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(streamReadWait))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(10*time.Second))
	})

	for {
		var snap Snapshot
		if err := conn.ReadJSON(&snap); err != nil {
			return fmt.Errorf("read device stream: %w", err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(streamReadWait))
		if snap == nil {
			snap = Snapshot{}
		}
		sub.publish(snap)
	}
}

func (c *HTTPClient) streamURL() (string, error) {
	switch {
	case strings.HasPrefix(c.baseURL, "https://"):
		return "wss://" + strings.TrimPrefix(c.baseURL, "https://") + streamPath, nil
	case strings.HasPrefix(c.baseURL, "http://"):
		return "ws://" + strings.TrimPrefix(c.baseURL, "http://") + streamPath, nil
	default:
		return "", fmt.Errorf("registry base URL must be http or https: %q", c.baseURL)
	}
}

func decodeStatusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	statusErr := &StatusError{StatusCode: resp.StatusCode}

	var problem models.Problem
	if json.Unmarshal(body, &problem) == nil {
		statusErr.Detail = problem.Detail
	}
	return statusErr
}

// Ensure HTTPClient implements Store interface.
var _ Store = (*HTTPClient)(nil)
