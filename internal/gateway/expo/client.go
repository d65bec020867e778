// Package expo is a dispatch.Gateway for the Expo push service.
package expo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/swarmpush/swarmpush/internal/dispatch"
	"github.com/swarmpush/swarmpush/internal/provider/resilience"
)

const (
	// DefaultURL is the Expo push send endpoint.
	DefaultURL = "https://exp.host/--/api/v2/push/send"

	// ProviderName identifies this gateway in the provider registry.
	ProviderName = "expo"
)

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the Expo client.
type ClientConfig struct {
	// URL defaults to DefaultURL.
	URL string

	// AccessToken is sent as a bearer token when push security is enabled
	// on the Expo project.
	AccessToken string

	// HTTPClient defaults to a resilient client that never retries.
	HTTPClient HTTPDoer

	// Registry receives health records for the default client.
	Registry *resilience.Registry

	Timeout time.Duration
}

// Client pushes messages through Expo.
type Client struct {
	url         string
	accessToken string
	httpClient  HTTPDoer
}

// NewClient creates an Expo gateway.
func NewClient(cfg ClientConfig) *Client {
	url := cfg.URL
	if url == "" {
		url = DefaultURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		rc := resilience.DefaultClientConfig(ProviderName)
		rc.Retries = 0
		rc.Registry = cfg.Registry
		if cfg.Timeout > 0 {
			rc.Timeout = cfg.Timeout
		}
		httpClient = resilience.NewClient(rc)
	}

	return &Client{url: url, accessToken: cfg.AccessToken, httpClient: httpClient}
}

type pushResponse struct {
	Data   []pushTicket `json:"data"`
	Errors []pushError  `json:"errors"`
}

type pushError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type pushTicket struct {
	Status  string `json:"status"`
	ID      string `json:"id"`
	Message string `json:"message"`
	Details struct {
		Error string `json:"error"`
	} `json:"details"`
}

// StatusError is a non-2xx answer from Expo. Code and Message carry the
// first request-level error Expo reported, if any.
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Code == "" && e.Message == "" {
		return fmt.Sprintf("expo push: unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("expo push: unexpected status %d: %s: %s", e.StatusCode, e.Code, e.Message)
}

func newStatusError(status int, body []byte) *StatusError {
	serr := &StatusError{StatusCode: status, Body: string(body)}
	var pr pushResponse
	if json.Unmarshal(body, &pr) == nil && len(pr.Errors) > 0 {
		serr.Code = pr.Errors[0].Code
		serr.Message = pr.Errors[0].Message
	}
	return serr
}

// Push sends all messages in one request. Any 2xx status means Expo accepted
// the batch; tickets are returned when the body carries them.
func (c *Client) Push(ctx context.Context, messages []dispatch.Message) ([]dispatch.Ticket, error) {
	payload, err := json.Marshal(messages)
	if err != nil {
		return nil, fmt.Errorf("encode messages: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newStatusError(resp.StatusCode, body)
	}

	return parseTickets(body, messages), nil
}

// parseTickets maps Expo's data array onto recipients. Unparseable or
// mismatched bodies yield no tickets; acceptance is decided by status alone.
func parseTickets(body []byte, messages []dispatch.Message) []dispatch.Ticket {
	var pr pushResponse
	if err := json.Unmarshal(body, &pr); err != nil || len(pr.Data) != len(messages) {
		return nil
	}

	tickets := make([]dispatch.Ticket, len(pr.Data))
	for i, t := range pr.Data {
		status := dispatch.TicketOK
		if t.Status == "error" {
			status = dispatch.TicketError
		}
		tickets[i] = dispatch.Ticket{
			To:      messages[i].To,
			Status:  status,
			ID:      t.ID,
			Message: t.Message,
			Error:   t.Details.Error,
		}
	}
	return tickets
}

var _ dispatch.Gateway = (*Client)(nil)
