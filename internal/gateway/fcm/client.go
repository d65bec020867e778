// Package fcm is a dispatch.Gateway for Firebase Cloud Messaging.
package fcm

import (
	"context"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"github.com/swarmpush/swarmpush/internal/dispatch"
)

// ProviderName identifies this gateway.
const ProviderName = "fcm"

// maxBatch is the SendEach limit.
const maxBatch = 500

// ErrNoCredentials is returned when no credentials file is configured.
var ErrNoCredentials = errors.New("fcm: credentials file not configured")

// Sender is the subset of messaging.Client used here.
type Sender interface {
	SendEach(ctx context.Context, messages []*messaging.Message) (*messaging.BatchResponse, error)
}

// Client pushes messages through FCM.
type Client struct {
	sender Sender
	logger zerolog.Logger
}

// NewClient wraps an existing sender.
func NewClient(sender Sender, logger zerolog.Logger) *Client {
	return &Client{sender: sender, logger: logger}
}

// NewFromCredentials initializes a Firebase app from a service account file.
func NewFromCredentials(ctx context.Context, credentialsFile string, logger zerolog.Logger) (*Client, error) {
	if credentialsFile == "" {
		return nil, ErrNoCredentials
	}

	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	mc, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("init messaging client: %w", err)
	}

	logger.Info().Msg("firebase messaging initialized")
	return NewClient(mc, logger), nil
}

// Push sends messages with SendEach, in batches of at most 500. A transport
// error on any batch fails the whole push; per-token failures become error
// tickets.
func (c *Client) Push(ctx context.Context, messages []dispatch.Message) ([]dispatch.Ticket, error) {
	tickets := make([]dispatch.Ticket, 0, len(messages))

	for start := 0; start < len(messages); start += maxBatch {
		end := min(start+maxBatch, len(messages))
		batch := messages[start:end]

		br, err := c.sender.SendEach(ctx, ToFCM(batch))
		if err != nil {
			return nil, fmt.Errorf("fcm send: %w", err)
		}
		tickets = append(tickets, toTickets(batch, br)...)

		if br.FailureCount > 0 {
			c.logger.Warn().Int("failures", br.FailureCount).Int("batch", len(batch)).Msg("fcm reported per-token failures")
		}
	}
	return tickets, nil
}

// ToFCM converts dispatch messages to FCM messages.
func ToFCM(messages []dispatch.Message) []*messaging.Message {
	out := make([]*messaging.Message, len(messages))
	for i, m := range messages {
		out[i] = &messaging.Message{
			Token: m.To,
			Notification: &messaging.Notification{
				Title: m.Title,
				Body:  m.Body,
			},
			Android: &messaging.AndroidConfig{Priority: "high"},
			APNS: &messaging.APNSConfig{
				Payload: &messaging.APNSPayload{Aps: &messaging.Aps{Sound: "default"}},
			},
		}
	}
	return out
}

func toTickets(batch []dispatch.Message, br *messaging.BatchResponse) []dispatch.Ticket {
	tickets := make([]dispatch.Ticket, len(batch))
	for i, m := range batch {
		tickets[i] = dispatch.Ticket{To: m.To, Status: dispatch.TicketOK}
		if i >= len(br.Responses) || br.Responses[i] == nil {
			continue
		}
		resp := br.Responses[i]
		if resp.Success {
			tickets[i].ID = resp.MessageID
			continue
		}
		tickets[i].Status = dispatch.TicketError
		if resp.Error != nil {
			tickets[i].Error = resp.Error.Error()
		}
	}
	return tickets
}

var _ dispatch.Gateway = (*Client)(nil)
