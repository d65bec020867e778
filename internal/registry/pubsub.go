package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/swarmpush/swarmpush/internal/device"
)

const instanceAttribute = "instance"

// PubSubRelayConfig configures a PubSubRelay.
type PubSubRelayConfig struct {
	ProjectID    string
	Topic        string
	Subscription string
	Hub          *device.Hub
	Logger       zerolog.Logger
}

// PubSubRelay forwards registry changes between API instances over Google
// Pub/Sub. Local writes are published; messages from other instances wake
// local subscribers. Each instance needs its own subscription.
type PubSubRelay struct {
	client     *pubsub.Client
	publisher  *pubsub.Publisher
	subscriber *pubsub.Subscriber
	hub        *device.Hub
	instanceID string
	pending    chan struct{}
	logger     zerolog.Logger
}

type changeMessage struct {
	Event string    `json:"event"`
	At    time.Time `json:"at"`
}

// NewPubSubRelay connects to Pub/Sub and hooks into the hub's local changes.
func NewPubSubRelay(ctx context.Context, cfg PubSubRelayConfig) (*PubSubRelay, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.Subscription)
	subscriber.ReceiveSettings.MaxOutstandingMessages = 10

	r := &PubSubRelay{
		client:     client,
		publisher:  client.Publisher(cfg.Topic),
		subscriber: subscriber,
		hub:        cfg.Hub,
		instanceID: uuid.NewString(),
		pending:    make(chan struct{}, 1),
		logger:     cfg.Logger.With().Str("component", "pubsub_relay").Logger(),
	}
	cfg.Hub.OnLocalChange(r.signal)
	return r, nil
}

// Run publishes and receives until ctx is canceled.
func (r *PubSubRelay) Run(ctx context.Context) error {
	r.logger.Info().Str("instance", r.instanceID).Msg("starting registry change relay")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.publishLoop(ctx)
	})
	g.Go(func() error {
		return r.subscriber.Receive(ctx, func(_ context.Context, msg *pubsub.Message) {
			if r.accept(msg.Attributes) {
				r.logger.Debug().Str("message_id", msg.ID).Msg("remote registry change")
			}
			msg.Ack()
		})
	})
	return g.Wait()
}

// Close stops the publisher and closes the client.
func (r *PubSubRelay) Close() error {
	r.publisher.Stop()
	return r.client.Close()
}

// signal queues a publish; bursts collapse into one message.
func (r *PubSubRelay) signal() {
	select {
	case r.pending <- struct{}{}:
	default:
	}
}

func (r *PubSubRelay) publishLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-r.pending:
		}

		data, err := json.Marshal(changeMessage{Event: device.ChangeChannel, At: time.Now().UTC()})
		if err != nil {
			return fmt.Errorf("encode change message: %w", err)
		}
		res := r.publisher.Publish(ctx, &pubsub.Message{
			Data:       data,
			Attributes: map[string]string{instanceAttribute: r.instanceID},
		})
		if _, err := res.Get(ctx); err != nil && ctx.Err() == nil {
			r.logger.Warn().Err(err).Msg("failed to publish registry change")
		}
	}
}

// accept forwards changes that did not originate here.
func (r *PubSubRelay) accept(attrs map[string]string) bool {
	if attrs[instanceAttribute] == r.instanceID {
		return false
	}
	r.hub.NotifyRemote()
	return true
}
