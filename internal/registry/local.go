package registry

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/swarmpush/swarmpush/internal/device"
)

// Local is a Store backed directly by a device.Service in this process.
type Local struct {
	service *device.Service
	logger  zerolog.Logger
}

// NewLocal creates an in-process registry store.
func NewLocal(service *device.Service, logger zerolog.Logger) *Local {
	return &Local{service: service, logger: logger}
}

// Upsert registers the device through the service.
func (l *Local) Upsert(ctx context.Context, reg device.Registration) (*device.Registration, error) {
	stored, _, err := l.service.Register(ctx, &reg)
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// Subscribe watches the service's hub and re-lists on every change.
func (l *Local) Subscribe(ctx context.Context) (*Subscription, error) {
	changes, stop := l.service.Hub().Watch()

	sub := newSubscription(ctx, func(ctx context.Context, sub *Subscription) error {
		defer stop()

		if err := l.publishCurrent(ctx, sub); err != nil {
			return err
		}
		for {
			select {
			case <-ctx.Done():
				return nil
			case _, ok := <-changes:
				if !ok {
					return nil
				}
				if err := l.publishCurrent(ctx, sub); err != nil {
					return err
				}
			}
		}
	})
	return sub, nil
}

func (l *Local) publishCurrent(ctx context.Context, sub *Subscription) error {
	regs, err := l.service.List(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		l.logger.Error().Err(err).Msg("failed to list devices for snapshot")
		return fmt.Errorf("list devices: %w", err)
	}
	sub.publish(toSnapshot(regs))
	return nil
}

// Ensure Local implements Store interface.
var _ Store = (*Local)(nil)
