package device

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// ChangeChannel is the Postgres NOTIFY channel raised by the devices trigger.
const ChangeChannel = "devices_changed"

// PostgresListener forwards NOTIFY events on ChangeChannel into a Hub so that
// writes made by other API instances reach this instance's subscribers.
type PostgresListener struct {
	pool   *pgxpool.Pool
	hub    *Hub
	logger zerolog.Logger
}

// NewPostgresListener creates a listener feeding hub.
func NewPostgresListener(pool *pgxpool.Pool, hub *Hub, logger zerolog.Logger) *PostgresListener {
	return &PostgresListener{pool: pool, hub: hub, logger: logger}
}

// Run listens until ctx is canceled, reconnecting with exponential backoff
// when the dedicated connection drops.
func (l *PostgresListener) Run(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 0

	return backoff.Retry(func() error {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		l.logger.Warn().Err(err).Msg("device change listener dropped, reconnecting")
		return err
	}, backoff.WithContext(bo, ctx))
}

func (l *PostgresListener) listen(ctx context.Context) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listen connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+ChangeChannel); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	l.logger.Info().Str("channel", ChangeChannel).Msg("listening for device changes")

	// Writes missed while disconnected are covered by one catch-up signal.
	l.hub.NotifyRemote()

	for {
		if _, err := conn.Conn().WaitForNotification(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			return fmt.Errorf("wait for notification: %w", err)
		}
		l.hub.NotifyRemote()
	}
}
