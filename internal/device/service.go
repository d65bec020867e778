package device

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Service provides device registry operations and announces every
// successful write on its Hub.
type Service struct {
	repo   Repository
	hub    *Hub
	logger zerolog.Logger
}

// NewService creates a new device service. A nil hub gets a private one.
func NewService(repo Repository, hub *Hub, logger zerolog.Logger) *Service {
	if hub == nil {
		hub = NewHub()
	}
	return &Service{repo: repo, hub: hub, logger: logger}
}

// Hub returns the change hub written to by this service.
func (s *Service) Hub() *Hub {
	return s.hub
}

// List retrieves all registrations.
func (s *Service) List(ctx context.Context) ([]*Registration, error) {
	return s.repo.List(ctx)
}

// Get retrieves a registration by push token.
func (s *Service) Get(ctx context.Context, pushToken string) (*Registration, error) {
	return s.repo.Get(ctx, pushToken)
}

// Register creates or updates the registration for reg.PushToken and returns
// the stored record, which carries any previously stored user name when
// reg.UserName is nil.
func (s *Service) Register(ctx context.Context, reg *Registration) (*Registration, bool, error) {
	reg.PushToken = strings.TrimSpace(reg.PushToken)
	if reg.PushToken == "" {
		return nil, false, ErrEmptyPushToken
	}
	if reg.DeviceID == nil {
		if id, ok := ExtractDeviceID(reg.PushToken); ok {
			reg.DeviceID = &id
		}
	}

	stored, created, err := s.repo.Upsert(ctx, reg)
	if err != nil {
		return nil, false, fmt.Errorf("upsert device: %w", err)
	}

	s.logger.Debug().
		Str("device_id", deref(stored.DeviceID)).
		Bool("created", created).
		Msg("device registered")

	s.hub.Notify()
	return stored, created, nil
}

// Unregister removes a registration. This is an administrative action; the
// registration flow never deletes.
func (s *Service) Unregister(ctx context.Context, pushToken string) error {
	if err := s.repo.Delete(ctx, pushToken); err != nil {
		return err
	}
	s.hub.Notify()
	return nil
}
