package device

import "context"

// Repository defines the interface for registration persistence.
type Repository interface {
	// Get retrieves a registration by push token.
	Get(ctx context.Context, pushToken string) (*Registration, error)

	// List retrieves all registrations.
	List(ctx context.Context) ([]*Registration, error)

	// Upsert creates or replaces the registration for reg.PushToken.
	// A nil UserName keeps the stored name. The stored record is returned
	// together with whether it was newly created.
	Upsert(ctx context.Context, reg *Registration) (stored *Registration, created bool, err error)

	// Delete removes the registration for a push token.
	Delete(ctx context.Context, pushToken string) error
}
