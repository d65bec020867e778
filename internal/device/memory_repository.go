package device

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryRepository is an in-memory implementation of Repository.
// Used in tests and for single-process runs with DB_DRIVER=memory.
type InMemoryRepository struct {
	mu      sync.RWMutex
	devices map[string]*Registration // keyed by push token
	now     func() time.Time
}

// NewInMemoryRepository creates a new in-memory device repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		devices: make(map[string]*Registration),
		now:     time.Now,
	}
}

// Get retrieves a registration by push token.
func (r *InMemoryRepository) Get(_ context.Context, pushToken string) (*Registration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.devices[pushToken]
	if !ok {
		return nil, ErrDeviceNotFound
	}

	return copyRegistration(reg), nil
}

// List retrieves all registrations ordered by creation time.
func (r *InMemoryRepository) List(_ context.Context) ([]*Registration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]*Registration, 0, len(r.devices))
	for _, reg := range r.devices {
		items = append(items, copyRegistration(reg))
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].PushToken < items[j].PushToken
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})

	return items, nil
}

// Upsert creates or replaces the registration keyed by its push token.
func (r *InMemoryRepository) Upsert(_ context.Context, reg *Registration) (*Registration, bool, error) {
	if reg.PushToken == "" {
		return nil, false, ErrEmptyPushToken
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	stored := copyRegistration(reg)
	stored.UpdatedAt = now

	existing, ok := r.devices[reg.PushToken]
	if ok {
		stored.CreatedAt = existing.CreatedAt
		if stored.UserName == nil {
			stored.UserName = copyString(existing.UserName)
		}
	} else {
		stored.CreatedAt = now
	}

	r.devices[reg.PushToken] = stored
	return copyRegistration(stored), !ok, nil
}

// Delete removes a registration.
func (r *InMemoryRepository) Delete(_ context.Context, pushToken string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.devices[pushToken]; !ok {
		return ErrDeviceNotFound
	}

	delete(r.devices, pushToken)
	return nil
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
