// Package registry is the client side of the device registry: registration
// writes and live, full-set snapshots of all registered devices.
package registry

import (
	"context"
	"sync"

	"github.com/swarmpush/swarmpush/internal/device"
)

// Store is the registry as seen by clients.
type Store interface {
	// Upsert writes a registration and returns the record as stored, which
	// may carry a user name persisted by an earlier registration.
	Upsert(ctx context.Context, reg device.Registration) (*device.Registration, error)

	// Subscribe starts a live view of all registrations. The first snapshot
	// is the current set; later ones follow every change.
	Subscribe(ctx context.Context) (*Subscription, error)
}

// Snapshot is the full registration set at one point in time.
type Snapshot []device.Registration

// Subscription delivers snapshots until closed. Delivery keeps only the most
// recent undelivered snapshot.
type Subscription struct {
	out    chan Snapshot
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once

	mu      sync.Mutex
	err     error
	pending *Snapshot
	wake    chan struct{}
}

// newSubscription starts run in its own goroutine. run publishes with
// sub.publish and returns when ctx is done or on a fatal error.
func newSubscription(parent context.Context, run func(ctx context.Context, sub *Subscription) error) *Subscription {
	ctx, cancel := context.WithCancel(parent)
	sub := &Subscription{
		out:    make(chan Snapshot),
		cancel: cancel,
		done:   make(chan struct{}),
		wake:   make(chan struct{}, 1),
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer cancel()
		if err := run(ctx, sub); err != nil && ctx.Err() == nil {
			sub.mu.Lock()
			sub.err = err
			sub.mu.Unlock()
		}
	}()
	go func() {
		defer wg.Done()
		sub.deliver(ctx)
	}()
	go func() {
		wg.Wait()
		close(sub.out)
		close(sub.done)
	}()

	return sub
}

// Snapshots returns the delivery channel. It is closed after Close or when
// the subscription fails; check Err in the latter case.
func (s *Subscription) Snapshots() <-chan Snapshot {
	return s.out
}

// Close stops the subscription and waits for its goroutines to exit. No
// snapshot is delivered after Close returns.
func (s *Subscription) Close() {
	s.once.Do(s.cancel)
	<-s.done
}

// Done is closed once the subscription has fully stopped.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Err returns the error that ended the subscription, if any.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// publish replaces the pending snapshot.
func (s *Subscription) publish(snap Snapshot) {
	s.mu.Lock()
	s.pending = &snap
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Subscription) deliver(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.wake:
		}

		s.mu.Lock()
		snap := s.pending
		s.pending = nil
		s.mu.Unlock()
		if snap == nil {
			continue
		}

		select {
		case s.out <- *snap:
		case <-ctx.Done():
			return
		}
	}
}

func toSnapshot(regs []*device.Registration) Snapshot {
	snap := make(Snapshot, 0, len(regs))
	for _, r := range regs {
		snap = append(snap, *r)
	}
	return snap
}
