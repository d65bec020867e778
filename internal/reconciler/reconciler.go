// Package reconciler keeps a device's registration in the registry in step
// with its push token and locally edited display name.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/swarmpush/swarmpush/internal/device"
	"github.com/swarmpush/swarmpush/internal/registry"
)

// ErrNoToken is returned by Submit before a push token is known.
var ErrNoToken = errors.New("no push token")

// State is the registration state for the session.
type State int

const (
	StateUnregistered State = iota
	StateRegistering
	StateRegistered
)

func (s State) String() string {
	switch s {
	case StateRegistering:
		return "registering"
	case StateRegistered:
		return "registered"
	default:
		return "unregistered"
	}
}

// HardwareInfo describes the device doing the registering.
type HardwareInfo struct {
	Brand string
	Model string
}

// ReconcileName picks the display name after a successful registration.
// The stored name is adopted only when there is no local name and this
// session has not yet been marked submitted.
func ReconcileName(local, remote string, submitted bool) string {
	if local == "" && remote != "" && !submitted {
		return remote
	}
	return local
}

// Reconciler is safe for concurrent use. At most one upsert per token is in
// flight; triggers that overlap a flight join it, and a follow-up upsert runs
// once afterwards if the name was edited in the meantime.
type Reconciler struct {
	store  registry.Store
	hw     HardwareInfo
	logger zerolog.Logger
	group  singleflight.Group

	mu          sync.Mutex
	token       string
	name        string
	submitted   bool
	echoHandled bool
	editGen     uint64
	sentGen     uint64
	state       State
	followUp    bool
}

// New creates a reconciler with no token and an empty name.
func New(store registry.Store, hw HardwareInfo, logger zerolog.Logger) *Reconciler {
	return &Reconciler{store: store, hw: hw, logger: logger}
}

// SetToken records the push token and registers if the session has not
// submitted yet. A changed token always re-registers.
func (r *Reconciler) SetToken(ctx context.Context, token string) error {
	r.mu.Lock()
	if token != r.token {
		r.token = token
		r.submitted = false
	}
	r.mu.Unlock()
	return r.Trigger(ctx)
}

// EditName sets the local display name and marks the registration stale.
// Nothing is sent until the next Trigger or Submit.
func (r *Reconciler) EditName(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.name = name
	r.submitted = false
	r.editGen++
}

// Trigger registers when a token is present and the session is not
// submitted. It is a no-op otherwise.
func (r *Reconciler) Trigger(ctx context.Context) error {
	r.mu.Lock()
	need := r.token != "" && !r.submitted
	r.mu.Unlock()
	if !need {
		return nil
	}
	return r.Submit(ctx)
}

// Submit registers unconditionally. Errors leave the session unsubmitted and
// are safe to retry. On success the name as of the call has been stored,
// even when the call joined a flight that started before the last edit.
func (r *Reconciler) Submit(ctx context.Context) error {
	r.mu.Lock()
	token := r.token
	want := r.editGen
	if r.state == StateRegistering {
		r.followUp = true
	}
	r.mu.Unlock()

	if token == "" {
		return ErrNoToken
	}

	for {
		_, err, _ := r.group.Do(token, func() (interface{}, error) {
			return nil, r.run(ctx)
		})
		if err != nil {
			return err
		}

		r.mu.Lock()
		stale := r.token == token && r.sentGen < want
		r.mu.Unlock()
		if !stale {
			return nil
		}
	}
}

func (r *Reconciler) run(ctx context.Context) error {
	for {
		r.mu.Lock()
		r.state = StateRegistering
		r.followUp = false
		gen := r.editGen
		reg := device.NewRegistration(r.token, optional(r.hw.Brand), optional(r.hw.Model), optional(r.name))
		r.mu.Unlock()

		stored, err := r.store.Upsert(ctx, reg)

		r.mu.Lock()
		if err != nil {
			r.state = StateUnregistered
			r.mu.Unlock()
			r.logger.Warn().Err(err).Msg("device registration failed, will retry on next trigger")
			return fmt.Errorf("register device: %w", err)
		}

		// A name edited during the flight wins over anything echoed back.
		if gen == r.editGen {
			if !r.echoHandled && stored != nil && stored.UserName != nil {
				r.name = ReconcileName(r.name, *stored.UserName, r.submitted)
			}
			r.echoHandled = true
			r.submitted = true
			r.sentGen = gen
		}
		r.state = StateRegistered
		again := r.followUp && !r.submitted
		r.followUp = false
		r.mu.Unlock()

		r.logger.Debug().Bool("follow_up", again).Msg("device registered")
		if !again {
			return nil
		}
	}
}

// Name returns the local display name.
func (r *Reconciler) Name() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.name
}

// Token returns the push token, if any.
func (r *Reconciler) Token() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.token
}

// Submitted reports whether the current name and token are registered.
func (r *Reconciler) Submitted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.submitted
}

// State returns the registration state.
func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
