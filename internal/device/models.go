// Package device provides device registration storage for push notifications.
package device

import (
	"errors"
	"time"
)

// Repository errors.
var (
	ErrDeviceNotFound = errors.New("device not found")
	ErrEmptyPushToken = errors.New("push token is required")
)

// Registration is the registry record for one app installation on one device.
// PushToken is the registry key.
type Registration struct {
	PushToken  string    `json:"pushToken"`
	DeviceID   *string   `json:"deviceId,omitempty"`
	Brand      *string   `json:"brand,omitempty"`
	DeviceName *string   `json:"deviceName,omitempty"`
	UserName   *string   `json:"userName,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// DisplayName returns the user name, or "Anonymous" when none is set.
func (r *Registration) DisplayName() string {
	if r.UserName == nil || *r.UserName == "" {
		return "Anonymous"
	}
	return *r.UserName
}

// Hardware returns "brand - model" for display purposes.
func (r *Registration) Hardware() string {
	return deref(r.Brand) + " - " + deref(r.DeviceName)
}

// NewRegistration builds a registration for a push token, deriving DeviceID
// from the token when it contains a bracketed identifier.
func NewRegistration(pushToken string, brand, deviceName, userName *string) Registration {
	reg := Registration{
		PushToken:  pushToken,
		Brand:      brand,
		DeviceName: deviceName,
		UserName:   userName,
	}
	if id, ok := ExtractDeviceID(pushToken); ok {
		reg.DeviceID = &id
	}
	return reg
}

// copyRegistration creates a deep copy of a registration.
func copyRegistration(r *Registration) *Registration {
	if r == nil {
		return nil
	}

	c := &Registration{
		PushToken: r.PushToken,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	c.DeviceID = copyString(r.DeviceID)
	c.Brand = copyString(r.Brand)
	c.DeviceName = copyString(r.DeviceName)
	c.UserName = copyString(r.UserName)

	return c
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
