package models

import "github.com/swarmpush/swarmpush/internal/device"

// DeviceRegisterRequest is the body the app posts on launch and on submit.
type DeviceRegisterRequest struct {
	PushToken  string  `json:"pushToken"`
	DeviceID   *string `json:"deviceId,omitempty"`
	Brand      *string `json:"brand,omitempty"`
	DeviceName *string `json:"deviceName,omitempty"`
	UserName   *string `json:"userName,omitempty"`
}

// Validate returns field errors for the request.
func (r *DeviceRegisterRequest) Validate() []FieldError {
	var errs []FieldError
	if r.PushToken == "" {
		errs = append(errs, FieldError{Field: "pushToken", Message: "is required", Code: "REQUIRED"})
	}
	if r.UserName != nil && len(*r.UserName) > 80 {
		errs = append(errs, FieldError{Field: "userName", Message: "must be at most 80 characters", Code: "TOO_LONG"})
	}
	return errs
}

// Registration converts the request to a domain registration.
func (r *DeviceRegisterRequest) Registration() *device.Registration {
	return &device.Registration{
		PushToken:  r.PushToken,
		DeviceID:   r.DeviceID,
		Brand:      r.Brand,
		DeviceName: r.DeviceName,
		UserName:   r.UserName,
	}
}

// DeviceRegisterResponse echoes the stored registration, including a user
// name persisted by an earlier registration.
type DeviceRegisterResponse struct {
	Message    string               `json:"message"`
	DeviceInfo *device.Registration `json:"deviceInfo"`
}

// DeviceList is the full set of registered devices.
type DeviceList struct {
	Items []*device.Registration `json:"items"`
}
