// Unified error handling for the MMU sensor host.
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package errors

import "fmt"

// ErrorCode represents the category of error
type ErrorCode string

const (
	// Configuration errors
	ErrConfigSection    ErrorCode = "CONFIG_SECTION"
	ErrConfigOption     ErrorCode = "CONFIG_OPTION"
	ErrConfigValidation ErrorCode = "CONFIG_VALIDATION"
	ErrConfigType       ErrorCode = "CONFIG_TYPE"

	// Sensor runtime errors
	ErrSensorUnknown  ErrorCode = "SENSOR_UNKNOWN"
	ErrSensorDispatch ErrorCode = "SENSOR_DISPATCH"

	// Homing protocol errors
	ErrHomingNoTrigger ErrorCode = "HOMING_NO_TRIGGER"

	// Transport errors
	ErrTransport ErrorCode = "TRANSPORT"
)

// HostError is the unified error type for the sensor host
type HostError struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// Sensor is the originating sensor name, if any
	Sensor string

	// Option is the config option name (if applicable)
	Option string

	// Err wraps the underlying error
	Err error
}

// Error implements the error interface
func (e *HostError) Error() string {
	if e.Sensor != "" {
		return fmt.Sprintf("[%s:%s] %s", e.Code, e.Sensor, e.Message)
	}
	if e.Option != "" {
		return fmt.Sprintf("[%s:%s] %s", e.Code, e.Option, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *HostError) Unwrap() error {
	return e.Err
}

// SetSensor sets the originating sensor name
func (e *HostError) SetSensor(name string) *HostError {
	e.Sensor = name
	return e
}

// SetOption sets the config option
func (e *HostError) SetOption(option string) *HostError {
	e.Option = option
	return e
}

// New creates a new HostError
func New(code ErrorCode, message string) *HostError {
	return &HostError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, code ErrorCode, message string) *HostError {
	return &HostError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ConfigValidationError creates an error for config validation failure
func ConfigValidationError(option, reason string) *HostError {
	return New(ErrConfigValidation, fmt.Sprintf("option '%s': %s", option, reason)).
		SetOption(option)
}

// ConfigTypeError creates an error for config type conversion failure
func ConfigTypeError(option, value, targetType string, err error) *HostError {
	return Wrap(err, ErrConfigType,
		fmt.Sprintf("option '%s': failed to parse '%s' as %s", option, value, targetType)).
		SetOption(option)
}

// UnknownSensorError creates an error for sensor lookup failure
func UnknownSensorError(name string) *HostError {
	return New(ErrSensorUnknown, fmt.Sprintf("no sensor named '%s'", name)).
		SetSensor(name)
}

// NoTriggerError reports that a homing move finished without the sensor
// ever reaching the requested presence state.
func NoTriggerError(name string) *HostError {
	return New(ErrHomingNoTrigger, fmt.Sprintf("no trigger on %s after full movement", name)).
		SetSensor(name)
}

// DispatchError creates an error for a failed response dispatch
func DispatchError(name string, err error) *HostError {
	return Wrap(err, ErrSensorDispatch, "response script failed").SetSensor(name)
}

// Is checks if error matches given error code
func Is(err error, code ErrorCode) bool {
	if hostErr, ok := err.(*HostError); ok {
		return hostErr.Code == code
	}
	return false
}

// IsConfig checks if error is a config error
func IsConfig(err error) bool {
	return Is(err, ErrConfigSection) ||
		Is(err, ErrConfigOption) ||
		Is(err, ErrConfigValidation) ||
		Is(err, ErrConfigType)
}
