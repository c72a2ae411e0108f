package output

import "errors"

// ErrOutputStalled is returned by AudioOutput.WriteBlocking when the
// producer could not push the full slice before the configured timeout
// elapsed. Not fatal at the output level; the Manager decides.
var ErrOutputStalled = errors.New("output: write stalled")

// ErrNoDefaultDevice is returned when a Host exposes no default output
// device.
var ErrNoDefaultDevice = errors.New("output: no default output device")

// ErrUnsupportedConfiguration is returned when no device configuration
// matches a requested rate/channel/format combination closely enough.
var ErrUnsupportedConfiguration = errors.New("output: no supported device configuration")

// OutputDeviceConfigError wraps a failure while querying or resolving a
// device's configuration.
type OutputDeviceConfigError struct {
	Device string
	Err    error
}

func (e *OutputDeviceConfigError) Error() string {
	return "output: device config error for " + e.Device + ": " + e.Err.Error()
}
func (e *OutputDeviceConfigError) Unwrap() error { return e.Err }

// OpenStreamError wraps a failure opening a native output stream.
type OpenStreamError struct{ Err error }

func (e *OpenStreamError) Error() string { return "output: open stream: " + e.Err.Error() }
func (e *OpenStreamError) Unwrap() error { return e.Err }

// StartStreamError wraps a failure starting an opened stream.
type StartStreamError struct{ Err error }

func (e *StartStreamError) Error() string { return "output: start stream: " + e.Err.Error() }
func (e *StartStreamError) Unwrap() error { return e.Err }

// LoadDevicesError wraps a failure enumerating a host's devices.
type LoadDevicesError struct{ Err error }

func (e *LoadDevicesError) Error() string { return "output: load devices: " + e.Err.Error() }
func (e *LoadDevicesError) Unwrap() error { return e.Err }

// LoadConfigsError wraps a failure enumerating a device's supported configs.
type LoadConfigsError struct{ Err error }

func (e *LoadConfigsError) Error() string { return "output: load configs: " + e.Err.Error() }
func (e *LoadConfigsError) Unwrap() error { return e.Err }
