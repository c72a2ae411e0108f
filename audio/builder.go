// Package audio composes decoder.Decoder, decoder.ResampledDecoder and
// output.AudioOutput into Manager, a push-style playback coordinator.
package audio

import (
	"log"
	"strings"
	"sync"

	"github.com/richinsley/goplayback/audio/output"
)

// Host is an alias for output.Host so callers of this package never need to
// import the output package just to construct a builder.
type Host = output.Host

// OutputBuilder resolves requested output configurations against the
// devices a Host actually exposes and constructs output.AudioOutput
// instances bound to them.
type OutputBuilder struct {
	host            Host
	onDeviceChanged func()
	onError         func(output.StreamError)

	mu            sync.RWMutex
	currentDevice *string
	settings      output.Settings

	watchdog *output.Watchdog
}

// NewOutputBuilder wires a Host to device-change/error callbacks and starts
// the default-device watchdog. The portaudio backend delivers no native
// default-device-change notification, so the watchdog runs on every
// platform rather than being compiled in selectively.
func NewOutputBuilder(host Host, settings output.Settings, onDeviceChanged func(), onError func(output.StreamError)) *OutputBuilder {
	b := &OutputBuilder{
		host:            host,
		onDeviceChanged: onDeviceChanged,
		onError:         onError,
		settings:        settings,
	}
	b.watchdog = output.NewWatchdog(host, func() {
		if b.onDeviceChanged != nil {
			b.onDeviceChanged()
		}
	})
	b.watchdog.Start()
	return b
}

func (b *OutputBuilder) Settings() output.Settings { return b.settings }
func (b *OutputBuilder) SetSettings(s output.Settings) {
	b.mu.Lock()
	b.settings = s
	b.mu.Unlock()
}

func (b *OutputBuilder) DefaultOutputConfig() (output.SupportedStreamConfig, error) {
	device, ok := b.host.DefaultOutputDevice()
	if !ok {
		return output.SupportedStreamConfig{}, output.ErrNoDefaultDevice
	}
	return device.DefaultOutputConfig()
}

func (b *OutputBuilder) OutputDevices() ([]output.Device, error) { return b.host.OutputDevices() }

// resolveDevice finds the named device, trimming whitespace on both sides
// of the comparison: device names sourced from OS APIs can carry trailing
// whitespace that would otherwise cause a spurious fallback. Falls back to
// the default device if no name is given or no match is found.
func (b *OutputBuilder) resolveDevice(deviceName *string) (output.Device, error) {
	defaultDevice, ok := b.host.DefaultOutputDevice()
	if !ok {
		return nil, output.ErrNoDefaultDevice
	}
	if deviceName == nil {
		return defaultDevice, nil
	}
	devices, err := b.host.OutputDevices()
	if err != nil {
		return nil, &output.LoadDevicesError{Err: err}
	}
	target := strings.TrimSpace(*deviceName)
	for _, d := range devices {
		name, err := d.Name()
		if err == nil && strings.TrimSpace(name) == target {
			return d, nil
		}
	}
	return defaultDevice, nil
}

// FindClosestConfig resolves req against the named (or default) device's
// default config and supported-config list, falling back to the device's
// default config if nothing closer matches.
func (b *OutputBuilder) FindClosestConfig(deviceName *string, req output.RequestedOutputConfig) (output.SupportedStreamConfig, error) {
	device, err := b.resolveDevice(deviceName)
	if err != nil {
		return output.SupportedStreamConfig{}, err
	}
	defaultConfig, err := device.DefaultOutputConfig()
	if err != nil {
		name, _ := device.Name()
		return output.SupportedStreamConfig{}, &output.OutputDeviceConfigError{Device: name, Err: err}
	}

	channels := defaultConfig.Channels
	if req.Channels != nil {
		channels = *req.Channels
	}
	rate := defaultConfig.SampleRate
	if req.SampleRate != nil {
		rate = *req.SampleRate
	}
	format := defaultConfig.SampleFormat
	if req.SampleFormat != nil {
		format = *req.SampleFormat
	}

	if defaultConfig.Channels == channels && defaultConfig.SampleRate == rate && defaultConfig.SampleFormat == format {
		return defaultConfig, nil
	}

	configs, err := device.SupportedOutputConfigs()
	if err != nil {
		return output.SupportedStreamConfig{}, &output.LoadConfigsError{Err: err}
	}
	for _, c := range configs {
		if c.Channels == channels && c.SampleFormat == format {
			c.SampleRate = rate
			return c, nil
		}
	}
	return defaultConfig, nil
}

// NewOutput resolves deviceName and builds an output.AudioOutput bound to
// it. Supplying an explicit device name pins the watchdog, suspending its
// default-device polling until the selection reverts to the default.
func (b *OutputBuilder) NewOutput(deviceName *string, config output.SupportedStreamConfig) (*output.AudioOutput, error) {
	b.mu.Lock()
	b.currentDevice = deviceName
	settings := b.settings
	b.mu.Unlock()
	b.watchdog.SetPinned(deviceName != nil)

	device, err := b.resolveDevice(deviceName)
	if err != nil {
		return nil, err
	}
	name, _ := device.Name()
	log.Printf("manager: using device %q", name)
	log.Printf("manager: device config %s", config)

	return output.New(device, config, b.onDeviceChanged, b.onError, settings), nil
}
