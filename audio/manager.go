package audio

import (
	"sync"
	"time"

	"github.com/richinsley/goplayback/audio/decoder"
	"github.com/richinsley/goplayback/audio/output"
)

// ResetMode selects whether Manager.Reset treats every change flag as true
// regardless of what actually changed (Force), or only rebuilds the parts
// that differ (Default).
type ResetMode int

const (
	ResetDefault ResetMode = iota
	ResetForce
)

// Manager is the single-threaded, caller-driven orchestrator that owns the
// OutputBuilder, the current AudioOutput, and a ResampledDecoder, and
// sequences their reconfiguration.
type Manager struct {
	builder *OutputBuilder

	mu                sync.Mutex
	config            output.SupportedStreamConfig
	out               *output.AudioOutput
	resampled         *decoder.ResampledDecoder
	deviceName        *string
	resamplerSettings decoder.ResamplerSettings
	volume            float32
}

// NewManager resolves the default device's config, requesting the engine's
// default sample rate (output.DefaultSampleRate) at the device's native
// channel count, and builds the initial AudioOutput and ResampledDecoder
// against it.
func NewManager(builder *OutputBuilder, resamplerSettings decoder.ResamplerSettings) (*Manager, error) {
	defaultConfig, err := builder.DefaultOutputConfig()
	if err != nil {
		return nil, err
	}

	rate := output.DefaultSampleRate
	config, err := builder.FindClosestConfig(nil, output.RequestedOutputConfig{
		SampleRate:   &rate,
		Channels:     &defaultConfig.Channels,
		SampleFormat: &defaultConfig.SampleFormat,
	})
	if err != nil {
		return nil, err
	}

	out, err := builder.NewOutput(nil, config)
	if err != nil {
		return nil, err
	}

	resampled := decoder.NewResampledDecoder(int(config.SampleRate), int(config.Channels), resamplerSettings)

	return &Manager{
		builder:           builder,
		config:            config,
		out:               out,
		resampled:         resampled,
		resamplerSettings: resamplerSettings,
		volume:            1,
	}, nil
}

func (m *Manager) SetVolume(v float32) {
	m.mu.Lock()
	m.volume = v
	m.mu.Unlock()
}

func (m *Manager) Volume() float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.volume
}

// SetDevice selects a named output device for future resets; nil reverts to
// the host's default device. Takes effect on the next Reset.
func (m *Manager) SetDevice(name *string) {
	m.mu.Lock()
	m.deviceName = name
	m.mu.Unlock()
}

// CurrentConfig returns the output configuration currently in effect.
func (m *Manager) CurrentConfig() output.SupportedStreamConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config
}

// InitDecoder constructs a Decoder with the manager's current volume and
// channel count, then resets the pipeline around it with ResetDefault. The
// caller owns the returned Decoder thereafter.
func (m *Manager) InitDecoder(src decoder.Source, prober decoder.Prober, settings decoder.DecoderSettings) (*decoder.Decoder, error) {
	m.mu.Lock()
	volume := m.volume
	channels := int(m.config.Channels)
	m.mu.Unlock()

	d, err := decoder.New(src, prober, volume, channels, settings)
	if err != nil {
		return nil, err
	}

	if err := m.Reset(d, ResetDefault); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

func (m *Manager) rebuildOutput() error {
	out, err := m.builder.NewOutput(m.deviceName, m.config)
	if err != nil {
		return err
	}
	m.out = out
	return nil
}

// ResetOutput rebuilds the output stream against a freshly resolved device
// config without touching the decoder or resampler. Used when only the
// device selection changed (e.g. SetDevice) and a full Reset(Force) would
// needlessly tear down and reinitialize the resampler.
func (m *Manager) ResetOutput() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfg, err := m.builder.FindClosestConfig(m.deviceName, output.RequestedOutputConfig{
		SampleRate:   &m.config.SampleRate,
		Channels:     &m.config.Channels,
		SampleFormat: &m.config.SampleFormat,
	})
	if err != nil {
		return err
	}
	m.config = cfg
	return m.rebuildOutput()
}

// Reset is the central reconfiguration point: resolve a target output
// config for decoder's sample rate, compute the three change flags, and
// rebuild only what changed (or everything, under ResetForce) before
// prefilling and starting the output.
func (m *Manager) Reset(d *decoder.Decoder, mode ResetMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	newConfig, err := m.builder.FindClosestConfig(m.deviceName, output.RequestedOutputConfig{
		SampleRate:   ptrRate(output.SampleRate(d.SampleRate())),
		Channels:     &m.config.Channels,
		SampleFormat: &m.config.SampleFormat,
	})
	if err != nil {
		return err
	}

	force := mode == ResetForce
	outputConfigChanged := !newConfig.Equal(m.config) || force
	inRateChanged := m.resampled.InSampleRate() != d.SampleRate() || force
	resamplerConfigChanged := newConfig.SampleRate != m.config.SampleRate ||
		newConfig.Channels != m.config.Channels || force
	m.config = newConfig

	if !outputConfigChanged && !inRateChanged {
		if err := m.resampled.Initialize(d); err != nil {
			return err
		}
		return m.out.Start()
	}

	if outputConfigChanged {
		if err := m.rebuildOutput(); err != nil {
			return err
		}
	}
	// Drain the old resampler's partial leftover and stop before prefilling,
	// so no samples leak across the reconfiguration boundary.
	if err := m.flushLocked(); err != nil {
		return err
	}

	if resamplerConfigChanged {
		m.resampled = decoder.NewResampledDecoder(int(m.config.SampleRate), int(m.config.Channels), m.resamplerSettings)
	}
	if err := m.resampled.Initialize(d); err != nil {
		return err
	}

	// Prefill the ring buffer before starting the stream so the first
	// device callback finds data ready, eliminating the start-up under-run
	// that would otherwise occur between Start and the first WriteBlocking.
	for len(m.resampled.Current(d)) <= m.out.BufferSpaceAvailable() {
		m.out.Write(m.resampled.Current(d))
		result, err := m.resampled.DecodeNextFrame(d)
		if err != nil {
			return err
		}
		if result == decoder.Finished {
			break
		}
	}

	return m.out.Start()
}

// Write pushes the resampled decoder's current block to the output
// (blocking with timeout), then advances the resampler by one frame.
func (m *Manager) Write(d *decoder.Decoder) (decoder.DecoderResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.out.WriteBlocking(m.resampled.Current(d)); err != nil {
		return decoder.Unfinished, &WriteFailure{Err: err}
	}
	result, err := m.resampled.DecodeNextFrame(d)
	if err != nil {
		return decoder.Unfinished, &DecodeFailure{Err: err}
	}
	return result, nil
}

// WriteAll calls Write in a loop until the decoder finishes, then flushes.
func (m *Manager) WriteAll(d *decoder.Decoder) error {
	for {
		result, err := m.Write(d)
		if err != nil {
			return err
		}
		if result == decoder.Finished {
			return m.Flush()
		}
	}
}

// Flush pushes the resampler's partial-frame remainder to the output
// (blocking), sleeps settings.buffer_duration so the device drains, then
// stops. The sleep is skipped if the preceding write failed.
func (m *Manager) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flushLocked()
}

func (m *Manager) flushLocked() error {
	err := m.out.WriteBlocking(m.resampled.Flush())
	if err == nil {
		time.Sleep(m.builder.Settings().BufferDuration)
	}
	m.out.Stop()
	return err
}

func ptrRate(r output.SampleRate) *output.SampleRate { return &r }
