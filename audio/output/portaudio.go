package output

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
)

// portaudioHost, portaudioDevice and portaudioStream implement the
// Host/Device/Stream capability boundary against
// github.com/gordonklaus/portaudio.
type portaudioHost struct{}

// NewPortAudioHost initializes the portaudio library and returns a Host
// backed by it. portaudio's underlying C library is a process-wide
// singleton, so there is no corresponding per-Host Terminate; the caller is
// expected to keep the process alive for as long as any AudioOutput built
// against this Host is in use.
func NewPortAudioHost() (Host, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("output: initialize portaudio: %w", err)
	}
	return &portaudioHost{}, nil
}

func (h *portaudioHost) DefaultOutputDevice() (Device, bool) {
	api, err := portaudio.DefaultHostApi()
	if err != nil || api.DefaultOutputDevice == nil {
		return nil, false
	}
	return &portaudioDevice{info: api.DefaultOutputDevice}, true
}

func (h *portaudioHost) OutputDevices() ([]Device, error) {
	infos, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("output: enumerate devices: %w", err)
	}
	devices := make([]Device, 0, len(infos))
	for _, info := range infos {
		if info.MaxOutputChannels > 0 {
			devices = append(devices, &portaudioDevice{info: info})
		}
	}
	return devices, nil
}

type portaudioDevice struct {
	info *portaudio.DeviceInfo
}

func (d *portaudioDevice) Name() (string, error) { return d.info.Name, nil }

func (d *portaudioDevice) DefaultOutputConfig() (SupportedStreamConfig, error) {
	channels := d.info.MaxOutputChannels
	if channels > 2 {
		channels = 2
	}
	if channels < 1 {
		channels = 1
	}
	return SupportedStreamConfig{
		Channels:     ChannelCount(channels),
		SampleRate:   SampleRate(d.info.DefaultSampleRate),
		BufferSize:   SupportedBufferSize{Fixed: false},
		SampleFormat: SampleFormatF32,
	}, nil
}

// SupportedOutputConfigs reports the device's default as the sole supported
// configuration: portaudio exposes no discrete list of supported
// rate/channel/format combinations ahead of opening a stream.
func (d *portaudioDevice) SupportedOutputConfigs() ([]SupportedStreamConfig, error) {
	cfg, err := d.DefaultOutputConfig()
	if err != nil {
		return nil, err
	}
	return []SupportedStreamConfig{cfg}, nil
}

// BuildOutputStream opens a portaudio stream whose native callback type is
// chosen by cfg.SampleFormat: float32 passthrough, or int16/int32 after a
// conversion from the engine's internal float32 pipeline, so format
// conversion happens exactly once, at the device boundary. errCb is
// accepted to satisfy the Device interface but portaudio's stream callback
// carries no error parameter; device-loss detection is instead the
// Watchdog's job (watchdog.go).
func (d *portaudioDevice) BuildOutputStream(cfg SupportedStreamConfig, dataCb DataCallback, errCb ErrorCallback) (Stream, error) {
	_ = errCb

	params := portaudio.HighLatencyParameters(nil, d.info)
	params.Output.Channels = int(cfg.Channels)
	params.SampleRate = float64(cfg.SampleRate)

	var scratch []float32
	ensure := func(n int) []float32 {
		if cap(scratch) < n {
			scratch = make([]float32, n)
		}
		return scratch[:n]
	}

	var stream *portaudio.Stream
	var err error
	switch cfg.SampleFormat {
	case SampleFormatI16:
		stream, err = portaudio.OpenStream(params, func(out []int16) {
			buf := ensure(len(out))
			dataCb(buf)
			for i, s := range buf {
				out[i] = floatToI16(s)
			}
		})
	case SampleFormatI32:
		stream, err = portaudio.OpenStream(params, func(out []int32) {
			buf := ensure(len(out))
			dataCb(buf)
			for i, s := range buf {
				out[i] = floatToI32(s)
			}
		})
	default: // F32 passthrough
		stream, err = portaudio.OpenStream(params, func(out []float32) {
			dataCb(out)
		})
	}
	if err != nil {
		return nil, err
	}
	return &portaudioStream{stream: stream}, nil
}

type portaudioStream struct{ stream *portaudio.Stream }

func (s *portaudioStream) Play() error { return s.stream.Start() }

func (s *portaudioStream) Stop() error {
	if err := s.stream.Stop(); err != nil {
		return err
	}
	return s.stream.Close()
}

func floatToI16(f float32) int16 {
	if f > 1 {
		f = 1
	} else if f < -1 {
		f = -1
	}
	return int16(f * 32767)
}

func floatToI32(f float32) int32 {
	if f > 1 {
		f = 1
	} else if f < -1 {
		f = -1
	}
	return int32(float64(f) * 2147483647)
}
