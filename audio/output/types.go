// Package output owns the single-producer/single-consumer ring buffer and
// the Host/Device/Stream capability boundary that drives a native audio
// output device.
package output

import "fmt"

// SampleRate is a positive sample rate in Hz.
type SampleRate uint32

// ChannelCount is the number of interleaved channels in a stream. Only mono
// and stereo are supported; anything else is rejected at decode start.
type ChannelCount uint8

// SampleFormat tags the runtime representation of a device's native
// samples. The engine's internal pipeline is always float32; a SampleFormat
// only describes the conversion applied at the device boundary, in the
// stream data callback.
type SampleFormat int

const (
	SampleFormatI8 SampleFormat = iota
	SampleFormatI16
	SampleFormatI24
	SampleFormatI32
	SampleFormatI64
	SampleFormatU8
	SampleFormatU16
	SampleFormatU24
	SampleFormatU32
	SampleFormatU64
	SampleFormatF32
	SampleFormatF64
)

func (f SampleFormat) String() string {
	switch f {
	case SampleFormatI8:
		return "i8"
	case SampleFormatI16:
		return "i16"
	case SampleFormatI24:
		return "i24"
	case SampleFormatI32:
		return "i32"
	case SampleFormatI64:
		return "i64"
	case SampleFormatU8:
		return "u8"
	case SampleFormatU16:
		return "u16"
	case SampleFormatU24:
		return "u24"
	case SampleFormatU32:
		return "u32"
	case SampleFormatU64:
		return "u64"
	case SampleFormatF32:
		return "f32"
	case SampleFormatF64:
		return "f64"
	default:
		return "unknown"
	}
}

// BufferSize describes a stream's requested frame-buffer sizing: either the
// platform default, or a fixed frame count.
type BufferSize struct {
	Fixed  bool
	Frames uint32
}

// SupportedBufferSize is the range (or fixed value) a device config reports.
type SupportedBufferSize struct {
	Fixed     bool
	Frames    uint32 // valid when Fixed
	MinFrames uint32
	MaxFrames uint32
}

// SupportedStreamConfig is a pure, copyable, field-equal value describing
// one concrete device configuration.
type SupportedStreamConfig struct {
	Channels     ChannelCount
	SampleRate   SampleRate
	BufferSize   SupportedBufferSize
	SampleFormat SampleFormat
}

func (c SupportedStreamConfig) String() string {
	return fmt.Sprintf("%dch@%dHz/%s", c.Channels, c.SampleRate, c.SampleFormat)
}

// Equal compares the fields that matter for deciding whether a
// reconfiguration is needed (BufferSize is deliberately excluded: a device
// renegotiating its buffer size alone does not require tearing down the
// resampler).
func (c SupportedStreamConfig) Equal(o SupportedStreamConfig) bool {
	return c.Channels == o.Channels && c.SampleRate == o.SampleRate && c.SampleFormat == o.SampleFormat
}

// RequestedOutputConfig is what a caller asks the OutputBuilder to resolve
// against the devices actually available.
type RequestedOutputConfig struct {
	SampleRate   *SampleRate
	Channels     *ChannelCount
	SampleFormat *SampleFormat
}

// DefaultSampleRate is used when a caller has no other basis for a request.
const DefaultSampleRate SampleRate = 48000

// MID is the silence value for the engine's internal float32 pipeline.
const MID float32 = 0
