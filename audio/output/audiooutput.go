package output

import "log"

// ringBufferMs is the fixed wall-clock size used to capacity the ring
// buffer, independent of Settings.BufferDuration (see backend.go's doc on
// that distinction).
const ringBufferMs = 200

// AudioOutput owns the ring buffer and drives a host-opened stream whose
// data callback pulls from it.
type AudioOutput struct {
	ring     *ringBuffer
	device   Device
	config   SupportedStreamConfig
	settings Settings

	onDeviceChanged func()
	onError         func(StreamError)

	stream Stream
}

// New builds an AudioOutput bound to device/config. The ring buffer is
// sized to ringBufferMs of audio at config's rate/channels, independent of
// settings.BufferDuration.
func New(device Device, config SupportedStreamConfig, onDeviceChanged func(), onError func(StreamError), settings Settings) *AudioOutput {
	capacity := (ringBufferMs * int(config.SampleRate) / 1000) * int(config.Channels)
	log.Printf("output: channels = %d", config.Channels)
	log.Printf("output: sample rate = %d", config.SampleRate)
	return &AudioOutput{
		ring:            newRingBuffer(capacity),
		device:          device,
		config:          config,
		settings:        settings,
		onDeviceChanged: onDeviceChanged,
		onError:         onError,
	}
}

func (o *AudioOutput) Device() Device                { return o.device }
func (o *AudioOutput) Config() SupportedStreamConfig { return o.config }
func (o *AudioOutput) Settings() Settings            { return o.settings }
func (o *AudioOutput) BufferSize() int               { return o.ring.count() }
func (o *AudioOutput) BufferCapacity() int           { return o.ring.capacity() }
func (o *AudioOutput) BufferSpaceAvailable() int     { return o.ring.spaceAvailable() }
func (o *AudioOutput) IsBufferFull() bool            { return o.ring.isFull() }

// Start is idempotent when a stream is already running.
func (o *AudioOutput) Start() error {
	if o.stream != nil {
		return nil
	}
	stream, err := o.device.BuildOutputStream(o.config, o.dataCallback, o.errCallback)
	if err != nil {
		return &OpenStreamError{Err: err}
	}
	if err := stream.Play(); err != nil {
		return &StartStreamError{Err: err}
	}
	o.stream = stream
	return nil
}

// Stop tears the stream down; the next Start rebuilds from scratch.
func (o *AudioOutput) Stop() {
	if o.stream == nil {
		return
	}
	if err := o.stream.Stop(); err != nil {
		log.Printf("output: error stopping stream: %v", err)
	}
	o.stream = nil
}

// Write is the non-blocking producer path: returns the count written.
func (o *AudioOutput) Write(samples []float32) int { return o.ring.write(samples) }

// WriteBlocking drains samples into the ring, blocking (bounded by
// settings.BufferDuration) until all of it is written. A timeout with
// samples still unwritten surfaces as ErrOutputStalled -- non-fatal at the
// output level; the caller (Manager) decides whether to retry.
func (o *AudioOutput) WriteBlocking(samples []float32) error {
	if len(samples) == 0 {
		return nil
	}
	if !o.ring.writeBlockingTimeout(samples, o.settings.BufferDuration) {
		log.Printf("output: stream stalled, cancelling write")
		return ErrOutputStalled
	}
	return nil
}

// dataCallback is the consumer side, called on the device's real-time
// thread: pull as much as is buffered, fill any short read with silence and
// log an under-run.
func (o *AudioOutput) dataCallback(data []float32) {
	written := o.ring.read(data)
	if written < len(data) {
		log.Printf("output: under-run, filling %d samples with silence", len(data)-written)
		for i := written; i < len(data); i++ {
			data[i] = MID
		}
	}
}

// errCallback classifies a stream-level error: device loss signals
// onDeviceChanged, backend-specific errors surface via onError, everything
// else is logged only.
func (o *AudioOutput) errCallback(err StreamError) {
	switch err.Kind {
	case StreamErrorDeviceNotAvailable, StreamErrorInvalidated:
		log.Printf("output: %v, reconfiguring", err)
		if o.onDeviceChanged != nil {
			o.onDeviceChanged()
		}
	case StreamErrorBackendSpecific:
		if o.onError != nil {
			o.onError(err)
		}
	default:
		log.Printf("output: %v", err)
	}
}
