package decoder

import (
	"errors"
	"io"
	"log"
	"time"
)

// DecoderSettings configures construction-time behavior.
type DecoderSettings struct {
	// EnableGapless trims leading silence from the first decoded block so
	// consecutive tracks concatenate without an audible gap.
	EnableGapless bool
}

// CurrentPosition pairs a decoded position with the wall-clock time it was
// observed, for best-effort drift tracking by a caller.
type CurrentPosition struct {
	Position      time.Duration
	RetrievalTime *time.Time
}

// Decoder wraps a demuxer/codec pair behind a typed sample stream: mixed to
// a fixed output channel count, volume-scaled, advanced one block at a time.
type Decoder struct {
	reader FormatReader
	codec  AudioCodec

	buf       []float32 // only buf[:bufLen] is valid; the backing array only grows
	bufLen    int
	sampleBuf []float32 // scratch for the codec's interleaved output

	sampleRate     int // 0 until the first packet is decoded
	volume         float32
	trackID        int
	inputChannels  int
	outputChannels int
	timestamp      int64
	isPaused       bool
	seekRequiredTS *int64
	settings       DecoderSettings
}

// New probes src via prober, selects the default audio track, and runs
// initialize() to force discovery of the input rate/channel count (and, if
// EnableGapless is set, trim leading silence).
func New(src Source, prober Prober, volume float32, outputChannels int, settings DecoderSettings) (*Decoder, error) {
	reader, codec, err := prober(src)
	if err != nil {
		var de *Error
		if errors.As(err, &de) {
			return nil, de
		}
		return nil, wrapErr(FormatNotFound, err)
	}

	track, ok := reader.DefaultAudioTrack()
	if !ok {
		reader.Close()
		return nil, newErr(NoTracks, "no default audio track")
	}

	d := &Decoder{
		reader:         reader,
		codec:          codec,
		volume:         volume,
		trackID:        track.ID,
		outputChannels: outputChannels,
		settings:       settings,
	}

	if err := d.initialize(); err != nil {
		reader.Close()
		return nil, err
	}
	return d, nil
}

func (d *Decoder) Close() error { return d.reader.Close() }

func (d *Decoder) SetVolume(v float32) { d.volume = v }
func (d *Decoder) Volume() float32     { return d.volume }

func (d *Decoder) Pause()          { d.isPaused = true }
func (d *Decoder) Resume()         { d.isPaused = false }
func (d *Decoder) IsPaused() bool  { return d.isPaused }
func (d *Decoder) SampleRate() int { return d.sampleRate }

// Current returns the last decoded block, buf[:bufLen].
func (d *Decoder) Current() []float32 { return d.buf[:d.bufLen] }

// initialize drives one Next() to force discovery of the input sample rate
// and channel count, then -- if gapless is enabled -- repeatedly scans and
// discards leading-silence blocks until a non-silent sample is found or the
// stream ends.
func (d *Decoder) initialize() error {
	samplesSkipped := 0
	for {
		block, err := d.Next()
		if err != nil {
			return err
		}
		if !d.settings.EnableGapless {
			return nil
		}
		if block == nil {
			// End of stream with every block silent so far.
			d.bufLen = 0
			return nil
		}

		index := -1
		for i, s := range d.buf[:d.bufLen] {
			if s != 0 {
				index = i
				break
			}
		}
		if index >= 0 {
			// Odd-index correction must happen after the channel-mix
			// decision: upmixing can shift parity even on a frame-aligned
			// source packet.
			if d.outputChannels == 2 && index%2 == 1 {
				index--
			}
			samplesSkipped += index
			d.bufLen -= index
			for i := 0; i < d.bufLen; i++ {
				d.buf[i] = d.buf[index+i] * d.volume
			}
			log.Printf("decoder: skipped %d silent samples", samplesSkipped)
			return nil
		}
		samplesSkipped += d.bufLen
	}
}

// Seek requests a coarse seek to t. On success it records seekRequiredTS so
// Next() can drop packets earlier than the requested target (a coarse seek
// can land before it). On failure it attempts
// to reseek to the pre-seek position (to leave the reader valid) and returns
// the first error even if that fallback succeeds.
func (d *Decoder) Seek(t time.Duration) (SeekedTo, error) {
	prev := d.CurrentPosition()

	seeked, err := d.readerSeek(t)
	if err != nil {
		log.Printf("decoder: seek error, resetting to previous position: %v", err)
		fallback, fallbackErr := d.readerSeek(prev.Position)
		if fallbackErr != nil {
			log.Printf("decoder: error resetting to previous position: %v", fallbackErr)
			d.codec.Reset()
			return SeekedTo{}, fallbackErr
		}
		log.Printf("decoder: reset position to %v", fallback)
		d.seekRequiredTS = &fallback.RequiredTS
		d.codec.Reset()
		return SeekedTo{}, err
	}

	d.seekRequiredTS = &seeked.RequiredTS
	d.codec.Reset()
	return seeked, nil
}

func (d *Decoder) readerSeek(t time.Duration) (SeekedTo, error) {
	seeked, err := d.reader.Seek(t)
	if err == nil {
		d.timestamp = d.toTicks(t)
	}
	return seeked, err
}

// CurrentPosition derives a wall-clock duration from the last packet
// timestamp using the 1/sample_rate synthesized time base.
func (d *Decoder) CurrentPosition() CurrentPosition {
	pos := d.toDuration(d.timestamp)
	now := time.Now()
	return CurrentPosition{Position: pos, RetrievalTime: &now}
}

func (d *Decoder) toDuration(ticks int64) time.Duration {
	if d.sampleRate == 0 {
		return 0
	}
	return time.Duration(ticks) * time.Second / time.Duration(d.sampleRate)
}

func (d *Decoder) toTicks(t time.Duration) int64 {
	if d.sampleRate == 0 {
		return 0
	}
	return int64(t.Seconds() * float64(d.sampleRate))
}

// Next advances by one packet. It returns (block, nil) on success,
// (nil, nil) at clean end of stream, or a decode-layer *Error otherwise.
func (d *Decoder) Next() ([]float32, error) {
	if d.isPaused {
		for i := range d.buf {
			d.buf[i] = 0
		}
		return d.Current(), nil
	}

	for {
		packet, err := d.nextTrackPacket()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, nil
			}
			return nil, err
		}

		d.timestamp = packet.TS
		if err := d.processOutput(packet); err != nil {
			if de, ok := err.(*Error); ok && de.Kind == Recoverable {
				continue
			}
			return nil, err
		}
		return d.Current(), nil
	}
}

// nextTrackPacket reads packets until one matches trackID, skipping any
// whose ts is before a pending seekRequiredTS.
func (d *Decoder) nextTrackPacket() (Packet, error) {
	for {
		packet, err := d.reader.NextPacket()
		if err != nil {
			return Packet{}, err
		}
		if packet.TrackID != d.trackID {
			continue
		}
		if d.seekRequiredTS != nil {
			if packet.TS < *d.seekRequiredTS {
				continue
			}
			d.seekRequiredTS = nil
		}
		return packet, nil
	}
}

func (d *Decoder) processOutput(packet Packet) error {
	decoded, err := d.codec.Decode(packet)
	if err != nil {
		if de, ok := err.(*Error); ok {
			return de
		}
		return wrapErr(DecodeError, err)
	}

	if d.sampleRate == 0 {
		d.sampleRate = decoded.Rate()
		d.inputChannels = decoded.Channels()
		log.Printf("decoder: input channels = %d", d.inputChannels)
		log.Printf("decoder: input sample rate = %d", d.sampleRate)
		if d.inputChannels > 2 {
			return newErr(UnsupportedFormat, "audio sources with more than 2 channels are not supported")
		}
	}

	samplesLen := decoded.Len()
	d.sampleBuf = growTo(d.sampleBuf, samplesLen)
	n := decoded.CopyInterleaved(d.sampleBuf[:samplesLen])
	src := d.sampleBuf[:n]

	d.buf = mixChannels(d.buf, src, d.inputChannels, d.outputChannels, d.volume)
	d.bufLen = len(d.buf)
	return nil
}
