package decoder

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource is a minimal in-memory Source for tests that never touch the
// ffmpeg-backed Prober.
type fakeSource struct{}

func (fakeSource) Read(p []byte) (int, error)                   { return 0, io.EOF }
func (fakeSource) Seek(offset int64, whence int) (int64, error) { return 0, nil }
func (fakeSource) Ext() string                                  { return "raw" }

// fakeBuffer adapts a plain []float32 to DecodedAudioBuffer.
type fakeBuffer struct {
	rate, channels int
	data           []float32
}

func (b *fakeBuffer) Rate() int     { return b.rate }
func (b *fakeBuffer) Channels() int { return b.channels }
func (b *fakeBuffer) Len() int      { return len(b.data) }
func (b *fakeBuffer) CopyInterleaved(dst []float32) int {
	return copy(dst, b.data)
}

// fakeCodec decodes a Packet's Data field straight through as
// rate/channels-tagged samples.
type fakeCodec struct {
	rate, channels int
	resetCalls     int
}

func (c *fakeCodec) Decode(p Packet) (DecodedAudioBuffer, error) {
	return &fakeBuffer{rate: c.rate, channels: c.channels, data: p.Data}, nil
}
func (c *fakeCodec) Reset() { c.resetCalls++ }

// fakeReader serves a fixed slice of packets in order, then io.EOF, and
// records seek calls.
type fakeReader struct {
	track   Track
	packets []Packet
	pos     int
	seekTo  []time.Duration
	seekErr error
	closed  bool
}

func (r *fakeReader) DefaultAudioTrack() (Track, bool) { return r.track, true }

func (r *fakeReader) NextPacket() (Packet, error) {
	if r.pos >= len(r.packets) {
		return Packet{}, io.EOF
	}
	p := r.packets[r.pos]
	r.pos++
	return p, nil
}

func (r *fakeReader) Seek(target time.Duration) (SeekedTo, error) {
	r.seekTo = append(r.seekTo, target)
	if r.seekErr != nil {
		return SeekedTo{}, r.seekErr
	}
	return SeekedTo{RequiredTS: int64(target.Seconds() * float64(r.track.SampleRate))}, nil
}

func (r *fakeReader) Close() error { r.closed = true; return nil }

func newTestDecoder(t *testing.T, reader *fakeReader, codec *fakeCodec, outCh int, settings DecoderSettings) *Decoder {
	t.Helper()
	prober := func(src Source) (FormatReader, AudioCodec, error) { return reader, codec, nil }
	d, err := New(fakeSource{}, prober, 1.0, outCh, settings)
	require.NoError(t, err)
	return d
}

func monoPackets(samples ...[]float32) []Packet {
	packets := make([]Packet, len(samples))
	ts := int64(0)
	for i, s := range samples {
		packets[i] = Packet{TrackID: 0, TS: ts, Data: s}
		ts += int64(len(s))
	}
	return packets
}

func TestDecoderUpmixesMonoToStereo(t *testing.T) {
	reader := &fakeReader{
		track:   Track{ID: 0, SampleRate: 44100, Channels: 1},
		packets: monoPackets([]float32{0.5, -0.5}),
	}
	codec := &fakeCodec{rate: 44100, channels: 1}
	d := newTestDecoder(t, reader, codec, 2, DecoderSettings{})

	block := d.Current()
	require.Len(t, block, 4)
	for i := 0; i < len(block); i += 2 {
		assert.Equal(t, block[i], block[i+1], "L and R must be equal after a mono upmix")
	}
}

func TestDecoderSampleRateDiscoveredFromFirstPacket(t *testing.T) {
	reader := &fakeReader{
		track:   Track{ID: 0, SampleRate: 22050, Channels: 1},
		packets: monoPackets([]float32{0.1, 0.2}),
	}
	codec := &fakeCodec{rate: 22050, channels: 1}
	d := newTestDecoder(t, reader, codec, 1, DecoderSettings{})
	assert.Equal(t, 22050, d.SampleRate())
}

func TestDecoderPauseProducesSilenceWithoutAdvancing(t *testing.T) {
	reader := &fakeReader{
		track:   Track{ID: 0, SampleRate: 44100, Channels: 1},
		packets: monoPackets([]float32{1, 1}, []float32{2, 2}),
	}
	codec := &fakeCodec{rate: 44100, channels: 1}
	d := newTestDecoder(t, reader, codec, 1, DecoderSettings{})

	d.Pause()
	block, err := d.Next()
	require.NoError(t, err)
	for _, s := range block {
		assert.Equal(t, float32(0), s)
	}
	assert.Equal(t, 1, reader.pos, "a paused decoder must not consume packets")
}

func TestDecoderResumeContinuesFromWherePausedLeftOff(t *testing.T) {
	reader := &fakeReader{
		track:   Track{ID: 0, SampleRate: 44100, Channels: 1},
		packets: monoPackets([]float32{1, 1}, []float32{2, 2}),
	}
	codec := &fakeCodec{rate: 44100, channels: 1}
	d := newTestDecoder(t, reader, codec, 1, DecoderSettings{})

	d.Pause()
	d.Next()
	d.Resume()
	block, err := d.Next()
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 2}, block)
}

func TestDecoderNextReturnsNilAtCleanEOF(t *testing.T) {
	reader := &fakeReader{
		track:   Track{ID: 0, SampleRate: 44100, Channels: 1},
		packets: monoPackets([]float32{1}),
	}
	codec := &fakeCodec{rate: 44100, channels: 1}
	d := newTestDecoder(t, reader, codec, 1, DecoderSettings{})

	block, err := d.Next()
	require.NoError(t, err)
	assert.Nil(t, block)
}

func TestDecoderGaplessTrimsLeadingSilence(t *testing.T) {
	reader := &fakeReader{
		track: Track{ID: 0, SampleRate: 44100, Channels: 1},
		packets: []Packet{
			{TrackID: 0, TS: 0, Data: []float32{0, 0, 0, 0.5, 0.25}},
		},
	}
	codec := &fakeCodec{rate: 44100, channels: 1}
	d := newTestDecoder(t, reader, codec, 1, DecoderSettings{EnableGapless: true})

	assert.Equal(t, []float32{0.5, 0.25}, d.Current())
}

func TestDecoderGaplessTrimReappliesVolumeToRetainedSuffix(t *testing.T) {
	reader := &fakeReader{
		track: Track{ID: 0, SampleRate: 44100, Channels: 1},
		packets: []Packet{
			{TrackID: 0, TS: 0, Data: []float32{0, 0, 0.5, 0.25}},
		},
	}
	codec := &fakeCodec{rate: 44100, channels: 1}
	prober := func(src Source) (FormatReader, AudioCodec, error) { return reader, codec, nil }
	d, err := New(fakeSource{}, prober, 0.5, 1, DecoderSettings{EnableGapless: true})
	require.NoError(t, err)

	// The trim scales the retained suffix by volume on top of the scaling
	// already applied while mixing: 0.5 decoded -> 0.25 mixed -> 0.125.
	assert.Equal(t, []float32{0.125, 0.0625}, d.Current())
}

func TestDecoderGaplessOddIndexCorrectionForStereoOutput(t *testing.T) {
	// Frame 0 is silent (L=0,R=0); frame 1 has L=0,R=1, so the first
	// non-zero absolute index is 3 (odd). With a stereo output, trimming
	// must fall back to index 2 so the L/R pairing survives.
	reader := &fakeReader{
		track: Track{ID: 0, SampleRate: 44100, Channels: 2},
		packets: []Packet{
			{TrackID: 0, TS: 0, Data: []float32{0, 0, 0, 1}},
		},
	}
	codec := &fakeCodec{rate: 44100, channels: 2}
	d := newTestDecoder(t, reader, codec, 2, DecoderSettings{EnableGapless: true})

	block := d.Current()
	require.Len(t, block, 2)
	assert.Equal(t, float32(0), block[0])
	assert.Equal(t, float32(1), block[1])
}

func TestDecoderSeekRecordsRequiredTSAndSkipsOvershotPackets(t *testing.T) {
	reader := &fakeReader{
		track: Track{ID: 0, SampleRate: 1, Channels: 1},
		packets: []Packet{
			{TrackID: 0, TS: 0, Data: []float32{1}},
		},
	}
	codec := &fakeCodec{rate: 1, channels: 1}
	d := newTestDecoder(t, reader, codec, 1, DecoderSettings{})

	reader.packets = []Packet{
		{TrackID: 0, TS: 5, Data: []float32{9}},  // before seekRequiredTS, must be skipped
		{TrackID: 0, TS: 10, Data: []float32{2}}, // lands at/after target
	}
	reader.pos = 0

	_, err := d.Seek(10 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, codec.resetCalls)

	block, err := d.Next()
	require.NoError(t, err)
	assert.Equal(t, []float32{2}, block)
}

func TestDecoderSeekFallsBackOnErrorAndReturnsOriginalError(t *testing.T) {
	reader := &fakeReader{
		track:   Track{ID: 0, SampleRate: 1, Channels: 1},
		packets: monoPackets([]float32{1}),
	}
	codec := &fakeCodec{rate: 1, channels: 1}
	d := newTestDecoder(t, reader, codec, 1, DecoderSettings{})

	wantErr := errors.New("seek boom")
	reader.seekErr = wantErr
	_, err := d.Seek(5 * time.Second)
	assert.ErrorIs(t, err, wantErr)
	assert.Len(t, reader.seekTo, 2, "a failed seek must attempt a fallback reseek to the prior position")
}

func TestDecoderVolumeScalesSamples(t *testing.T) {
	reader := &fakeReader{
		track:   Track{ID: 0, SampleRate: 44100, Channels: 1},
		packets: monoPackets([]float32{1, 1}),
	}
	codec := &fakeCodec{rate: 44100, channels: 1}
	prober := func(src Source) (FormatReader, AudioCodec, error) { return reader, codec, nil }
	d, err := New(fakeSource{}, prober, 0.5, 1, DecoderSettings{})
	require.NoError(t, err)

	for _, s := range d.Current() {
		assert.Equal(t, float32(0.5), s)
	}
}

func TestDecoderRejectsMoreThanTwoInputChannels(t *testing.T) {
	reader := &fakeReader{
		track:   Track{ID: 0, SampleRate: 44100, Channels: 3},
		packets: []Packet{{TrackID: 0, TS: 0, Data: []float32{1, 2, 3}}},
	}
	codec := &fakeCodec{rate: 44100, channels: 3}
	prober := func(src Source) (FormatReader, AudioCodec, error) { return reader, codec, nil }

	_, err := New(fakeSource{}, prober, 1.0, 1, DecoderSettings{})
	require.Error(t, err)
	var de *Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, UnsupportedFormat, de.Kind)
}
