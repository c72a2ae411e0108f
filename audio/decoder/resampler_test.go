package decoder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newResamplerTestDecoder(t *testing.T, rate, channels int, samples []float32) *Decoder {
	t.Helper()
	reader := &fakeReader{
		track:   Track{ID: 0, SampleRate: rate, Channels: channels},
		packets: monoPackets(samples),
	}
	codec := &fakeCodec{rate: rate, channels: channels}
	return newTestDecoder(t, reader, codec, channels, DecoderSettings{})
}

func TestResampledDecoderStaysNativeWhenRatesMatch(t *testing.T) {
	d := newResamplerTestDecoder(t, 48000, 1, []float32{1, 2, 3, 4})
	r := NewResampledDecoder(48000, 1, DefaultResamplerSettings())

	require.NoError(t, r.Initialize(d))
	assert.Equal(t, d.Current(), r.Current(d), "Native state must pass the decoder's own block through")
}

func TestResampledDecoderSwitchesToResampledWhenRatesDiffer(t *testing.T) {
	samples := make([]float32, 2048)
	for i := range samples {
		samples[i] = float32(i%7) / 7
	}
	d := newResamplerTestDecoder(t, 44100, 1, samples)
	r := NewResampledDecoder(48000, 1, ResamplerSettings{ChunkSize: 256})

	require.NoError(t, r.Initialize(d))
	// Initialize must have run one DecodeNextFrame so Current is valid
	// (non-zero content, not just an allocated-but-unwritten buffer) before
	// the first consumer read.
	assert.True(t, hasNonZeroSample(r.Current(d)))
}

func TestResampledDecoderInitializeRunsDecodeNextFrameOnStateChange(t *testing.T) {
	samples := make([]float32, 4096)
	for i := range samples {
		samples[i] = 1
	}
	d := newResamplerTestDecoder(t, 44100, 1, samples)
	r := NewResampledDecoder(22050, 1, ResamplerSettings{ChunkSize: 256})

	require.NoError(t, r.Initialize(d))
	block := r.Current(d)
	require.True(t, hasNonZeroSample(block), "Current must return a valid, already-decoded first block right after Initialize")
}

func hasNonZeroSample(samples []float32) bool {
	for _, s := range samples {
		if s != 0 {
			return true
		}
	}
	return false
}

func TestResampledDecoderFlushReturnsNilWhenInputBufferEmpty(t *testing.T) {
	d := newResamplerTestDecoder(t, 48000, 1, []float32{1, 2})
	r := NewResampledDecoder(48000, 1, DefaultResamplerSettings())
	require.NoError(t, r.Initialize(d))

	assert.Nil(t, r.Flush(), "Native state (or an empty staged buffer) must flush to nothing")
}

func TestNewResampledDecoderDefaultsChunkSizeWhenZero(t *testing.T) {
	r := NewResampledDecoder(48000, 2, ResamplerSettings{})
	assert.Equal(t, DefaultResamplerSettings().ChunkSize, r.settings.ChunkSize)
}
