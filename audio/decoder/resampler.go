package decoder

import (
	"math"

	"github.com/mjibson/go-dsp/fft"
)

// ResamplerSettings pins the resampler's fixed input chunk size.
type ResamplerSettings struct {
	ChunkSize int
}

func DefaultResamplerSettings() ResamplerSettings { return ResamplerSettings{ChunkSize: 1024} }

// DecoderResult is the outcome of advancing by one frame.
type DecoderResult int

const (
	Unfinished DecoderResult = iota
	Finished
)

// fftResampler performs fixed-chunk Fourier-domain sample-rate conversion:
// forward real FFT of an inFrames-long chunk per channel, resize the
// spectrum to outFrames (zero-insert to upsample, truncate to downsample),
// inverse FFT, take the real part scaled by outFrames/inFrames to preserve
// amplitude. Both the input and output frame counts per pass are pinned at
// construction.
type fftResampler struct {
	channels  int
	inFrames  int
	outFrames int
	inRate    int
	outRate   int
}

func newFFTResampler(inRate, outRate, chunkSize, channels int) *fftResampler {
	outFrames := int(math.Round(float64(chunkSize) * float64(outRate) / float64(inRate)))
	if outFrames < 1 {
		outFrames = 1
	}
	return &fftResampler{
		channels:  channels,
		inFrames:  chunkSize,
		outFrames: outFrames,
		inRate:    inRate,
		outRate:   outRate,
	}
}

func (r *fftResampler) inputFramesNext() int  { return r.inFrames }
func (r *fftResampler) outputFramesNext() int { return r.outFrames }

// process resamples the first inFrames*channels interleaved samples of in
// (which may be a partial chunk, inFrames <= r.inFrames) into out, which
// must have capacity for at least the returned frame count * channels.
// Returns the number of output frames actually produced.
func (r *fftResampler) process(in []float32, inFrames int, out []float32) int {
	outFrames := r.outFrames
	if inFrames != r.inFrames {
		outFrames = int(math.Round(float64(inFrames) * float64(r.outRate) / float64(r.inRate)))
	}
	if outFrames < 1 {
		outFrames = 1
	}

	scale := float64(outFrames) / float64(inFrames)
	real := make([]float64, inFrames)
	for ch := 0; ch < r.channels; ch++ {
		for i := 0; i < inFrames; i++ {
			real[i] = float64(in[i*r.channels+ch])
		}
		spectrum := fft.FFTReal(real)
		resized := resizeSpectrum(spectrum, outFrames)
		td := fft.IFFT(resized)
		for i := 0; i < outFrames; i++ {
			out[i*r.channels+ch] = float32(realPart(td[i]) * scale)
		}
	}
	return outFrames
}

func realPart(c complex128) float64 { return real(c) }

// resizeSpectrum resamples a complex spectrum to a new bin count by keeping
// the low-frequency prefix and the mirrored high-frequency suffix, zero
// (or truncating) everything in between -- the frequency-domain equivalent
// of ideal band-limited interpolation/decimation.
func resizeSpectrum(spec []complex128, outLen int) []complex128 {
	inLen := len(spec)
	out := make([]complex128, outLen)
	if outLen == inLen {
		copy(out, spec)
		return out
	}
	n := inLen
	if outLen < n {
		n = outLen
	}
	head := (n + 1) / 2
	copy(out[:head], spec[:head])
	tail := n - head
	if tail > 0 {
		copy(out[outLen-tail:], spec[inLen-tail:])
	}
	return out
}

// resampledDecoderState discriminates the Native (pass-through) and
// Resampled states.
type resampledDecoderState int

const (
	stateNative resampledDecoderState = iota
	stateResampled
)

// ResampledDecoder adapts a Decoder to a fixed output sample rate, either
// passing its blocks straight through (Native) or running them through a
// fixed-chunk fftResampler (Resampled).
type ResampledDecoder struct {
	state    resampledDecoderState
	resample *fftResampler

	inBuf         *fixedBuffer
	outBuf        []float32
	framePos      int // offset into decoder.Current() already consumed
	channels      int
	inSampleRate  int
	outSampleRate int
	settings      ResamplerSettings
}

func NewResampledDecoder(outSampleRate, channels int, settings ResamplerSettings) *ResampledDecoder {
	if settings.ChunkSize == 0 {
		settings = DefaultResamplerSettings()
	}
	return &ResampledDecoder{
		state:         stateNative,
		inSampleRate:  outSampleRate,
		outSampleRate: outSampleRate,
		channels:      channels,
		settings:      settings,
	}
}

func (r *ResampledDecoder) InSampleRate() int  { return r.inSampleRate }
func (r *ResampledDecoder) OutSampleRate() int { return r.outSampleRate }

// Initialize transitions state based on decoder's (possibly new) sample
// rate: Native->Resampled when rates differ, Resampled reallocated when the
// input rate changed, otherwise unchanged (just rewound). After any
// state-changing transition it also runs one DecodeNextFrame so Current
// returns a valid first block before the consumer asks for samples.
func (r *ResampledDecoder) Initialize(decoder *Decoder) error {
	decoderSampleRate := decoder.SampleRate()
	rateChanged := r.inSampleRate != decoderSampleRate
	r.inSampleRate = decoderSampleRate

	changed := false
	switch r.state {
	case stateNative:
		if r.inSampleRate != r.outSampleRate {
			r.initializeResampler()
			changed = true
		}
	case stateResampled:
		if rateChanged {
			r.initializeResampler()
			changed = true
		} else {
			r.framePos = 0
			r.inBuf.reset()
		}
	}

	if changed {
		if _, err := r.DecodeNextFrame(decoder); err != nil {
			return err
		}
	}
	return nil
}

func (r *ResampledDecoder) initializeResampler() {
	resampler := newFFTResampler(r.inSampleRate, r.outSampleRate, r.settings.ChunkSize, r.channels)
	r.resample = resampler
	r.inBuf = newFixedBuffer(resampler.inputFramesNext() * r.channels)
	r.outBuf = make([]float32, resampler.outputFramesNext()*r.channels)
	r.framePos = 0
	r.state = stateResampled
}

// Current returns the last produced block: out_buf in Resampled, or the
// decoder's own current block in Native.
func (r *ResampledDecoder) Current(decoder *Decoder) []float32 {
	if r.state == stateResampled {
		return r.outBuf
	}
	return decoder.Current()
}

// Flush drains a partial input buffer through one more resampler pass, or
// returns an empty slice (without touching the resampler) if the input
// buffer is empty.
func (r *ResampledDecoder) Flush() []float32 {
	if r.state != stateResampled || r.inBuf.position() == 0 {
		return nil
	}
	partialFrames := r.inBuf.position() / r.channels
	n := r.resample.process(r.inBuf.inner(), partialFrames, r.outBuf)
	r.inBuf.reset()
	return r.outBuf[:n*r.channels]
}

// DecodeNextFrame advances the underlying decoder by exactly one resampled
// frame (Native: one decoder block; Resampled: fill the input buffer to a
// full chunk, possibly across several decoder blocks, then run one
// resampler pass).
func (r *ResampledDecoder) DecodeNextFrame(decoder *Decoder) (DecoderResult, error) {
	if r.state == stateNative {
		block, err := decoder.Next()
		if err != nil {
			return Unfinished, err
		}
		if block == nil {
			return Finished, nil
		}
		return Unfinished, nil
	}

	curFrame := decoder.Current()
	r.inBuf.reset()
	inputSamplesLeft := r.resample.inputFramesNext() * r.channels

	for r.inBuf.position() < inputSamplesLeft {
		toWrite := len(curFrame) - r.framePos
		if rem := inputSamplesLeft - r.inBuf.position(); rem < toWrite {
			toWrite = rem
		}
		if space := r.inBuf.remaining(); space < toWrite {
			toWrite = space
		}
		r.inBuf.appendFromSlice(curFrame[r.framePos : r.framePos+toWrite])
		r.framePos += toWrite

		if r.framePos == len(curFrame) {
			r.framePos = 0
			next, err := decoder.Next()
			if err != nil {
				return Unfinished, err
			}
			if next == nil {
				return Finished, nil
			}
			curFrame = next
		}
	}

	r.resample.process(r.inBuf.inner(), r.resample.inputFramesNext(), r.outBuf)
	return Unfinished, nil
}
