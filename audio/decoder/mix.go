package decoder

// mixChannels converts an interleaved block of src (inCh channels) to an
// interleaved block of outCh channels, scaling by volume. Only 1->2, 2->1 and
// equal-channel conversions are supported (inCh/outCh are validated to be 1
// or 2 before this is ever called). dst is grown if its capacity is too small
// for the full output, then resliced to the exact output length and returned.
func mixChannels(dst, src []float32, inCh, outCh int, volume float32) []float32 {
	switch {
	case inCh == 1 && outCh == 2:
		frames := len(src)
		dst = growTo(dst, frames*2)
		for i, s := range src {
			v := s * volume
			dst[i*2] = v
			dst[i*2+1] = v
		}
		return dst[:frames*2]

	case inCh == 2 && outCh == 1:
		frames := len(src) / 2
		dst = growTo(dst, frames)
		for i := 0; i < frames; i++ {
			l, r := src[i*2], src[i*2+1]
			dst[i] = (l + r) * 0.5 * volume
		}
		return dst[:frames]

	default: // equal channel counts: copy and scale
		dst = growTo(dst, len(src))
		for i, s := range src {
			dst[i] = s * volume
		}
		return dst[:len(src)]
	}
}

// growTo returns a slice over buf with at least n capacity, growing (never
// shrinking the underlying array) if buf is too small.
func growTo(buf []float32, n int) []float32 {
	if cap(buf) >= n {
		return buf[:cap(buf)]
	}
	next := make([]float32, n)
	copy(next, buf)
	return next
}
