package output

import (
	"sync/atomic"
	"time"
)

// ringBuffer is a lock-free single-producer/single-consumer circular buffer
// of interleaved float32 samples: atomic head/tail counters, modulo
// indexing into a fixed backing array, bulk slice transfers on both ends.
type ringBuffer struct {
	data []float32
	head atomic.Uint64
	tail atomic.Uint64
}

func newRingBuffer(capacity int) *ringBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &ringBuffer{data: make([]float32, capacity)}
}

func (rb *ringBuffer) capacity() int { return len(rb.data) }

// count is the number of valid samples currently buffered.
func (rb *ringBuffer) count() int {
	return int(rb.head.Load() - rb.tail.Load())
}

func (rb *ringBuffer) spaceAvailable() int { return rb.capacity() - rb.count() }

func (rb *ringBuffer) isFull() bool { return rb.count() >= rb.capacity() }

// write is the non-blocking producer path: copies as many leading samples
// of src as fit and returns the count written (0..=len(src)).
func (rb *ringBuffer) write(src []float32) int {
	head := rb.head.Load()
	tail := rb.tail.Load()
	free := rb.capacity() - int(head-tail)

	n := len(src)
	if n > free {
		n = free
	}
	capN := uint64(rb.capacity())
	for i := 0; i < n; i++ {
		rb.data[(head+uint64(i))%capN] = src[i]
	}
	rb.head.Add(uint64(n))
	return n
}

// writeBlockingTimeout blocks the producer via a bounded poll-sleep loop
// until every sample of src has been written or timeout elapses with
// samples still unwritten. Returns true if src was fully drained. The
// consumer side stays non-blocking; only the producer ever sleeps here.
func (rb *ringBuffer) writeBlockingTimeout(src []float32, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	const pollInterval = 2 * time.Millisecond
	for len(src) > 0 {
		n := rb.write(src)
		src = src[n:]
		if len(src) == 0 {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(pollInterval)
	}
	return true
}

// read is the non-blocking consumer path, called only from the device
// callback thread: copies as many samples into dst as are available and
// returns the count copied. Never blocks, never allocates.
func (rb *ringBuffer) read(dst []float32) int {
	head := rb.head.Load()
	tail := rb.tail.Load()

	avail := int(head - tail)
	n := len(dst)
	if n > avail {
		n = avail
	}
	capN := uint64(rb.capacity())
	for i := 0; i < n; i++ {
		dst[i] = rb.data[(tail+uint64(i))%capN]
	}
	rb.tail.Add(uint64(n))
	return n
}
