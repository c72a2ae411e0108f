package output

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingBufferWriteReadRoundTrip(t *testing.T) {
	rb := newRingBuffer(8)
	n := rb.write([]float32{1, 2, 3})
	require.Equal(t, 3, n)

	dst := make([]float32, 3)
	n = rb.read(dst)
	require.Equal(t, 3, n)
	assert.Equal(t, []float32{1, 2, 3}, dst)
}

func TestRingBufferWriteTruncatesWhenFull(t *testing.T) {
	rb := newRingBuffer(4)
	n := rb.write([]float32{1, 2, 3, 4, 5, 6})
	assert.Equal(t, 4, n)
	assert.True(t, rb.isFull())
}

func TestRingBufferSizePlusSpaceEqualsCapacity(t *testing.T) {
	rb := newRingBuffer(16)
	rb.write([]float32{1, 2, 3, 4, 5})
	assert.Equal(t, rb.capacity(), rb.count()+rb.spaceAvailable())
}

func TestRingBufferWrapsAroundCorrectly(t *testing.T) {
	rb := newRingBuffer(4)
	rb.write([]float32{1, 2, 3})
	out := make([]float32, 3)
	rb.read(out)
	rb.write([]float32{4, 5, 6})

	dst := make([]float32, 3)
	n := rb.read(dst)
	require.Equal(t, 3, n)
	assert.Equal(t, []float32{4, 5, 6}, dst)
}

func TestRingBufferReadReturnsOnlyWhatIsAvailable(t *testing.T) {
	rb := newRingBuffer(8)
	rb.write([]float32{1, 2})
	dst := make([]float32, 5)
	n := rb.read(dst)
	assert.Equal(t, 2, n)
}

func TestRingBufferWriteBlockingTimeoutSucceedsWhenSpaceOpensUp(t *testing.T) {
	rb := newRingBuffer(2)
	done := make(chan bool, 1)
	go func() {
		done <- rb.writeBlockingTimeout([]float32{1, 2, 3, 4}, 200*time.Millisecond)
	}()

	time.Sleep(10 * time.Millisecond)
	drained := make([]float32, 2)
	rb.read(drained)

	assert.True(t, <-done)
}

func TestRingBufferWriteBlockingTimeoutFailsWhenNeverDrained(t *testing.T) {
	rb := newRingBuffer(2)
	ok := rb.writeBlockingTimeout([]float32{1, 2, 3, 4}, 20*time.Millisecond)
	assert.False(t, ok)
}
