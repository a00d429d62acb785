// ABOUTME: Lock-free single-producer single-consumer byte ring
// ABOUTME: Hands PCM bytes from the network goroutine to the realtime output callback
package queue

import "sync/atomic"

// DefaultCapacity is the shared buffer size between network and output
const DefaultCapacity = 5 * 1024

type ring struct {
	buf []byte

	// Monotonic byte counters. tail is only stored by the producer,
	// head only by the consumer.
	head atomic.Uint64
	tail atomic.Uint64
}

func (r *ring) used() int {
	return int(r.tail.Load() - r.head.Load())
}

// Producer is the write half. It must be used from one goroutine at a time.
type Producer struct {
	r *ring
}

// Consumer is the read half. Its methods never block or allocate.
type Consumer struct {
	r *ring
}

// New creates a queue holding up to capacity bytes
func New(capacity int) (*Producer, *Consumer) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	r := &ring{buf: make([]byte, capacity)}
	return &Producer{r: r}, &Consumer{r: r}
}

// Capacity returns the total size of the queue in bytes
func (p *Producer) Capacity() int {
	return len(p.r.buf)
}

// Free returns how many bytes can be written without loss
func (p *Producer) Free() int {
	return len(p.r.buf) - p.r.used()
}

// Write stores as much of data as fits. Bytes that do not fit are dropped
// and reported as lost.
func (p *Producer) Write(data []byte) (written, lost int) {
	r := p.r
	tail := r.tail.Load()
	free := len(r.buf) - int(tail-r.head.Load())

	n := min(len(data), free)
	if n == 0 {
		return 0, len(data)
	}

	start := int(tail % uint64(len(r.buf)))
	first := copy(r.buf[start:], data[:n])
	copy(r.buf, data[first:n])

	r.tail.Store(tail + uint64(n))
	return n, len(data) - n
}

// Available returns how many bytes are ready to read
func (c *Consumer) Available() int {
	return c.r.used()
}

// Read fills dst from the queue and zero-fills the remainder.
// It returns the number of queued bytes copied.
func (c *Consumer) Read(dst []byte) int {
	return c.ReadFrames(dst, 1, 0)
}

// ReadFrames copies whole frames of frameSize bytes into dst and fills the
// rest of dst with silence. A partially queued frame stays in the queue.
func (c *Consumer) ReadFrames(dst []byte, frameSize int, silence byte) int {
	r := c.r
	head := r.head.Load()
	avail := int(r.tail.Load() - head)

	n := min(len(dst), avail)
	if frameSize > 1 {
		n -= n % frameSize
	}

	if n > 0 {
		start := int(head % uint64(len(r.buf)))
		first := copy(dst[:n], r.buf[start:])
		copy(dst[first:n], r.buf)
		r.head.Store(head + uint64(n))
	}

	fill := dst[n:]
	if silence == 0 {
		clear(fill)
	} else {
		for i := range fill {
			fill[i] = silence
		}
	}
	return n
}
