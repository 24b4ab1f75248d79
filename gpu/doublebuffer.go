package gpu

import "fmt"

// DoubleBuffer wraps two same-layout Streams and exposes a read/write
// index pair that swaps on demand (§3 "ComputeDoubleBuffer", ping-pong
// resource binding for compute passes).
type DoubleBuffer struct {
	streams  [2]*Stream
	readIdx  int
}

// NewDoubleBuffer wraps a and b. The caller retains ownership of both
// streams; the double buffer does not destroy them.
func NewDoubleBuffer(a, b *Stream) (*DoubleBuffer, error) {
	if a == nil || b == nil {
		return nil, fmt.Errorf("gpu: double buffer requires two non-nil streams")
	}
	if a.ElementSize != b.ElementSize || a.Count != b.Count {
		return nil, fmt.Errorf("gpu: double buffer streams must share layout (got %d*%d vs %d*%d)",
			a.Count, a.ElementSize, b.Count, b.ElementSize)
	}
	return &DoubleBuffer{streams: [2]*Stream{a, b}}, nil
}

// Read returns the current "read" stream.
func (d *DoubleBuffer) Read() *Stream { return d.streams[d.readIdx] }

// Write returns the current "write" (opposite) stream.
func (d *DoubleBuffer) Write() *Stream { return d.streams[1-d.readIdx] }

// Swap toggles the read/write index. Swapping twice is the identity
// (spec.md §8 round-trip property).
func (d *DoubleBuffer) Swap() {
	d.readIdx = 1 - d.readIdx
}
