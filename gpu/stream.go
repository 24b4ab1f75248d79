// Package gpu implements Stream, the engine's typed wrapper around a GPU
// buffer (§3 "Stream", §4.5). A Stream is backend-agnostic: it owns its
// element/count bookkeeping and delegates the actual device work to a
// Backend, mirroring the teacher's VulkanBuffer (engine/renderer/vulkan/
// context.go) generalized behind an interface instead of being Vulkan-only.
package gpu

import "fmt"

// Type identifies the element layout of a Stream, used to resolve
// ElementSize when the caller does not supply a custom size.
type Type int

const (
	TypeFloat Type = iota
	TypeVec2
	TypeVec3
	TypeVec4
	TypeMat4
	TypeI32
	TypeU32
	TypeCustom
)

// ElementSize returns the byte size of one element of t. For TypeCustom,
// customSize is used directly and must be non-zero.
func ElementSize(t Type, customSize uint64) (uint64, error) {
	switch t {
	case TypeFloat:
		return 4, nil
	case TypeVec2:
		return 8, nil
	case TypeVec3:
		return 12, nil
	case TypeVec4:
		return 16, nil
	case TypeMat4:
		return 64, nil
	case TypeI32, TypeU32:
		return 4, nil
	case TypeCustom:
		if customSize == 0 {
			return 0, fmt.Errorf("gpu: custom stream type requires a non-zero element size")
		}
		return customSize, nil
	default:
		return 0, fmt.Errorf("gpu: unknown stream type %d", t)
	}
}

// Role describes how a Stream's buffer may be used; the spec requires any
// stream to be usable as storage, vertex, or transfer src/dst, so a
// backend always creates it with every usage flag rather than tracking a
// role bit.
type Role int

const (
	RoleStorage Role = iota
	RoleVertex
)

// Backend is the narrow GPU-buffer surface a Stream needs from a
// renderer backend: create/destroy, host<->device transfer, persistent
// mapping, and compute binding. RendererBackend implementations (see
// package backend) satisfy this interface structurally.
type Backend interface {
	BufferCreate(s *Stream) error
	BufferDestroy(s *Stream)
	BufferMap(s *Stream) ([]byte, error)
	BufferUnmap(s *Stream) error
	BufferUpload(s *Stream, data []byte, count uint64) error
	BufferRead(s *Stream, out []byte, count uint64) error
	ComputeBindBuffer(s *Stream, slot uint32) error
	GraphicsBindBuffer(s *Stream, slot uint32) error
}

// Stream is a typed, backend-owned GPU buffer. The invariant
// Count*ElementSize == TotalSize holds for the lifetime of the Stream
// (spec.md §8, invariant 4).
type Stream struct {
	backend     Backend
	Type        Type
	ElementSize uint64
	Count       uint64
	TotalSize   uint64
	HostVisible bool

	// Handle is populated by Backend.BufferCreate; it is opaque to this
	// package (e.g. a *vulkan.Buffer for the Vulkan backend).
	Handle interface{}

	mapped bool
}

// Create allocates a new Stream of count elements of type t (customSize
// is only consulted for TypeCustom) and asks backend to create its
// device buffer.
func Create(backend Backend, t Type, count uint64, customSize uint64) (*Stream, error) {
	elemSize, err := ElementSize(t, customSize)
	if err != nil {
		return nil, err
	}
	s := &Stream{
		backend:     backend,
		Type:        t,
		ElementSize: elemSize,
		Count:       count,
		TotalSize:   elemSize * count,
	}
	if err := backend.BufferCreate(s); err != nil {
		return nil, fmt.Errorf("gpu: buffer create failed: %w", err)
	}
	return s, nil
}

// SetData uploads count elements from data (len(data) must be
// count*ElementSize) via a staging buffer + one-shot copy. Fails if
// count exceeds the stream's capacity.
func (s *Stream) SetData(data []byte, count uint64) error {
	if count > s.Count {
		return fmt.Errorf("gpu: set_data count %d exceeds stream capacity %d", count, s.Count)
	}
	want := count * s.ElementSize
	if uint64(len(data)) < want {
		return fmt.Errorf("gpu: set_data expected at least %d bytes, got %d", want, len(data))
	}
	return s.backend.BufferUpload(s, data[:want], count)
}

// ReadBack downloads count elements into out (blocking; debug/picking
// only, not a per-frame hot path per §4.5).
func (s *Stream) ReadBack(out []byte, count uint64) error {
	if count > s.Count {
		return fmt.Errorf("gpu: read_back count %d exceeds stream capacity %d", count, s.Count)
	}
	want := count * s.ElementSize
	if uint64(len(out)) < want {
		return fmt.Errorf("gpu: read_back destination too small: need %d, have %d", want, len(out))
	}
	return s.backend.BufferRead(s, out[:want], count)
}

// Map returns a persistent view of the stream's memory. Only valid for
// host-visible streams.
func (s *Stream) Map() ([]byte, error) {
	if !s.HostVisible {
		return nil, fmt.Errorf("gpu: stream is not host-visible, cannot map")
	}
	b, err := s.backend.BufferMap(s)
	if err != nil {
		return nil, err
	}
	s.mapped = true
	return b, nil
}

// Unmap releases a previous Map.
func (s *Stream) Unmap() error {
	if !s.mapped {
		return nil
	}
	s.mapped = false
	return s.backend.BufferUnmap(s)
}

// BindCompute records this stream as the descriptor for the given slot
// on the next compute dispatch.
func (s *Stream) BindCompute(slot uint32) error {
	return s.backend.ComputeBindBuffer(s, slot)
}

// BindGraphics records this stream as the SSBO bound at slot for
// subsequent draw calls.
func (s *Stream) BindGraphics(slot uint32) error {
	return s.backend.GraphicsBindBuffer(s, slot)
}

// Destroy releases the device buffer. It also unbinds the stream from
// any compute/graphics binding slot the backend may still be holding, to
// avoid dangling references (§4.5).
func (s *Stream) Destroy() {
	if s.backend != nil {
		s.backend.BufferDestroy(s)
	}
}
