package gpu

import (
	"bytes"
	"testing"
)

// fakeBackend is an in-memory Backend used to exercise Stream without a
// real GPU, mirroring the stub backends idiomatic Go test suites use for
// hardware-backed interfaces.
type fakeBackend struct {
	data        map[*Stream][]byte
	boundCompute map[uint32]*Stream
	boundGfx     map[uint32]*Stream
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		data:         map[*Stream][]byte{},
		boundCompute: map[uint32]*Stream{},
		boundGfx:     map[uint32]*Stream{},
	}
}

func (f *fakeBackend) BufferCreate(s *Stream) error {
	f.data[s] = make([]byte, s.TotalSize)
	s.HostVisible = true
	s.Handle = s
	return nil
}

func (f *fakeBackend) BufferDestroy(s *Stream) {
	delete(f.data, s)
	for k, v := range f.boundCompute {
		if v == s {
			delete(f.boundCompute, k)
		}
	}
	for k, v := range f.boundGfx {
		if v == s {
			delete(f.boundGfx, k)
		}
	}
}

func (f *fakeBackend) BufferMap(s *Stream) ([]byte, error) { return f.data[s], nil }
func (f *fakeBackend) BufferUnmap(s *Stream) error         { return nil }

func (f *fakeBackend) BufferUpload(s *Stream, data []byte, count uint64) error {
	copy(f.data[s], data)
	return nil
}

func (f *fakeBackend) BufferRead(s *Stream, out []byte, count uint64) error {
	copy(out, f.data[s][:len(out)])
	return nil
}

func (f *fakeBackend) ComputeBindBuffer(s *Stream, slot uint32) error {
	f.boundCompute[slot] = s
	return nil
}

func (f *fakeBackend) GraphicsBindBuffer(s *Stream, slot uint32) error {
	f.boundGfx[slot] = s
	return nil
}

func TestElementSizeTable(t *testing.T) {
	cases := []struct {
		typ  Type
		want uint64
	}{
		{TypeFloat, 4}, {TypeVec2, 8}, {TypeVec3, 12}, {TypeVec4, 16},
		{TypeMat4, 64}, {TypeI32, 4}, {TypeU32, 4},
	}
	for _, c := range cases {
		got, err := ElementSize(c.typ, 0)
		if err != nil {
			t.Fatalf("ElementSize(%v): %v", c.typ, err)
		}
		if got != c.want {
			t.Errorf("ElementSize(%v) = %d, want %d", c.typ, got, c.want)
		}
	}

	if _, err := ElementSize(TypeCustom, 0); err == nil {
		t.Errorf("expected error for TypeCustom with zero size")
	}
	if got, err := ElementSize(TypeCustom, 20); err != nil || got != 20 {
		t.Errorf("ElementSize(TypeCustom, 20) = %d, %v, want 20, nil", got, err)
	}
}

// Invariant 4: count * element_size == total_size.
func TestStreamSizeInvariant(t *testing.T) {
	be := newFakeBackend()
	s, err := Create(be, TypeVec4, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if s.Count*s.ElementSize != s.TotalSize {
		t.Fatalf("invariant broken: %d * %d != %d", s.Count, s.ElementSize, s.TotalSize)
	}
	if s.TotalSize != 160 {
		t.Fatalf("TotalSize = %d, want 160", s.TotalSize)
	}
}

// set_data then read_back yields a bit-exact round trip.
func TestStreamSetDataReadBackRoundTrip(t *testing.T) {
	be := newFakeBackend()
	s, err := Create(be, TypeFloat, 4, 0)
	if err != nil {
		t.Fatal(err)
	}

	in := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	if err := s.SetData(in, 4); err != nil {
		t.Fatal(err)
	}

	out := make([]byte, 16)
	if err := s.ReadBack(out, 4); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(in, out) {
		t.Fatalf("read_back = %v, want %v", out, in)
	}
}

func TestStreamSetDataOverCapacityFails(t *testing.T) {
	be := newFakeBackend()
	s, _ := Create(be, TypeFloat, 2, 0)
	if err := s.SetData(make([]byte, 16), 4); err == nil {
		t.Fatalf("expected error when count exceeds capacity")
	}
}

func TestDoubleBufferSwapIsInvolution(t *testing.T) {
	be := newFakeBackend()
	a, _ := Create(be, TypeFloat, 4, 0)
	b, _ := Create(be, TypeFloat, 4, 0)
	db, err := NewDoubleBuffer(a, b)
	if err != nil {
		t.Fatal(err)
	}

	r0, w0 := db.Read(), db.Write()
	db.Swap()
	db.Swap()
	if db.Read() != r0 || db.Write() != w0 {
		t.Fatalf("swap twice did not return to identity")
	}

	db.Swap()
	if db.Read() != w0 {
		t.Fatalf("single swap should flip read/write")
	}
}

func TestDoubleBufferRejectsMismatchedLayout(t *testing.T) {
	be := newFakeBackend()
	a, _ := Create(be, TypeFloat, 4, 0)
	b, _ := Create(be, TypeVec2, 4, 0)
	if _, err := NewDoubleBuffer(a, b); err == nil {
		t.Fatalf("expected error for mismatched layouts")
	}
}
