package backend

import (
	"reflect"
	"testing"

	"github.com/kiln-engine/kiln/cmdlist"
	"github.com/kiln-engine/kiln/computegraph"
)

var _ RendererBackend = (*Stub)(nil)
var _ computegraph.Backend = (*Stub)(nil)

func TestStubInitTracksDimensions(t *testing.T) {
	s := NewStub()
	if err := s.Init(InitParams{Width: 1920, Height: 1080}); err != nil {
		t.Fatal(err)
	}
	if !s.Initialized || s.Width != 1920 || s.Height != 1080 {
		t.Fatalf("Init did not latch params: %+v", s)
	}
}

func TestStubSubmitCommandsReplaysInOrder(t *testing.T) {
	s := NewStub()
	l := cmdlist.New()
	l.BindPipeline(1)
	l.Draw(3, 1, 0, 0)

	if err := s.SubmitCommands(l); err != nil {
		t.Fatal(err)
	}

	want := []string{"bind_pipeline", "draw"}
	if !reflect.DeepEqual(s.ReplayLog(), want) {
		t.Fatalf("replay log = %v, want %v", s.ReplayLog(), want)
	}
	if s.SubmittedLists != 1 {
		t.Fatalf("SubmittedLists = %d, want 1", s.SubmittedLists)
	}
}

func TestStubRejectsEmptySPIRVAndDestroyedTexture(t *testing.T) {
	s := NewStub()
	if _, err := s.ComputePipelineCreate(nil, LayoutCompute); err == nil {
		t.Fatalf("expected error creating pipeline from empty SPIR-V")
	}

	tex, err := s.TextureCreate(256, 256, TextureFormatRGBA8)
	if err != nil || tex == InvalidTextureHandle {
		t.Fatalf("TextureCreate failed: %v, handle=%d", err, tex)
	}
	if _, err := s.TextureGetDescriptor(tex); err != nil {
		t.Fatalf("TextureGetDescriptor: %v", err)
	}
	s.TextureDestroy(tex)
	if _, err := s.TextureGetDescriptor(tex); err == nil {
		t.Fatalf("expected error after texture destroyed")
	}
}

func TestStubComputeDegradesWhenDisabled(t *testing.T) {
	s := NewStub()
	s.SetComputeEnabled(false)
	if s.HasCompute() {
		t.Fatalf("expected HasCompute() == false")
	}
}
