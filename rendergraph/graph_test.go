package rendergraph

import "testing"

// A single pass that writes a color attachment produces the expected
// COLOR_ATTACHMENT_OPTIMAL state for that resource (spec.md §8).
func TestRenderGraphWritePassProducesColorAttachmentLayout(t *testing.T) {
	g := New()
	tex := g.CreateTexture("backbuffer", 1920, 1080, FormatRGBA8Unorm)

	pb, err := g.AddPass("main", nil)
	if err != nil {
		t.Fatal(err)
	}
	pb.Write(tex, LoadOpClear, StoreOpStore)

	var barriers []Barrier
	g.Execute(&CmdBuffer{}, func(b Barrier) { barriers = append(barriers, b) })

	if len(barriers) != 1 {
		t.Fatalf("expected 1 barrier, got %d", len(barriers))
	}
	if barriers[0].OldLayout != LayoutUndefined {
		t.Errorf("old layout = %v, want undefined", barriers[0].OldLayout)
	}
	if barriers[0].NewLayout != LayoutColorAttachment {
		t.Errorf("new layout = %v, want color attachment", barriers[0].NewLayout)
	}

	layout, used := g.ResourceLayout(tex)
	if !used || layout != LayoutColorAttachment {
		t.Errorf("ResourceLayout = (%v, %v), want (color attachment, true)", layout, used)
	}
}

func TestRenderGraphDepthPassProducesDepthStencilLayout(t *testing.T) {
	g := New()
	depth := g.CreateTexture("depth", 1920, 1080, FormatD32Sfloat)
	pb, _ := g.AddPass("shadow", nil)
	pb.SetDepth(depth, LoadOpClear, StoreOpDontCare)

	var barriers []Barrier
	g.Execute(&CmdBuffer{}, func(b Barrier) { barriers = append(barriers, b) })

	if barriers[0].NewLayout != LayoutDepthStencilAttachment {
		t.Errorf("new layout = %v, want depth stencil attachment", barriers[0].NewLayout)
	}
	if barriers[0].Access != AccessDepthStencilWrite {
		t.Errorf("access = %v, want depth stencil write", barriers[0].Access)
	}
}

func TestRenderGraphReadPassProducesShaderReadOnlyLayout(t *testing.T) {
	g := New()
	tex := g.ImportTexture("swapchain", struct{}{}, 1920, 1080, FormatBGRA8Unorm)

	writer, _ := g.AddPass("producer", nil)
	writer.Write(tex, LoadOpClear, StoreOpStore)
	reader, _ := g.AddPass("consumer", nil)
	reader.Read(tex)

	var barriers []Barrier
	g.Execute(&CmdBuffer{}, func(b Barrier) { barriers = append(barriers, b) })

	if len(barriers) != 2 {
		t.Fatalf("expected 2 barriers, got %d", len(barriers))
	}
	if barriers[1].OldLayout != LayoutColorAttachment {
		t.Errorf("second barrier old layout = %v, want color attachment (carried over from producer)", barriers[1].OldLayout)
	}
	if barriers[1].NewLayout != LayoutShaderReadOnly {
		t.Errorf("second barrier new layout = %v, want shader read only", barriers[1].NewLayout)
	}
	if !g.IsImported(tex) {
		t.Errorf("expected imported resource to report IsImported == true")
	}
}

func TestRenderGraphExecutionOrderIsDeclarationOrder(t *testing.T) {
	g := New()
	var order []string
	for _, name := range []string{"a", "b", "c"} {
		n := name
		pb, _ := g.AddPass(n, nil)
		pb.SetExecution(func(cmd *CmdBuffer, userData interface{}) {
			order = append(order, n)
		})
	}
	if err := g.Compile(); err != nil {
		t.Fatal(err)
	}
	g.Execute(&CmdBuffer{}, nil)

	want := []string{"a", "b", "c"}
	for i, w := range want {
		if order[i] != w {
			t.Fatalf("execution order = %v, want %v", order, want)
		}
	}
}

func TestRenderGraphResourceTableOverflowReturnsInvalidHandle(t *testing.T) {
	g := New()
	var last ResourceHandle
	for i := 0; i < MaxResources+1; i++ {
		last = g.CreateTexture("t", 1, 1, FormatRGBA8Unorm)
	}
	if last != InvalidHandle {
		t.Fatalf("expected InvalidHandle after exceeding MaxResources, got %d", last)
	}
}

func TestRenderGraphPassTableOverflowReturnsError(t *testing.T) {
	g := New()
	var lastErr error
	for i := 0; i < MaxPasses+1; i++ {
		_, lastErr = g.AddPass("p", nil)
	}
	if lastErr == nil {
		t.Fatalf("expected error after exceeding MaxPasses")
	}
}

func TestRenderGraphPassResourceOverflowIsSilentlyDropped(t *testing.T) {
	g := New()
	pb, _ := g.AddPass("p", nil)
	var handles []ResourceHandle
	for i := 0; i < MaxPassResources+4; i++ {
		h := g.CreateTexture("t", 1, 1, FormatRGBA8Unorm)
		handles = append(handles, h)
		pb.Read(h)
	}
	if len(pb.pass.resources) != MaxPassResources {
		t.Fatalf("pass resource count = %d, want %d", len(pb.pass.resources), MaxPassResources)
	}
}

func TestRenderGraphInvalidHandleIsIgnoredOnExecute(t *testing.T) {
	g := New()
	pb, _ := g.AddPass("p", nil)
	pb.Write(InvalidHandle, LoadOpClear, StoreOpStore)

	called := false
	g.Execute(&CmdBuffer{}, func(b Barrier) { called = true })
	if called {
		t.Fatalf("expected no barrier emitted for invalid handle")
	}
}
