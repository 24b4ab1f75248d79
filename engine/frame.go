package engine

import (
	"encoding/binary"
	"math"

	"github.com/kiln-engine/kiln/backend"
	"github.com/kiln-engine/kiln/cmdlist"
	"github.com/kiln-engine/kiln/computegraph"
	"github.com/kiln-engine/kiln/gpu"
	"github.com/kiln-engine/kiln/rendergraph"
	"github.com/kiln-engine/kiln/ui"
)

// Packet is the payload framepacket.Pipeline swaps between the logic and
// render goroutines (§4.9): the logic side materializes a ui.Frame and
// builds its DisplayList, then the render side turns the DisplayList
// into GPU instance data and submits it.
type Packet struct {
	Frame   *ui.Frame
	Display *ui.DisplayList
}

// instanceStride is the size in bytes of one packed instance record:
// min (vec2) + max (vec2) + uv0 (vec2) + uv1 (vec2) + color (vec4) +
// isGlyph (float32), padded to a std430-friendly 16-byte multiple.
const instanceStride = 64

// encodeInstances packs a DisplayList's rects and glyphs into one flat
// instance buffer, rects first, so a single SSBO-backed draw can cover
// an entire frame (the default-UI pipeline layout's Set 1 instance
// storage buffer; gl_InstanceIndex selects the record).
func encodeInstances(dl *ui.DisplayList) []byte {
	count := len(dl.Rects) + len(dl.Glyphs)
	out := make([]byte, count*instanceStride)

	put := func(rec []byte, minX, minY, maxX, maxY, u0, v0, u1, v1, r, g, b, a, isGlyph float32) {
		f := func(off int, v float32) {
			binary.LittleEndian.PutUint32(rec[off:], math.Float32bits(v))
		}
		f(0, minX)
		f(4, minY)
		f(8, maxX)
		f(12, maxY)
		f(16, u0)
		f(20, v0)
		f(24, u1)
		f(28, v1)
		f(32, r)
		f(36, g)
		f(40, b)
		f(44, a)
		f(48, isGlyph)
	}

	i := 0
	for _, rect := range dl.Rects {
		rec := out[i*instanceStride : (i+1)*instanceStride]
		put(rec, rect.Box.X, rect.Box.Y, rect.Box.X+rect.Box.W, rect.Box.Y+rect.Box.H,
			0, 0, 0, 0, rect.Color.X, rect.Color.Y, rect.Color.Z, rect.Color.W, 0)
		i++
	}
	for _, g := range dl.Glyphs {
		rec := out[i*instanceStride : (i+1)*instanceStride]
		put(rec, g.Min.X, g.Min.Y, g.Max.X, g.Max.Y,
			g.UV0.X, g.UV0.Y, g.UV1.X, g.UV1.Y, g.Color.X, g.Color.Y, g.Color.Z, g.Color.W, 1)
		i++
	}
	return out
}

// ensureInstanceCapacity grows e's persistent instance stream to hold at
// least count records, recreating it only when the existing stream is
// too small (new frames usually reuse the same buffer). When a
// cull.spv compute pipeline was loaded, the ping-pong culling buffers
// are grown in lockstep.
func (e *Engine) ensureInstanceCapacity(count uint64) error {
	if e.instanceStream != nil && e.instanceStream.Count >= count {
		return nil
	}
	if e.instanceStream != nil {
		e.instanceStream.Destroy()
	}
	capacity := count
	if capacity < 1024 {
		capacity = 1024
	}
	s, err := gpu.Create(e.backend, gpu.TypeCustom, capacity, instanceStride)
	if err != nil {
		return err
	}
	e.instanceStream = s

	if e.computePipeline != backend.InvalidPipelineHandle {
		if err := e.rebuildCullGraph(capacity); err != nil {
			return err
		}
	}
	return nil
}

// rebuildCullGraph (re)allocates the ping-pong buffers an
// instance-culling compute pass writes into and re-declares the pass
// against the new streams, since the old bindings would otherwise
// reference buffers ensureInstanceCapacity just destroyed.
func (e *Engine) rebuildCullGraph(capacity uint64) error {
	if e.cullA != nil {
		e.cullA.Destroy()
	}
	if e.cullB != nil {
		e.cullB.Destroy()
	}
	a, err := gpu.Create(e.backend, gpu.TypeCustom, capacity, instanceStride)
	if err != nil {
		return err
	}
	b, err := gpu.Create(e.backend, gpu.TypeCustom, capacity, instanceStride)
	if err != nil {
		return err
	}
	e.cullA, e.cullB = a, b

	db, err := gpu.NewDoubleBuffer(a, b)
	if err != nil {
		return err
	}
	e.instanceDouble = db

	e.computeGraph = computegraph.New()
	pass := e.computeGraph.AddPass(uint32(e.computePipeline), 1, 1, 1)
	pass.BindStream(0, e.instanceStream)
	pass.BindBufferWrite(1, e.instanceDouble)
	e.cullPass = pass
	return nil
}

// renderFrame converts one published Packet into a render-graph pass
// and submits it, run on the render goroutine (§4.9's render thread).
// The swapchain color target (and, when a font atlas exists, the atlas
// texture it samples) are declared as rendergraph resources so the
// pass's barrier plan is computed the same way any other pass's would
// be, rather than the backend's renderpass alone deciding transitions.
func (e *Engine) renderFrame(front *Packet) {
	if front == nil || front.Display == nil {
		return
	}
	dl := front.Display
	count := uint64(len(dl.Rects) + len(dl.Glyphs))
	if count == 0 {
		return
	}
	if err := e.ensureInstanceCapacity(count); err != nil {
		e.logger.LogWarn("render: instance buffer: %s", err)
		return
	}
	data := encodeInstances(dl)
	if err := e.instanceStream.SetData(data, count); err != nil {
		e.logger.LogWarn("render: upload instances: %s", err)
		return
	}

	drawStream := e.instanceStream
	if e.computePipeline != backend.InvalidPipelineHandle && e.cullPass != nil {
		groups := uint32((count + 63) / 64)
		e.cullPass.SetDispatchSize(groups, 1, 1)
		e.computeGraph.Execute(e.backend, e.logger)
		e.instanceDouble.Swap()
		drawStream = e.instanceDouble.Read()
	}

	g := rendergraph.New()
	color := g.ImportTexture("swapchain_color", e.backend, e.width, e.height, rendergraph.FormatBGRA8Unorm)
	var fontRes rendergraph.ResourceHandle
	if e.atlas != nil {
		if tex, ok := e.resources.Texture(e.fontTextureID); ok {
			fontRes = g.ImportTexture("font_atlas", tex, uint32(e.atlas.Width), uint32(e.atlas.Height), rendergraph.FormatRGBA8Unorm)
		}
	}

	pass, err := g.AddPass("ui", nil)
	if err != nil {
		e.logger.LogWarn("render: rendergraph: %s", err)
		return
	}
	pass.Write(color, rendergraph.LoadOpClear, rendergraph.StoreOpStore)
	if fontRes != rendergraph.InvalidHandle {
		pass.Read(fontRes)
	}
	pass.SetExecution(func(*rendergraph.CmdBuffer, interface{}) {
		e.submitUIPass(drawStream, count, front)
	})

	if err := g.Compile(); err != nil {
		e.logger.LogWarn("render: rendergraph compile: %s", err)
		return
	}
	g.Execute(&rendergraph.CmdBuffer{Backend: e.backend}, func(b rendergraph.Barrier) {
		e.logger.LogDebug("rendergraph: resource %d transition %v -> %v", b.Handle, b.OldLayout, b.NewLayout)
	})
}

// submitUIPass binds drawStream at SSBO slot 0 and replays the UI
// quad/glyph draw call, invoked as the render graph's "ui" pass
// execution callback.
func (e *Engine) submitUIPass(drawStream *gpu.Stream, count uint64, front *Packet) {
	if err := drawStream.BindGraphics(0); err != nil {
		e.logger.LogWarn("render: bind instances: %s", err)
		return
	}

	list := cmdlist.New()
	list.BindPipeline(uint32(e.defaultPipeline))
	list.SetViewport(cmdlist.Viewport{Width: float32(e.width), Height: float32(e.height), MaxDepth: 1})
	list.SetScissor(cmdlist.Scissor{Width: e.width, Height: e.height})
	if front.Frame != nil {
		proj := front.Frame.Transformer.Projection()
		pc := make([]byte, 0, 16*4)
		for _, v := range proj.Data {
			pc = binary.LittleEndian.AppendUint32(pc, math.Float32bits(v))
		}
		list.PushConstants(pc)
	}
	list.Draw(6, uint32(count), 0, 0)

	if err := e.backend.SubmitCommands(list); err != nil {
		e.logger.LogWarn("render: submit commands: %s", err)
	}
}
