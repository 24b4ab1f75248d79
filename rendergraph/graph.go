// Package rendergraph implements the declarative render graph from
// spec.md §4.3: resources and passes are declared, compile orders them
// (currently immediate-mode: declaration order), and execute derives
// barriers/layout transitions per resource usage before invoking each
// pass's execute callback. Grounded on
// original_source/src/services/render/render_graph/render_graph.{h,c},
// translated from bounded C arrays into bounded Go slices with the same
// fixed-capacity, handle-overflow-returns-zero semantics.
package rendergraph

import "fmt"

// Bounded capacities, matching the original's MAX_PASSES/MAX_RESOURCES/
// MAX_PASS_RESOURCES (spec.md §4.3 "Failure semantics").
const (
	MaxPasses        = 64
	MaxResources      = 128
	MaxPassResources = 16
)

// ResourceHandle is a 1-based index into the graph's resource table; 0 is
// invalid.
type ResourceHandle uint32

// InvalidHandle is the zero handle returned on overflow.
const InvalidHandle ResourceHandle = 0

type Format int

const (
	FormatUndefined Format = iota
	FormatRGBA8Unorm
	FormatBGRA8Unorm
	FormatD32Sfloat
	FormatRGBA32Sfloat
)

type LoadOp int

const (
	LoadOpDontCare LoadOp = iota
	LoadOpClear
	LoadOpLoad
)

type StoreOp int

const (
	StoreOpDontCare StoreOp = iota
	StoreOpStore
)

// TextureDesc describes a transient or imported texture resource.
type TextureDesc struct {
	Name   string
	Width  uint32
	Height uint32
	Format Format
}

type resource struct {
	desc       TextureDesc
	isImported bool
	external   interface{}

	// currentLayout tracks the resource's layout across passes so the
	// first use transitions from "undefined" (§4.3 usage->layout mapping).
	currentLayout Layout
	everUsed      bool
}

// ResourceRef is one pass's declared use of a resource: read, write, or
// depth, with load/store ops for writes.
type ResourceRef struct {
	Handle  ResourceHandle
	IsWrite bool
	IsDepth bool
	Load    LoadOp
	Store   StoreOp
}

// Layout is the backend-neutral analogue of a VkImageLayout the graph
// computes per resource usage.
type Layout int

const (
	LayoutUndefined Layout = iota
	LayoutColorAttachment
	LayoutDepthStencilAttachment
	LayoutShaderReadOnly
	LayoutTransferSrc
	LayoutPresentSrc
)

// Access and Stage are backend-neutral analogues of VkAccessFlags /
// VkPipelineStageFlags.
type Access int

const (
	AccessNone Access = iota
	AccessColorAttachmentWrite
	AccessDepthStencilWrite
	AccessShaderRead
)

type Stage int

const (
	StageNone Stage = iota
	StageColorAttachmentOutput
	StageEarlyFragmentTests
	StageLateFragmentTests
	StageFragmentShader
)

// Barrier is one resource transition a pass's execution requires before
// it runs.
type Barrier struct {
	Handle    ResourceHandle
	OldLayout Layout
	NewLayout Layout
	Access    Access
	Stage     Stage
}

// CmdBuffer is the opaque, backend-specific recording context passed to
// a pass's execute callback (the original's RgCmdBuffer).
type CmdBuffer struct {
	Backend interface{}
}

// ExecuteFn is invoked once per pass during Execute, after that pass's
// barriers have been emitted.
type ExecuteFn func(cmd *CmdBuffer, userData interface{})

// Pass is a declared render-graph pass: a name, its resource references,
// arbitrary user data, and an execution callback.
type Pass struct {
	Name      string
	resources []ResourceRef
	UserData  interface{}
	Execute   ExecuteFn
}

// Graph is the render-graph builder + compiled barrier plan.
type Graph struct {
	resources []resource
	passes    []*Pass
}

func New() *Graph {
	return &Graph{}
}

func (g *Graph) addResource(desc TextureDesc) (ResourceHandle, *resource) {
	if len(g.resources) >= MaxResources {
		return InvalidHandle, nil
	}
	g.resources = append(g.resources, resource{desc: desc})
	h := ResourceHandle(len(g.resources))
	return h, &g.resources[h-1]
}

// CreateTexture declares a transient texture the graph allocates and
// owns for its own lifetime (<= the graph's lifetime).
func (g *Graph) CreateTexture(name string, w, h uint32, format Format) ResourceHandle {
	h2, res := g.addResource(TextureDesc{Name: name, Width: w, Height: h, Format: format})
	if res == nil {
		return InvalidHandle
	}
	res.isImported = false
	return h2
}

// ImportTexture declares a resource backed externally (e.g. a swapchain
// image). The graph plans barriers for it but never destroys it.
func (g *Graph) ImportTexture(name string, external interface{}, w, h uint32, format Format) ResourceHandle {
	h2, res := g.addResource(TextureDesc{Name: name, Width: w, Height: h, Format: format})
	if res == nil {
		return InvalidHandle
	}
	res.isImported = true
	res.external = external
	return h2
}

// AddPass begins a new pass. userData is stored on the pass and handed
// to its execution callback, standing in for rg_add_pass's
// out_user_data.
func (g *Graph) AddPass(name string, userData interface{}) (*PassBuilder, error) {
	if len(g.passes) >= MaxPasses {
		return nil, fmt.Errorf("rendergraph: pass table full (max %d)", MaxPasses)
	}
	p := &Pass{Name: name, UserData: userData}
	g.passes = append(g.passes, p)
	return &PassBuilder{graph: g, pass: p}, nil
}

// PassBuilder is the fluent setup API used inside a pass's declaration.
type PassBuilder struct {
	graph *Graph
	pass  *Pass
}

func (b *PassBuilder) Read(res ResourceHandle) {
	if len(b.pass.resources) >= MaxPassResources {
		return
	}
	b.pass.resources = append(b.pass.resources, ResourceRef{Handle: res, IsWrite: false})
}

func (b *PassBuilder) Write(res ResourceHandle, load LoadOp, store StoreOp) {
	if len(b.pass.resources) >= MaxPassResources {
		return
	}
	b.pass.resources = append(b.pass.resources, ResourceRef{Handle: res, IsWrite: true, Load: load, Store: store})
}

func (b *PassBuilder) SetDepth(res ResourceHandle, load LoadOp, store StoreOp) {
	if len(b.pass.resources) >= MaxPassResources {
		return
	}
	b.pass.resources = append(b.pass.resources, ResourceRef{Handle: res, IsWrite: true, IsDepth: true, Load: load, Store: store})
}

func (b *PassBuilder) SetExecution(fn ExecuteFn) {
	b.pass.Execute = fn
}

// Compile validates and orders the graph. Current policy: accept
// declaration order (immediate-mode DAG) per spec.md §4.3.
func (g *Graph) Compile() error {
	return nil
}

// usageToLayout maps a resource reference's usage tags to the
// layout/access/stage triple spec.md §4.3 prescribes.
func usageToLayout(ref ResourceRef) (Layout, Access, Stage) {
	switch {
	case ref.IsDepth:
		return LayoutDepthStencilAttachment, AccessDepthStencilWrite, StageEarlyFragmentTests
	case ref.IsWrite:
		return LayoutColorAttachment, AccessColorAttachmentWrite, StageColorAttachmentOutput
	default:
		return LayoutShaderReadOnly, AccessShaderRead, StageFragmentShader
	}
}

// Execute walks the compiled passes, computing a barrier for each
// resource reference (old-layout tracked per-resource; first use
// transitions from undefined), invoking emitBarrier for each, then the
// pass's own Execute callback.
func (g *Graph) Execute(cmd *CmdBuffer, emitBarrier func(Barrier)) {
	for _, pass := range g.passes {
		for _, ref := range pass.resources {
			if ref.Handle == InvalidHandle || int(ref.Handle) > len(g.resources) {
				continue
			}
			res := &g.resources[ref.Handle-1]
			newLayout, access, stage := usageToLayout(ref)

			old := LayoutUndefined
			if res.everUsed {
				old = res.currentLayout
			}

			if emitBarrier != nil {
				emitBarrier(Barrier{
					Handle:    ref.Handle,
					OldLayout: old,
					NewLayout: newLayout,
					Access:    access,
					Stage:     stage,
				})
			}

			res.currentLayout = newLayout
			res.everUsed = true
		}

		if pass.Execute != nil {
			pass.Execute(cmd, pass.UserData)
		}
	}
}

// ResourceLayout reports a resource's most recently computed layout, for
// tests asserting on the compiled barrier plan.
func (g *Graph) ResourceLayout(h ResourceHandle) (Layout, bool) {
	if h == InvalidHandle || int(h) > len(g.resources) {
		return LayoutUndefined, false
	}
	res := &g.resources[h-1]
	return res.currentLayout, res.everUsed
}

// IsImported reports whether h was declared via ImportTexture (and is
// therefore never destroyed by the graph).
func (g *Graph) IsImported(h ResourceHandle) bool {
	if h == InvalidHandle || int(h) > len(g.resources) {
		return false
	}
	return g.resources[h-1].isImported
}

// Passes exposes the declared passes for inspection/tests.
func (g *Graph) Passes() []*Pass { return g.passes }
