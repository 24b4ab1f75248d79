package backend

import (
	"sort"

	"github.com/google/uuid"
	"golang.org/x/exp/maps"
)

// ResourceRegistry maps a stable, process-unique uuid.UUID to whatever
// raw handle a RendererBackend currently assigns a resource. Backend
// handles are plain incrementing indices (§4.6 "id>=1 or 0"), which are
// perfectly fine for replay/bookkeeping inside a single backend but are
// not what a caller wants to hold onto across a texture_resize or a
// pipeline rebuild triggered by shader hot-reload: the registry lets the
// engine keep handing out one opaque id for a logical resource's
// lifetime while the backend underneath is free to recreate it.
type ResourceRegistry struct {
	textures  map[uuid.UUID]TextureHandle
	pipelines map[uuid.UUID]PipelineHandle
}

func NewResourceRegistry() *ResourceRegistry {
	return &ResourceRegistry{
		textures:  make(map[uuid.UUID]TextureHandle),
		pipelines: make(map[uuid.UUID]PipelineHandle),
	}
}

// RegisterTexture mints a new logical id for an already-created texture.
func (r *ResourceRegistry) RegisterTexture(h TextureHandle) uuid.UUID {
	id := uuid.New()
	r.textures[id] = h
	return id
}

// Retarget updates the raw handle a logical id resolves to, used after a
// backend operation (e.g. a recreate-on-resize path) hands back a new
// TextureHandle for the same logical resource.
func (r *ResourceRegistry) Retarget(id uuid.UUID, h TextureHandle) {
	if _, ok := r.textures[id]; ok {
		r.textures[id] = h
	}
}

// Texture resolves a logical id to its current backend handle.
func (r *ResourceRegistry) Texture(id uuid.UUID) (TextureHandle, bool) {
	h, ok := r.textures[id]
	return h, ok
}

// ForgetTexture drops a logical id, e.g. after TextureDestroy.
func (r *ResourceRegistry) ForgetTexture(id uuid.UUID) {
	delete(r.textures, id)
}

// RegisterPipeline mints a new logical id for an already-created pipeline.
func (r *ResourceRegistry) RegisterPipeline(h PipelineHandle) uuid.UUID {
	id := uuid.New()
	r.pipelines[id] = h
	return id
}

func (r *ResourceRegistry) Pipeline(id uuid.UUID) (PipelineHandle, bool) {
	h, ok := r.pipelines[id]
	return h, ok
}

func (r *ResourceRegistry) ForgetPipeline(id uuid.UUID) {
	delete(r.pipelines, id)
}

// TextureIDs returns every registered logical texture id in a stable
// (sorted) order, used by diagnostics/tests that enumerate live
// resources without depending on Go's randomized map iteration order.
func (r *ResourceRegistry) TextureIDs() []uuid.UUID {
	ids := maps.Keys(r.textures)
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

// PipelineIDs returns every registered logical pipeline id, sorted.
func (r *ResourceRegistry) PipelineIDs() []uuid.UUID {
	ids := maps.Keys(r.pipelines)
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}
