package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/kiln-engine/kiln/gpu"
)

// buffer mirrors the teacher's VulkanBuffer (context.go): a device
// buffer, its backing memory, and the usage/property flags it was
// created with. Unlike the teacher's mesh-only vertex/index buffers,
// every buffer here is created with every usage bit spec.md §4.5
// requires ("usage includes storage, vertex, transfer src, transfer dst
// so any stream can serve any role").
type buffer struct {
	handle      vk.Buffer
	memory      vk.DeviceMemory
	size        vk.DeviceSize
	hostVisible bool
	mappedPtr   unsafe.Pointer
}

// bytesFromPointer views count bytes starting at ptr as a []byte, used to
// turn a vk.MapMemory result into a Go slice the gpu.Stream contract can
// read/write directly.
func bytesFromPointer(ptr unsafe.Pointer, count int) []byte {
	if ptr == nil || count == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(ptr), count)
}

const streamUsage = vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit) |
	vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit) |
	vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit) |
	vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit) |
	vk.BufferUsageFlags(vk.BufferUsageTransferDstBit)

func createDeviceBuffer(c *context, size uint64, hostVisible bool) (*buffer, error) {
	b := &buffer{size: vk.DeviceSize(size), hostVisible: hostVisible}

	info := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        b.size,
		Usage:       streamUsage,
		SharingMode: vk.SharingModeExclusive,
	}
	if res := vk.CreateBuffer(c.device.logicalDevice, &info, c.allocator, &b.handle); !resultIsSuccess(res) {
		return nil, fmt.Errorf("vulkan: create buffer: %s", resultString(res))
	}

	var req vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(c.device.logicalDevice, b.handle, &req)
	req.Deref()

	props := vk.MemoryPropertyFlagBits(vk.MemoryPropertyDeviceLocalBit)
	if hostVisible {
		props = vk.MemoryPropertyFlagBits(vk.MemoryPropertyHostVisibleBit) | vk.MemoryPropertyFlagBits(vk.MemoryPropertyHostCoherentBit)
	}
	memType := c.findMemoryIndex(req.MemoryTypeBits, props)
	if memType == -1 {
		vk.DestroyBuffer(c.device.logicalDevice, b.handle, c.allocator)
		return nil, fmt.Errorf("vulkan: no memory type for buffer (hostVisible=%v)", hostVisible)
	}

	allocInfo := vk.MemoryAllocateInfo{SType: vk.StructureTypeMemoryAllocateInfo, AllocationSize: req.Size, MemoryTypeIndex: uint32(memType)}
	if res := vk.AllocateMemory(c.device.logicalDevice, &allocInfo, c.allocator, &b.memory); !resultIsSuccess(res) {
		vk.DestroyBuffer(c.device.logicalDevice, b.handle, c.allocator)
		return nil, fmt.Errorf("vulkan: allocate buffer memory: %s", resultString(res))
	}
	if res := vk.BindBufferMemory(c.device.logicalDevice, b.handle, b.memory, 0); !resultIsSuccess(res) {
		return nil, fmt.Errorf("vulkan: bind buffer memory: %s", resultString(res))
	}
	return b, nil
}

func (b *buffer) destroy(c *context) {
	if b.memory != nil {
		vk.FreeMemory(c.device.logicalDevice, b.memory, c.allocator)
		b.memory = nil
	}
	if b.handle != nil {
		vk.DestroyBuffer(c.device.logicalDevice, b.handle, c.allocator)
		b.handle = nil
	}
}

// oneShotBegin/oneShotEnd ground buffer copies and image layout
// transitions on the teacher's AllocateAndBeginSingleUse/EndSingleUse
// pair (command_buffer.go), generalized away from a hard-coded graphics
// queue pool to whichever pool the caller supplies.
func oneShotBegin(c *context, pool vk.CommandPool) (*commandBuffer, error) {
	cb, err := allocateCommandBuffer(c, pool, true)
	if err != nil {
		return nil, err
	}
	if err := cb.begin(true, false, false); err != nil {
		return nil, err
	}
	return cb, nil
}

func oneShotEnd(c *context, cb *commandBuffer, pool vk.CommandPool, queue vk.Queue) error {
	if err := cb.end(); err != nil {
		return err
	}
	info := vk.SubmitInfo{SType: vk.StructureTypeSubmitInfo, CommandBufferCount: 1, PCommandBuffers: []vk.CommandBuffer{cb.handle}}
	if res := vk.QueueSubmit(queue, 1, []vk.SubmitInfo{info}, nil); !resultIsSuccess(res) {
		return fmt.Errorf("vulkan: one-shot queue submit: %s", resultString(res))
	}
	if res := vk.QueueWaitIdle(queue); !resultIsSuccess(res) {
		return fmt.Errorf("vulkan: one-shot queue wait idle: %s", resultString(res))
	}
	cb.free(c, pool)
	return nil
}

// copyBuffer records and submits a one-shot copy from src to dst,
// grounding gpu.Stream's staging-buffer upload/read path (§4.5).
func copyBuffer(c *context, src, dst *buffer, size vk.DeviceSize) error {
	return c.locks.safeCall(lockQueue, func() error {
		cb, err := oneShotBegin(c, c.device.graphicsCommandPool)
		if err != nil {
			return err
		}
		region := vk.BufferCopy{SrcOffset: 0, DstOffset: 0, Size: size}
		vk.CmdCopyBuffer(cb.handle, src.handle, dst.handle, 1, []vk.BufferCopy{region})
		return oneShotEnd(c, cb, c.device.graphicsCommandPool, c.device.graphicsQueue)
	})
}

// --- gpu.Backend implementation ---

func (vb *Backend) BufferCreate(s *gpu.Stream) error {
	b, err := createDeviceBuffer(vb.ctx, s.TotalSize, s.HostVisible)
	if err != nil {
		return err
	}
	s.Handle = b
	return nil
}

func (vb *Backend) BufferDestroy(s *gpu.Stream) {
	if b, ok := s.Handle.(*buffer); ok {
		b.destroy(vb.ctx)
	}
	s.Handle = nil
	vb.unbindStream(s)
}

func (vb *Backend) BufferMap(s *gpu.Stream) ([]byte, error) {
	b, ok := s.Handle.(*buffer)
	if !ok || b == nil {
		return nil, fmt.Errorf("vulkan: buffer_map: stream has no device buffer")
	}
	if !b.hostVisible {
		return nil, fmt.Errorf("vulkan: buffer_map: stream is not host-visible")
	}
	var data unsafe.Pointer
	if res := vk.MapMemory(vb.ctx.device.logicalDevice, b.memory, 0, b.size, 0, &data); !resultIsSuccess(res) {
		return nil, fmt.Errorf("vulkan: map memory: %s", resultString(res))
	}
	b.mappedPtr = data
	return bytesFromPointer(data, int(b.size)), nil
}

func (vb *Backend) BufferUnmap(s *gpu.Stream) error {
	b, ok := s.Handle.(*buffer)
	if !ok || b == nil {
		return fmt.Errorf("vulkan: buffer_unmap: stream has no device buffer")
	}
	vk.UnmapMemory(vb.ctx.device.logicalDevice, b.memory)
	b.mappedPtr = nil
	return nil
}

// BufferUpload stages data through a transient host-visible buffer and a
// one-shot copy submit, per §4.5 set_data.
func (vb *Backend) BufferUpload(s *gpu.Stream, data []byte, count uint64) error {
	b, ok := s.Handle.(*buffer)
	if !ok || b == nil {
		return fmt.Errorf("vulkan: buffer_upload: stream has no device buffer")
	}
	size := uint64(len(data))
	staging, err := createDeviceBuffer(vb.ctx, size, true)
	if err != nil {
		return err
	}
	defer staging.destroy(vb.ctx)

	var mapped unsafe.Pointer
	if res := vk.MapMemory(vb.ctx.device.logicalDevice, staging.memory, 0, vk.DeviceSize(size), 0, &mapped); !resultIsSuccess(res) {
		return fmt.Errorf("vulkan: map staging memory: %s", resultString(res))
	}
	copy(bytesFromPointer(mapped, int(size)), data)
	vk.UnmapMemory(vb.ctx.device.logicalDevice, staging.memory)

	return copyBuffer(vb.ctx, staging, b, vk.DeviceSize(size))
}

// BufferRead downloads via staging + one-shot copy + wait + memcpy,
// blocking (§4.5 read_back: "not a per-frame hot path").
func (vb *Backend) BufferRead(s *gpu.Stream, out []byte, count uint64) error {
	b, ok := s.Handle.(*buffer)
	if !ok || b == nil {
		return fmt.Errorf("vulkan: buffer_read: stream has no device buffer")
	}
	size := uint64(len(out))
	staging, err := createDeviceBuffer(vb.ctx, size, true)
	if err != nil {
		return err
	}
	defer staging.destroy(vb.ctx)

	if err := copyBuffer(vb.ctx, b, staging, vk.DeviceSize(size)); err != nil {
		return err
	}

	var mapped unsafe.Pointer
	if res := vk.MapMemory(vb.ctx.device.logicalDevice, staging.memory, 0, vk.DeviceSize(size), 0, &mapped); !resultIsSuccess(res) {
		return fmt.Errorf("vulkan: map staging memory for read: %s", resultString(res))
	}
	copy(out, bytesFromPointer(mapped, int(size)))
	vk.UnmapMemory(vb.ctx.device.logicalDevice, staging.memory)
	return nil
}

// ComputeBindBuffer and GraphicsBindBuffer record the stream as the
// pending SSBO binding at slot; the actual descriptor write happens
// lazily at the next dispatch/draw (§4.7 step 4, §4.4 execute).
func (vb *Backend) ComputeBindBuffer(s *gpu.Stream, slot uint32) error {
	vb.pendingCompute[slot] = s
	return nil
}

func (vb *Backend) GraphicsBindBuffer(s *gpu.Stream, slot uint32) error {
	vb.pendingGraphics[slot] = s
	vb.bindingsDirty = true
	return nil
}

func (vb *Backend) unbindStream(s *gpu.Stream) {
	for slot, bound := range vb.pendingGraphics {
		if bound == s {
			delete(vb.pendingGraphics, slot)
		}
	}
	for slot, bound := range vb.pendingCompute {
		if bound == s {
			delete(vb.pendingCompute, slot)
		}
	}
}
