package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
)

type commandBufferState int

const (
	commandBufferStateReady commandBufferState = iota
	commandBufferStateRecording
	commandBufferStateInRenderPass
	commandBufferStateRecordingEnded
	commandBufferStateSubmitted
	commandBufferStateNotAllocated
)

// commandBuffer mirrors the teacher's VulkanCommandBuffer. The
// teacher's NewVulkanCommandBuffer discarded the buffer it had just
// allocated (returned nil, nil on success); this version returns the
// allocated buffer.
type commandBuffer struct {
	handle vk.CommandBuffer
	state  commandBufferState
}

func allocateCommandBuffer(c *context, pool vk.CommandPool, primary bool) (*commandBuffer, error) {
	cb := &commandBuffer{state: commandBufferStateNotAllocated}
	level := vk.CommandBufferLevelSecondary
	if primary {
		level = vk.CommandBufferLevelPrimary
	}
	info := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		CommandBufferCount: 1,
		Level:              level,
	}
	buffers := make([]vk.CommandBuffer, 1)
	if res := vk.AllocateCommandBuffers(c.device.logicalDevice, &info, buffers); !resultIsSuccess(res) {
		return nil, fmt.Errorf("vulkan: allocate command buffer: %s", resultString(res))
	}
	cb.handle = buffers[0]
	cb.state = commandBufferStateReady
	return cb, nil
}

func (cb *commandBuffer) free(c *context, pool vk.CommandPool) {
	vk.FreeCommandBuffers(c.device.logicalDevice, pool, 1, []vk.CommandBuffer{cb.handle})
	cb.handle = nil
	cb.state = commandBufferStateNotAllocated
}

func (cb *commandBuffer) begin(singleUse, renderpassContinue, simultaneous bool) error {
	info := &vk.CommandBufferBeginInfo{SType: vk.StructureTypeCommandBufferBeginInfo}
	if singleUse {
		info.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	if renderpassContinue {
		info.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageRenderPassContinueBit)
	}
	if simultaneous {
		info.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageSimultaneousUseBit)
	}
	if res := vk.BeginCommandBuffer(cb.handle, info); !resultIsSuccess(res) {
		return fmt.Errorf("vulkan: begin command buffer: %s", resultString(res))
	}
	cb.state = commandBufferStateRecording
	return nil
}

func (cb *commandBuffer) end() error {
	if res := vk.EndCommandBuffer(cb.handle); !resultIsSuccess(res) {
		return fmt.Errorf("vulkan: end command buffer: %s", resultString(res))
	}
	cb.state = commandBufferStateRecordingEnded
	return nil
}

func (cb *commandBuffer) reset() { cb.state = commandBufferStateReady }

func createCommandBuffers(c *context) error {
	n := len(c.swapchain.images)
	c.graphicsCommandBuffers = make([]*commandBuffer, n)
	for i := 0; i < n; i++ {
		cb, err := allocateCommandBuffer(c, c.device.graphicsCommandPool, true)
		if err != nil {
			return err
		}
		c.graphicsCommandBuffers[i] = cb
	}
	return nil
}
