package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
)

// fence wraps a vk.Fence with the signaled-state bookkeeping the
// teacher's VulkanFence keeps, so repeated waits on an
// already-signaled fence are free.
type fence struct {
	handle     vk.Fence
	isSignaled bool
}

func createFence(c *context, signaled bool) (*fence, error) {
	f := &fence{isSignaled: signaled}
	info := vk.FenceCreateInfo{SType: vk.StructureTypeFenceCreateInfo}
	if signaled {
		info.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var handle vk.Fence
	if res := vk.CreateFence(c.device.logicalDevice, &info, c.allocator, &handle); !resultIsSuccess(res) {
		return nil, fmt.Errorf("vulkan: create fence: %s", resultString(res))
	}
	f.handle = handle
	return f, nil
}

func (f *fence) destroy(c *context) {
	if f.handle != nil {
		vk.DestroyFence(c.device.logicalDevice, f.handle, c.allocator)
		f.handle = nil
	}
	f.isSignaled = false
}

func (f *fence) wait(c *context, timeoutNs uint64) bool {
	if f.isSignaled {
		return true
	}
	result := vk.WaitForFences(c.device.logicalDevice, 1, []vk.Fence{f.handle}, vk.True, timeoutNs)
	if result == vk.Success {
		f.isSignaled = true
		return true
	}
	return false
}

func (f *fence) reset(c *context) {
	if f.isSignaled {
		vk.ResetFences(c.device.logicalDevice, 1, []vk.Fence{f.handle})
		f.isSignaled = false
	}
}

func createSemaphore(c *context) (vk.Semaphore, error) {
	info := vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}
	var sem vk.Semaphore
	if res := vk.CreateSemaphore(c.device.logicalDevice, &info, c.allocator, &sem); !resultIsSuccess(res) {
		return nil, fmt.Errorf("vulkan: create semaphore: %s", resultString(res))
	}
	return sem, nil
}

// createSyncObjects brings up the per-frame-in-flight semaphores and
// fences spec.md §4.7 needs to pipeline framesInFlight frames: an
// image-available and queue-complete semaphore pair plus a fence per
// frame, and one fence slot per swapchain image to detect when a
// previous frame is still using that image.
func createSyncObjects(c *context) error {
	c.imageAvailableSemaphores = make([]vk.Semaphore, framesInFlight)
	c.queueCompleteSemaphores = make([]vk.Semaphore, framesInFlight)
	c.inFlightFences = make([]*fence, framesInFlight)

	for i := 0; i < framesInFlight; i++ {
		sem, err := createSemaphore(c)
		if err != nil {
			return err
		}
		c.imageAvailableSemaphores[i] = sem

		sem2, err := createSemaphore(c)
		if err != nil {
			return err
		}
		c.queueCompleteSemaphores[i] = sem2

		f, err := createFence(c, true)
		if err != nil {
			return err
		}
		c.inFlightFences[i] = f
	}

	c.imagesInFlight = make([]*fence, len(c.swapchain.images))
	return nil
}

func destroySyncObjects(c *context) {
	for i := 0; i < framesInFlight; i++ {
		if i < len(c.imageAvailableSemaphores) && c.imageAvailableSemaphores[i] != nil {
			vk.DestroySemaphore(c.device.logicalDevice, c.imageAvailableSemaphores[i], c.allocator)
		}
		if i < len(c.queueCompleteSemaphores) && c.queueCompleteSemaphores[i] != nil {
			vk.DestroySemaphore(c.device.logicalDevice, c.queueCompleteSemaphores[i], c.allocator)
		}
		if i < len(c.inFlightFences) && c.inFlightFences[i] != nil {
			c.inFlightFences[i].destroy(c)
		}
	}
	c.imageAvailableSemaphores, c.queueCompleteSemaphores, c.inFlightFences, c.imagesInFlight = nil, nil, nil, nil
}
