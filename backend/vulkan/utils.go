package vulkan

import vk "github.com/goki/vulkan"

// resultString renders a vk.Result the way the teacher's
// VulkanResultString does, trimmed to the subset this backend actually
// produces in error paths.
func resultString(result vk.Result) string {
	switch result {
	case vk.Success:
		return "VK_SUCCESS"
	case vk.NotReady:
		return "VK_NOT_READY"
	case vk.Timeout:
		return "VK_TIMEOUT"
	case vk.ErrorOutOfHostMemory:
		return "VK_ERROR_OUT_OF_HOST_MEMORY"
	case vk.ErrorOutOfDeviceMemory:
		return "VK_ERROR_OUT_OF_DEVICE_MEMORY"
	case vk.ErrorDeviceLost:
		return "VK_ERROR_DEVICE_LOST"
	case vk.ErrorInitializationFailed:
		return "VK_ERROR_INITIALIZATION_FAILED"
	case vk.ErrorExtensionNotPresent:
		return "VK_ERROR_EXTENSION_NOT_PRESENT"
	case vk.ErrorLayerNotPresent:
		return "VK_ERROR_LAYER_NOT_PRESENT"
	case vk.ErrorOutOfDate:
		return "VK_ERROR_OUT_OF_DATE_KHR"
	case vk.Suboptimal:
		return "VK_SUBOPTIMAL_KHR"
	case vk.ErrorSurfaceLost:
		return "VK_ERROR_SURFACE_LOST_KHR"
	default:
		return "VK_ERROR_UNKNOWN"
	}
}

func resultIsSuccess(result vk.Result) bool {
	return result == vk.Success
}

const nulTerminator = "\x00"

// safeString appends a NUL terminator the way the teacher's
// VulkanSafeString does, required because goki/vulkan expects C strings.
func safeString(s string) string {
	if len(s) == 0 || s[len(s)-1] != 0 {
		return s + nulTerminator
	}
	return s
}

func safeStrings(list []string) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = safeString(s)
	}
	return out
}

// firstZero finds the NUL terminator inside a fixed-size C char array,
// the way the teacher's FindFirstZeroInByteArray locates the end of a
// vk.ExtensionProperties/LayerProperties name field.
func firstZero(arr []byte) int {
	for i, b := range arr {
		if b == 0 {
			return i
		}
	}
	return len(arr)
}

func clampU32(v, lo, hi uint32) uint32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
