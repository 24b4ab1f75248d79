package vulkan

import (
	"encoding/binary"
	"fmt"

	vk "github.com/goki/vulkan"
)

// spirvMagic is the little-endian magic number every valid SPIR-V module
// begins with (SPIR-V spec §2.3).
const spirvMagic = 0x07230203

// createShaderModule wraps already-compiled SPIR-V bytes in a
// vk.ShaderModule, mirroring the teacher's shader.go VulkanShaderStage
// creation (the struct-only file this package's shader.go replaces).
func createShaderModule(c *context, code []byte) (vk.ShaderModule, error) {
	if len(code) == 0 || len(code)%4 != 0 {
		return nil, fmt.Errorf("vulkan: shader module: code length %d is not a multiple of 4", len(code))
	}
	info := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    sliceUint32(code),
	}
	var module vk.ShaderModule
	if res := vk.CreateShaderModule(c.device.logicalDevice, &info, c.allocator, &module); !resultIsSuccess(res) {
		return nil, fmt.Errorf("vulkan: create shader module: %s", resultString(res))
	}
	return module, nil
}

func destroyShaderModule(c *context, m vk.ShaderModule) {
	if m != nil {
		vk.DestroyShaderModule(c.device.logicalDevice, m, c.allocator)
	}
}

// sliceUint32 reinterprets a byte slice as the []uint32 the goki/vulkan
// binding expects for ShaderModuleCreateInfo.PCode.
func sliceUint32(b []byte) []uint32 {
	out := make([]uint32, len(b)/4)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(b[i*4 : i*4+4])
	}
	return out
}

// compileShader implements backend.RendererBackend.CompileShader. No
// GLSL/HLSL-to-SPIR-V compiler ships in this module's dependency surface
// (none of the teacher's or the pack's go.mod files import one); rather
// than vendor a fake one, this validates that src is already a SPIR-V
// module (spec.md §4.6 calls compile_shader "platform-dependent...may
// delegate to an external toolchain") and returns it unchanged, so an
// offline glslc/shaderc build step upstream of this engine is the
// supported path.
func compileShader(src []byte, stage ShaderStageName) ([]byte, error) {
	if len(src) < 4 {
		return nil, fmt.Errorf("vulkan: compile_shader: src too short for a SPIR-V module")
	}
	magic := binary.LittleEndian.Uint32(src[:4])
	if magic != spirvMagic {
		return nil, fmt.Errorf("vulkan: compile_shader: src is not pre-compiled SPIR-V (stage %s); "+
			"this backend does not embed a GLSL/HLSL compiler, pre-compile with glslc/shaderc", stage)
	}
	return append([]byte(nil), src...), nil
}

// ShaderStageName names a shader stage for diagnostics; kept distinct
// from backend.ShaderStage (a bitmask) since compileShader only ever
// targets one stage at a time.
type ShaderStageName string

const (
	ShaderStageNameVertex   ShaderStageName = "vertex"
	ShaderStageNameFragment ShaderStageName = "fragment"
	ShaderStageNameCompute  ShaderStageName = "compute"
)
