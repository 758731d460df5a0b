package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/google/uuid"
)

/**
 * @brief Shader object
 *
 * Wraps the already-reflected resource interface of a single shader
 * stage. The binding list is immutable after construction; the pipeline
 * manager merges per-stage layouts from it. Shader identity for pipeline
 * caching is pointer identity.
 */
type VulkanShader struct {
	/** @brief Stable identifier, used for logging and precompiler bookkeeping. */
	ID uuid.UUID
	/** @brief The stage this shader executes in. */
	Stage vk.ShaderStageFlagBits

	bindings BindingLayout
}

// NewVulkanShader builds a shader object from a reflected binding list and
// optional push constant range. Stage bits are folded into every binding so
// that per-stage layouts merge correctly later.
func NewVulkanShader(stage vk.ShaderStageFlagBits, bindings []BindingInfo, pushConst vk.PushConstantRange) *VulkanShader {
	shader := &VulkanShader{
		ID:    uuid.New(),
		Stage: stage,
	}

	for _, binding := range bindings {
		binding.Stages |= vk.ShaderStageFlags(stage)
		shader.bindings.AddBinding(binding)
	}

	if pushConst.Size > 0 {
		pushConst.StageFlags |= vk.ShaderStageFlags(stage)
		shader.bindings.AddPushConstantRange(pushConst)
	}

	return shader
}

// Bindings returns the shader's binding layout. Callers must treat it as
// read-only.
func (s *VulkanShader) Bindings() *BindingLayout {
	return &s.bindings
}

/**
 * @brief Shaders of a compute pipeline. Comparable; used as a cache key.
 */
type ComputePipelineShaders struct {
	Compute *VulkanShader
}

/**
 * @brief Shaders of a graphics pipeline. Stage slots may be nil; the
 * struct is comparable and used as a cache key.
 */
type GraphicsPipelineShaders struct {
	Vertex      *VulkanShader
	TessControl *VulkanShader
	TessEval    *VulkanShader
	Geometry    *VulkanShader
	Fragment    *VulkanShader
}
