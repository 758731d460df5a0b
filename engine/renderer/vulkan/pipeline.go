package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/refract/engine/core"
)

/**
 * @brief Compute pipeline
 *
 * Owns the shader combination and the resolved binding layout objects.
 * Pipeline state compilation happens elsewhere; this object is the stable
 * cache entry the manager hands out.
 */
type ComputePipeline struct {
	manager *PipelineManager
	shaders ComputePipelineShaders
	layout  *BindingLayoutObjects
	id      uint32
}

func newComputePipeline(manager *PipelineManager, shaders ComputePipelineShaders, layout *BindingLayoutObjects) *ComputePipeline {
	pipeline := &ComputePipeline{
		manager: manager,
		shaders: shaders,
		layout:  layout,
	}
	pipeline.id = core.IdentifierAcquireNewID(pipeline)
	return pipeline
}

func (p *ComputePipeline) Shaders() ComputePipelineShaders {
	return p.shaders
}

func (p *ComputePipeline) LayoutObjects() *BindingLayoutObjects {
	return p.layout
}

func (p *ComputePipeline) BindPoint() vk.PipelineBindPoint {
	return vk.PipelineBindPointCompute
}

func (p *ComputePipeline) destroy() {
	core.IdentifierReleaseID(p.id)
}

/**
 * @brief Graphics pipeline
 *
 * Owns the per-stage shader combination and the binding layout objects
 * merged from every present stage.
 */
type GraphicsPipeline struct {
	manager *PipelineManager
	shaders GraphicsPipelineShaders
	layout  *BindingLayoutObjects
	id      uint32
}

func newGraphicsPipeline(manager *PipelineManager, shaders GraphicsPipelineShaders, layout *BindingLayoutObjects) *GraphicsPipeline {
	pipeline := &GraphicsPipeline{
		manager: manager,
		shaders: shaders,
		layout:  layout,
	}
	pipeline.id = core.IdentifierAcquireNewID(pipeline)
	return pipeline
}

func (p *GraphicsPipeline) Shaders() GraphicsPipelineShaders {
	return p.shaders
}

func (p *GraphicsPipeline) LayoutObjects() *BindingLayoutObjects {
	return p.layout
}

func (p *GraphicsPipeline) BindPoint() vk.PipelineBindPoint {
	return vk.PipelineBindPointGraphics
}

func (p *GraphicsPipeline) destroy() {
	core.IdentifierReleaseID(p.id)
}
