package vulkan

import vk "github.com/goki/vulkan"

/**
 * @brief Dirty descriptor set state
 *
 * Tracks which descriptor sets need to be rewritten before the next
 * dispatch or draw, based on the stages whose buffer or view bindings
 * changed. The draw-time descriptor layer consumes the set masks.
 */
type DescriptorState struct {
	dirtyBuffers vk.ShaderStageFlags
	dirtyViews   vk.ShaderStageFlags

	sets [2 * DescriptorSetCount]vk.DescriptorSet
}

func (d *DescriptorState) DirtyBuffers(stages vk.ShaderStageFlags) {
	d.dirtyBuffers |= stages
}

func (d *DescriptorState) DirtyViews(stages vk.ShaderStageFlags) {
	d.dirtyViews |= stages
}

func (d *DescriptorState) DirtyStages(stages vk.ShaderStageFlags) {
	d.dirtyBuffers |= stages
	d.dirtyViews |= stages
}

func (d *DescriptorState) ClearStages(stages vk.ShaderStageFlags) {
	d.dirtyBuffers &= ^stages
	d.dirtyViews &= ^stages
}

func (d *DescriptorState) HasDirtyGraphicsSets() bool {
	return (d.dirtyBuffers|d.dirtyViews)&vk.ShaderStageFlags(vk.ShaderStageAllGraphics) != 0
}

func (d *DescriptorState) HasDirtyComputeSets() bool {
	return (d.dirtyBuffers|d.dirtyViews)&vk.ShaderStageFlags(vk.ShaderStageComputeBit) != 0
}

// DirtyGraphicsSets maps dirty graphics stages to the descriptor sets that
// must be rewritten. A dirty fragment view also invalidates the fragment
// buffer set, since both sets share one pool allocation at draw time.
func (d *DescriptorState) DirtyGraphicsSets() uint32 {
	result := uint32(0)
	fsBit := vk.ShaderStageFlags(vk.ShaderStageFragmentBit)
	if d.dirtyBuffers&fsBit != 0 {
		result |= 1 << DescriptorSetFsBuffers
	}
	if d.dirtyViews&fsBit != 0 {
		result |= (1 << DescriptorSetFsViews) | (1 << DescriptorSetFsBuffers)
	}
	if (d.dirtyBuffers|d.dirtyViews)&(vk.ShaderStageFlags(vk.ShaderStageAllGraphics)&^fsBit) != 0 {
		result |= 1 << DescriptorSetVsAll
	}
	return result
}

func (d *DescriptorState) DirtyComputeSets() uint32 {
	result := uint32(0)
	if (d.dirtyBuffers|d.dirtyViews)&vk.ShaderStageFlags(vk.ShaderStageComputeBit) != 0 {
		result |= 1 << DescriptorSetCsAll
	}
	return result
}

func (d *DescriptorState) ClearSets() {
	var null vk.DescriptorSet
	for i := range d.sets {
		d.sets[i] = null
	}
}

// Set returns a pointer to the bound descriptor set slot for the given
// bind point and set index.
func (d *DescriptorState) Set(bindPoint vk.PipelineBindPoint, index uint32) *vk.DescriptorSet {
	return &d.sets[uint32(bindPoint)*DescriptorSetCount+index]
}
