package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/refract/engine/core"
)

/**
 * @brief Descriptor set and binding number for a resource slot.
 */
type BindingMapping struct {
	Set     uint32
	Binding uint32
	ConstID uint32
}

/**
 * @brief Pipeline and descriptor set layouts for a given binding layout.
 *
 * Creates the following Vulkan objects for a given binding layout:
 * - A descriptor set layout for each required descriptor set
 * - A descriptor update template for each set with non-zero binding count
 * - A pipeline layout referencing all descriptor sets and the push constant range
 */
type BindingLayoutObjects struct {
	device Device
	layout BindingLayout

	pipelineLayout vk.PipelineLayout
	setMask        uint32

	setLayouts     [DescriptorSetCount]vk.DescriptorSetLayout
	setTemplates   [DescriptorSetCount]vk.DescriptorUpdateTemplate
	bindingOffsets [DescriptorSetCount]uint32

	mapping map[uint32]BindingMapping

	id        uint32
	destroyed bool
}

// NewBindingLayoutObjects builds all native objects for a finalized binding
// layout. Any native creation failure tears down every object created by
// this attempt, in reverse creation order, before the error is returned.
func NewBindingLayoutObjects(device Device, layout *BindingLayout) (*BindingLayoutObjects, error) {
	obj := &BindingLayoutObjects{
		device:  device,
		layout:  *layout,
		mapping: make(map[uint32]BindingMapping),
	}

	constID := uint32(0)

	for i := uint32(0); i < DescriptorSetCount; i++ {
		obj.bindingOffsets[i] = constID

		bindingCount := obj.layout.BindingCount(i)
		bindingInfos := make([]vk.DescriptorSetLayoutBinding, bindingCount)
		templateInfos := make([]vk.DescriptorUpdateTemplateEntry, bindingCount)

		for j := uint32(0); j < bindingCount; j++ {
			binding := obj.layout.Binding(i, j)

			bindingInfos[j] = vk.DescriptorSetLayoutBinding{
				Binding:            j,
				DescriptorType:     binding.DescriptorType,
				DescriptorCount:    1,
				StageFlags:         binding.Stages,
				PImmutableSamplers: nil,
			}

			templateInfos[j] = vk.DescriptorUpdateTemplateEntry{
				DstBinding:      j,
				DstArrayElement: 0,
				DescriptorCount: 1,
				DescriptorType:  binding.DescriptorType,
				Offset:          uint64(VULKAN_DESCRIPTOR_INFO_SIZE * j),
				Stride:          uint64(VULKAN_DESCRIPTOR_INFO_SIZE),
			}

			obj.mapping[binding.ResourceBinding] = BindingMapping{
				Set:     i,
				Binding: j,
				ConstID: constID,
			}
			constID++
		}

		layoutInfo := vk.DescriptorSetLayoutCreateInfo{
			SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
			BindingCount: bindingCount,
			PBindings:    bindingInfos,
		}

		setLayout, err := device.CreateDescriptorSetLayout(&layoutInfo)
		if err != nil {
			obj.teardown(i, false)
			return nil, err
		}
		obj.setLayouts[i] = setLayout

		if bindingCount > 0 {
			templateInfo := vk.DescriptorUpdateTemplateCreateInfo{
				SType:                      vk.StructureTypeDescriptorUpdateTemplateCreateInfo,
				DescriptorUpdateEntryCount: bindingCount,
				PDescriptorUpdateEntries:   templateInfos,
				TemplateType:               vk.DescriptorUpdateTemplateTypeDescriptorSet,
				DescriptorSetLayout:        setLayout,
			}

			template, err := device.CreateDescriptorUpdateTemplate(&templateInfo)
			if err != nil {
				obj.teardown(i+1, false)
				return nil, err
			}
			obj.setTemplates[i] = template
			obj.setMask |= 1 << i
		}
	}

	pushConst := obj.layout.PushConstantRange()

	pipelineLayoutInfo := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: DescriptorSetCount,
		PSetLayouts:    obj.setLayouts[:],
	}

	if pushConst.StageFlags != 0 && pushConst.Size != 0 {
		pipelineLayoutInfo.PushConstantRangeCount = 1
		pipelineLayoutInfo.PPushConstantRanges = []vk.PushConstantRange{pushConst}
	}

	pipelineLayout, err := device.CreatePipelineLayout(&pipelineLayoutInfo)
	if err != nil {
		obj.teardown(DescriptorSetCount, false)
		return nil, err
	}
	obj.pipelineLayout = pipelineLayout

	obj.id = core.IdentifierAcquireNewID(obj)
	core.LogDebug("binding layout objects %d created, set mask 0x%x", obj.id, obj.setMask)
	return obj, nil
}

// teardown destroys, in reverse creation order, the pipeline layout (when
// created) and the set layouts and templates of every processed set.
// setsCreated counts sets whose set layout exists; the set mask records
// which of those also own a template.
func (o *BindingLayoutObjects) teardown(setsCreated uint32, pipelineLayoutCreated bool) {
	if pipelineLayoutCreated {
		o.device.DestroyPipelineLayout(o.pipelineLayout)
	}

	for i := setsCreated; i > 0; i-- {
		set := i - 1
		if o.setMask&(1<<set) != 0 {
			o.device.DestroyDescriptorUpdateTemplate(o.setTemplates[set])
		}
		o.device.DestroyDescriptorSetLayout(o.setLayouts[set])
	}
}

// Destroy releases every native object owned by the layout objects. Safe to
// call once; subsequent calls are no-ops.
func (o *BindingLayoutObjects) Destroy() {
	if o.destroyed {
		return
	}
	o.destroyed = true

	o.teardown(DescriptorSetCount, true)
	core.IdentifierReleaseID(o.id)
}

// Layout returns the binding layout these objects were built from.
func (o *BindingLayoutObjects) Layout() *BindingLayout {
	return &o.layout
}

// SetMask returns the bit mask of non-empty descriptor sets.
func (o *BindingLayoutObjects) SetMask() uint32 {
	return o.setMask
}

// FirstBinding returns the first global binding number for a given set.
// This is relevant for generating dirty-binding masks.
func (o *BindingLayoutObjects) FirstBinding(set uint32) uint32 {
	return o.bindingOffsets[set]
}

// SetLayout returns the descriptor set layout for a given set.
func (o *BindingLayoutObjects) SetLayout(set uint32) vk.DescriptorSetLayout {
	return o.setLayouts[set]
}

// SetUpdateTemplate returns the descriptor update template for a given set,
// or the null handle if the set is empty.
func (o *BindingLayoutObjects) SetUpdateTemplate(set uint32) vk.DescriptorUpdateTemplate {
	return o.setTemplates[set]
}

// PipelineLayout returns the native pipeline layout.
func (o *BindingLayoutObjects) PipelineLayout() vk.PipelineLayout {
	return o.pipelineLayout
}

// LookupBinding resolves a resource slot number to its descriptor set and
// binding number. The second return value is false if the slot is not used
// by the layout.
func (o *BindingLayoutObjects) LookupBinding(slot uint32) (BindingMapping, bool) {
	mapping, ok := o.mapping[slot]
	return mapping, ok
}

// AccessFlags ORs the access masks of every binding across all sets. Used
// to decide whether the pipeline writes any resource.
func (o *BindingLayoutObjects) AccessFlags() vk.AccessFlags {
	var flags vk.AccessFlags

	for i := uint32(0); i < DescriptorSetCount; i++ {
		for j := uint32(0); j < o.layout.BindingCount(i); j++ {
			flags |= o.layout.Binding(i, j).Access
		}
	}

	return flags
}
