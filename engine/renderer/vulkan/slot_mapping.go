package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/refract/engine/core"
	"github.com/spaghettifunk/refract/engine/math"
)

/**
 * @brief Resource slot
 *
 * Describes the type of a single resource
 * binding that a shader can access.
 */
type ResourceSlot struct {
	Slot   uint32
	Type   vk.DescriptorType
	View   vk.ImageViewType
	Access vk.AccessFlags
}

/**
 * @brief Shader interface binding
 *
 * Corresponds to a single descriptor binding. Descriptor arrays are not
 * used; each binding stores exactly one descriptor.
 */
type DescriptorSlot struct {
	/** @brief Resource slot index for the context. */
	Slot uint32
	/** @brief Descriptor type (aka resource type). */
	Type vk.DescriptorType
	/** @brief Compatible image view type. */
	View vk.ImageViewType
	/** @brief Stages that can use the resource. */
	Stages vk.ShaderStageFlags
	/** @brief Access flags. */
	Access vk.AccessFlags
}

const InvalidBinding uint32 = 0xFFFFFFFF

/**
 * @brief Descriptor slot mapping
 *
 * Generates descriptor slot index to binding index mappings for the
 * legacy single-set layout model.
 */
type DescriptorSlotMapping struct {
	descriptorSlots []DescriptorSlot
	pushConstRange  vk.PushConstantRange
}

// BindingCount returns the number of descriptor bindings.
func (m *DescriptorSlotMapping) BindingCount() uint32 {
	return uint32(len(m.descriptorSlots))
}

// BindingInfos returns the descriptor binding infos.
func (m *DescriptorSlotMapping) BindingInfos() []DescriptorSlot {
	return m.descriptorSlots
}

// PushConstRange returns the accumulated push constant range.
func (m *DescriptorSlotMapping) PushConstRange() vk.PushConstantRange {
	return m.pushConstRange
}

// DefineSlot adds a slot to the mapping. If the slot is already defined by
// another shader stage, this extends the stage and access masks; otherwise
// an entirely new binding is appended.
func (m *DescriptorSlotMapping) DefineSlot(stage vk.ShaderStageFlagBits, desc ResourceSlot) {
	bindingID := m.BindingID(desc.Slot)

	if bindingID != InvalidBinding {
		m.descriptorSlots[bindingID].Stages |= vk.ShaderStageFlags(stage)
		m.descriptorSlots[bindingID].Access |= desc.Access
	} else {
		m.descriptorSlots = append(m.descriptorSlots, DescriptorSlot{
			Slot:   desc.Slot,
			Type:   desc.Type,
			View:   desc.View,
			Stages: vk.ShaderStageFlags(stage),
			Access: desc.Access,
		})
	}
}

// DefinePushConstRange grows the single push constant range to cover the
// widest (offset+size) span seen and ORs in the stage.
func (m *DescriptorSlotMapping) DefinePushConstRange(stage vk.ShaderStageFlagBits, offset, size uint32) {
	m.pushConstRange.StageFlags |= vk.ShaderStageFlags(stage)
	m.pushConstRange.Size = math.Max(m.pushConstRange.Size, offset+size)
}

// BindingID returns the binding index for a resource slot, or
// InvalidBinding if the slot is not mapped.
func (m *DescriptorSlotMapping) BindingID(slot uint32) uint32 {
	// This won't win a performance competition, but the number of
	// bindings used by a shader is usually much smaller than the number
	// of resource slots available to the system.
	for i := range m.descriptorSlots {
		if m.descriptorSlots[i].Slot == slot {
			return uint32(i)
		}
	}

	return InvalidBinding
}

// MakeDescriptorsDynamic replaces static uniform buffer bindings by their
// dynamic equivalent if the number of such bindings lies within the device
// limit. Must run before the native set layout is created, since the
// descriptor kind is baked into it. Storage buffers are left untouched.
func (m *DescriptorSlotMapping) MakeDescriptorsDynamic(uniformBuffers, storageBuffers uint32) {
	if m.countDescriptors(vk.DescriptorTypeUniformBuffer) <= uniformBuffers {
		m.replaceDescriptors(vk.DescriptorTypeUniformBuffer, vk.DescriptorTypeUniformBufferDynamic)
	}
}

func (m *DescriptorSlotMapping) countDescriptors(descriptorType vk.DescriptorType) uint32 {
	count := uint32(0)

	for i := range m.descriptorSlots {
		if m.descriptorSlots[i].Type == descriptorType {
			count++
		}
	}

	return count
}

func (m *DescriptorSlotMapping) replaceDescriptors(oldType, newType vk.DescriptorType) {
	for i := range m.descriptorSlots {
		if m.descriptorSlots[i].Type == oldType {
			m.descriptorSlots[i].Type = newType
		}
	}
}

/**
 * @brief Legacy single-set pipeline layout
 *
 * Builds exactly one descriptor set layout, one descriptor update template
 * and one pipeline layout for a slot mapping. Retained for the simpler
 * pipeline kind that predates the multi-set binding model.
 */
type SlotPipelineLayout struct {
	device Device

	pushConstRange      vk.PushConstantRange
	descriptorSetLayout vk.DescriptorSetLayout
	pipelineLayout      vk.PipelineLayout
	descriptorTemplate  vk.DescriptorUpdateTemplate

	bindingSlots    []DescriptorSlot
	dynamicSlots    []uint32
	descriptorTypes map[vk.DescriptorType]bool

	hasBindings bool
	destroyed   bool
}

// NewSlotPipelineLayout builds the native objects for a slot mapping.
// Exceeding VULKAN_MAX_ACTIVE_BINDINGS is a fatal configuration error, not
// a recoverable one. Native failures roll back already-created objects.
func NewSlotPipelineLayout(device Device, mapping *DescriptorSlotMapping, bindPoint vk.PipelineBindPoint) (*SlotPipelineLayout, error) {
	bindingCount := mapping.BindingCount()
	bindingInfos := mapping.BindingInfos()

	if bindingCount > VULKAN_MAX_ACTIVE_BINDINGS {
		return nil, fmt.Errorf("%w (%d)", core.ErrTooManyBindings, bindingCount)
	}

	layout := &SlotPipelineLayout{
		device:          device,
		pushConstRange:  mapping.PushConstRange(),
		bindingSlots:    make([]DescriptorSlot, bindingCount),
		descriptorTypes: make(map[vk.DescriptorType]bool),
		hasBindings:     bindingCount > 0,
	}
	copy(layout.bindingSlots, bindingInfos)

	bindings := make([]vk.DescriptorSetLayoutBinding, bindingCount)
	tEntries := make([]vk.DescriptorUpdateTemplateEntry, bindingCount)

	for i := uint32(0); i < bindingCount; i++ {
		bindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:            i,
			DescriptorType:     bindingInfos[i].Type,
			DescriptorCount:    1,
			StageFlags:         bindingInfos[i].Stages,
			PImmutableSamplers: nil,
		}

		tEntries[i] = vk.DescriptorUpdateTemplateEntry{
			DstBinding:      i,
			DstArrayElement: 0,
			DescriptorCount: 1,
			DescriptorType:  bindingInfos[i].Type,
			Offset:          uint64(VULKAN_DESCRIPTOR_INFO_SIZE * i),
			Stride:          0,
		}

		if bindingInfos[i].Type == vk.DescriptorTypeUniformBufferDynamic {
			layout.dynamicSlots = append(layout.dynamicSlots, i)
		}

		layout.descriptorTypes[bindingInfos[i].Type] = true
	}

	// Create descriptor set layout. We do not need to create
	// one if there are no active resource bindings.
	if bindingCount > 0 {
		dsetInfo := vk.DescriptorSetLayoutCreateInfo{
			SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
			BindingCount: bindingCount,
			PBindings:    bindings,
		}

		setLayout, err := device.CreateDescriptorSetLayout(&dsetInfo)
		if err != nil {
			return nil, err
		}
		layout.descriptorSetLayout = setLayout
	}

	// Create pipeline layout with the given descriptor set layout.
	pipeInfo := vk.PipelineLayoutCreateInfo{
		SType: vk.StructureTypePipelineLayoutCreateInfo,
	}
	if bindingCount > 0 {
		pipeInfo.SetLayoutCount = 1
		pipeInfo.PSetLayouts = []vk.DescriptorSetLayout{layout.descriptorSetLayout}
	}
	if layout.pushConstRange.Size > 0 {
		pipeInfo.PushConstantRangeCount = 1
		pipeInfo.PPushConstantRanges = []vk.PushConstantRange{layout.pushConstRange}
	}

	pipelineLayout, err := device.CreatePipelineLayout(&pipeInfo)
	if err != nil {
		if layout.hasBindings {
			device.DestroyDescriptorSetLayout(layout.descriptorSetLayout)
		}
		return nil, err
	}
	layout.pipelineLayout = pipelineLayout

	// Create descriptor update template. If there are no active
	// resource bindings, there won't be any descriptors to update.
	if bindingCount > 0 {
		templateInfo := vk.DescriptorUpdateTemplateCreateInfo{
			SType:                      vk.StructureTypeDescriptorUpdateTemplateCreateInfo,
			DescriptorUpdateEntryCount: bindingCount,
			PDescriptorUpdateEntries:   tEntries,
			TemplateType:               vk.DescriptorUpdateTemplateTypeDescriptorSet,
			DescriptorSetLayout:        layout.descriptorSetLayout,
			PipelineBindPoint:          bindPoint,
			PipelineLayout:             layout.pipelineLayout,
			Set:                        0,
		}

		template, err := device.CreateDescriptorUpdateTemplate(&templateInfo)
		if err != nil {
			device.DestroyPipelineLayout(layout.pipelineLayout)
			device.DestroyDescriptorSetLayout(layout.descriptorSetLayout)
			return nil, err
		}
		layout.descriptorTemplate = template
	}

	core.LogDebug("slot pipeline layout created with %d bindings, %d dynamic", bindingCount, layout.DynamicBindingCount())

	return layout, nil
}

// Destroy releases the native objects, mirroring creation in reverse.
// Safe to call once; subsequent calls are no-ops.
func (p *SlotPipelineLayout) Destroy() {
	if p.destroyed {
		return
	}
	p.destroyed = true

	if p.hasBindings {
		p.device.DestroyDescriptorUpdateTemplate(p.descriptorTemplate)
	}
	p.device.DestroyPipelineLayout(p.pipelineLayout)
	if p.hasBindings {
		p.device.DestroyDescriptorSetLayout(p.descriptorSetLayout)
	}
}

// BindingCount returns the number of resource bindings.
func (p *SlotPipelineLayout) BindingCount() uint32 {
	return uint32(len(p.bindingSlots))
}

// Binding returns the resource binding info at the given index.
func (p *SlotPipelineLayout) Binding(id uint32) DescriptorSlot {
	return p.bindingSlots[id]
}

// Bindings returns all resource binding infos.
func (p *SlotPipelineLayout) Bindings() []DescriptorSlot {
	return p.bindingSlots
}

// PushConstRange returns the push constant range.
func (p *SlotPipelineLayout) PushConstRange() vk.PushConstantRange {
	return p.pushConstRange
}

// DescriptorSetLayout returns the descriptor set layout handle.
func (p *SlotPipelineLayout) DescriptorSetLayout() vk.DescriptorSetLayout {
	return p.descriptorSetLayout
}

// PipelineLayout returns the pipeline layout handle.
func (p *SlotPipelineLayout) PipelineLayout() vk.PipelineLayout {
	return p.pipelineLayout
}

// DescriptorTemplate returns the descriptor update template handle.
func (p *SlotPipelineLayout) DescriptorTemplate() vk.DescriptorUpdateTemplate {
	return p.descriptorTemplate
}

// DynamicBindingCount returns the number of dynamic bindings.
func (p *SlotPipelineLayout) DynamicBindingCount() uint32 {
	return uint32(len(p.dynamicSlots))
}

// DynamicBinding returns the binding info behind a dynamic binding ID.
func (p *SlotPipelineLayout) DynamicBinding(id uint32) DescriptorSlot {
	return p.Binding(p.dynamicSlots[id])
}

// HasStaticBufferBindings returns true if there is at least one descriptor
// of the static uniform buffer type.
func (p *SlotPipelineLayout) HasStaticBufferBindings() bool {
	return p.descriptorTypes[vk.DescriptorTypeUniformBuffer]
}

// StorageDescriptorStages returns the stages that write to at least one
// resource. Used for synchronization purposes.
func (p *SlotPipelineLayout) StorageDescriptorStages() vk.ShaderStageFlags {
	var stages vk.ShaderStageFlags

	for i := range p.bindingSlots {
		if p.bindingSlots[i].Access&vk.AccessFlags(vk.AccessShaderWriteBit) != 0 {
			stages |= p.bindingSlots[i].Stages
		}
	}

	return stages
}
