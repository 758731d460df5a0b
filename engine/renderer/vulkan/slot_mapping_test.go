package vulkan

import (
	"errors"
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/refract/engine/core"
)

func TestDefineSlotExtendsExisting(t *testing.T) {
	mapping := DescriptorSlotMapping{}
	mapping.DefineSlot(vk.ShaderStageVertexBit, ResourceSlot{
		Slot:   3,
		Type:   vk.DescriptorTypeUniformBuffer,
		Access: vk.AccessFlags(vk.AccessShaderReadBit),
	})
	mapping.DefineSlot(vk.ShaderStageFragmentBit, ResourceSlot{
		Slot:   3,
		Type:   vk.DescriptorTypeUniformBuffer,
		Access: vk.AccessFlags(vk.AccessShaderWriteBit),
	})

	if n := mapping.BindingCount(); n != 1 {
		t.Fatalf("binding count = %d, want 1", n)
	}

	slot := mapping.BindingInfos()[0]
	if slot.Stages != stageVS|stageFS {
		t.Errorf("stages = 0x%x, want 0x%x", slot.Stages, stageVS|stageFS)
	}
	wantAccess := vk.AccessFlags(vk.AccessShaderReadBit) | vk.AccessFlags(vk.AccessShaderWriteBit)
	if slot.Access != wantAccess {
		t.Errorf("access = 0x%x, want 0x%x", slot.Access, wantAccess)
	}
}

func TestDefineSlotAppendsNew(t *testing.T) {
	mapping := DescriptorSlotMapping{}
	mapping.DefineSlot(vk.ShaderStageVertexBit, ResourceSlot{Slot: 0, Type: vk.DescriptorTypeUniformBuffer})
	mapping.DefineSlot(vk.ShaderStageVertexBit, ResourceSlot{Slot: 7, Type: vk.DescriptorTypeSampledImage})

	if n := mapping.BindingCount(); n != 2 {
		t.Fatalf("binding count = %d, want 2", n)
	}
	if id := mapping.BindingID(0); id != 0 {
		t.Errorf("BindingID(0) = %d, want 0", id)
	}
	if id := mapping.BindingID(7); id != 1 {
		t.Errorf("BindingID(7) = %d, want 1", id)
	}
	if id := mapping.BindingID(42); id != InvalidBinding {
		t.Errorf("BindingID(42) = %d, want InvalidBinding", id)
	}
}

func TestDefinePushConstRange(t *testing.T) {
	mapping := DescriptorSlotMapping{}
	mapping.DefinePushConstRange(vk.ShaderStageVertexBit, 0, 16)
	mapping.DefinePushConstRange(vk.ShaderStageFragmentBit, 16, 16)

	rng := mapping.PushConstRange()
	if rng.Size != 32 {
		t.Errorf("size = %d, want 32", rng.Size)
	}
	if rng.StageFlags != stageVS|stageFS {
		t.Errorf("stages = 0x%x, want 0x%x", rng.StageFlags, stageVS|stageFS)
	}

	// A narrower range must not shrink the accumulated one.
	mapping.DefinePushConstRange(vk.ShaderStageFragmentBit, 0, 8)
	if rng := mapping.PushConstRange(); rng.Size != 32 {
		t.Errorf("size after narrower define = %d, want 32", rng.Size)
	}
}

func TestMakeDescriptorsDynamicWithinLimit(t *testing.T) {
	mapping := DescriptorSlotMapping{}
	for i := uint32(0); i < 4; i++ {
		mapping.DefineSlot(vk.ShaderStageVertexBit, ResourceSlot{Slot: i, Type: vk.DescriptorTypeUniformBuffer})
	}

	mapping.MakeDescriptorsDynamic(4, 8)

	for _, slot := range mapping.BindingInfos() {
		if slot.Type != vk.DescriptorTypeUniformBufferDynamic {
			t.Fatalf("slot %d type = %d, want dynamic uniform buffer", slot.Slot, slot.Type)
		}
	}
}

func TestMakeDescriptorsDynamicOverLimit(t *testing.T) {
	mapping := DescriptorSlotMapping{}
	for i := uint32(0); i < 5; i++ {
		mapping.DefineSlot(vk.ShaderStageVertexBit, ResourceSlot{Slot: i, Type: vk.DescriptorTypeUniformBuffer})
	}

	mapping.MakeDescriptorsDynamic(4, 8)

	for _, slot := range mapping.BindingInfos() {
		if slot.Type != vk.DescriptorTypeUniformBuffer {
			t.Fatalf("slot %d type = %d, conversion must be all-or-nothing", slot.Slot, slot.Type)
		}
	}
}

func TestMakeDescriptorsDynamicLeavesStorageBuffers(t *testing.T) {
	mapping := DescriptorSlotMapping{}
	mapping.DefineSlot(vk.ShaderStageVertexBit, ResourceSlot{Slot: 0, Type: vk.DescriptorTypeUniformBuffer})
	mapping.DefineSlot(vk.ShaderStageVertexBit, ResourceSlot{Slot: 1, Type: vk.DescriptorTypeStorageBuffer})

	mapping.MakeDescriptorsDynamic(8, 8)

	infos := mapping.BindingInfos()
	if infos[0].Type != vk.DescriptorTypeUniformBufferDynamic {
		t.Errorf("uniform buffer not converted, type = %d", infos[0].Type)
	}
	if infos[1].Type != vk.DescriptorTypeStorageBuffer {
		t.Errorf("storage buffer must stay static, type = %d", infos[1].Type)
	}
}

func TestNewSlotPipelineLayout(t *testing.T) {
	device := newFakeDevice()
	mapping := DescriptorSlotMapping{}
	mapping.DefineSlot(vk.ShaderStageVertexBit, ResourceSlot{Slot: 0, Type: vk.DescriptorTypeUniformBuffer})
	mapping.DefineSlot(vk.ShaderStageFragmentBit, ResourceSlot{Slot: 1, Type: vk.DescriptorTypeSampledImage})
	mapping.DefinePushConstRange(vk.ShaderStageVertexBit, 0, 16)

	layout, err := NewSlotPipelineLayout(device, &mapping, vk.PipelineBindPointGraphics)
	if err != nil {
		t.Fatalf("NewSlotPipelineLayout() error: %v", err)
	}

	if device.setLayoutCalls != 1 || device.templateCalls != 1 || device.pipeLayoutCalls != 1 {
		t.Errorf("native calls = %d/%d/%d, want 1/1/1",
			device.setLayoutCalls, device.templateCalls, device.pipeLayoutCalls)
	}
	if device.lastPushRangeCount != 1 {
		t.Errorf("push constant range count = %d, want 1", device.lastPushRangeCount)
	}
	if n := layout.BindingCount(); n != 2 {
		t.Errorf("binding count = %d, want 2", n)
	}

	layout.Destroy()
	layout.Destroy()
	if !device.balanced() {
		t.Error("Destroy must release every created object exactly once")
	}
}

func TestNewSlotPipelineLayoutEmptyMapping(t *testing.T) {
	device := newFakeDevice()
	mapping := DescriptorSlotMapping{}

	layout, err := NewSlotPipelineLayout(device, &mapping, vk.PipelineBindPointGraphics)
	if err != nil {
		t.Fatalf("NewSlotPipelineLayout() error: %v", err)
	}

	if device.setLayoutCalls != 0 || device.templateCalls != 0 {
		t.Errorf("empty mapping must not create set layouts or templates, got %d/%d",
			device.setLayoutCalls, device.templateCalls)
	}
	if device.pipeLayoutCalls != 1 {
		t.Errorf("pipeline layout calls = %d, want 1", device.pipeLayoutCalls)
	}

	layout.Destroy()
	if !device.balanced() {
		t.Error("Destroy of an empty layout leaked or over-released objects")
	}
}

func TestNewSlotPipelineLayoutTooManyBindings(t *testing.T) {
	device := newFakeDevice()
	mapping := DescriptorSlotMapping{}
	for i := uint32(0); i <= VULKAN_MAX_ACTIVE_BINDINGS; i++ {
		mapping.DefineSlot(vk.ShaderStageVertexBit, ResourceSlot{Slot: i, Type: vk.DescriptorTypeUniformBuffer})
	}

	_, err := NewSlotPipelineLayout(device, &mapping, vk.PipelineBindPointGraphics)
	if !errors.Is(err, core.ErrTooManyBindings) {
		t.Fatalf("error = %v, want ErrTooManyBindings", err)
	}
	if device.setLayoutCalls != 0 || device.pipeLayoutCalls != 0 {
		t.Error("binding cap must be checked before any native call")
	}
}

func TestSlotPipelineLayoutRollbackOnPipelineLayoutFailure(t *testing.T) {
	device := newFakeDevice()
	device.failPipeLayoutAt = 1

	mapping := DescriptorSlotMapping{}
	mapping.DefineSlot(vk.ShaderStageVertexBit, ResourceSlot{Slot: 0, Type: vk.DescriptorTypeUniformBuffer})

	if _, err := NewSlotPipelineLayout(device, &mapping, vk.PipelineBindPointGraphics); err == nil {
		t.Fatal("expected pipeline layout failure to propagate")
	}
	if !device.balanced() {
		t.Error("set layout leaked after pipeline layout failure")
	}
}

func TestSlotPipelineLayoutRollbackOnTemplateFailure(t *testing.T) {
	device := newFakeDevice()
	device.failTemplateAt = 1

	mapping := DescriptorSlotMapping{}
	mapping.DefineSlot(vk.ShaderStageVertexBit, ResourceSlot{Slot: 0, Type: vk.DescriptorTypeUniformBuffer})

	if _, err := NewSlotPipelineLayout(device, &mapping, vk.PipelineBindPointGraphics); err == nil {
		t.Fatal("expected template failure to propagate")
	}
	if !device.balanced() {
		t.Error("objects leaked after template failure")
	}

	tail := device.opsTail(2)
	if len(tail) != 2 || tail[0] != "destroyPipelineLayout" || tail[1] != "destroySetLayout" {
		t.Errorf("rollback order = %v, want pipeline layout before set layout", tail)
	}
}

func TestSlotPipelineLayoutDynamicBindings(t *testing.T) {
	device := newFakeDevice()
	mapping := DescriptorSlotMapping{}
	mapping.DefineSlot(vk.ShaderStageVertexBit, ResourceSlot{Slot: 0, Type: vk.DescriptorTypeUniformBuffer})
	mapping.DefineSlot(vk.ShaderStageVertexBit, ResourceSlot{Slot: 1, Type: vk.DescriptorTypeSampledImage})
	mapping.MakeDescriptorsDynamic(device.MaxUniformBufferBindings(), device.MaxStorageBufferBindings())

	layout, err := NewSlotPipelineLayout(device, &mapping, vk.PipelineBindPointGraphics)
	if err != nil {
		t.Fatalf("NewSlotPipelineLayout() error: %v", err)
	}
	defer layout.Destroy()

	if n := layout.DynamicBindingCount(); n != 1 {
		t.Fatalf("dynamic binding count = %d, want 1", n)
	}
	if slot := layout.DynamicBinding(0); slot.Slot != 0 {
		t.Errorf("dynamic binding slot = %d, want 0", slot.Slot)
	}
	if layout.HasStaticBufferBindings() {
		t.Error("all uniform buffers were converted, no static buffer bindings expected")
	}
}

func TestStorageDescriptorStages(t *testing.T) {
	device := newFakeDevice()
	mapping := DescriptorSlotMapping{}
	mapping.DefineSlot(vk.ShaderStageVertexBit, ResourceSlot{
		Slot:   0,
		Type:   vk.DescriptorTypeUniformBuffer,
		Access: vk.AccessFlags(vk.AccessShaderReadBit),
	})
	mapping.DefineSlot(vk.ShaderStageFragmentBit, ResourceSlot{
		Slot:   1,
		Type:   vk.DescriptorTypeStorageBuffer,
		Access: vk.AccessFlags(vk.AccessShaderWriteBit),
	})

	layout, err := NewSlotPipelineLayout(device, &mapping, vk.PipelineBindPointGraphics)
	if err != nil {
		t.Fatalf("NewSlotPipelineLayout() error: %v", err)
	}
	defer layout.Destroy()

	if stages := layout.StorageDescriptorStages(); stages != stageFS {
		t.Errorf("storage stages = 0x%x, want the fragment stage only", stages)
	}
}
