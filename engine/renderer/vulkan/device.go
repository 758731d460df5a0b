package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/refract/engine/config"
)

// Device exposes the native object-creation and destruction entry points
// the pipeline layout subsystem consumes, plus the descriptor budget
// queries driving the dynamic-descriptor conversion. Production code uses
// VulkanDevice; tests substitute a fake.
type Device interface {
	CreateDescriptorSetLayout(info *vk.DescriptorSetLayoutCreateInfo) (vk.DescriptorSetLayout, error)
	DestroyDescriptorSetLayout(layout vk.DescriptorSetLayout)

	CreateDescriptorUpdateTemplate(info *vk.DescriptorUpdateTemplateCreateInfo) (vk.DescriptorUpdateTemplate, error)
	DestroyDescriptorUpdateTemplate(template vk.DescriptorUpdateTemplate)

	CreatePipelineLayout(info *vk.PipelineLayoutCreateInfo) (vk.PipelineLayout, error)
	DestroyPipelineLayout(layout vk.PipelineLayout)

	// Max number of dynamic uniform / storage buffer bindings the device
	// supports in a single pipeline layout.
	MaxUniformBufferBindings() uint32
	MaxStorageBufferBindings() uint32
}

type VulkanDevice struct {
	PhysicalDevice vk.PhysicalDevice
	LogicalDevice  vk.Device
	Allocator      *vk.AllocationCallbacks

	Properties vk.PhysicalDeviceProperties
	Features   vk.PhysicalDeviceFeatures

	Config config.Config
}

func NewVulkanDevice(physicalDevice vk.PhysicalDevice, logicalDevice vk.Device, allocator *vk.AllocationCallbacks, cfg config.Config) *VulkanDevice {
	device := &VulkanDevice{
		PhysicalDevice: physicalDevice,
		LogicalDevice:  logicalDevice,
		Allocator:      allocator,
		Config:         cfg,
	}
	vk.GetPhysicalDeviceProperties(physicalDevice, &device.Properties)
	device.Properties.Deref()
	device.Properties.Limits.Deref()
	vk.GetPhysicalDeviceFeatures(physicalDevice, &device.Features)
	device.Features.Deref()
	return device
}

func (d *VulkanDevice) CreateDescriptorSetLayout(info *vk.DescriptorSetLayoutCreateInfo) (vk.DescriptorSetLayout, error) {
	var layout vk.DescriptorSetLayout
	if err := lockPool.SafeCall(DescriptorManagement, func() error {
		result := vk.CreateDescriptorSetLayout(d.LogicalDevice, info, d.Allocator, &layout)
		if !VulkanResultIsSuccess(result) {
			return fmt.Errorf("vkCreateDescriptorSetLayout failed with %s", VulkanResultString(result, true))
		}
		return nil
	}); err != nil {
		return layout, err
	}
	return layout, nil
}

// Destroying a null handle is a no-op as per the Vulkan spec, so none of
// the destroy wrappers guard against it.
func (d *VulkanDevice) DestroyDescriptorSetLayout(layout vk.DescriptorSetLayout) {
	lockPool.SafeCall(DescriptorManagement, func() error {
		vk.DestroyDescriptorSetLayout(d.LogicalDevice, layout, d.Allocator)
		return nil
	})
}

func (d *VulkanDevice) CreateDescriptorUpdateTemplate(info *vk.DescriptorUpdateTemplateCreateInfo) (vk.DescriptorUpdateTemplate, error) {
	var template vk.DescriptorUpdateTemplate
	if err := lockPool.SafeCall(DescriptorManagement, func() error {
		result := vk.CreateDescriptorUpdateTemplate(d.LogicalDevice, info, d.Allocator, &template)
		if !VulkanResultIsSuccess(result) {
			return fmt.Errorf("vkCreateDescriptorUpdateTemplate failed with %s", VulkanResultString(result, true))
		}
		return nil
	}); err != nil {
		return template, err
	}
	return template, nil
}

func (d *VulkanDevice) DestroyDescriptorUpdateTemplate(template vk.DescriptorUpdateTemplate) {
	lockPool.SafeCall(DescriptorManagement, func() error {
		vk.DestroyDescriptorUpdateTemplate(d.LogicalDevice, template, d.Allocator)
		return nil
	})
}

func (d *VulkanDevice) CreatePipelineLayout(info *vk.PipelineLayoutCreateInfo) (vk.PipelineLayout, error) {
	var layout vk.PipelineLayout
	if err := lockPool.SafeCall(PipelineManagement, func() error {
		result := vk.CreatePipelineLayout(d.LogicalDevice, info, d.Allocator, &layout)
		if !VulkanResultIsSuccess(result) {
			return fmt.Errorf("vkCreatePipelineLayout failed with %s", VulkanResultString(result, true))
		}
		return nil
	}); err != nil {
		return layout, err
	}
	return layout, nil
}

func (d *VulkanDevice) DestroyPipelineLayout(layout vk.PipelineLayout) {
	lockPool.SafeCall(PipelineManagement, func() error {
		vk.DestroyPipelineLayout(d.LogicalDevice, layout, d.Allocator)
		return nil
	})
}

func (d *VulkanDevice) MaxUniformBufferBindings() uint32 {
	return d.Properties.Limits.MaxDescriptorSetUniformBuffersDynamic
}

func (d *VulkanDevice) MaxStorageBufferBindings() uint32 {
	return d.Properties.Limits.MaxDescriptorSetStorageBuffersDynamic
}
