package vulkan

import (
	"errors"
	"sync"

	vk "github.com/goki/vulkan"
)

var errDeviceOutOfMemory = errors.New("vkErrorOutOfDeviceMemory")

// fakeDevice satisfies Device without a Vulkan instance. Every handle it
// returns is the zero value, so code under test must not key behaviour off
// handle identity. Creation and destruction calls are counted and appended
// to an ordered op log, which the rollback tests inspect.
type fakeDevice struct {
	mu  sync.Mutex
	ops []string

	setLayoutCalls  int
	templateCalls   int
	pipeLayoutCalls int

	setLayoutsAlive  int
	templatesAlive   int
	pipeLayoutsAlive int

	// 1-based call index that fails with errDeviceOutOfMemory; 0 disables.
	failSetLayoutAt  int
	failTemplateAt   int
	failPipeLayoutAt int

	setLayoutBindingCounts []uint32
	lastPushRangeCount     uint32
	lastSetLayoutCount     uint32

	maxUniform uint32
	maxStorage uint32
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{maxUniform: 16, maxStorage: 8}
}

func (d *fakeDevice) CreateDescriptorSetLayout(info *vk.DescriptorSetLayoutCreateInfo) (vk.DescriptorSetLayout, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var layout vk.DescriptorSetLayout
	d.setLayoutCalls++
	if d.failSetLayoutAt != 0 && d.setLayoutCalls == d.failSetLayoutAt {
		d.ops = append(d.ops, "createSetLayout:fail")
		return layout, errDeviceOutOfMemory
	}
	d.setLayoutsAlive++
	d.setLayoutBindingCounts = append(d.setLayoutBindingCounts, info.BindingCount)
	d.ops = append(d.ops, "createSetLayout")
	return layout, nil
}

func (d *fakeDevice) DestroyDescriptorSetLayout(layout vk.DescriptorSetLayout) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.setLayoutsAlive--
	d.ops = append(d.ops, "destroySetLayout")
}

func (d *fakeDevice) CreateDescriptorUpdateTemplate(info *vk.DescriptorUpdateTemplateCreateInfo) (vk.DescriptorUpdateTemplate, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var template vk.DescriptorUpdateTemplate
	d.templateCalls++
	if d.failTemplateAt != 0 && d.templateCalls == d.failTemplateAt {
		d.ops = append(d.ops, "createTemplate:fail")
		return template, errDeviceOutOfMemory
	}
	d.templatesAlive++
	d.ops = append(d.ops, "createTemplate")
	return template, nil
}

func (d *fakeDevice) DestroyDescriptorUpdateTemplate(template vk.DescriptorUpdateTemplate) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.templatesAlive--
	d.ops = append(d.ops, "destroyTemplate")
}

func (d *fakeDevice) CreatePipelineLayout(info *vk.PipelineLayoutCreateInfo) (vk.PipelineLayout, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var layout vk.PipelineLayout
	d.pipeLayoutCalls++
	if d.failPipeLayoutAt != 0 && d.pipeLayoutCalls == d.failPipeLayoutAt {
		d.ops = append(d.ops, "createPipelineLayout:fail")
		return layout, errDeviceOutOfMemory
	}
	d.pipeLayoutsAlive++
	d.lastPushRangeCount = info.PushConstantRangeCount
	d.lastSetLayoutCount = info.SetLayoutCount
	d.ops = append(d.ops, "createPipelineLayout")
	return layout, nil
}

func (d *fakeDevice) DestroyPipelineLayout(layout vk.PipelineLayout) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pipeLayoutsAlive--
	d.ops = append(d.ops, "destroyPipelineLayout")
}

func (d *fakeDevice) MaxUniformBufferBindings() uint32 {
	return d.maxUniform
}

func (d *fakeDevice) MaxStorageBufferBindings() uint32 {
	return d.maxStorage
}

// balanced reports whether every created object has been destroyed again.
func (d *fakeDevice) balanced() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.setLayoutsAlive == 0 && d.templatesAlive == 0 && d.pipeLayoutsAlive == 0
}

// opsTail returns the last n logged operations.
func (d *fakeDevice) opsTail(n int) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n > len(d.ops) {
		n = len(d.ops)
	}
	return append([]string(nil), d.ops[len(d.ops)-n:]...)
}
