package vulkan

import (
	"os"
	"sync"
	"sync/atomic"

	"github.com/spaghettifunk/refract/engine/config"
	"github.com/spaghettifunk/refract/engine/core"
)

/**
 * @brief Pipeline counts returned by PipelineCount.
 */
type PipelineCount struct {
	NumComputePipelines  uint32
	NumGraphicsPipelines uint32
}

/**
 * @brief Pipeline manager
 *
 * Deduplicates binding layout objects by structural equality and compiled
 * pipeline objects by shader-combination identity. One mutex guards both
 * pipeline caches and the layout cache for the full duration of a
 * get-or-create call, native construction included: pipeline creation is
 * rare next to per-frame submission, so serializing it buys a simple,
 * deadlock-free locking order. Cache entries are never evicted or moved;
 * returned pointers stay valid for the manager's lifetime.
 */
type PipelineManager struct {
	device     Device
	stateCache *StateCache

	mutex             sync.Mutex
	computePipelines  map[ComputePipelineShaders]*ComputePipeline
	graphicsPipelines map[GraphicsPipelineShaders]*GraphicsPipeline
	pipelineLayouts   map[uint64][]*BindingLayoutObjects

	numComputePipelines  atomic.Uint32
	numGraphicsPipelines atomic.Uint32
}

func NewPipelineManager(device Device, cfg config.Config) *PipelineManager {
	manager := &PipelineManager{
		device:            device,
		computePipelines:  make(map[ComputePipelineShaders]*ComputePipeline),
		graphicsPipelines: make(map[GraphicsPipelineShaders]*GraphicsPipeline),
		pipelineLayouts:   make(map[uint64][]*BindingLayoutObjects),
	}

	if os.Getenv("REFRACT_STATE_CACHE") != "0" && cfg.EnableStateCache {
		manager.stateCache = newStateCache(manager, cfg.StateCacheWorkers)
	}

	return manager
}

// CreateComputePipeline returns the cached pipeline for the given shader,
// creating it on first use. A nil compute shader is a caller error answered
// with a nil result; no cache is touched.
func (m *PipelineManager) CreateComputePipeline(shaders ComputePipelineShaders) (*ComputePipeline, error) {
	if shaders.Compute == nil {
		core.LogWarn(core.ErrNoComputeShader.Error())
		return nil, nil
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if pipeline, ok := m.computePipelines[shaders]; ok {
		return pipeline, nil
	}

	clock := core.NewClock()
	clock.Start()

	layout, err := m.createPipelineLayout(shaders.Compute.Bindings())
	if err != nil {
		core.LogError("compute pipeline layout creation failed for shader %s: %s", shaders.Compute.ID, err.Error())
		return nil, err
	}

	pipeline := newComputePipeline(m, shaders, layout)
	m.computePipelines[shaders] = pipeline
	m.numComputePipelines.Add(1)

	clock.Update()
	core.MetricsPipelineCompiled(clock.Elapsed(), false)

	context := core.EventContext{}
	context.Data.U32[0] = m.numComputePipelines.Load()
	core.EventFire(core.EVENT_CODE_COMPUTE_PIPELINE_CREATED, m, context)

	core.LogDebug("compute pipeline created for shader %s", shaders.Compute.ID)
	return pipeline, nil
}

// CreateGraphicsPipeline returns the cached pipeline for the given shader
// combination, creating it on first use. A nil vertex shader is a caller
// error answered with a nil result; no cache is touched. Per-stage layouts
// merge in fixed stage order so that binding numbers are reproducible.
func (m *PipelineManager) CreateGraphicsPipeline(shaders GraphicsPipelineShaders) (*GraphicsPipeline, error) {
	if shaders.Vertex == nil {
		core.LogWarn(core.ErrNoVertexShader.Error())
		return nil, nil
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if pipeline, ok := m.graphicsPipelines[shaders]; ok {
		return pipeline, nil
	}

	clock := core.NewClock()
	clock.Start()

	mergedLayout := BindingLayout{}
	mergedLayout.Merge(shaders.Vertex.Bindings())

	if shaders.TessControl != nil {
		mergedLayout.Merge(shaders.TessControl.Bindings())
	}
	if shaders.TessEval != nil {
		mergedLayout.Merge(shaders.TessEval.Bindings())
	}
	if shaders.Geometry != nil {
		mergedLayout.Merge(shaders.Geometry.Bindings())
	}
	if shaders.Fragment != nil {
		mergedLayout.Merge(shaders.Fragment.Bindings())
	}

	layout, err := m.createPipelineLayout(&mergedLayout)
	if err != nil {
		core.LogError("graphics pipeline layout creation failed for shader %s: %s", shaders.Vertex.ID, err.Error())
		return nil, err
	}

	pipeline := newGraphicsPipeline(m, shaders, layout)
	m.graphicsPipelines[shaders] = pipeline
	m.numGraphicsPipelines.Add(1)

	clock.Update()
	core.MetricsPipelineCompiled(clock.Elapsed(), true)

	context := core.EventContext{}
	context.Data.U32[0] = m.numGraphicsPipelines.Load()
	core.EventFire(core.EVENT_CODE_GRAPHICS_PIPELINE_CREATED, m, context)

	core.LogDebug("graphics pipeline created for vertex shader %s", shaders.Vertex.ID)
	return pipeline, nil
}

// createPipelineLayout resolves the layout objects for a binding layout
// through the structural-equality cache. Two pipelines whose shader
// combinations merge to equal layouts share one native object set. Must be
// called with the manager mutex held.
func (m *PipelineManager) createPipelineLayout(layout *BindingLayout) (*BindingLayoutObjects, error) {
	hash := layout.Hash()

	for _, candidate := range m.pipelineLayouts[hash] {
		if candidate.Layout().Equal(layout) {
			return candidate, nil
		}
	}

	objects, err := NewBindingLayoutObjects(m.device, layout)
	if err != nil {
		return nil, err
	}

	m.pipelineLayouts[hash] = append(m.pipelineLayouts[hash], objects)
	return objects, nil
}

// RegisterShader forwards a shader to the background precompiler, if one
// is configured. No-op otherwise.
func (m *PipelineManager) RegisterShader(shader *VulkanShader) {
	if m.stateCache != nil {
		m.stateCache.RegisterShader(shader)
	}
}

// PipelineCount reads the construction counters. These are maintained
// independently of the caches, so no lock is taken.
func (m *PipelineManager) PipelineCount() PipelineCount {
	return PipelineCount{
		NumComputePipelines:  m.numComputePipelines.Load(),
		NumGraphicsPipelines: m.numGraphicsPipelines.Load(),
	}
}

// IsCompilingShaders reports whether the background precompiler is busy.
func (m *PipelineManager) IsCompilingShaders() bool {
	return m.stateCache != nil && m.stateCache.IsCompilingShaders()
}

// StopWorkerThreads drains and stops the background precompiler.
func (m *PipelineManager) StopWorkerThreads() {
	if m.stateCache != nil {
		m.stateCache.StopWorkerThreads()
	}
}

// Destroy stops the precompiler and tears down every cached pipeline and
// binding layout object exactly once.
func (m *PipelineManager) Destroy() {
	m.StopWorkerThreads()

	m.mutex.Lock()
	defer m.mutex.Unlock()

	for _, pipeline := range m.computePipelines {
		pipeline.destroy()
	}
	for _, pipeline := range m.graphicsPipelines {
		pipeline.destroy()
	}
	for _, bucket := range m.pipelineLayouts {
		for _, objects := range bucket {
			objects.Destroy()
		}
	}

	m.computePipelines = make(map[ComputePipelineShaders]*ComputePipeline)
	m.graphicsPipelines = make(map[GraphicsPipelineShaders]*GraphicsPipeline)
	m.pipelineLayouts = make(map[uint64][]*BindingLayoutObjects)
}
