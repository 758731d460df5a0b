package vulkan

import (
	"sync"
	"sync/atomic"

	vk "github.com/goki/vulkan"
	"github.com/google/uuid"
	"github.com/spaghettifunk/refract/engine/core"
)

const stateCacheQueueDepth = 1024

/**
 * @brief Background pipeline precompiler
 *
 * Consumes shader registrations on worker goroutines and precompiles
 * pipelines ahead of first use, so that draw-time lookups hit the
 * manager's caches. Registrations are deduplicated by shader ID.
 */
type StateCache struct {
	manager *PipelineManager

	queue chan *VulkanShader
	done  chan struct{}

	seen      map[uuid.UUID]struct{}
	seenMutex sync.Mutex

	numBusy  atomic.Int32
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func newStateCache(manager *PipelineManager, workers int) *StateCache {
	if workers <= 0 {
		workers = 2
	}

	cache := &StateCache{
		manager: manager,
		queue:   make(chan *VulkanShader, stateCacheQueueDepth),
		done:    make(chan struct{}),
		seen:    make(map[uuid.UUID]struct{}),
	}

	for i := 0; i < workers; i++ {
		cache.wg.Add(1)
		go cache.worker()
	}

	core.LogInfo("pipeline precompiler started with %d workers", workers)
	return cache
}

// RegisterShader queues a shader for precompilation. Shaders already seen
// are skipped; registrations after shutdown are dropped.
func (c *StateCache) RegisterShader(shader *VulkanShader) {
	if shader == nil {
		return
	}

	c.seenMutex.Lock()
	if _, ok := c.seen[shader.ID]; ok {
		c.seenMutex.Unlock()
		return
	}
	c.seen[shader.ID] = struct{}{}
	c.seenMutex.Unlock()

	select {
	case <-c.done:
		return
	default:
	}

	c.numBusy.Add(1)
	select {
	case c.queue <- shader:
		context := core.EventContext{}
		context.Data.C[0] = shader.ID.String()
		core.EventFire(core.EVENT_CODE_SHADER_REGISTERED, c, context)
	case <-c.done:
		c.numBusy.Add(-1)
	}
}

// IsCompilingShaders reports whether any registration is queued or being
// processed.
func (c *StateCache) IsCompilingShaders() bool {
	return c.numBusy.Load() > 0
}

// StopWorkerThreads stops the workers and waits for them to exit.
// Idempotent.
func (c *StateCache) StopWorkerThreads() {
	c.stopOnce.Do(func() {
		close(c.done)
		c.wg.Wait()
	})
}

func (c *StateCache) worker() {
	defer c.wg.Done()

	for {
		select {
		case <-c.done:
			return
		case shader := <-c.queue:
			c.compile(shader)
			if c.numBusy.Add(-1) == 0 {
				core.EventFire(core.EVENT_CODE_PRECOMPILER_IDLE, c, core.EventContext{})
			}
		}
	}
}

// compile precompiles what can be built from a single shader. Compute
// shaders fully determine their pipeline; graphics shaders are only
// recorded, since their combinations are not known until draw time.
func (c *StateCache) compile(shader *VulkanShader) {
	if shader.Stage != vk.ShaderStageComputeBit {
		core.LogDebug("precompiler recorded %s shader %s", VulkanShaderStageString(shader.Stage), shader.ID)
		return
	}

	if _, err := c.manager.CreateComputePipeline(ComputePipelineShaders{Compute: shader}); err != nil {
		core.LogWarn("precompiler failed to build compute pipeline for shader %s: %s", shader.ID, err.Error())
	}
}
