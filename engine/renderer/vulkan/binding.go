package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/refract/engine/math"
)

// FNV-1a accumulator. Hash and Equal of the types below must stay in
// lock-step: every field that participates in Equal is folded in here.
type hashState struct {
	value uint64
}

const (
	fnvOffsetBasis uint64 = 0xcbf29ce484222325
	fnvPrime       uint64 = 0x100000001b3
)

func newHashState() hashState {
	return hashState{value: fnvOffsetBasis}
}

func (h *hashState) add(v uint64) {
	for i := 0; i < 8; i++ {
		h.value ^= (v >> (8 * i)) & 0xff
		h.value *= fnvPrime
	}
}

/**
 * @brief Binding info
 *
 * Stores metadata for a single binding in a given
 * shader, or for the whole pipeline.
 */
type BindingInfo struct {
	/** @brief Vulkan descriptor type. */
	DescriptorType vk.DescriptorType
	/** @brief API binding slot for the resource. */
	ResourceBinding uint32
	/** @brief Compatible image view type. */
	ViewType vk.ImageViewType
	/** @brief Shader stage mask. */
	Stages vk.ShaderStageFlags
	/** @brief Access mask for the resource. */
	Access vk.AccessFlags
}

// ComputeSetIndex determines the descriptor set a binding lands in, based
// on the stages that use it.
func (b *BindingInfo) ComputeSetIndex() uint32 {
	if b.Stages&vk.ShaderStageFlags(vk.ShaderStageComputeBit) != 0 {
		// Put all compute shader resources into a single set.
		return DescriptorSetCsAll
	} else if b.Stages&vk.ShaderStageFlags(vk.ShaderStageFragmentBit) != 0 {
		// For fragment shaders, create a separate set for buffers, which
		// tend to be rebound every draw while views are not.
		if b.DescriptorType == vk.DescriptorTypeUniformBuffer ||
			b.DescriptorType == vk.DescriptorTypeStorageBuffer ||
			b.DescriptorType == vk.DescriptorTypeUniformBufferDynamic ||
			b.DescriptorType == vk.DescriptorTypeStorageBufferDynamic {
			return DescriptorSetFsBuffers
		}
		return DescriptorSetFsViews
	}
	// Put all remaining graphics-stage resources into the last set.
	// These are rarely updated per draw.
	return DescriptorSetVsAll
}

// CanMerge reports whether two bindings declare the same resource with the
// same view and descriptor type inside the same descriptor set. Bindings on
// opposite sides of the fragment-stage divide land in different sets and
// must not merge.
func (b *BindingInfo) CanMerge(other *BindingInfo) bool {
	fsBit := vk.ShaderStageFlags(vk.ShaderStageFragmentBit)
	if (b.Stages & fsBit) != (other.Stages & fsBit) {
		return false
	}

	return b.DescriptorType == other.DescriptorType &&
		b.ResourceBinding == other.ResourceBinding &&
		b.ViewType == other.ViewType
}

// Merge folds the stage and access flags of an otherwise identical binding
// declaration into this one.
func (b *BindingInfo) Merge(other *BindingInfo) {
	b.Stages |= other.Stages
	b.Access |= other.Access
}

func (b *BindingInfo) Equal(other *BindingInfo) bool {
	return b.DescriptorType == other.DescriptorType &&
		b.ResourceBinding == other.ResourceBinding &&
		b.ViewType == other.ViewType &&
		b.Stages == other.Stages &&
		b.Access == other.Access
}

func (b *BindingInfo) Hash() uint64 {
	hash := newHashState()
	hash.add(uint64(b.DescriptorType))
	hash.add(uint64(b.ResourceBinding))
	hash.add(uint64(b.ViewType))
	hash.add(uint64(b.Stages))
	hash.add(uint64(b.Access))
	return hash.value
}

/**
 * @brief Binding layout
 *
 * Maps out shader bindings for use in descriptor set and pipeline
 * layouts. Bindings that only differ in stage are merged on insertion,
 * so within one set no two entries share (type, slot, view) unless they
 * differ in fragment-stage presence.
 */
type BindingLayout struct {
	bindings  [DescriptorSetCount][]BindingInfo
	pushConst vk.PushConstantRange
}

// BindingCount returns the number of Vulkan bindings in the given set.
func (l *BindingLayout) BindingCount(set uint32) uint32 {
	return uint32(len(l.bindings[set]))
}

// Binding returns the mapped binding info at the given set and index.
func (l *BindingLayout) Binding(set, idx uint32) *BindingInfo {
	return &l.bindings[set][idx]
}

// PushConstantRange returns the accumulated push constant range.
func (l *BindingLayout) PushConstantRange() vk.PushConstantRange {
	return l.pushConst
}

// AddBinding inserts a binding into the layout, merging it into an existing
// entry when possible. Insertion order determines Vulkan binding numbers,
// which callers must treat as opaque until resolved by the layout objects.
func (l *BindingLayout) AddBinding(binding BindingInfo) {
	set := binding.ComputeSetIndex()

	for i := range l.bindings[set] {
		if l.bindings[set][i].CanMerge(&binding) {
			l.bindings[set][i].Merge(&binding)
			return
		}
	}

	l.bindings[set] = append(l.bindings[set], binding)
}

// AddPushConstantRange extends the accumulated push constant range to the
// union of byte spans and ORs the stage masks. The range never shrinks.
func (l *BindingLayout) AddPushConstantRange(rng vk.PushConstantRange) {
	oldEnd := l.pushConst.Offset + l.pushConst.Size
	newEnd := rng.Offset + rng.Size

	l.pushConst.StageFlags |= rng.StageFlags
	l.pushConst.Offset = math.Min(l.pushConst.Offset, rng.Offset)
	l.pushConst.Size = math.Max(oldEnd, newEnd) - l.pushConst.Offset
}

// Merge adds the bindings and push constant range of another layout to this
// one. Used when combining the per-stage layouts of a multi-stage pipeline;
// note that merging can change Vulkan binding numbers, so the merge order
// must be reproducible for caching to hit.
func (l *BindingLayout) Merge(other *BindingLayout) {
	for i := uint32(0); i < DescriptorSetCount; i++ {
		for _, binding := range other.bindings[i] {
			l.AddBinding(binding)
		}
	}

	l.AddPushConstantRange(other.pushConst)
}

// Equal performs a structural, set-by-set comparison of two layouts.
func (l *BindingLayout) Equal(other *BindingLayout) bool {
	for i := uint32(0); i < DescriptorSetCount; i++ {
		if len(l.bindings[i]) != len(other.bindings[i]) {
			return false
		}
	}

	for i := uint32(0); i < DescriptorSetCount; i++ {
		for j := range l.bindings[i] {
			if !l.bindings[i][j].Equal(&other.bindings[i][j]) {
				return false
			}
		}
	}

	if l.pushConst.StageFlags != other.pushConst.StageFlags ||
		l.pushConst.Offset != other.pushConst.Offset ||
		l.pushConst.Size != other.pushConst.Size {
		return false
	}

	return true
}

func (l *BindingLayout) Hash() uint64 {
	hash := newHashState()

	for i := uint32(0); i < DescriptorSetCount; i++ {
		for j := range l.bindings[i] {
			hash.add(l.bindings[i][j].Hash())
		}
	}

	hash.add(uint64(l.pushConst.StageFlags))
	hash.add(uint64(l.pushConst.Offset))
	hash.add(uint64(l.pushConst.Size))
	return hash.value
}
