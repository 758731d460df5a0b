package vulkan

/**
 * @brief Fixed descriptor set indices.
 *
 * Compute and fragment view bindings alias the same physical set index:
 * a pipeline is either compute-only or graphics-only, so the two can
 * never coexist.
 */
const (
	DescriptorSetCsAll     uint32 = 0
	DescriptorSetFsViews   uint32 = 0
	DescriptorSetFsBuffers uint32 = 1
	DescriptorSetVsAll     uint32 = 2
	DescriptorSetCount     uint32 = 3
)

/**
 * @brief Max number of resource bindings a single pipeline layout may
 * reference. Exceeding this in the single-set model means the shader
 * blows the device's descriptor budget entirely.
 */
const VULKAN_MAX_ACTIVE_BINDINGS uint32 = 128

/**
 * @brief Byte size of the packed generic descriptor info record that
 * update templates read from. Sized for the largest of image info,
 * buffer info and texel buffer view.
 */
const VULKAN_DESCRIPTOR_INFO_SIZE uint32 = 24
