package render

import (
	"log"
	"unsafe"

	"github.com/vulkan-go/glfw/v3.3/glfw"
	"github.com/vulkan-go/vulkan"

	"kuberoom/internal/swap"
	"kuberoom/internal/vkerr"
)

var (
	validationLayers = []string{"VK_LAYER_KHRONOS_validation"}
	deviceExtensions = []string{"VK_KHR_swapchain"}
)

type queueFamilyIndices struct {
	graphicsFamily uint32
	presentFamily  uint32
	hasGraphics    bool
	hasPresent     bool
}

func (q queueFamilyIndices) complete() bool {
	return q.hasGraphics && q.hasPresent
}

// RenderContext is the device-level state every component works against:
// one instance, one surface, one logical device and its queues.
type RenderContext struct {
	window         *glfw.Window
	validation     bool
	instance       vulkan.Instance
	debugCallback  vulkan.DebugReportCallback
	surface        vulkan.Surface
	physicalDevice vulkan.PhysicalDevice
	device         vulkan.Device
	queues         queueFamilyIndices
	graphicsQueue  vulkan.Queue
	presentQueue   vulkan.Queue
	commandPool    vulkan.CommandPool
	samples        vulkan.SampleCountFlagBits
	depthFormat    vulkan.Format
	anisotropy     bool
	maxAnisotropy  float32
	deviceName     string
}

// NewContext brings up Vulkan for window. Whatever was created before a
// failure is torn down again.
func NewContext(window *glfw.Window, opts Options) (*RenderContext, error) {
	ctx := &RenderContext{
		window:     window,
		validation: opts.Validation,
		samples:    vulkan.SampleCount1Bit,
	}
	if err := ctx.init(opts.Multisample); err != nil {
		ctx.Destroy()
		return nil, err
	}
	return ctx, nil
}

func (c *RenderContext) init(multisample bool) error {
	vulkan.SetGetInstanceProcAddr(glfw.GetVulkanGetInstanceProcAddress())
	if err := vulkan.Init(); err != nil {
		return vkerr.Setupf("vulkan init: %v", err)
	}
	if err := c.createInstance(); err != nil {
		return err
	}
	if err := vulkan.InitInstance(c.instance); err != nil {
		return vkerr.Setupf("vkInitInstance: %v", err)
	}
	if err := c.setupDebugCallback(); err != nil {
		return err
	}
	if err := c.createSurface(); err != nil {
		return err
	}
	if err := c.pickPhysicalDevice(); err != nil {
		return err
	}
	if multisample {
		c.samples = c.maxUsableSampleCount()
	}
	depthFormat, err := c.findDepthFormat()
	if err != nil {
		return err
	}
	c.depthFormat = depthFormat
	if err := c.createLogicalDevice(); err != nil {
		return err
	}
	if err := c.createCommandPool(); err != nil {
		return err
	}
	log.Printf("Using %s (msaa x%d, anisotropy %v)", c.deviceName, c.samples, c.anisotropy)
	return nil
}

func (c *RenderContext) createInstance() error {
	if c.validation && !validationLayersSupported() {
		return vkerr.Setupf("requested validation layers not available")
	}
	if !glfw.VulkanSupported() {
		return vkerr.Setupf("GLFW Vulkan loader not found")
	}

	appInfo := vulkan.ApplicationInfo{
		SType:              vulkan.StructureTypeApplicationInfo,
		PApplicationName:   cstring("Kube Room"),
		ApplicationVersion: vulkan.MakeVersion(0, 2, 0),
		PEngineName:        cstring("No Engine"),
		EngineVersion:      vulkan.MakeVersion(0, 2, 0),
		ApiVersion:         vulkan.MakeVersion(1, 1, 0),
	}

	extensions := c.window.GetRequiredInstanceExtensions()
	if c.validation {
		extensions = append(extensions, "VK_EXT_debug_report")
	}

	createInfo := vulkan.InstanceCreateInfo{
		SType:                   vulkan.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        &appInfo,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: cstrings(extensions),
	}
	if c.validation {
		createInfo.EnabledLayerCount = uint32(len(validationLayers))
		createInfo.PpEnabledLayerNames = cstrings(validationLayers)
	}

	return vkerr.Setup(vulkan.CreateInstance(&createInfo, nil, &c.instance), "create instance")
}

func validationLayersSupported() bool {
	var count uint32
	if vulkan.EnumerateInstanceLayerProperties(&count, nil) != vulkan.Success {
		return false
	}
	props := make([]vulkan.LayerProperties, count)
	if vulkan.EnumerateInstanceLayerProperties(&count, props) != vulkan.Success {
		return false
	}
	supported := make(map[string]bool)
	for i := range props {
		props[i].Deref()
		supported[vulkan.ToString(props[i].LayerName[:])] = true
	}
	for _, l := range validationLayers {
		if !supported[l] {
			return false
		}
	}
	return true
}

func (c *RenderContext) setupDebugCallback() error {
	if !c.validation {
		return nil
	}
	createInfo := vulkan.DebugReportCallbackCreateInfo{
		SType: vulkan.StructureTypeDebugReportCallbackCreateInfo,
		Flags: vulkan.DebugReportFlags(
			vulkan.DebugReportErrorBit |
				vulkan.DebugReportWarningBit |
				vulkan.DebugReportPerformanceWarningBit),
		PfnCallback: func(flags vulkan.DebugReportFlags, objectType vulkan.DebugReportObjectType, object uint64, location uint, messageCode int32, layerPrefix string, message string, userData unsafe.Pointer) vulkan.Bool32 {
			log.Printf("[VK][%s][0x%x] %s (code=%d)", layerPrefix, flags, message, messageCode)
			return vulkan.False
		},
	}
	return vkerr.Setup(vulkan.CreateDebugReportCallback(c.instance, &createInfo, nil, &c.debugCallback), "create debug callback")
}

func (c *RenderContext) createSurface() error {
	surfacePtr, err := c.window.CreateWindowSurface(c.instance, nil)
	if err != nil {
		return vkerr.Setupf("create window surface: %v", err)
	}
	c.surface = vulkan.SurfaceFromPointer(surfacePtr)
	return nil
}

func (c *RenderContext) pickPhysicalDevice() error {
	var count uint32
	if res := vulkan.EnumeratePhysicalDevices(c.instance, &count, nil); res != vulkan.Success || count == 0 {
		return vkerr.Setupf("no Vulkan physical devices (result %d)", res)
	}
	devices := make([]vulkan.PhysicalDevice, count)
	if err := vkerr.Setup(vulkan.EnumeratePhysicalDevices(c.instance, &count, devices), "enumerate physical devices"); err != nil {
		return err
	}

	bestScore := int32(-1)
	for _, dev := range devices {
		q := c.findQueueFamilies(dev)
		if !q.complete() {
			continue
		}
		if !deviceExtensionsSupported(dev) {
			continue
		}
		if !c.querySupport(dev).Adequate() {
			continue
		}
		if score := deviceScore(dev); score > bestScore {
			bestScore = score
			c.physicalDevice = dev
			c.queues = q
		}
	}
	if bestScore < 0 {
		return vkerr.Setupf("no suitable GPU found among %d devices", count)
	}

	var props vulkan.PhysicalDeviceProperties
	vulkan.GetPhysicalDeviceProperties(c.physicalDevice, &props)
	props.Deref()
	props.Limits.Deref()
	c.deviceName = vulkan.ToString(props.DeviceName[:])
	c.maxAnisotropy = props.Limits.MaxSamplerAnisotropy

	var features vulkan.PhysicalDeviceFeatures
	vulkan.GetPhysicalDeviceFeatures(c.physicalDevice, &features)
	features.Deref()
	c.anisotropy = features.SamplerAnisotropy == vulkan.True
	return nil
}

func deviceScore(device vulkan.PhysicalDevice) int32 {
	var props vulkan.PhysicalDeviceProperties
	vulkan.GetPhysicalDeviceProperties(device, &props)
	props.Deref()

	switch props.DeviceType {
	case vulkan.PhysicalDeviceTypeDiscreteGpu:
		return 1000
	case vulkan.PhysicalDeviceTypeIntegratedGpu:
		return 500
	default:
		return 100
	}
}

func deviceExtensionsSupported(device vulkan.PhysicalDevice) bool {
	var count uint32
	if res := vulkan.EnumerateDeviceExtensionProperties(device, "", &count, nil); res != vulkan.Success {
		return false
	}
	props := make([]vulkan.ExtensionProperties, count)
	if res := vulkan.EnumerateDeviceExtensionProperties(device, "", &count, props); res != vulkan.Success {
		return false
	}
	supported := make(map[string]bool)
	for i := range props {
		props[i].Deref()
		supported[vulkan.ToString(props[i].ExtensionName[:])] = true
	}
	for _, ext := range deviceExtensions {
		if !supported[ext] {
			return false
		}
	}
	return true
}

// findQueueFamilies trusts the queried present-support flag per family.
func (c *RenderContext) findQueueFamilies(device vulkan.PhysicalDevice) queueFamilyIndices {
	var count uint32
	vulkan.GetPhysicalDeviceQueueFamilyProperties(device, &count, nil)
	props := make([]vulkan.QueueFamilyProperties, count)
	vulkan.GetPhysicalDeviceQueueFamilyProperties(device, &count, props)

	var indices queueFamilyIndices
	for i := range props {
		props[i].Deref()
		if props[i].QueueFlags&vulkan.QueueFlags(vulkan.QueueGraphicsBit) != 0 && !indices.hasGraphics {
			indices.graphicsFamily = uint32(i)
			indices.hasGraphics = true
		}
		var present vulkan.Bool32
		if vulkan.GetPhysicalDeviceSurfaceSupport(device, uint32(i), c.surface, &present) == vulkan.Success &&
			present == vulkan.True && !indices.hasPresent {
			indices.presentFamily = uint32(i)
			indices.hasPresent = true
		}
		if indices.complete() {
			break
		}
	}
	return indices
}

func (c *RenderContext) createLogicalDevice() error {
	queueInfos := []vulkan.DeviceQueueCreateInfo{}
	uniqueFamilies := map[uint32]bool{
		c.queues.graphicsFamily: true,
		c.queues.presentFamily:  true,
	}
	priority := float32(1.0)
	for family := range uniqueFamilies {
		queueInfos = append(queueInfos, vulkan.DeviceQueueCreateInfo{
			SType:            vulkan.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: family,
			QueueCount:       1,
			PQueuePriorities: []float32{priority},
		})
	}

	deviceFeatures := vulkan.PhysicalDeviceFeatures{}
	if c.anisotropy {
		deviceFeatures.SamplerAnisotropy = vulkan.True
	}
	createInfo := vulkan.DeviceCreateInfo{
		SType:                   vulkan.StructureTypeDeviceCreateInfo,
		PQueueCreateInfos:       queueInfos,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PEnabledFeatures:        []vulkan.PhysicalDeviceFeatures{deviceFeatures},
		PpEnabledExtensionNames: cstrings(deviceExtensions),
		EnabledExtensionCount:   uint32(len(deviceExtensions)),
	}
	if c.validation {
		createInfo.EnabledLayerCount = uint32(len(validationLayers))
		createInfo.PpEnabledLayerNames = cstrings(validationLayers)
	}

	if err := vkerr.Setup(vulkan.CreateDevice(c.physicalDevice, &createInfo, nil, &c.device), "create logical device"); err != nil {
		return err
	}
	vulkan.GetDeviceQueue(c.device, c.queues.graphicsFamily, 0, &c.graphicsQueue)
	vulkan.GetDeviceQueue(c.device, c.queues.presentFamily, 0, &c.presentQueue)
	return nil
}

func (c *RenderContext) createCommandPool() error {
	poolInfo := vulkan.CommandPoolCreateInfo{
		SType:            vulkan.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: c.queues.graphicsFamily,
	}
	return vkerr.Check(vulkan.CreateCommandPool(c.device, &poolInfo, nil, &c.commandPool), "create command pool")
}

func (c *RenderContext) querySupport(device vulkan.PhysicalDevice) swap.Support {
	var details swap.Support
	vulkan.GetPhysicalDeviceSurfaceCapabilities(device, c.surface, &details.Capabilities)
	details.Capabilities.Deref()
	details.Capabilities.CurrentExtent.Deref()
	details.Capabilities.MinImageExtent.Deref()
	details.Capabilities.MaxImageExtent.Deref()

	var formatCount uint32
	vulkan.GetPhysicalDeviceSurfaceFormats(device, c.surface, &formatCount, nil)
	if formatCount > 0 {
		details.Formats = make([]vulkan.SurfaceFormat, formatCount)
		vulkan.GetPhysicalDeviceSurfaceFormats(device, c.surface, &formatCount, details.Formats)
		for i := range details.Formats {
			details.Formats[i].Deref()
		}
	}

	var presentCount uint32
	vulkan.GetPhysicalDeviceSurfacePresentModes(device, c.surface, &presentCount, nil)
	if presentCount > 0 {
		details.PresentModes = make([]vulkan.PresentMode, presentCount)
		vulkan.GetPhysicalDeviceSurfacePresentModes(device, c.surface, &presentCount, details.PresentModes)
	}
	return details
}

func (c *RenderContext) maxUsableSampleCount() vulkan.SampleCountFlagBits {
	var props vulkan.PhysicalDeviceProperties
	vulkan.GetPhysicalDeviceProperties(c.physicalDevice, &props)
	props.Deref()
	props.Limits.Deref()
	return maxSampleCount(props.Limits.FramebufferColorSampleCounts & props.Limits.FramebufferDepthSampleCounts)
}

// maxSampleCount picks the highest sample count set in counts.
func maxSampleCount(counts vulkan.SampleCountFlags) vulkan.SampleCountFlagBits {
	for _, bit := range []vulkan.SampleCountFlagBits{
		vulkan.SampleCount64Bit,
		vulkan.SampleCount32Bit,
		vulkan.SampleCount16Bit,
		vulkan.SampleCount8Bit,
		vulkan.SampleCount4Bit,
		vulkan.SampleCount2Bit,
	} {
		if counts&vulkan.SampleCountFlags(bit) != 0 {
			return bit
		}
	}
	return vulkan.SampleCount1Bit
}

func (c *RenderContext) findDepthFormat() (vulkan.Format, error) {
	candidates := []vulkan.Format{
		vulkan.FormatD32Sfloat,
		vulkan.FormatD32SfloatS8Uint,
		vulkan.FormatD24UnormS8Uint,
	}
	format, ok := c.findSupportedFormat(candidates, vulkan.ImageTilingOptimal, vulkan.FormatFeatureFlags(vulkan.FormatFeatureDepthStencilAttachmentBit))
	if !ok {
		return 0, vkerr.Setupf("no depth attachment format supported")
	}
	return format, nil
}

func (c *RenderContext) formatProperties(format vulkan.Format) vulkan.FormatProperties {
	var props vulkan.FormatProperties
	vulkan.GetPhysicalDeviceFormatProperties(c.physicalDevice, format, &props)
	props.Deref()
	return props
}

func (c *RenderContext) findSupportedFormat(candidates []vulkan.Format, tiling vulkan.ImageTiling, features vulkan.FormatFeatureFlags) (vulkan.Format, bool) {
	for _, format := range candidates {
		props := c.formatProperties(format)
		if tiling == vulkan.ImageTilingLinear && props.LinearTilingFeatures&features == features {
			return format, true
		}
		if tiling == vulkan.ImageTilingOptimal && props.OptimalTilingFeatures&features == features {
			return format, true
		}
	}
	return 0, false
}

// FramebufferSize implements swap.SizeSource.
func (c *RenderContext) FramebufferSize() (int, int) {
	return c.window.GetFramebufferSize()
}

// WaitEvents implements swap.SizeSource.
func (c *RenderContext) WaitEvents() {
	glfw.WaitEvents()
}

func (c *RenderContext) waitIdle() error {
	if c.device == vulkan.Device(vulkan.NullHandle) {
		return nil
	}
	return vkerr.Check(vulkan.DeviceWaitIdle(c.device), "wait for device idle")
}

func (c *RenderContext) Destroy() {
	if c.commandPool != vulkan.CommandPool(vulkan.NullHandle) {
		vulkan.DestroyCommandPool(c.device, c.commandPool, nil)
		c.commandPool = vulkan.CommandPool(vulkan.NullHandle)
	}
	if c.device != vulkan.Device(vulkan.NullHandle) {
		vulkan.DestroyDevice(c.device, nil)
		c.device = vulkan.Device(vulkan.NullHandle)
	}
	if c.debugCallback != vulkan.DebugReportCallback(vulkan.NullHandle) {
		vulkan.DestroyDebugReportCallback(c.instance, c.debugCallback, nil)
		c.debugCallback = vulkan.DebugReportCallback(vulkan.NullHandle)
	}
	if c.surface != vulkan.Surface(vulkan.NullHandle) {
		vulkan.DestroySurface(c.instance, c.surface, nil)
		c.surface = vulkan.Surface(vulkan.NullHandle)
	}
	if c.instance != vulkan.Instance(vulkan.NullHandle) {
		vulkan.DestroyInstance(c.instance, nil)
		c.instance = vulkan.Instance(vulkan.NullHandle)
	}
}

func cstring(s string) string {
	return s + "\x00"
}

func cstrings(list []string) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = cstring(s)
	}
	return out
}
