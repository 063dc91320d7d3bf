// Package material realizes material descriptors into bind groups.
//
// A [Descriptor] lists bind group layouts by group index and supplies the
// initial contents of uniform buffers by property name. [Factory.New]
// creates a layout per group (deduplicated by the resource manager), a
// buffer per uniform, default textures where none are supplied, samplers,
// and finally the bind groups in layout order.
//
// Property updates are lazy: [Material.Update] only marks the material dirty
// and the buffer write happens in the next [Material.Bind].
package material
