package software

import (
	"errors"
	"fmt"
	"slices"

	"github.com/gogpu/g3d/gpucore"
)

// Op is a recorded command type.
type Op uint8

// Recorded operations.
const (
	OpUsePipeline Op = iota + 1
	OpSetVertexBuffer
	OpSetBindGroup
	OpDrawInstanced
	OpDrawIndexed
)

func (o Op) String() string {
	switch o {
	case OpUsePipeline:
		return "usePipeline"
	case OpSetVertexBuffer:
		return "setVertexBuffer"
	case OpSetBindGroup:
		return "setBindGroup"
	case OpDrawInstanced:
		return "drawInstanced"
	case OpDrawIndexed:
		return "drawIndexed"
	default:
		return fmt.Sprintf("op(%d)", o)
	}
}

// Command is one recorded render pass call.
type Command struct {
	Op             Op
	Pipeline       gpucore.PipelineID
	Slot           uint32
	Buffer         gpucore.BufferID
	BindGroup      gpucore.BindGroupID
	DynamicOffsets []uint32
	IndexCount     uint32
	InstanceCount  uint32
}

// renderPass executes commands as they are recorded, the way a raster API
// does: state is validated at each draw against the bound pipeline.
type renderPass struct {
	dev      *Device
	cmds     []Command
	pipeline gpucore.PipelineID
	vertex   map[uint32]gpucore.BufferID
	groups   map[uint32]gpucore.BindGroupID
	errs     []error
	done     bool
}

// BeginRenderPass opens a recording scope.
func (d *Device) BeginRenderPass() (gpucore.RenderPass, error) {
	d.mu.RLock()
	closed := d.closed
	d.mu.RUnlock()
	if closed {
		return nil, gpucore.ErrDeviceClosed
	}
	return &renderPass{
		dev:    d,
		vertex: make(map[uint32]gpucore.BufferID),
		groups: make(map[uint32]gpucore.BindGroupID),
	}, nil
}

func (p *renderPass) fail(format string, args ...any) {
	p.errs = append(p.errs, fmt.Errorf("software: "+format, args...))
}

func (p *renderPass) record(c Command) bool {
	if p.done {
		p.fail("%v after submit: %w", c.Op, gpucore.ErrPassClosed)
		return false
	}
	p.cmds = append(p.cmds, c)
	return true
}

func (p *renderPass) UsePipeline(id gpucore.PipelineID) {
	if !p.record(Command{Op: OpUsePipeline, Pipeline: id}) {
		return
	}
	p.dev.mu.RLock()
	_, ok := p.dev.pipelines[id]
	p.dev.mu.RUnlock()
	if !ok {
		p.fail("use pipeline %d: %w", id, gpucore.ErrResourceNotFound)
		return
	}
	p.pipeline = id
	// A raster API resets attribute and uniform state on program change.
	clear(p.vertex)
	clear(p.groups)
}

func (p *renderPass) SetVertexBuffer(slot uint32, id gpucore.BufferID) {
	if !p.record(Command{Op: OpSetVertexBuffer, Slot: slot, Buffer: id}) {
		return
	}
	p.vertex[slot] = id
}

func (p *renderPass) SetBindGroup(index uint32, id gpucore.BindGroupID, dynamicOffsets []uint32) {
	if !p.record(Command{Op: OpSetBindGroup, Slot: index, BindGroup: id, DynamicOffsets: slices.Clone(dynamicOffsets)}) {
		return
	}
	p.groups[index] = id
}

func (p *renderPass) DrawInstanced(indexBuffer gpucore.BufferID, indexCount, instanceCount uint32) {
	if !p.record(Command{Op: OpDrawInstanced, Buffer: indexBuffer, IndexCount: indexCount, InstanceCount: instanceCount}) {
		return
	}
	p.validateDraw(indexBuffer, indexCount)
}

func (p *renderPass) DrawIndexed(indexBuffer gpucore.BufferID, indexCount uint32) {
	if !p.record(Command{Op: OpDrawIndexed, Buffer: indexBuffer, IndexCount: indexCount, InstanceCount: 1}) {
		return
	}
	p.validateDraw(indexBuffer, indexCount)
}

// validateDraw checks bound state the way a raster driver must before it
// can issue a draw: attribute layouts come from the CPU-side metadata of the
// bound vertex buffers.
func (p *renderPass) validateDraw(indexBuffer gpucore.BufferID, indexCount uint32) {
	d := p.dev
	d.mu.RLock()
	defer d.mu.RUnlock()

	pl, ok := d.pipelines[p.pipeline]
	if !ok {
		p.fail("draw without a pipeline")
		return
	}
	ib, ok := d.buffers[indexBuffer]
	if !ok || !ib.usage.Has(gpucore.BufferUsageIndex) {
		p.fail("draw with invalid index buffer %d", indexBuffer)
		return
	}
	if uint64(indexCount)*4 > uint64(len(ib.data)) {
		p.fail("draw of %d indices from %q (%d bytes): %w", indexCount, ib.label, len(ib.data), gpucore.ErrBufferOverrun)
	}
	for slot, want := range pl.VertexLayouts {
		vb, ok := d.buffers[p.vertex[uint32(slot)]]
		if !ok {
			p.fail("vertex slot %d is not bound", slot)
			continue
		}
		if vb.layout == nil || vb.layout.Key() != want.Key() {
			p.fail("vertex slot %d: buffer %q layout does not match pipeline %q", slot, vb.label, pl.Label)
		}
	}
	for i, want := range pl.BindGroupLayouts {
		bg, ok := d.bindGroups[p.groups[uint32(i)]]
		if !ok {
			p.fail("bind group %d is not set", i)
			continue
		}
		if bg.layout != want {
			p.fail("bind group %d has layout %d, pipeline %q expects %d", i, bg.layout, pl.Label, want)
		}
	}
}

// Submit closes the pass and appends its commands to the device log.
func (p *renderPass) Submit() error {
	if p.done {
		return gpucore.ErrPassClosed
	}
	p.done = true

	p.dev.mu.Lock()
	p.dev.passes = append(p.dev.passes, p.cmds)
	p.dev.mu.Unlock()
	return errors.Join(p.errs...)
}

// === Inspection ===

// Passes returns the number of submitted passes.
func (d *Device) Passes() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.passes)
}

// LastPass returns the commands of the most recently submitted pass.
func (d *Device) LastPass() []Command {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if len(d.passes) == 0 {
		return nil
	}
	return slices.Clone(d.passes[len(d.passes)-1])
}

// Count returns how many commands of type op the last pass recorded.
func (d *Device) Count(op Op) int {
	n := 0
	for _, c := range d.LastPass() {
		if c.Op == op {
			n++
		}
	}
	return n
}

// BufferData returns a copy of a buffer's contents.
func (d *Device) BufferData(id gpucore.BufferID) ([]byte, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	b, ok := d.buffers[id]
	if !ok {
		return nil, false
	}
	return slices.Clone(b.data), true
}

// BufferLabel returns the label a buffer was created with.
func (d *Device) BufferLabel(id gpucore.BufferID) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if b, ok := d.buffers[id]; ok {
		return b.label
	}
	return ""
}

// Pipeline returns the description a pipeline was created from.
func (d *Device) Pipeline(id gpucore.PipelineID) (gpucore.PipelineDesc, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	desc, ok := d.pipelines[id]
	return desc, ok
}

// Texture returns a stored texture payload.
func (d *Device) Texture(id gpucore.TextureID) (gpucore.TextureData, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	t, ok := d.textures[id]
	if !ok {
		return gpucore.TextureData{}, false
	}
	return t.data, true
}

// Live returns the number of live buffers, textures, samplers and bind groups.
func (d *Device) Live() (buffers, textures, samplers, bindGroups int) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.buffers), len(d.textures), len(d.samplers), len(d.bindGroups)
}

// SetWriteFault installs a hook consulted before every buffer write. A
// non-nil error from fn fails the write. Pass nil to remove it.
func (d *Device) SetWriteFault(fn func(label string) error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writeFault = fn
}
