//go:build !nogpu

package native

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/g3d/gpucore"
)

// renderPass records into a HAL command encoder. Calls that reference
// unknown resources are dropped and reported by Submit; everything else is
// encoded as issued.
type renderPass struct {
	dev      *Device
	encoder  hal.CommandEncoder
	pass     hal.RenderPassEncoder
	pipeline *pipeline
	errs     []error
	done     bool
}

// BeginRenderPass opens a command encoder and a render pass that clears the
// offscreen color and depth targets.
func (d *Device) BeginRenderPass() (gpucore.RenderPass, error) {
	d.mu.RLock()
	closed := d.closed
	d.mu.RUnlock()
	if closed {
		return nil, gpucore.ErrDeviceClosed
	}
	d.reclaim()

	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "g3d_frame"})
	if err != nil {
		return nil, fmt.Errorf("native: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("g3d_frame"); err != nil {
		return nil, fmt.Errorf("native: begin encoding: %w", err)
	}

	d.clearMu.Lock()
	clearColor := d.clearColor
	d.clearMu.Unlock()

	pass := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "g3d_scene_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       d.colorView,
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: clearColor,
		}},
		DepthStencilAttachment: &hal.RenderPassDepthStencilAttachment{
			View:            d.depthView,
			DepthLoadOp:     gputypes.LoadOpClear,
			DepthStoreOp:    gputypes.StoreOpDiscard,
			DepthClearValue: 1.0,
		},
	})
	return &renderPass{dev: d, encoder: encoder, pass: pass}, nil
}

func (p *renderPass) fail(format string, args ...any) {
	p.errs = append(p.errs, fmt.Errorf("native: "+format, args...))
}

func (p *renderPass) open(op string) bool {
	if p.done {
		p.fail("%s after submit: %w", op, gpucore.ErrPassClosed)
		return false
	}
	return true
}

func (p *renderPass) UsePipeline(id gpucore.PipelineID) {
	if !p.open("usePipeline") {
		return
	}
	p.dev.mu.RLock()
	pl, ok := p.dev.pipelines[id]
	p.dev.mu.RUnlock()
	if !ok {
		p.fail("use pipeline %d: %w", id, gpucore.ErrResourceNotFound)
		p.pipeline = nil
		return
	}
	p.pipeline = pl
	p.pass.SetPipeline(pl.raw)
}

func (p *renderPass) SetVertexBuffer(slot uint32, id gpucore.BufferID) {
	if !p.open("setVertexBuffer") {
		return
	}
	p.dev.mu.RLock()
	b, ok := p.dev.buffers[id]
	p.dev.mu.RUnlock()
	if !ok {
		p.fail("vertex slot %d: buffer %d: %w", slot, id, gpucore.ErrResourceNotFound)
		return
	}
	p.pass.SetVertexBuffer(slot, b.raw, 0)
}

func (p *renderPass) SetBindGroup(index uint32, id gpucore.BindGroupID, dynamicOffsets []uint32) {
	if !p.open("setBindGroup") {
		return
	}
	p.dev.mu.RLock()
	g, ok := p.dev.bindGroups[id]
	p.dev.mu.RUnlock()
	if !ok {
		p.fail("bind group %d at %d: %w", id, index, gpucore.ErrResourceNotFound)
		return
	}
	p.pass.SetBindGroup(index, g, dynamicOffsets)
}

func (p *renderPass) DrawInstanced(indexBuffer gpucore.BufferID, indexCount, instanceCount uint32) {
	if !p.open("drawInstanced") {
		return
	}
	p.draw(indexBuffer, indexCount, instanceCount)
}

func (p *renderPass) DrawIndexed(indexBuffer gpucore.BufferID, indexCount uint32) {
	if !p.open("drawIndexed") {
		return
	}
	p.draw(indexBuffer, indexCount, 1)
}

func (p *renderPass) draw(indexBuffer gpucore.BufferID, indexCount, instanceCount uint32) {
	if p.pipeline == nil {
		p.fail("draw without a pipeline")
		return
	}
	p.dev.mu.RLock()
	ib, ok := p.dev.buffers[indexBuffer]
	p.dev.mu.RUnlock()
	if !ok || !ib.usage.Has(gpucore.BufferUsageIndex) {
		p.fail("draw with invalid index buffer %d", indexBuffer)
		return
	}
	if uint64(indexCount)*4 > ib.size {
		p.fail("draw of %d indices from %q (%d bytes): %w", indexCount, ib.label, ib.size, gpucore.ErrBufferOverrun)
		return
	}
	p.pass.SetIndexBuffer(ib.raw, gputypes.IndexFormatUint32, 0)
	p.pass.DrawIndexed(indexCount, instanceCount, 0, 0, 0)
}

// Submit ends the pass, finishes the encoder and hands the command buffer to
// the queue. The buffer is freed once the queue reports it complete.
func (p *renderPass) Submit() error {
	if p.done {
		return gpucore.ErrPassClosed
	}
	p.done = true
	p.pass.End()

	d := p.dev
	cmd, err := p.encoder.EndEncoding()
	if err != nil {
		p.encoder.DiscardEncoding()
		return errors.Join(append(p.errs, fmt.Errorf("native: end encoding: %w", err))...)
	}
	index, err := d.queue.Submit([]hal.CommandBuffer{cmd})
	if err != nil {
		d.device.FreeCommandBuffer(cmd)
		return errors.Join(append(p.errs, fmt.Errorf("native: submit: %w", err))...)
	}
	d.submits.Add(1)

	d.mu.Lock()
	d.pending = append(d.pending, submitted{index: index, cmd: cmd})
	d.mu.Unlock()
	d.reclaim()
	return errors.Join(p.errs...)
}

// reclaim frees command buffers the queue has finished with.
func (d *Device) reclaim() {
	done := d.queue.PollCompleted()
	d.mu.Lock()
	defer d.mu.Unlock()
	keep := d.pending[:0]
	for _, s := range d.pending {
		if s.index <= done {
			d.device.FreeCommandBuffer(s.cmd)
			continue
		}
		keep = append(keep, s)
	}
	d.pending = keep
}

// InFlight returns the number of submitted command buffers not yet freed.
func (d *Device) InFlight() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.pending)
}
