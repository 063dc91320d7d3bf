package resource

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/gogpu/g3d/gpucore"
)

// pipelineKey serializes everything that makes two pipelines different.
// Shader sources are folded to a digest to keep keys short.
func pipelineKey(desc gpucore.PipelineDesc) string {
	var b strings.Builder
	shader := func(s gpucore.ShaderSource) {
		b.WriteString(s.Name)
		b.WriteByte('#')
		b.WriteString(strconv.FormatUint(xxhash.Sum64String(s.WGSL), 16))
		b.WriteByte(':')
		b.WriteString(s.EntryPoint)
		b.WriteByte('|')
	}
	shader(desc.Vertex)
	shader(desc.Fragment)
	for _, l := range desc.VertexLayouts {
		b.WriteString(l.Key())
		b.WriteByte(';')
	}
	b.WriteByte('|')
	for _, id := range desc.BindGroupLayouts {
		b.WriteString(strconv.FormatUint(uint64(id), 10))
		b.WriteByte(',')
	}
	fmt.Fprintf(&b, "|t%d c%d d%t", desc.Topology, desc.CullMode, desc.DepthTest)
	return b.String()
}

// GetOrCreatePipeline returns the pipeline for desc, compiling it on first
// use. Pipelines live until Close.
func (m *Manager) GetOrCreatePipeline(desc gpucore.PipelineDesc) (gpucore.PipelineID, error) {
	if limit := m.caps.MaxBindGroups; limit > 0 && len(desc.BindGroupLayouts) > limit {
		return gpucore.InvalidID, fmt.Errorf("%w: pipeline %q uses %d bind groups, %s allows %d",
			ErrInvalidDescriptor, desc.Label, len(desc.BindGroupLayouts), m.caps.Name, limit)
	}
	m.mu.RLock()
	closed := m.closed
	for _, id := range desc.BindGroupLayouts {
		if _, ok := m.layouts.descs[id]; !ok {
			m.mu.RUnlock()
			return gpucore.InvalidID, fmt.Errorf("%w: layout %d", gpucore.ErrResourceNotFound, id)
		}
	}
	m.mu.RUnlock()
	if closed {
		return gpucore.InvalidID, ErrClosed
	}

	return m.pipelines.GetOrCreate(pipelineKey(desc), func() (gpucore.PipelineID, error) {
		id, err := m.dev.InitPipeline(desc)
		if err != nil {
			return gpucore.InvalidID, fmt.Errorf("resource: pipeline %q: %w", desc.Label, err)
		}
		slogger().Info("resource: pipeline created", "label", desc.Label, "id", id,
			"vertex", desc.Vertex.Name, "fragment", desc.Fragment.Name)
		m.pipelineMu.Lock()
		m.pipelineDescs[id] = desc
		m.pipelineMu.Unlock()
		return id, nil
	})
}

// HasPipeline reports whether id names a live pipeline created through
// the manager.
func (m *Manager) HasPipeline(id gpucore.PipelineID) bool {
	_, ok := m.PipelineDesc(id)
	return ok
}

// PipelineDesc returns the descriptor a live pipeline was created from.
func (m *Manager) PipelineDesc(id gpucore.PipelineID) (gpucore.PipelineDesc, bool) {
	m.pipelineMu.RLock()
	defer m.pipelineMu.RUnlock()
	desc, ok := m.pipelineDescs[id]
	return desc, ok
}

// VertexLayout returns the vertex layout the named shader consumes, derived
// from the stride table and cached.
func (m *Manager) VertexLayout(shader string) (gpucore.VertexLayout, error) {
	return m.vertexLayouts.GetOrCreate(shader, func() (gpucore.VertexLayout, error) {
		elems, ok := m.cfg.Strides[shader]
		if !ok || len(elems) == 0 {
			return gpucore.VertexLayout{}, fmt.Errorf("%w: %q", ErrUnknownShader, shader)
		}
		out := make([]gpucore.VertexElement, len(elems))
		for i, e := range elems {
			if e.Count <= 0 || e.Name == "" {
				return gpucore.VertexLayout{}, fmt.Errorf("%w: shader %q element %d", ErrInvalidDescriptor, shader, i)
			}
			if e.Type == 0 {
				e.Type = gpucore.ElementFloat32
			}
			out[i] = e
		}
		return gpucore.VertexLayout{Elements: out, StepMode: gpucore.StepVertex}, nil
	})
}
