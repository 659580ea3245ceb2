package container

import (
	"context"
	"fmt"
	"sync"

	apperrors "github.com/fgdb2gpkg/fgdb2gpkg/internal/errors"
	"github.com/fgdb2gpkg/fgdb2gpkg/pkg/types"
)

// WriteCall records one write made against a Memory container.
type WriteCall struct {
	Path     string
	Layer    string
	Features bool
	Options  WriteOptions
}

// Memory is an in-memory container keyed by path. It serves as both source
// and destination and is used for dry runs and tests.
type Memory struct {
	mu         sync.Mutex
	containers map[string]*memContainer

	// FailRead and FailWrite inject errors per layer name.
	FailRead  map[string]error
	FailWrite map[string]error

	calls []WriteCall
}

type memContainer struct {
	order  []string
	layers map[string]*types.Layer
}

// NewMemory creates an empty in-memory container set.
func NewMemory() *Memory {
	return &Memory{
		containers: make(map[string]*memContainer),
		FailRead:   make(map[string]error),
		FailWrite:  make(map[string]error),
	}
}

// Put stores layers under path in the given order, replacing any existing
// container. Duplicate names are kept in the order list.
func (m *Memory) Put(path string, layers ...*types.Layer) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := &memContainer{layers: make(map[string]*types.Layer)}
	for _, l := range layers {
		c.order = append(c.order, l.Name)
		if _, ok := c.layers[l.Name]; !ok {
			c.layers[l.Name] = cloneLayer(l)
		}
	}
	m.containers[path] = c
}

// Exists reports whether a container is stored under path.
func (m *Memory) Exists(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.containers[path]
	return ok
}

// Remove deletes the container stored under path.
func (m *Memory) Remove(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.containers, path)
	return nil
}

// Calls returns the writes made so far.
func (m *Memory) Calls() []WriteCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]WriteCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// ListLayers implements Lister.
func (m *Memory) ListLayers(ctx context.Context, path string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.containers[path]
	if !ok {
		return nil, apperrors.NewContainerUnreadable(apperrors.ErrCategorySource, path, fmt.Errorf("no container"))
	}
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out, nil
}

// ReadLayer implements Reader.
func (m *Memory) ReadLayer(ctx context.Context, path, name string) (*types.Layer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.FailRead[name]; err != nil {
		return nil, err
	}
	c, ok := m.containers[path]
	if !ok {
		return nil, apperrors.NewContainerUnreadable(apperrors.ErrCategorySource, path, fmt.Errorf("no container"))
	}
	l, ok := c.layers[name]
	if !ok {
		return nil, fmt.Errorf("memory: layer %q not found in %s", name, path)
	}
	return cloneLayer(l), nil
}

// WriteAttributes implements Writer.
func (m *Memory) WriteAttributes(ctx context.Context, path string, layer *types.Layer) error {
	return m.write(ctx, path, layer, false, nil)
}

// WriteFeatures implements Writer.
func (m *Memory) WriteFeatures(ctx context.Context, path string, layer *types.Layer, opts WriteOptions) error {
	return m.write(ctx, path, layer, true, opts)
}

// ValidateOptions accepts any options.
func (m *Memory) ValidateOptions(WriteOptions) error {
	return nil
}

func (m *Memory) write(ctx context.Context, path string, layer *types.Layer, features bool, opts WriteOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, WriteCall{Path: path, Layer: layer.Name, Features: features, Options: opts})
	if err := m.FailWrite[layer.Name]; err != nil {
		return err
	}

	c, ok := m.containers[path]
	if !ok {
		c = &memContainer{layers: make(map[string]*types.Layer)}
		m.containers[path] = c
	}
	if existing, ok := c.layers[layer.Name]; ok {
		existing.Records = append(existing.Records, cloneLayer(layer).Records...)
		return nil
	}
	c.order = append(c.order, layer.Name)
	c.layers[layer.Name] = cloneLayer(layer)
	return nil
}

func cloneLayer(l *types.Layer) *types.Layer {
	cp := &types.Layer{
		Name:    l.Name,
		Fields:  append([]types.FieldDef(nil), l.Fields...),
		Records: make([]types.Record, len(l.Records)),
	}
	if l.Geometry != nil {
		g := *l.Geometry
		cp.Geometry = &g
	}
	for i, r := range l.Records {
		cp.Records[i] = types.Record{
			Values:   append([]interface{}(nil), r.Values...),
			Geometry: append([]byte(nil), r.Geometry...),
		}
		if r.Geometry == nil {
			cp.Records[i].Geometry = nil
		}
	}
	return cp
}
