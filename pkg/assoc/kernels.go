package assoc

import (
	"context"
	"fmt"
	"slices"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/chazu/meshlink/pkg/kernel"
	"github.com/chazu/meshlink/pkg/mlerr"
)

const tracerName = "pkg/assoc"

// RegisterKernel makes k available under k.Name(). The first kernel
// registered becomes active. The container shares k; it does not own it,
// but a kernel implementing kernel.Holder is held until it is
// unregistered or the container is released.
func (c *Container) RegisterKernel(k kernel.Kernel) error {
	if k == nil {
		return fmt.Errorf("assoc: register kernel: nil kernel: %w", mlerr.ErrInvalidHandle)
	}
	name := k.Name()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return fmt.Errorf("assoc: register kernel %q: container released: %w", name, mlerr.ErrInvalidState)
	}
	if name == "" {
		return fmt.Errorf("assoc: register kernel: empty name: %w", mlerr.ErrConfig)
	}
	if _, dup := c.kernels[name]; dup {
		return fmt.Errorf("assoc: register kernel %q: already registered: %w", name, mlerr.ErrConfig)
	}
	if h, ok := k.(kernel.Holder); ok {
		h.Hold()
	}
	c.kernels[name] = k
	c.kernelOrder = append(c.kernelOrder, name)
	if c.active == "" {
		c.active = name
	}
	c.logger.Debug("kernel registered", "kernel", name, "active", c.active == name)
	return nil
}

// SetActiveKernel selects a registered kernel by name.
func (c *Container) SetActiveKernel(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return fmt.Errorf("assoc: set active kernel: container released: %w", mlerr.ErrInvalidState)
	}
	if _, ok := c.kernels[name]; !ok {
		return fmt.Errorf("assoc: set active kernel: %q not registered: %w", name, mlerr.ErrConfig)
	}
	c.active = name
	return nil
}

// ActiveKernel returns the active kernel.
func (c *Container) ActiveKernel() (kernel.Kernel, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.released {
		return nil, fmt.Errorf("assoc: active kernel: container released: %w", mlerr.ErrInvalidState)
	}
	if c.active == "" {
		return nil, fmt.Errorf("assoc: no active kernel: %w", mlerr.ErrConfig)
	}
	return c.kernels[c.active], nil
}

// KernelNames returns registered kernel names in registration order.
func (c *Container) KernelNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.kernelOrder)
}

// ReleaseKernel unregisters the named kernel and releases it. The active
// kernel of a live container cannot be released.
func (c *Container) ReleaseKernel(name string) error {
	c.mu.Lock()
	k, ok := c.kernels[name]
	switch {
	case !ok:
		c.mu.Unlock()
		return fmt.Errorf("assoc: release kernel: %q not registered: %w", name, mlerr.ErrConfig)
	case name == c.active:
		c.mu.Unlock()
		return fmt.Errorf("assoc: release kernel: %q is active: %w", name, mlerr.ErrInvalidState)
	}
	delete(c.kernels, name)
	c.kernelOrder = slices.DeleteFunc(c.kernelOrder, func(n string) bool { return n == name })
	c.mu.Unlock()
	unhold(k)
	return k.Release()
}

func unhold(k kernel.Kernel) {
	if h, ok := k.(kernel.Holder); ok {
		h.Unhold()
	}
}

// ImportGeometry loads the container's geometry files into the active
// kernel.
func (c *Container) ImportGeometry(ctx context.Context) (err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "assoc.ImportGeometry")
	defer span.End()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	k, err := c.ActiveKernel()
	if err != nil {
		return err
	}
	files := c.GeometryFiles()
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.Path
	}
	if err := k.ImportGeometryFiles(ctx, paths); err != nil {
		return fmt.Errorf("assoc: import geometry: %w", err)
	}
	c.logger.Info("geometry imported", "kernel", k.Name(), "files", len(paths))
	return nil
}
