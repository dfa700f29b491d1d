// Package mlerr defines the error kinds shared by the MeshLink packages.
// Operations wrap one of these sentinels so callers can classify a failure
// with errors.Is without parsing messages.
package mlerr

import (
	"errors"
	"fmt"
)

var (
	ErrLoad               = errors.New("load error")
	ErrNotFound           = errors.New("not found")
	ErrConfig             = errors.New("config error")
	ErrGeometryLoad       = errors.New("geometry load error")
	ErrInvalidHandle      = errors.New("invalid handle")
	ErrDomain             = errors.New("parametric coordinates outside entity domain")
	ErrDegenerateGeometry = errors.New("degenerate geometry")
	ErrMissingAssociation = errors.New("missing geometry association")
	ErrInvalidState       = errors.New("invalid state")
	ErrInternal           = errors.New("internal error")
)

// GeometryLoadError reports the geometry file that could not be imported.
type GeometryLoadError struct {
	Filename string
	Err      error
}

func (e *GeometryLoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("geometry load error: %s: %v", e.Filename, e.Err)
	}
	return fmt.Sprintf("geometry load error: %s", e.Filename)
}

// Unwrap exposes both the ErrGeometryLoad kind and the underlying cause.
func (e *GeometryLoadError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrGeometryLoad}
	}
	return []error{ErrGeometryLoad, e.Err}
}

// Kind returns the sentinel err wraps, or nil if it wraps none of them.
func Kind(err error) error {
	for _, k := range []error{
		ErrLoad, ErrNotFound, ErrConfig, ErrGeometryLoad, ErrInvalidHandle,
		ErrDomain, ErrDegenerateGeometry, ErrMissingAssociation, ErrInvalidState,
		ErrInternal,
	} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
