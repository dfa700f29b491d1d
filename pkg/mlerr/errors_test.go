package mlerr_test

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/meshlink/pkg/mlerr"
)

func TestGeometryLoadErrorUnwrap(t *testing.T) {
	err := fmt.Errorf("analytic: import: %w", &mlerr.GeometryLoadError{Filename: "a.mlg", Err: fs.ErrNotExist})

	assert.ErrorIs(t, err, mlerr.ErrGeometryLoad)
	assert.ErrorIs(t, err, fs.ErrNotExist)

	var gle *mlerr.GeometryLoadError
	require.True(t, errors.As(err, &gle))
	assert.Equal(t, "a.mlg", gle.Filename)
	assert.Contains(t, err.Error(), "a.mlg")
}

func TestGeometryLoadErrorWithoutCause(t *testing.T) {
	err := &mlerr.GeometryLoadError{Filename: "b.mlg"}
	assert.ErrorIs(t, err, mlerr.ErrGeometryLoad)
	assert.Equal(t, "geometry load error: b.mlg", err.Error())
}

func TestKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"nil", nil, nil},
		{"plain", errors.New("boom"), nil},
		{"wrapped domain", fmt.Errorf("eval: %w", mlerr.ErrDomain), mlerr.ErrDomain},
		{"geometry load", &mlerr.GeometryLoadError{Filename: "x"}, mlerr.ErrGeometryLoad},
		{"double wrapped", fmt.Errorf("a: %w", fmt.Errorf("b: %w", mlerr.ErrConfig)), mlerr.ErrConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mlerr.Kind(tt.err))
		})
	}
}
