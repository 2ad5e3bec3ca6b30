package gpio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopRequest struct{ closed bool }

func (r *noopRequest) Close() error {
	r.closed = true
	return nil
}

func TestPinRegistryStoreLookupDelete(t *testing.T) {
	r := newPinRegistry()

	_, ok := r.lookup(1)
	assert.False(t, ok)

	h := &pinHandle{lineOffset: 5, settings: DefaultPinSettings(), request: &noopRequest{}}
	r.store(1, h)

	got, ok := r.lookup(1)
	require.True(t, ok)
	assert.Same(t, h, got)

	deleted, ok := r.delete(1)
	require.True(t, ok)
	assert.Same(t, h, deleted)

	_, ok = r.lookup(1)
	assert.False(t, ok)
}

func TestPinRegistryDeleteUnknownPin(t *testing.T) {
	r := newPinRegistry()
	_, ok := r.delete(42)
	assert.False(t, ok)
}
