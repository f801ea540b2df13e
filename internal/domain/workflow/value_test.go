package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueGetTraversesNestedMaps(t *testing.T) {
	v := NewValue(map[string]interface{}{
		"a": map[string]interface{}{
			"b": map[string]interface{}{
				"c": 42,
			},
		},
	})

	got, ok := v.Get([]string{"a", "b", "c"})
	require.True(t, ok)
	assert.Equal(t, 42, got.Raw())
}

func TestValueGetMissingSegmentFails(t *testing.T) {
	v := NewValue(map[string]interface{}{"a": 1})
	_, ok := v.Get([]string{"a", "b"})
	assert.False(t, ok)
}

func TestValueGetEmptyPathReturnsSelf(t *testing.T) {
	v := NewValue("leaf")
	got, ok := v.Get(nil)
	require.True(t, ok)
	assert.Equal(t, "leaf", got.Raw())
}

func TestTruthy(t *testing.T) {
	assert.False(t, Truthy(nil))
	assert.False(t, Truthy(false))
	assert.True(t, Truthy(true))
	assert.False(t, Truthy(""))
	assert.False(t, Truthy("0"))
	assert.False(t, Truthy("false"))
	assert.False(t, Truthy("FALSE"))
	assert.True(t, Truthy("anything else"))
	assert.False(t, Truthy(0))
	assert.True(t, Truthy(1))
	assert.False(t, Truthy(0.0))
}

func TestIsEmpty(t *testing.T) {
	assert.True(t, IsEmpty(nil))
	assert.True(t, IsEmpty(""))
	assert.False(t, IsEmpty("x"))
	assert.False(t, IsEmpty(0))
}
