package cs

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSmallMapPromotesPastThreshold(t *testing.T) {
	var m smallMap[string, int]

	for i := 0; i < smallMapThreshold; i++ {
		m.Set(fmt.Sprintf("k%d", i), i)
	}
	assert.Nil(t, m.m, "should still be slice-backed at the threshold")

	m.Set("overflow", 999)
	assert.NotNil(t, m.m, "should have promoted to a hashed map past the threshold")

	for i := 0; i < smallMapThreshold; i++ {
		v, ok := m.Get(fmt.Sprintf("k%d", i))
		assert.True(t, ok)
		assert.Equal(t, i, v)
	}
	v, ok := m.Get("overflow")
	assert.True(t, ok)
	assert.Equal(t, 999, v)

	_, ok = m.Get("missing")
	assert.False(t, ok)
}

func TestSmallMapSetOverwritesExistingKey(t *testing.T) {
	var m smallMap[string, int]
	m.Set("a", 1)
	m.Set("a", 2)
	v, ok := m.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 2, v)
	assert.Len(t, m.Values(), 1)
}
