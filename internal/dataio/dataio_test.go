package dataio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFixedBufferMapReturnsSuffixView(t *testing.T) {
	buf := NewFixedBuffer([]byte("hello world"))
	view, ok := buf.Map(6)
	assert.True(t, ok)
	assert.Equal(t, "world", string(view))
}

func TestFixedBufferMapRejectsOutOfRangeOffset(t *testing.T) {
	buf := NewFixedBuffer([]byte("hello"))
	_, ok := buf.Map(6)
	assert.False(t, ok)
	_, ok = buf.Map(-1)
	assert.False(t, ok)
}

func TestGrowingBufferMapReflectsWrites(t *testing.T) {
	buf := NewGrowingBuffer(4)
	buf.Write([]byte("hello world"))
	view, ok := buf.Map(6)
	assert.True(t, ok)
	assert.Equal(t, "world", string(view))
}
