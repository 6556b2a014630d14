package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var items = []float32{0.4, 9, 0.001, 0.0534, 0.234, 2.03, 2.042, 2.532, 1.0009, 0.329, 0.193, 0.999, 0.020391, 2.0991, 1.203, 10.03, 1.039, 1.0008, 5.029, 0.789}

func TestMaxValidation(t *testing.T) {
	h := NewMax(len(items))
	for k, v := range items {
		h.Push(Item{Node: uint32(k), Distance: v})
	}

	top, ok := h.Top()
	assert.True(t, ok)
	assert.Equal(t, float32(10.03), top.Distance)
	assert.Equal(t, uint32(15), top.Node)
	assert.Equal(t, 20, h.Len())

	for h.Len() > 10 {
		h.Pop()
	}

	top, _ = h.Top()
	assert.Equal(t, float32(1.0008), top.Distance)
	assert.Equal(t, uint32(17), top.Node)

	for h.Len() > 1 {
		h.Pop()
	}
	top, _ = h.Top()
	assert.Equal(t, uint32(2), top.Node)

	h.Pop()
	_, ok = h.Pop()
	assert.False(t, ok)
}

func TestMinValidation(t *testing.T) {
	h := NewMin(len(items))
	for k, v := range items {
		h.Push(Item{Node: uint32(k), Distance: v})
	}

	top, _ := h.Top()
	assert.Equal(t, float32(0.001), top.Distance)
	assert.Equal(t, uint32(2), top.Node)

	prev := float32(-1)
	for h.Len() > 0 {
		it, _ := h.Pop()
		assert.GreaterOrEqual(t, it.Distance, prev)
		prev = it.Distance
	}
}

func TestDrainAscending(t *testing.T) {
	for _, h := range []*PriorityQueue{NewMin(4), NewMax(4)} {
		for k, v := range items {
			h.Push(Item{Node: uint32(k), Distance: v})
		}
		out := h.Drain()
		assert.Len(t, out, len(items))
		assert.Equal(t, 0, h.Len())
		for i := 1; i < len(out); i++ {
			assert.LessOrEqual(t, out[i-1].Distance, out[i].Distance)
		}
	}
}

func TestTieBreakByNode(t *testing.T) {
	h := NewMin(3)
	h.Push(Item{Node: 7, Distance: 1})
	h.Push(Item{Node: 3, Distance: 1})
	h.Push(Item{Node: 5, Distance: 1})

	out := h.Drain()
	assert.Equal(t, []uint32{3, 5, 7}, []uint32{out[0].Node, out[1].Node, out[2].Node})
}
