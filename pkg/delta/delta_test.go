package delta

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDelta_DeleteOffsetsDeduplicates(t *testing.T) {
	d := New[string]()
	assert.True(t, d.Empty())

	d.DeleteOffsets(3, 1)
	d.DeleteOffsets(1, 7, 3)
	assert.Equal(t, []int{3, 1, 7}, d.Delete)
	assert.False(t, d.Empty())
}

func TestDelta_DeleteOffsetsAfterDecode(t *testing.T) {
	d := &Delta[string]{Delete: []int{4}}
	d.DeleteOffsets(4, 5)
	assert.Equal(t, []int{4, 5}, d.Delete)
}

func TestDelta_AddRowsKeepsOrder(t *testing.T) {
	d := New[string]()
	d.AddRows("a", "b")
	d.AddRows("c")
	assert.Equal(t, []string{"a", "b", "c"}, d.Add)
}
