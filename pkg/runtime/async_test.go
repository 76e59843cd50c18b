package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultAsyncRuntimeRunsJobsInOrder(t *testing.T) {
	rt := NewDefaultAsyncRuntime()
	var order []string
	rt.ScheduleMicrotask(func() {
		order = append(order, "a")
		rt.ScheduleMicrotask(func() { order = append(order, "c") })
	})
	rt.ScheduleMicrotask(func() { order = append(order, "b") })
	assert.Equal(t, 2, rt.Pending())

	assert.True(t, rt.RunUntilIdle())
	assert.Equal(t, []string{"a", "b"}, order, "jobs enqueued while running wait for the next round")
	assert.Equal(t, 1, rt.Pending())

	assert.True(t, rt.RunUntilIdle())
	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, 0, rt.Pending())
	assert.False(t, rt.RunUntilIdle())
}
