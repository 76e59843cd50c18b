package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestDrainMicrotasksRunsJobsEnqueuedByJobs(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	vm := New(Options{Logger: zap.New(core)})

	var order []int
	vm.EnqueueJob(func() {
		order = append(order, 1)
		vm.EnqueueJob(func() { order = append(order, 3) })
	})
	vm.EnqueueJob(func() { order = append(order, 2) })
	vm.DrainMicrotasks()

	assert.Equal(t, []int{1, 2, 3}, order)
	entries := logs.FilterMessage("drained microtasks").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.EqualValues(t, 2, fields["rounds"])
	assert.EqualValues(t, 3, fields["jobs"])

	vm.DrainMicrotasks()
	assert.Equal(t, 1, logs.FilterMessage("drained microtasks").Len(), "an idle drain logs nothing")
}
