//go:build linux

package affinity_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-netevent/affinity"
)

func TestPin(t *testing.T) {
	var allowed unix.CPUSet
	require.NoError(t, unix.SchedGetaffinity(0, &allowed))
	cpu := -1
	for i := 0; i < 1024; i++ {
		if allowed.IsSet(i) {
			cpu = i
			break
		}
	}
	require.GreaterOrEqual(t, cpu, 0)

	unpin, err := affinity.Pin(cpu)
	require.NoError(t, err)
	var now unix.CPUSet
	require.NoError(t, unix.SchedGetaffinity(0, &now))
	assert.Equal(t, 1, now.Count())
	assert.True(t, now.IsSet(cpu))
	unpin()

	require.NoError(t, unix.SchedGetaffinity(0, &now))
	assert.Equal(t, allowed.Count(), now.Count())
}

func TestPin_RejectsUnknownCPU(t *testing.T) {
	unpin, err := affinity.Pin(-1)
	assert.Error(t, err)
	unpin()
}
