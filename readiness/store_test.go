package readiness_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-netevent/api"
	"github.com/momentics/hioload-netevent/readiness"
)

func TestStore_AllocateSequentialTokens(t *testing.T) {
	s := readiness.NewStore()
	for want := 0; want < 3; want++ {
		tok, f, err := s.Allocate()
		require.NoError(t, err)
		assert.Equal(t, api.Token(want), tok)
		assert.Same(t, f, s.Get(tok))
		assert.False(t, f.Readable())
		assert.False(t, f.Writable())
	}
	assert.Equal(t, 3, s.Len())
	assert.Nil(t, s.Get(3))
	assert.Nil(t, s.Get(api.WakeToken))
}

func TestStore_SealRejectsAllocate(t *testing.T) {
	s := readiness.NewStore()
	s.Seal()
	_, _, err := s.Allocate()
	require.Error(t, err)
	assert.Equal(t, api.ErrCodeSetup, api.CodeOf(err))
}

func TestFlags_SetAndClear(t *testing.T) {
	var f readiness.Flags
	f.Set(true, true)
	snap := f.Load()
	assert.True(t, snap.Readable())
	assert.True(t, snap.Writable())

	assert.True(t, f.ClearWritable(snap))
	assert.True(t, f.Readable())
	assert.False(t, f.Writable())
	assert.True(t, f.ClearReadable(snap), "a clear does not start a new epoch")
	assert.False(t, f.Readable())
}

func TestFlags_ClearLosesToNewerNotification(t *testing.T) {
	var f readiness.Flags
	f.Set(false, true)
	seen := f.Load()

	// the poller reports writable again between the would-block and the clear
	f.Set(false, true)
	assert.False(t, f.ClearWritable(seen))
	assert.True(t, f.Writable())

	assert.True(t, f.ClearWritable(f.Load()))
	assert.False(t, f.Writable())
}

func TestFlags_CrossGoroutineVisibility(t *testing.T) {
	s := readiness.NewStore()
	tok, _, err := s.Allocate()
	require.NoError(t, err)
	s.Seal()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.Get(tok).Set(true, false)
	}()
	wg.Wait()

	f := s.Get(tok)
	assert.True(t, f.Readable())
	assert.False(t, f.Writable())
}
