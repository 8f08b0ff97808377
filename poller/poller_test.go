package poller_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-netevent/api"
	"github.com/momentics/hioload-netevent/fake"
	"github.com/momentics/hioload-netevent/poller"
	"github.com/momentics/hioload-netevent/readiness"
)

func setup(t *testing.T, sockets int) (*fake.Reactor, *readiness.Store) {
	t.Helper()
	r := fake.NewReactor()
	s := readiness.NewStore()
	for i := 0; i < sockets; i++ {
		_, _, err := s.Allocate()
		require.NoError(t, err)
	}
	s.Seal()
	return r, s
}

func start(p *poller.Poller, ctx context.Context) <-chan error {
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(ctx) }()
	return errCh
}

func TestPoller_UpdatesFlags(t *testing.T) {
	r, s := setup(t, 2)
	wakes := make(chan int, 8)
	p := poller.New(r, s, poller.WithWakeHook(func(n int) { wakes <- n }))
	errCh := start(p, context.Background())

	r.Notify(
		api.Event{Token: 0, Writable: true},
		api.Event{Token: 1, Readable: true, Writable: true},
		api.Event{Token: 99, Readable: true}, // unknown tokens are ignored
	)
	select {
	case n := <-wakes:
		assert.Equal(t, 3, n)
	case <-time.After(5 * time.Second):
		t.Fatal("poller did not process notification")
	}

	assert.False(t, s.Get(0).Readable())
	assert.True(t, s.Get(0).Writable())
	assert.True(t, s.Get(1).Readable())
	assert.True(t, s.Get(1).Writable())

	// later notifications overwrite with the reported values
	r.Notify(api.Event{Token: 1, Readable: false, Writable: true})
	<-wakes
	assert.False(t, s.Get(1).Readable())

	require.NoError(t, p.Close())
	require.NoError(t, <-errCh)
	<-p.Done()
	assert.NoError(t, p.Err())
}

func TestPoller_ErrorEventMarksBothReady(t *testing.T) {
	r, s := setup(t, 1)
	wakes := make(chan int, 1)
	p := poller.New(r, s, poller.WithWakeHook(func(n int) { wakes <- n }))
	errCh := start(p, context.Background())

	r.Notify(api.Event{Token: 0, Error: true})
	<-wakes
	assert.True(t, s.Get(0).Readable())
	assert.True(t, s.Get(0).Writable())

	require.NoError(t, p.Close())
	require.NoError(t, <-errCh)
}

func TestPoller_ContextCancelStops(t *testing.T) {
	r, s := setup(t, 1)
	p := poller.New(r, s)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := start(p, ctx)
	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("poller ignored context cancellation")
	}
}

func TestPoller_FatalWaitError(t *testing.T) {
	r, s := setup(t, 1)
	p := poller.New(r, s)
	errCh := start(p, context.Background())

	boom := errors.New("ebadf")
	r.Fail(boom)

	var err error
	select {
	case err = <-errCh:
	case <-time.After(5 * time.Second):
		t.Fatal("poller swallowed fatal error")
	}
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, api.ErrCodeFatalIO, api.CodeOf(err))
	assert.True(t, api.IsFatal(err))
	<-p.Done()
	assert.Equal(t, err, p.Err())
}

func TestPoller_RunTwice(t *testing.T) {
	r, s := setup(t, 1)
	wakes := make(chan int, 1)
	p := poller.New(r, s, poller.WithWakeHook(func(n int) { wakes <- n }))
	errCh := start(p, context.Background())
	r.Notify(api.Event{Token: 0, Writable: true})
	<-wakes // first Run is live

	err := p.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, api.ErrCodeSetup, api.CodeOf(err))

	require.NoError(t, p.Close())
	require.NoError(t, <-errCh)
}

func TestPoller_PinnedRunStillStops(t *testing.T) {
	r, s := setup(t, 1)
	// cpu 0 may be outside the allowed set; pinning failure only warns
	p := poller.New(r, s, poller.WithCPU(0))
	errCh := start(p, context.Background())

	r.Notify(api.Event{Token: 0, Readable: true})
	require.Eventually(t, func() bool { return s.Get(0).Readable() }, 5*time.Second, time.Millisecond)
	require.NoError(t, p.Close())
	require.NoError(t, <-errCh)
}
