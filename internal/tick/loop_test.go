package tick_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-netevent/internal/tick"
)

type recorder struct {
	mu    sync.Mutex
	calls    []string
	fail     error
	recvFail error
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	r.calls = append(r.calls, s)
	r.mu.Unlock()
}

func (r *recorder) Receive() error { r.add("receive"); return r.recvFail }

func (r *recorder) Dispatch() error { r.add("dispatch"); return r.fail }

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func TestStep_StageOrder(t *testing.T) {
	r := &recorder{}
	l := tick.New(r, time.Hour)
	require.NoError(t, l.AddHook(tick.PreDispatch, func() error { r.add("pre"); return nil }))
	require.NoError(t, l.AddHook(tick.PostReceive, func() error { r.add("post"); return nil }))
	require.Error(t, l.AddHook(tick.Receive, func() error { return nil }))
	require.Error(t, l.AddHook(tick.Dispatch, func() error { return nil }))

	require.NoError(t, l.Step())
	assert.Equal(t, []string{"receive", "post", "pre", "dispatch"}, r.snapshot())
	assert.Equal(t, uint64(1), l.Ticks())
}

func TestStep_HookErrorSkipsDispatch(t *testing.T) {
	r := &recorder{}
	l := tick.New(r, time.Hour)
	boom := errors.New("boom")
	require.NoError(t, l.AddHook(tick.PostReceive, func() error { return boom }))

	err := l.Step()
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "post_receive")
	assert.Equal(t, []string{"receive"}, r.snapshot())
	assert.Zero(t, l.Ticks())
}

func TestStep_ReceiveErrorStillDispatches(t *testing.T) {
	failed := errors.New("socket a failed")
	r := &recorder{recvFail: failed}
	l := tick.New(r, time.Hour)
	require.NoError(t, l.AddHook(tick.PreDispatch, func() error { r.add("pre"); return nil }))

	err := l.Step()
	assert.ErrorIs(t, err, failed)
	assert.Contains(t, err.Error(), "receive")
	assert.Equal(t, []string{"receive", "pre", "dispatch"}, r.snapshot())
	assert.Equal(t, uint64(1), l.Ticks())
}

func TestRun_StopWaits(t *testing.T) {
	r := &recorder{}
	l := tick.New(r, time.Millisecond)
	errc := make(chan error, 1)
	go func() { errc <- l.Run(context.Background()) }()

	require.Eventually(t, func() bool { return l.Ticks() >= 3 }, 2*time.Second, time.Millisecond)
	l.Stop()
	require.NoError(t, <-errc)
	assert.Error(t, l.AddHook(tick.PreDispatch, func() error { return nil }), "running loops take no hooks")
	l.Stop()
}

func TestRun_FatalStageEndsLoop(t *testing.T) {
	fatal := errors.New("socket failed")
	r := &recorder{fail: fatal}
	l := tick.New(r, time.Millisecond)

	err := l.Run(context.Background())
	assert.ErrorIs(t, err, fatal)
	l.Stop()
}

func TestRun_ContextCancel(t *testing.T) {
	l := tick.New(&recorder{}, time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, l.Run(ctx))
	assert.Error(t, l.Run(ctx), "single run")
}

func TestStop_BeforeRun(t *testing.T) {
	r := &recorder{}
	l := tick.New(r, time.Nanosecond)
	l.Stop()
	l.Stop()

	assert.NoError(t, l.Run(context.Background()))
	assert.Empty(t, r.snapshot(), "a stopped loop never ticks")
	assert.Zero(t, l.Ticks())
	assert.Error(t, l.AddHook(tick.PreDispatch, func() error { return nil }))
}
