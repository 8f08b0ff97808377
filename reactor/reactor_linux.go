//go:build linux
// +build linux

// File: reactor/reactor_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux epoll(7)-based reactor implementation and factory.

package reactor

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-netevent/api"
)

// linuxReactor is an edge-triggered epoll reactor. The registration token
// travels in the epoll user data; an eventfd provides the wake source.
type linuxReactor struct {
	epfd   int
	wakefd int
	raw    []unix.EpollEvent

	closeOnce sync.Once
}

// New constructs a new platform-specific Reactor for Linux.
func New() (api.Reactor, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	wakefd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, fmt.Errorf("eventfd create: %w", err)
	}
	ev := &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     tokenData(api.WakeToken),
	}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakefd, ev); err != nil {
		_ = unix.Close(wakefd)
		_ = unix.Close(epfd)
		return nil, fmt.Errorf("epoll ctl add wake: %w", err)
	}
	return &linuxReactor{epfd: epfd, wakefd: wakefd}, nil
}

// Register adds fd to epoll for read and write readiness.
func (r *linuxReactor) Register(fd uintptr, token api.Token) error {
	if token == api.WakeToken {
		return fmt.Errorf("register fd %d: %w: token reserved", fd, api.ErrInvalidArgument)
	}
	ev := &unix.EpollEvent{
		Events: unix.EPOLLIN | unix.EPOLLOUT | unix.EPOLLET,
		Fd:     tokenData(token),
	}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, int(fd), ev); err != nil {
		return fmt.Errorf("epoll ctl add: %w", err)
	}
	return nil
}

// Wait blocks for epoll events and translates them into events.
func (r *linuxReactor) Wait(events []api.Event) (int, error) {
	if len(events) == 0 {
		return 0, fmt.Errorf("reactor wait: %w: empty event buffer", api.ErrInvalidArgument)
	}
	if cap(r.raw) < len(events) {
		r.raw = make([]unix.EpollEvent, len(events))
	}
	raw := r.raw[:len(events)]

	n, err := unix.EpollWait(r.epfd, raw, -1)
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return 0, nil // interrupted by signal, normal
		}
		return 0, fmt.Errorf("epoll wait: %w", err)
	}
	for i := 0; i < n; i++ {
		tok := dataToken(raw[i].Fd)
		if tok == api.WakeToken {
			r.drainWake()
		}
		mask := raw[i].Events
		events[i] = api.Event{
			Token:    tok,
			Readable: mask&unix.EPOLLIN != 0,
			Writable: mask&unix.EPOLLOUT != 0,
			Error:    mask&(unix.EPOLLERR|unix.EPOLLHUP) != 0,
		}
	}
	return n, nil
}

// Wake makes a blocked Wait return with a WakeToken event.
func (r *linuxReactor) Wake() error {
	var one [8]byte
	binary.NativeEndian.PutUint64(one[:], 1)
	if _, err := unix.Write(r.wakefd, one[:]); err != nil && !errors.Is(err, unix.EAGAIN) {
		return fmt.Errorf("eventfd write: %w", err)
	}
	return nil
}

func (r *linuxReactor) drainWake() {
	var buf [8]byte
	_, _ = unix.Read(r.wakefd, buf[:])
}

// Close closes the epoll instance and the wake eventfd.
func (r *linuxReactor) Close() error {
	var err error
	r.closeOnce.Do(func() {
		err = errors.Join(unix.Close(r.wakefd), unix.Close(r.epfd))
	})
	return err
}

// The token travels in the low 32 bits of the epoll user data.
func tokenData(tok api.Token) int32 { return int32(uint32(tok)) }

func dataToken(fd int32) api.Token { return api.Token(uint32(fd)) }
