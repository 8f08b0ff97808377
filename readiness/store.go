// File: readiness/store.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package readiness holds the per-socket readiness flags shared between the
// poller goroutine (sets them) and the tick goroutine (reads them, clears
// them on would-block).
//
// Flags are approximations of OS state. A stale true is corrected lazily
// when the next I/O call would block; nothing polls the socket to refresh
// them. All access is through atomics, never a lock.
package readiness

import (
	"sync/atomic"

	"github.com/momentics/hioload-netevent/api"
)

const (
	readableBit = 1 << 0
	writableBit = 1 << 1
	epochOne    = 1 << 2
)

// Snapshot is one observation of a socket's flags. It is passed back to
// the Clear methods so a clear never overwrites a newer notification.
type Snapshot uint64

func (s Snapshot) Readable() bool { return s&readableBit != 0 }
func (s Snapshot) Writable() bool { return s&writableBit != 0 }

// Flags records the last reported readiness of one socket.
// Both start false (unknown) until the poller reports otherwise.
//
// The two flags share one word with an epoch that every poller update
// bumps. An edge reported between a would-block and the matching clear
// would otherwise be lost for good under edge-triggered notification.
type Flags struct {
	state atomic.Uint64
}

// Load returns the current flags.
func (f *Flags) Load() Snapshot { return Snapshot(f.state.Load()) }

func (f *Flags) Readable() bool { return f.Load().Readable() }
func (f *Flags) Writable() bool { return f.Load().Writable() }

// Set stores both flags from one notification and starts a new epoch.
func (f *Flags) Set(readable, writable bool) {
	var bits uint64
	if readable {
		bits |= readableBit
	}
	if writable {
		bits |= writableBit
	}
	for {
		old := f.state.Load()
		next := (old&^(readableBit|writableBit) + epochOne) | bits
		if f.state.CompareAndSwap(old, next) {
			return
		}
	}
}

// ClearReadable drops the readable flag unless the poller has reported
// since seen was loaded. It reports whether the flag was cleared.
func (f *Flags) ClearReadable(seen Snapshot) bool {
	return f.clear(seen, readableBit)
}

// ClearWritable is ClearReadable for the writable flag.
func (f *Flags) ClearWritable(seen Snapshot) bool {
	return f.clear(seen, writableBit)
}

func (f *Flags) clear(seen Snapshot, bit uint64) bool {
	for {
		old := f.state.Load()
		if old&^(readableBit|writableBit) != uint64(seen)&^(readableBit|writableBit) {
			return false
		}
		if f.state.CompareAndSwap(old, old&^bit) {
			return true
		}
	}
}

// Store maps tokens to flags. Tokens are allocated during setup; once
// Seal is called the map is read-only and safe to share without locks.
type Store struct {
	flags  []*Flags
	sealed atomic.Bool
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Allocate reserves the next token and its flags. Tokens count up from
// zero and are never reused for the life of the store.
func (s *Store) Allocate() (api.Token, *Flags, error) {
	if s.sealed.Load() {
		return 0, nil, api.NewError(api.ErrCodeSetup, "readiness store sealed")
	}
	if len(s.flags) >= int(api.WakeToken) {
		return 0, nil, api.NewError(api.ErrCodeSetup, "readiness tokens exhausted")
	}
	tok := api.Token(len(s.flags))
	f := new(Flags)
	s.flags = append(s.flags, f)
	return tok, f, nil
}

// Seal ends setup. Allocate fails afterwards.
func (s *Store) Seal() {
	s.sealed.Store(true)
}

// Get returns the flags for tok, or nil if tok was never allocated.
func (s *Store) Get(tok api.Token) *Flags {
	if int64(tok) >= int64(len(s.flags)) {
		return nil
	}
	return s.flags[tok]
}

// Len returns the number of allocated tokens.
func (s *Store) Len() int {
	return len(s.flags)
}
