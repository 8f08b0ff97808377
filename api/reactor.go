// File: api/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Defines the abstract interface for readiness-notification reactors
// used to multiplex sockets across poll-mode backends (epoll, kqueue, etc.)

package api

// Event encapsulates the result of an OS-level readiness notification.
type Event struct {
	Token    Token // token the descriptor was registered under
	Readable bool
	Writable bool
	Error    bool // error or hangup condition reported by the OS
}

// Reactor defines the common interface for a readiness notifier.
type Reactor interface {
	// Register must associate a socket descriptor with token, watching
	// for both read and write readiness.
	Register(fd uintptr, token Token) error

	// Wait must block until at least one event is available and fill
	// events. An interrupted wait returns (0, nil).
	Wait(events []Event) (int, error)

	// Wake must cause a concurrent or subsequent Wait to return an event
	// carrying WakeToken.
	Wake() error

	// Close must cleanup the internal poller backend.
	Close() error
}
