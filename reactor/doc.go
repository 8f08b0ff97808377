// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides the OS readiness-notification backend: an
// edge-triggered epoll implementation on Linux and a stub elsewhere.
package reactor
