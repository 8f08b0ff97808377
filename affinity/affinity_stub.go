//go:build !linux
// +build !linux

// File: affinity/affinity_stub.go
// Author: momentics <momentics@gmail.com>

package affinity

import "github.com/momentics/hioload-netevent/api"

func setAffinityPlatform(cpuID int) (func(), error) {
	return nil, api.ErrNotSupported
}
