// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package pool

import "sync"

// ObjectPool is a generic object pool.
type ObjectPool[T any] interface {
	Get() T
	Put(T)
}

// SyncPool is a typed sync.Pool. Reset, if set, runs on every Put.
type SyncPool[T any] struct {
	pool  sync.Pool
	Reset func(T) T
}

// NewSyncPool creates a pool that calls creator when empty.
func NewSyncPool[T any](creator func() T) *SyncPool[T] {
	sp := &SyncPool[T]{}
	sp.pool.New = func() any { return creator() }
	return sp
}

// Get implements ObjectPool.
func (sp *SyncPool[T]) Get() T {
	return sp.pool.Get().(T)
}

// Put implements ObjectPool.
func (sp *SyncPool[T]) Put(obj T) {
	if sp.Reset != nil {
		obj = sp.Reset(obj)
	}
	sp.pool.Put(obj)
}
