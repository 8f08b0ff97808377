// Package pool
// Author: momentics <momentics@gmail.com>
//
// Buffer reuse for the dispatch and receive paths: encode scratch space
// and envelope buffers are recycled instead of allocated per item.
package pool
