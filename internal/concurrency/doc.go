// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Lock-free primitives shared by the typed channels. BoundedQueue is a
// fixed-capacity MPMC ring that never blocks and never allocates after
// construction.
package concurrency
