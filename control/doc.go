// Package control
// Author: momentics <momentics@gmail.com>
//
// Configuration, metrics and debug introspection for a netevent node.
//
// Provides:
//   - Config, the YAML document describing sockets and cycle tuning
//   - Metrics, Prometheus counters for the dispatch/receive cycle
//   - DebugProbes, named state probes dumped on demand
package control
