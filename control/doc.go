// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime traffic telemetry for hioload-net.
//
// Provides:
//   - metric keys and labels published through github.com/hashicorp/go-metrics
//   - a snapshot registry answering Stats() without touching a sink
//   - counter deltas derived from the cumulative traffic totals
//
// Everything here is driven from the owner's Update tick; the registry is
// mutex-protected only so that snapshots may be read from other goroutines.
package control
