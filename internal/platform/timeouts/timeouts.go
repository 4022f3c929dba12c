// Package timeouts defines shared timeout constants used across the engine.
// Centralizing these values prevents drift between component boundaries and
// makes the durations discoverable.
package timeouts

import "time"

// OracleCall caps a single generative-oracle request. Scheduler ticks make
// several oracle calls in sequence, so this must stay well under the
// shortest configured tick interval.
const OracleCall = 45 * time.Second

// StoreWrite caps a single SQLite write, including the busy-wait budget.
const StoreWrite = 10 * time.Second

// ReadHeader limits how long the HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long servers wait for in-flight work during
// graceful shutdown.
const Shutdown = 5 * time.Second
