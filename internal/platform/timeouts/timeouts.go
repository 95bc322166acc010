// Package timeouts defines shared timeout constants.
package timeouts

import "time"

// RemoteRequest caps one HTTP round trip to the computation service. It is
// the transport policy that bounds how long a shared in-flight computation
// can stay unresolved.
const RemoteRequest = 30 * time.Second

// StoreOpen caps acquiring the durable store's file lock or connection.
const StoreOpen = time.Second

// Shutdown limits how long telemetry flushing may take on exit.
const Shutdown = 5 * time.Second
