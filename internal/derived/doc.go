// Package derived owns the birth profile and the values computed from it.
//
// A Cache decides whether a biorhythm snapshot or dasha period it already
// holds is still valid for the current profile, recomputes through the
// remote service when it is not, and writes results through to a durable
// key-value store. Reads are pull-based: nothing expires in the background.
//
// Concurrent requests for the same profile, kind and day share one remote
// call. A result computed for a profile that was replaced while the call
// was pending is never returned as current; callers re-derive instead.
package derived
