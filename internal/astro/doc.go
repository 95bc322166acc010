// Package astro defines the birth profile and the values computed from it by
// the remote astrology service: biorhythm snapshots, dasha periods and
// generated wallpapers.
//
// The package holds no behavior beyond validation, identity and wire
// encoding; computation happens remotely and caching lives in
// internal/derived.
package astro
