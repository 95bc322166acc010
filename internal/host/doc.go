// Package host models the identity context the embedding messaging app
// supplies: who the user is, their language, and their subscription tier.
//
// The cache only reads this context. Nothing here writes back to the host.
package host
