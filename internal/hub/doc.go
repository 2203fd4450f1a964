// Package hub manages the set of connected push-channel observers and the
// single-slot latest-packet cache. Broadcast iterates a point-in-time
// snapshot of the subscriber set, so connection handlers may add and remove
// subscribers concurrently with packet arrival. A subscriber whose send
// fails is dropped without affecting delivery to the rest.
package hub
