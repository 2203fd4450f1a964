// Package ingest implements the validate-persist-broadcast pipeline. Each
// accepted packet is cached as latest, durably appended to the store, and
// then fanned out to every connected observer. A persistence failure aborts
// the request before any observer sees the packet.
package ingest
