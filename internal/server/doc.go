// Package server implements the HTTP surface of the motion relay service:
// packet collection and time sync for devices, the WebSocket push channel
// for observers, and monitoring/management endpoints.
package server
