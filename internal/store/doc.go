// Package store provides durable persistence for ingested motion packets.
// Two backends implement the Store interface: an embedded SQLite database
// (the default, single file, WAL mode) and PostgreSQL for deployments that
// already run one. Both expose append and recent-packet queries over the
// same logical schema and tolerate concurrent callers.
package store
