// Package store persists the gateway's tool invocation audit log in SQLite.
package store
