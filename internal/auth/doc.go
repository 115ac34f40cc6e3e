// Package auth verifies OAuth bearer tokens by RFC 7662 introspection
// against the authorization server, with a bounded TTL cache so repeated
// requests with the same token avoid a network round-trip. Verified
// identity travels through request contexts as a Principal.
package auth
