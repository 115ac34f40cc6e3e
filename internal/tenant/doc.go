// Package tenant resolves an authenticated subject to the organisation and
// workspace that scope its data access, remembering explicit choices in a
// bounded store and auto-selecting only when there is nothing to choose.
package tenant
