// Package api is the boundary client for the downstream product API.
// The gateway treats that API as a correct, bearer-authenticated CRUD
// backend; this package only shapes requests and discriminates failures.
package api
