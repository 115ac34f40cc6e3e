// Package config loads and validates the compass-gateway YAML configuration,
// including the authorization environment selector and OAuth client credentials.
package config
