// Package config loads the lanchat server configuration from a YAML file.
//
// Every field has a sensible default, so the server runs without any
// config file at all; command-line flags layered on top by the CLI take
// precedence over file values.
package config
