// Package config loads and validates the studiobridge.json project
// configuration: the configured Designer endpoints, bridge tuning, the
// status server address and the log level.
package config
