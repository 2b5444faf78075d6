// Package config handles application configuration loading and management.
//
// Configuration is stored in ~/.conductor/config.json and includes the
// persistence path, workspace root, and the runner/cleanup tunables
// described in the environment-variable table.
package config
