// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation.
// API credentials may also come from the standard APCA_API_* variables, which
// take precedence over the file.
package config
