// Package config holds apnsd's configuration model: JSON file loading
// layered under APNSD_* environment overrides.
package config
