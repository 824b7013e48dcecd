// Package config loads process-wide configuration from a YAML file with
// environment-variable overrides, following the same yaml.v3 struct-tag
// convention cuemby/warren's CLI uses for its resource manifests.
package config
