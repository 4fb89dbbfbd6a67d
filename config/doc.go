// Package config loads the host configuration from YAML.
//
// Fields missing from the file keep their DefaultConfig values; a missing
// file yields the defaults unchanged.
package config
