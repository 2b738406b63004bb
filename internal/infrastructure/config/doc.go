// Package config loads and validates INDI Control Core configuration.
//
// Configuration comes from three layers, later layers overriding earlier ones:
//
//  1. Hardcoded defaults (defaultConfig)
//  2. A YAML file (configs/config.yaml by default)
//  3. Environment variables (INDICORE_SECTION_KEY)
//
// The INDI section describes both the managed indiserver process (binary,
// control FIFO, data directory) and the bridge connection into it. Profiles
// stored in the database may override the INDI port per equipment set.
//
// Secrets (MQTT password, InfluxDB token, auth secret) should be supplied via
// environment variables rather than committed to the YAML file.
package config
