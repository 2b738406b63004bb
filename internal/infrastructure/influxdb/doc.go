// Package influxdb records numeric property telemetry.
//
// An imaging session produces a steady stream of numeric state: mount
// coordinates, sensor temperatures, focuser positions. When enabled
// (influxdb.enabled in config.yaml) each numeric property update is
// written as an indi_property point, batched and flushed asynchronously
// so telemetry can never block the event stream.
package influxdb
