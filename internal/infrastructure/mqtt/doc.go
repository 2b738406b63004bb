// Package mqtt publishes bridge and supervisor events to an observatory
// MQTT broker.
//
// The broker integration is optional (mqtt.enabled in config.yaml).
// When enabled, every property change, driver message, and supervisor
// state transition is published under the indicore/ topic tree, with a
// retained Last Will on indicore/status so consumers can detect a
// crashed service.
//
// This package owns the connection and publishing; the wiring from
// bridge notifications to topics lives in the application entrypoint.
package mqtt
