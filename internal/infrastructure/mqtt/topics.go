package mqtt

import "strings"

// topicPrefix roots every topic this service publishes.
const topicPrefix = "indicore"

// Topics builds the topic strings published by the service.
//
//	indicore/status                          service online/offline (retained)
//	indicore/server/state                    supervisor state (retained)
//	indicore/devices/<device>/<property>     property JSON on every change
//	indicore/devices/<device>/messages       driver messages
type Topics struct{}

// Status is the service availability topic (LWT target).
func (Topics) Status() string {
	return topicPrefix + "/status"
}

// ServerState carries supervisor state transitions.
func (Topics) ServerState() string {
	return topicPrefix + "/server/state"
}

// Property carries one property vector's JSON.
func (Topics) Property(device, property string) string {
	return topicPrefix + "/devices/" + sanitise(device) + "/" + sanitise(property)
}

// DeviceMessages carries free-form driver messages for a device.
func (Topics) DeviceMessages(device string) string {
	return topicPrefix + "/devices/" + sanitise(device) + "/messages"
}

// sanitise makes an INDI name safe for use as a topic segment. Device
// labels regularly contain spaces ("Telescope Simulator"); MQTT wildcards
// and separators must not leak into segments.
func sanitise(s string) string {
	r := strings.NewReplacer(
		" ", "_",
		"/", "_",
		"+", "_",
		"#", "_",
	)
	return r.Replace(s)
}
