package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WritePropertyMetric records one numeric property element.
//
// The write is non-blocking; points are batched and flushed by the
// client. Tag cardinality stays low: device labels, property names and
// element names form a small, fixed set per equipment profile.
//
// Example:
//
//	client.WritePropertyMetric("CCD Simulator", "CCD_TEMPERATURE", "CCD_TEMPERATURE_VALUE", -10.5)
func (c *Client) WritePropertyMetric(device, property, element string, value float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"indi_property",
		map[string]string{
			"device":   device,
			"property": property,
			"element":  element,
		},
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteServerEvent records a supervisor lifecycle event (start, stop,
// crash) so session history can be charted against telemetry.
func (c *Client) WriteServerEvent(state, profile string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"indi_server",
		map[string]string{
			"state": state,
		},
		map[string]interface{}{
			"profile": profile,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}
