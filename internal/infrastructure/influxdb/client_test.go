package influxdb

import (
	"context"
	"errors"
	"testing"

	"github.com/observon/indi-core/internal/infrastructure/config"
)

func TestConnect_Disabled(t *testing.T) {
	_, err := Connect(config.InfluxDBConfig{Enabled: false})
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestHealthCheck_NotConnected(t *testing.T) {
	c := &Client{}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestWrite_NotConnectedIsNoop(t *testing.T) {
	c := &Client{}
	c.WritePropertyMetric("CCD Simulator", "CCD_TEMPERATURE", "CCD_TEMPERATURE_VALUE", -10.5)
	c.WriteServerEvent("running", "Simulators")
	c.WritePoint("custom", nil, map[string]interface{}{"v": 1})
}
