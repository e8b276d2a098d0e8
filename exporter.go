package main

import (
	"context"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/p3exporter/fritzbox_exporter/internal/fritzhome"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "p3e_fb"
)

var (
	deviceInfo = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "device", "info"),
		"FritzBox device information",
		[]string{"fb_name", "ain", "device", "manufacturer", "type", "has_switch", "has_temperature_sensor", "has_thermostat"},
		nil,
	)
	batteryStatus     = newDesc("battery_status", "Battery level and status", "battery_low")
	temperatureSensor = newDesc("temperatur_sensor", "Current temperature and offset data", "temperature")
	thermostat        = newDesc("thermostat", "All temperature data", "temperature")
	thermostatState   = newDesc("thermostat_state", "State data", "state")
)

// hub is the part of a FRITZ!Box session the exporter reads from.
type hub interface {
	Refresh(ctx context.Context, ignoreRemoved bool) error
	Devices() []*fritzhome.Device
}

type connection struct {
	name        string
	deviceTypes deviceTypes
	hub         hub
}

// deviceTypes restricts which capabilities produce detailed metrics.
// An empty filter allows all of them.
type deviceTypes []string

func (f deviceTypes) allows(t string) bool {
	if len(f) == 0 {
		return true
	}
	for _, v := range f {
		if v == t {
			return true
		}
	}
	return false
}

type Exporter struct {
	mutex       sync.Mutex
	connections []*connection
	timeout     time.Duration
	logger      log.Logger
}

// Collect refreshes every FRITZ!Box and delivers its devices as
// Prometheus metrics. It implements prometheus.Collector.
func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	for _, c := range e.connections {
		if err := e.refresh(c); err != nil {
			level.Error(e.logger).Log("msg", "failed to refresh devices", "fb_name", c.name, "err", err)
			ch <- prometheus.NewInvalidMetric(deviceInfo, err)
			return
		}

		for _, d := range c.hub.Devices() {
			collectDevice(ch, c, d)
		}
	}
}

func (e *Exporter) refresh(c *connection) error {
	ctx := context.Background()
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	return c.hub.Refresh(ctx, false)
}

// Describe describes all the metrics ever exported by the FRITZ!Box
// exporter. It implements prometheus.Collector.
func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	ch <- deviceInfo
	ch <- batteryStatus
	ch <- temperatureSensor
	ch <- thermostat
	ch <- thermostatState
}

func collectDevice(ch chan<- prometheus.Metric, c *connection, d *fritzhome.Device) {
	labels := func(v string) []string {
		return []string{d.AIN, d.Name, c.name, v}
	}

	ch <- prometheus.MustNewConstMetric(deviceInfo, prometheus.GaugeValue, 1,
		c.name, d.AIN, d.Name, d.Manufacturer, d.ProductName,
		boolLabel(d.HasSwitch), boolLabel(d.HasTemperatureSensor), boolLabel(d.HasThermostat))

	if d.BatteryLevel != nil && d.BatteryLow != nil {
		ch <- prometheus.MustNewConstMetric(batteryStatus, prometheus.GaugeValue, *d.BatteryLevel, labels(boolLabel(*d.BatteryLow))...)
	}

	if d.HasTemperatureSensor && c.deviceTypes.allows(temperatureSensorType) {
		if d.Offset != nil {
			ch <- prometheus.MustNewConstMetric(temperatureSensor, prometheus.GaugeValue, *d.Offset, labels("offset")...)
		}
		if d.Temperature != nil {
			ch <- prometheus.MustNewConstMetric(temperatureSensor, prometheus.GaugeValue, *d.Temperature, labels("temperature")...)
		}
	}

	if d.HasThermostat && c.deviceTypes.allows(thermostatType) {
		if d.ActualTemperature != nil {
			ch <- prometheus.MustNewConstMetric(thermostat, prometheus.GaugeValue, *d.ActualTemperature, labels("actual")...)
		}
		ch <- prometheus.MustNewConstMetric(thermostat, prometheus.GaugeValue, d.ComfortTemperature, labels("comfort")...)
		ch <- prometheus.MustNewConstMetric(thermostat, prometheus.GaugeValue, d.EcoTemperature, labels("eco")...)
		if d.TargetTemperature != nil {
			ch <- prometheus.MustNewConstMetric(thermostat, prometheus.GaugeValue, *d.TargetTemperature, labels("target")...)
		}

		states := []struct {
			name  string
			value *bool
		}{
			{"adaptive_heating_active", d.AdaptiveHeatingActive},
			{"boost_active", d.BoostActive},
			{"holiday_active", d.HolidayActive},
			{"summer_active", d.SummerActive},
			{"window_open", d.WindowOpen},
		}
		for _, s := range states {
			if s.value == nil {
				continue
			}
			var v float64
			if *s.value {
				v = 1
			}
			ch <- prometheus.MustNewConstMetric(thermostatState, prometheus.GaugeValue, v, labels(s.name)...)
		}
	}
}

// boolLabel renders booleans the way existing dashboards expect them.
func boolLabel(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func newDesc(metricName string, docString string, variant string) *prometheus.Desc {
	return prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", metricName),
		docString,
		[]string{"ain", "device", "fb_name", variant},
		nil,
	)
}
